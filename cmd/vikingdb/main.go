// Command vikingdb is a thin CLI for manual smoke testing of the core: it
// is not the product's HTTP/CLI surface, just enough to create a
// collection, upsert a few records, and search them from a shell.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/openviking/vikingdb/pkg/collection"
	"github.com/openviking/vikingdb/pkg/index"
	"github.com/openviking/vikingdb/pkg/schema"
	"github.com/openviking/vikingdb/pkg/vikingdb"
)

var (
	rootDir  string
	collName string
	dim      int
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "vikingdb",
	Short: "Manual smoke-testing CLI for the vikingdb core",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", "", "storage root directory (empty = volatile)")
	rootCmd.PersistentFlags().StringVar(&collName, "collection", "default", "collection name")
	rootCmd.PersistentFlags().IntVar(&dim, "dim", 4, "dense vector dimension")

	rootCmd.AddCommand(upsertCmd, searchCmd, fetchCmd, statsCmd)
}

func openRuntime() (*vikingdb.Runtime, error) {
	if rootDir == "" {
		return vikingdb.Open()
	}
	return vikingdb.Open(vikingdb.WithRoot(rootDir))
}

func ensureCollection(ctx context.Context, rt *vikingdb.Runtime) (*collection.Collection, error) {
	if col, ok := rt.Collection(collName); ok {
		return col, nil
	}
	meta := schema.CollectionMeta{
		Name: collName,
		Fields: []schema.Field{
			{Name: "pk", Type: schema.TypeString, IsPrimaryKey: true},
			{Name: "vector", Type: schema.TypeVector, Dim: dim},
		},
	}
	return rt.CreateCollection(ctx, vikingdb.CollectionSpec{
		Meta:     meta,
		Index:    collection.IndexSpec{Name: "main", Kind: index.KindFlat, Distance: index.DistanceL2},
		Volatile: rootDir == "",
	})
}

func parseVector(s string) ([]float32, error) {
	parts := strings.Split(s, ",")
	vec := make([]float32, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("invalid vector component %q: %w", p, err)
		}
		vec = append(vec, float32(v))
	}
	return vec, nil
}

var upsertCmd = &cobra.Command{
	Use:   "upsert <pk> <comma,separated,vector>",
	Short: "Upsert a record",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		col, err := ensureCollection(ctx, rt)
		if err != nil {
			return err
		}
		vec, err := parseVector(args[1])
		if err != nil {
			return err
		}
		pks, err := col.Upsert(ctx, []collection.UpsertInput{
			{PK: args[0], Fields: map[string]any{"pk": args[0]}, Vector: vec},
		})
		if err != nil {
			return err
		}
		fmt.Println(pks[0])
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <comma,separated,vector>",
	Short: "Search by vector",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		col, err := ensureCollection(ctx, rt)
		if err != nil {
			return err
		}
		vec, err := parseVector(args[0])
		if err != nil {
			return err
		}
		limit, _ := cmd.Flags().GetInt("limit")
		results, err := col.SearchByVector(ctx, collection.SearchRequest{Index: "main", Dense: vec, Limit: limit})
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	},
}

func init() {
	searchCmd.Flags().Int("limit", 10, "maximum results")
}

var fetchCmd = &cobra.Command{
	Use:   "fetch <pk...>",
	Short: "Fetch records by primary key",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		col, err := ensureCollection(ctx, rt)
		if err != nil {
			return err
		}
		records, err := col.Fetch(ctx, args)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(records)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print per-index stats for the collection",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		rt, err := openRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		col, err := ensureCollection(ctx, rt)
		if err != nil {
			return err
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(col.Stats())
	},
}
