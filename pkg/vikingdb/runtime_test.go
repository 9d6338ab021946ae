package vikingdb

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openviking/vikingdb/pkg/collection"
	"github.com/openviking/vikingdb/pkg/index"
	"github.com/openviking/vikingdb/pkg/schema"
)

func testMeta(name string) schema.CollectionMeta {
	return schema.CollectionMeta{
		Name: name,
		Fields: []schema.Field{
			{Name: "pk", Type: schema.TypeString, IsPrimaryKey: true},
			{Name: "vector", Type: schema.TypeVector, Dim: 4},
		},
	}
}

func TestRuntimeCreateAndFetchVolatileCollection(t *testing.T) {
	r, err := Open()
	require.NoError(t, err)
	defer r.Close()

	col, err := r.CreateCollection(context.Background(), CollectionSpec{
		Meta:     testMeta("docs"),
		Index:    collection.IndexSpec{Name: "main", Kind: index.KindFlat, Distance: index.DistanceL2},
		Volatile: true,
	})
	require.NoError(t, err)

	_, err = col.Upsert(context.Background(), []collection.UpsertInput{
		{PK: "a", Fields: map[string]any{"pk": "a"}, Vector: []float32{1, 0, 0, 0}},
	})
	require.NoError(t, err)

	got, ok := r.Collection("docs")
	require.True(t, ok)
	assert.Same(t, col, got)
}

func TestRuntimeCreateCollectionDuplicateNameConflicts(t *testing.T) {
	r, err := Open()
	require.NoError(t, err)
	defer r.Close()

	spec := CollectionSpec{
		Meta:     testMeta("docs"),
		Index:    collection.IndexSpec{Name: "main", Kind: index.KindFlat, Distance: index.DistanceL2},
		Volatile: true,
	}
	_, err = r.CreateCollection(context.Background(), spec)
	require.NoError(t, err)

	_, err = r.CreateCollection(context.Background(), spec)
	require.Error(t, err)
}

func TestRuntimePersistentCollectionSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	r1, err := Open(WithRoot(dir))
	require.NoError(t, err)

	col, err := r1.CreateCollection(ctx, CollectionSpec{
		Meta:  testMeta("docs"),
		Index: collection.IndexSpec{Name: "main", Kind: index.KindFlat, Distance: index.DistanceL2},
	})
	require.NoError(t, err)

	_, err = col.Upsert(ctx, []collection.UpsertInput{
		{PK: "a", Fields: map[string]any{"pk": "a"}, Vector: []float32{1, 0, 0, 0}},
	})
	require.NoError(t, err)
	require.NoError(t, r1.Close())

	r2, err := Open(WithRoot(dir))
	require.NoError(t, err)
	defer r2.Close()

	col2, err := r2.CreateCollection(ctx, CollectionSpec{
		Meta:  testMeta("docs"),
		Index: collection.IndexSpec{Name: "main", Kind: index.KindFlat, Distance: index.DistanceL2},
	})
	require.NoError(t, err)

	got, err := col2.Fetch(ctx, []string{"a"})
	require.NoError(t, err)
	require.NotNil(t, got[0])
	assert.Equal(t, "a", got[0].PK)

	assert.FileExists(t, filepath.Join(dir, "docs", "candidates.db"))
}

func TestRuntimeDropCollectionRemovesIt(t *testing.T) {
	r, err := Open()
	require.NoError(t, err)
	defer r.Close()

	_, err = r.CreateCollection(context.Background(), CollectionSpec{
		Meta:     testMeta("docs"),
		Index:    collection.IndexSpec{Name: "main", Kind: index.KindFlat, Distance: index.DistanceL2},
		Volatile: true,
	})
	require.NoError(t, err)

	require.NoError(t, r.DropCollection(context.Background(), "docs"))
	_, ok := r.Collection("docs")
	assert.False(t, ok)
}
