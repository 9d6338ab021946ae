// Package vikingdb is the top-level facade: it wires together a store
// backend, the collection registry, and the lifecycle scheduler behind one
// Runtime, replacing the source's singleton configuration and module-level
// registries with an explicit aggregate constructed once at Open.
package vikingdb

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/hashicorp/go-hclog"

	"github.com/openviking/vikingdb/pkg/collection"
	"github.com/openviking/vikingdb/pkg/lifecycle"
	"github.com/openviking/vikingdb/pkg/schema"
	"github.com/openviking/vikingdb/pkg/store"
	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// Config configures a Runtime.
type Config struct {
	// Root is the directory persistent collections and indexes live under.
	// Empty means every collection opened without an explicit override is
	// volatile (MemStore-backed, no snapshots).
	Root string

	TTLCleanupSeconds       int
	IndexMaintenanceSeconds int

	Logger hclog.Logger
}

// DefaultConfig matches the core's documented scheduler defaults.
func DefaultConfig() Config {
	return Config{
		TTLCleanupSeconds:       10,
		IndexMaintenanceSeconds: 30,
		Logger:                  hclog.NewNullLogger(),
	}
}

// Option configures a Runtime at Open time.
type Option func(*Config)

// WithRoot makes every subsequently created collection persistent under
// root by default.
func WithRoot(root string) Option {
	return func(c *Config) { c.Root = root }
}

// WithLogger attaches a logger to the scheduler and index maintenance path.
func WithLogger(l hclog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// Runtime owns every open collection and the single background scheduler
// driving their TTL cleanup and index maintenance.
type Runtime struct {
	mu          sync.RWMutex
	cfg         Config
	collections map[string]*collection.Collection
	scheduler   *lifecycle.Scheduler
}

// Open constructs a Runtime and starts its scheduler. Call Close to stop it
// and release every open collection's store handle.
func Open(opts ...Option) (*Runtime, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	r := &Runtime{
		cfg:         cfg,
		collections: make(map[string]*collection.Collection),
		scheduler:   lifecycle.New(cfg.Logger),
	}
	r.scheduler.Start(context.Background())
	return r, nil
}

// CollectionSpec names the schema and the single default index a new
// collection is created with.
type CollectionSpec struct {
	Meta      schema.CollectionMeta
	Index     collection.IndexSpec
	Embedder  collection.Embedder
	Volatile  bool // force an in-memory store even if the Runtime has a Root
}

// CreateCollection validates spec.Meta, opens (or recovers) the backing
// store and index, registers the collection with the scheduler, and
// returns it.
func (r *Runtime) CreateCollection(ctx context.Context, spec CollectionSpec) (*collection.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.collections[spec.Meta.Name]; exists {
		return nil, vdberrors.New("vikingdb.create_collection", vdberrors.Conflict,
			fmt.Errorf("collection %q already exists", spec.Meta.Name))
	}

	st, persistent, err := r.openStore(spec)
	if err != nil {
		return nil, err
	}

	col, err := collection.New(spec.Meta, st, spec.Embedder)
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	indexSpec := spec.Index
	if indexSpec.Name == "" {
		indexSpec.Name = "default"
	}
	if persistent && indexSpec.PersistDir == "" {
		indexSpec.PersistDir = filepath.Join(r.cfg.Root, spec.Meta.Name, "index", indexSpec.Name)
	}

	if indexSpec.PersistDir != "" {
		err = col.RecoverIndex(ctx, indexSpec)
	} else {
		err = col.CreateIndex(ctx, indexSpec)
	}
	if err != nil {
		_ = st.Close()
		return nil, err
	}

	if err := r.scheduler.Register(col, lifecycle.Config{
		TTLCleanupSeconds:       r.cfg.TTLCleanupSeconds,
		IndexMaintenanceSeconds: r.cfg.IndexMaintenanceSeconds,
	}); err != nil {
		_ = st.Close()
		return nil, err
	}

	r.collections[spec.Meta.Name] = col
	return col, nil
}

func (r *Runtime) openStore(spec CollectionSpec) (st store.Store, persistent bool, err error) {
	if spec.Volatile || r.cfg.Root == "" {
		return store.NewMemStore(), false, nil
	}
	collectionDir := filepath.Join(r.cfg.Root, spec.Meta.Name)
	if err := os.MkdirAll(collectionDir, 0o755); err != nil {
		return nil, false, vdberrors.New("vikingdb.open_store", vdberrors.StoreIO, err)
	}
	path := filepath.Join(collectionDir, "candidates.db")
	sqliteStore, err := store.OpenSQLiteCandidateStore(context.Background(), path)
	if err != nil {
		return nil, false, err
	}
	return sqliteStore, true, nil
}

// Collection returns the named collection, if open.
func (r *Runtime) Collection(name string) (*collection.Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	col, ok := r.collections[name]
	return col, ok
}

// DropCollection removes every record and index for name, closing its
// store handle, and forgets the collection.
func (r *Runtime) DropCollection(ctx context.Context, name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	col, ok := r.collections[name]
	if !ok {
		return vdberrors.New("vikingdb.drop_collection", vdberrors.NotFound, fmt.Errorf("collection %q not found", name))
	}
	if err := col.DeleteAll(ctx); err != nil {
		return err
	}
	if err := col.Close(); err != nil {
		return err
	}
	delete(r.collections, name)
	return nil
}

// Close stops the scheduler (which already flush-persists every registered
// collection), then defensively flush-persists and closes every open
// collection's store handle.
func (r *Runtime) Close() error {
	r.scheduler.Stop()

	r.mu.Lock()
	defer r.mu.Unlock()
	var firstErr error
	for name, col := range r.collections {
		if err := col.Persist(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("persisting collection %q: %w", name, err)
		}
		if err := col.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing collection %q: %w", name, err)
		}
	}
	r.collections = make(map[string]*collection.Collection)
	return firstErr
}
