// Package collection implements the schema-bound, primary-keyed table that
// is the unit of storage in the core: it owns one durable store, a registry
// of named searchable indexes, and the CRUD/search surface that coordinates
// them.
package collection

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/openviking/vikingdb/pkg/filter"
	"github.com/openviking/vikingdb/pkg/index"
	"github.com/openviking/vikingdb/pkg/quantization"
	"github.com/openviking/vikingdb/pkg/record"
	"github.com/openviking/vikingdb/pkg/schema"
	"github.com/openviking/vikingdb/pkg/store"
	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// QuantizeKind selects the optional compression step applied to an HNSW
// index's stored vectors after the initial build.
type QuantizeKind int

const (
	QuantizeNone QuantizeKind = iota
	QuantizeScalar
	QuantizeBinary
)

// IndexSpec describes a named index to create on a collection: the KNN
// implementation, its distance metric, and where (if anywhere) it persists
// versioned snapshots.
type IndexSpec struct {
	Name        string
	Kind        index.Kind
	Distance    index.Distance
	SparseAlpha float32
	PersistDir  string // empty means volatile, no on-disk snapshots

	// Quantize, when set on an hnsw/hnsw_hybrid index, trains a quantizer
	// on the build-time vector set and attaches it to the engine so stored
	// vectors are compressed. Ignored for flat indexes.
	Quantize     QuantizeKind
	QuantizeBits int // bits per component for QuantizeScalar; default 8
}

// trainQuantizer fits a quantizer of kind over vectors and attaches it to
// eng if eng supports one. No-op for QuantizeNone, empty vectors, or an
// engine kind (flat) that has no SetQuantizer hook.
func trainQuantizer(eng index.Engine, kind QuantizeKind, bits, dim int, vectors [][]float32) error {
	if kind == QuantizeNone || len(vectors) == 0 {
		return nil
	}
	hnsw, ok := eng.(*index.HNSWEngine)
	if !ok {
		return nil
	}
	switch kind {
	case QuantizeScalar:
		if bits == 0 {
			bits = 8
		}
		q, err := quantization.NewScalarQuantizer(dim, bits)
		if err != nil {
			return vdberrors.New("collection.quantize", vdberrors.RecordInvalid, err)
		}
		if err := q.Train(vectors); err != nil {
			return vdberrors.New("collection.quantize", vdberrors.RecordInvalid, err)
		}
		hnsw.SetQuantizer(q)
	case QuantizeBinary:
		q := quantization.NewBinaryQuantizer(dim)
		if err := q.Train(vectors); err != nil {
			return vdberrors.New("collection.quantize", vdberrors.RecordInvalid, err)
		}
		hnsw.SetQuantizer(q)
	}
	return nil
}

// registeredIndex is one entry in a collection's index registry. Rebuild
// swaps Engine under the registry lock; Go's garbage collector keeps the
// superseded engine alive for any reader still holding the pointer it
// captured before the swap, so no explicit reference count is needed.
type registeredIndex struct {
	spec    IndexSpec
	engine  index.Engine
	persist *index.PersistDir
	deletes int
}

// Collection is a schema-bound table of records sharing one store and a
// registry of indexes built over it.
type Collection struct {
	mu      sync.RWMutex
	meta    schema.CollectionMeta
	store   store.Store
	indexes map[string]*registeredIndex

	embedder *breakerEmbedder
	cfg      Config

	rebuildGroup singleflight.Group
}

// New constructs a Collection over an already-open store, with no indexes
// registered yet — call CreateIndex to add one, or use
// Runtime.CreateCollection (pkg/vikingdb) for the common case of one default
// index plus recovery.
func New(meta schema.CollectionMeta, st store.Store, embedder Embedder, opts ...Option) (*Collection, error) {
	if err := meta.Validate(); err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}

	c := &Collection{
		meta:    meta,
		store:   st,
		indexes: make(map[string]*registeredIndex),
		cfg:     cfg,
	}
	if embedder != nil {
		c.embedder = newBreakerEmbedder(embedder, meta.Name)
	}
	return c, nil
}

func newEngine(kind index.Kind, dim int, distance index.Distance) index.Engine {
	switch kind {
	case index.KindHNSW, index.KindHNSWHybrid:
		return index.NewHNSWEngine(dim, 16, 200, distance)
	default:
		return index.NewFlatEngine(dim, distance)
	}
}

// CreateIndex builds a fresh index from the current candidate store and
// registers it under spec.Name. Fails with Conflict if the name is taken.
func (c *Collection) CreateIndex(ctx context.Context, spec IndexSpec) error {
	dim := 0
	if f, ok := c.meta.DenseVectorField(); ok {
		dim = f.Dim
	}

	c.mu.Lock()
	if _, exists := c.indexes[spec.Name]; exists {
		c.mu.Unlock()
		return vdberrors.New("collection.create_index", vdberrors.Conflict,
			fmt.Errorf("index %q already exists", spec.Name))
	}
	c.mu.Unlock()

	engine := newEngine(spec.Kind, dim, spec.Distance)
	// Captured before the scan: store delta versions are drawn from the
	// same nanosecond clock, so any write that commits after this point is
	// guaranteed a version greater than baseline and will be picked up by a
	// later delta replay even if it also landed in the records scan below
	// (replaying an already-applied Put/Delete is a harmless no-op).
	baseline := nowFn()
	records, err := c.store.All(ctx)
	if err != nil {
		return err
	}
	vectors := make([][]float32, 0, len(records))
	for _, rec := range records {
		if rec.Vector != nil {
			vectors = append(vectors, rec.Vector)
		}
	}
	// Quantizer must be trained and attached before inserting so the
	// initial build set is encoded rather than only vectors inserted
	// afterward.
	if err := trainQuantizer(engine, spec.Quantize, spec.QuantizeBits, dim, vectors); err != nil {
		return err
	}
	for _, rec := range records {
		if err := engine.Insert(rec.Label, rec.Vector, rec.Sparse); err != nil {
			return err
		}
	}
	engine.SetVersion(baseline)

	var persistDir *index.PersistDir
	if spec.PersistDir != "" {
		persistDir, err = index.NewPersistDir(spec.PersistDir)
		if err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.indexes[spec.Name]; exists {
		return vdberrors.New("collection.create_index", vdberrors.Conflict,
			fmt.Errorf("index %q already exists", spec.Name))
	}
	c.indexes[spec.Name] = &registeredIndex{spec: spec, engine: engine, persist: persistDir}
	return nil
}

// DropIndex releases the named index's structures and removes it from the
// registry.
func (c *Collection) DropIndex(name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	ri, ok := c.indexes[name]
	if !ok {
		return vdberrors.New("collection.drop_index", vdberrors.NotFound, fmt.Errorf("index %q not found", name))
	}
	ri.engine.Clear()
	delete(c.indexes, name)
	return nil
}

// RecoverIndex mounts the newest valid snapshot under spec.PersistDir (if
// any), then replays store deltas after the snapshot's version so the index
// is current, before registering it. When no snapshot exists yet, replay
// starts from version 0 so every delta in the log is replayed.
func (c *Collection) RecoverIndex(ctx context.Context, spec IndexSpec) error {
	dim := 0
	if f, ok := c.meta.DenseVectorField(); ok {
		dim = f.Dim
	}

	if spec.PersistDir == "" {
		return c.CreateIndex(ctx, spec)
	}

	persistDir, err := index.NewPersistDir(spec.PersistDir)
	if err != nil {
		return err
	}

	version, err := persistDir.NewestVersion()
	if err != nil {
		return err
	}

	var eng index.Engine
	if version == 0 {
		eng = newEngine(spec.Kind, dim, spec.Distance)
	} else {
		eng, err = persistDir.Load(version, func() index.Engine { return newEngine(spec.Kind, dim, spec.Distance) })
		if err != nil {
			return err
		}
	}

	deltas, err := c.store.DeltaAfter(ctx, version)
	if err != nil {
		return err
	}
	for _, d := range deltas {
		switch d.Op {
		case record.DeltaPut:
			if err := eng.Insert(d.Label, d.Record.Vector, d.Record.Sparse); err != nil {
				return err
			}
		case record.DeltaDel:
			eng.Delete(d.Label)
		}
		eng.SetVersion(d.Version)
	}

	if spec.Quantize != QuantizeNone {
		records, err := c.store.All(ctx)
		if err != nil {
			return err
		}
		vectors := make([][]float32, 0, len(records))
		for _, rec := range records {
			if rec.Vector != nil {
				vectors = append(vectors, rec.Vector)
			}
		}
		if err := trainQuantizer(eng, spec.Quantize, spec.QuantizeBits, dim, vectors); err != nil {
			return err
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.indexes[spec.Name]; exists {
		return vdberrors.New("collection.recover_index", vdberrors.Conflict,
			fmt.Errorf("index %q already exists", spec.Name))
	}
	c.indexes[spec.Name] = &registeredIndex{spec: spec, engine: eng, persist: persistDir}
	return nil
}

// UpsertInput is one caller-supplied record for Upsert.
type UpsertInput struct {
	PK     string // empty means the collection mints an auto label
	Fields map[string]any
	Vector []float32
	Sparse map[uint32]float32
	TTLSec int64
}

// Upsert validates and coerces each input against the schema, vectorizes
// through the embedder when the schema declares it and no vector was
// supplied, writes through the store, and applies the resulting delta to
// every registered index before returning. Returns the caller-visible
// primary keys in input order.
func (c *Collection) Upsert(ctx context.Context, inputs []UpsertInput) ([]string, error) {
	pks := make([]string, len(inputs))
	recs := make([]*record.Record, len(inputs))
	for i, in := range inputs {
		rec, pk, err := c.buildRecord(ctx, in)
		if err != nil {
			return nil, err
		}
		recs[i], pks[i] = rec, pk
	}

	for _, rec := range recs {
		version, err := c.store.Put(ctx, rec)
		if err != nil {
			return nil, err
		}
		if err := c.applyToAllIndexes(func(eng index.Engine) error {
			if err := eng.Insert(rec.Label, rec.Vector, rec.Sparse); err != nil {
				return err
			}
			eng.SetVersion(version)
			return nil
		}); err != nil {
			return nil, err
		}
	}
	return pks, nil
}

func (c *Collection) buildRecord(ctx context.Context, in UpsertInput) (*record.Record, string, error) {
	pk, hasPK := in.PK, in.PK != ""
	if pkField, declared := c.meta.PrimaryKey(); declared && !hasPK {
		if v, ok := in.Fields[pkField.Name]; ok {
			pk = fmt.Sprint(v)
			hasPK = pk != ""
		}
	}

	var label record.Label
	if hasPK {
		label = record.LabelFromPK(pk)
	} else {
		label = record.NewAutoLabel()
		pk = label.String()
	}

	fields := make(map[string]any, len(c.meta.Fields))
	for _, f := range c.meta.Fields {
		if f.Type == schema.TypeVector || f.Type == schema.TypeSparseVector {
			continue
		}
		raw, ok := in.Fields[f.Name]
		if !ok {
			if f.Required {
				return nil, "", vdberrors.New("collection.upsert", vdberrors.RecordInvalid,
					fmt.Errorf("field %q is required", f.Name))
			}
			continue
		}
		coerced, err := schema.Coerce(f, raw)
		if err != nil {
			return nil, "", err
		}
		fields[f.Name] = coerced
	}
	if !hasPK {
		fields[schema.AutoIDField] = pk
	}

	vector := in.Vector
	sparse := in.Sparse
	if vector == nil && c.meta.Vectorization.Enabled && c.embedder != nil {
		source, _ := fields[c.meta.Vectorization.SourceField].(string)
		dense, sp, err := c.embedder.Embed(ctx, source)
		if err != nil {
			return nil, "", err
		}
		vector = dense
		if c.meta.Vectorization.SparseEnabled {
			sparse = sp
		}
	}

	if denseField, ok := c.meta.DenseVectorField(); ok && vector != nil {
		adapted, err := (schema.DimensionAdapter{Policy: c.cfg.DimPolicy}).Adapt(vector, denseField.Dim)
		if err != nil {
			return nil, "", err
		}
		vector = adapted
	}

	ttl := in.TTLSec
	if ttl == 0 {
		ttl = c.meta.DefaultTTLSec
	}
	var expireAt int64
	if ttl > 0 {
		expireAt = nowFn() + ttl*1e9
	}

	return &record.Record{
		Label:    label,
		PK:       pk,
		Fields:   fields,
		Vector:   vector,
		Sparse:   sparse,
		ExpireAt: expireAt,
	}, pk, nil
}

// applyToAllIndexes runs fn against every registered index concurrently,
// returning the first error encountered. Copies out engine pointers under
// a read lock so index registration/rebuild can proceed independently.
func (c *Collection) applyToAllIndexes(fn func(index.Engine) error) error {
	c.mu.RLock()
	engines := make([]index.Engine, 0, len(c.indexes))
	for _, ri := range c.indexes {
		engines = append(engines, ri.engine)
	}
	c.mu.RUnlock()

	if len(engines) == 0 {
		return nil
	}
	g := new(errgroup.Group)
	for _, eng := range engines {
		eng := eng
		g.Go(func() error { return fn(eng) })
	}
	return g.Wait()
}

// Delete translates pks to labels, removes them from the store, and applies
// the resulting delete deltas to every registered index.
func (c *Collection) Delete(ctx context.Context, pks []string) error {
	for _, pk := range pks {
		label := c.labelOf(ctx, pk)
		version, err := c.store.Delete(ctx, label)
		if err != nil {
			return err
		}
		if err := c.applyToAllIndexes(func(eng index.Engine) error {
			eng.Delete(label)
			eng.SetVersion(version)
			return nil
		}); err != nil {
			return err
		}
		c.trackDeletes(label)
	}
	return nil
}

// labelOf resolves a pk to its label; an auto-minted pk is its label's decimal form.
func (c *Collection) labelOf(ctx context.Context, pk string) record.Label {
	if n, err := strconv.ParseUint(pk, 10, 64); err == nil {
		if rec, ok, _ := c.store.Get(ctx, record.Label(n)); ok && rec.Fields[schema.AutoIDField] == pk {
			return record.Label(n)
		}
	}
	return record.LabelFromPK(pk)
}

func (c *Collection) trackDeletes(_ record.Label) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, ri := range c.indexes {
		ri.deletes++
	}
}

// DeleteAll clears the store and every registered index's vectors while
// keeping each index's registration (name, kind, distance) intact, so the
// collection accepts new upserts immediately.
func (c *Collection) DeleteAll(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, err := c.store.DeleteAll(ctx); err != nil {
		return err
	}
	for _, ri := range c.indexes {
		ri.engine.Clear()
		ri.deletes = 0
	}
	return nil
}

// Fetch translates pks to labels and bulk-fetches the corresponding
// records, preserving input order; a missing pk yields a nil entry at its
// position.
func (c *Collection) Fetch(ctx context.Context, pks []string) ([]*record.Record, error) {
	out := make([]*record.Record, len(pks))
	for i, pk := range pks {
		label := c.labelOf(ctx, pk)
		rec, ok, err := c.store.Get(ctx, label)
		if err != nil {
			return nil, err
		}
		if ok {
			out[i] = rec
		}
	}
	return out, nil
}

// SearchRequest parameterizes every search_by_* surface.
type SearchRequest struct {
	Index       string
	Dense       []float32
	Sparse      map[uint32]float32
	SparseAlpha float32
	Limit       int
	Offset      int
	Filter      *filter.Condition
}

// SearchResult is one ranked hit, rehydrated with scalar fields from the
// candidate store.
type SearchResult struct {
	PK     string
	Label  record.Label
	Score  float32
	Fields map[string]any
}

func (c *Collection) fieldLookup(ctx context.Context) index.FieldLookup {
	return func(label record.Label) (map[string]any, bool) {
		rec, ok, err := c.store.Get(ctx, label)
		if err != nil || !ok {
			return nil, false
		}
		return rec.Fields, true
	}
}

// SearchByVector runs a dense/hybrid KNN query against the named index,
// applying req.Filter and slicing [offset, offset+limit) of the ranked
// result, then rehydrates scalar fields from the store.
func (c *Collection) SearchByVector(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	c.mu.RLock()
	ri, ok := c.indexes[req.Index]
	var eng index.Engine
	if ok {
		eng = ri.engine
	}
	c.mu.RUnlock()
	if !ok {
		return nil, vdberrors.New("collection.search", vdberrors.NotFound, fmt.Errorf("index %q not found", req.Index))
	}

	alpha := req.SparseAlpha
	if alpha == 0 {
		alpha = c.cfg.DefaultSparseAlpha
	}

	q := index.Query{Dense: req.Dense, Sparse: req.Sparse, SparseAlpha: alpha, TopK: req.Limit + req.Offset}
	scored, err := eng.Search(q, req.Filter, c.fieldLookup(ctx))
	if err != nil {
		return nil, err
	}
	if req.Offset > 0 {
		if req.Offset >= len(scored) {
			scored = nil
		} else {
			scored = scored[req.Offset:]
		}
	}
	return c.rehydrate(ctx, scored)
}

// SearchByID looks up the record's own vector and uses it as the query
// vector for the same index.
func (c *Collection) SearchByID(ctx context.Context, indexName, pk string, limit, offset int, cond *filter.Condition) ([]SearchResult, error) {
	label := c.labelOf(ctx, pk)
	rec, ok, err := c.store.Get(ctx, label)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, vdberrors.New("collection.search_by_id", vdberrors.NotFound, fmt.Errorf("pk %q not found", pk))
	}
	return c.SearchByVector(ctx, SearchRequest{Index: indexName, Dense: rec.Vector, Sparse: rec.Sparse, Limit: limit, Offset: offset, Filter: cond})
}

// SearchByScalar bypasses the vector index entirely: it scans every live
// record in the store, keeps those matching cond, sorts by sorter.Field,
// and returns scalar field values in place of a similarity score.
func (c *Collection) SearchByScalar(ctx context.Context, cond *filter.Condition, sorter filter.Sorter, limit, offset int) ([]SearchResult, error) {
	records, err := c.store.All(ctx)
	if err != nil {
		return nil, err
	}

	matched := make([]*record.Record, 0, len(records))
	for _, rec := range records {
		if cond != nil {
			ok, err := filter.Eval(*cond, rec.Fields)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		matched = append(matched, rec)
	}

	if sorter.Field != "" {
		sort.SliceStable(matched, func(i, j int) bool {
			vi, vj := matched[i].Fields[sorter.Field], matched[j].Fields[sorter.Field]
			less := lessAny(vi, vj)
			if sorter.Descending {
				return !less && vi != vj
			}
			return less
		})
	}

	if offset > 0 {
		if offset >= len(matched) {
			matched = nil
		} else {
			matched = matched[offset:]
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]SearchResult, len(matched))
	for i, rec := range matched {
		var score float32
		if sorter.Field != "" {
			score = toScore(rec.Fields[sorter.Field])
		}
		out[i] = SearchResult{PK: rec.PK, Label: rec.Label, Score: score, Fields: rec.Fields}
	}
	return out, nil
}

// ByKeywords ranks by sparse-term similarity only, bypassing the dense ANN
// path — useful when the caller has no dense query vector.
func (c *Collection) ByKeywords(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	req.Dense = nil
	return c.SearchByVector(ctx, req)
}

// ByMultimodal combines dense and sparse query vectors through the same
// hybrid scoring path as SearchByVector; it exists as a named surface for
// callers that vectorize text+image inputs into one dense/sparse pair
// before calling in.
func (c *Collection) ByMultimodal(ctx context.Context, req SearchRequest) ([]SearchResult, error) {
	return c.SearchByVector(ctx, req)
}

func (c *Collection) rehydrate(ctx context.Context, scored []index.ScoredLabel) ([]SearchResult, error) {
	out := make([]SearchResult, 0, len(scored))
	for _, s := range scored {
		rec, ok, err := c.store.Get(ctx, s.Label)
		if err != nil {
			return nil, err
		}
		if !ok {
			continue // tombstoned between index scoring and rehydration
		}
		out = append(out, SearchResult{PK: rec.PK, Label: rec.Label, Score: s.Score, Fields: rec.Fields})
	}
	return out, nil
}

// Aggregate computes a count aggregation (optionally grouped by field) over
// every live record in the candidate store.
func (c *Collection) Aggregate(ctx context.Context, req index.AggregateRequest) ([]index.AggregateGroup, error) {
	records, err := c.store.All(ctx)
	if err != nil {
		return nil, err
	}
	fieldsByLabel := make(map[uint64]map[string]any, len(records))
	for _, rec := range records {
		fieldsByLabel[uint64(rec.Label)] = rec.Fields
	}
	return index.Aggregate(fieldsByLabel, req)
}

// RebuildIfNeeded rebuilds the named index from the current candidate store
// when its deleted ratio crosses the configured threshold, singleflight-
// deduping concurrent callers so only one rebuild runs at a time per index.
func (c *Collection) RebuildIfNeeded(ctx context.Context, name string) (bool, error) {
	c.mu.RLock()
	ri, ok := c.indexes[name]
	c.mu.RUnlock()
	if !ok {
		return false, vdberrors.New("collection.rebuild", vdberrors.NotFound, fmt.Errorf("index %q not found", name))
	}
	if !index.NeedsRebuild(ri.engine, ri.deletes, c.cfg.RebuildConfig) {
		return false, nil
	}

	_, err, _ := c.rebuildGroup.Do(name, func() (any, error) {
		return nil, c.rebuild(ctx, name)
	})
	return err == nil, err
}

func (c *Collection) rebuild(ctx context.Context, name string) error {
	c.mu.RLock()
	ri, ok := c.indexes[name]
	c.mu.RUnlock()
	if !ok {
		return vdberrors.New("collection.rebuild", vdberrors.NotFound, fmt.Errorf("index %q not found", name))
	}

	dim := 0
	if f, ok := c.meta.DenseVectorField(); ok {
		dim = f.Dim
	}
	fresh := newEngine(ri.spec.Kind, dim, ri.spec.Distance)

	// See CreateIndex: captured before the scan so any write committing
	// after this point still gets picked up by a later delta replay.
	baseline := nowFn()
	records, err := c.store.All(ctx)
	if err != nil {
		return err
	}
	vectors := make([][]float32, 0, len(records))
	for _, rec := range records {
		if rec.Vector != nil {
			vectors = append(vectors, rec.Vector)
		}
	}
	if err := trainQuantizer(fresh, ri.spec.Quantize, ri.spec.QuantizeBits, dim, vectors); err != nil {
		return err
	}
	for _, rec := range records {
		if err := fresh.Insert(rec.Label, rec.Vector, rec.Sparse); err != nil {
			return err
		}
	}
	fresh.SetVersion(baseline)

	c.mu.Lock()
	ri.engine = fresh
	ri.deletes = 0
	c.mu.Unlock()
	return nil
}

// Persist dumps every persistent index's current snapshot if its engine's
// version has advanced past its newest on-disk version, then garbage-
// collects old versions, keeping that previous newest version and the one
// just written. Indexes with nothing new since the last dump are skipped.
func (c *Collection) Persist() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, ri := range c.indexes {
		if ri.persist == nil {
			continue
		}
		onDisk, err := ri.persist.NewestVersion()
		if err != nil {
			return err
		}
		v := ri.engine.Version()
		if v <= onDisk {
			continue
		}
		if err := ri.persist.Dump(v, ri.engine); err != nil {
			return err
		}
		if err := ri.persist.GC([]int64{onDisk, v}); err != nil {
			return err
		}
	}
	return nil
}

// Stats reports per-index size and metadata for introspection.
func (c *Collection) Stats() map[string]map[string]any {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make(map[string]map[string]any, len(c.indexes))
	for name, ri := range c.indexes {
		stats := ri.engine.Stats()
		stats["kind"] = ri.spec.Kind
		stats["deletes_since_rebuild"] = ri.deletes
		out[name] = stats
	}
	return out
}

// Name identifies the collection to the lifecycle scheduler.
func (c *Collection) Name() string { return c.meta.Name }

// ExpireTTL sweeps every record whose TTL has elapsed, removing it from the
// store and applying the resulting deletes to every registered index. It is
// the lifecycle scheduler's TTL-cleanup tick.
func (c *Collection) ExpireTTL(ctx context.Context) (int, error) {
	records, err := c.store.All(ctx)
	if err != nil {
		return 0, err
	}
	now := nowFn()
	var expired []record.Label
	for _, rec := range records {
		if rec.ExpireAt > 0 && rec.ExpireAt <= now {
			expired = append(expired, rec.Label)
		}
	}
	if len(expired) == 0 {
		return 0, nil
	}

	n, err := c.store.Expire(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, label := range expired {
		label := label
		if err := c.applyToAllIndexes(func(eng index.Engine) error {
			eng.Delete(label)
			return nil
		}); err != nil {
			return n, err
		}
		c.trackDeletes(label)
	}
	return n, nil
}

// RebuildAndPersist is the lifecycle scheduler's index-maintenance tick: it
// rebuilds every index whose deletion ratio crosses the configured
// threshold, then persists every index that has a PersistDir configured.
func (c *Collection) RebuildAndPersist(ctx context.Context) error {
	c.mu.RLock()
	names := make([]string, 0, len(c.indexes))
	for name := range c.indexes {
		names = append(names, name)
	}
	c.mu.RUnlock()

	for _, name := range names {
		if _, err := c.RebuildIfNeeded(ctx, name); err != nil {
			return err
		}
	}
	return c.Persist()
}

// Close releases the collection's store handle. Indexes hold no external
// resources beyond in-memory state and the (already-released) persist
// directories.
func (c *Collection) Close() error {
	return c.store.Close()
}

func lessAny(a, b any) bool {
	af, aok := toFloatOK(a)
	bf, bok := toFloatOK(b)
	if aok && bok {
		return af < bf
	}
	as, aIsStr := a.(string)
	bs, bIsStr := b.(string)
	if aIsStr && bIsStr {
		return as < bs
	}
	return false
}

func toFloatOK(v any) (float64, bool) {
	switch x := v.(type) {
	case int64:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case int:
		return float64(x), true
	}
	return 0, false
}

func toScore(v any) float32 {
	f, _ := toFloatOK(v)
	return float32(f)
}
