// Package index implements the hybrid dense+sparse nearest-neighbor engines
// (flat and HNSW) a collection attaches to its candidate store, along with
// aggregation and versioned snapshot persistence.
package index

import (
	"github.com/openviking/vikingdb/pkg/filter"
	"github.com/openviking/vikingdb/pkg/record"
)

// Kind names the index implementation a collection was built with.
type Kind string

const (
	KindFlat        Kind = "flat"
	KindFlatHybrid  Kind = "flat_hybrid"
	KindHNSW        Kind = "hnsw"
	KindHNSWHybrid  Kind = "hnsw_hybrid"
)

// ScoredLabel is one ranked search result: a record label and its combined
// dense+sparse score (larger is better, regardless of distance metric).
type ScoredLabel struct {
	Label record.Label
	Score float32
}

// Query parameterizes a Search call.
type Query struct {
	Dense       []float32
	Sparse      map[uint32]float32
	SparseAlpha float32 // weight applied to the sparse component
	TopK        int
}

// FieldLookup resolves a label to the scalar fields needed to evaluate a
// filter during search; engines don't own scalar fields, the candidate
// store does, so the collection layer supplies this.
type FieldLookup func(label record.Label) (map[string]any, bool)

// Engine is the shared contract every index implementation satisfies. A
// collection owns one Engine per active index and rebuilds it (swapping in
// a fresh handle) rather than mutating it in place, so in-flight readers on
// the old handle are unaffected.
type Engine interface {
	Kind() Kind
	Dim() int

	// Insert adds or replaces the vectors at label.
	Insert(label record.Label, dense []float32, sparse map[uint32]float32) error

	// Delete marks label absent. Returns false if label was not present.
	Delete(label record.Label) bool

	// Search ranks candidates by combined score, applying cond (if non-nil)
	// via lookup to restrict the result set, and over-fetching internally
	// so that post-filter results still fill TopK when possible.
	Search(q Query, cond *filter.Condition, lookup FieldLookup) ([]ScoredLabel, error)

	// Size returns the number of live vectors.
	Size() int

	// DeletedRatio returns the fraction of inserted slots now tombstoned,
	// the signal the lifecycle scheduler uses for rebuild-on-need.
	DeletedRatio() float64

	// Clear removes every vector.
	Clear()

	// Snapshot returns every live (label, dense, sparse) triple, used by
	// the persistence layer to dump the index.
	Snapshot() []EngineEntry

	// Stats reports implementation-specific counters for introspection.
	Stats() map[string]any

	// Version reports the nanosecond high-watermark of the store deltas
	// folded into this engine: the version of the last Put/Delete applied
	// to it, or the version a recovered snapshot was stamped with. Persist
	// uses this to decide whether a fresher on-disk dump is warranted, and
	// recovery uses it to resume delta replay from the right point.
	Version() int64

	// SetVersion advances the engine's version watermark to v. Calls with a
	// v at or below the current watermark are a no-op, so callers never need
	// to check before calling — only ever moving the watermark forward keeps
	// a conservative (never-too-high) version, which is what makes replaying
	// an already-applied delta a safe, idempotent no-op rather than a gap.
	SetVersion(v int64)
}

// EngineEntry is one row of an Engine.Snapshot().
type EngineEntry struct {
	Label  record.Label
	Dense  []float32
	Sparse map[uint32]float32
}

// RebuildConfig parameterizes the rebuild-on-need policy (Open Question #3):
// a collection schedules a rebuild once the deleted ratio crosses
// DeletedRatioThreshold, provided at least MinDeletesToRebuild tombstones
// have accumulated (so a tiny index with one delete doesn't thrash).
type RebuildConfig struct {
	DeletedRatioThreshold float64
	MinDeletesToRebuild   int
}

// DefaultRebuildConfig matches the teacher's index-maintenance defaults:
// rebuild once a quarter of slots are tombstoned, but never for fewer than
// 32 deletes.
func DefaultRebuildConfig() RebuildConfig {
	return RebuildConfig{DeletedRatioThreshold: 0.25, MinDeletesToRebuild: 32}
}

// NeedsRebuild applies cfg to an engine's current deleted ratio and count.
func NeedsRebuild(e Engine, deletedCount int, cfg RebuildConfig) bool {
	if deletedCount < cfg.MinDeletesToRebuild {
		return false
	}
	return e.DeletedRatio() >= cfg.DeletedRatioThreshold
}

// applyFilter ranks raw candidates against cond via lookup, keeping order,
// and returns at most topK. A nil cond passes everything through.
func applyFilter(candidates []ScoredLabel, topK int, cond *filter.Condition, lookup FieldLookup) ([]ScoredLabel, error) {
	if cond == nil {
		if len(candidates) > topK && topK > 0 {
			candidates = candidates[:topK]
		}
		return candidates, nil
	}

	out := make([]ScoredLabel, 0, topK)
	for _, c := range candidates {
		if topK > 0 && len(out) >= topK {
			break
		}
		fields, ok := lookup(c.Label)
		if !ok {
			continue
		}
		match, err := filter.Eval(*cond, fields)
		if err != nil {
			return nil, err
		}
		if match {
			out = append(out, c)
		}
	}
	return out, nil
}
