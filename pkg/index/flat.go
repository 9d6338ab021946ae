package index

import (
	"container/heap"
	"fmt"
	"sync"

	"github.com/openviking/vikingdb/pkg/filter"
	"github.com/openviking/vikingdb/pkg/record"
	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// FlatEngine is a brute-force exact-search Engine: O(n) per query, but
// needs no training and has no rebuild-on-need policy of its own — deletes
// are plain map removals. It backs the flat and flat_hybrid index types.
type FlatEngine struct {
	mu       sync.RWMutex
	dim      int
	distance Distance
	dense    map[record.Label][]float32
	sparse   map[record.Label]map[uint32]float32
	deleted  int
	version  int64
}

// NewFlatEngine returns an empty flat engine over dim-dimensional vectors
// using the given distance metric.
func NewFlatEngine(dim int, distance Distance) *FlatEngine {
	return &FlatEngine{
		dim:      dim,
		distance: distance,
		dense:    make(map[record.Label][]float32),
		sparse:   make(map[record.Label]map[uint32]float32),
	}
}

func (f *FlatEngine) Kind() Kind {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if len(f.sparse) > 0 {
		return KindFlatHybrid
	}
	return KindFlat
}

func (f *FlatEngine) Dim() int { return f.dim }

func (f *FlatEngine) Insert(label record.Label, dense []float32, sparse map[uint32]float32) error {
	if len(dense) != f.dim {
		return vdberrors.New("index.flat.insert", vdberrors.RecordInvalid,
			fmt.Errorf("vector has %d dims, index expects %d", len(dense), f.dim))
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v := make([]float32, len(dense))
	copy(v, dense)
	if f.distance == DistanceCosine {
		normalizeVector(v)
	}
	f.dense[label] = v
	if sparse != nil {
		f.sparse[label] = sparse
	} else {
		delete(f.sparse, label)
	}
	return nil
}

func (f *FlatEngine) Delete(label record.Label) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.dense[label]; !ok {
		return false
	}
	delete(f.dense, label)
	delete(f.sparse, label)
	f.deleted++
	return true
}

func (f *FlatEngine) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.dense)
}

func (f *FlatEngine) DeletedRatio() float64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	total := len(f.dense) + f.deleted
	if total == 0 {
		return 0
	}
	return float64(f.deleted) / float64(total)
}

func (f *FlatEngine) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.dense = make(map[record.Label][]float32)
	f.sparse = make(map[record.Label]map[uint32]float32)
	f.deleted = 0
}

func (f *FlatEngine) Snapshot() []EngineEntry {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]EngineEntry, 0, len(f.dense))
	for label, v := range f.dense {
		cp := make([]float32, len(v))
		copy(cp, v)
		out = append(out, EngineEntry{Label: label, Dense: cp, Sparse: f.sparse[label]})
	}
	return out
}

// Version reports the high-watermark delta version folded into this engine.
func (f *FlatEngine) Version() int64 {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.version
}

// SetVersion advances the engine's version watermark to v; a v at or below
// the current watermark is a no-op, so replay and rebuild paths can call it
// unconditionally without racing each other's progress.
func (f *FlatEngine) SetVersion(v int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if v > f.version {
		f.version = v
	}
}

func (f *FlatEngine) Stats() map[string]any {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return map[string]any{
		"type":      string(f.Kind()),
		"size":      len(f.dense),
		"dimension": f.dim,
		"deleted":   f.deleted,
	}
}

// Search ranks every live vector by combined score. With a filter present
// it scores the full set (the only way to guarantee TopK post-filter
// results on a brute-force index); without one it keeps only a k-sized
// min-heap as it scans.
func (f *FlatEngine) Search(q Query, cond *filter.Condition, lookup FieldLookup) ([]ScoredLabel, error) {
	if len(q.Dense) != f.dim {
		return nil, vdberrors.New("index.flat.search", vdberrors.RecordInvalid,
			fmt.Errorf("query has %d dims, index expects %d", len(q.Dense), f.dim))
	}

	f.mu.RLock()
	dense := make(map[record.Label][]float32, len(f.dense))
	for k, v := range f.dense {
		dense[k] = v
	}
	sparse := make(map[record.Label]map[uint32]float32, len(f.sparse))
	for k, v := range f.sparse {
		sparse[k] = v
	}
	f.mu.RUnlock()

	distFn := DistFunc(f.distance)
	fetchAll := cond != nil

	var h flatHeap
	if !fetchAll {
		h = make(flatHeap, 0, q.TopK)
		heap.Init(&h)
	}
	var all []ScoredLabel

	for label, v := range dense {
		dist := distFn(q.Dense, v)
		score := scoreFromDistance(f.distance, dist)
		if len(q.Sparse) > 0 {
			score = combineScores(score, sparseSimilarity(q.Sparse, sparse[label]), q.SparseAlpha)
		}
		item := ScoredLabel{Label: label, Score: score}
		if fetchAll {
			all = append(all, item)
			continue
		}
		if q.TopK <= 0 || h.Len() < q.TopK {
			heap.Push(&h, item)
		} else if item.Score > h[0].Score {
			heap.Pop(&h)
			heap.Push(&h, item)
		}
	}

	var ranked []ScoredLabel
	if fetchAll {
		ranked = sortDescending(all)
	} else {
		ranked = make([]ScoredLabel, h.Len())
		for i := len(ranked) - 1; i >= 0; i-- {
			ranked[i] = heap.Pop(&h).(ScoredLabel)
		}
	}

	return applyFilter(ranked, q.TopK, cond, lookup)
}

// sortDescending insertion-sorts by Score descending. Only the filtered
// full-scan path calls this, and collections stay small enough in practice
// that this is not worth reaching for a library sort.
func sortDescending(items []ScoredLabel) []ScoredLabel {
	for i := 1; i < len(items); i++ {
		j := i
		for j > 0 && items[j-1].Score < items[j].Score {
			items[j-1], items[j] = items[j], items[j-1]
			j--
		}
	}
	return items
}

// flatHeap is a min-heap on Score: the current worst of the top-K sits at
// the root and is evicted first when a better candidate arrives.
type flatHeap []ScoredLabel

func (h flatHeap) Len() int           { return len(h) }
func (h flatHeap) Less(i, j int) bool { return h[i].Score < h[j].Score }
func (h flatHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *flatHeap) Push(x any) {
	*h = append(*h, x.(ScoredLabel))
}

func (h *flatHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
