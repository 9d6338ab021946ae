package index

import (
	"container/heap"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/openviking/vikingdb/pkg/filter"
	"github.com/openviking/vikingdb/pkg/record"
	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// Quantizer compresses a dense vector to a smaller on-disk representation.
// HNSWEngine uses one, when set, to drop the raw vector after construction
// and decode on demand during search — an optional memory/accuracy tradeoff,
// not required for correctness.
type Quantizer interface {
	Encode(vec []float32) ([]byte, error)
	Decode(encoded []byte) ([]float32, error)
}

// hnswNode is one vertex of the graph: its vector (or its quantized form),
// its level, and its neighbor list at each level up to Level.
type hnswNode struct {
	Label     record.Label
	Vector    []float32
	Quantized []byte
	Sparse    map[uint32]float32
	Level     int
	Neighbors [][]record.Label
	Deleted   bool
}

// HNSWEngine implements Hierarchical Navigable Small World search. It backs
// the hnsw and hnsw_hybrid index types; deletes are tombstones (Deleted
// flag) rather than graph surgery, matching the rebuild-on-need design —
// a heavily tombstoned graph gets replaced wholesale rather than repaired
// incrementally.
type HNSWEngine struct {
	mu sync.RWMutex

	dim            int
	distance       Distance
	m              int
	maxM           int
	efConstruction int

	nodes        map[record.Label]*hnswNode
	entryPoint   record.Label
	hasEntry     bool
	deletedCount int
	version      int64

	quantizer Quantizer
	rng       *rand.Rand
}

// NewHNSWEngine builds an empty HNSW engine. m is the max bidirectional
// links per node above layer 0 (layer 0 allows 2*m); efConstruction is the
// dynamic candidate list size used while inserting.
func NewHNSWEngine(dim, m, efConstruction int, distance Distance) *HNSWEngine {
	return &HNSWEngine{
		dim:            dim,
		distance:       distance,
		m:              m,
		maxM:           m * 2,
		efConstruction: efConstruction,
		nodes:          make(map[record.Label]*hnswNode),
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// SetQuantizer installs q; future inserts drop the raw vector once
// quantized.
func (h *HNSWEngine) SetQuantizer(q Quantizer) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.quantizer = q
}

func (h *HNSWEngine) Kind() Kind {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for _, n := range h.nodes {
		if len(n.Sparse) > 0 {
			return KindHNSWHybrid
		}
	}
	return KindHNSW
}

func (h *HNSWEngine) Dim() int { return h.dim }

func (h *HNSWEngine) vectorOf(n *hnswNode) []float32 {
	if n.Vector != nil {
		return n.Vector
	}
	if n.Quantized != nil && h.quantizer != nil {
		if v, err := h.quantizer.Decode(n.Quantized); err == nil {
			return v
		}
	}
	return nil
}

func (h *HNSWEngine) distTo(query []float32, n *hnswNode) float32 {
	v := h.vectorOf(n)
	if v == nil {
		return float32(1e38)
	}
	return DistFunc(h.distance)(query, v)
}

func (h *HNSWEngine) selectLevel() int {
	level := 0
	for h.rng.Float64() < 0.5 && level < 16 {
		level++
	}
	return level
}

func (h *HNSWEngine) Insert(label record.Label, dense []float32, sparse map[uint32]float32) error {
	if len(dense) != h.dim {
		return vdberrors.New("index.hnsw.insert", vdberrors.RecordInvalid,
			fmt.Errorf("vector has %d dims, index expects %d", len(dense), h.dim))
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	stored := append([]float32(nil), dense...)
	if h.distance == DistanceCosine {
		normalizeVector(stored)
	}

	if existing, ok := h.nodes[label]; ok {
		// Re-inserting at a live label replaces it in place — last write
		// wins without perturbing the graph topology.
		existing.Vector = stored
		existing.Sparse = sparse
		existing.Deleted = false
		if h.quantizer != nil {
			if q, err := h.quantizer.Encode(stored); err == nil {
				existing.Quantized = q
				existing.Vector = nil
			}
		}
		return nil
	}

	var quantized []byte
	storedVector := stored
	if h.quantizer != nil {
		if q, err := h.quantizer.Encode(stored); err == nil {
			quantized = q
			storedVector = nil
		}
	}

	level := h.selectLevel()
	node := &hnswNode{
		Label:     label,
		Vector:    storedVector,
		Quantized: quantized,
		Sparse:    sparse,
		Level:     level,
		Neighbors: make([][]record.Label, level+1),
	}
	for i := range node.Neighbors {
		node.Neighbors[i] = []record.Label{}
	}
	h.nodes[label] = node

	if !h.hasEntry {
		h.entryPoint = label
		h.hasEntry = true
		return nil
	}

	currNearest := []record.Label{h.entryPoint}
	entryNode := h.nodes[h.entryPoint]
	for lc := entryNode.Level; lc > level; lc-- {
		currNearest = h.searchLayerClosest(dense, currNearest, 1, lc)
	}

	for lc := level; lc >= 0; lc-- {
		m := h.m
		if lc == 0 {
			m = h.maxM
		}
		candidates := h.searchLayer(dense, currNearest, h.efConstruction, lc)
		neighbors := h.selectNeighborsHeuristic(dense, candidates, m)

		node.Neighbors[lc] = neighbors
		for _, neighbor := range neighbors {
			h.addConnection(neighbor, label, lc)

			neighborNode := h.nodes[neighbor]
			maxConn := h.m
			if lc == 0 {
				maxConn = h.maxM
			}
			if lc < len(neighborNode.Neighbors) && len(neighborNode.Neighbors[lc]) > maxConn {
				neighborVec := h.vectorOf(neighborNode)
				if neighborVec != nil {
					neighborNode.Neighbors[lc] = h.selectNeighborsHeuristic(neighborVec, neighborNode.Neighbors[lc], maxConn)
				}
			}
		}
		currNearest = neighbors
	}

	if level > h.nodes[h.entryPoint].Level {
		h.entryPoint = label
	}
	return nil
}

func (h *HNSWEngine) searchLayer(query []float32, entryPoints []record.Label, ef, layer int) []record.Label {
	visited := make(map[record.Label]bool, ef*2)
	candidates := &distHeap{}
	dynamicList := &distHeap{}

	for _, point := range entryPoints {
		dist := h.distTo(query, h.nodes[point])
		heap.Push(candidates, &heapItem{label: point, dist: dist})
		heap.Push(dynamicList, &heapItem{label: point, dist: -dist})
		visited[point] = true
	}

	for candidates.Len() > 0 {
		if dynamicList.Len() > 0 {
			lowerBound := (*candidates)[0].dist
			if lowerBound > -(*dynamicList)[0].dist {
				break
			}
		}
		current := heap.Pop(candidates).(*heapItem)
		currentNode := h.nodes[current.label]
		if layer >= len(currentNode.Neighbors) {
			continue
		}
		for _, neighbor := range currentNode.Neighbors[layer] {
			if visited[neighbor] {
				continue
			}
			visited[neighbor] = true
			dist := h.distTo(query, h.nodes[neighbor])
			if dynamicList.Len() < ef || dist < -(*dynamicList)[0].dist {
				heap.Push(candidates, &heapItem{label: neighbor, dist: dist})
				heap.Push(dynamicList, &heapItem{label: neighbor, dist: -dist})
				if dynamicList.Len() > ef {
					heap.Pop(dynamicList)
				}
			}
		}
	}

	result := make([]record.Label, 0, dynamicList.Len())
	for dynamicList.Len() > 0 {
		result = append(result, heap.Pop(dynamicList).(*heapItem).label)
	}
	for i, j := 0, len(result)-1; i < j; i, j = i+1, j-1 {
		result[i], result[j] = result[j], result[i]
	}
	return result
}

func (h *HNSWEngine) searchLayerClosest(query []float32, entryPoints []record.Label, num, layer int) []record.Label {
	candidates := h.searchLayer(query, entryPoints, num, layer)
	if len(candidates) > num {
		return candidates[:num]
	}
	return candidates
}

func (h *HNSWEngine) selectNeighborsHeuristic(query []float32, candidates []record.Label, m int) []record.Label {
	if len(candidates) <= m {
		return candidates
	}
	type distPair struct {
		label record.Label
		dist  float32
	}
	pairs := make([]distPair, len(candidates))
	for i, c := range candidates {
		pairs[i] = distPair{label: c, dist: h.distTo(query, h.nodes[c])}
	}
	for i := 0; i < len(pairs)-1; i++ {
		for j := i + 1; j < len(pairs); j++ {
			if pairs[j].dist < pairs[i].dist {
				pairs[i], pairs[j] = pairs[j], pairs[i]
			}
		}
	}
	result := make([]record.Label, 0, m)
	for i := 0; i < m && i < len(pairs); i++ {
		result = append(result, pairs[i].label)
	}
	return result
}

func (h *HNSWEngine) addConnection(from, to record.Label, layer int) {
	fromNode, exists := h.nodes[from]
	if !exists || layer >= len(fromNode.Neighbors) {
		return
	}
	for _, n := range fromNode.Neighbors[layer] {
		if n == to {
			return
		}
	}
	fromNode.Neighbors[layer] = append(fromNode.Neighbors[layer], to)
}

// Search implements Engine.Search: HNSW approximate search down to layer 0,
// hybrid-scored and filtered the same way FlatEngine is.
func (h *HNSWEngine) Search(q Query, cond *filter.Condition, lookup FieldLookup) ([]ScoredLabel, error) {
	if len(q.Dense) != h.dim {
		return nil, vdberrors.New("index.hnsw.search", vdberrors.RecordInvalid,
			fmt.Errorf("query has %d dims, index expects %d", len(q.Dense), h.dim))
	}

	h.mu.RLock()
	defer h.mu.RUnlock()

	if !h.hasEntry {
		return nil, nil
	}

	ef := q.TopK * 4
	if ef < 50 {
		ef = 50
	}
	// A filter narrows the surviving set, so widen the candidate pool the
	// graph search returns before filtering trims it back down.
	if cond != nil {
		ef *= 4
	}

	entryNode := h.nodes[h.entryPoint]
	currNearest := []record.Label{h.entryPoint}
	for layer := entryNode.Level; layer > 0; layer-- {
		currNearest = h.searchLayerClosest(q.Dense, currNearest, 1, layer)
	}
	candidates := h.searchLayer(q.Dense, currNearest, ef, 0)

	ranked := make([]ScoredLabel, 0, len(candidates))
	for _, label := range candidates {
		node, ok := h.nodes[label]
		if !ok || node.Deleted {
			continue
		}
		dist := h.distTo(q.Dense, node)
		score := scoreFromDistance(h.distance, dist)
		if len(q.Sparse) > 0 {
			score = combineScores(score, sparseSimilarity(q.Sparse, node.Sparse), q.SparseAlpha)
		}
		ranked = append(ranked, ScoredLabel{Label: label, Score: score})
	}
	ranked = sortDescending(ranked)

	return applyFilter(ranked, q.TopK, cond, lookup)
}

func (h *HNSWEngine) Delete(label record.Label) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	node, exists := h.nodes[label]
	if !exists || node.Deleted {
		return false
	}
	node.Deleted = true
	h.deletedCount++

	if h.entryPoint == label {
		h.hasEntry = false
		for candidate, n := range h.nodes {
			if !n.Deleted {
				h.entryPoint = candidate
				h.hasEntry = true
				break
			}
		}
	}
	return true
}

func (h *HNSWEngine) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	count := 0
	for _, n := range h.nodes {
		if !n.Deleted {
			count++
		}
	}
	return count
}

func (h *HNSWEngine) DeletedRatio() float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := len(h.nodes)
	if total == 0 {
		return 0
	}
	return float64(h.deletedCount) / float64(total)
}

func (h *HNSWEngine) Clear() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.nodes = make(map[record.Label]*hnswNode)
	h.hasEntry = false
	h.deletedCount = 0
}

func (h *HNSWEngine) Snapshot() []EngineEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]EngineEntry, 0, len(h.nodes))
	for _, n := range h.nodes {
		if n.Deleted {
			continue
		}
		v := h.vectorOf(n)
		cp := append([]float32(nil), v...)
		out = append(out, EngineEntry{Label: n.Label, Dense: cp, Sparse: n.Sparse})
	}
	return out
}

// Version reports the high-watermark delta version folded into this engine.
func (h *HNSWEngine) Version() int64 {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.version
}

// SetVersion advances the engine's version watermark to v; a v at or below
// the current watermark is a no-op, so replay and rebuild paths can call it
// unconditionally without racing each other's progress.
func (h *HNSWEngine) SetVersion(v int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if v > h.version {
		h.version = v
	}
}

func (h *HNSWEngine) Stats() map[string]any {
	h.mu.RLock()
	defer h.mu.RUnlock()

	active, edges, maxLevel := 0, 0, 0
	for _, n := range h.nodes {
		if n.Deleted {
			continue
		}
		active++
		if n.Level > maxLevel {
			maxLevel = n.Level
		}
		for _, neighbors := range n.Neighbors {
			edges += len(neighbors)
		}
	}
	avgEdges := 0.0
	if active > 0 {
		avgEdges = float64(edges) / float64(active)
	}
	return map[string]any{
		"type":               string(h.Kind()),
		"total_nodes":        len(h.nodes),
		"active_nodes":       active,
		"deleted_nodes":      h.deletedCount,
		"avg_edges_per_node": avgEdges,
		"max_level":          maxLevel,
		"m":                  h.m,
		"ef_construction":    h.efConstruction,
	}
}

type heapItem struct {
	label record.Label
	dist  float32
}

type distHeap []*heapItem

func (h distHeap) Len() int           { return len(h) }
func (h distHeap) Less(i, j int) bool { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *distHeap) Push(x any) {
	*h = append(*h, x.(*heapItem))
}

func (h *distHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
