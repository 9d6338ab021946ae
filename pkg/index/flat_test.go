package index

import (
	"testing"

	"github.com/openviking/vikingdb/pkg/filter"
	"github.com/openviking/vikingdb/pkg/record"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatEngineInsertSearch(t *testing.T) {
	e := NewFlatEngine(3, DistanceCosine)
	require.NoError(t, e.Insert(record.Label(1), []float32{1, 0, 0}, nil))
	require.NoError(t, e.Insert(record.Label(2), []float32{0, 1, 0}, nil))
	require.NoError(t, e.Insert(record.Label(3), []float32{0.9, 0.1, 0}, nil))

	hits, err := e.Search(Query{Dense: []float32{1, 0, 0}, TopK: 2}, nil, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, record.Label(1), hits[0].Label)
}

func TestFlatEngineDeleteRemoves(t *testing.T) {
	e := NewFlatEngine(2, DistanceL2)
	require.NoError(t, e.Insert(record.Label(1), []float32{1, 1}, nil))
	assert.Equal(t, 1, e.Size())

	ok := e.Delete(record.Label(1))
	assert.True(t, ok)
	assert.Equal(t, 0, e.Size())
	assert.False(t, e.Delete(record.Label(1)))
}

func TestFlatEngineDeletedRatio(t *testing.T) {
	e := NewFlatEngine(1, DistanceL2)
	for i := 0; i < 4; i++ {
		require.NoError(t, e.Insert(record.Label(i+1), []float32{float32(i)}, nil))
	}
	e.Delete(record.Label(1))
	assert.InDelta(t, 0.25, e.DeletedRatio(), 1e-9)
}

func TestFlatEngineSearchWithFilter(t *testing.T) {
	e := NewFlatEngine(2, DistanceL2)
	require.NoError(t, e.Insert(record.Label(1), []float32{0, 0}, nil))
	require.NoError(t, e.Insert(record.Label(2), []float32{0, 0}, nil))

	fieldsByLabel := map[record.Label]map[string]any{
		record.Label(1): {"status": "active"},
		record.Label(2): {"status": "archived"},
	}
	lookup := func(l record.Label) (map[string]any, bool) {
		f, ok := fieldsByLabel[l]
		return f, ok
	}

	cond := filter.Must("status", "active")
	hits, err := e.Search(Query{Dense: []float32{0, 0}, TopK: 10}, &cond, lookup)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, record.Label(1), hits[0].Label)
}

func TestFlatEngineHybridScoring(t *testing.T) {
	e := NewFlatEngine(2, DistanceCosine)
	require.NoError(t, e.Insert(record.Label(1), []float32{1, 0}, map[uint32]float32{1: 1.0}))
	require.NoError(t, e.Insert(record.Label(2), []float32{1, 0}, map[uint32]float32{2: 1.0}))

	hits, err := e.Search(Query{
		Dense:       []float32{1, 0},
		Sparse:      map[uint32]float32{1: 1.0},
		SparseAlpha: 1.0,
		TopK:        2,
	}, nil, nil)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, record.Label(1), hits[0].Label, "label 1 shares the sparse term and should rank first")
}

func TestFlatEngineSnapshotAndClear(t *testing.T) {
	e := NewFlatEngine(2, DistanceL2)
	require.NoError(t, e.Insert(record.Label(1), []float32{1, 2}, nil))
	require.NoError(t, e.Insert(record.Label(2), []float32{3, 4}, nil))

	snap := e.Snapshot()
	assert.Len(t, snap, 2)

	e.Clear()
	assert.Equal(t, 0, e.Size())
	assert.Empty(t, e.Snapshot())
}
