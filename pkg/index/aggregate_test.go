package index

import (
	"testing"

	"github.com/openviking/vikingdb/pkg/filter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fieldSet() map[uint64]map[string]any {
	return map[uint64]map[string]any{
		1: {"category": "a", "status": "active"},
		2: {"category": "a", "status": "archived"},
		3: {"category": "b", "status": "active"},
	}
}

func TestAggregateUngrouped(t *testing.T) {
	groups, err := Aggregate(fieldSet(), AggregateRequest{})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(3), groups[0].Count)
}

func TestAggregateUngroupedWithFilter(t *testing.T) {
	cond := filter.Must("status", "active")
	groups, err := Aggregate(fieldSet(), AggregateRequest{Cond: &cond})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, int64(2), groups[0].Count)
}

func TestAggregateGroupBy(t *testing.T) {
	groups, err := Aggregate(fieldSet(), AggregateRequest{Field: "category"})
	require.NoError(t, err)
	require.Len(t, groups, 2)

	totals := map[any]int64{}
	for _, g := range groups {
		totals[g.Key] = g.Count
	}
	assert.Equal(t, int64(2), totals["a"])
	assert.Equal(t, int64(1), totals["b"])
}

func TestAggregateGroupByWithHaving(t *testing.T) {
	min := 2.0
	having := filter.Range("count", &min, nil)
	groups, err := Aggregate(fieldSet(), AggregateRequest{Field: "category", Having: &having})
	require.NoError(t, err)
	require.Len(t, groups, 1)
	assert.Equal(t, "a", groups[0].Key)
}
