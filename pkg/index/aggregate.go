package index

import (
	"github.com/openviking/vikingdb/pkg/filter"
)

// AggregateRequest parameterizes a count aggregation: count matching
// records overall, or group them by Field and count each group, optionally
// keeping only groups whose count satisfies Having.
type AggregateRequest struct {
	Field  string // empty means a single overall count, no grouping
	Cond   *filter.Condition
	Having *filter.Condition // evaluated against {"count": <float64>}
}

// AggregateGroup is one row of an Aggregate result: Key is nil for the
// ungrouped case.
type AggregateGroup struct {
	Key   any
	Count int64
}

// Aggregate runs req.Cond over fieldsByLabel (already resolved from the
// candidate store), groups by req.Field when set, and applies req.Having
// to the resulting counts.
func Aggregate(fieldsByLabel map[uint64]map[string]any, req AggregateRequest) ([]AggregateGroup, error) {
	if req.Field == "" {
		return aggregateUngrouped(fieldsByLabel, req)
	}

	counts := make(map[any]int64)
	var keyOrder []any
	seen := make(map[any]bool)

	for _, fields := range fieldsByLabel {
		if req.Cond != nil {
			ok, err := filter.Eval(*req.Cond, fields)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		v, ok := fields[req.Field]
		if !ok {
			continue
		}
		counts[v]++
		if !seen[v] {
			seen[v] = true
			keyOrder = append(keyOrder, v)
		}
	}

	out := make([]AggregateGroup, 0, len(keyOrder))
	for _, key := range keyOrder {
		count := counts[key]
		keep, err := passesHaving(req.Having, count)
		if err != nil {
			return nil, err
		}
		if keep {
			out = append(out, AggregateGroup{Key: key, Count: count})
		}
	}
	return out, nil
}

func aggregateUngrouped(fieldsByLabel map[uint64]map[string]any, req AggregateRequest) ([]AggregateGroup, error) {
	var count int64
	for _, fields := range fieldsByLabel {
		if req.Cond != nil {
			ok, err := filter.Eval(*req.Cond, fields)
			if err != nil {
				return nil, err
			}
			if !ok {
				continue
			}
		}
		count++
	}

	keep, err := passesHaving(req.Having, count)
	if err != nil {
		return nil, err
	}
	if !keep {
		return []AggregateGroup{}, nil
	}
	return []AggregateGroup{{Key: nil, Count: count}}, nil
}

func passesHaving(having *filter.Condition, count int64) (bool, error) {
	if having == nil {
		return true, nil
	}
	return filter.Eval(*having, map[string]any{"count": float64(count)})
}
