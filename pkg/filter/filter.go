// Package filter implements the scalar filter DSL used by search, fetch,
// and aggregation operations to restrict candidates by field value.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/openviking/vikingdb/pkg/geo"
	"github.com/openviking/vikingdb/pkg/schema"
	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// Op is one node kind in the filter DSL tree.
type Op string

const (
	OpMust     Op = "must"
	OpMustNot  Op = "must_not"
	OpRange    Op = "range"
	OpRangeOut Op = "range_out"
	OpPrefix   Op = "prefix"
	OpContains Op = "contains"
	OpRegex    Op = "regex"
	OpTimeRange Op = "time_range"
	OpGeoRange Op = "geo_range"
	OpAnd      Op = "and"
	OpOr       Op = "or"
)

// Condition is one node of the filter tree. Leaf nodes (everything but
// and/or) test Field against the node's parameters; and/or nodes combine
// Children.
type Condition struct {
	Op    Op
	Field string

	// must / must_not / contains: field value must equal (or contain) one
	// of Values.
	Values []any

	// range / range_out / time_range: inclusive [Min, Max] bound. A nil Min
	// or Max means unbounded on that side.
	Min, Max *float64

	// prefix / regex: Pattern is the prefix string or compiled pattern
	// source.
	Pattern string
	// PathDepth restricts a path-field prefix match to at most this many
	// path segments below the prefix (the para:"-d=N" restriction); 0 means
	// unrestricted.
	PathDepth int

	// geo_range
	Center   geo.Coordinate
	RadiusKM float64

	Children []Condition
}

// Must builds an equality-in-set leaf: true if fields[field] equals any of values.
func Must(field string, values ...any) Condition {
	return Condition{Op: OpMust, Field: field, Values: values}
}

// MustNot negates Must.
func MustNot(field string, values ...any) Condition {
	return Condition{Op: OpMustNot, Field: field, Values: values}
}

// MustPathDepth is Must restricted to at most depth path segments below the
// matched prefix (the filter DSL's para:"-d=N"), for a path-typed field.
// depth <= 0 is unrestricted, same as Must. Has no effect on non-path fields.
func MustPathDepth(field string, depth int, values ...any) Condition {
	return Condition{Op: OpMust, Field: field, Values: values, PathDepth: depth}
}

// Range builds an inclusive numeric range leaf; pass nil for an unbounded side.
func Range(field string, min, max *float64) Condition {
	return Condition{Op: OpRange, Field: field, Min: min, Max: max}
}

// RangeOut builds the complement of Range: matches values outside [min, max].
func RangeOut(field string, min, max *float64) Condition {
	return Condition{Op: OpRangeOut, Field: field, Min: min, Max: max}
}

// Prefix builds a string/path prefix leaf. depth restricts a path match to
// at most depth additional path segments below the prefix; 0 is unrestricted.
func Prefix(field, prefix string, depth int) Condition {
	return Condition{Op: OpPrefix, Field: field, Pattern: prefix, PathDepth: depth}
}

// Contains builds a substring (string field) or membership (list field) leaf.
func Contains(field string, value any) Condition {
	return Condition{Op: OpContains, Field: field, Values: []any{value}}
}

// Regex builds a regular-expression leaf over a string field.
func Regex(field, pattern string) Condition {
	return Condition{Op: OpRegex, Field: field, Pattern: pattern}
}

// TimeRange builds an inclusive epoch-nanosecond range leaf over a
// date_time field.
func TimeRange(field string, startNanos, endNanos *float64) Condition {
	return Condition{Op: OpTimeRange, Field: field, Min: startNanos, Max: endNanos}
}

// GeoRange builds a leaf matching geo_point fields within radiusKM of center.
func GeoRange(field string, center geo.Coordinate, radiusKM float64) Condition {
	return Condition{Op: OpGeoRange, Field: field, Center: center, RadiusKM: radiusKM}
}

// And combines children with conjunction.
func And(children ...Condition) Condition { return Condition{Op: OpAnd, Children: children} }

// Or combines children with disjunction.
func Or(children ...Condition) Condition { return Condition{Op: OpOr, Children: children} }

// Eval evaluates c against fields, a record's scalar field map.
func Eval(c Condition, fields map[string]any) (bool, error) {
	switch c.Op {
	case OpAnd:
		for _, child := range c.Children {
			ok, err := Eval(child, fields)
			if err != nil {
				return false, err
			}
			if !ok {
				return false, nil
			}
		}
		return true, nil
	case OpOr:
		for _, child := range c.Children {
			ok, err := Eval(child, fields)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
		return false, nil
	case OpMust:
		return evalMust(fields[c.Field], c.Values, c.PathDepth), nil
	case OpMustNot:
		return !evalMust(fields[c.Field], c.Values, c.PathDepth), nil
	case OpRange:
		return evalRange(fields[c.Field], c.Min, c.Max)
	case OpRangeOut:
		in, err := evalRange(fields[c.Field], c.Min, c.Max)
		return !in, err
	case OpTimeRange:
		return evalRange(fields[c.Field], c.Min, c.Max)
	case OpPrefix:
		return evalPrefix(fields[c.Field], c.Pattern, c.PathDepth), nil
	case OpContains:
		return evalContains(fields[c.Field], c.Values[0]), nil
	case OpRegex:
		return evalRegex(fields[c.Field], c.Pattern)
	case OpGeoRange:
		return evalGeoRange(fields[c.Field], c.Center, c.RadiusKM)
	default:
		return false, vdberrors.New("filter.eval", vdberrors.RecordInvalid, fmt.Errorf("unknown filter op %q", c.Op))
	}
}

// evalMust implements must()/must_not()'s dual semantics: exact membership
// for ordinary fields, prefix membership (optionally depth-limited) for
// path-typed fields, where each candidate prefix is normalized so a leading
// "/" is optional.
func evalMust(v any, candidates []any, depth int) bool {
	p, isPath := v.(schema.Path)
	if !isPath {
		return matchAny(v, candidates)
	}
	for _, c := range candidates {
		prefix := fmt.Sprintf("%v", c)
		if !strings.HasPrefix(prefix, "/") {
			prefix = "/" + prefix
		}
		if evalPrefix(string(p), prefix, depth) {
			return true
		}
	}
	return false
}

func matchAny(v any, candidates []any) bool {
	for _, c := range candidates {
		if looseEqual(v, c) {
			return true
		}
	}
	return false
}

func looseEqual(a, b any) bool {
	if a == b {
		return true
	}
	af, aok := toFloat64(a)
	bf, bok := toFloat64(b)
	if aok && bok {
		return af == bf
	}
	return fmt.Sprintf("%v", a) == fmt.Sprintf("%v", b)
}

func toFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

func evalRange(v any, min, max *float64) (bool, error) {
	f, ok := toFloat64(v)
	if !ok {
		return false, nil
	}
	if min != nil && f < *min {
		return false, nil
	}
	if max != nil && f > *max {
		return false, nil
	}
	return true, nil
}

func evalPrefix(v any, prefix string, depth int) bool {
	s, ok := v.(string)
	if p, isPath := v.(schema.Path); isPath {
		s, ok = string(p), true
	}
	if !ok {
		return false
	}
	if !strings.HasPrefix(s, prefix) {
		return false
	}
	if depth <= 0 {
		return true
	}
	rest := strings.TrimPrefix(strings.TrimPrefix(s, prefix), "/")
	if rest == "" {
		return true
	}
	segments := strings.Split(rest, "/")
	return len(segments) <= depth
}

func evalContains(v any, target any) bool {
	switch x := v.(type) {
	case string:
		s, ok := target.(string)
		return ok && strings.Contains(x, s)
	case []string:
		for _, e := range x {
			if looseEqual(e, target) {
				return true
			}
		}
		return false
	case []any:
		for _, e := range x {
			if looseEqual(e, target) {
				return true
			}
		}
		return false
	case []int64:
		for _, e := range x {
			if looseEqual(e, target) {
				return true
			}
		}
		return false
	default:
		return false
	}
}

func evalRegex(v any, pattern string) (bool, error) {
	s, ok := v.(string)
	if !ok {
		return false, nil
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, vdberrors.New("filter.regex", vdberrors.RecordInvalid, err)
	}
	return re.MatchString(s), nil
}

func evalGeoRange(v any, center geo.Coordinate, radiusKM float64) (bool, error) {
	var coord geo.Coordinate
	switch x := v.(type) {
	case geo.Coordinate:
		coord = x
	default:
		return false, nil
	}
	return geo.WithinRadius(center, coord, radiusKM), nil
}

// Sorter describes the optional post-filter sort/limit applied to a result
// set (sorter.sort / sorter.count in the filter DSL).
type Sorter struct {
	Field      string
	Descending bool
	Count      int // 0 means unlimited
}
