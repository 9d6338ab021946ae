package schema

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/openviking/vikingdb/pkg/geo"
	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// GeoPoint is the canonical in-memory form of a geo_point field: decimal
// degrees, latitude first. It is the same shape geo.Coordinate uses so a
// coerced field value can be handed straight to the geo package.
type GeoPoint = geo.Coordinate

// Path is the canonical in-memory form of a path field: a hierarchical
// "/"-separated string. It is a distinct type from string so the filter
// package can tell path-typed fields apart from plain strings at eval time
// and apply prefix rather than exact-equality semantics to must/must_not.
type Path string

// Coerce converts a raw caller-supplied value into the canonical Go type for
// f.Type, applying the same lenient conversions the original collection
// layer applies on write: numeric strings to int64, ints widening to
// float32, 0/1 to bool, ISO-8601 strings to epoch nanoseconds, and
// whitespace-normalized "lat,lng" strings to GeoPoint. A value already in
// canonical form passes through unchanged.
func Coerce(f Field, v any) (any, error) {
	switch f.Type {
	case TypeInt64:
		return coerceInt64(f, v)
	case TypeFloat32:
		return coerceFloat32(f, v)
	case TypeBool:
		return coerceBool(f, v)
	case TypeString:
		return coerceString(f, v)
	case TypeDateTime:
		return coerceDateTime(f, v)
	case TypeGeoPoint:
		return coerceGeoPoint(f, v)
	case TypePath:
		return coercePath(f, v)
	case TypeListString:
		return coerceListString(f, v)
	case TypeListInt64:
		return coerceListInt64(f, v)
	default:
		return v, nil
	}
}

func invalid(f Field, v any) error {
	return vdberrors.New("schema.coerce", vdberrors.RecordInvalid,
		fmt.Errorf("field %q: cannot coerce value %v (%T) to %s", f.Name, v, v, f.Type))
}

func coerceInt64(f Field, v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case float32:
		return int64(x), nil
	case string:
		n, err := strconv.ParseInt(strings.TrimSpace(x), 10, 64)
		if err != nil {
			return 0, invalid(f, v)
		}
		return n, nil
	default:
		return 0, invalid(f, v)
	}
}

func coerceFloat32(f Field, v any) (float32, error) {
	switch x := v.(type) {
	case float32:
		return x, nil
	case float64:
		return float32(x), nil
	case int:
		return float32(x), nil
	case int64:
		return float32(x), nil
	case string:
		n, err := strconv.ParseFloat(strings.TrimSpace(x), 32)
		if err != nil {
			return 0, invalid(f, v)
		}
		return float32(n), nil
	default:
		return 0, invalid(f, v)
	}
}

func coerceBool(f Field, v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case int:
		return x != 0, nil
	case int64:
		return x != 0, nil
	case float64:
		return x != 0, nil
	case string:
		switch strings.TrimSpace(x) {
		case "0", "false", "False", "FALSE":
			return false, nil
		case "1", "true", "True", "TRUE":
			return true, nil
		}
		return false, invalid(f, v)
	default:
		return false, invalid(f, v)
	}
}

// coercePath coerces like a plain string field, then wraps the result as
// Path so must/must_not can recognize it as path-typed.
func coercePath(f Field, v any) (Path, error) {
	s, err := coerceString(f, v)
	if err != nil {
		return "", err
	}
	return Path(s), nil
}

func coerceString(f Field, v any) (string, error) {
	switch x := v.(type) {
	case string:
		return x, nil
	case fmt.Stringer:
		return x.String(), nil
	default:
		return fmt.Sprintf("%v", x), nil
	}
}

// dateTimeLayouts are tried in order; the original accepts both a bare date
// and a full RFC3339 timestamp.
var dateTimeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// coerceDateTime canonicalizes to epoch nanoseconds (int64), the form the
// store and time_range filter both operate on.
func coerceDateTime(f Field, v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case time.Time:
		return x.UnixNano(), nil
	case string:
		s := strings.TrimSpace(x)
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t.UnixNano(), nil
			}
		}
		return 0, invalid(f, v)
	default:
		return 0, invalid(f, v)
	}
}

// coerceGeoPoint accepts a GeoPoint, a [2]float64{lat,lng}, or a
// "lat,lng"/"lat, lng" string, normalizing internal whitespace and
// validating the result lies within [-90,90] x [-180,180].
func coerceGeoPoint(f Field, v any) (GeoPoint, error) {
	var pt GeoPoint
	switch x := v.(type) {
	case GeoPoint:
		pt = x
	case [2]float64:
		pt = GeoPoint{Lat: x[0], Lng: x[1]}
	case string:
		parts := strings.Split(x, ",")
		if len(parts) != 2 {
			return GeoPoint{}, invalid(f, v)
		}
		lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
		lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err1 != nil || err2 != nil {
			return GeoPoint{}, invalid(f, v)
		}
		pt = GeoPoint{Lat: lat, Lng: lng}
	default:
		return GeoPoint{}, invalid(f, v)
	}
	if pt.Lat < -90 || pt.Lat > 90 || pt.Lng < -180 || pt.Lng > 180 {
		return GeoPoint{}, vdberrors.New("schema.coerce", vdberrors.RecordInvalid,
			fmt.Errorf("field %q: geo_point %v out of range", f.Name, pt))
	}
	return pt, nil
}

func coerceListString(f Field, v any) ([]string, error) {
	switch x := v.(type) {
	case []string:
		return x, nil
	case []any:
		out := make([]string, len(x))
		for i, e := range x {
			s, err := coerceString(f, e)
			if err != nil {
				return nil, err
			}
			out[i] = s
		}
		return out, nil
	default:
		return nil, invalid(f, v)
	}
}

func coerceListInt64(f Field, v any) ([]int64, error) {
	switch x := v.(type) {
	case []int64:
		return x, nil
	case []any:
		out := make([]int64, len(x))
		for i, e := range x {
			n, err := coerceInt64(f, e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	default:
		return nil, invalid(f, v)
	}
}
