package schema

import (
	"fmt"

	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// DimPolicy controls what happens when an upserted vector's length disagrees
// with the collection's declared dimension.
type DimPolicy int

const (
	// DimReject fails the upsert outright. This is the default.
	DimReject DimPolicy = iota
	// DimTruncate drops trailing components when the vector is too long,
	// and zero-pads when it is too short.
	DimTruncate
	// DimPad always zero-pads a short vector and truncates a long one,
	// keeping the leading components — same effect as DimTruncate but kept
	// distinct so callers can name intent explicitly.
	DimPad
)

// DimensionAdapter reconciles an incoming vector's length against a
// collection's target dimension. Adaptation is an explicit opt-in (the
// DimPolicy of pkg/collection's Config, set with WithDimPolicy): by
// default a collection uses DimReject, matching the strict validation the
// core specifies; Truncate/Pad exist for callers migrating between embedder
// dimensions without re-indexing everything up front.
type DimensionAdapter struct {
	Policy DimPolicy
}

// Adapt reconciles vector against targetDim per the adapter's policy. With
// DimReject, any mismatch is a RecordInvalid error.
func (a DimensionAdapter) Adapt(vector []float32, targetDim int) ([]float32, error) {
	if targetDim <= 0 || len(vector) == targetDim {
		return vector, nil
	}

	if a.Policy == DimReject {
		return nil, vdberrors.New("schema.dimension", vdberrors.RecordInvalid,
			fmt.Errorf("vector has %d dimensions, collection expects %d", len(vector), targetDim))
	}

	result := make([]float32, targetDim)
	copy(result, vector)
	return result, nil
}

// Analysis summarizes the dimensions observed across a sample of vectors, so
// a collection can auto-detect its dimension from the first upsert or flag
// that a migration would be needed to unify a mixed-dimension store.
type Analysis struct {
	PrimaryDim     int
	PrimaryCount   int
	Dimensions     map[int]int
	TotalVectors   int
	NeedsMigration bool
}

// Analyze computes an Analysis over observed vector lengths.
func Analyze(lengths []int) Analysis {
	counts := make(map[int]int, len(lengths))
	for _, n := range lengths {
		counts[n]++
	}
	var primary, primaryCount int
	for dim, count := range counts {
		if count > primaryCount {
			primary, primaryCount = dim, count
		}
	}
	return Analysis{
		PrimaryDim:     primary,
		PrimaryCount:   primaryCount,
		Dimensions:     counts,
		TotalVectors:   len(lengths),
		NeedsMigration: len(counts) > 1,
	}
}
