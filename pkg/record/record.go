// Package record defines the label-addressed record and delta types shared
// by the store and index layers.
package record

import (
	"hash/fnv"
	"strconv"
	"sync/atomic"

	"github.com/oklog/ulid/v2"
)

// Label is the stable uint64 identity every record is addressed by
// internally, independent of whatever primary key the caller declared.
type Label uint64

// LabelFromPK derives a stable label from a user-declared primary key value,
// matching the original implementation's str_to_uint64: a 64-bit FNV-1a hash
// of the key's string form. Distinct keys may collide; the store resolves a
// collision as last-writer-wins at the shared label.
func LabelFromPK(pk string) Label {
	h := fnv.New64a()
	_, _ = h.Write([]byte(pk))
	return Label(h.Sum64())
}

var autoLabelSeq uint64

// NewAutoLabel mints a label for a record with no declared primary key: the
// first 64 bits of a fresh ULID (its 48-bit millisecond timestamp and 16
// random bits) XORed with a multiple of a process-local counter. Labels are
// not ordered: successive calls do not return increasing values.
func NewAutoLabel() Label {
	seq := atomic.AddUint64(&autoLabelSeq, 1)
	id := ulid.Make()
	// Fold the ULID's first 64 bits with the sequence counter; the odd
	// multiplier keeps labels with identical ULID bits distinct.
	hi := uint64(0)
	for _, b := range id[:8] {
		hi = hi<<8 | uint64(b)
	}
	return Label(hi ^ (seq * 0x9E3779B97F4A7C15))
}

// String renders a label the way it is echoed back as __auto_id__.
func (l Label) String() string {
	return strconv.FormatUint(uint64(l), 10)
}

// Record is a fully materialized row: the label it lives at, its scalar
// fields, and its vectors, as returned by fetch/search operations.
type Record struct {
	Label    Label
	PK       string // empty when the collection has no declared primary key
	Fields   map[string]any
	Vector   []float32
	Sparse   map[uint32]float32
	ExpireAt int64 // unix nanos; 0 means no TTL
}

// DeltaOp is the kind of mutation a DeltaRecord carries.
type DeltaOp uint8

const (
	DeltaPut DeltaOp = iota
	DeltaDel
)

// DeltaRecord is one entry in the append-only delta log: a versioned
// mutation that every registered index applies in version order to catch up
// after a restart or to stay current with the candidate store.
type DeltaRecord struct {
	Version int64 // strictly increasing nanosecond timestamp
	Op      DeltaOp
	Label   Label
	Record  *Record // nil when Op == DeltaDel
}
