// Package vdberrors defines the error kinds shared across the vikingdb core.
package vdberrors

import "errors"

// Kind classifies an error by the policy the caller should apply, per the
// core's error handling design: some kinds fail an operation outright,
// others are skip-and-log, others just omit a result.
type Kind string

const (
	SchemaInvalid      Kind = "schema_invalid"
	RecordInvalid      Kind = "record_invalid"
	NotFound           Kind = "not_found"
	Conflict           Kind = "conflict"
	StoreIO            Kind = "store_io"
	IndexIO            Kind = "index_io"
	EmbedderFailed     Kind = "embedder_failed"
	AggregationInvalid Kind = "aggregation_invalid"
	ResourceClosed     Kind = "resource_closed"
)

// Sentinel errors for errors.Is comparisons independent of Op/message.
var (
	ErrClosed   = errors.New("vikingdb: resource closed")
	ErrNotFound = errors.New("vikingdb: not found")
	ErrConflict = errors.New("vikingdb: already exists")
)

// Error wraps an underlying error with the operation that produced it and
// the policy kind a caller should dispatch on.
type Error struct {
	Op   string
	Kind Kind
	Err  error
}

func (e *Error) Error() string {
	if e.Op == "" {
		return string(e.Kind) + ": " + e.Err.Error()
	}
	return e.Op + ": " + string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// New builds a kind-tagged error.
func New(op string, kind Kind, err error) error {
	if err == nil {
		return nil
	}
	return &Error{Op: op, Kind: kind, Err: err}
}

// KindOf extracts the Kind of err, if it (or something it wraps) is a *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}
