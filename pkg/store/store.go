// Package store implements the durable candidate store and append-only
// delta log a collection's indexes replay to stay current.
package store

import (
	"context"

	"github.com/openviking/vikingdb/pkg/record"
)

// Store is the durable source of truth for a collection's records. A
// collection owns exactly one Store; an index recovered from a snapshot
// replays the Store's delta log to catch up with it.
//
// Implementations serialize writers internally — Put/Delete/Expire assign
// the strictly increasing delta version that is the system's serialization
// point, per the concurrency model. Get/DeltaAfter/Count may run concurrently
// with writers and with each other.
type Store interface {
	// Put upserts rec at its label, returning the delta version assigned to
	// the write. Last-writer-wins at the label: a second Put with the same
	// label replaces the stored record outright, labels are not merged.
	Put(ctx context.Context, rec *record.Record) (version int64, err error)

	// Delete removes the record at label, returning the delta version
	// assigned to the tombstone. Deleting a label that does not exist is
	// not an error; it still assigns and logs a delta so attached indexes
	// converge on an empty entry either way.
	Delete(ctx context.Context, label record.Label) (version int64, err error)

	// Get fetches the current record at label. ok is false if the label is
	// absent or has been deleted.
	Get(ctx context.Context, label record.Label) (rec *record.Record, ok bool, err error)

	// DeltaAfter returns every delta strictly newer than version, in
	// version order, so a reattaching or rebuilding index can catch up.
	DeltaAfter(ctx context.Context, version int64) ([]record.DeltaRecord, error)

	// Expire deletes every record whose ExpireAt is nonzero and <= now,
	// logging one DeltaDel per expired label, and returns the count
	// removed. Called periodically by the lifecycle scheduler.
	Expire(ctx context.Context, now int64) (count int, err error)

	// Count returns the number of live (non-deleted) records.
	Count(ctx context.Context) (int64, error)

	// All returns every live record. Used by index builds and rebuilds,
	// SearchByScalar, TTL sweeps and aggregation, none of which go through
	// an index.
	All(ctx context.Context) ([]*record.Record, error)

	// DeleteAll removes every record, logging a single delta log entry per
	// removed label, and returns the count removed.
	DeleteAll(ctx context.Context) (count int, err error)

	// Close releases any resources held by the store (open DB handles,
	// file descriptors). After Close, Put, Delete, Expire and DeleteAll
	// return ResourceClosed errors; Get, DeltaAfter, Count and All do not
	// check for a closed store.
	Close() error
}
