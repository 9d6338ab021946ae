package collection

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// DumpFormat selects the on-wire shape Dump writes and Import reads.
type DumpFormat string

const (
	// DumpFormatJSON writes one JSON array of exportedRecord under a
	// metadata envelope.
	DumpFormatJSON DumpFormat = "json"
	// DumpFormatJSONL writes one exportedRecord JSON object per line, with
	// no envelope, so large dumps can be streamed without buffering.
	DumpFormatJSONL DumpFormat = "jsonl"
)

// DumpOptions controls what Dump writes.
type DumpOptions struct {
	Format         DumpFormat
	IncludeVectors bool
}

// DefaultDumpOptions matches the source's default export shape: JSON,
// vectors included.
func DefaultDumpOptions() DumpOptions {
	return DumpOptions{Format: DumpFormatJSON, IncludeVectors: true}
}

// exportedRecord is the on-wire shape of one record: enough to Upsert it
// back unchanged on Import.
type exportedRecord struct {
	PK       string          `json:"pk"`
	Fields   map[string]any  `json:"fields"`
	Vector   []float32       `json:"vector,omitempty"`
	Sparse   map[uint32]float32 `json:"sparse,omitempty"`
	ExpireAt int64           `json:"expire_at,omitempty"`
}

// dumpEnvelope wraps exported records with enough metadata for Import to
// sanity-check it is reading a compatible dump.
type dumpEnvelope struct {
	ID         string           `json:"id"`
	Collection string           `json:"collection"`
	Count      int              `json:"count"`
	Records    []exportedRecord `json:"records"`
}

// DumpStats reports what Dump wrote.
type DumpStats struct {
	ID          string
	RecordCount int
}

// Dump writes every live record in the collection to w in opts.Format. Used
// ahead of a snapshot rebuild or a store migration to get a portable copy of
// the candidate set independent of the store backend.
func (c *Collection) Dump(ctx context.Context, w io.Writer, opts DumpOptions) (*DumpStats, error) {
	records, err := c.store.All(ctx)
	if err != nil {
		return nil, err
	}

	exported := make([]exportedRecord, len(records))
	for i, rec := range records {
		er := exportedRecord{PK: rec.PK, Fields: rec.Fields, Sparse: rec.Sparse, ExpireAt: rec.ExpireAt}
		if opts.IncludeVectors {
			er.Vector = rec.Vector
		}
		exported[i] = er
	}

	dumpID := uuid.New().String()

	switch opts.Format {
	case DumpFormatJSONL:
		enc := json.NewEncoder(w)
		for _, er := range exported {
			if err := enc.Encode(er); err != nil {
				return nil, vdberrors.New("collection.dump", vdberrors.StoreIO, err)
			}
		}
	case DumpFormatJSON, "":
		env := dumpEnvelope{ID: dumpID, Collection: c.meta.Name, Count: len(exported), Records: exported}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(env); err != nil {
			return nil, vdberrors.New("collection.dump", vdberrors.StoreIO, err)
		}
	default:
		return nil, vdberrors.New("collection.dump", vdberrors.RecordInvalid, fmt.Errorf("unsupported dump format: %s", opts.Format))
	}

	return &DumpStats{ID: dumpID, RecordCount: len(exported)}, nil
}

// ImportStats reports what Import applied.
type ImportStats struct {
	Upserted int
}

// Import reads a Dump-produced stream and upserts every record into the
// collection through the normal Upsert path, so it picks up the same
// validation, TTL, and index-fan-out as a live write.
func (c *Collection) Import(ctx context.Context, r io.Reader, format DumpFormat) (*ImportStats, error) {
	var exported []exportedRecord
	switch format {
	case DumpFormatJSONL:
		dec := json.NewDecoder(r)
		for {
			var er exportedRecord
			if err := dec.Decode(&er); err == io.EOF {
				break
			} else if err != nil {
				return nil, vdberrors.New("collection.import", vdberrors.RecordInvalid, err)
			}
			exported = append(exported, er)
		}
	case DumpFormatJSON, "":
		var env dumpEnvelope
		if err := json.NewDecoder(r).Decode(&env); err != nil {
			return nil, vdberrors.New("collection.import", vdberrors.RecordInvalid, err)
		}
		exported = env.Records
	default:
		return nil, vdberrors.New("collection.import", vdberrors.RecordInvalid, fmt.Errorf("unsupported import format: %s", format))
	}

	inputs := make([]UpsertInput, len(exported))
	for i, er := range exported {
		ttlSec := int64(0)
		if er.ExpireAt > 0 {
			if remaining := (er.ExpireAt - nowFn()) / 1e9; remaining > 0 {
				ttlSec = remaining
			}
		}
		inputs[i] = UpsertInput{PK: er.PK, Fields: er.Fields, Vector: er.Vector, Sparse: er.Sparse, TTLSec: ttlSec}
	}

	pks, err := c.Upsert(ctx, inputs)
	if err != nil {
		return nil, err
	}
	return &ImportStats{Upserted: len(pks)}, nil
}
