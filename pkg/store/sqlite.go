package store

import (
	"context"
	"database/sql"
	"sync"

	"github.com/openviking/vikingdb/internal/codec"
	"github.com/openviking/vikingdb/pkg/record"
	"github.com/openviking/vikingdb/pkg/vdberrors"

	_ "modernc.org/sqlite" // driver registration
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS candidates (
	label       INTEGER PRIMARY KEY,
	pk          TEXT,
	fields      TEXT NOT NULL DEFAULT '{}',
	vector      BLOB,
	sparse      BLOB,
	expire_at   INTEGER NOT NULL DEFAULT 0,
	version     INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_candidates_expire_at ON candidates(expire_at) WHERE expire_at > 0;

CREATE TABLE IF NOT EXISTS delta_log (
	version INTEGER PRIMARY KEY,
	op      INTEGER NOT NULL,
	label   INTEGER NOT NULL
);
`

// SQLiteCandidateStore is the durable Store implementation: one SQLite file
// per collection holding the current candidate rows plus an append-only
// delta log table used by delta_after(version) to replay catch-up deltas.
type SQLiteCandidateStore struct {
	mu      sync.Mutex // serializes version assignment, the system's single write point
	db      *sql.DB
	closed  bool
	version int64
}

// OpenSQLiteCandidateStore opens (creating if absent) a candidate store at
// path, using the WAL/NORMAL pragma combination the teacher's SQLite store
// uses for concurrent-reader throughput.
func OpenSQLiteCandidateStore(ctx context.Context, path string) (*SQLiteCandidateStore, error) {
	db, err := sql.Open("sqlite", path+"?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=10000")
	if err != nil {
		return nil, vdberrors.New("store.open", vdberrors.StoreIO, err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, vdberrors.New("store.open", vdberrors.StoreIO, err)
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, vdberrors.New("store.open", vdberrors.StoreIO, err)
	}

	s := &SQLiteCandidateStore{db: db}
	row := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM delta_log")
	if err := row.Scan(&s.version); err != nil {
		_ = db.Close()
		return nil, vdberrors.New("store.open", vdberrors.StoreIO, err)
	}
	return s, nil
}

func (s *SQLiteCandidateStore) nextVersion() int64 {
	return advanceVersion(&s.version)
}

func (s *SQLiteCandidateStore) Put(ctx context.Context, rec *record.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, vdberrors.New("store.put", vdberrors.ResourceClosed, vdberrors.ErrClosed)
	}

	fieldsJSON, err := codec.EncodeMetadata(rec.Fields)
	if err != nil {
		return 0, vdberrors.New("store.put", vdberrors.RecordInvalid, err)
	}
	var vectorBytes []byte
	if rec.Vector != nil {
		vectorBytes, err = codec.EncodeVector(rec.Vector)
		if err != nil {
			return 0, vdberrors.New("store.put", vdberrors.RecordInvalid, err)
		}
	}
	sparseBytes, err := codec.EncodeSparse(rec.Sparse)
	if err != nil {
		return 0, vdberrors.New("store.put", vdberrors.RecordInvalid, err)
	}

	version := s.nextVersion()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, vdberrors.New("store.put", vdberrors.StoreIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO candidates (label, pk, fields, vector, sparse, expire_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET
			pk = excluded.pk, fields = excluded.fields, vector = excluded.vector,
			sparse = excluded.sparse, expire_at = excluded.expire_at, version = excluded.version`,
		int64(rec.Label), rec.PK, fieldsJSON, vectorBytes, sparseBytes, rec.ExpireAt, version)
	if err != nil {
		return 0, vdberrors.New("store.put", vdberrors.StoreIO, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO delta_log (version, op, label) VALUES (?, ?, ?)`,
		version, int(record.DeltaPut), int64(rec.Label)); err != nil {
		return 0, vdberrors.New("store.put", vdberrors.StoreIO, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, vdberrors.New("store.put", vdberrors.StoreIO, err)
	}
	return version, nil
}

func (s *SQLiteCandidateStore) Delete(ctx context.Context, label record.Label) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, vdberrors.New("store.delete", vdberrors.ResourceClosed, vdberrors.ErrClosed)
	}

	version := s.nextVersion()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, vdberrors.New("store.delete", vdberrors.StoreIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE label = ?`, int64(label)); err != nil {
		return 0, vdberrors.New("store.delete", vdberrors.StoreIO, err)
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO delta_log (version, op, label) VALUES (?, ?, ?)`,
		version, int(record.DeltaDel), int64(label)); err != nil {
		return 0, vdberrors.New("store.delete", vdberrors.StoreIO, err)
	}
	if err := tx.Commit(); err != nil {
		return 0, vdberrors.New("store.delete", vdberrors.StoreIO, err)
	}
	return version, nil
}

func (s *SQLiteCandidateStore) Get(ctx context.Context, label record.Label) (*record.Record, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT pk, fields, vector, sparse, expire_at FROM candidates WHERE label = ?`, int64(label))

	var pk, fieldsJSON string
	var vectorBytes, sparseBytes []byte
	var expireAt int64
	if err := row.Scan(&pk, &fieldsJSON, &vectorBytes, &sparseBytes, &expireAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, false, nil
		}
		return nil, false, vdberrors.New("store.get", vdberrors.StoreIO, err)
	}

	rec, err := s.decodeRow(label, pk, fieldsJSON, vectorBytes, sparseBytes, expireAt)
	if err != nil {
		return nil, false, err
	}
	return rec, true, nil
}

func (s *SQLiteCandidateStore) decodeRow(label record.Label, pk, fieldsJSON string, vectorBytes, sparseBytes []byte, expireAt int64) (*record.Record, error) {
	fields, err := codec.DecodeMetadata(fieldsJSON)
	if err != nil {
		return nil, vdberrors.New("store.get", vdberrors.StoreIO, err)
	}
	var vector []float32
	if len(vectorBytes) > 0 {
		vector, err = codec.DecodeVector(vectorBytes)
		if err != nil {
			return nil, vdberrors.New("store.get", vdberrors.StoreIO, err)
		}
	}
	sparse, err := codec.DecodeSparse(sparseBytes)
	if err != nil {
		return nil, vdberrors.New("store.get", vdberrors.StoreIO, err)
	}
	return &record.Record{
		Label: label, PK: pk, Fields: fields, Vector: vector, Sparse: sparse, ExpireAt: expireAt,
	}, nil
}

func (s *SQLiteCandidateStore) DeltaAfter(ctx context.Context, version int64) ([]record.DeltaRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT version, op, label FROM delta_log WHERE version > ? ORDER BY version ASC`, version)
	if err != nil {
		return nil, vdberrors.New("store.delta_after", vdberrors.StoreIO, err)
	}
	defer rows.Close()

	var out []record.DeltaRecord
	for rows.Next() {
		var d record.DeltaRecord
		var op int
		var label int64
		if err := rows.Scan(&d.Version, &op, &label); err != nil {
			return nil, vdberrors.New("store.delta_after", vdberrors.StoreIO, err)
		}
		d.Op = record.DeltaOp(op)
		d.Label = record.Label(label)
		if d.Op == record.DeltaPut {
			rec, ok, err := s.Get(ctx, d.Label)
			if err != nil {
				return nil, err
			}
			if ok {
				d.Record = rec
			} else {
				// Record was superseded by a later delete; treat as a
				// no-op put so replay doesn't fabricate stale data.
				continue
			}
		}
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, vdberrors.New("store.delta_after", vdberrors.StoreIO, err)
	}
	return out, nil
}

func (s *SQLiteCandidateStore) Expire(ctx context.Context, now int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, vdberrors.New("store.expire", vdberrors.ResourceClosed, vdberrors.ErrClosed)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT label FROM candidates WHERE expire_at > 0 AND expire_at <= ?`, now)
	if err != nil {
		return 0, vdberrors.New("store.expire", vdberrors.StoreIO, err)
	}
	var labels []int64
	for rows.Next() {
		var label int64
		if err := rows.Scan(&label); err != nil {
			rows.Close()
			return 0, vdberrors.New("store.expire", vdberrors.StoreIO, err)
		}
		labels = append(labels, label)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, vdberrors.New("store.expire", vdberrors.StoreIO, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, vdberrors.New("store.expire", vdberrors.StoreIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, label := range labels {
		version := s.nextVersion()
		if _, err := tx.ExecContext(ctx, `DELETE FROM candidates WHERE label = ?`, label); err != nil {
			return 0, vdberrors.New("store.expire", vdberrors.StoreIO, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO delta_log (version, op, label) VALUES (?, ?, ?)`,
			version, int(record.DeltaDel), label); err != nil {
			return 0, vdberrors.New("store.expire", vdberrors.StoreIO, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, vdberrors.New("store.expire", vdberrors.StoreIO, err)
	}
	return len(labels), nil
}

func (s *SQLiteCandidateStore) Count(ctx context.Context) (int64, error) {
	var n int64
	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM candidates`)
	if err := row.Scan(&n); err != nil {
		return 0, vdberrors.New("store.count", vdberrors.StoreIO, err)
	}
	return n, nil
}

func (s *SQLiteCandidateStore) All(ctx context.Context) ([]*record.Record, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, pk, fields, vector, sparse, expire_at FROM candidates`)
	if err != nil {
		return nil, vdberrors.New("store.all", vdberrors.StoreIO, err)
	}
	defer rows.Close()

	var out []*record.Record
	for rows.Next() {
		var label int64
		var pk, fieldsJSON string
		var vectorBytes, sparseBytes []byte
		var expireAt int64
		if err := rows.Scan(&label, &pk, &fieldsJSON, &vectorBytes, &sparseBytes, &expireAt); err != nil {
			return nil, vdberrors.New("store.all", vdberrors.StoreIO, err)
		}
		rec, err := s.decodeRow(record.Label(label), pk, fieldsJSON, vectorBytes, sparseBytes, expireAt)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, vdberrors.New("store.all", vdberrors.StoreIO, err)
	}
	return out, nil
}

func (s *SQLiteCandidateStore) DeleteAll(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, vdberrors.New("store.delete_all", vdberrors.ResourceClosed, vdberrors.ErrClosed)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT label FROM candidates`)
	if err != nil {
		return 0, vdberrors.New("store.delete_all", vdberrors.StoreIO, err)
	}
	var labels []int64
	for rows.Next() {
		var label int64
		if err := rows.Scan(&label); err != nil {
			rows.Close()
			return 0, vdberrors.New("store.delete_all", vdberrors.StoreIO, err)
		}
		labels = append(labels, label)
	}
	rows.Close()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, vdberrors.New("store.delete_all", vdberrors.StoreIO, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM candidates`); err != nil {
		return 0, vdberrors.New("store.delete_all", vdberrors.StoreIO, err)
	}
	for _, label := range labels {
		version := s.nextVersion()
		if _, err := tx.ExecContext(ctx, `INSERT INTO delta_log (version, op, label) VALUES (?, ?, ?)`,
			version, int(record.DeltaDel), label); err != nil {
			return 0, vdberrors.New("store.delete_all", vdberrors.StoreIO, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, vdberrors.New("store.delete_all", vdberrors.StoreIO, err)
	}
	return len(labels), nil
}

func (s *SQLiteCandidateStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	if err := s.db.Close(); err != nil {
		return vdberrors.New("store.close", vdberrors.StoreIO, err)
	}
	return nil
}
