package store

import (
	"context"
	"sync"

	"github.com/openviking/vikingdb/pkg/record"
	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// MemStore is a volatile, in-process Store — no file, no durability across
// restarts. It backs collections created with a volatile store option and
// is used directly by collection unit tests that don't need SQLite.
type MemStore struct {
	mu       sync.RWMutex
	closed   bool
	version  int64
	records  map[record.Label]*record.Record
	deltaLog []record.DeltaRecord
}

// NewMemStore returns an empty volatile store.
func NewMemStore() *MemStore {
	return &MemStore{records: make(map[record.Label]*record.Record)}
}

func (s *MemStore) Put(_ context.Context, rec *record.Record) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, vdberrors.New("store.put", vdberrors.ResourceClosed, vdberrors.ErrClosed)
	}
	version := advanceVersion(&s.version)
	cp := *rec
	s.records[rec.Label] = &cp
	s.deltaLog = append(s.deltaLog, record.DeltaRecord{Version: version, Op: record.DeltaPut, Label: rec.Label, Record: &cp})
	return version, nil
}

func (s *MemStore) Delete(_ context.Context, label record.Label) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, vdberrors.New("store.delete", vdberrors.ResourceClosed, vdberrors.ErrClosed)
	}
	version := advanceVersion(&s.version)
	delete(s.records, label)
	s.deltaLog = append(s.deltaLog, record.DeltaRecord{Version: version, Op: record.DeltaDel, Label: label})
	return version, nil
}

func (s *MemStore) Get(_ context.Context, label record.Label) (*record.Record, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[label]
	if !ok {
		return nil, false, nil
	}
	cp := *rec
	return &cp, true, nil
}

func (s *MemStore) DeltaAfter(_ context.Context, version int64) ([]record.DeltaRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []record.DeltaRecord
	for _, d := range s.deltaLog {
		if d.Version > version {
			out = append(out, d)
		}
	}
	return out, nil
}

func (s *MemStore) Expire(_ context.Context, now int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, vdberrors.New("store.expire", vdberrors.ResourceClosed, vdberrors.ErrClosed)
	}
	var expired []record.Label
	for label, rec := range s.records {
		if rec.ExpireAt > 0 && rec.ExpireAt <= now {
			expired = append(expired, label)
		}
	}
	for _, label := range expired {
		version := advanceVersion(&s.version)
		delete(s.records, label)
		s.deltaLog = append(s.deltaLog, record.DeltaRecord{Version: version, Op: record.DeltaDel, Label: label})
	}
	return len(expired), nil
}

func (s *MemStore) Count(_ context.Context) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return int64(len(s.records)), nil
}

func (s *MemStore) All(_ context.Context) ([]*record.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*record.Record, 0, len(s.records))
	for _, rec := range s.records {
		cp := *rec
		out = append(out, &cp)
	}
	return out, nil
}

func (s *MemStore) DeleteAll(_ context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, vdberrors.New("store.delete_all", vdberrors.ResourceClosed, vdberrors.ErrClosed)
	}
	n := len(s.records)
	for label := range s.records {
		version := advanceVersion(&s.version)
		s.deltaLog = append(s.deltaLog, record.DeltaRecord{Version: version, Op: record.DeltaDel, Label: label})
	}
	s.records = make(map[record.Label]*record.Record)
	return n, nil
}

func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
