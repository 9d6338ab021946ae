package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/openviking/vikingdb/pkg/record"
	"github.com/stretchr/testify/require"
)

// newStores returns one of each Store implementation under test, so every
// scenario below runs against both the volatile and durable backends.
func newStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	sqliteStore, err := OpenSQLiteCandidateStore(context.Background(), filepath.Join(dir, "candidates.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"mem":    NewMemStore(),
		"sqlite": sqliteStore,
	}
}

func TestStorePutGetRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			rec := &record.Record{
				Label:  record.Label(1),
				PK:     "doc-1",
				Fields: map[string]any{"title": "hello"},
				Vector: []float32{0.1, 0.2, 0.3},
				Sparse: map[uint32]float32{5: 0.5},
			}
			version, err := s.Put(ctx, rec)
			require.NoError(t, err)
			require.Greater(t, version, int64(0))

			got, ok, err := s.Get(ctx, rec.Label)
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, rec.PK, got.PK)
			require.Equal(t, rec.Fields["title"], got.Fields["title"])
			require.InDeltaSlice(t, rec.Vector, got.Vector, 1e-6)
			require.InDelta(t, rec.Sparse[5], got.Sparse[5], 1e-6)
		})
	}
}

func TestStoreDeleteRemoves(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			rec := &record.Record{Label: record.Label(2), Vector: []float32{1, 2}}
			_, err := s.Put(ctx, rec)
			require.NoError(t, err)

			_, err = s.Delete(ctx, rec.Label)
			require.NoError(t, err)

			_, ok, err := s.Get(ctx, rec.Label)
			require.NoError(t, err)
			require.False(t, ok)
		})
	}
}

func TestStoreDeltaAfterReplaysInOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			v1, err := s.Put(ctx, &record.Record{Label: record.Label(10), Vector: []float32{1}})
			require.NoError(t, err)
			v2, err := s.Put(ctx, &record.Record{Label: record.Label(11), Vector: []float32{2}})
			require.NoError(t, err)
			_, err = s.Delete(ctx, record.Label(10))
			require.NoError(t, err)

			deltas, err := s.DeltaAfter(ctx, v1)
			require.NoError(t, err)
			require.Len(t, deltas, 2)
			require.Equal(t, v2, deltas[0].Version)
			require.Equal(t, record.DeltaDel, deltas[1].Op)
		})
	}
}

func TestStoreDeleteAllResetsCount(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 5; i++ {
				_, err := s.Put(ctx, &record.Record{Label: record.Label(i + 1), Vector: []float32{float32(i)}})
				require.NoError(t, err)
			}
			n, err := s.DeleteAll(ctx)
			require.NoError(t, err)
			require.Equal(t, 5, n)

			count, err := s.Count(ctx)
			require.NoError(t, err)
			require.Zero(t, count)
		})
	}
}

func TestStoreAllReturnsLiveRecords(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				_, err := s.Put(ctx, &record.Record{Label: record.Label(i + 1), PK: string(rune('a' + i)), Vector: []float32{float32(i)}})
				require.NoError(t, err)
			}
			_, err := s.Delete(ctx, record.Label(2))
			require.NoError(t, err)

			all, err := s.All(ctx)
			require.NoError(t, err)
			require.Len(t, all, 2)

			labels := map[record.Label]bool{}
			for _, rec := range all {
				labels[rec.Label] = true
			}
			require.True(t, labels[record.Label(1)])
			require.True(t, labels[record.Label(3)])
			require.False(t, labels[record.Label(2)])
		})
	}
}

func TestStoreExpireSweepsTTL(t *testing.T) {
	ctx := context.Background()
	for name, s := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.Put(ctx, &record.Record{Label: record.Label(20), Vector: []float32{1}, ExpireAt: 100})
			require.NoError(t, err)
			_, err = s.Put(ctx, &record.Record{Label: record.Label(21), Vector: []float32{2}, ExpireAt: 0})
			require.NoError(t, err)

			n, err := s.Expire(ctx, 200)
			require.NoError(t, err)
			require.Equal(t, 1, n)

			_, ok, err := s.Get(ctx, record.Label(20))
			require.NoError(t, err)
			require.False(t, ok)

			_, ok, err = s.Get(ctx, record.Label(21))
			require.NoError(t, err)
			require.True(t, ok)
		})
	}
}
