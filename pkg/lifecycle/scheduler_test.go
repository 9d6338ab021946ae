package lifecycle

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeCollection struct {
	name         string
	ttlCalls     int64
	rebuildCalls int64
	persistCalls int64
	failRebuild  bool
}

func (f *fakeCollection) Name() string { return f.name }

func (f *fakeCollection) ExpireTTL(_ context.Context) (int, error) {
	atomic.AddInt64(&f.ttlCalls, 1)
	return 0, nil
}

func (f *fakeCollection) RebuildAndPersist(_ context.Context) error {
	atomic.AddInt64(&f.rebuildCalls, 1)
	if f.failRebuild {
		return assert.AnError
	}
	return nil
}

func (f *fakeCollection) Persist() error {
	atomic.AddInt64(&f.persistCalls, 1)
	return nil
}

func TestSchedulerRunsBothJobsAtTheirIntervals(t *testing.T) {
	col := &fakeCollection{name: "docs"}
	s := New(nil)
	require.NoError(t, s.Register(col, Config{TTLCleanupSeconds: 1, IndexMaintenanceSeconds: 1}))

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&col.ttlCalls) > 0 && atomic.LoadInt64(&col.rebuildCalls) > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerSurvivesFailingTick(t *testing.T) {
	col := &fakeCollection{name: "flaky", failRebuild: true}
	s := New(nil)
	require.NoError(t, s.Register(col, Config{TTLCleanupSeconds: 1, IndexMaintenanceSeconds: 1}))

	s.Start(context.Background())
	defer s.Stop()

	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&col.rebuildCalls) >= 2
	}, 4*time.Second, 50*time.Millisecond, "a failing tick must not stop subsequent ticks")
}

func TestSchedulerStopIsIdempotent(t *testing.T) {
	col := &fakeCollection{name: "docs"}
	s := New(nil)
	require.NoError(t, s.Register(col, Config{}))
	s.Start(context.Background())
	s.Stop()
	s.Stop()
}
