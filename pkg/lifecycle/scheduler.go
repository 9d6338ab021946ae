// Package lifecycle runs the per-collection background scheduler: periodic
// TTL cleanup and periodic index maintenance (rebuild-on-need plus
// versioned persist), both as cron-driven "@every" ticks rather than
// hand-rolled tickers.
package lifecycle

import (
	"context"
	"sync"
	"time"

	"github.com/hashicorp/go-hclog"
	"github.com/robfig/cron/v3"

	"github.com/openviking/vikingdb/pkg/vdberrors"
)

// Collection is the subset of *collection.Collection the scheduler drives.
// Defined here (rather than imported) to keep pkg/lifecycle from depending
// on pkg/collection's full surface, and because a Runtime may want to
// schedule maintenance over something other than a live collection in
// tests.
type Collection interface {
	Name() string
	ExpireTTL(ctx context.Context) (int, error)
	RebuildAndPersist(ctx context.Context) error
	Persist() error
}

// Scheduler drives TTL cleanup and index maintenance for every registered
// collection off a single cron instance. Background tasks log-and-continue:
// a failing tick never takes down the scheduler or the collection.
type Scheduler struct {
	cron   *cron.Cron
	logger hclog.Logger

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	entries []cron.EntryID
	cols    []Collection
}

// Config sets the two tick intervals; zero values fall back to the core's
// documented defaults of 10s (TTL) and 30s (index maintenance).
type Config struct {
	TTLCleanupSeconds      int
	IndexMaintenanceSeconds int
}

func (c Config) withDefaults() Config {
	if c.TTLCleanupSeconds <= 0 {
		c.TTLCleanupSeconds = 10
	}
	if c.IndexMaintenanceSeconds <= 0 {
		c.IndexMaintenanceSeconds = 30
	}
	return c
}

// New builds a Scheduler, not yet started.
func New(logger hclog.Logger) *Scheduler {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Scheduler{cron: cron.New(), logger: logger}
}

// Register adds the TTL-cleanup and index-maintenance jobs for col at the
// intervals in cfg. It may be called before or after Start.
func (s *Scheduler) Register(col Collection, cfg Config) error {
	cfg = cfg.withDefaults()

	s.mu.Lock()
	defer s.mu.Unlock()

	ttlSpec := every(cfg.TTLCleanupSeconds)
	ttlID, err := s.cron.AddFunc(ttlSpec, s.ttlJob(col))
	if err != nil {
		return vdberrors.New("lifecycle.register", vdberrors.ResourceClosed, err)
	}
	s.entries = append(s.entries, ttlID)

	maintSpec := every(cfg.IndexMaintenanceSeconds)
	maintID, err := s.cron.AddFunc(maintSpec, s.maintenanceJob(col))
	if err != nil {
		return vdberrors.New("lifecycle.register", vdberrors.ResourceClosed, err)
	}
	s.entries = append(s.entries, maintID)
	s.cols = append(s.cols, col)

	return nil
}

func every(seconds int) string {
	return "@every " + time.Duration(seconds*int(time.Second)).String()
}

func (s *Scheduler) ttlJob(col Collection) func() {
	return func() {
		ctx := s.runCtx()
		if ctx == nil {
			return
		}
		n, err := col.ExpireTTL(ctx)
		if err != nil {
			s.logger.Warn("ttl cleanup failed", "collection", col.Name(), "error", err)
			return
		}
		if n > 0 {
			s.logger.Debug("ttl cleanup swept expired records", "collection", col.Name(), "count", n)
		}
	}
}

func (s *Scheduler) maintenanceJob(col Collection) func() {
	return func() {
		ctx := s.runCtx()
		if ctx == nil {
			return
		}
		if err := col.RebuildAndPersist(ctx); err != nil {
			s.logger.Warn("index maintenance failed", "collection", col.Name(), "error", err)
		}
	}
}

func (s *Scheduler) runCtx() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ctx
}

// Start begins running every registered job.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.started {
		return
	}
	s.ctx, s.cancel = context.WithCancel(ctx)
	s.cron.Start()
	s.started = true
}

// Stop cancels outstanding tasks, waits for any in-flight tick to finish its
// current step, then flush-persists every registered collection's persistent
// indexes before returning.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return
	}
	cancel := s.cancel
	cols := append([]Collection(nil), s.cols...)
	s.mu.Unlock()

	stopCtx := s.cron.Stop()
	if cancel != nil {
		cancel()
	}
	<-stopCtx.Done()

	for _, col := range cols {
		if err := col.Persist(); err != nil {
			s.logger.Warn("flush persist on shutdown failed", "collection", col.Name(), "error", err)
		}
	}

	s.mu.Lock()
	s.started = false
	s.mu.Unlock()
}
