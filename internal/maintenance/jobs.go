// Package maintenance runs periodic housekeeping on a cron schedule.
package maintenance

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// LockStore clears account locks whose deadline has passed.
type LockStore interface {
	ClearExpiredLocks(ctx context.Context, now time.Time) (int64, error)
}

// CatalogCounter reports the catalog size.
type CatalogCounter interface {
	Count(ctx context.Context) (int64, error)
}

// Gauges receives job results.
type Gauges interface {
	SetCatalogSize(n int64)
	LocksCleared(n int64)
}

// Config holds the job schedules in robfig/cron syntax (descriptors such as
// "@every 10m" are accepted).
type Config struct {
	LockSweepSchedule      string
	MetricsRefreshSchedule string
	JobTimeout             time.Duration
}

// Scheduler owns the cron runner and the jobs registered on it.
type Scheduler struct {
	cron    *cron.Cron
	locks   LockStore
	catalog CatalogCounter
	gauges  Gauges
	timeout time.Duration
	logger  zerolog.Logger
	now     func() time.Time

	mu      sync.Mutex
	running bool
}

// New registers the lock sweeper and the catalog gauge refresh.
func New(cfg Config, locks LockStore, catalog CatalogCounter, gauges Gauges, logger zerolog.Logger) (*Scheduler, error) {
	timeout := cfg.JobTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s := &Scheduler{
		cron:    cron.New(cron.WithChain(cron.Recover(cron.DefaultLogger), cron.SkipIfStillRunning(cron.DefaultLogger))),
		locks:   locks,
		catalog: catalog,
		gauges:  gauges,
		timeout: timeout,
		logger:  logger.With().Str("component", "maintenance").Logger(),
		now:     time.Now,
	}

	if cfg.LockSweepSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.LockSweepSchedule, func() { s.SweepLocks(context.Background()) }); err != nil {
			return nil, fmt.Errorf("schedule lock sweep %q: %w", cfg.LockSweepSchedule, err)
		}
	}
	if cfg.MetricsRefreshSchedule != "" {
		if _, err := s.cron.AddFunc(cfg.MetricsRefreshSchedule, func() { s.RefreshCatalogGauge(context.Background()) }); err != nil {
			return nil, fmt.Errorf("schedule catalog gauge %q: %w", cfg.MetricsRefreshSchedule, err)
		}
	}
	return s, nil
}

// Start runs the catalog refresh once and then hands the jobs to cron.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return
	}
	s.RefreshCatalogGauge(ctx)
	s.cron.Start()
	s.running = true
	s.logger.Info().Int("jobs", len(s.cron.Entries())).Msg("scheduler started")
}

// Stop waits for running jobs to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	<-s.cron.Stop().Done()
	s.running = false
	s.logger.Info().Msg("scheduler stopped")
}

// SweepLocks unlocks accounts whose lock has expired.
func (s *Scheduler) SweepLocks(ctx context.Context) {
	if s.locks == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cleared, err := s.locks.ClearExpiredLocks(ctx, s.now())
	if err != nil {
		s.logger.Error().Err(err).Msg("lock sweep failed")
		return
	}
	if s.gauges != nil {
		s.gauges.LocksCleared(cleared)
	}
	if cleared > 0 {
		s.logger.Info().Int64("cleared", cleared).Msg("expired account locks cleared")
	}
}

// RefreshCatalogGauge publishes the current catalog size.
func (s *Scheduler) RefreshCatalogGauge(ctx context.Context) {
	if s.catalog == nil || s.gauges == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	n, err := s.catalog.Count(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("catalog count failed")
		return
	}
	s.gauges.SetCatalogSize(n)
}
