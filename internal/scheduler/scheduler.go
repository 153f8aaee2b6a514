// Package scheduler runs the periodic sweeps: interval jobs aligned to clock boundaries
// and daily jobs at a wall-clock time in the configured timezone.
package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blanball/backend/internal/metrics"
)

// JobFunc is one sweep run. now is the scheduled fire time.
type JobFunc func(ctx context.Context, now time.Time) error

type entry struct {
	name    string
	next    func(after time.Time) time.Time
	timeout time.Duration
	fn      JobFunc
}

// Scheduler fires registered jobs until its context is cancelled.
// A run that overlaps the next tick delays it rather than running twice.
type Scheduler struct {
	loc     *time.Location
	entries []entry
	logger  *zap.Logger
	nowFunc func() time.Time
}

// New creates a scheduler; loc nil means UTC.
func New(loc *time.Location, logger *zap.Logger) *Scheduler {
	if loc == nil {
		loc = time.UTC
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{loc: loc, logger: logger, nowFunc: time.Now}
}

// Every registers fn to run on each multiple of interval.
func (s *Scheduler) Every(name string, interval time.Duration, fn JobFunc) {
	s.entries = append(s.entries, entry{
		name:    name,
		next:    func(after time.Time) time.Time { return NextEvery(after, interval) },
		timeout: interval,
		fn:      fn,
	})
}

// Daily registers fn to run once a day at hour:minute in the scheduler's timezone.
func (s *Scheduler) Daily(name string, hour, minute int, fn JobFunc) {
	s.entries = append(s.entries, entry{
		name:    name,
		next:    func(after time.Time) time.Time { return NextDaily(after, hour, minute, s.loc) },
		timeout: time.Hour,
		fn:      fn,
	})
}

// Run blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for _, e := range s.entries {
		wg.Add(1)
		go func(e entry) {
			defer wg.Done()
			s.loop(ctx, e)
		}(e)
	}
	s.logger.Info("scheduler started", zap.Int("jobs", len(s.entries)), zap.String("timezone", s.loc.String()))
	wg.Wait()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) loop(ctx context.Context, e entry) {
	for {
		at := e.next(s.nowFunc())
		timer := time.NewTimer(time.Until(at))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.RunNow(ctx, e.name, e.fn, at, e.timeout)
	}
}

// RunNow executes fn once with the run bookkeeping of a scheduled fire.
func (s *Scheduler) RunNow(ctx context.Context, name string, fn JobFunc, at time.Time, timeout time.Duration) {
	rctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	if err := fn(rctx, at); err != nil {
		metrics.SweepRuns.WithLabelValues(name, "error").Inc()
		s.logger.Error("scheduled job failed", zap.String("job", name), zap.Time("at", at), zap.Error(err))
		return
	}
	metrics.SweepRuns.WithLabelValues(name, "ok").Inc()
	s.logger.Debug("scheduled job done", zap.String("job", name), zap.Duration("took", time.Since(start)))
}

// NextEvery returns the first multiple of interval strictly after t.
func NextEvery(t time.Time, interval time.Duration) time.Time {
	return t.Truncate(interval).Add(interval)
}

// NextDaily returns the first hour:minute in loc strictly after t.
func NextDaily(t time.Time, hour, minute int, loc *time.Location) time.Time {
	local := t.In(loc)
	next := time.Date(local.Year(), local.Month(), local.Day(), hour, minute, 0, 0, loc)
	if !next.After(local) {
		next = time.Date(local.Year(), local.Month(), local.Day()+1, hour, minute, 0, 0, loc)
	}
	return next
}
