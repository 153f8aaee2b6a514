package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blanball/backend/internal/fanout"
	"github.com/blanball/backend/internal/metrics"
	"github.com/blanball/backend/internal/models"
)

// ReminderOffsets are the minutes before start at which members and spectators get a reminder.
// Only an exact match fires; a missed tick is not caught up.
var ReminderOffsets = []int{1440, 120, 10}

const sweepLifecycle = "event_lifecycle"

// SweepStats summarises one lifecycle sweep.
type SweepStats struct {
	Scanned   int
	Reminders int
	Activated int
	Finished  int
	Failed    int
}

// SweepLifecycle advances every unfinished event against now. Each event is handled in its own
// transaction; a failing event is logged and skipped. Re-running for the same now is a no-op
// apart from reminders.
func (s *Service) SweepLifecycle(ctx context.Context, now time.Time) (SweepStats, error) {
	var stats SweepStats
	ids, err := s.store.ListUnfinishedEventIDs(ctx)
	if err != nil {
		return stats, err
	}
	for _, id := range ids {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}
		stats.Scanned++
		if err := s.advance(ctx, id, now, &stats); err != nil {
			stats.Failed++
			metrics.SweepRowFailures.WithLabelValues(sweepLifecycle).Inc()
			s.logger.Error("lifecycle sweep: event failed", zap.String("event_id", id.String()), zap.Error(err))
		}
	}
	if stats.Reminders+stats.Activated+stats.Finished > 0 || stats.Failed > 0 {
		s.logger.Info("lifecycle sweep done",
			zap.Int("scanned", stats.Scanned),
			zap.Int("reminders", stats.Reminders),
			zap.Int("activated", stats.Activated),
			zap.Int("finished", stats.Finished),
			zap.Int("failed", stats.Failed),
		)
	}
	return stats, nil
}

func (s *Service) advance(ctx context.Context, eventID uuid.UUID, now time.Time, stats *SweepStats) error {
	var local SweepStats
	err := s.mutate(ctx, "lifecycle", eventID, func(tx Tx, emit emitFunc) error {
		local = SweepStats{}
		e := tx.Event()
		if e.Status == models.EventFinished {
			return nil
		}

		if !now.Before(e.EndsAt()) {
			if err := tx.SetStatus(ctx, models.EventFinished); err != nil {
				return err
			}
			if _, err := tx.DeleteOpenParticipations(ctx); err != nil {
				return err
			}
			if _, err := tx.FlagNotificationsFinished(ctx); err != nil {
				return err
			}
			emit(fanout.KindEventEnded, fanout.Trigger{})
			local.Finished++
			return nil
		}

		if e.Status != models.EventPlanned {
			return nil
		}
		delta := minutesUntil(e.StartAt, now)
		for _, offset := range ReminderOffsets {
			if delta == offset {
				emit(fanout.KindEventStartingReminder, fanout.Trigger{TimeToStart: offset})
				local.Reminders++
			}
		}
		if delta <= 0 {
			if err := tx.SetStatus(ctx, models.EventActive); err != nil {
				return err
			}
			local.Activated++
		}
		return nil
	})
	if err != nil {
		return err
	}
	stats.Reminders += local.Reminders
	stats.Activated += local.Activated
	stats.Finished += local.Finished
	return nil
}

// minutesUntil is the whole-minute distance from now to start, both truncated to the minute.
func minutesUntil(start, now time.Time) int {
	return int(start.Truncate(time.Minute).Sub(now.Truncate(time.Minute)) / time.Minute)
}
