package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/blanball/backend/internal/fanout"
	"github.com/blanball/backend/internal/models"
)

func TestSweepRemindsAtExactOffsets(t *testing.T) {
	f := newFixture(t)
	start := testNow.Add(24 * time.Hour)
	e := f.seedEvent(func(e *models.Event) { e.StartAt = start })
	ctx := context.Background()

	tests := []struct {
		at       time.Time
		reminder int
	}{
		{start.Add(-1440 * time.Minute), 1440},
		{start.Add(-1439 * time.Minute), 0},
		{start.Add(-120*time.Minute + 45*time.Second), 120},
		{start.Add(-11 * time.Minute), 0},
		{start.Add(-10 * time.Minute), 10},
	}
	for _, tt := range tests {
		f.pub.reset()
		stats, err := f.svc.SweepLifecycle(ctx, tt.at)
		require.NoError(t, err)
		if tt.reminder == 0 {
			assert.Zero(t, stats.Reminders, "at %s", tt.at)
			assert.Empty(t, f.pub.kinds())
			continue
		}
		assert.Equal(t, 1, stats.Reminders, "at %s", tt.at)
		tr := f.pub.last()
		assert.Equal(t, fanout.KindEventStartingReminder, tr.Kind)
		assert.Equal(t, tt.reminder, tr.TimeToStart)
		assert.Equal(t, e.ID, tr.Event.ID)
	}
	assert.Equal(t, models.EventPlanned, f.store.event(e.ID).Status)
}

func TestSweepActivatesThenFinishes(t *testing.T) {
	f := newFixture(t)
	start := testNow.Add(time.Hour)
	invitee := f.users.add(1)[0]
	e := f.seedEvent(func(e *models.Event) {
		e.StartAt = start
		e.DurationMinutes = 60
	})
	ctx := context.Background()

	open, err := f.svc.SendInvite(ctx, e.ID, f.author, invitee)
	require.NoError(t, err)
	other := f.users.add(1)[0]
	answered, err := f.svc.SendInvite(ctx, e.ID, f.author, other)
	require.NoError(t, err)
	require.Len(t, f.svc.RespondInvites(ctx, other, []uuid.UUID{answered.ID}, true), 1)

	stats, err := f.svc.SweepLifecycle(ctx, start.Add(30*time.Second))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Activated)
	assert.Equal(t, models.EventActive, f.store.event(e.ID).Status)

	stats, err = f.svc.SweepLifecycle(ctx, start.Add(30*time.Minute))
	require.NoError(t, err)
	assert.Zero(t, stats.Activated+stats.Finished)

	f.pub.reset()
	stats, err = f.svc.SweepLifecycle(ctx, start.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Finished)
	assert.Equal(t, models.EventFinished, f.store.event(e.ID).Status)
	assert.Equal(t, []fanout.Kind{fanout.KindEventEnded}, f.pub.kinds())
	assert.Equal(t, 1, f.store.flagged[e.ID])

	left := f.store.participations(e.ID)
	require.Len(t, left, 1)
	assert.Equal(t, answered.ID, left[0].ID)
	assert.NotEqual(t, open.ID, left[0].ID)

	// finished events are never revisited
	f.pub.reset()
	stats, err = f.svc.SweepLifecycle(ctx, start.Add(2*time.Hour))
	require.NoError(t, err)
	assert.Zero(t, stats.Scanned)
	assert.Empty(t, f.pub.kinds())
	assert.Equal(t, 1, f.store.flagged[e.ID])
}

func TestSweepFinishesOverdueEventDirectly(t *testing.T) {
	f := newFixture(t)
	e := f.seedEvent(func(e *models.Event) {
		e.StartAt = testNow.Add(-3 * time.Hour)
		e.DurationMinutes = 90
	})

	stats, err := f.svc.SweepLifecycle(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Finished)
	assert.Zero(t, stats.Activated)
	assert.Equal(t, models.EventFinished, f.store.event(e.ID).Status)
}

func TestSweepIsolatesFailingEvents(t *testing.T) {
	f := newFixture(t)
	broken := f.seedEvent(func(e *models.Event) { e.StartAt = testNow.Add(-2 * time.Hour) })
	healthy := f.seedEvent(func(e *models.Event) { e.StartAt = testNow.Add(-90 * time.Minute) })
	f.store.failOn[broken.ID] = errors.New("connection reset")

	stats, err := f.svc.SweepLifecycle(context.Background(), testNow)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 1, stats.Finished)
	assert.Equal(t, models.EventFinished, f.store.event(healthy.ID).Status)
	assert.Equal(t, models.EventPlanned, f.store.event(broken.ID).Status)
}

func TestSweepStopsOnCancelledContext(t *testing.T) {
	f := newFixture(t)
	f.seedEvent(nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.SweepLifecycle(ctx, testNow)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMinutesUntil(t *testing.T) {
	start := time.Date(2026, 5, 2, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 10, minutesUntil(start, start.Add(-9*time.Minute-59*time.Second)))
	assert.Equal(t, 0, minutesUntil(start, start.Add(59*time.Second)))
	assert.Equal(t, -1, minutesUntil(start, start.Add(time.Minute)))
}
