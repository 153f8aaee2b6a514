package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextEvery(t *testing.T) {
	base := time.Date(2024, 3, 10, 12, 4, 31, 0, time.UTC)

	assert.Equal(t, time.Date(2024, 3, 10, 12, 5, 0, 0, time.UTC), NextEvery(base, time.Minute))
	assert.Equal(t, time.Date(2024, 3, 10, 12, 10, 0, 0, time.UTC), NextEvery(base, 10*time.Minute))

	onBoundary := time.Date(2024, 3, 10, 12, 5, 0, 0, time.UTC)
	assert.Equal(t, onBoundary.Add(time.Minute), NextEvery(onBoundary, time.Minute))
}

func TestNextDaily(t *testing.T) {
	kyiv := time.FixedZone("EET", 2*60*60)

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before midnight local",
			now:  time.Date(2024, 3, 10, 21, 30, 0, 0, time.UTC), // 23:30 in Kyiv
			want: time.Date(2024, 3, 11, 0, 0, 0, 0, kyiv),
		},
		{
			name: "exactly midnight moves to next day",
			now:  time.Date(2024, 3, 11, 0, 0, 0, 0, kyiv),
			want: time.Date(2024, 3, 12, 0, 0, 0, 0, kyiv),
		},
		{
			name: "across month end",
			now:  time.Date(2024, 1, 31, 12, 0, 0, 0, kyiv),
			want: time.Date(2024, 2, 1, 0, 0, 0, 0, kyiv),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextDaily(tt.now, 0, 0, kyiv)
			assert.True(t, tt.want.Equal(got), "want %s got %s", tt.want, got)
		})
	}
}

func TestRunNowSwallowsErrors(t *testing.T) {
	s := New(nil, nil)
	var calls int32
	fn := func(ctx context.Context, _ time.Time) error {
		atomic.AddInt32(&calls, 1)
		_, hasDeadline := ctx.Deadline()
		assert.True(t, hasDeadline)
		return errors.New("row failed")
	}

	assert.NotPanics(t, func() {
		s.RunNow(context.Background(), "event_lifecycle", fn, time.Now(), time.Second)
	})
	assert.EqualValues(t, 1, calls)
}

func TestRunFiresAndStops(t *testing.T) {
	s := New(nil, nil)
	var calls int32
	s.Every("tick", 20*time.Millisecond, func(context.Context, time.Time) error {
		atomic.AddInt32(&calls, 1)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Run(ctx)
		close(done)
	}()

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("scheduler did not stop")
	}
}
