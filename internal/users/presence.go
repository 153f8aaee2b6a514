package users

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const presenceTimeout = 3 * time.Second

// OnlineSetter stores a user's online flag.
type OnlineSetter interface {
	SetOnline(ctx context.Context, id uuid.UUID, online bool) error
}

// PresenceTracker returns a hub presence callback that records online state.
// Failures are logged; a connection is never refused over them.
func PresenceTracker(store OnlineSetter, logger *zap.Logger) func(userID uuid.UUID, online bool) {
	if logger == nil {
		logger = zap.NewNop()
	}
	return func(userID uuid.UUID, online bool) {
		ctx, cancel := context.WithTimeout(context.Background(), presenceTimeout)
		defer cancel()
		if err := store.SetOnline(ctx, userID, online); err != nil {
			logger.Warn("set user presence", zap.String("user_id", userID.String()), zap.Bool("online", online), zap.Error(err))
		}
	}
}
