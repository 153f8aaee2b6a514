// Package notifications serves a user's stored notifications and their bulk read/delete flows.
package notifications

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blanball/backend/internal/fanout"
	"github.com/blanball/backend/internal/models"
	"github.com/blanball/backend/pkg/queue"
)

// Paging bounds for List.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Page selects a window of a user's notifications. Skip hides ids the client already shows.
type Page struct {
	Limit  int
	Offset int
	Skip   []uuid.UUID
}

func (p Page) normalize() Page {
	if p.Limit <= 0 {
		p.Limit = DefaultLimit
	}
	if p.Limit > MaxLimit {
		p.Limit = MaxLimit
	}
	if p.Offset < 0 {
		p.Offset = 0
	}
	return p
}

// Store is the notification persistence the service needs.
type Store interface {
	List(ctx context.Context, userID uuid.UUID, page Page) ([]models.Notification, error)
	Counts(ctx context.Context, userID uuid.UUID) (models.NotificationCounts, error)
	MarkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	Delete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error)
	MarkAllRead(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
	DeleteAll(ctx context.Context, userID uuid.UUID) ([]uuid.UUID, error)
}

// Pusher sends live messages that are not stored.
type Pusher interface {
	PushOnly(ctx context.Context, userID uuid.UUID, messageType string, data interface{})
}

// Jobs dispatches the mass operations to the background queue.
type Jobs interface {
	EnqueueReadAll(ctx context.Context, userID uuid.UUID) (*queue.Job, error)
	EnqueueDeleteAll(ctx context.Context, userID uuid.UUID) (*queue.Job, error)
}

// Service handles notification queries and bulk state changes.
type Service struct {
	store  Store
	push   Pusher
	jobs   Jobs
	logger *zap.Logger
}

// NewService creates the notifications service.
func NewService(store Store, push Pusher, jobs Jobs, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{store: store, push: push, jobs: jobs, logger: logger}
}

// List returns a page of the user's notifications, newest first.
func (s *Service) List(ctx context.Context, userID uuid.UUID, page Page) ([]models.Notification, error) {
	return s.store.List(ctx, userID, page.normalize())
}

// Counts returns the user's total and unread counts.
func (s *Service) Counts(ctx context.Context, userID uuid.UUID) (models.NotificationCounts, error) {
	return s.store.Counts(ctx, userID)
}

// BulkRead marks the user's listed notifications read. Ids that are foreign, missing or
// already read are left out of the result.
func (s *Service) BulkRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	done, err := s.store.MarkRead(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	s.ackRead(ctx, userID, done)
	return done, nil
}

// BulkDelete deletes the user's listed notifications. Ids that are foreign or missing are left out.
func (s *Service) BulkDelete(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]uuid.UUID, error) {
	done, err := s.store.Delete(ctx, userID, ids)
	if err != nil {
		return nil, err
	}
	s.ackDeleted(ctx, userID, done)
	return done, nil
}

// RequestReadAll queues marking every notification of the user read.
func (s *Service) RequestReadAll(ctx context.Context, userID uuid.UUID) (*queue.Job, error) {
	return s.jobs.EnqueueReadAll(ctx, userID)
}

// RequestDeleteAll queues deleting every notification of the user.
func (s *Service) RequestDeleteAll(ctx context.Context, userID uuid.UUID) (*queue.Job, error) {
	return s.jobs.EnqueueDeleteAll(ctx, userID)
}

// HandleReadAll runs a read_all_notifications job. Re-running it is a no-op.
func (s *Service) HandleReadAll(ctx context.Context, job *queue.Job) error {
	userID, err := decodeUser(job)
	if err != nil {
		return err
	}
	ids, err := s.store.MarkAllRead(ctx, userID)
	if err != nil {
		return err
	}
	s.ackRead(ctx, userID, ids)
	s.logger.Info("notifications read", zap.String("user_id", userID.String()), zap.Int("count", len(ids)))
	return nil
}

// HandleDeleteAll runs a delete_all_notifications job.
func (s *Service) HandleDeleteAll(ctx context.Context, job *queue.Job) error {
	userID, err := decodeUser(job)
	if err != nil {
		return err
	}
	ids, err := s.store.DeleteAll(ctx, userID)
	if err != nil {
		return err
	}
	s.ackDeleted(ctx, userID, ids)
	s.logger.Info("notifications deleted", zap.String("user_id", userID.String()), zap.Int("count", len(ids)))
	return nil
}

func (s *Service) ackRead(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) {
	for _, id := range ids {
		s.pushAck(ctx, userID, fanout.MsgNotificationsRead, map[string]interface{}{"id": id, "type": models.NotificationRead})
	}
}

func (s *Service) ackDeleted(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) {
	for _, id := range ids {
		s.pushAck(ctx, userID, fanout.MsgNotificationsDeleted, map[string]interface{}{"id": id})
	}
}

func (s *Service) pushAck(ctx context.Context, userID uuid.UUID, messageType string, notification map[string]interface{}) {
	if s.push == nil {
		return
	}
	s.push.PushOnly(ctx, userID, messageType, map[string]interface{}{"notification": notification})
}

func decodeUser(job *queue.Job) (uuid.UUID, error) {
	var p queue.UserPayload
	if err := job.Decode(&p); err != nil {
		return uuid.Nil, err
	}
	if p.UserID == uuid.Nil {
		return uuid.Nil, fmt.Errorf("job %s: missing user_id", job.ID)
	}
	return p.UserID, nil
}
