package fanout

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blanball/backend/internal/metrics"
	"github.com/blanball/backend/internal/models"
	"github.com/blanball/backend/internal/realtime"
	"github.com/blanball/backend/pkg/queue"
)

// Store persists notifications.
type Store interface {
	Create(ctx context.Context, n *models.Notification) error
	// PatchResponse sets data.<section>.response on the user's notification of messageType
	// that references the participation. It returns uuid.Nil when no such notification exists.
	PatchResponse(ctx context.Context, userID uuid.UUID, messageType, section string, participationID uuid.UUID, response bool) (uuid.UUID, error)
}

// Directory resolves user names for payloads.
type Directory interface {
	GetByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

// Pusher hands a live message to the background queue.
type Pusher interface {
	EnqueuePush(ctx context.Context, payload queue.PushPayload) error
}

// Orchestrator persists notifications and dispatches their pushes.
// Failures are logged and never returned to the caller.
type Orchestrator struct {
	store   Store
	dir     Directory
	pusher  Pusher
	logger  *zap.Logger
	nowFunc func() time.Time
}

// NewOrchestrator creates an orchestrator. dir may be nil, leaving names blank.
func NewOrchestrator(store Store, dir Directory, pusher Pusher, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{store: store, dir: dir, pusher: pusher, logger: logger, nowFunc: time.Now}
}

// Publish delivers every notification the trigger produces. Each row is stored before its push is queued.
func (o *Orchestrator) Publish(ctx context.Context, t Trigger) {
	deliveries := Recipients(t)
	names := o.resolveNames(ctx, deliveries)

	for _, d := range deliveries {
		fillName(d.Payload.Recipient, names)
		fillName(d.Payload.Sender, names)

		data, err := json.Marshal(d.Payload)
		if err != nil {
			o.logger.Error("marshal notification payload", zap.String("message_type", d.MessageType), zap.Error(err))
			continue
		}
		n := &models.Notification{
			ID:          uuid.New(),
			UserID:      d.UserID,
			MessageType: d.MessageType,
			Type:        models.NotificationUnread,
			Data:        data,
			CreatedAt:   o.nowFunc().UTC(),
		}
		if err := o.store.Create(ctx, n); err != nil {
			metrics.NotificationFailures.WithLabelValues("persist").Inc()
			o.logger.Error("persist notification failed",
				zap.String("user_id", d.UserID.String()),
				zap.String("message_type", d.MessageType),
				zap.Error(err),
			)
			continue
		}
		metrics.NotificationsCreated.WithLabelValues(d.MessageType).Inc()
		o.enqueue(ctx, realtime.UserChannel(d.UserID), PushMessage{
			MessageType:    d.MessageType,
			NotificationID: &n.ID,
			Data:           json.RawMessage(data),
		})
	}

	switch t.Kind {
	case KindInviteResponded:
		o.patchResponse(ctx, t, MsgInviteUserToEvent, "invite", MsgUpdateInviteResponse)
	case KindRequestResponded:
		o.patchResponse(ctx, t, MsgNewRequest, "request", MsgUpdateRequestResponse)
	}
}

// PushOnly sends a live message to a user without storing it.
func (o *Orchestrator) PushOnly(ctx context.Context, userID uuid.UUID, messageType string, data interface{}) {
	o.enqueue(ctx, realtime.UserChannel(userID), PushMessage{MessageType: messageType, Data: data})
}

// PushGeneral sends a live message to every client of the general room.
func (o *Orchestrator) PushGeneral(ctx context.Context, messageType string, data interface{}) {
	o.enqueue(ctx, realtime.GeneralChannel, PushMessage{MessageType: messageType, Data: data})
}

// patchResponse records the answer on the responder's original invite/request notification
// and tells their open sessions to refresh it.
func (o *Orchestrator) patchResponse(ctx context.Context, t Trigger, messageType, section, updateType string) {
	p := t.Participation
	id, err := o.store.PatchResponse(ctx, p.RecipientID, messageType, section, p.ID, t.Accepted)
	if err != nil {
		metrics.NotificationFailures.WithLabelValues("patch").Inc()
		o.logger.Warn("patch response notification failed", zap.String("participation_id", p.ID.String()), zap.Error(err))
		return
	}
	if id == uuid.Nil {
		return
	}
	o.PushOnly(ctx, p.RecipientID, updateType, map[string]interface{}{
		"notification": map[string]interface{}{
			"id":           id,
			"message_type": messageType,
			"response":     t.Accepted,
		},
	})
}

func (o *Orchestrator) enqueue(ctx context.Context, channel string, msg PushMessage) {
	if o.pusher == nil {
		return
	}
	body, err := json.Marshal(msg)
	if err != nil {
		o.logger.Error("marshal push message", zap.String("message_type", msg.MessageType), zap.Error(err))
		return
	}
	if err := o.pusher.EnqueuePush(ctx, queue.PushPayload{Channel: channel, Message: body}); err != nil {
		metrics.NotificationFailures.WithLabelValues("enqueue").Inc()
		o.logger.Warn("enqueue push failed", zap.String("channel", channel), zap.String("message_type", msg.MessageType), zap.Error(err))
	}
}

func (o *Orchestrator) resolveNames(ctx context.Context, deliveries []Delivery) map[uuid.UUID]models.Profile {
	names := make(map[uuid.UUID]models.Profile)
	if o.dir == nil {
		return names
	}
	lookup := func(p *Person) {
		if p == nil {
			return
		}
		if _, ok := names[p.ID]; ok {
			return
		}
		u, err := o.dir.GetByID(ctx, p.ID)
		if err != nil || u == nil {
			o.logger.Debug("resolve user name", zap.String("user_id", p.ID.String()), zap.Error(err))
			names[p.ID] = models.Profile{}
			return
		}
		names[p.ID] = u.Profile
	}
	for _, d := range deliveries {
		lookup(d.Payload.Recipient)
		lookup(d.Payload.Sender)
	}
	return names
}

func fillName(p *Person, names map[uuid.UUID]models.Profile) {
	if p == nil {
		return
	}
	prof := names[p.ID]
	p.Name = prof.Name
	p.LastName = prof.LastName
}
