package realtime

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/blanball/backend/internal/metrics"
)

const (
	// PingInterval and PongWait are used for heartbeat.
	PingInterval = 30
	PongWait     = 60
)

// PresenceHandler is called when a user's first connection opens (online=true)
// or their last one closes (online=false).
type PresenceHandler func(userID uuid.UUID, online bool)

// Bus carries push messages between instances.
type Bus interface {
	Publish(ctx context.Context, channel string, msg []byte) error
	Subscribe(channel string, handler func(msg []byte)) (cancel func(), err error)
}

// Hub maintains channel -> set of connections. A channel is "user_<id>" or "general".
// With a Bus configured, messages go through it so every instance delivers exactly once.
type Hub struct {
	// channel -> map[clientID]*Client
	rooms      map[string]map[string]*Client
	subs       map[string]func() // cancel bus subscription per channel
	mu         sync.RWMutex
	logger     *zap.Logger
	bus        Bus
	onPresence PresenceHandler
}

// NewHub creates a new WebSocket hub. bus may be nil for single-instance delivery.
func NewHub(logger *zap.Logger, bus Bus) *Hub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Hub{
		rooms:  make(map[string]map[string]*Client),
		subs:   make(map[string]func()),
		logger: logger,
		bus:    bus,
	}
}

// SetPresenceHandler sets the callback for user online/offline changes.
func (h *Hub) SetPresenceHandler(fn PresenceHandler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onPresence = fn
}

// Register adds a client to its channel. Starts the bus subscription for the channel if first client.
func (h *Hub) Register(c *Client) {
	h.mu.Lock()
	first := h.rooms[c.Channel] == nil
	if first {
		h.rooms[c.Channel] = make(map[string]*Client)
		if h.bus != nil {
			channel := c.Channel
			cancel, err := h.bus.Subscribe(channel, func(msg []byte) {
				h.Deliver(channel, msg)
			})
			if err != nil {
				h.logger.Warn("bus subscribe failed", zap.String("channel", channel), zap.Error(err))
			} else {
				h.subs[channel] = cancel
			}
		}
	}
	h.rooms[c.Channel][c.ID] = c
	onPresence := h.onPresence
	h.mu.Unlock()

	metrics.ConnectedClients.Inc()
	if userID, ok := ParseUserChannel(c.Channel); ok && first && onPresence != nil {
		onPresence(userID, true)
	}
	h.logger.Debug("client connected", zap.String("client_id", c.ID), zap.String("channel", c.Channel))
}

// Unregister removes a client. Cancels the bus subscription when the last client leaves.
func (h *Hub) Unregister(c *Client) {
	h.mu.Lock()
	m, ok := h.rooms[c.Channel]
	if !ok {
		h.mu.Unlock()
		return
	}
	if _, ok := m[c.ID]; !ok {
		h.mu.Unlock()
		return
	}
	delete(m, c.ID)
	last := len(m) == 0
	if last {
		delete(h.rooms, c.Channel)
		if cancel, ok := h.subs[c.Channel]; ok {
			cancel()
			delete(h.subs, c.Channel)
		}
	}
	onPresence := h.onPresence
	h.mu.Unlock()

	metrics.ConnectedClients.Dec()
	if userID, ok := ParseUserChannel(c.Channel); ok && last && onPresence != nil {
		onPresence(userID, false)
	}
	h.logger.Debug("client disconnected", zap.String("client_id", c.ID), zap.String("channel", c.Channel))
}

// Deliver sends a message to the clients of a channel on this instance only.
// Slow clients whose buffer is full miss the message.
func (h *Hub) Deliver(channel string, msg []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	sent := 0
	for _, c := range h.rooms[channel] {
		select {
		case c.send <- msg:
			sent++
			metrics.PushesDelivered.Inc()
		default:
			metrics.PushesDropped.Inc()
		}
	}
	return sent
}

// Publish routes a message to a channel across all instances.
// With a bus, only the bus subscriber delivers, avoiding duplicates for local clients.
func (h *Hub) Publish(ctx context.Context, channel string, msg []byte) error {
	if h.bus != nil {
		return h.bus.Publish(ctx, channel, msg)
	}
	h.Deliver(channel, msg)
	return nil
}

// PublishUser sends a message to every session of a user.
func (h *Hub) PublishUser(ctx context.Context, userID uuid.UUID, msg []byte) error {
	return h.Publish(ctx, UserChannel(userID), msg)
}

// PublishGeneral sends a message to the general room.
func (h *Hub) PublishGeneral(ctx context.Context, msg []byte) error {
	return h.Publish(ctx, GeneralChannel, msg)
}

// Connections returns the number of local clients on a channel.
func (h *Hub) Connections(channel string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[channel])
}
