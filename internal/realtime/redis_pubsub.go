package realtime

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// topicPrefix namespaces push channels on the shared Redis server.
const topicPrefix = "notifications:"

// subscriptionBuffer bounds messages held for a slow local fan-out before go-redis drops them.
const subscriptionBuffer = 256

func topic(channel string) string { return topicPrefix + channel }

// RedisPubSub is the Bus across server and worker instances. Messages are the push JSON as-is.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for push channels.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// Publish sends msg to every instance subscribed to channel. Zero subscribers is not an error.
func (r *RedisPubSub) Publish(ctx context.Context, channel string, msg []byte) error {
	if err := r.client.Publish(ctx, topic(channel), msg).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", channel, err)
	}
	return nil
}

// Subscribe calls handler for each message on channel until cancel is called.
// It returns once Redis has confirmed the subscription.
func (r *RedisPubSub) Subscribe(channel string, handler func(msg []byte)) (cancel func(), err error) {
	ctx, stop := context.WithCancel(context.Background())
	sub := r.client.Subscribe(ctx, topic(channel))
	if _, err := sub.Receive(ctx); err != nil {
		stop()
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	msgs := sub.Channel(redis.WithChannelSize(subscriptionBuffer))
	go func() {
		defer sub.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case m, ok := <-msgs:
				if !ok {
					r.logger.Debug("pubsub channel closed", zap.String("channel", channel))
					return
				}
				handler([]byte(m.Payload))
			}
		}
	}()
	return stop, nil
}
