package redis

import (
	"context"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Options configures the connection. PoolSize 0 keeps the go-redis default.
type Options struct {
	Addr     string
	Password string
	DB       int
	PoolSize int
}

// Client is the shared go-redis client used by the job queue and the push bus.
type Client struct {
	*goredis.Client
	logger *zap.Logger
}

// NewClient connects and verifies the server answers PING.
func NewClient(ctx context.Context, opts Options, logger *zap.Logger) (*Client, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	rdb := goredis.NewClient(&goredis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
		PoolSize: opts.PoolSize,
	})
	c := &Client{Client: rdb, logger: logger}
	if err := c.Healthy(ctx); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	logger.Info("redis connected", zap.String("addr", opts.Addr), zap.Int("db", opts.DB))
	return c, nil
}

// Healthy pings the server with a short deadline.
func (c *Client) Healthy(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

// Close closes the underlying client.
func (c *Client) Close() error {
	c.logger.Info("redis closing")
	return c.Client.Close()
}
