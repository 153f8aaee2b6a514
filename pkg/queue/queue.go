package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	// QueueNotifications is the Redis list key for notification delivery jobs.
	QueueNotifications = "worker:notifications"
	// QueueDelayed is the sorted set holding jobs waiting for their retry time (score = unix ms).
	QueueDelayed = "worker:notifications:delayed"
	// QueueDLQ is the dead-letter queue for failed jobs after retries.
	QueueDLQ = "worker:dlq"
	// DefaultMaxRetries is the number of attempts before a job moves to the DLQ.
	DefaultMaxRetries = 3
	// DefaultRetryBackoff is the delay between attempts.
	DefaultRetryBackoff = 5 * time.Second
)

// JobType identifies the job kind.
type JobType string

const (
	JobTypePush      JobType = "push_notification"
	JobTypeReadAll   JobType = "read_all_notifications"
	JobTypeDeleteAll JobType = "delete_all_notifications"
)

// PushPayload is a live message for one push channel ("user_<id>" or "general").
type PushPayload struct {
	Channel string          `json:"channel"`
	Message json.RawMessage `json:"message"`
}

// UserPayload addresses a job at a single user's notification set.
type UserPayload struct {
	UserID uuid.UUID `json:"user_id"`
}

// Job is a generic job envelope.
type Job struct {
	ID        string          `json:"id"`
	Type      JobType         `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	Attempt   int             `json:"attempt"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Decode unmarshals the job payload into v.
func (j *Job) Decode(v interface{}) error {
	if err := json.Unmarshal(j.Payload, v); err != nil {
		return fmt.Errorf("unmarshal %s payload: %w", j.Type, err)
	}
	return nil
}

// Options tunes retry behaviour. Zero values take the defaults.
type Options struct {
	MaxRetries   int
	RetryBackoff time.Duration
}

// Queue enqueues and dequeues jobs via Redis.
type Queue struct {
	client  *redis.Client
	opts    Options
	logger  *zap.Logger
	nowFunc func() time.Time
}

// NewQueue creates a new Redis-backed job queue.
func NewQueue(client *redis.Client, opts Options, logger *zap.Logger) *Queue {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.MaxRetries <= 0 {
		opts.MaxRetries = DefaultMaxRetries
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = DefaultRetryBackoff
	}
	return &Queue{client: client, opts: opts, logger: logger, nowFunc: time.Now}
}

// Enqueue pushes a job of the given type onto the ready list.
func (q *Queue) Enqueue(ctx context.Context, jobType JobType, payload interface{}) (*Job, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	job := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Payload:   body,
		CreatedAt: q.nowFunc(),
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return nil, fmt.Errorf("marshal job: %w", err)
	}
	if err := q.client.RPush(ctx, QueueNotifications, raw).Err(); err != nil {
		return nil, fmt.Errorf("rpush: %w", err)
	}
	q.logger.Debug("enqueued job", zap.String("job_id", job.ID), zap.String("type", string(jobType)))
	return job, nil
}

// EnqueuePush enqueues a live push for one channel.
func (q *Queue) EnqueuePush(ctx context.Context, payload PushPayload) error {
	_, err := q.Enqueue(ctx, JobTypePush, payload)
	return err
}

// EnqueueReadAll enqueues marking every notification of the user as read.
func (q *Queue) EnqueueReadAll(ctx context.Context, userID uuid.UUID) (*Job, error) {
	return q.Enqueue(ctx, JobTypeReadAll, UserPayload{UserID: userID})
}

// EnqueueDeleteAll enqueues deleting every notification of the user.
func (q *Queue) EnqueueDeleteAll(ctx context.Context, userID uuid.UUID) (*Job, error) {
	return q.Enqueue(ctx, JobTypeDeleteAll, UserPayload{UserID: userID})
}

// Dequeue blocks up to timeout for a job. Returns nil, nil when nothing arrived.
func (q *Queue) Dequeue(ctx context.Context, timeout time.Duration) (*Job, error) {
	result, err := q.client.BLPop(ctx, timeout, QueueNotifications).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}
	if len(result) < 2 {
		return nil, nil
	}
	var job Job
	if err := json.Unmarshal([]byte(result[1]), &job); err != nil {
		q.logger.Warn("invalid job payload", zap.String("raw", result[1]), zap.Error(err))
		_ = q.client.RPush(ctx, QueueDLQ, result[1]).Err()
		return nil, nil
	}
	return &job, nil
}

// Retry records the failure and schedules the job after the backoff.
// Once attempts reach MaxRetries the job goes to the DLQ instead. Reports whether it was dead-lettered.
func (q *Queue) Retry(ctx context.Context, job *Job, cause error) (bool, error) {
	job.Attempt++
	if cause != nil {
		job.LastError = cause.Error()
	}
	if job.Attempt >= q.opts.MaxRetries {
		return true, q.DeadLetter(ctx, job, job.LastError)
	}
	raw, err := json.Marshal(job)
	if err != nil {
		return false, err
	}
	due := q.nowFunc().Add(q.opts.RetryBackoff)
	if err := q.client.ZAdd(ctx, QueueDelayed, redis.Z{Score: float64(due.UnixMilli()), Member: raw}).Err(); err != nil {
		return false, fmt.Errorf("zadd: %w", err)
	}
	q.logger.Info("job retry scheduled", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.Time("due", due))
	return false, nil
}

// DeadLetter moves the job to the DLQ.
func (q *Queue) DeadLetter(ctx context.Context, job *Job, reason string) error {
	job.LastError = reason
	raw, err := json.Marshal(job)
	if err != nil {
		return err
	}
	if err := q.client.RPush(ctx, QueueDLQ, raw).Err(); err != nil {
		q.logger.Error("dlq push failed", zap.Error(err), zap.String("job_id", job.ID))
		return err
	}
	q.logger.Warn("job moved to DLQ", zap.String("job_id", job.ID), zap.Int("attempt", job.Attempt), zap.String("reason", reason))
	return nil
}

// PromoteDue moves delayed jobs whose retry time has passed back onto the ready list.
// A job removed from the set by another instance first is not pushed twice.
func (q *Queue) PromoteDue(ctx context.Context) (int, error) {
	max := strconv.FormatInt(q.nowFunc().UnixMilli(), 10)
	due, err := q.client.ZRangeByScore(ctx, QueueDelayed, &redis.ZRangeBy{Min: "-inf", Max: max}).Result()
	if err != nil {
		return 0, fmt.Errorf("zrangebyscore: %w", err)
	}
	promoted := 0
	for _, raw := range due {
		removed, err := q.client.ZRem(ctx, QueueDelayed, raw).Result()
		if err != nil {
			return promoted, fmt.Errorf("zrem: %w", err)
		}
		if removed == 0 {
			continue
		}
		if err := q.client.RPush(ctx, QueueNotifications, raw).Err(); err != nil {
			return promoted, fmt.Errorf("rpush: %w", err)
		}
		promoted++
	}
	return promoted, nil
}

// Depth returns the lengths of the ready list and the DLQ.
func (q *Queue) Depth(ctx context.Context) (ready, dead int64, err error) {
	if ready, err = q.client.LLen(ctx, QueueNotifications).Result(); err != nil {
		return 0, 0, err
	}
	if dead, err = q.client.LLen(ctx, QueueDLQ).Result(); err != nil {
		return 0, 0, err
	}
	return ready, dead, nil
}
