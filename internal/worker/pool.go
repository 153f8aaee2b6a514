package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/blanball/backend/internal/metrics"
	"github.com/blanball/backend/pkg/queue"
)

const (
	defaultPollTimeout  = 2 * time.Second
	defaultPromoteEvery = time.Second
	dequeueErrorBackoff = time.Second
	defaultJobTimeout   = 5 * time.Second
	defaultConcurrency  = 1
)

// HandlerFunc processes one job. A returned error schedules a retry.
type HandlerFunc func(ctx context.Context, job *queue.Job) error

// Source is the queue the pool consumes.
type Source interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job, cause error) (bool, error)
	DeadLetter(ctx context.Context, job *queue.Job, reason string) error
	PromoteDue(ctx context.Context) (int, error)
}

// Config tunes the pool. Zero values take defaults.
type Config struct {
	Concurrency  int
	JobTimeout   time.Duration
	PollTimeout  time.Duration
	PromoteEvery time.Duration
}

// Pool runs a fixed number of workers dispatching jobs by type.
type Pool struct {
	src      Source
	cfg      Config
	handlers map[queue.JobType]HandlerFunc
	logger   *zap.Logger
}

// NewPool creates a worker pool over src.
func NewPool(src Source, cfg Config, logger *zap.Logger) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultConcurrency
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = defaultJobTimeout
	}
	if cfg.PollTimeout <= 0 {
		cfg.PollTimeout = defaultPollTimeout
	}
	if cfg.PromoteEvery <= 0 {
		cfg.PromoteEvery = defaultPromoteEvery
	}
	return &Pool{src: src, cfg: cfg, handlers: make(map[queue.JobType]HandlerFunc), logger: logger}
}

// Handle registers the handler for a job type. Call before Run.
func (p *Pool) Handle(jobType queue.JobType, fn HandlerFunc) {
	p.handlers[jobType] = fn
}

// Run starts the workers and the retry promoter, and blocks until ctx is done.
func (p *Pool) Run(ctx context.Context) {
	var wg sync.WaitGroup
	for i := 0; i < p.cfg.Concurrency; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			p.work(ctx, n)
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.promote(ctx)
	}()
	p.logger.Info("worker pool started", zap.Int("concurrency", p.cfg.Concurrency))
	wg.Wait()
	p.logger.Info("worker pool stopped")
}

func (p *Pool) work(ctx context.Context, n int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		job, err := p.src.Dequeue(ctx, p.cfg.PollTimeout)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.logger.Warn("dequeue error", zap.Int("worker", n), zap.Error(err))
			sleep(ctx, dequeueErrorBackoff)
			continue
		}
		if job == nil {
			continue
		}
		p.Process(ctx, job)
	}
}

// Process runs one job under the per-job timeout and records the outcome.
func (p *Pool) Process(ctx context.Context, job *queue.Job) {
	fn, ok := p.handlers[job.Type]
	if !ok {
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "dead").Inc()
		if err := p.src.DeadLetter(ctx, job, "unknown job type"); err != nil {
			p.logger.Error("dead-letter failed", zap.String("job_id", job.ID), zap.Error(err))
		}
		return
	}

	start := time.Now()
	err := p.run(ctx, fn, job)
	metrics.JobDuration.WithLabelValues(string(job.Type)).Observe(time.Since(start).Seconds())
	if err == nil {
		metrics.JobsProcessed.WithLabelValues(string(job.Type), "ok").Inc()
		return
	}

	p.logger.Error("job failed", zap.String("job_id", job.ID), zap.String("type", string(job.Type)), zap.Int("attempt", job.Attempt), zap.Error(err))
	// the job's own context may be done; retry bookkeeping must still happen
	dead, reErr := p.src.Retry(context.WithoutCancel(ctx), job, err)
	if reErr != nil {
		p.logger.Error("retry enqueue failed", zap.String("job_id", job.ID), zap.Error(reErr))
		return
	}
	outcome := "retry"
	if dead {
		outcome = "dead"
	}
	metrics.JobsProcessed.WithLabelValues(string(job.Type), outcome).Inc()
}

func (p *Pool) run(ctx context.Context, fn HandlerFunc, job *queue.Job) (err error) {
	jctx, cancel := context.WithTimeout(ctx, p.cfg.JobTimeout)
	defer cancel()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	err = fn(jctx, job)
	if err == nil && errors.Is(jctx.Err(), context.DeadlineExceeded) {
		err = fmt.Errorf("job exceeded %s", p.cfg.JobTimeout)
	}
	return err
}

func (p *Pool) promote(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.PromoteEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := p.src.PromoteDue(ctx)
			if err != nil {
				if ctx.Err() == nil {
					p.logger.Warn("promote delayed jobs failed", zap.Error(err))
				}
				continue
			}
			if n > 0 {
				p.logger.Debug("promoted delayed jobs", zap.Int("count", n))
			}
		}
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
