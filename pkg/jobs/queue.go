package jobs

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrClosed is returned by Enqueue once the queue is not accepting work.
var ErrClosed = errors.New("queue closed")

// ErrFull is returned by Enqueue when the buffer has no room.
var ErrFull = errors.New("queue full")

// Task wraps a payload with its retry bookkeeping.
type Task[T any] struct {
	Key      string
	Payload  T
	Attempt  int
	Enqueued time.Time
}

// Handler processes one task. A returned error schedules a retry.
type Handler[T any] func(context.Context, Task[T]) error

// Config configures the worker pool.
type Config struct {
	Workers    int
	BufferSize int
	MaxRetries int
	// RetryDelay is the first backoff; each further attempt doubles it up to MaxDelay.
	RetryDelay time.Duration
	MaxDelay   time.Duration
	// DrainTimeout bounds how long Stop keeps writing buffered tasks.
	DrainTimeout time.Duration
	Logger       *zap.Logger
}

// Queue is an in-process fire-and-forget task pool. Enqueue never blocks.
type Queue[T any] struct {
	name    string
	handler Handler[T]
	cfg     Config
	logger  *zap.Logger

	tasks chan Task[T]

	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
	open    bool
	workers sync.WaitGroup
	retries sync.WaitGroup
}

// New builds a queue. Start must be called before Enqueue.
func New[T any](name string, handler Handler[T], cfg Config) *Queue[T] {
	if cfg.Workers <= 0 {
		cfg.Workers = 1
	}
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = cfg.Workers * 16
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.RetryDelay {
		cfg.MaxDelay = 30 * cfg.RetryDelay
	}
	if cfg.DrainTimeout <= 0 {
		cfg.DrainTimeout = 5 * time.Second
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Queue[T]{
		name:    name,
		handler: handler,
		cfg:     cfg,
		logger:  cfg.Logger.With(zap.String("queue", name)),
		tasks:   make(chan Task[T], cfg.BufferSize),
	}
}

// Start launches the workers. Calling it twice is a no-op.
func (q *Queue[T]) Start(ctx context.Context) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.open || q.ctx != nil {
		return
	}
	q.ctx, q.cancel = context.WithCancel(context.WithoutCancel(ctx))
	q.open = true
	for i := 0; i < q.cfg.Workers; i++ {
		q.workers.Add(1)
		go q.work()
	}
	q.logger.Info("queue started", zap.Int("workers", q.cfg.Workers))
}

// Enqueue buffers payload for processing.
func (q *Queue[T]) Enqueue(key string, payload T) error {
	return q.push(Task[T]{Key: key, Payload: payload, Enqueued: time.Now().UTC()})
}

func (q *Queue[T]) push(task Task[T]) error {
	q.mu.RLock()
	defer q.mu.RUnlock()
	if !q.open {
		return ErrClosed
	}
	select {
	case q.tasks <- task:
		return nil
	default:
		return ErrFull
	}
}

// Pending reports the number of buffered tasks.
func (q *Queue[T]) Pending() int {
	return len(q.tasks)
}

// Stop refuses new tasks, writes what is buffered within DrainTimeout and
// waits for the workers to exit. Pending retries are abandoned.
func (q *Queue[T]) Stop() {
	q.mu.Lock()
	if !q.open {
		q.mu.Unlock()
		return
	}
	q.open = false
	close(q.tasks)
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.workers.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(q.cfg.DrainTimeout):
		q.logger.Warn("queue drain timed out", zap.Int("abandoned", len(q.tasks)))
	}
	q.cancel()
	q.workers.Wait()
	q.retries.Wait()
	q.logger.Info("queue stopped")
}

func (q *Queue[T]) work() {
	defer q.workers.Done()
	for task := range q.tasks {
		if q.ctx.Err() != nil {
			continue
		}
		if err := q.handler(q.ctx, task); err != nil {
			q.retry(task, err)
		}
	}
}

func (q *Queue[T]) retry(task Task[T], err error) {
	task.Attempt++
	if task.Attempt > q.cfg.MaxRetries {
		q.logger.Error("task dropped after retries", zap.String("key", task.Key), zap.Int("attempts", task.Attempt), zap.Error(err))
		return
	}
	delay := q.backoff(task.Attempt)
	q.logger.Warn("task failed, retrying", zap.String("key", task.Key), zap.Int("attempt", task.Attempt), zap.Duration("delay", delay), zap.Error(err))

	q.retries.Add(1)
	go func() {
		defer q.retries.Done()
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-q.ctx.Done():
		case <-timer.C:
			if err := q.push(task); err != nil {
				q.logger.Error("task requeue failed", zap.String("key", task.Key), zap.Error(err))
			}
		}
	}()
}

func (q *Queue[T]) backoff(attempt int) time.Duration {
	delay := q.cfg.RetryDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= q.cfg.MaxDelay {
			return q.cfg.MaxDelay
		}
	}
	return delay
}
