package async

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"
)

// ErrPoolClosed is returned when submitting to a pool that is draining.
var ErrPoolClosed = errors.New("worker pool is shutting down")

// Task is one unit of work. Returning an error cancels the remaining tasks.
type Task func(ctx context.Context) error

// Pool runs tasks on a fixed number of workers. The first task error cancels the
// pool context; Wait reports it.
type Pool struct {
	logger  *zap.Logger
	workers int

	ctx    context.Context
	cancel context.CancelFunc

	ch   chan Task
	wg   sync.WaitGroup
	once sync.Once

	mu     sync.Mutex
	closed bool

	errOnce sync.Once
	err     error
}

type Option func(*Pool)

func WithWorkers(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.workers = n
		}
	}
}
func WithQueueSize(n int) Option {
	return func(p *Pool) {
		if n > 0 {
			p.ch = make(chan Task, n)
		}
	}
}

func NewPool(ctx context.Context, logger *zap.Logger, opts ...Option) *Pool {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Pool{
		logger:  logger,
		workers: 4,
		ch:      make(chan Task, 64),
	}
	for _, o := range opts {
		o(p)
	}
	p.ctx, p.cancel = context.WithCancel(ctx)
	p.start()
	return p
}

func (p *Pool) start() {
	p.once.Do(func() {
		for i := 0; i < p.workers; i++ {
			p.wg.Add(1)
			go func(workerID int) {
				defer p.wg.Done()
				p.logger.Debug("worker started", zap.Int("worker_id", workerID))

				for task := range p.ch {
					if p.ctx.Err() != nil {
						continue
					}
					if err := p.run(task); err != nil {
						p.fail(err)
					}
				}

				p.logger.Debug("worker stopped", zap.Int("worker_id", workerID))
			}(i + 1)
		}
	})
}

func (p *Pool) run(task Task) error {
	return task(p.ctx)
}

func (p *Pool) fail(err error) {
	p.errOnce.Do(func() {
		p.err = err
		p.cancel()
	})
}

// Submit queues a task, blocking while the queue is full. It fails once the pool
// context is done or the pool is closed.
func (p *Pool) Submit(task Task) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.ch <- task:
		return nil
	default:
	}
	p.logger.Debug("queue full, applying backpressure")
	select {
	case p.ch <- task:
		return nil
	case <-p.ctx.Done():
		return p.ctx.Err()
	}
}

// Wait closes the queue, waits for the workers to drain it and returns the first task
// error, or the parent context error if it was cancelled.
func (p *Pool) Wait() error {
	p.close()
	p.wg.Wait()
	defer p.cancel()

	if p.err != nil {
		return p.err
	}
	return p.ctx.Err()
}

func (p *Pool) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.ch)
}

// ForEach calls fn for every index in [0, n) on at most workers goroutines and waits for
// all of them. It returns the first error, or ctx's error if ctx ended first.
func ForEach(ctx context.Context, logger *zap.Logger, workers, n int, fn func(ctx context.Context, i int) error) error {
	if n == 0 {
		return ctx.Err()
	}
	if workers > n {
		workers = n
	}
	p := NewPool(ctx, logger, WithWorkers(workers), WithQueueSize(n))
	for i := 0; i < n; i++ {
		i := i
		if err := p.Submit(func(ctx context.Context) error { return fn(ctx, i) }); err != nil {
			break
		}
	}
	return p.Wait()
}
