// Package workers provides a small bounded worker pool used by the screener
// to cap concurrent per-symbol scoring jobs.
package workers

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Task represents a unit of work to be processed.
type Task interface {
	Execute() error
}

// TaskFunc adapts a plain function to Task.
type TaskFunc func() error

func (f TaskFunc) Execute() error { return f() }

// PoolConfig configures the worker pool.
type PoolConfig struct {
	Name            string
	NumWorkers      int
	QueueSize       int
	TaskTimeout     time.Duration
	ShutdownTimeout time.Duration
	PanicRecovery   bool
}

// DefaultPoolConfig matches the screener's "≤5 concurrent tasks" contract.
func DefaultPoolConfig(name string) *PoolConfig {
	return &PoolConfig{
		Name:            name,
		NumWorkers:      5,
		QueueSize:       256,
		TaskTimeout:     10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		PanicRecovery:   true,
	}
}

// PoolMetrics tracks pool throughput.
type PoolMetrics struct {
	TasksSubmitted int64
	TasksCompleted int64
	TasksFailed    int64
	TasksTimeout   int64
	PanicRecovered int64
}

// PoolStats is a point-in-time snapshot of PoolMetrics.
type PoolStats struct {
	TasksSubmitted int64 `json:"tasksSubmitted"`
	TasksCompleted int64 `json:"tasksCompleted"`
	TasksFailed    int64 `json:"tasksFailed"`
	TasksTimeout   int64 `json:"tasksTimeout"`
	PanicRecovered int64 `json:"panicRecovered"`
}

func (m *PoolMetrics) snapshot() PoolStats {
	return PoolStats{
		TasksSubmitted: atomic.LoadInt64(&m.TasksSubmitted),
		TasksCompleted: atomic.LoadInt64(&m.TasksCompleted),
		TasksFailed:    atomic.LoadInt64(&m.TasksFailed),
		TasksTimeout:   atomic.LoadInt64(&m.TasksTimeout),
		PanicRecovered: atomic.LoadInt64(&m.PanicRecovered),
	}
}

// PanicError wraps a recovered panic value as an error.
type PanicError struct{ Recovered any }

func (e *PanicError) Error() string { return "worker panic recovered" }

// PoolError is the error type of the pool's sentinel errors (ErrQueueFull).
type PoolError struct{ Message string }

func (e *PoolError) Error() string { return e.Message }

var ErrQueueFull = &PoolError{Message: "task queue is full"}

// Pool manages a fixed set of worker goroutines draining a shared queue.
type Pool struct {
	logger *zap.Logger
	config *PoolConfig

	taskQueue chan Task
	wg        sync.WaitGroup

	running atomic.Bool
	ctx     context.Context
	cancel  context.CancelFunc

	metrics *PoolMetrics
}

// NewPool constructs a stopped pool.
func NewPool(logger *zap.Logger, config *PoolConfig) *Pool {
	if config == nil {
		config = DefaultPoolConfig("default")
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Pool{
		logger:    logger.Named("workers").With(zap.String("pool", config.Name)),
		config:    config,
		taskQueue: make(chan Task, config.QueueSize),
		ctx:       ctx,
		cancel:    cancel,
		metrics:   &PoolMetrics{},
	}
}

// Start launches the worker goroutines. Idempotent.
func (p *Pool) Start() {
	if p.running.Swap(true) {
		return
	}
	p.logger.Info("starting worker pool",
		zap.Int("workers", p.config.NumWorkers),
		zap.Int("queueSize", p.config.QueueSize),
	)
	for i := 0; i < p.config.NumWorkers; i++ {
		p.wg.Add(1)
		go p.run(i)
	}
}

// Stop cancels outstanding work and waits for workers to exit, bounded by
// ShutdownTimeout.
func (p *Pool) Stop() {
	if !p.running.Swap(false) {
		return
	}
	p.cancel()

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(p.config.ShutdownTimeout):
		p.logger.Warn("worker pool shutdown timed out")
	}
}

// Submit enqueues a task, returning ErrQueueFull if the pool is not running
// or the queue has no free slot (caller should drop the job rather than block — the screener's
// periodic loop would otherwise back up behind a busy symbol).
func (p *Pool) Submit(task Task) error {
	if !p.running.Load() {
		return ErrQueueFull
	}
	select {
	case p.taskQueue <- task:
		atomic.AddInt64(&p.metrics.TasksSubmitted, 1)
		return nil
	default:
		return ErrQueueFull
	}
}

// Stats returns a snapshot of pool counters.
func (p *Pool) Stats() PoolStats {
	return p.metrics.snapshot()
}

func (p *Pool) run(id int) {
	defer p.wg.Done()
	logger := p.logger.With(zap.Int("workerId", id))
	for {
		select {
		case <-p.ctx.Done():
			return
		case task, ok := <-p.taskQueue:
			if !ok {
				return
			}
			p.execute(logger, task)
		}
	}
}

func (p *Pool) execute(logger *zap.Logger, task Task) {
	ctx, cancel := context.WithTimeout(p.ctx, p.config.TaskTimeout)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		var err error
		if p.config.PanicRecovery {
			defer func() {
				if r := recover(); r != nil {
					atomic.AddInt64(&p.metrics.PanicRecovered, 1)
					logger.Error("worker recovered from panic", zap.Any("panic", r))
					err = &PanicError{Recovered: r}
				}
				done <- err
			}()
		}
		err = task.Execute()
		if !p.config.PanicRecovery {
			done <- err
		}
	}()

	select {
	case err := <-done:
		if err != nil {
			atomic.AddInt64(&p.metrics.TasksFailed, 1)
			logger.Debug("task failed", zap.Error(err))
		} else {
			atomic.AddInt64(&p.metrics.TasksCompleted, 1)
		}
	case <-ctx.Done():
		atomic.AddInt64(&p.metrics.TasksTimeout, 1)
		logger.Warn("task timed out", zap.Duration("timeout", p.config.TaskTimeout))
	}
}
