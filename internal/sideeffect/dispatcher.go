// Package sideeffect runs best-effort work such as audit writes and
// notifications outside the request path. Task failures are logged and
// counted; they never reach the code that submitted the task.
package sideeffect

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"business-os/backend/internal/logging"
)

// Task is a unit of best-effort work.
type Task func(ctx context.Context) error

// Options configures a [Dispatcher].
type Options struct {
	// QueueSize bounds the number of pending tasks. Submissions beyond it
	// are dropped.
	QueueSize int
	Workers   int
	// TaskTimeout bounds each task's run time.
	TaskTimeout time.Duration
}

type job struct {
	ctx  context.Context
	name string
	task Task
}

// Dispatcher executes submitted tasks on a fixed pool of goroutines.
type Dispatcher struct {
	logger  *logging.Logger
	timeout time.Duration
	queue   chan job
	wg      sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	failures metric.Int64Counter
	dropped  metric.Int64Counter
}

// New starts a Dispatcher. Call [Dispatcher.Close] to drain it.
func New(logger *logging.Logger, opts Options) *Dispatcher {
	if logger == nil {
		logger = logging.Discard()
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = 64
	}
	if opts.Workers <= 0 {
		opts.Workers = 1
	}
	if opts.TaskTimeout <= 0 {
		opts.TaskTimeout = 30 * time.Second
	}

	meter := otel.Meter("business-os/backend/internal/sideeffect")
	failures, _ := meter.Int64Counter("side_effects.failures",
		metric.WithDescription("Best-effort tasks that returned an error or panicked"))
	dropped, _ := meter.Int64Counter("side_effects.dropped",
		metric.WithDescription("Best-effort tasks rejected because the queue was full or closed"))

	d := &Dispatcher{
		logger:   logger,
		timeout:  opts.TaskTimeout,
		queue:    make(chan job, opts.QueueSize),
		failures: failures,
		dropped:  dropped,
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.work()
	}
	return d
}

// Submit queues task without blocking. The task receives a context that
// keeps the values of ctx but not its cancellation. It returns false when
// the task was dropped.
func (d *Dispatcher) Submit(ctx context.Context, name string, task func(context.Context) error) bool {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.closed {
		d.drop(ctx, name, "closed")
		return false
	}
	select {
	case d.queue <- job{ctx: context.WithoutCancel(ctx), name: name, task: task}:
		return true
	default:
		d.drop(ctx, name, "queue full")
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish or for
// ctx to end.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("side effects not drained: %w", ctx.Err())
	}
}

func (d *Dispatcher) work() {
	defer d.wg.Done()
	for j := range d.queue {
		run(j.ctx, d.timeout, j.name, j.task, d.logger, d.failures)
	}
}

func (d *Dispatcher) drop(ctx context.Context, name, why string) {
	d.logger.Warn("side effect dropped", "task", name, "reason", why)
	if d.dropped != nil {
		d.dropped.Add(ctx, 1, metric.WithAttributes(attribute.String("task", name)))
	}
}

// Inline runs tasks synchronously on Submit with the same error handling
// as [Dispatcher]. It suits tests and one-shot commands.
type Inline struct {
	Logger  *logging.Logger
	Timeout time.Duration
}

// Submit runs task immediately and always reports true.
func (i Inline) Submit(ctx context.Context, name string, task func(context.Context) error) bool {
	logger := i.Logger
	if logger == nil {
		logger = logging.Discard()
	}
	timeout := i.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	run(context.WithoutCancel(ctx), timeout, name, task, logger, nil)
	return true
}

func run(ctx context.Context, timeout time.Duration, name string, task Task, logger *logging.Logger, failures metric.Int64Counter) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return task(ctx)
	}()
	if err == nil {
		return
	}

	logger.Error("side effect failed", "task", name, "error", err)
	if failures != nil {
		failures.Add(ctx, 1, metric.WithAttributes(attribute.String("task", name)))
	}
}
