// Package worker provides a bounded-concurrency task queue with priority
// insertion, per-dispatch delay and cooperative cancellation.
//
// The concurrency bound is read before every dispatch decision, so it may
// follow live external state (for example the number of connected accounts)
// and grow or shrink while the queue drains.
package worker

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/logging"
)

// Task is one unit of work. Returned errors and panics are logged and
// swallowed; a task reports its own failures.
type Task func(ctx context.Context) error

// LimitFunc returns the current concurrency bound.
type LimitFunc func() int

// Fixed returns a LimitFunc that always reports n.
func Fixed(n int) LimitFunc {
	return func() int { return n }
}

// Options configures a Queue.
type Options struct {
	// Concurrency bounds the number of active tasks. Defaults to Fixed(1).
	Concurrency LimitFunc
	// Delay is slept after each dispatch while more tasks are pending.
	Delay time.Duration
	// PollInterval is how often a saturated queue rechecks for free capacity.
	PollInterval time.Duration
	Logger       *logging.Logger
}

// Queue runs tasks with at most Concurrency() of them active at once.
type Queue struct {
	opts Options
	log  *logging.Logger

	mu      sync.Mutex
	pending []Task
	active  int
	running bool

	cancelled atomic.Bool
}

// New creates an idle queue.
func New(opts Options) *Queue {
	if opts.Concurrency == nil {
		opts.Concurrency = Fixed(1)
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = constants.WorkerPollInterval
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	return &Queue{opts: opts, log: log}
}

// AddOption modifies how a task is enqueued.
type AddOption func(*addOptions)

type addOptions struct {
	priority bool
}

// WithPriority inserts the task at the head of the pending queue.
// Tasks already dispatched are never preempted.
func WithPriority() AddOption {
	return func(o *addOptions) { o.priority = true }
}

// Add enqueues task. Calls made after Cancel are ignored.
func (q *Queue) Add(task Task, opts ...AddOption) {
	if q.cancelled.Load() {
		return
	}

	var o addOptions
	for _, opt := range opts {
		opt(&o)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	if o.priority {
		q.pending = append([]Task{task}, q.pending...)
	} else {
		q.pending = append(q.pending, task)
	}
}

// Run starts draining the queue in the background. Calling Run while the
// queue is already draining is a no-op. The drain loop exits once the
// pending queue is empty; tasks added afterwards need another Run.
func (q *Queue) Run(ctx context.Context) {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return
	}
	q.running = true
	q.mu.Unlock()

	go q.loop(ctx)
}

func (q *Queue) loop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			q.Stop()
		}

		q.mu.Lock()
		if len(q.pending) == 0 {
			q.running = false
			q.mu.Unlock()
			return
		}

		if q.active >= q.opts.Concurrency() {
			q.mu.Unlock()
			sleep(ctx, q.opts.PollInterval)
			continue
		}

		task := q.pending[0]
		q.pending = q.pending[1:]
		q.active++
		more := len(q.pending) > 0
		q.mu.Unlock()

		go q.execute(ctx, task)

		if more && q.opts.Delay > 0 {
			sleep(ctx, q.opts.Delay)
		}
	}
}

func (q *Queue) execute(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			q.log.Error().Str("panic", fmt.Sprint(r)).Msg("worker task panicked")
		}
		q.mu.Lock()
		q.active--
		q.mu.Unlock()
	}()

	if err := task(ctx); err != nil {
		q.log.Debug().Err(err).Msg("worker task failed")
	}
}

// Finish blocks until no task is pending or active, polling at the queue's
// poll interval. It returns ctx.Err() if ctx ends first.
func (q *Queue) Finish(ctx context.Context) error {
	ticker := time.NewTicker(q.opts.PollInterval)
	defer ticker.Stop()

	for {
		if q.idle() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Stop marks the queue cancelled and drops pending tasks without waiting.
// Tasks call this on a fatal error since waiting from inside a task would
// never finish.
func (q *Queue) Stop() {
	q.cancelled.Store(true)
	q.mu.Lock()
	q.pending = nil
	q.mu.Unlock()
}

// Cancel stops dispatch, drops pending tasks and waits for active tasks to
// return. Active tasks are not interrupted; they observe Cancelled at their
// own safe points.
func (q *Queue) Cancel(ctx context.Context) error {
	q.Stop()
	return q.Finish(ctx)
}

// Cancelled reports whether Cancel or Stop was called.
func (q *Queue) Cancelled() bool {
	return q.cancelled.Load()
}

// Active returns the number of tasks currently running.
func (q *Queue) Active() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active
}

// Pending returns the number of tasks waiting for dispatch.
func (q *Queue) Pending() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

func (q *Queue) idle() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.active == 0 && len(q.pending) == 0
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
