// Package batch drives a worker queue over a set of selected rows, running
// one remote transfer per row with bounded retries and live progress.
//
// A run moves Idle -> Running -> Completed or Cancelled. A non-retryable
// failure, or a retryable one on the last attempt, stops the queue and ends
// the run Cancelled with a FatalError naming the row. Rows that already
// transferred stay transferred.
package batch

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"sync/atomic"
	"time"

	"github.com/cs2interlink/cs2-int/internal/asf"
	"github.com/cs2interlink/cs2-int/internal/constants"
	"github.com/cs2interlink/cs2-int/internal/events"
	"github.com/cs2interlink/cs2-int/internal/logging"
	"github.com/cs2interlink/cs2-int/internal/worker"
)

// State is the lifecycle state of an Orchestrator.
type State int32

const (
	Idle State = iota
	Running
	Completed
	Cancelled
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Cancelled:
		return "cancelled"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

var (
	// ErrCancelled is returned by Run when the batch was cancelled by the user.
	ErrCancelled = errors.New("batch cancelled")
	// ErrAlreadyStarted is returned by a second call to Run.
	ErrAlreadyStarted = errors.New("batch already started")
)

// FatalError is the single error reported for a batch that aborted.
type FatalError struct {
	Operation string
	ID        string
	Name      string
	Attempts  int
	Err       error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("failed to %s item %s (%s): %v", e.Operation, e.Name, e.ID, e.Err)
}

func (e *FatalError) Unwrap() error { return e.Err }

// Target is the dataset a batch operates on.
type Target[R any] interface {
	// Lookup returns the row for id, if it is still present.
	Lookup(id string) (R, bool)
	// Complete is called once per successfully transferred id.
	Complete(id string)
}

// TransferFunc performs one remote transfer attempt for row.
type TransferFunc[R any] func(ctx context.Context, row R) error

// Options configures an Orchestrator.
type Options[R any] struct {
	// Operation names the transfer in errors and events: "store",
	// "retrieve" or "purchase".
	Operation string
	// Verb is the progress message prefix, e.g. "Storing".
	Verb string

	MaxAttempts int
	BackoffMin  time.Duration
	BackoffMax  time.Duration
	Concurrency worker.LimitFunc
	Delay       time.Duration
	SettleDelay time.Duration

	// Retryable reports whether a failed attempt may be repeated.
	// Defaults to asf.IsTimeout.
	Retryable func(error) bool
	// NameOf returns a display name for a row. Defaults to the id.
	NameOf func(R) string
	// Progress receives "<Verb> Items (p/t)" and p/t after every success.
	Progress func(message string, fraction float64)

	Reporter logging.ErrorReporter
	Logger   *logging.Logger
	Bus      *events.EventBus

	// Sleep waits between attempts and for the settle delay.
	Sleep func(ctx context.Context, d time.Duration)
}

// Result summarizes a finished run.
type Result struct {
	Total     int
	Processed int
	Duration  time.Duration
}

// Orchestrator runs one batch. It is not reusable.
type Orchestrator[R any] struct {
	target   Target[R]
	transfer TransferFunc[R]
	opts     Options[R]
	log      *logging.Logger

	state     atomic.Int32
	queue     *worker.Queue
	processed atomic.Int64
	total     int

	fatalOnce sync.Once
	fatal     *FatalError
}

// New creates an idle orchestrator.
func New[R any](target Target[R], transfer TransferFunc[R], opts Options[R]) *Orchestrator[R] {
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = constants.TransferMaxAttempts
	}
	if opts.BackoffMin <= 0 {
		opts.BackoffMin = constants.TransferBackoffMin
	}
	if opts.BackoffMax < opts.BackoffMin {
		opts.BackoffMax = max(opts.BackoffMin, constants.TransferBackoffMax)
	}
	if opts.Concurrency == nil {
		opts.Concurrency = worker.Fixed(constants.TransferConcurrency)
	}
	if opts.Retryable == nil {
		opts.Retryable = asf.IsTimeout
	}
	if opts.NameOf == nil {
		opts.NameOf = func(R) string { return "" }
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.Operation == "" {
		opts.Operation = "transfer"
	}
	log := opts.Logger
	if log == nil {
		log = logging.NewNopLogger()
	}
	if opts.Reporter == nil {
		opts.Reporter = log
	}

	o := &Orchestrator[R]{
		target:   target,
		transfer: transfer,
		opts:     opts,
		log:      log,
	}
	o.queue = worker.New(worker.Options{
		Concurrency: opts.Concurrency,
		Delay:       opts.Delay,
		Logger:      log,
	})
	return o
}

// State returns the current lifecycle state.
func (o *Orchestrator[R]) State() State {
	return State(o.state.Load())
}

// Processed returns the number of rows transferred so far.
func (o *Orchestrator[R]) Processed() int {
	return int(o.processed.Load())
}

// Run transfers every id and blocks until the batch ends. It returns a
// *FatalError if the batch aborted and ErrCancelled if Cancel was called
// or ctx ended. On success it waits the settle delay before returning.
func (o *Orchestrator[R]) Run(ctx context.Context, ids []string) (Result, error) {
	if !o.state.CompareAndSwap(int32(Idle), int32(Running)) {
		return Result{}, ErrAlreadyStarted
	}
	start := time.Now()
	o.total = len(ids)

	o.log.Info().
		Str("operation", o.opts.Operation).
		Int("items", o.total).
		Msg("Starting batch")
	o.report()

	for _, id := range ids {
		o.queue.Add(o.task(id))
		o.publish(events.EventTransferQueued, id, "", 0, nil)
	}
	o.queue.Run(ctx)

	if err := o.queue.Finish(ctx); err != nil {
		// ctx ended: stop dispatch and let in-flight transfers return
		_ = o.queue.Cancel(context.Background())
	}

	res := Result{Total: o.total, Processed: o.Processed(), Duration: time.Since(start)}

	if o.fatal != nil {
		o.state.Store(int32(Cancelled))
		o.complete(res, true)
		return res, o.fatal
	}
	if o.queue.Cancelled() {
		o.state.Store(int32(Cancelled))
		o.complete(res, true)
		return res, ErrCancelled
	}

	o.state.Store(int32(Completed))
	o.complete(res, false)
	o.opts.Sleep(ctx, o.opts.SettleDelay)
	return res, nil
}

// Cancel stops dispatching and waits for in-flight transfers to return.
func (o *Orchestrator[R]) Cancel(ctx context.Context) error {
	return o.queue.Cancel(ctx)
}

func (o *Orchestrator[R]) task(id string) worker.Task {
	return func(ctx context.Context) error {
		row, ok := o.target.Lookup(id)
		if !ok {
			o.log.Debug().Str("id", id).Msg("Batch row no longer present")
			return nil
		}
		name := o.opts.NameOf(row)
		if name == "" {
			name = id
		}
		o.publish(events.EventTransferStarted, id, name, 0, nil)

		var err error
		for attempt := 1; attempt <= o.opts.MaxAttempts; attempt++ {
			if o.queue.Cancelled() {
				o.publish(events.EventTransferCancelled, id, name, attempt, nil)
				return ErrCancelled
			}

			err = o.transfer(ctx, row)
			if err == nil {
				o.succeed(id, name, attempt)
				return nil
			}

			if ctx.Err() != nil {
				o.publish(events.EventTransferCancelled, id, name, attempt, err)
				return ErrCancelled
			}

			// a failure after cancel or abort ends the row quietly
			if o.queue.Cancelled() {
				o.opts.Reporter.ShowError(logging.LevelLow,
					fmt.Errorf("%s %s after cancel: %w", o.opts.Operation, name, err))
				o.publish(events.EventTransferCancelled, id, name, attempt, err)
				return ErrCancelled
			}

			if o.opts.Retryable(err) && attempt < o.opts.MaxAttempts {
				o.opts.Reporter.ShowError(logging.LevelLow,
					fmt.Errorf("%s %s attempt %d/%d: %w", o.opts.Operation, name, attempt, o.opts.MaxAttempts, err))
				o.publish(events.EventTransferRetrying, id, name, attempt, err)
				o.opts.Sleep(ctx, o.backoff())
				continue
			}

			o.abort(&FatalError{
				Operation: o.opts.Operation,
				ID:        id,
				Name:      name,
				Attempts:  attempt,
				Err:       err,
			})
			return err
		}
		return err
	}
}

func (o *Orchestrator[R]) succeed(id, name string, attempt int) {
	o.target.Complete(id)
	o.processed.Add(1)
	o.publish(events.EventTransferCompleted, id, name, attempt, nil)
	o.report()
}

// abort stops the queue and reports fe unless another row already failed.
func (o *Orchestrator[R]) abort(fe *FatalError) {
	o.queue.Stop()
	reported := false
	o.fatalOnce.Do(func() {
		o.fatal = fe
		reported = true
	})
	if !reported {
		o.log.Debug().Err(fe).Msg("Suppressed failure after batch abort")
		return
	}
	o.publish(events.EventTransferFailed, fe.ID, fe.Name, fe.Attempts, fe.Err)
	o.opts.Reporter.ShowError(logging.LevelHigh, fe)
}

func (o *Orchestrator[R]) backoff() time.Duration {
	span := int64(o.opts.BackoffMax - o.opts.BackoffMin)
	if span <= 0 {
		return o.opts.BackoffMin
	}
	return o.opts.BackoffMin + time.Duration(rand.Int64N(span+1))
}

func (o *Orchestrator[R]) report() {
	if o.opts.Progress == nil && o.opts.Bus == nil {
		return
	}
	processed := o.Processed()
	fraction := 1.0
	if o.total > 0 {
		fraction = float64(processed) / float64(o.total)
	}
	verb := o.opts.Verb
	if verb == "" {
		verb = "Processing"
	}
	msg := fmt.Sprintf("%s Items (%d/%d)", verb, processed, o.total)
	if o.opts.Progress != nil {
		o.opts.Progress(msg, fraction)
	}
	if o.opts.Bus != nil {
		o.opts.Bus.PublishProgress(o.opts.Operation, msg, fraction)
	}
}

func (o *Orchestrator[R]) publish(t events.EventType, id, name string, attempt int, err error) {
	if o.opts.Bus == nil {
		return
	}
	o.opts.Bus.PublishTransfer(t, o.opts.Operation, id, name, attempt, err)
}

func (o *Orchestrator[R]) complete(res Result, cancelled bool) {
	o.log.Info().
		Str("operation", o.opts.Operation).
		Int("processed", res.Processed).
		Int("total", res.Total).
		Bool("cancelled", cancelled).
		Dur("duration", res.Duration).
		Msg("Batch finished")
	if o.opts.Bus == nil {
		return
	}
	o.opts.Bus.Publish(&events.CompleteEvent{
		BaseEvent: events.BaseEvent{EventType: events.EventComplete, Time: time.Now()},
		Operation: o.opts.Operation,
		Total:     res.Total,
		Processed: res.Processed,
		Cancelled: cancelled,
		Duration:  res.Duration,
	})
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
