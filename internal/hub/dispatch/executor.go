package dispatch

import (
	"context"
	"runtime/debug"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"golang.org/x/sync/errgroup"
)

var logger = loggo.GetLogger("reqhub.hub.dispatch")

// Executor runs handlers with panic recovery and timing.
type Executor struct {
	panicHandler PanicHandler
	timeout      time.Duration
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPanicHandler sets the function called when a handler panics.
func WithPanicHandler(h PanicHandler) ExecutorOption {
	return func(e *Executor) {
		e.panicHandler = h
	}
}

// WithTimeout bounds each handler invocation. Handlers must respect context
// cancellation for the bound to take effect.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = d
	}
}

// NewExecutor creates a new executor with the given options.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{
		panicHandler: defaultPanicHandler,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func defaultPanicHandler(payload any, panicValue any, stack []byte) {
	logger.Errorf("handler panicked with %v on payload %T\n%s", panicValue, payload, stack)
}

// Execute runs a single handler and returns the result.
func (e *Executor) Execute(ctx context.Context, payload any, handler Handler) (result Result) {
	select {
	case <-ctx.Done():
		return Result{Err: ctx.Err(), Skipped: true}
	default:
	}

	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	start := time.Now()
	defer func() {
		result.Duration = time.Since(start)

		if r := recover(); r != nil {
			stack := debug.Stack()
			result.Handled = false
			result.Err = nil
			result.Panicked = true
			result.PanicValue = r
			result.PanicStack = stack

			if e.panicHandler != nil {
				func() {
					defer func() {
						_ = recover()
					}()
					e.panicHandler(payload, r, stack)
				}()
			}
		}
	}()

	handled, err := handler.Handle(ctx, payload)
	switch {
	case err == nil:
		result.Handled = handled
	case errors.Is(err, ErrConsumed):
		result.Handled = true
		result.Consumed = true
	case errors.Is(err, ErrInactive):
		result.Skipped = true
		result.Err = err
	default:
		result.Err = err
	}
	return result
}

// Sequential runs handlers one after another in order. Delivery stops early
// when the context is cancelled or a handler consumes the requisition; the
// remaining results are marked skipped.
func (e *Executor) Sequential(ctx context.Context, payload any, handlers []Handler) []Result {
	results := make([]Result, len(handlers))

	for i, handler := range handlers {
		i, handler := i, handler
		if err := ctx.Err(); err != nil {
			skipFrom(results, i, err)
			return results
		}

		results[i] = e.Execute(ctx, payload, handler)
		if results[i].Consumed {
			skipFrom(results, i+1, ErrConsumed)
			return results
		}
	}

	return results
}

// Concurrent runs all handlers at once and waits for them to finish.
// Consuming has no ordering effect here.
func (e *Executor) Concurrent(ctx context.Context, payload any, handlers []Handler) []Result {
	results := make([]Result, len(handlers))

	var g errgroup.Group
	for i, handler := range handlers {
		i, handler := i, handler
		g.Go(func() error {
			results[i] = e.Execute(ctx, payload, handler)
			return nil
		})
	}
	_ = g.Wait()

	return results
}

func skipFrom(results []Result, from int, reason error) {
	for j := from; j < len(results); j++ {
		results[j] = Result{Err: reason, Skipped: true}
	}
}
