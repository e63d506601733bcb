// Package dispatch runs requisition handlers with panic recovery, timing and
// optional timeouts. It knows nothing about names or registries; the hub
// hands it a payload and a list of handlers.
package dispatch

import (
	"context"
	"time"

	"github.com/juju/errors"
)

const (
	// ErrConsumed may be returned by a handler to mark the requisition as
	// handled and stop sequential delivery to later handlers.
	ErrConsumed = errors.ConstError("requisition consumed")

	// ErrInactive is returned by handlers whose subscription was cancelled
	// after the dispatch snapshot was taken.
	ErrInactive = errors.ConstError("subscription inactive")
)

// Handler handles one requisition payload. The boolean reports whether the
// handler considers the requisition handled.
type Handler interface {
	Handle(ctx context.Context, payload any) (bool, error)
}

// Result represents the outcome of a handler execution.
type Result struct {
	// Handled is true if the handler returned true without error or panic.
	Handled bool

	// Err is the error returned by the handler, if any.
	Err error

	// Panicked is true if the handler panicked.
	Panicked bool

	// PanicValue is the value passed to panic(), if Panicked is true.
	PanicValue any

	// PanicStack is the stack trace at the point of panic.
	PanicStack []byte

	// Duration is how long the handler took to execute.
	Duration time.Duration

	// Skipped is true if the handler was not executed.
	Skipped bool

	// Consumed is true if the handler stopped further delivery.
	Consumed bool
}

// Failed reports whether the handler returned an error or panicked.
func (r Result) Failed() bool {
	return r.Panicked || (r.Err != nil && !r.Skipped)
}

// AnyHandled reports whether at least one result was handled.
func AnyHandled(results []Result) bool {
	for _, r := range results {
		if r.Handled {
			return true
		}
	}
	return false
}

// PanicHandler is called when a handler panics during execution.
type PanicHandler func(payload any, panicValue any, stack []byte)
