// Package transport provides message channels between a hub and its remote
// peer. A channel moves whole messages in order; it has no notion of
// requisitions. Messages in flight when a channel closes may be lost.
package transport

import (
	"context"

	"github.com/juju/errors"
	"github.com/juju/loggo"
)

var logger = loggo.GetLogger("reqhub.transport")

// ErrClosed is returned by channel operations after either side closed.
const ErrClosed = errors.ConstError("channel closed")

// Channel is an ordered, message oriented, bidirectional connection.
//
// Send may be called concurrently with Receive. Implementations serialize
// concurrent Sends. Close unblocks a pending Receive.
type Channel interface {
	Send(ctx context.Context, msg []byte) error
	Receive(ctx context.Context) ([]byte, error)
	Close() error
}
