// Package bridge connects a hub to a peer hub over a transport channel.
//
// Outgoing requisitions are queued and written in order by a single writer
// goroutine. Incoming envelopes are decoded by a reader goroutine and
// delivered to the local hub one at a time, in arrival order. When the
// channel goes away queued requisitions are dropped.
package bridge

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/juju/loggo"
	"gopkg.in/tomb.v2"

	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
	"github.com/dshills/reqhub/internal/traffic"
	"github.com/dshills/reqhub/internal/transport"
)

var logger = loggo.GetLogger("reqhub.bridge")

const (
	// ErrDisconnected is returned by Send once the channel has gone away.
	ErrDisconnected = errors.ConstError("bridge disconnected")

	// ErrStarted is returned by Start when the bridge already ran.
	ErrStarted = errors.ConstError("bridge already started")

	defaultQueueSize = 64
)

// Option configures a Bridge.
type Option func(*Bridge)

// WithPeer names the peer in log lines and traffic records.
func WithPeer(name string) Option {
	return func(b *Bridge) {
		b.peer = name
	}
}

// WithTap publishes every envelope sent or received on tap.
func WithTap(tap *traffic.Tap) Option {
	return func(b *Bridge) {
		b.tap = tap
	}
}

// WithQueueSize sets how many outgoing requisitions may wait for the writer.
func WithQueueSize(n int) Option {
	return func(b *Bridge) {
		if n > 0 {
			b.queueSize = n
		}
	}
}

// WithDisconnectHandler registers fn to be called once when the channel
// fails or is closed by the peer. It is not called after Close.
func WithDisconnectHandler(fn func(err error)) Option {
	return func(b *Bridge) {
		b.onDisconnect = fn
	}
}

// Bridge is a hub.Remote backed by a transport channel.
type Bridge struct {
	hub       *hub.Hub
	ch        transport.Channel
	peer      string
	tap       *traffic.Tap
	queueSize int

	outbound     chan requisition.Envelope
	onDisconnect func(error)

	tomb      tomb.Tomb
	startOnce sync.Once
	started   atomic.Bool
	closing   atomic.Bool
}

// New creates a bridge for h over ch and attaches it as h's remote.
func New(h *hub.Hub, ch transport.Channel, opts ...Option) *Bridge {
	b := &Bridge{
		hub:       h,
		ch:        ch,
		peer:      h.Source(),
		queueSize: defaultQueueSize,
	}
	for _, opt := range opts {
		opt(b)
	}
	b.outbound = make(chan requisition.Envelope, b.queueSize)
	h.SetRemote(b)
	return b
}

// Peer returns the name the bridge logs under.
func (b *Bridge) Peer() string {
	return b.peer
}

// Start runs the reader and writer. Cancelling ctx disconnects the bridge.
func (b *Bridge) Start(ctx context.Context) error {
	if b.closing.Load() {
		return ErrDisconnected
	}
	var err error = ErrStarted
	b.startOnce.Do(func() {
		err = nil
		b.started.Store(true)

		deliver := b.tomb.Context(ctx)
		b.tomb.Go(func() error {
			select {
			case <-b.tomb.Dying():
			case <-ctx.Done():
				b.tomb.Kill(nil)
			}
			if err := b.ch.Close(); err != nil {
				logger.Debugf("%s: closing channel: %v", b.peer, err)
			}
			return nil
		})
		b.tomb.Go(b.writeLoop)
		b.tomb.Go(func() error {
			return b.readLoop(deliver)
		})

		if b.onDisconnect != nil {
			go func() {
				<-b.tomb.Dead()
				if !b.closing.Load() {
					b.onDisconnect(b.tomb.Err())
				}
			}()
		}
		logger.Debugf("%s: bridge started", b.peer)
	})
	return err
}

// Send queues env for the peer. It fails with ErrDisconnected once the
// bridge is closed or its channel failed.
func (b *Bridge) Send(ctx context.Context, env requisition.Envelope) error {
	if !b.tomb.Alive() {
		return ErrDisconnected
	}
	select {
	case b.outbound <- env:
		return nil
	case <-b.tomb.Dying():
		return ErrDisconnected
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

// Connected reports whether the bridge is running.
func (b *Bridge) Connected() bool {
	return b.started.Load() && b.tomb.Alive()
}

// Close stops the bridge, closes the channel and waits for both loops.
// Requisitions still queued are dropped. Close must not be called from a
// subscriber the bridge is delivering to; use Kill there.
func (b *Bridge) Close() error {
	b.Kill()
	if !b.started.Load() {
		return errors.Trace(b.ch.Close())
	}
	return b.tomb.Wait()
}

// Kill asks the bridge to stop without waiting for it.
func (b *Bridge) Kill() {
	b.closing.Store(true)
	b.tomb.Kill(nil)
}

// Wait blocks until the bridge stops and returns the reason it failed, if
// it did.
func (b *Bridge) Wait() error {
	if !b.started.Load() {
		return nil
	}
	return b.tomb.Wait()
}

// Dead is closed once both loops have returned. Start must have been
// called.
func (b *Bridge) Dead() <-chan struct{} {
	return b.tomb.Dead()
}

func (b *Bridge) writeLoop() error {
	ctx := b.tomb.Context(nil)
	for {
		select {
		case <-b.tomb.Dying():
			if n := len(b.outbound); n > 0 {
				logger.Debugf("%s: dropping %d queued requisitions", b.peer, n)
			}
			return nil
		case env := <-b.outbound:
			data, err := env.Marshal()
			if err != nil {
				logger.Errorf("%s: encoding %q: %v", b.peer, env.RequestType, err)
				continue
			}
			if err := b.ch.Send(ctx, data); err != nil {
				if b.gone(err) {
					b.tomb.Kill(nil)
					return nil
				}
				return errors.Annotatef(err, "sending %q to %s", env.RequestType, b.peer)
			}
			logger.Tracef("%s: sent %q", b.peer, env.RequestType)
			b.tap.Sent(b.peer, env)
		}
	}
}

func (b *Bridge) readLoop(ctx context.Context) error {
	for {
		data, err := b.ch.Receive(ctx)
		if err != nil {
			if b.gone(err) {
				b.tomb.Kill(nil)
				return nil
			}
			return errors.Annotatef(err, "receiving from %s", b.peer)
		}

		env, err := requisition.ParseEnvelope(data)
		if err != nil {
			logger.Warningf("%s: dropping message: %v", b.peer, err)
			continue
		}
		logger.Tracef("%s: received %q from %q", b.peer, env.RequestType, env.Source)
		b.tap.Received(b.peer, env)
		b.hub.HandleRemote(ctx, env)
	}
}

// gone reports whether err means the channel or the bridge went away rather
// than a transport failure.
func (b *Bridge) gone(err error) bool {
	if errors.Is(err, transport.ErrClosed) {
		return true
	}
	select {
	case <-b.tomb.Dying():
		return true
	default:
		return false
	}
}
