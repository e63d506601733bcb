package transport

import (
	"context"
	"sync"

	"github.com/juju/errors"
)

// Pipe returns two connected in-memory channels. Each direction buffers up
// to buffer messages. Closing either end closes both.
func Pipe(buffer int) (Channel, Channel) {
	if buffer < 0 {
		buffer = 0
	}
	ab := make(chan []byte, buffer)
	ba := make(chan []byte, buffer)
	shared := &pipeState{done: make(chan struct{})}

	a := &pipeEnd{in: ba, out: ab, state: shared}
	b := &pipeEnd{in: ab, out: ba, state: shared}
	return a, b
}

type pipeState struct {
	once sync.Once
	done chan struct{}
}

type pipeEnd struct {
	in    <-chan []byte
	out   chan<- []byte
	state *pipeState
}

func (p *pipeEnd) Send(ctx context.Context, msg []byte) error {
	select {
	case <-p.state.done:
		return ErrClosed
	default:
	}

	buf := append([]byte(nil), msg...)
	select {
	case p.out <- buf:
		return nil
	case <-p.state.done:
		return ErrClosed
	case <-ctx.Done():
		return errors.Trace(ctx.Err())
	}
}

func (p *pipeEnd) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-p.in:
		return msg, nil
	case <-p.state.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, errors.Trace(ctx.Err())
	}
}

func (p *pipeEnd) Close() error {
	p.state.once.Do(func() {
		close(p.state.done)
	})
	return nil
}
