package transport

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/juju/errors"
)

// MaxFrameSize bounds the body of a single framed message.
const MaxFrameSize = 32 << 20

// Stream frames messages over byte streams with Content-Length headers,
// the way stdio based peers exchange them.
//
// Receive does not observe its context while blocked on the reader; Close
// the stream (which closes c) to unblock it.
type Stream struct {
	reader *bufio.Reader
	writer io.Writer
	closer io.Closer

	mu     sync.Mutex
	closed atomic.Bool
}

// NewStream creates a framed channel reading from r and writing to w.
// Close closes c, which may be nil.
func NewStream(r io.Reader, w io.Writer, c io.Closer) *Stream {
	return &Stream{
		reader: bufio.NewReader(r),
		writer: w,
		closer: c,
	}
}

// Send writes one framed message.
func (s *Stream) Send(ctx context.Context, msg []byte) error {
	if s.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}

	header := fmt.Sprintf("Content-Length: %d\r\n\r\n", len(msg))

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := io.WriteString(s.writer, header); err != nil {
		return s.ioError(err, "write header")
	}
	if _, err := s.writer.Write(msg); err != nil {
		return s.ioError(err, "write body")
	}
	return nil
}

// Receive reads one framed message.
func (s *Stream) Receive(ctx context.Context) ([]byte, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	contentLength := -1
	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			return nil, s.ioError(err, "read header")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		name, value, ok := strings.Cut(line, ":")
		if !ok {
			logger.Debugf("ignoring malformed header %q", line)
			continue
		}
		if strings.EqualFold(strings.TrimSpace(name), "content-length") {
			n, err := strconv.Atoi(strings.TrimSpace(value))
			if err != nil || n < 0 {
				return nil, errors.NotValidf("content length %q", value)
			}
			contentLength = n
		}
	}

	if contentLength < 0 {
		return nil, errors.NotValidf("frame without Content-Length header")
	}
	if contentLength > MaxFrameSize {
		return nil, errors.NotValidf("frame of %d bytes", contentLength)
	}

	body := make([]byte, contentLength)
	if _, err := io.ReadFull(s.reader, body); err != nil {
		return nil, s.ioError(err, "read body")
	}
	return body, nil
}

// Close closes the underlying closer. Later calls do nothing.
func (s *Stream) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	if s.closer == nil {
		return nil
	}
	return errors.Trace(s.closer.Close())
}

func (s *Stream) ioError(err error, op string) error {
	if s.closed.Load() || errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
		return ErrClosed
	}
	return errors.Annotate(err, op)
}
