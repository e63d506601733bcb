// Package shell is a client for the shell backend's websocket endpoint.
//
// A Session keeps one connection to the backend, reconnecting with backoff
// when it drops, and reports its state on a hub: socketStateChanged on every
// connect and disconnect, webSessionStarted when the backend announces a
// session, and showError when the backend cannot be reached.
package shell

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/juju/clock"
	"github.com/juju/errors"
	"github.com/juju/loggo"
	"github.com/juju/retry"
	"gopkg.in/tomb.v2"

	"github.com/dshills/reqhub/internal/hub"
	"github.com/dshills/reqhub/internal/requisition"
	"github.com/dshills/reqhub/internal/transport"
)

var logger = loggo.GetLogger("reqhub.shell")

const (
	// ErrDisconnected is returned for requests made or pending while the
	// backend is unreachable.
	ErrDisconnected = errors.ConstError("shell disconnected")

	// ErrRequestFailed is returned when the backend answers with an error.
	ErrRequestFailed = errors.ConstError("shell request failed")

	// Path is the backend's websocket endpoint.
	Path = "/ws1.ws"
)

// Dialer opens a channel to the backend.
type Dialer func(ctx context.Context) (transport.Channel, error)

// DialURL returns a Dialer for a websocket URL.
func DialURL(url string) Dialer {
	return func(ctx context.Context) (transport.Channel, error) {
		return transport.DialWebSocket(ctx, url, nil)
	}
}

// Config holds the dependencies and timings of a Session.
type Config struct {
	Dial  Dialer
	Hub   *hub.Hub
	Clock clock.Clock

	// GracePeriod is how long a lost connection may stay down before an
	// error is shown.
	GracePeriod time.Duration

	RetryDelay    time.Duration
	MaxRetryDelay time.Duration
	// Attempts bounds reconnection attempts; -1 retries until closed.
	Attempts int

	// RequestTimeout bounds each request when positive.
	RequestTimeout time.Duration

	// Debug executes a debugger requisition for every message.
	Debug bool
}

// Validate checks the config and fills in defaults.
func (c *Config) Validate() error {
	if c.Dial == nil {
		return errors.NotValidf("nil Dial")
	}
	if c.Hub == nil {
		return errors.NotValidf("nil Hub")
	}
	if c.Clock == nil {
		c.Clock = clock.WallClock
	}
	if c.GracePeriod <= 0 {
		c.GracePeriod = 3 * time.Second
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = 500 * time.Millisecond
	}
	if c.MaxRetryDelay < c.RetryDelay {
		c.MaxRetryDelay = 10 * time.Second
	}
	if c.Attempts == 0 {
		c.Attempts = -1
	}
	return nil
}

type call struct {
	responses chan Response
	// gone is closed when the caller stops waiting.
	gone chan struct{}
	// lost is closed when the connection drops.
	lost chan struct{}
}

// Session is a reconnecting backend connection.
type Session struct {
	cfg  Config
	tomb tomb.Tomb

	mu            sync.Mutex
	ch            transport.Channel
	pending       map[string]*call
	everConnected bool
	sessionUUID   string
	grace         clock.Timer

	// closed stops new commands so that commands can be waited for.
	closed   bool
	commands sync.WaitGroup
}

// NewSession validates cfg and starts connecting.
func NewSession(cfg Config) (*Session, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	s := &Session{
		cfg:     cfg,
		pending: make(map[string]*call),
	}
	s.tomb.Go(s.loop)
	s.tomb.Go(s.closeOnDying)
	return s, nil
}

// Connected reports whether the backend is reachable.
func (s *Session) Connected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ch != nil
}

// SessionUUID returns the id of the web session the backend announced.
func (s *Session) SessionUUID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionUUID
}

// Close disconnects and stops reconnecting.
func (s *Session) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	s.tomb.Kill(nil)
	err := s.tomb.Wait()
	s.commands.Wait()

	s.mu.Lock()
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	s.mu.Unlock()
	return err
}

// Execute runs a command and collects every response up to the final one.
func (s *Session) Execute(ctx context.Context, command string, args map[string]any) ([]Response, error) {
	var responses []Response
	final, err := s.ExecuteStream(ctx, command, args, func(r Response) {
		responses = append(responses, r)
	})
	if final.RequestID != "" {
		responses = append(responses, final)
	}
	return responses, err
}

// ExecuteStream runs a command, passing pending responses to onData, and
// returns the final response.
func (s *Session) ExecuteStream(ctx context.Context, command string, args map[string]any, onData func(Response)) (Response, error) {
	if s.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RequestTimeout)
		defer cancel()
	}

	req := Request{
		Request:   "execute",
		RequestID: uuid.NewString(),
		Command:   command,
		Args:      args,
	}
	data, err := json.Marshal(req)
	if err != nil {
		return Response{}, errors.Annotatef(err, "encoding %s", command)
	}

	c := &call{
		responses: make(chan Response, 16),
		gone:      make(chan struct{}),
		lost:      make(chan struct{}),
	}
	s.mu.Lock()
	ch := s.ch
	if ch == nil {
		s.mu.Unlock()
		return Response{}, ErrDisconnected
	}
	s.pending[req.RequestID] = c
	s.mu.Unlock()
	defer s.forget(req.RequestID, c)

	s.debug(ctx, data, true)
	if err := ch.Send(ctx, data); err != nil {
		if errors.Is(err, transport.ErrClosed) {
			return Response{}, ErrDisconnected
		}
		return Response{}, errors.Annotatef(err, "sending %s", command)
	}

	for {
		select {
		case resp := <-c.responses:
			if !resp.Final() {
				if onData != nil {
					onData(resp)
				}
				continue
			}
			if resp.Failed() {
				return resp, errors.Annotatef(ErrRequestFailed, "%s: %s", command, resp.RequestState.Msg)
			}
			return resp, nil
		case <-c.lost:
			return Response{}, ErrDisconnected
		case <-ctx.Done():
			return Response{}, errors.Annotatef(ctx.Err(), "waiting for %s", command)
		}
	}
}

func (s *Session) forget(id string, c *call) {
	s.mu.Lock()
	if s.pending[id] == c {
		delete(s.pending, id)
	}
	s.mu.Unlock()
	close(c.gone)
}

func (s *Session) loop() error {
	for {
		ch, err := s.connect()
		if err != nil {
			if !s.tomb.Alive() {
				return nil
			}
			return errors.Annotate(err, "connecting to the shell backend")
		}
		s.connectedTo(ch)
		if !s.tomb.Alive() {
			_ = ch.Close()
			return nil
		}

		err = s.read(ch)
		s.disconnected(err)
		if !s.tomb.Alive() {
			return nil
		}
	}
}

// closeOnDying unblocks the reader when the session is closed.
func (s *Session) closeOnDying() error {
	<-s.tomb.Dying()
	s.mu.Lock()
	ch := s.ch
	s.mu.Unlock()
	if ch != nil {
		_ = ch.Close()
	}
	return nil
}

func (s *Session) connect() (transport.Channel, error) {
	ctx := s.tomb.Context(nil)

	s.mu.Lock()
	everConnected := s.everConnected
	s.mu.Unlock()

	var ch transport.Channel
	err := retry.Call(retry.CallArgs{
		Func: func() error {
			c, err := s.cfg.Dial(ctx)
			if err != nil {
				return errors.Trace(err)
			}
			ch = c
			return nil
		},
		NotifyFunc: func(err error, attempt int) {
			logger.Debugf("connection attempt %d: %v", attempt, err)
			if attempt == 1 && !everConnected {
				s.execute(requisition.ShowError, "Communication error: could not connect to the shell backend.")
			}
		},
		Attempts:    s.cfg.Attempts,
		Delay:       s.cfg.RetryDelay,
		MaxDelay:    s.cfg.MaxRetryDelay,
		BackoffFunc: retry.DoubleDelay,
		Clock:       s.cfg.Clock,
		Stop:        s.tomb.Dying(),
	})
	if err != nil {
		return nil, errors.Trace(err)
	}
	return ch, nil
}

func (s *Session) connectedTo(ch transport.Channel) {
	s.mu.Lock()
	s.ch = ch
	recovered := s.grace != nil
	if s.grace != nil {
		s.grace.Stop()
		s.grace = nil
	}
	s.everConnected = true
	s.mu.Unlock()

	logger.Infof("connected to the shell backend")
	hub.Execute(s.tomb.Context(nil), s.cfg.Hub, requisition.SocketStateChanged, true)
	if recovered {
		s.execute(requisition.ShowInfo, "The connection to the shell backend was re-established.")
	}
}

func (s *Session) disconnected(err error) {
	s.mu.Lock()
	s.ch = nil
	s.sessionUUID = ""
	for id, c := range s.pending {
		delete(s.pending, id)
		close(c.lost)
	}
	closing := !s.tomb.Alive()
	if !closing {
		if s.grace != nil {
			s.grace.Stop()
		}
		s.grace = s.cfg.Clock.AfterFunc(s.cfg.GracePeriod, s.graceExpired)
	}
	s.mu.Unlock()

	if closing {
		logger.Debugf("shell connection closed")
	} else {
		logger.Warningf("lost the shell backend: %v", err)
	}
	hub.Execute(context.Background(), s.cfg.Hub, requisition.SocketStateChanged, false)
}

func (s *Session) graceExpired() {
	s.mu.Lock()
	if s.ch != nil {
		s.mu.Unlock()
		return
	}
	s.mu.Unlock()
	s.execute(requisition.ShowError, "Shell connection lost: the connection was interrupted and could not be re-established yet. Reconnecting in the background.")
}

func (s *Session) read(ch transport.Channel) error {
	ctx := s.tomb.Context(nil)
	for {
		data, err := ch.Receive(ctx)
		if err != nil {
			_ = ch.Close()
			return err
		}
		s.debug(ctx, data, false)

		resp, err := parseResponse(data)
		if err != nil {
			logger.Warningf("dropping backend message: %v", err)
			continue
		}
		if resp.SessionUUID != "" {
			s.startWebSession(ctx, resp)
		}
		if resp.RequestID != "" {
			s.deliver(resp)
		}
	}
}

func (s *Session) startWebSession(ctx context.Context, resp Response) {
	s.mu.Lock()
	first := s.sessionUUID == ""
	s.sessionUUID = resp.SessionUUID
	s.mu.Unlock()

	if first {
		logger.Infof("web session %s started", resp.SessionUUID)
		hub.Execute(ctx, s.cfg.Hub, requisition.WebSessionStarted, resp.webSession())
	}
}

func (s *Session) deliver(resp Response) {
	s.mu.Lock()
	c, ok := s.pending[resp.RequestID]
	s.mu.Unlock()
	if !ok {
		logger.Debugf("dropping response for unknown request %s", resp.RequestID)
		return
	}

	select {
	case c.responses <- resp:
	case <-c.gone:
	case <-s.tomb.Dying():
	}
}

func (s *Session) execute(k requisition.Kind[string], msg string) {
	hub.Execute(context.Background(), s.cfg.Hub, k, msg)
}

func (s *Session) debug(ctx context.Context, data []byte, outgoing bool) {
	if !s.cfg.Debug {
		return
	}
	var payload requisition.DebuggerData
	if outgoing {
		payload.Request = dictionary(data)
	} else {
		payload.Response = dictionary(data)
	}
	hub.Execute(ctx, s.cfg.Hub, requisition.Debugger, payload)
}
