package transport

import (
	"context"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/juju/errors"
)

const closeGracePeriod = time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	// Webviews are served from custom schemes, so origins cannot be
	// checked meaningfully.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// WebSocket is a Channel over a websocket connection using text frames.
//
// Receive does not observe its context while blocked; Close unblocks it.
type WebSocket struct {
	conn *websocket.Conn

	mu     sync.Mutex
	closed atomic.Bool
}

// NewWebSocket wraps an established connection.
func NewWebSocket(conn *websocket.Conn) *WebSocket {
	return &WebSocket{conn: conn}
}

// DialWebSocket connects to url.
func DialWebSocket(ctx context.Context, url string, header http.Header) (*WebSocket, error) {
	conn, resp, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
			return nil, errors.Annotatef(err, "dialing %s (%s)", url, resp.Status)
		}
		return nil, errors.Annotatef(err, "dialing %s", url)
	}
	return NewWebSocket(conn), nil
}

// Upgrade turns an HTTP request into a websocket channel.
func Upgrade(w http.ResponseWriter, r *http.Request) (*WebSocket, error) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return nil, errors.Annotate(err, "upgrading connection")
	}
	return NewWebSocket(conn), nil
}

// Send writes one text frame. The context deadline, if any, becomes the
// write deadline.
func (ws *WebSocket) Send(ctx context.Context, msg []byte) error {
	if ws.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return errors.Trace(err)
	}

	ws.mu.Lock()
	defer ws.mu.Unlock()

	deadline, _ := ctx.Deadline()
	if err := ws.conn.SetWriteDeadline(deadline); err != nil {
		return ws.connError(err)
	}
	if err := ws.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
		return ws.connError(err)
	}
	return nil
}

// Receive reads the next data frame.
func (ws *WebSocket) Receive(ctx context.Context) ([]byte, error) {
	if ws.closed.Load() {
		return nil, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Trace(err)
	}

	_, data, err := ws.conn.ReadMessage()
	if err != nil {
		return nil, ws.connError(err)
	}
	return data, nil
}

// Close sends a close frame and closes the connection. Later calls do
// nothing.
func (ws *WebSocket) Close() error {
	if ws.closed.Swap(true) {
		return nil
	}

	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	if err := ws.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod)); err != nil {
		logger.Tracef("sending close frame: %v", err)
	}
	return errors.Trace(ws.conn.Close())
}

func (ws *WebSocket) connError(err error) error {
	if ws.closed.Load() ||
		errors.Is(err, websocket.ErrCloseSent) ||
		errors.Is(err, net.ErrClosed) ||
		websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
		return ErrClosed
	}
	return errors.Trace(err)
}
