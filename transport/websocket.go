package transport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/beka-birhanu/keymaze/protocol"
	"github.com/gorilla/websocket"
)

// wsConn carries one frame per binary WebSocket message.
type wsConn struct {
	ws *websocket.Conn
	mu sync.Mutex // gorilla allows one concurrent writer
}

// NewWebSocketConn wraps an established WebSocket.
func NewWebSocketConn(ws *websocket.Conn) Conn {
	ws.SetReadLimit(1 + protocol.WorldSize)
	return &wsConn{ws: ws}
}

// DialWebSocket connects to a WebSocket game endpoint.
func DialWebSocket(ctx context.Context, url string) (Conn, error) {
	ws, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", url, err)
	}
	return NewWebSocketConn(ws), nil
}

func (c *wsConn) ReadMessage() (protocol.Message, error) {
	mt, data, err := c.ws.ReadMessage()
	if err != nil {
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
			err = io.EOF
		}
		return protocol.Message{}, fmt.Errorf("%w: %w", protocol.ErrConnectionBroken, err)
	}
	if mt != websocket.BinaryMessage {
		return protocol.Message{}, fmt.Errorf("%w: non-binary websocket message", protocol.ErrProtocolViolation)
	}
	var m protocol.Message
	if err := m.UnmarshalBinary(data); err != nil {
		return protocol.Message{}, err
	}
	return m, nil
}

func (c *wsConn) WriteMessage(m protocol.Message) error {
	data, err := m.MarshalBinary()
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.ws.WriteMessage(websocket.BinaryMessage, data); err != nil {
		return fmt.Errorf("%w: %w", protocol.ErrConnectionBroken, err)
	}
	return nil
}

func (c *wsConn) Close() error { return c.ws.Close() }

func (c *wsConn) RemoteAddr() string { return c.ws.RemoteAddr().String() }

// WebSocketListener upgrades HTTP requests and hands the connections to
// Accept. Mount it on a mux to accept game clients over WebSocket.
type WebSocketListener struct {
	addr     string
	upgrader websocket.Upgrader
	conns    chan Conn
	done     chan struct{}
	once     sync.Once
}

// NewWebSocketListener creates a listener reporting addr as its address.
func NewWebSocketListener(addr string) *WebSocketListener {
	return &WebSocketListener{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		conns: make(chan Conn),
		done:  make(chan struct{}),
	}
}

func (l *WebSocketListener) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	select {
	case <-l.done:
		http.Error(w, "session closed", http.StatusServiceUnavailable)
		return
	default:
	}

	ws, err := l.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	conn := NewWebSocketConn(ws)
	select {
	case l.conns <- conn:
	case <-l.done:
		_ = conn.Close()
	}
}

func (l *WebSocketListener) Accept() (Conn, error) {
	select {
	case conn := <-l.conns:
		return conn, nil
	case <-l.done:
		return nil, ErrListenerClosed
	}
}

func (l *WebSocketListener) Close() error {
	l.once.Do(func() { close(l.done) })
	return nil
}

func (l *WebSocketListener) Addr() string { return l.addr }
