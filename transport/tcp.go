package transport

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net"
	"sync"

	"github.com/beka-birhanu/keymaze/protocol"
)

type tcpConn struct {
	conn net.Conn
	r    *bufio.Reader
	mu   sync.Mutex // serializes frame writes
}

// NewTCPConn wraps a stream connection.
func NewTCPConn(conn net.Conn) Conn {
	return &tcpConn{conn: conn, r: bufio.NewReader(conn)}
}

// DialTCP connects to a TCP game server.
func DialTCP(ctx context.Context, addr string) (Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dialing %s: %w", addr, err)
	}
	return NewTCPConn(conn), nil
}

func (c *tcpConn) ReadMessage() (protocol.Message, error) {
	return protocol.Decode(c.r)
}

func (c *tcpConn) WriteMessage(m protocol.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return protocol.Encode(c.conn, m)
}

func (c *tcpConn) Close() error { return c.conn.Close() }

func (c *tcpConn) RemoteAddr() string { return c.conn.RemoteAddr().String() }

type tcpListener struct {
	l net.Listener
}

// ListenTCP listens for game clients on addr.
func ListenTCP(addr string) (Listener, error) {
	l, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listening tcp %s: %w", addr, err)
	}
	return &tcpListener{l: l}, nil
}

func (l *tcpListener) Accept() (Conn, error) {
	conn, err := l.l.Accept()
	if err != nil {
		if errors.Is(err, net.ErrClosed) {
			return nil, ErrListenerClosed
		}
		return nil, err
	}
	return NewTCPConn(conn), nil
}

func (l *tcpListener) Close() error { return l.l.Close() }

func (l *tcpListener) Addr() string { return l.l.Addr().String() }
