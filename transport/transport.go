// Package transport moves whole protocol frames over TCP or WebSocket
// connections.
package transport

import (
	"context"
	"errors"
	"strings"

	"github.com/beka-birhanu/keymaze/protocol"
)

// ErrListenerClosed is returned by Accept once the listener is closed.
var ErrListenerClosed = errors.New("listener closed")

// Conn exchanges frames with one peer. ReadMessage must only be called from
// one goroutine at a time; WriteMessage is safe for concurrent use and never
// interleaves frames.
type Conn interface {
	// ReadMessage blocks until one complete frame arrives.
	ReadMessage() (protocol.Message, error)

	// WriteMessage sends one complete frame.
	WriteMessage(protocol.Message) error

	// Close closes the connection, unblocking pending reads and writes.
	Close() error

	// RemoteAddr returns the peer address for logging.
	RemoteAddr() string
}

// Listener yields incoming connections.
type Listener interface {
	// Accept blocks until a connection arrives or the listener is closed.
	Accept() (Conn, error)

	// Close stops accepting.
	Close() error

	// Addr returns the address accepted on.
	Addr() string
}

// Dial connects to addr. ws:// and wss:// URLs use WebSocket; anything else is
// a TCP host:port.
func Dial(ctx context.Context, addr string) (Conn, error) {
	if strings.HasPrefix(addr, "ws://") || strings.HasPrefix(addr, "wss://") {
		return DialWebSocket(ctx, addr)
	}
	return DialTCP(ctx, addr)
}
