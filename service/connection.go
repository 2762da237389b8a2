package service

import (
	"errors"
	"fmt"

	"github.com/beka-birhanu/keymaze/protocol"
	"github.com/beka-birhanu/keymaze/transport"
	"github.com/google/uuid"
)

type eventKind int

// Event kinds delivered to the session loop.
const (
	eventAccepted eventKind = iota
	eventMessage
	eventReadBroken
	eventWritten
	eventWriteFailed
)

// event is the only way I/O goroutines talk to the session loop.
type event struct {
	kind eventKind
	id   uuid.UUID
	conn transport.Conn   // eventAccepted
	msg  protocol.Message // eventMessage
	err  error            // eventReadBroken, eventWriteFailed
}

// connection is the loop's record of one client. Only the loop goroutine reads
// or writes its fields.
type connection struct {
	id      uuid.UUID
	conn    transport.Conn
	name    string                // Bound player name, empty until joined.
	queue   []protocol.Message    // Outbound FIFO.
	writing bool                  // A message is with the writer goroutine.
	out     chan protocol.Message // Hand-off to the writer, capacity 1.
}

func newConnection(conn transport.Conn) *connection {
	return &connection{
		id:   uuid.New(),
		conn: conn,
		out:  make(chan protocol.Message, 1),
	}
}

// emit delivers ev to the loop unless the session has ended.
func (s *Server) emit(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.done:
		return false
	}
}

func (s *Server) acceptLoop(l transport.Listener) {
	defer s.wg.Done()
	for {
		conn, err := l.Accept()
		if err != nil {
			if !errors.Is(err, transport.ErrListenerClosed) {
				s.logger.Error(fmt.Sprintf("accepting on %s: %v", l.Addr(), err))
			}
			return
		}
		if !s.emit(event{kind: eventAccepted, conn: conn}) {
			_ = conn.Close()
			return
		}
	}
}

// readLoop decodes frames until the connection breaks.
func (s *Server) readLoop(c *connection) {
	defer s.wg.Done()
	for {
		m, err := c.conn.ReadMessage()
		if err != nil {
			s.emit(event{kind: eventReadBroken, id: c.id, err: err})
			return
		}
		if !s.emit(event{kind: eventMessage, id: c.id, msg: m}) {
			return
		}
	}
}

// writeLoop writes each handed-off message and reports back. It exits when
// the loop closes out or a write fails.
func (s *Server) writeLoop(c *connection) {
	defer s.wg.Done()
	for m := range c.out {
		if err := c.conn.WriteMessage(m); err != nil {
			s.emit(event{kind: eventWriteFailed, id: c.id, err: err})
			return
		}
		if !s.emit(event{kind: eventWritten, id: c.id}) {
			return
		}
	}
}
