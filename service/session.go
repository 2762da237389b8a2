package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/beka-birhanu/keymaze/game"
	"github.com/beka-birhanu/keymaze/logging"
	"github.com/beka-birhanu/keymaze/protocol"
	"github.com/beka-birhanu/keymaze/service/i"
	"github.com/beka-birhanu/keymaze/transport"
	general_i "github.com/beka-birhanu/vinom-common/interfaces/general"
	"github.com/google/uuid"
)

// Session-related errors.
var (
	ErrSessionOver   = errors.New("session is over")
	ErrCellOutOfMaze = errors.New("cell is out of the maze")
	ErrNoListeners   = errors.New("no listeners configured")
)

// Server multiplexes every client connection onto one loop goroutine that owns
// the game, the connection registry and all outbound queues.
type Server struct {
	listeners []transport.Listener
	game      i.Game
	world     string // Rendered maze sent in every w message.
	logger    general_i.Logger
	metrics   *Metrics
	onWin     func()

	conns        map[uuid.UUID]*connection // Registered connections.
	names        map[string]uuid.UUID      // Player name to its connection.
	winAnnounced bool                      // s/W has been queued to everyone.

	events chan event
	admin  chan *adminRequest
	done   chan struct{} // Closed when the loop stops.
	wg     sync.WaitGroup
}

// Config holds the dependencies of a Server.
type Config struct {
	Listeners []transport.Listener
	Game      i.Game
	Logger    general_i.Logger
	Metrics   *Metrics // Optional.
	OnWin     func()   // Optional; called on the loop goroutine once the win is queued.
}

type adminRequest struct {
	run  func() error
	err  error
	done chan struct{}
}

// NewServer creates a Server. Nothing is accepted until Serve runs.
func NewServer(c *Config) (*Server, error) {
	if len(c.Listeners) == 0 {
		return nil, ErrNoListeners
	}
	logger := c.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	metrics := c.Metrics
	if metrics == nil {
		metrics = &Metrics{}
	}

	return &Server{
		listeners: c.Listeners,
		game:      c.Game,
		world:     c.Game.Walls().Render(),
		logger:    logger,
		metrics:   metrics,
		onWin:     c.OnWin,
		conns:     make(map[uuid.UUID]*connection),
		names:     make(map[string]uuid.UUID),
		events:    make(chan event),
		admin:     make(chan *adminRequest),
		done:      make(chan struct{}),
	}, nil
}

// Serve runs the session. It returns nil once the win has been delivered to
// every connection, or ctx.Err() if ctx ends first. Listeners and connections
// are closed before it returns.
func (s *Server) Serve(ctx context.Context) error {
	for _, l := range s.listeners {
		s.wg.Add(1)
		go s.acceptLoop(l)
		s.logger.Info(fmt.Sprintf("accepting players on %s", l.Addr()))
	}
	defer s.shutdown()

	for {
		if s.game.Won() && s.drained() {
			s.logger.Info("win delivered to every player, closing session")
			return nil
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev := <-s.events:
			s.handleEvent(ev)
		case req := <-s.admin:
			req.err = req.run()
			close(req.done)
		}
	}
}

// ToggleKey adds or removes a key at (row, col) and broadcasts the change to
// every player. It reports whether a key was added. Once the session is won
// it fails with ErrSessionOver.
func (s *Server) ToggleKey(ctx context.Context, row, col int) (bool, error) {
	if !s.game.Walls().InBound(row, col) {
		return false, fmt.Errorf("%w: (%d, %d)", ErrCellOutOfMaze, row, col)
	}
	var added bool
	err := s.do(ctx, func() error {
		if s.game.Won() {
			return ErrSessionOver
		}
		cell := game.Cell{Row: row, Col: col}
		added = s.game.ToggleKey(cell)
		s.broadcast(keyMessage(cell))
		s.announceWin()
		s.logger.Info(fmt.Sprintf("admin toggled key at %v, added=%v", cell, added))
		return nil
	})
	return added, err
}

// Status returns a snapshot of the session taken on the loop goroutine.
func (s *Server) Status(ctx context.Context) (i.SessionStatus, error) {
	var st i.SessionStatus
	err := s.do(ctx, func() error {
		st = i.SessionStatus{
			Players:     s.game.Players(),
			Keys:        s.game.Keys(),
			KeysSpawned: s.game.KeysSpawned(),
			Won:         s.game.Won(),
			Connections: len(s.conns),
		}
		return nil
	})
	return st, err
}

// Metrics returns a snapshot of the session counters.
func (s *Server) Metrics() map[string]any {
	return s.metrics.Snapshot()
}

// do runs fn on the loop goroutine and returns its error.
func (s *Server) do(ctx context.Context, fn func() error) error {
	req := &adminRequest{run: fn, done: make(chan struct{})}
	select {
	case s.admin <- req:
	case <-ctx.Done():
		return ctx.Err()
	case <-s.done:
		return ErrSessionOver
	}
	<-req.done
	return req.err
}

func (s *Server) handleEvent(ev event) {
	if ev.kind == eventAccepted {
		s.register(ev.conn)
		return
	}

	c, ok := s.conns[ev.id]
	if !ok {
		return // already deregistered
	}

	switch ev.kind {
	case eventMessage:
		s.metrics.incReceived()
		s.dispatch(c, ev.msg)
	case eventReadBroken:
		if errors.Is(ev.err, protocol.ErrProtocolViolation) {
			s.metrics.incViolation()
		}
		s.drop(c, fmt.Sprintf("read: %v", ev.err))
	case eventWritten:
		s.metrics.incSent()
		c.writing = false
		s.flush(c)
	case eventWriteFailed:
		s.metrics.incWriteFailure()
		s.drop(c, fmt.Sprintf("write: %v", ev.err))
	}
}

func (s *Server) register(conn transport.Conn) {
	if s.game.Won() {
		_ = conn.Close()
		return
	}
	c := newConnection(conn)
	s.conns[c.id] = c
	s.metrics.incAccepted()
	s.wg.Add(2)
	go s.readLoop(c)
	go s.writeLoop(c)
	s.logger.Info(fmt.Sprintf("connection %s registered from %s", c.id, conn.RemoteAddr()))
}

// dispatch applies one client message to the game.
func (s *Server) dispatch(c *connection, m protocol.Message) {
	if s.game.Won() {
		return // the session only drains from here on
	}

	if c.name == "" {
		if m.Kind != protocol.KindJoin {
			s.violation(c, fmt.Sprintf("%s before join", m.Kind))
			return
		}
		s.join(c, m.Name)
		return
	}

	switch m.Kind {
	case protocol.KindMove:
		s.move(c, m.Dir)
	case protocol.KindChat:
		s.broadcastExcept(m, c.id)
	case protocol.KindPlayerLeft:
		s.drop(c, "left the session")
	case protocol.KindInteract:
		s.logger.Info(fmt.Sprintf("%s interacted towards %s", c.name, m.Dir))
	case protocol.KindJoin:
		s.violation(c, "second join")
	default:
		s.violation(c, fmt.Sprintf("client sent %s", m.Kind))
	}
}

func (s *Server) join(c *connection, name string) {
	pos, err := s.game.Join(name)
	switch {
	case errors.Is(err, game.ErrNameTaken), errors.Is(err, game.ErrInvalidName):
		s.logger.Info(fmt.Sprintf("connection %s: name %q rejected: %v", c.id, name, err))
		s.enqueue(c, protocol.StatusOf(protocol.StatusNameTaken))
		return
	case err != nil:
		s.logger.Error(fmt.Sprintf("placing %q: %v", name, err))
		s.drop(c, "no room in the maze")
		return
	}

	c.name = name
	s.names[name] = c.id
	s.logger.Info(fmt.Sprintf("%s joined at %v", name, pos))

	s.enqueue(c, protocol.World(s.world))
	for _, p := range s.game.Players() {
		s.enqueue(c, joinedMessage(p.Name, p.Pos))
	}
	for _, k := range s.game.Keys() {
		s.enqueue(c, keyMessage(k))
	}
	s.broadcastExcept(joinedMessage(name, pos), c.id)

	if !s.game.ReadyToSpawn() {
		return
	}
	keys, err := s.game.SpawnKeys()
	if err != nil {
		s.logger.Warning(fmt.Sprintf("spawning keys: placed %d: %v", len(keys), err))
	}
	for _, k := range keys {
		s.broadcast(keyMessage(k))
	}
	s.logger.Info(fmt.Sprintf("spawned %d keys", len(keys)))
}

func (s *Server) move(c *connection, d protocol.Direction) {
	_, legal, err := s.game.Move(c.name, d)
	if err != nil {
		s.logger.Error(fmt.Sprintf("moving %s: %v", c.name, err))
		return
	}
	if !legal {
		s.metrics.incIllegalMove()
		s.enqueue(c, protocol.StatusOf(protocol.StatusIllegalMove))
		return
	}

	s.broadcast(protocol.Move(c.name, d))
	if cell, ok := s.game.PickupKey(c.name); ok {
		s.metrics.incKeyPicked()
		s.broadcast(keyMessage(cell))
		s.announceWin()
	}
}

func (s *Server) announceWin() {
	if !s.game.Won() || s.winAnnounced {
		return
	}
	s.winAnnounced = true
	s.broadcast(protocol.StatusOf(protocol.StatusWon))
	s.logger.Info("all keys collected")
	if s.onWin != nil {
		s.onWin()
	}
}

func (s *Server) violation(c *connection, reason string) {
	s.metrics.incViolation()
	s.logger.Warning(fmt.Sprintf("connection %s: %v: %s", c.id, protocol.ErrProtocolViolation, reason))
	s.drop(c, "protocol violation")
}

// drop deregisters c, discards its queue and closes it. A named player is
// removed and the others are told.
func (s *Server) drop(c *connection, reason string) {
	delete(s.conns, c.id)
	c.queue = nil
	close(c.out)
	_ = c.conn.Close()
	s.metrics.incDropped()

	if c.name == "" {
		s.logger.Info(fmt.Sprintf("connection %s closed: %s", c.id, reason))
		return
	}
	delete(s.names, c.name)
	if s.game.Leave(c.name) {
		s.broadcast(protocol.PlayerLeft(c.name))
	}
	s.logger.Info(fmt.Sprintf("%s disconnected: %s", c.name, reason))
}

// enqueue appends m to c's queue and starts writing if the writer is idle.
func (s *Server) enqueue(c *connection, m protocol.Message) {
	c.queue = append(c.queue, m)
	s.flush(c)
}

// flush hands the next queued message to an idle writer.
func (s *Server) flush(c *connection) {
	if c.writing || len(c.queue) == 0 {
		return
	}
	m := c.queue[0]
	c.queue[0] = protocol.Message{}
	c.queue = c.queue[1:]
	c.writing = true
	c.out <- m
}

// broadcast queues m to every joined player.
func (s *Server) broadcast(m protocol.Message) {
	s.broadcastExcept(m, uuid.Nil)
}

func (s *Server) broadcastExcept(m protocol.Message, skip uuid.UUID) {
	for _, id := range s.names {
		if id == skip {
			continue
		}
		s.enqueue(s.conns[id], m)
	}
}

func (s *Server) drained() bool {
	for _, c := range s.conns {
		if c.writing || len(c.queue) > 0 {
			return false
		}
	}
	return true
}

func (s *Server) shutdown() {
	close(s.done)
	for _, l := range s.listeners {
		_ = l.Close()
	}
	for _, c := range s.conns {
		close(c.out)
		_ = c.conn.Close()
	}
	s.conns = nil
	s.wg.Wait()
}

func joinedMessage(name string, pos game.Cell) protocol.Message {
	return protocol.PlayerJoined(name, uint8(pos.Row), uint8(pos.Col))
}

func keyMessage(c game.Cell) protocol.Message {
	return protocol.Key(uint8(c.Row), uint8(c.Col))
}
