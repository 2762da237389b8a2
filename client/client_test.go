package client

import (
	"bufio"
	"context"
	"errors"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/beka-birhanu/keymaze/game"
	"github.com/beka-birhanu/keymaze/maze"
	"github.com/beka-birhanu/keymaze/protocol"
	"github.com/beka-birhanu/keymaze/transport"
)

var corridorText = strings.Join([]string{
	"+--+--+--+",
	"|        |",
	"+--+--+--+",
}, "\n")

type fakeScreen struct {
	names chan string
	dirs  chan protocol.Direction
	chats chan string
	quit  chan struct{}
	boom  bool // Direction panics

	mu    sync.Mutex
	lines []string
	frame Frame
}

func newFakeScreen(names ...string) *fakeScreen {
	f := &fakeScreen{
		names: make(chan string, len(names)),
		dirs:  make(chan protocol.Direction, 4),
		chats: make(chan string, 4),
		quit:  make(chan struct{}),
	}
	for _, n := range names {
		f.names <- n
	}
	return f
}

func (f *fakeScreen) PromptName(ctx context.Context) (string, error) {
	select {
	case n := <-f.names:
		return n, nil
	case <-f.quit:
		return "", ErrQuit
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeScreen) Direction(ctx context.Context) (protocol.Direction, error) {
	if f.boom {
		panic("keyboard on fire")
	}
	select {
	case d := <-f.dirs:
		return d, nil
	case <-f.quit:
		return 0, ErrQuit
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

func (f *fakeScreen) ChatLine(ctx context.Context) (string, error) {
	select {
	case l := <-f.chats:
		return l, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeScreen) PrintChatLine(line string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lines = append(f.lines, line)
}

func (f *fakeScreen) Redraw(fr Frame) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frame = fr
}

func (f *fakeScreen) lastFrame() Frame {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.frame
}

func (f *fakeScreen) waitLine(t *testing.T, want string) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		f.mu.Lock()
		for _, l := range f.lines {
			if strings.Contains(l, want) {
				f.mu.Unlock()
				return
			}
		}
		f.mu.Unlock()
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("screen never printed %q", want)
}

// fakeServer is the far end of a pipe. Frames the client sends are read in
// the background so client writes never block.
type fakeServer struct {
	t    *testing.T
	conn net.Conn
	got  chan protocol.Message
}

func newFakeServer(t *testing.T) (*fakeServer, transport.Conn) {
	t.Helper()
	a, b := net.Pipe()
	s := &fakeServer{t: t, conn: b, got: make(chan protocol.Message, 64)}
	go func() {
		defer close(s.got)
		r := bufio.NewReader(b)
		for {
			m, err := protocol.Decode(r)
			if err != nil {
				return
			}
			s.got <- m
		}
	}()
	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})
	return s, transport.NewTCPConn(a)
}

func (s *fakeServer) send(msgs ...protocol.Message) {
	s.t.Helper()
	for _, m := range msgs {
		if err := protocol.Encode(s.conn, m); err != nil {
			s.t.Fatalf("Encode(%v) returned error: %v", m, err)
		}
	}
}

func (s *fakeServer) expect(want protocol.Message) {
	s.t.Helper()
	select {
	case m := <-s.got:
		if m != want {
			s.t.Fatalf("server got %v, want %v", m, want)
		}
	case <-time.After(3 * time.Second):
		s.t.Fatalf("server never got %v", want)
	}
}

type result struct {
	outcome Outcome
	err     error
}

// joined returns a client that has joined as alice, and starts Play.
func joined(t *testing.T, screen *fakeScreen) (*fakeServer, <-chan result) {
	t.Helper()
	srv, conn := newFakeServer(t)
	c := New(&Config{Conn: conn, Screen: screen})

	joinErr := make(chan error, 1)
	go func() { joinErr <- c.Join(context.Background()) }()
	srv.expect(protocol.Join("alice"))
	srv.send(protocol.World(corridorText))
	if err := <-joinErr; err != nil {
		t.Fatalf("Join returned error: %v", err)
	}

	done := make(chan result, 1)
	go func() {
		o, err := c.Play(context.Background())
		done <- result{o, err}
	}()
	return srv, done
}

func wait(t *testing.T, done <-chan result) result {
	t.Helper()
	select {
	case r := <-done:
		return r
	case <-time.After(3 * time.Second):
		t.Fatalf("Play did not return")
		return result{}
	}
}

func TestJoinRetriesTakenName(t *testing.T) {
	srv, conn := newFakeServer(t)
	screen := newFakeScreen("alice", "bob")
	c := New(&Config{Conn: conn, Screen: screen})

	joinErr := make(chan error, 1)
	go func() { joinErr <- c.Join(context.Background()) }()

	srv.expect(protocol.Join("alice"))
	srv.send(protocol.StatusOf(protocol.StatusNameTaken))
	srv.expect(protocol.Join("bob"))
	srv.send(protocol.World(corridorText))

	if err := <-joinErr; err != nil {
		t.Fatalf("Join returned error: %v", err)
	}
	if c.Name() != "bob" {
		t.Fatalf("joined as %q, want bob", c.Name())
	}
	screen.waitLine(t, "taken")
}

func TestJoinWithoutMaze(t *testing.T) {
	srv, conn := newFakeServer(t)
	c := New(&Config{Conn: conn, Screen: newFakeScreen("alice")})

	joinErr := make(chan error, 1)
	go func() { joinErr <- c.Join(context.Background()) }()
	srv.expect(protocol.Join("alice"))
	srv.send(protocol.Chat("hello"))

	if err := <-joinErr; !errors.Is(err, ErrNoMaze) {
		t.Fatalf("expected ErrNoMaze, got %v", err)
	}
	if _, err := c.Play(context.Background()); !errors.Is(err, ErrNotJoined) {
		t.Fatalf("expected ErrNotJoined, got %v", err)
	}
}

func TestPlayMirrorsServerAndWins(t *testing.T) {
	screen := newFakeScreen("alice")
	srv, done := joined(t, screen)

	srv.send(
		protocol.PlayerJoined("alice", 0, 0),
		protocol.PlayerJoined("bob", 0, 2),
		protocol.Key(0, 1),
	)
	screen.dirs <- protocol.Right
	srv.expect(protocol.Move("alice", protocol.Right))
	srv.send(
		protocol.Move("alice", protocol.Right),
		protocol.Key(0, 1),
		protocol.StatusOf(protocol.StatusWon),
	)

	r := wait(t, done)
	if r.err != nil || r.outcome != Won {
		t.Fatalf("Play = %v, %v; want won", r.outcome, r.err)
	}
	f := screen.lastFrame()
	if f.Self != "alice" || len(f.Keys) != 0 || len(f.Players) != 2 {
		t.Fatalf("final frame %+v", f)
	}
	if f.Players[0].Pos != (game.Cell{Row: 0, Col: 1}) {
		t.Fatalf("alice drawn at %v, want (0, 1)", f.Players[0].Pos)
	}
}

func TestChatIsSentAndPrinted(t *testing.T) {
	screen := newFakeScreen("alice")
	srv, done := joined(t, screen)

	screen.chats <- "hi"
	srv.expect(protocol.Chat("alice> hi"))
	screen.waitLine(t, "alice> hi")

	srv.send(protocol.Chat("bob> yo"))
	screen.waitLine(t, "bob> yo")

	_ = srv.conn.Close()
	r := wait(t, done)
	if r.err != nil || r.outcome != Disconnected {
		t.Fatalf("Play = %v, %v; want disconnected", r.outcome, r.err)
	}
}

func TestQuitSendsLeave(t *testing.T) {
	screen := newFakeScreen("alice")
	srv, done := joined(t, screen)

	close(screen.quit)
	srv.expect(protocol.PlayerLeft("alice"))

	r := wait(t, done)
	if r.err != nil || r.outcome != Quit {
		t.Fatalf("Play = %v, %v; want quit", r.outcome, r.err)
	}
}

func TestQuitAtNamePrompt(t *testing.T) {
	srv, conn := newFakeServer(t)
	screen := newFakeScreen()
	close(screen.quit)
	c := New(&Config{Conn: conn, Screen: screen})

	o, err := c.Run(context.Background())
	if err != nil || o != Quit {
		t.Fatalf("Run = %v, %v; want quit", o, err)
	}
	select {
	case m, ok := <-srv.got:
		if ok {
			t.Fatalf("server got %v before any name was entered", m)
		}
	default:
	}
}

func TestTaskPanicSurfacesWithStack(t *testing.T) {
	screen := newFakeScreen("alice")
	screen.boom = true
	_, done := joined(t, screen)

	r := wait(t, done)
	var te *TaskError
	if !errors.As(r.err, &te) {
		t.Fatalf("expected *TaskError, got %v", r.err)
	}
	if te.Task != "mover" || len(te.Stack) == 0 {
		t.Fatalf("TaskError = %q with %d stack bytes", te.Task, len(te.Stack))
	}
}

func TestMirrorRejectsUnknownKinds(t *testing.T) {
	walls, err := maze.Parse(corridorText)
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}
	m := NewMirror(walls, "alice")
	if err := m.Apply(protocol.World(corridorText)); !errors.Is(err, errUnexpectedKind) {
		t.Fatalf("expected errUnexpectedKind, got %v", err)
	}
	if err := m.Apply(protocol.PlayerLeft("ghost")); !errors.Is(err, game.ErrUnknownPlayer) {
		t.Fatalf("expected ErrUnknownPlayer, got %v", err)
	}
	_ = m.Apply(protocol.Key(0, 2))
	_ = m.Apply(protocol.Key(0, 1))
	_ = m.Apply(protocol.Key(0, 2))
	if keys := m.Frame().Keys; len(keys) != 1 || keys[0] != (game.Cell{Row: 0, Col: 1}) {
		t.Fatalf("keys after toggles %v", keys)
	}
}
