// Package client joins a maze session and runs the concurrent tasks that keep
// a local mirror of the game in sync with the server.
package client

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"

	"github.com/beka-birhanu/keymaze/logging"
	"github.com/beka-birhanu/keymaze/maze"
	"github.com/beka-birhanu/keymaze/protocol"
	"github.com/beka-birhanu/keymaze/transport"
	general_i "github.com/beka-birhanu/vinom-common/interfaces/general"
	"golang.org/x/sync/errgroup"
)

// Client-related errors.
var (
	ErrNoMaze    = errors.New("server did not send a maze")
	ErrQuit      = errors.New("player quit")
	ErrNotJoined = errors.New("client has not joined")

	errWon          = errors.New("session won")
	errDisconnected = errors.New("server disconnected")
)

// Outcome is how a played session ended.
type Outcome int

// Session outcomes.
const (
	Won Outcome = iota + 1
	Disconnected
	Quit
)

func (o Outcome) String() string {
	switch o {
	case Won:
		return "won"
	case Disconnected:
		return "disconnected"
	case Quit:
		return "quit"
	}
	return fmt.Sprintf("Outcome(%d)", int(o))
}

// TaskError reports a panic inside one of the client tasks.
type TaskError struct {
	Task  string // Task that panicked.
	Value any    // Value passed to panic.
	Stack []byte // Stack of the panicking goroutine.
}

func (e *TaskError) Error() string {
	return fmt.Sprintf("%s task panicked: %v", e.Task, e.Value)
}

// Screen is the terminal the client plays on. Blocking calls return ErrQuit
// when the user asks to leave and ctx.Err() once ctx ends.
type Screen interface {
	// PromptName asks the user for a player name.
	PromptName(ctx context.Context) (string, error)

	// Direction waits for the next move key.
	Direction(ctx context.Context) (protocol.Direction, error)

	// ChatLine waits for the next line typed into the chat.
	ChatLine(ctx context.Context) (string, error)

	// PrintChatLine appends a line to the chat pane.
	PrintChatLine(line string)

	// Redraw draws the maze, players and keys.
	Redraw(f Frame)
}

// Config holds the dependencies of a Client.
type Config struct {
	Conn   transport.Conn
	Screen Screen
	Logger general_i.Logger
}

// Client plays one session over one connection.
type Client struct {
	conn   transport.Conn
	screen Screen
	logger general_i.Logger
	name   string
	mirror *Mirror
}

// New creates a Client.
func New(c *Config) *Client {
	logger := c.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &Client{conn: c.Conn, screen: c.Screen, logger: logger}
}

// Name returns the name the server accepted.
func (c *Client) Name() string { return c.name }

// Run joins and plays until the session ends. Quitting at the name prompt
// is reported as Quit.
func (c *Client) Run(ctx context.Context) (Outcome, error) {
	if err := c.Join(ctx); err != nil {
		if errors.Is(err, ErrQuit) {
			return Quit, nil
		}
		return 0, err
	}
	return c.Play(ctx)
}

// Join asks for a name and sends it until the server answers with the maze.
// A taken name prompts again; any other answer fails with ErrNoMaze.
func (c *Client) Join(ctx context.Context) error {
	for {
		name, err := c.screen.PromptName(ctx)
		if err != nil {
			return err
		}
		name = protocol.Truncate(name)
		if err := c.conn.WriteMessage(protocol.Join(name)); err != nil {
			return fmt.Errorf("sending join: %w", err)
		}

		m, err := c.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("waiting for maze: %w", err)
		}
		switch {
		case m.Kind == protocol.KindWorld:
			walls, err := maze.Parse(m.Text)
			if err != nil {
				return fmt.Errorf("%w: %w", ErrNoMaze, err)
			}
			c.name = name
			c.mirror = NewMirror(walls, name)
			c.logger.Info(fmt.Sprintf("joined as %s", name))
			return nil
		case m.Kind == protocol.KindStatus && m.Status == protocol.StatusNameTaken:
			c.logger.Info(fmt.Sprintf("name %q taken", name))
			c.screen.PrintChatLine(fmt.Sprintf("The name %q is taken, pick another.", name))
		default:
			return fmt.Errorf("%w: received %v", ErrNoMaze, m)
		}
	}
}

// Play runs the listener, mover and chatter until the session is won, the
// server goes away, the user quits or a task fails. A task panic is returned
// as a *TaskError.
func (c *Client) Play(ctx context.Context) (Outcome, error) {
	if c.mirror == nil {
		return 0, ErrNotJoined
	}

	g, gctx := errgroup.WithContext(ctx)
	stop := context.AfterFunc(gctx, func() { _ = c.conn.Close() })
	defer stop()

	g.Go(guard("listener", func() error { return c.listen(gctx) }))
	g.Go(guard("mover", func() error { return c.move(gctx) }))
	g.Go(guard("chatter", func() error { return c.chat(gctx) }))

	err := g.Wait()
	switch {
	case errors.Is(err, errWon):
		return Won, nil
	case errors.Is(err, errDisconnected):
		return Disconnected, nil
	case errors.Is(err, ErrQuit):
		return Quit, nil
	}
	return 0, err
}

func guard(task string, fn func() error) func() error {
	return func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = &TaskError{Task: task, Value: r, Stack: debug.Stack()}
			}
		}()
		return fn()
	}
}

// listen applies server messages to the mirror.
func (c *Client) listen(ctx context.Context) error {
	c.screen.Redraw(c.mirror.Frame())
	for {
		m, err := c.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, protocol.ErrConnectionBroken) {
				c.logger.Warning(fmt.Sprintf("connection lost: %v", err))
				return errDisconnected
			}
			return err
		}

		switch m.Kind {
		case protocol.KindChat:
			c.screen.PrintChatLine(m.Text)
			continue
		case protocol.KindStatus:
			if m.Status == protocol.StatusWon {
				return errWon
			}
			continue
		}

		if err := c.mirror.Apply(m); err != nil {
			c.logger.Warning(fmt.Sprintf("applying %v: %v", m, err))
			continue
		}
		c.screen.Redraw(c.mirror.Frame())
	}
}

// move sends a move request for every direction key.
func (c *Client) move(ctx context.Context) error {
	for {
		d, err := c.screen.Direction(ctx)
		if err != nil {
			return c.stopped(err)
		}
		if err := c.conn.WriteMessage(protocol.Move(c.name, d)); err != nil {
			return c.sendFailed(ctx, err)
		}
	}
}

// chat sends every typed line prefixed with the player name.
func (c *Client) chat(ctx context.Context) error {
	for {
		line, err := c.screen.ChatLine(ctx)
		if err != nil {
			return c.stopped(err)
		}
		if line == "" {
			continue
		}
		text := protocol.Truncate(fmt.Sprintf("%s> %s", c.name, line))
		if err := c.conn.WriteMessage(protocol.Chat(text)); err != nil {
			return c.sendFailed(ctx, err)
		}
		c.screen.PrintChatLine(text)
	}
}

// stopped handles an error from a blocking Screen call. Quitting tells the
// server before the session ends.
func (c *Client) stopped(err error) error {
	if !errors.Is(err, ErrQuit) {
		return err
	}
	if werr := c.conn.WriteMessage(protocol.PlayerLeft(c.name)); werr != nil {
		c.logger.Warning(fmt.Sprintf("sending leave: %v", werr))
	}
	return ErrQuit
}

func (c *Client) sendFailed(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}
	c.logger.Warning(fmt.Sprintf("sending: %v", err))
	return errDisconnected
}
