// Package tui draws the maze session in a terminal and turns key presses into
// moves and chat lines.
package tui

import (
	"context"
	"strings"
	"sync"

	"github.com/beka-birhanu/keymaze/client"
	"github.com/beka-birhanu/keymaze/protocol"
	"github.com/gdamore/tcell/v2"
)

const (
	chatWidth = 32 // Columns of the chat pane.
	chatLines = 30 // Chat lines kept for drawing.
	mazeGap   = 2  // Columns between maze and chat.
)

var (
	selfStyle  = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorBlue)
	otherStyle = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorGreen)
	keyStyle   = tcell.StyleDefault.Foreground(tcell.ColorBlack).Background(tcell.ColorYellow)
	textStyle  = tcell.StyleDefault
)

// Screen is a client.Screen backed by a tcell screen. Arrow keys move, typed
// text followed by Enter is a chat line, Escape or Ctrl-C quits.
type Screen struct {
	s tcell.Screen

	dirs  chan protocol.Direction
	lines chan string
	names chan string
	quit  chan struct{}
	once  sync.Once

	mu        sync.Mutex
	prompting bool         // Enter submits a name instead of a chat line.
	input     []rune       // Line being typed.
	chat      []string     // Most recent chat lines.
	frame     client.Frame // Last frame drawn.
	banner    string       // Text shown instead of the game.
}

// New wraps an initialized tcell screen. Call Start to begin reading keys.
func New(s tcell.Screen) *Screen {
	return &Screen{
		s:     s,
		dirs:  make(chan protocol.Direction, 16),
		lines: make(chan string, 4),
		names: make(chan string, 1),
		quit:  make(chan struct{}),
	}
}

// Start runs the event pump until the screen is finalized.
func (t *Screen) Start() {
	go t.pump()
}

// Close restores the terminal.
func (t *Screen) Close() {
	t.s.Fini()
}

func (t *Screen) pump() {
	for {
		switch ev := t.s.PollEvent().(type) {
		case nil:
			return
		case *tcell.EventResize:
			t.mu.Lock()
			t.draw()
			t.mu.Unlock()
			t.s.Sync()
		case *tcell.EventKey:
			t.key(ev)
		}
	}
}

func (t *Screen) key(ev *tcell.EventKey) {
	switch ev.Key() {
	case tcell.KeyEscape, tcell.KeyCtrlC:
		t.once.Do(func() { close(t.quit) })
		return
	case tcell.KeyUp:
		t.direction(protocol.Up)
		return
	case tcell.KeyRight:
		t.direction(protocol.Right)
		return
	case tcell.KeyDown:
		t.direction(protocol.Down)
		return
	case tcell.KeyLeft:
		t.direction(protocol.Left)
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	switch ev.Key() {
	case tcell.KeyEnter:
		line := string(t.input)
		t.input = t.input[:0]
		if t.prompting {
			t.prompting = false
			t.names <- line
		} else {
			select {
			case t.lines <- line:
			default: // chatter is busy sending
			}
		}
	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if len(t.input) > 0 {
			t.input = t.input[:len(t.input)-1]
		}
	case tcell.KeyRune:
		t.input = append(t.input, ev.Rune())
	}
	t.draw()
}

func (t *Screen) direction(d protocol.Direction) {
	select {
	case t.dirs <- d:
	default:
	}
}

// PromptName shows the welcome text and waits for a name.
func (t *Screen) PromptName(ctx context.Context) (string, error) {
	t.mu.Lock()
	t.prompting = true
	t.banner = "Welcome to the maze! Collect every key together with the other players.\nPlease enter your name and press Enter."
	t.draw()
	t.mu.Unlock()

	select {
	case name := <-t.names:
		t.mu.Lock()
		t.banner = ""
		t.mu.Unlock()
		return strings.TrimSpace(name), nil
	case <-t.quit:
		return "", client.ErrQuit
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// Direction waits for an arrow key.
func (t *Screen) Direction(ctx context.Context) (protocol.Direction, error) {
	select {
	case d := <-t.dirs:
		return d, nil
	case <-t.quit:
		return 0, client.ErrQuit
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}

// ChatLine waits for a line of chat.
func (t *Screen) ChatLine(ctx context.Context) (string, error) {
	select {
	case l := <-t.lines:
		return l, nil
	case <-t.quit:
		return "", client.ErrQuit
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// PrintChatLine appends a line to the chat pane.
func (t *Screen) PrintChatLine(line string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.chat = append(t.chat, line)
	if len(t.chat) > chatLines {
		t.chat = t.chat[len(t.chat)-chatLines:]
	}
	t.draw()
}

// Redraw draws f.
func (t *Screen) Redraw(f client.Frame) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.frame = f
	t.draw()
}

// Banner replaces the game with a message, used for the end screen.
func (t *Screen) Banner(text string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.banner = text
	t.draw()
}

// draw paints everything. Callers hold mu.
func (t *Screen) draw() {
	t.s.Clear()
	if t.banner != "" {
		y := 0
		for _, line := range strings.Split(t.banner, "\n") {
			t.text(0, y, line, textStyle)
			y++
		}
		if t.prompting {
			t.text(0, y, "> "+string(t.input), textStyle)
		}
		t.s.Show()
		return
	}

	x := t.drawMaze()
	t.drawChat(x)
	t.s.Show()
}

// drawMaze paints walls, keys and players, and returns the first free column.
func (t *Screen) drawMaze() int {
	f := t.frame
	if f.Walls == nil {
		return 0
	}
	width := 0
	for y, line := range strings.Split(f.Walls.Render(), "\n") {
		t.text(0, y, line, textStyle)
		width = max(width, len(line))
	}
	for _, k := range f.Keys {
		t.cell(k.Row, k.Col, "ky", keyStyle)
	}
	for _, p := range f.Players {
		style := otherStyle
		if p.Name == f.Self {
			style = selfStyle
		}
		t.cell(p.Pos.Row, p.Pos.Col, label(p.Name), style)
	}
	return width + mazeGap
}

func (t *Screen) drawChat(x int) {
	_, h := t.s.Size()
	start := 0
	if room := h - 1; len(t.chat) > room && room > 0 {
		start = len(t.chat) - room
	}
	y := 0
	for _, line := range t.chat[start:] {
		t.text(x, y, clip(line), textStyle)
		y++
	}
	prompt := "> "
	if t.frame.Self != "" {
		prompt = t.frame.Self + "> "
	}
	t.text(x, max(y, h-1), clip(prompt+string(t.input)), textStyle)
}

// cell writes s in the interior of maze cell (row, col).
func (t *Screen) cell(row, col int, s string, style tcell.Style) {
	t.text(3*col+1, 2*row+1, s, style)
}

func (t *Screen) text(x, y int, s string, style tcell.Style) {
	for _, r := range s {
		t.s.SetContent(x, y, r, nil, style)
		x++
	}
}

// label is the two-rune tag drawn for a player.
func label(name string) string {
	r := []rune(name)
	switch len(r) {
	case 0:
		return "??"
	case 1:
		return string(r) + " "
	}
	return string(r[:2])
}

func clip(s string) string {
	r := []rune(s)
	if len(r) > chatWidth {
		return string(r[:chatWidth])
	}
	return s
}
