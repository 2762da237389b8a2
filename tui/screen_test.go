package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/beka-birhanu/keymaze/client"
	"github.com/beka-birhanu/keymaze/game"
	"github.com/beka-birhanu/keymaze/maze"
	"github.com/beka-birhanu/keymaze/protocol"
	"github.com/gdamore/tcell/v2"
)

func newSimScreen(t *testing.T) (tcell.SimulationScreen, *Screen) {
	t.Helper()
	sim := tcell.NewSimulationScreen("UTF-8")
	if err := sim.Init(); err != nil {
		t.Fatalf("Init returned error: %v", err)
	}
	sim.SetSize(80, 25)
	scr := New(sim)
	scr.Start()
	t.Cleanup(scr.Close)
	return sim, scr
}

func typeLine(sim tcell.SimulationScreen, s string) {
	for _, r := range s {
		sim.InjectKey(tcell.KeyRune, r, tcell.ModNone)
	}
	sim.InjectKey(tcell.KeyEnter, 0, tcell.ModNone)
}

func timeout(t *testing.T) context.Context {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	t.Cleanup(cancel)
	return ctx
}

func TestPromptNameReadsTypedLine(t *testing.T) {
	sim, scr := newSimScreen(t)

	names := make(chan string, 1)
	go func() {
		name, _ := scr.PromptName(timeout(t))
		names <- name
	}()
	// wait for the prompt before typing
	time.Sleep(50 * time.Millisecond)
	typeLine(sim, "alice")

	select {
	case name := <-names:
		if name != "alice" {
			t.Fatalf("PromptName = %q, want alice", name)
		}
	case <-time.After(3 * time.Second):
		t.Fatalf("PromptName did not return")
	}
}

func TestArrowKeysAndChat(t *testing.T) {
	sim, scr := newSimScreen(t)
	ctx := timeout(t)

	sim.InjectKey(tcell.KeyLeft, 0, tcell.ModNone)
	d, err := scr.Direction(ctx)
	if err != nil || d != protocol.Left {
		t.Fatalf("Direction = %v, %v", d, err)
	}

	typeLine(sim, "hi there")
	line, err := scr.ChatLine(ctx)
	if err != nil || line != "hi there" {
		t.Fatalf("ChatLine = %q, %v", line, err)
	}

	sim.InjectKey(tcell.KeyEscape, 0, tcell.ModNone)
	if _, err := scr.Direction(ctx); !errors.Is(err, client.ErrQuit) {
		t.Fatalf("expected ErrQuit, got %v", err)
	}
	if _, err := scr.ChatLine(ctx); !errors.Is(err, client.ErrQuit) {
		t.Fatalf("expected ErrQuit from ChatLine, got %v", err)
	}
}

func TestRedrawPlacesPlayersAndKeys(t *testing.T) {
	sim, scr := newSimScreen(t)
	walls, err := maze.Parse(strings.Join([]string{
		"+--+--+--+",
		"|        |",
		"+--+--+--+",
	}, "\n"))
	if err != nil {
		t.Fatalf("Parse returned error: %v", err)
	}

	scr.Redraw(client.Frame{
		Walls: walls,
		Self:  "alice",
		Players: []game.Player{
			{Name: "alice", Pos: game.Cell{Row: 0, Col: 0}},
			{Name: "bob", Pos: game.Cell{Row: 0, Col: 2}},
		},
		Keys: []game.Cell{{Row: 0, Col: 1}},
	})
	scr.PrintChatLine("bob> hello")

	cells, width, _ := sim.GetContents()
	row := func(y int) string {
		var sb strings.Builder
		for x := 0; x < width; x++ {
			if r := cells[y*width+x].Runes; len(r) > 0 {
				sb.WriteRune(r[0])
			} else {
				sb.WriteByte(' ')
			}
		}
		return sb.String()
	}

	if got := row(1); !strings.HasPrefix(got, "|al ky bo|") {
		t.Fatalf("maze row drawn as %q", got)
	}
	if !strings.Contains(row(0), "bob> hello") {
		t.Fatalf("chat line missing from %q", row(0))
	}
}
