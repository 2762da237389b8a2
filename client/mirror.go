package client

import (
	"errors"
	"fmt"
	"sync"

	"github.com/beka-birhanu/keymaze/game"
	"github.com/beka-birhanu/keymaze/maze"
	"github.com/beka-birhanu/keymaze/protocol"
)

var errUnexpectedKind = errors.New("unexpected message kind")

// Frame is what the screen draws.
type Frame struct {
	Walls   maze.Walls
	Self    string
	Players []game.Player
	Keys    []game.Cell
}

// Mirror is the client's copy of the game, rebuilt only from server messages.
// It is safe for concurrent use.
type Mirror struct {
	mu   sync.RWMutex
	g    *game.Game
	self string
}

// NewMirror creates an empty mirror over walls for the player named self.
func NewMirror(walls maze.Walls, self string) *Mirror {
	return &Mirror{g: game.NewMirror(walls), self: self}
}

// Apply updates the mirror from an n, m, d or k message.
func (m *Mirror) Apply(msg protocol.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch msg.Kind {
	case protocol.KindPlayerJoined:
		return m.g.AddPlayer(msg.Name, game.Cell{Row: int(msg.Row), Col: int(msg.Col)})
	case protocol.KindMove:
		return m.g.ApplyMove(msg.Name, msg.Dir)
	case protocol.KindPlayerLeft:
		if !m.g.Leave(msg.Name) {
			return fmt.Errorf("%w: %q", game.ErrUnknownPlayer, msg.Name)
		}
		return nil
	case protocol.KindKey:
		m.g.ToggleKey(game.Cell{Row: int(msg.Row), Col: int(msg.Col)})
		return nil
	}
	return fmt.Errorf("%w: %s", errUnexpectedKind, msg.Kind)
}

// Frame returns a snapshot for drawing.
func (m *Mirror) Frame() Frame {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Frame{
		Walls:   m.g.Walls(),
		Self:    m.self,
		Players: m.g.Players(),
		Keys:    m.g.Keys(),
	}
}
