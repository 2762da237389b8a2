package i

import (
	"github.com/beka-birhanu/keymaze/game"
	"github.com/beka-birhanu/keymaze/maze"
	"github.com/beka-birhanu/keymaze/protocol"
)

// Game defines the authoritative world model driven by the session server.
type Game interface {
	// Walls returns the wall grid sent to joining players.
	Walls() maze.Walls

	// Join places a new player and returns its cell.
	Join(name string) (game.Cell, error)

	// Leave removes a player, reporting whether it existed.
	Leave(name string) bool

	// Move validates and applies a step.
	Move(name string, d protocol.Direction) (game.Cell, bool, error)

	// PickupKey removes the key under the player, if any.
	PickupKey(name string) (game.Cell, bool)

	// ReadyToSpawn reports whether keys should be spawned now.
	ReadyToSpawn() bool

	// SpawnKeys places the configured keys once.
	SpawnKeys() ([]game.Cell, error)

	// ToggleKey adds or removes a key, reporting whether one was added.
	ToggleKey(c game.Cell) bool

	Won() bool
	KeysSpawned() bool
	Players() []game.Player
	Keys() []game.Cell
}
