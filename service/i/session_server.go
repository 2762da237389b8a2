package i

import (
	"context"

	"github.com/beka-birhanu/keymaze/game"
)

// SessionStatus is a point-in-time view of the session.
type SessionStatus struct {
	Players     []game.Player `json:"players"`
	Keys        []game.Cell   `json:"keys"`
	KeysSpawned bool          `json:"keysSpawned"`
	Won         bool          `json:"won"`
	Connections int           `json:"connections"`
}

// SessionServer is the running session as seen by the admin surfaces.
type SessionServer interface {
	// Serve runs the session until the win is delivered or ctx ends.
	Serve(ctx context.Context) error

	// ToggleKey adds or removes a key at (row, col) and broadcasts the change.
	ToggleKey(ctx context.Context, row, col int) (bool, error)

	// Status returns the current session state.
	Status(ctx context.Context) (SessionStatus, error)

	// Metrics returns a snapshot of the session counters.
	Metrics() map[string]any
}
