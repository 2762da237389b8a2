package game

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"slices"

	"github.com/beka-birhanu/keymaze/maze"
	"github.com/beka-birhanu/keymaze/protocol"
)

// Game-related errors.
var (
	ErrNameTaken             = errors.New("name taken")
	ErrUnknownPlayer         = errors.New("unknown player")
	ErrNoFreeCell            = errors.New("no free cell left")
	ErrInvalidPlayerPosition = errors.New("player is out of the maze")
	ErrInvalidName           = errors.New("invalid player name")
	ErrKeyCount              = errors.New("key count does not fit the maze")
)

const (
	defaultHealth = 100 // Starting health of a player.
	spawnPlayers  = 2   // Player count that triggers key spawning.
)

// Cell is a position in the maze.
type Cell struct {
	Row int
	Col int
}

// Player is a named avatar in the maze.
type Player struct {
	Name   string
	Pos    Cell
	Health int
	Items  []string
}

// Game is the world model: the wall grid, players and keys. It is not safe for
// concurrent use; the server touches it from its loop goroutine only and the
// client mirror guards it with its own lock.
type Game struct {
	walls       maze.Walls         // Wall grid used for legality and distances.
	players     map[string]*Player // Players indexed by name.
	order       []string           // Player names in join order.
	keys        []Cell             // Cells currently holding a key.
	keyCount    int                // Keys placed by SpawnKeys.
	keysSpawned bool               // SpawnKeys has run.
	won         bool               // One-way win flag.
	rng         *rand.Rand         // Source for placement tie-breaks.
}

// New creates a Game over walls. keyCount is the number of keys SpawnKeys
// places; rng drives random placement.
func New(walls maze.Walls, keyCount int, rng *rand.Rand) *Game {
	return &Game{
		walls:    walls,
		players:  make(map[string]*Player),
		keyCount: keyCount,
		rng:      rng,
	}
}

// NewMirror creates a Game that only applies state received from a server.
func NewMirror(walls maze.Walls) *Game {
	return New(walls, 0, rand.New(rand.NewPCG(0, 0)))
}

// Walls returns the wall grid.
func (g *Game) Walls() maze.Walls { return g.walls }

// Join places a new player. The first player lands on a random free cell;
// later players land on the cell furthest from every player and key.
func (g *Game) Join(name string) (Cell, error) {
	if name == "" || len(name) > protocol.MaxFieldLen {
		return Cell{}, ErrInvalidName
	}
	if _, ok := g.players[name]; ok {
		return Cell{}, ErrNameTaken
	}

	var (
		pos Cell
		err error
	)
	if len(g.players) == 0 {
		pos, err = g.randomFreeCell()
	} else {
		pos, err = g.furthestCell()
	}
	if err != nil {
		return Cell{}, err
	}

	g.addPlayer(name, pos)
	return pos, nil
}

// AddPlayer places a player at a known position.
func (g *Game) AddPlayer(name string, pos Cell) error {
	if _, ok := g.players[name]; ok {
		return ErrNameTaken
	}
	if !g.walls.InBound(pos.Row, pos.Col) {
		return ErrInvalidPlayerPosition
	}
	g.addPlayer(name, pos)
	return nil
}

func (g *Game) addPlayer(name string, pos Cell) {
	g.players[name] = &Player{Name: name, Pos: pos, Health: defaultHealth}
	g.order = append(g.order, name)
}

// Leave removes a player. It reports whether the player existed.
func (g *Game) Leave(name string) bool {
	if _, ok := g.players[name]; !ok {
		return false
	}
	delete(g.players, name)
	g.order = slices.DeleteFunc(g.order, func(n string) bool { return n == name })
	return true
}

// Move validates and applies a step. It returns the player's position after
// the call and whether the move was legal. A move is illegal when a wall
// blocks it or another player stands on the target cell.
func (g *Game) Move(name string, d protocol.Direction) (Cell, bool, error) {
	p, ok := g.players[name]
	if !ok {
		return Cell{}, false, fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
	}
	if !g.walls.Passable(p.Pos.Row, p.Pos.Col, d) {
		return p.Pos, false, nil
	}
	dr, dc, _ := maze.Offset(d)
	target := Cell{Row: p.Pos.Row + dr, Col: p.Pos.Col + dc}
	if g.occupied(target) {
		return p.Pos, false, nil
	}

	p.Pos = target
	return target, true, nil
}

// ApplyMove steps a player without validation. Mirrors use it to replay moves
// the server already accepted.
func (g *Game) ApplyMove(name string, d protocol.Direction) error {
	p, ok := g.players[name]
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownPlayer, name)
	}
	dr, dc, err := maze.Offset(d)
	if err != nil {
		return err
	}
	p.Pos = Cell{Row: p.Pos.Row + dr, Col: p.Pos.Col + dc}
	return nil
}

// PickupKey removes the key under the named player, if any, and updates the
// win state.
func (g *Game) PickupKey(name string) (Cell, bool) {
	p, ok := g.players[name]
	if !ok {
		return Cell{}, false
	}
	i := slices.Index(g.keys, p.Pos)
	if i < 0 {
		return Cell{}, false
	}
	g.keys = slices.Delete(g.keys, i, i+1)
	g.checkWin()
	return p.Pos, true
}

// ReadyToSpawn reports whether enough players have joined for keys to spawn.
func (g *Game) ReadyToSpawn() bool {
	return !g.keysSpawned && len(g.players) == spawnPlayers
}

// SpawnKeys places the configured number of keys, each on the cell furthest
// from every player and already placed key. Only the first call places keys;
// later calls return nil. When the maze runs out of cells the keys placed so
// far stand and ErrNoFreeCell is returned with them.
func (g *Game) SpawnKeys() ([]Cell, error) {
	if g.keysSpawned {
		return nil, nil
	}
	g.keysSpawned = true

	n := min(max(g.keyCount, 0), g.freeCells())
	spawned := make([]Cell, 0, n)
	for range n {
		c, err := g.furthestCell()
		if err != nil {
			return spawned, err
		}
		g.keys = append(g.keys, c)
		spawned = append(spawned, c)
	}
	if n < g.keyCount {
		return spawned, fmt.Errorf("%w: placed %d of %d keys", ErrNoFreeCell, n, g.keyCount)
	}
	return spawned, nil
}

// ValidateKeyCount checks that keys keys fit a rows x cols maze next to the
// two players that trigger spawning.
func ValidateKeyCount(rows, cols, keys int) error {
	if keys < 1 || keys > rows*cols-spawnPlayers {
		return fmt.Errorf("%w: %d keys in a %dx%d maze", ErrKeyCount, keys, rows, cols)
	}
	return nil
}

// ToggleKey removes the key at c if one is there and adds one otherwise. It
// reports whether a key was added.
func (g *Game) ToggleKey(c Cell) bool {
	if i := slices.Index(g.keys, c); i >= 0 {
		g.keys = slices.Delete(g.keys, i, i+1)
		g.checkWin()
		return false
	}
	g.keys = append(g.keys, c)
	return true
}

func (g *Game) checkWin() {
	if g.keysSpawned && len(g.keys) == 0 {
		g.won = true
	}
}

// Won reports whether every spawned key has been collected.
func (g *Game) Won() bool { return g.won }

// KeysSpawned reports whether SpawnKeys has run.
func (g *Game) KeysSpawned() bool { return g.keysSpawned }

// Player returns a copy of the named player.
func (g *Game) Player(name string) (Player, bool) {
	p, ok := g.players[name]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// Players returns copies of all players in join order.
func (g *Game) Players() []Player {
	out := make([]Player, 0, len(g.order))
	for _, name := range g.order {
		out = append(out, *g.players[name])
	}
	return out
}

// Keys returns the cells holding keys.
func (g *Game) Keys() []Cell { return slices.Clone(g.keys) }

func (g *Game) occupied(c Cell) bool {
	for _, p := range g.players {
		if p.Pos == c {
			return true
		}
	}
	return false
}

// freeCells counts cells holding neither a player nor a key.
func (g *Game) freeCells() int {
	n := 0
	for r := range g.walls.Rows() {
		for c := range g.walls.Cols() {
			cell := Cell{Row: r, Col: c}
			if !slices.Contains(g.keys, cell) && !g.occupied(cell) {
				n++
			}
		}
	}
	return n
}

func (g *Game) randomFreeCell() (Cell, error) {
	free := make([]Cell, 0, g.walls.Rows()*g.walls.Cols())
	for r := range g.walls.Rows() {
		for c := range g.walls.Cols() {
			cell := Cell{Row: r, Col: c}
			if !slices.Contains(g.keys, cell) && !g.occupied(cell) {
				free = append(free, cell)
			}
		}
	}
	if len(free) == 0 {
		return Cell{}, ErrNoFreeCell
	}
	return free[g.rng.IntN(len(free))], nil
}

// furthestCell returns a cell maximizing the minimum path distance to every
// player and key, breaking ties uniformly at random.
func (g *Game) furthestCell() (Cell, error) {
	sources := make([]Cell, 0, len(g.players)+len(g.keys))
	for _, name := range g.order {
		sources = append(sources, g.players[name].Pos)
	}
	sources = append(sources, g.keys...)
	if len(sources) == 0 {
		return g.randomFreeCell()
	}

	rows, cols := g.walls.Rows(), g.walls.Cols()
	nearest := make([][]int, rows)
	for r := range nearest {
		nearest[r] = make([]int, cols)
		for c := range nearest[r] {
			nearest[r][c] = -1
		}
	}
	for i, src := range sources {
		dist := g.walls.Distances(src.Row, src.Col)
		for r := range rows {
			for c := range cols {
				switch d := dist[r][c]; {
				case d < 0:
					nearest[r][c] = -1 // unreachable from some source
				case i == 0:
					nearest[r][c] = d
				case nearest[r][c] >= 0:
					nearest[r][c] = min(nearest[r][c], d)
				}
			}
		}
	}

	best := 0
	var candidates []Cell
	for r := range rows {
		for c := range cols {
			d := nearest[r][c]
			switch {
			case d <= 0 || d < best:
			case d > best:
				best = d
				candidates = append(candidates[:0], Cell{Row: r, Col: c})
			default:
				candidates = append(candidates, Cell{Row: r, Col: c})
			}
		}
	}
	if len(candidates) == 0 {
		return Cell{}, ErrNoFreeCell
	}
	return candidates[g.rng.IntN(len(candidates))], nil
}
