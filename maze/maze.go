// Package maze generates perfect mazes and converts them between the wall
// grid used for move legality and the ASCII text sent to clients.
package maze

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/beka-birhanu/keymaze/protocol"
)

// Maze-related errors.
var (
	ErrMalformed     = errors.New("malformed maze text")
	ErrDimension     = errors.New("maze dimension out of range")
	ErrTextTooLarge  = errors.New("rendered maze exceeds world snapshot size")
	errUnknownOffset = errors.New("unknown direction")
)

const (
	minDimension = 2
	maxDimension = 255 // coordinates travel as single bytes
)

// Walls holds one line per wall row: line 2r is the horizontal segments above
// cell row r (cols entries), line 2r+1 the vertical segments left of each cell
// in row r plus the east border (cols+1 entries). The last line is the bottom
// border. true means a wall.
type Walls [][]bool

// Rows returns the number of cell rows.
func (w Walls) Rows() int { return (len(w) - 1) / 2 }

// Cols returns the number of cell columns.
func (w Walls) Cols() int {
	if len(w) == 0 {
		return 0
	}
	return len(w[0])
}

// InBound reports whether (row, col) is a cell of the maze.
func (w Walls) InBound(row, col int) bool {
	return row >= 0 && col >= 0 && row < w.Rows() && col < w.Cols()
}

// Offset returns the row and column delta of a direction.
func Offset(d protocol.Direction) (int, int, error) {
	switch d {
	case protocol.Up:
		return -1, 0, nil
	case protocol.Right:
		return 0, 1, nil
	case protocol.Down:
		return 1, 0, nil
	case protocol.Left:
		return 0, -1, nil
	}
	return 0, 0, fmt.Errorf("%w: %s", errUnknownOffset, d)
}

// Passable reports whether a step from (row, col) towards d crosses no wall
// and stays inside the maze.
func (w Walls) Passable(row, col int, d protocol.Direction) bool {
	if !w.InBound(row, col) {
		return false
	}
	dr, dc, err := Offset(d)
	if err != nil || !w.InBound(row+dr, col+dc) {
		return false
	}
	switch d {
	case protocol.Up:
		return !w[2*row][col]
	case protocol.Right:
		return !w[2*row+1][col+1]
	case protocol.Down:
		return !w[2*row+2][col]
	default:
		return !w[2*row+1][col]
	}
}

func closed(rows, cols int) Walls {
	w := make(Walls, 2*rows+1)
	for i := range w {
		n := cols
		if i%2 == 1 {
			n = cols + 1
		}
		line := make([]bool, n)
		for j := range line {
			line[j] = true
		}
		w[i] = line
	}
	return w
}

// RenderedSize returns the length of the text produced by Render for a maze of
// the given dimensions.
func RenderedSize(rows, cols int) int {
	return (2*rows+1)*(3*cols+1) + 2*rows
}

// Validate checks that a maze of the given dimensions fits the wire format.
func Validate(rows, cols int) error {
	if rows < minDimension || cols < minDimension || rows > maxDimension || cols > maxDimension {
		return fmt.Errorf("%w: %dx%d", ErrDimension, rows, cols)
	}
	if size := RenderedSize(rows, cols); size > protocol.WorldSize {
		return fmt.Errorf("%w: %d bytes for %dx%d", ErrTextTooLarge, size, rows, cols)
	}
	return nil
}

type frame struct {
	row, col  int
	neighbors [4][2]int
	next      int
}

// Generate carves a perfect maze with a randomized depth-first walk from a
// random cell. The walk keeps an explicit stack instead of recursing.
func Generate(rows, cols int, rng *rand.Rand) (Walls, error) {
	if err := Validate(rows, cols); err != nil {
		return nil, err
	}
	w := closed(rows, cols)
	visited := make([][]bool, rows)
	for r := range visited {
		visited[r] = make([]bool, cols)
	}

	push := func(stack []*frame, row, col int) []*frame {
		visited[row][col] = true
		f := &frame{row: row, col: col, neighbors: [4][2]int{
			{row, col - 1}, {row + 1, col}, {row, col + 1}, {row - 1, col},
		}}
		rng.Shuffle(len(f.neighbors), func(i, j int) {
			f.neighbors[i], f.neighbors[j] = f.neighbors[j], f.neighbors[i]
		})
		return append(stack, f)
	}

	stack := push(nil, rng.IntN(rows), rng.IntN(cols))
	for len(stack) > 0 {
		top := stack[len(stack)-1]
		if top.next == len(top.neighbors) {
			stack = stack[:len(stack)-1]
			continue
		}
		nb := top.neighbors[top.next]
		top.next++
		nr, nc := nb[0], nb[1]
		if !w.InBound(nr, nc) || visited[nr][nc] {
			continue
		}
		if nc == top.col {
			w[2*max(top.row, nr)][nc] = false
		} else {
			w[2*nr+1][max(top.col, nc)] = false
		}
		stack = push(stack, nr, nc)
	}
	return w, nil
}

// Render draws the maze as ASCII art, lines joined by '\n' with no trailing
// newline.
func (w Walls) Render() string {
	var sb strings.Builder
	sb.Grow(RenderedSize(w.Rows(), w.Cols()))
	for i, line := range w {
		if i > 0 {
			sb.WriteByte('\n')
		}
		if i%2 == 0 {
			sb.WriteByte('+')
			for _, wall := range line {
				if wall {
					sb.WriteString("--+")
				} else {
					sb.WriteString("  +")
				}
			}
			continue
		}
		for j, wall := range line {
			if wall {
				sb.WriteByte('|')
			} else {
				sb.WriteByte(' ')
			}
			if j < len(line)-1 {
				sb.WriteString("  ")
			}
		}
	}
	return sb.String()
}

// Parse rebuilds the wall grid from text produced by Render. Trailing padding
// is ignored.
func Parse(text string) (Walls, error) {
	text = strings.TrimRight(text, " \x00\n")
	lines := strings.Split(text, "\n")
	if len(lines) < 3 || len(lines)%2 == 0 {
		return nil, fmt.Errorf("%w: %d lines", ErrMalformed, len(lines))
	}
	width := len(lines[0])
	if width < 4 || (width-1)%3 != 0 {
		return nil, fmt.Errorf("%w: line width %d", ErrMalformed, width)
	}
	cols := (width - 1) / 3

	w := make(Walls, len(lines))
	for i, line := range lines {
		if len(line) != width {
			return nil, fmt.Errorf("%w: line %d is %d wide, want %d", ErrMalformed, i, len(line), width)
		}
		if i%2 == 0 {
			w[i] = make([]bool, cols)
			for c := range w[i] {
				w[i][c] = line[1+3*c] == '-'
			}
			continue
		}
		w[i] = make([]bool, cols+1)
		for c := range w[i] {
			w[i][c] = line[3*c] == '|'
		}
	}
	return w, nil
}

// Distances returns the shortest path length from (row, col) to every cell,
// -1 where unreachable. The flood fill is a breadth-first worklist.
func (w Walls) Distances(row, col int) [][]int {
	rows, cols := w.Rows(), w.Cols()
	dist := make([][]int, rows)
	for r := range dist {
		dist[r] = make([]int, cols)
		for c := range dist[r] {
			dist[r][c] = -1
		}
	}
	if !w.InBound(row, col) {
		return dist
	}

	dist[row][col] = 0
	queue := [][2]int{{row, col}}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, d := range []protocol.Direction{protocol.Up, protocol.Right, protocol.Down, protocol.Left} {
			if !w.Passable(cur[0], cur[1], d) {
				continue
			}
			dr, dc, _ := Offset(d)
			nr, nc := cur[0]+dr, cur[1]+dc
			if dist[nr][nc] >= 0 {
				continue
			}
			dist[nr][nc] = dist[cur[0]][cur[1]] + 1
			queue = append(queue, [2]int{nr, nc})
		}
	}
	return dist
}
