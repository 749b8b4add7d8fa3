package sgf

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/brensch/symcheck/game"
	"github.com/brensch/symcheck/rules"
)

const (
	DefaultSize = 19
	DefaultKomi = 7.5
	MaxSize     = 25
)

// ErrNotGo is returned for records whose GM property names another game.
var ErrNotGo = errors.New("not a game of Go")

// Snapshot is the position immediately before a recorded move, together with
// that move and the game result. Position is never modified after it is
// handed out.
type Snapshot struct {
	Position   *game.Position
	NextMove   game.Move
	MoveNumber int // 1-based
	Result     string
}

// Replayer walks the main line of a game once, yielding one Snapshot per
// recorded move. It cannot be rewound.
//
//	r, err := sgf.NewReplayer(tree)
//	for r.Next() {
//		s := r.Snapshot()
//	}
//	if err := r.Err(); err != nil { ... }
type Replayer struct {
	nodes  []*Node
	next   int
	pos    *game.Position
	result string

	cur     Snapshot
	pending *game.Move
	moves   int
	err     error
}

// NewReplayer reads board size, komi, result and root setup from the tree.
func NewReplayer(tree *GameTree) (*Replayer, error) {
	nodes := tree.MainLine()
	root := nodes[0]

	if v, ok := root.Get("GM"); ok {
		if gm := strings.TrimSpace(v); gm != "" && gm != "1" {
			return nil, fmt.Errorf("sgf: GM[%s]: %w", gm, ErrNotGo)
		}
	}

	size := int32(DefaultSize)
	if v, ok := root.Get("SZ"); ok {
		n, err := parseSize(v)
		if err != nil {
			return nil, err
		}
		size = n
	}

	komi := DefaultKomi
	if v, ok := root.Get("KM"); ok && strings.TrimSpace(v) != "" {
		k, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, fmt.Errorf("sgf: invalid KM %q: %w", v, err)
		}
		komi = k
	}

	result, _ := root.Get("RE")

	return &Replayer{
		nodes:  nodes,
		pos:    game.NewPosition(size, komi),
		result: strings.TrimSpace(result),
	}, nil
}

// ReadFile loads and parses path and returns a replayer over its main line.
func ReadFile(path string) (*Replayer, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Load(path, data)
}

// Load replays an already read record; name only labels parse errors.
func Load(name string, data []byte) (*Replayer, error) {
	tree, err := Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", name, err)
	}
	return NewReplayer(tree)
}

// Size is the board size declared by the record.
func (r *Replayer) Size() int32 { return r.pos.Size }

func (r *Replayer) Result() string { return r.result }

// Next advances to the next recorded move. It returns false at the end of
// the game or on the first illegal move; check Err afterwards.
func (r *Replayer) Next() bool {
	if r.err != nil {
		return false
	}

	if r.pending != nil {
		next, err := rules.Play(r.pos, *r.pending)
		if err != nil {
			r.err = fmt.Errorf("move %d (%v): %w", r.moves, *r.pending, err)
			return false
		}
		r.pos = next
		r.pending = nil
	}

	for r.next < len(r.nodes) {
		node := r.nodes[r.next]
		r.next++

		pos, err := applySetup(r.pos, node)
		if err != nil {
			r.err = fmt.Errorf("node %d: %w", r.next-1, err)
			return false
		}

		move, ok, err := nodeMove(node, pos.Size)
		if err != nil {
			r.err = fmt.Errorf("node %d: %w", r.next-1, err)
			return false
		}
		if !ok {
			r.pos = pos
			continue
		}

		if pos.ToPlay != move.Color {
			if pos == r.pos {
				pos = pos.Clone()
			}
			pos.ToPlay = move.Color
		}
		r.pos = pos
		r.moves++
		r.pending = &move
		r.cur = Snapshot{
			Position:   pos,
			NextMove:   move,
			MoveNumber: r.moves,
			Result:     r.result,
		}
		return true
	}

	r.pending = nil
	return false
}

// Snapshot returns the position produced by the last successful Next.
func (r *Replayer) Snapshot() Snapshot { return r.cur }

func (r *Replayer) Err() error { return r.err }

func applySetup(pos *game.Position, node *Node) (*game.Position, error) {
	out := pos
	for _, setup := range []struct {
		ident string
		color game.Color
	}{
		{"AE", game.Empty},
		{"AB", game.Black},
		{"AW", game.White},
	} {
		values := node.Values(setup.ident)
		if len(values) == 0 {
			continue
		}
		var points []game.Point
		for _, v := range values {
			pts, err := parsePointList(v)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", setup.ident, err)
			}
			points = append(points, pts...)
		}
		next, err := rules.Setup(out, setup.color, points)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", setup.ident, err)
		}
		out = next
	}

	if v, ok := node.Get("PL"); ok {
		c, err := parseColor(v)
		if err != nil {
			return nil, fmt.Errorf("PL: %w", err)
		}
		if c != out.ToPlay {
			if out == pos {
				out = out.Clone()
			}
			out.ToPlay = c
		}
	}
	return out, nil
}

func nodeMove(node *Node, size int32) (game.Move, bool, error) {
	bv, hasB := node.Get("B")
	wv, hasW := node.Get("W")
	if hasB && hasW {
		return game.Move{}, false, fmt.Errorf("node has both B and W moves")
	}

	var m game.Move
	var v string
	switch {
	case hasB:
		m.Color, v = game.Black, bv
	case hasW:
		m.Color, v = game.White, wv
	default:
		return game.Move{}, false, nil
	}

	v = strings.TrimSpace(v)
	if v == "" || (v == "tt" && size <= 19) {
		m.Pass = true
		m.Point = game.NoPoint
		return m, true, nil
	}
	p, err := parsePoint(v)
	if err != nil {
		return game.Move{}, false, err
	}
	m.Point = p
	return m, true, nil
}

func parseSize(v string) (int32, error) {
	v = strings.TrimSpace(v)
	cols, rows, rect := strings.Cut(v, ":")
	n, err := strconv.Atoi(cols)
	if err != nil {
		return 0, fmt.Errorf("sgf: invalid SZ %q", v)
	}
	if rect {
		m, err := strconv.Atoi(rows)
		if err != nil {
			return 0, fmt.Errorf("sgf: invalid SZ %q", v)
		}
		if m != n {
			return 0, fmt.Errorf("sgf: non-square board %q is not supported", v)
		}
	}
	if n < 2 || n > MaxSize {
		return 0, fmt.Errorf("sgf: board size %d out of range [2, %d]", n, MaxSize)
	}
	return int32(n), nil
}

func parseColor(v string) (game.Color, error) {
	switch strings.ToUpper(strings.TrimSpace(v)) {
	case "B":
		return game.Black, nil
	case "W":
		return game.White, nil
	}
	return game.Empty, fmt.Errorf("invalid color %q", v)
}

func parsePoint(v string) (game.Point, error) {
	if len(v) != 2 {
		return game.Point{}, fmt.Errorf("invalid point %q", v)
	}
	x, okX := coord(v[0])
	y, okY := coord(v[1])
	if !okX || !okY {
		return game.Point{}, fmt.Errorf("invalid point %q", v)
	}
	return game.Point{X: x, Y: y}, nil
}

// parsePointList accepts a single point or a compressed rectangle "aa:cc".
func parsePointList(v string) ([]game.Point, error) {
	v = strings.TrimSpace(v)
	from, to, rect := strings.Cut(v, ":")
	a, err := parsePoint(from)
	if err != nil {
		return nil, err
	}
	if !rect {
		return []game.Point{a}, nil
	}
	b, err := parsePoint(to)
	if err != nil {
		return nil, err
	}
	x0, x1 := min(a.X, b.X), max(a.X, b.X)
	y0, y1 := min(a.Y, b.Y), max(a.Y, b.Y)
	out := make([]game.Point, 0, (x1-x0+1)*(y1-y0+1))
	for y := y0; y <= y1; y++ {
		for x := x0; x <= x1; x++ {
			out = append(out, game.Point{X: x, Y: y})
		}
	}
	return out, nil
}

func coord(c byte) (int32, bool) {
	switch {
	case c >= 'a' && c <= 'z':
		return int32(c - 'a'), true
	case c >= 'A' && c <= 'Z':
		return int32(c-'A') + 26, true
	}
	return 0, false
}
