// Package game defines the core board types for Go game replay.
//
// These types represent the minimal state needed for rules evaluation and
// neural network feature encoding. Positions are treated as immutable
// snapshots: rules.Play always returns a fresh Position.
package game

import "fmt"

// Color is the occupant of a board point, or the side to move.
type Color int8

const (
	Empty Color = iota
	Black
	White
)

// Opponent returns the other side. Empty has no opponent.
func (c Color) Opponent() Color {
	switch c {
	case Black:
		return White
	case White:
		return Black
	}
	return Empty
}

func (c Color) String() string {
	switch c {
	case Black:
		return "B"
	case White:
		return "W"
	}
	return "."
}

// Point is a board coordinate.
// Coordinates follow SGF conventions: X is the column, Y is the row counted
// from the top edge, both zero-based.
type Point struct {
	X int32
	Y int32
}

// NoPoint marks an absent coordinate (no ko, pass move).
var NoPoint = Point{X: -1, Y: -1}

func (p Point) String() string {
	if p == NoPoint {
		return "pass"
	}
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// Move is a single recorded play. Pass moves ignore Point.
type Move struct {
	Color Color
	Point Point
	Pass  bool
}

func (m Move) String() string {
	if m.Pass {
		return m.Color.String() + " pass"
	}
	return m.Color.String() + " " + m.Point.String()
}

// Board is a row-major grid of stones; index is y*size + x.
type Board []Color

// HistoryLength is the number of boards (current included) kept for feature
// encoding.
const HistoryLength = 8

// Position is the complete state needed for rules + inference.
// ToPlay selects the perspective used for feature encoding.
type Position struct {
	Size     int32
	Stones   Board
	History  []Board // previous boards, most recent first
	ToPlay   Color
	Ko       Point
	Komi     float64
	Turn     int32
	Captures [2]int32 // stones captured by Black, by White
}

// NewPosition returns an empty board of the given size with Black to play.
func NewPosition(size int32, komi float64) *Position {
	return &Position{
		Size:   size,
		Stones: make(Board, int(size)*int(size)),
		ToPlay: Black,
		Ko:     NoPoint,
		Komi:   komi,
	}
}

// InBounds reports whether p lies on the board.
func (s *Position) InBounds(p Point) bool {
	return p.X >= 0 && p.X < s.Size && p.Y >= 0 && p.Y < s.Size
}

// Index returns the Stones index of p. p must be in bounds.
func (s *Position) Index(p Point) int {
	return int(p.Y)*int(s.Size) + int(p.X)
}

// At returns the stone at p, or Empty when p is off the board.
func (s *Position) At(p Point) Color {
	if !s.InBounds(p) {
		return Empty
	}
	return s.Stones[s.Index(p)]
}

// Clone performs a deep copy of the position.
func (s *Position) Clone() *Position {
	if s == nil {
		return nil
	}

	out := *s
	out.Stones = make(Board, len(s.Stones))
	copy(out.Stones, s.Stones)

	// History boards are never written after being pushed, so they can be shared.
	if len(s.History) > 0 {
		out.History = make([]Board, len(s.History))
		copy(out.History, s.History)
	}
	return &out
}

// Recent returns the board i steps back in time; 0 is the current board.
// It returns nil when the history does not reach that far.
func (s *Position) Recent(i int) Board {
	if i == 0 {
		return s.Stones
	}
	if i-1 < len(s.History) {
		return s.History[i-1]
	}
	return nil
}

// String renders the board top-to-bottom, mostly for test failure output.
func (s *Position) String() string {
	buf := make([]byte, 0, int(s.Size)*(int(s.Size)+1))
	for y := int32(0); y < s.Size; y++ {
		for x := int32(0); x < s.Size; x++ {
			switch s.Stones[int(y)*int(s.Size)+int(x)] {
			case Black:
				buf = append(buf, 'X')
			case White:
				buf = append(buf, 'O')
			default:
				buf = append(buf, '.')
			}
		}
		buf = append(buf, '\n')
	}
	return string(buf)
}
