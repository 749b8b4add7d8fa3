package rules

import (
	"errors"
	"fmt"

	"github.com/brensch/symcheck/game"
)

var (
	ErrOutOfBounds = errors.New("point is off the board")
	ErrOccupied    = errors.New("point is occupied")
	ErrSuicide     = errors.New("move is suicide")
	ErrKo          = errors.New("move retakes a ko")
)

// Play returns the position after m. The input position is not modified.
// Adjacent opponent groups left without liberties are captured; a move that
// leaves its own group without liberties is rejected, as is an immediate
// retake of a simple ko by the side to move.
func Play(pos *game.Position, m game.Move) (*game.Position, error) {
	if m.Color != game.Black && m.Color != game.White {
		return nil, fmt.Errorf("invalid move color %v", m.Color)
	}

	next := pos.Clone()
	next.History = pushHistory(pos)
	next.Turn++
	next.Ko = game.NoPoint
	next.ToPlay = m.Color.Opponent()

	if m.Pass {
		return next, nil
	}

	p := m.Point
	if !pos.InBounds(p) {
		return nil, fmt.Errorf("%v: %w", p, ErrOutOfBounds)
	}
	if pos.At(p) != game.Empty {
		return nil, fmt.Errorf("%v: %w", p, ErrOccupied)
	}
	if p == pos.Ko && m.Color == pos.ToPlay {
		return nil, fmt.Errorf("%v: %w", p, ErrKo)
	}

	idx := next.Index(p)
	next.Stones[idx] = m.Color

	captured := 0
	lastCaptured := -1
	for _, n := range neighbors(next.Size, idx) {
		if next.Stones[n] != m.Color.Opponent() {
			continue
		}
		group, libs := groupOf(next.Stones, next.Size, n)
		if libs > 0 {
			continue
		}
		for _, g := range group {
			next.Stones[g] = game.Empty
		}
		captured += len(group)
		lastCaptured = group[0]
	}

	own, libs := groupOf(next.Stones, next.Size, idx)
	if libs == 0 {
		return nil, fmt.Errorf("%v: %w", p, ErrSuicide)
	}

	if captured == 1 && len(own) == 1 && libs == 1 {
		next.Ko = game.Point{X: int32(lastCaptured % int(next.Size)), Y: int32(lastCaptured / int(next.Size))}
	}
	next.Captures[m.Color-1] += int32(captured)

	return next, nil
}

// Setup places (or, for game.Empty, removes) stones without any capture
// logic, as SGF AB/AW/AE properties require. History is left untouched.
func Setup(pos *game.Position, c game.Color, points []game.Point) (*game.Position, error) {
	next := pos.Clone()
	for _, p := range points {
		if !next.InBounds(p) {
			return nil, fmt.Errorf("setup %v: %w", p, ErrOutOfBounds)
		}
		next.Stones[next.Index(p)] = c
	}
	return next, nil
}

func pushHistory(pos *game.Position) []game.Board {
	keep := len(pos.History)
	if keep > game.HistoryLength-2 {
		keep = game.HistoryLength - 2
	}
	out := make([]game.Board, 0, keep+1)
	out = append(out, pos.Stones)
	out = append(out, pos.History[:keep]...)
	return out
}

func neighbors(size int32, idx int) []int {
	n := int(size)
	x, y := idx%n, idx/n
	out := make([]int, 0, 4)
	if x > 0 {
		out = append(out, idx-1)
	}
	if x < n-1 {
		out = append(out, idx+1)
	}
	if y > 0 {
		out = append(out, idx-n)
	}
	if y < n-1 {
		out = append(out, idx+n)
	}
	return out
}

// groupOf flood-fills the chain containing idx and counts its distinct
// liberties.
func groupOf(stones game.Board, size int32, idx int) ([]int, int) {
	color := stones[idx]
	seen := map[int]bool{idx: true}
	libs := map[int]bool{}
	group := []int{idx}

	for i := 0; i < len(group); i++ {
		for _, n := range neighbors(size, group[i]) {
			switch {
			case stones[n] == game.Empty:
				libs[n] = true
			case stones[n] == color && !seen[n]:
				seen[n] = true
				group = append(group, n)
			}
		}
	}
	return group, len(libs)
}
