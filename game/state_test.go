package game

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestClone_DeepCopiesStones(t *testing.T) {
	pos := NewPosition(5, 6.5)
	pos.Stones[pos.Index(Point{X: 1, Y: 2})] = Black
	pos.History = []Board{make(Board, 25)}

	cl := pos.Clone()
	cl.Stones[cl.Index(Point{X: 1, Y: 2})] = White
	cl.History = append(cl.History, make(Board, 25))

	require.Equal(t, Black, pos.At(Point{X: 1, Y: 2}))
	require.Len(t, pos.History, 1)
	require.Equal(t, pos.Komi, cl.Komi)
	require.Equal(t, NoPoint, cl.Ko)
}

func TestRecent(t *testing.T) {
	pos := NewPosition(3, 0)
	older := make(Board, 9)
	oldest := make(Board, 9)
	pos.History = []Board{older, oldest}

	require.Equal(t, pos.Stones, pos.Recent(0))
	require.Equal(t, older, pos.Recent(1))
	require.Equal(t, oldest, pos.Recent(2))
	require.Nil(t, pos.Recent(3))
}

func TestAt_OffBoardIsEmpty(t *testing.T) {
	pos := NewPosition(3, 0)
	require.Equal(t, Empty, pos.At(Point{X: -1, Y: 0}))
	require.Equal(t, Empty, pos.At(Point{X: 0, Y: 3}))
}

func TestColorOpponent(t *testing.T) {
	require.Equal(t, White, Black.Opponent())
	require.Equal(t, Black, White.Opponent())
	require.Equal(t, Empty, Empty.Opponent())
}

func TestString(t *testing.T) {
	pos := NewPosition(2, 0)
	pos.Stones[pos.Index(Point{X: 0, Y: 0})] = Black
	pos.Stones[pos.Index(Point{X: 1, Y: 1})] = White
	require.Equal(t, "X.\n.O\n", pos.String())
}
