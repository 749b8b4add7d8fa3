package store

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/brensch/symcheck/executor/analysis"
	"github.com/brensch/symcheck/game"
	"github.com/stretchr/testify/require"
)

func gameStats(path string, spread, std float64, positions int) analysis.GameStats {
	gs := analysis.GameStats{Path: path, Positions: positions, Worst: spread, AvgStdDev: std}
	for i := range gs.Percentiles {
		gs.Percentiles[i] = spread * float64(i) / 99
	}
	return gs
}

func positionResults(n int) []analysis.PositionResult {
	out := make([]analysis.PositionResult, n)
	for i := range out {
		color := game.Black
		if i%2 == 1 {
			color = game.White
		}
		out[i] = analysis.PositionResult{
			MoveNumber: i + 1,
			Color:      color,
			Stats: analysis.PositionStats{
				Spread: float64(i) / 10,
				StdDev: float64(i) / 40,
				Values: [8]float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, float64(i)},
			},
		}
	}
	return out
}

func TestResultWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewResultWriter(dir, "models/net.onnx", "abc")
	require.NoError(t, w.AddGame(gameStats("a.sgf", 0.5, 0.1, 3), positionResults(3)))
	require.NoError(t, w.AddGame(gameStats("b.sgf", 0.2, 0.05, 4), nil))

	paths, err := w.Flush()
	require.NoError(t, err)
	require.Len(t, paths, 2)
	require.True(t, strings.HasPrefix(filepath.Base(paths[0]), GamesPrefix))
	require.True(t, strings.HasPrefix(filepath.Base(paths[1]), PositionsPrefix))

	games, err := ReadGameRows(paths[0])
	require.NoError(t, err)
	require.Len(t, games, 2)
	require.Equal(t, "a.sgf", games[0].Path)
	require.Equal(t, "models/net.onnx", games[0].Model)
	require.Equal(t, "abc", games[0].ModelDigest)
	require.Equal(t, int32(3), games[0].Positions)
	require.Equal(t, 0.5, games[0].Worst)
	require.Len(t, games[0].Percentiles, 100)
	require.Equal(t, games[0].Percentiles[50], games[0].Median)
	require.Equal(t, games[0].Percentiles[90], games[0].P90)
	require.False(t, games[0].Cached)
	require.True(t, games[1].Cached)

	positions, err := ReadPositionRows(paths[1])
	require.NoError(t, err)
	require.Len(t, positions, 3)
	require.Equal(t, "a.sgf", positions[2].Path)
	require.Equal(t, int32(3), positions[2].MoveNumber)
	require.Equal(t, "W", positions[1].Color)
	require.Equal(t, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 2}, positions[2].Values)

	// No temp files are left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		require.False(t, strings.HasSuffix(e.Name(), ".tmp"), e.Name())
	}

	// Flushed buffers are reset.
	again, err := w.Flush()
	require.NoError(t, err)
	require.Empty(t, again)
}

func TestResultWriter_CacheOnlyRun(t *testing.T) {
	dir := t.TempDir()
	w := NewResultWriter(dir, "m", "d")
	require.NoError(t, w.AddGame(gameStats("a.sgf", 0.5, 0.1, 3), nil))
	paths, err := w.Flush()
	require.NoError(t, err)
	require.Len(t, paths, 1, "no positions file without positions")
}

func TestResultCache(t *testing.T) {
	dir := t.TempDir()
	c, err := OpenResultCache(dir)
	require.NoError(t, err)

	_, ok, err := c.Get("m/1")
	require.NoError(t, err)
	require.False(t, ok)

	want := gameStats("a.sgf", 0.75, 0.2, 12)
	require.NoError(t, c.Put("m/1", want))
	got, ok, err := c.Get("m/1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, want, got)

	require.NoError(t, c.Put("m/2", gameStats("b.sgf", 0.1, 0.01, 2)))
	n, err := c.Len()
	require.NoError(t, err)
	require.Equal(t, 2, n)
	require.NoError(t, c.Close())

	// Entries survive a reopen.
	c, err = OpenResultCache(dir)
	require.NoError(t, err)
	defer c.Close()
	got, ok, err = c.Get("m/1")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 12, got.Positions)
}

func TestSummarizeRuns(t *testing.T) {
	root := t.TempDir()

	w := NewResultWriter(filepath.Join(root, "run1"), "net-a", "aaaa")
	require.NoError(t, w.AddGame(gameStats("a.sgf", 0.4, 0.1, 3), positionResults(3)))
	require.NoError(t, w.AddGame(gameStats("b.sgf", 0.8, 0.3, 5), positionResults(5)))
	_, err := w.Flush()
	require.NoError(t, err)

	w = NewResultWriter(filepath.Join(root, "run2"), "net-b", "bbbb")
	require.NoError(t, w.AddGame(gameStats("a.sgf", 0.2, 0.05, 3), positionResults(3)))
	_, err = w.Flush()
	require.NoError(t, err)

	ctx := context.Background()
	sums, err := SummarizeRuns(ctx, []string{root})
	require.NoError(t, err)
	require.Len(t, sums, 2)

	require.Equal(t, "net-a", sums[0].Model)
	require.Equal(t, "aaaa", sums[0].ModelDigest)
	require.Equal(t, int64(2), sums[0].Games)
	require.InDelta(t, 0.6, sums[0].MeanWorst, 1e-12)
	require.InDelta(t, 0.2, sums[0].MeanStdDev, 1e-12)
	require.InDelta(t, (0.4*50/99+0.8*50/99)/2, sums[0].MeanMedian, 1e-12)
	require.InDelta(t, (0.4*90/99+0.8*90/99)/2, sums[0].MeanP90, 1e-12)

	require.Equal(t, "net-b", sums[1].Model)
	require.Equal(t, int64(1), sums[1].Games)
	require.InDelta(t, 0.2, sums[1].MeanWorst, 1e-12)

	worst, err := WorstPositions(ctx, []string{root}, "aaaa", 2)
	require.NoError(t, err)
	require.Len(t, worst, 2)
	require.Equal(t, "b.sgf", worst[0].Path)
	require.Equal(t, int32(5), worst[0].MoveNumber)
	require.InDelta(t, 0.4, worst[0].Spread, 1e-12)
}

func TestSummarizeRuns_NoRoots(t *testing.T) {
	_, err := SummarizeRuns(context.Background(), []string{" "})
	require.Error(t, err)
}

func TestWorstPositions_CacheOnlyResults(t *testing.T) {
	root := t.TempDir()
	w := NewResultWriter(filepath.Join(root, "run"), "net-a", "aaaa")
	require.NoError(t, w.AddGame(gameStats("a.sgf", 0.4, 0.1, 3), nil))
	_, err := w.Flush()
	require.NoError(t, err)

	ctx := context.Background()
	sums, err := SummarizeRuns(ctx, []string{root})
	require.NoError(t, err)
	require.Len(t, sums, 1)

	_, err = WorstPositions(ctx, []string{root}, "aaaa", 5)
	require.ErrorIs(t, err, ErrNoPositionRows)
	require.ErrorContains(t, err, root)
}
