package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"

	"github.com/brensch/symcheck/game"
	"github.com/brensch/symcheck/sgf"
	"github.com/rs/zerolog/log"
)

// ErrNoPositions is returned for a game with no recorded moves.
var ErrNoPositions = errors.New("game has no positions")

// GameStats summarizes the per-position spreads of one game.
type GameStats struct {
	Path      string
	Positions int
	// Percentiles[i] is the nearest-rank i-th percentile of the spreads.
	Percentiles [100]float64
	Worst       float64
	AvgStdDev   float64
}

func (g GameStats) Median() float64 { return g.Percentiles[50] }
func (g GameStats) P90() float64    { return g.Percentiles[90] }

// PositionResult ties one evaluated position back to its move in the record.
type PositionResult struct {
	MoveNumber int
	Color      game.Color
	Stats      PositionStats
}

// Percentiles returns sorted[i*n/100] for i in 0..99, using integer division.
// The input is not modified.
func Percentiles(spreads []float64) ([100]float64, error) {
	var out [100]float64
	n := len(spreads)
	if n == 0 {
		return out, ErrNoPositions
	}
	sorted := slices.Clone(spreads)
	slices.Sort(sorted)
	for i := range out {
		out[i] = sorted[i*n/100]
	}
	return out, nil
}

// SummarizeGame folds per-position stats into a GameStats.
func SummarizeGame(path string, positions []PositionStats) (GameStats, error) {
	if len(positions) == 0 {
		return GameStats{Path: path}, ErrNoPositions
	}
	spreads := make([]float64, len(positions))
	var stdSum float64
	for i, p := range positions {
		spreads[i] = p.Spread
		stdSum += p.StdDev
	}
	pct, err := Percentiles(spreads)
	if err != nil {
		return GameStats{Path: path}, err
	}
	return GameStats{
		Path:        path,
		Positions:   len(positions),
		Percentiles: pct,
		Worst:       slices.Max(spreads),
		AvgStdDev:   stdSum / float64(len(positions)),
	}, nil
}

// AnalyzeGame replays the record at path and evaluates every position.
func AnalyzeGame(ctx context.Context, p ValuePredictor, path string) (GameStats, []PositionResult, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return GameStats{Path: path}, nil, err
	}
	return AnalyzeRecord(ctx, p, path, data)
}

// AnalyzeRecord is AnalyzeGame for a record already in memory.
func AnalyzeRecord(ctx context.Context, p ValuePredictor, path string, data []byte) (GameStats, []PositionResult, error) {
	r, err := sgf.Load(path, data)
	if err != nil {
		return GameStats{Path: path}, nil, err
	}

	var results []PositionResult
	for r.Next() {
		if err := ctx.Err(); err != nil {
			return GameStats{Path: path}, nil, err
		}
		snap := r.Snapshot()
		st, err := EvaluatePosition(p, snap.Position)
		if err != nil {
			return GameStats{Path: path}, nil, fmt.Errorf("move %d: %w", snap.MoveNumber, err)
		}
		results = append(results, PositionResult{
			MoveNumber: snap.MoveNumber,
			Color:      snap.NextMove.Color,
			Stats:      st,
		})
	}
	if err := r.Err(); err != nil {
		return GameStats{Path: path}, nil, err
	}

	stats := make([]PositionStats, len(results))
	for i, res := range results {
		stats[i] = res.Stats
	}
	gs, err := SummarizeGame(path, stats)
	if err != nil {
		return gs, nil, err
	}

	log.Debug().Str("path", path).Int("positions", gs.Positions).
		Float64("median", gs.Median()).Float64("p90", gs.P90()).Float64("worst", gs.Worst).
		Msg("game analyzed")
	return gs, results, nil
}
