// Package analysis measures how consistently a value network scores the
// eight symmetric variants of board positions, per position, per game and
// over a folder of games.
package analysis

import (
	"fmt"
	"math"

	"github.com/brensch/symcheck/executor/convert"
	"github.com/brensch/symcheck/executor/symmetry"
	"github.com/brensch/symcheck/game"
)

// ValuePredictor scores a batch of encoded positions, one value per tensor
// in input order. *inference.ValueClient implements it.
type ValuePredictor interface {
	PredictValues(batch []convert.Tensor) ([]float32, error)
}

// PositionStats holds the eight symmetric values of one position, in
// symmetry.All order, and their spread and population standard deviation.
type PositionStats struct {
	Spread float64
	StdDev float64
	Values [8]float64
}

// EvaluatePosition runs the network once on all eight variants of pos.
func EvaluatePosition(p ValuePredictor, pos *game.Position) (PositionStats, error) {
	variants := symmetry.Variants(convert.Features(pos))
	raw, err := p.PredictValues(variants)
	if err != nil {
		return PositionStats{}, fmt.Errorf("predict: %w", err)
	}
	if len(raw) != len(symmetry.All) {
		return PositionStats{}, fmt.Errorf("predict: got %d values, want %d", len(raw), len(symmetry.All))
	}

	var st PositionStats
	for i, v := range raw {
		st.Values[i] = float64(v)
	}
	st.Spread = Spread(st.Values[:])
	st.StdDev = StdDev(st.Values[:])
	return st, nil
}

// Spread is max minus min. It is 0 for an empty slice.
func Spread(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	lo, hi := values[0], values[0]
	for _, v := range values[1:] {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	return hi - lo
}

// StdDev is the population standard deviation (divisor len(values)).
// Deviations are taken from values[0] first, so identical inputs give
// exactly 0.
func StdDev(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	n := float64(len(values))
	shift := values[0]
	var sum float64
	for _, v := range values {
		sum += v - shift
	}
	mean := sum / n
	var sq float64
	for _, v := range values {
		d := v - shift - mean
		sq += d * d
	}
	return math.Sqrt(sq / n)
}
