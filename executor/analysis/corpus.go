package analysis

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
)

// RecordExt is the file suffix of game records picked up by Corpus.Run.
const RecordExt = ".sgf"

// ErrNoData is returned when no game in the corpus produced statistics.
var ErrNoData = errors.New("no data")

// Cache remembers game summaries across runs. Keys are opaque.
type Cache interface {
	Get(key string) (GameStats, bool, error)
	Put(key string, stats GameStats) error
}

// Sink receives every analyzed game. positions is nil for cache hits.
type Sink interface {
	AddGame(stats GameStats, positions []PositionResult) error
}

type CorpusStats struct {
	Games   int
	Skipped int
	Failed  int

	MeanMedian float64
	MeanP90    float64
	MeanWorst  float64
	MeanStdDev float64

	PerGame []GameStats
}

// Corpus analyzes every record under a folder with one predictor.
type Corpus struct {
	Predictor ValuePredictor
	// SkipErrors logs and counts unreadable or illegal records instead of
	// aborting the run.
	SkipErrors bool

	Cache Cache
	// ModelDigest scopes cache keys to one set of weights.
	ModelDigest string
	Sink        Sink
}

// FindRecords lists files under root whose name ends in ext, sorted.
func FindRecords(root, ext string) ([]string, error) {
	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if strings.HasSuffix(d.Name(), ext) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(paths)
	return paths, nil
}

// Mean is the arithmetic mean of values, or ErrNoData when there are none.
func Mean(values []float64) (float64, error) {
	if len(values) == 0 {
		return 0, ErrNoData
	}
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values)), nil
}

// RecordKey is the cache key of a record's bytes under a model digest.
func RecordKey(modelDigest string, data []byte) string {
	return fmt.Sprintf("%s/%016x", modelDigest, xxhash.Sum64(data))
}

// Run analyzes every record under root and averages the per-game numbers.
// Games without moves are skipped. Any other per-file error aborts the run
// unless SkipErrors is set.
func (c *Corpus) Run(ctx context.Context, root string) (CorpusStats, error) {
	paths, err := FindRecords(root, RecordExt)
	if err != nil {
		return CorpusStats{}, err
	}
	log.Info().Str("root", root).Int("records", len(paths)).Msg("starting symmetry analysis")

	var out CorpusStats
	for _, path := range paths {
		if err := ctx.Err(); err != nil {
			return out, err
		}

		gs, positions, err := c.analyzeFile(ctx, path)
		switch {
		case err == nil:
		case errors.Is(err, ErrNoPositions):
			out.Skipped++
			log.Warn().Str("path", path).Msg("no moves in record, skipping")
			continue
		case ctx.Err() != nil:
			return out, ctx.Err()
		case c.SkipErrors:
			out.Failed++
			log.Error().Err(err).Str("path", path).Msg("skipping record")
			continue
		default:
			return out, fmt.Errorf("%s: %w", path, err)
		}

		out.PerGame = append(out.PerGame, gs)
		if c.Sink != nil {
			if err := c.Sink.AddGame(gs, positions); err != nil {
				return out, fmt.Errorf("export %s: %w", path, err)
			}
		}
	}

	out.Games = len(out.PerGame)
	if c.SkipErrors && out.Failed > 0 {
		log.Warn().Int("failed", out.Failed).Int("games", out.Games).Msg("some records could not be analyzed")
	}
	if err := out.fillMeans(); err != nil {
		return out, err
	}
	log.Info().Int("games", out.Games).Int("skipped", out.Skipped).Int("failed", out.Failed).Msg("symmetry analysis done")
	return out, nil
}

func (c *Corpus) analyzeFile(ctx context.Context, path string) (GameStats, []PositionResult, error) {
	if c.Cache == nil {
		return AnalyzeGame(ctx, c.Predictor, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return GameStats{Path: path}, nil, err
	}
	key := RecordKey(c.ModelDigest, data)
	cached, ok, err := c.Cache.Get(key)
	if err != nil {
		return GameStats{Path: path}, nil, fmt.Errorf("cache get: %w", err)
	}
	if ok {
		cached.Path = path
		log.Debug().Str("path", path).Msg("cache hit")
		return cached, nil, nil
	}

	gs, positions, err := AnalyzeRecord(ctx, c.Predictor, path, data)
	if err != nil {
		return gs, nil, err
	}
	if err := c.Cache.Put(key, gs); err != nil {
		return gs, nil, fmt.Errorf("cache put: %w", err)
	}
	return gs, positions, nil
}

func (s *CorpusStats) fillMeans() error {
	n := len(s.PerGame)
	medians := make([]float64, n)
	p90s := make([]float64, n)
	worsts := make([]float64, n)
	stds := make([]float64, n)
	for i, g := range s.PerGame {
		medians[i] = g.Median()
		p90s[i] = g.P90()
		worsts[i] = g.Worst
		stds[i] = g.AvgStdDev
	}

	var err error
	if s.MeanMedian, err = Mean(medians); err != nil {
		return err
	}
	s.MeanP90, _ = Mean(p90s)
	s.MeanWorst, _ = Mean(worsts)
	s.MeanStdDev, _ = Mean(stds)
	return nil
}
