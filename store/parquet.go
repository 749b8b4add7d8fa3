// Package store persists symmetry analysis results: parquet exports per run,
// a badger cache of per-game summaries, and duckdb queries across runs.
package store

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/brensch/symcheck/executor/analysis"
	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

const (
	GameSchema     = "symmetry_game_v1"
	PositionSchema = "symmetry_position_v1"

	GamesPrefix     = "games_"
	PositionsPrefix = "positions_"
)

// GameRow is one analyzed game record.
//
// Percentiles holds all 100 nearest-rank percentiles of the position
// spreads; Median and P90 are copies of entries 50 and 90 for easy querying.
type GameRow struct {
	Path        string    `parquet:"path"`
	Model       string    `parquet:"model,dict"`
	ModelDigest string    `parquet:"model_digest,dict"`
	Positions   int32     `parquet:"positions"`
	Median      float64   `parquet:"median"`
	P90         float64   `parquet:"p90"`
	Worst       float64   `parquet:"worst"`
	AvgStdDev   float64   `parquet:"avg_stddev"`
	Percentiles []float64 `parquet:"percentiles"`
	// Cached is set when the summary came from the result cache, in which
	// case no PositionRows were written for the game.
	Cached bool `parquet:"cached"`
}

// PositionRow is one evaluated position. Values are in symmetry order:
// identity, rot90, rot180, rot270, flip, fliprot90, fliprot180, fliprot270.
type PositionRow struct {
	Path        string    `parquet:"path,dict"`
	ModelDigest string    `parquet:"model_digest,dict"`
	MoveNumber  int32     `parquet:"move_number"`
	Color       string    `parquet:"color,dict"`
	Spread      float64   `parquet:"spread"`
	StdDev      float64   `parquet:"stddev"`
	Values      []float64 `parquet:"values"`
}

func NewGameRow(model, digest string, gs analysis.GameStats, cached bool) GameRow {
	return GameRow{
		Path:        gs.Path,
		Model:       model,
		ModelDigest: digest,
		Positions:   int32(gs.Positions),
		Median:      gs.Median(),
		P90:         gs.P90(),
		Worst:       gs.Worst,
		AvgStdDev:   gs.AvgStdDev,
		Percentiles: append([]float64(nil), gs.Percentiles[:]...),
		Cached:      cached,
	}
}

func NewPositionRow(path, digest string, p analysis.PositionResult) PositionRow {
	return PositionRow{
		Path:        path,
		ModelDigest: digest,
		MoveNumber:  int32(p.MoveNumber),
		Color:       p.Color.String(),
		Spread:      p.Stats.Spread,
		StdDev:      p.Stats.StdDev,
		Values:      append([]float64(nil), p.Stats.Values[:]...),
	}
}

// WriteGameRows writes rows to outPath via a temp file and rename.
func WriteGameRows(outPath string, rows []GameRow) error {
	return writeParquet(outPath, rows, GameSchema)
}

// WritePositionRows writes rows to outPath via a temp file and rename.
func WritePositionRows(outPath string, rows []PositionRow) error {
	return writeParquet(outPath, rows, PositionSchema)
}

func writeParquet[T any](outPath string, rows []T, schema string) error {
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	// Write to a temp file and rename atomically.
	tmpPath := outPath + ".tmp"
	_ = os.Remove(tmpPath)

	if err := parquet.WriteFile(tmpPath, rows,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedBetterCompression}),
		parquet.KeyValueMetadata("schema", schema),
	); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("write parquet: %w", err)
	}

	if err := os.Rename(tmpPath, outPath); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename parquet: %w", err)
	}
	return nil
}

func ReadGameRows(path string) ([]GameRow, error) {
	return readParquet[GameRow](path)
}

func ReadPositionRows(path string) ([]PositionRow, error) {
	return readParquet[PositionRow](path)
}

func readParquet[T any](path string) ([]T, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	stat, err := f.Stat()
	if err != nil {
		return nil, err
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		return nil, fmt.Errorf("open parquet %s: %w", path, err)
	}

	reader := parquet.NewGenericReader[T](pf)
	defer reader.Close()

	rows := make([]T, 0, int(reader.NumRows()))
	buf := make([]T, 256)
	for {
		n, err := reader.Read(buf)
		if n > 0 {
			rows = append(rows, buf[:n]...)
		}
		if errors.Is(err, io.EOF) {
			return rows, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet %s: %w", path, err)
		}
	}
}

// ResultWriter buffers a run's results and writes them as one pair of
// parquet files. It implements analysis.Sink.
type ResultWriter struct {
	outDir      string
	model       string
	modelDigest string

	games     []GameRow
	positions []PositionRow
}

func NewResultWriter(outDir, model, modelDigest string) *ResultWriter {
	return &ResultWriter{outDir: outDir, model: model, modelDigest: modelDigest}
}

func (w *ResultWriter) AddGame(stats analysis.GameStats, positions []analysis.PositionResult) error {
	w.games = append(w.games, NewGameRow(w.model, w.modelDigest, stats, positions == nil))
	for _, p := range positions {
		w.positions = append(w.positions, NewPositionRow(stats.Path, w.modelDigest, p))
	}
	return nil
}

// Flush writes games_<ts>.parquet and, when any positions were recorded,
// positions_<ts>.parquet into the output dir.
func (w *ResultWriter) Flush() ([]string, error) {
	if len(w.games) == 0 {
		return nil, nil
	}

	stamp := time.Now().UnixNano()
	var written []string

	gamesPath := filepath.Join(w.outDir, fmt.Sprintf("%s%d.parquet", GamesPrefix, stamp))
	if err := WriteGameRows(gamesPath, w.games); err != nil {
		return written, err
	}
	written = append(written, gamesPath)

	if len(w.positions) > 0 {
		posPath := filepath.Join(w.outDir, fmt.Sprintf("%s%d.parquet", PositionsPrefix, stamp))
		if err := WritePositionRows(posPath, w.positions); err != nil {
			return written, err
		}
		written = append(written, posPath)
	}

	w.games = nil
	w.positions = nil
	return written, nil
}
