package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	_ "github.com/duckdb/duckdb-go/v2"
	"github.com/rs/zerolog/log"
)

// ErrNoPositionRows is returned when no positions_*.parquet file exists
// under the result roots, e.g. when every run was served from the cache.
var ErrNoPositionRows = errors.New("no position exports")

// RunSummary aggregates every exported game row of one model.
type RunSummary struct {
	Model       string
	ModelDigest string
	Games       int64
	MeanMedian  float64
	MeanP90     float64
	MeanWorst   float64
	MeanStdDev  float64
}

// OpenResults opens an in-memory DuckDB with a `games` view over every
// games_*.parquet file below roots and, when present, a `positions` view over
// positions_*.parquet.
func OpenResults(roots []string) (*sql.DB, error) {
	db, _, err := openResults(roots)
	return db, err
}

func openResults(roots []string) (*sql.DB, bool, error) {
	gameGlobs := globs(roots, GamesPrefix)
	if len(gameGlobs) == 0 {
		return nil, false, errors.New("no result roots given")
	}

	db, err := sql.Open("duckdb", ":memory:")
	if err != nil {
		return nil, false, err
	}
	// Basic pragmas; ignore errors for compatibility across versions.
	_, _ = db.Exec("PRAGMA threads=4")

	sqlText := `CREATE OR REPLACE VIEW games AS
		SELECT * FROM read_parquet([` + strings.Join(gameGlobs, ",") + `], filename=true, union_by_name=true)`
	if _, err := db.Exec(sqlText); err != nil {
		_ = db.Close()
		return nil, false, fmt.Errorf("create games view: %w", err)
	}

	// Runs served entirely from the cache write no position files.
	posText := `CREATE OR REPLACE VIEW positions AS
		SELECT * FROM read_parquet([` + strings.Join(globs(roots, PositionsPrefix), ",") + `], filename=true, union_by_name=true)`
	hasPositions := true
	if _, err := db.Exec(posText); err != nil {
		log.Debug().Err(err).Strs("roots", roots).Msg("no positions view")
		hasPositions = false
	}

	return db, hasPositions, nil
}

func globs(roots []string, prefix string) []string {
	out := make([]string, 0, len(roots))
	for _, root := range roots {
		root = strings.TrimSpace(root)
		if root == "" {
			continue
		}
		glob := filepath.Join(root, "**", prefix+"*.parquet")
		out = append(out, "'"+escapeSQLString(glob)+"'")
	}
	return out
}

func escapeSQLString(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// SummarizeRuns returns the four corpus means per model over all exported
// game rows under roots, ordered by model.
func SummarizeRuns(ctx context.Context, roots []string) ([]RunSummary, error) {
	db, err := OpenResults(roots)
	if err != nil {
		return nil, err
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, `
		SELECT
			model,
			model_digest,
			count(*) AS games,
			avg(median) AS mean_median,
			avg(p90) AS mean_p90,
			avg(worst) AS mean_worst,
			avg(avg_stddev) AS mean_stddev
		FROM games
		GROUP BY model, model_digest
		ORDER BY model, model_digest`)
	if err != nil {
		return nil, fmt.Errorf("query games: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.Model, &s.ModelDigest, &s.Games, &s.MeanMedian, &s.MeanP90, &s.MeanWorst, &s.MeanStdDev); err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// WorstPositions lists the positions with the largest spread for one model
// digest, most inconsistent first.
func WorstPositions(ctx context.Context, roots []string, modelDigest string, limit int) ([]PositionRow, error) {
	db, hasPositions, err := openResults(roots)
	if err != nil {
		return nil, err
	}
	defer db.Close()
	if !hasPositions {
		return nil, fmt.Errorf("%w under %s", ErrNoPositionRows, strings.Join(roots, ", "))
	}

	rows, err := db.QueryContext(ctx, `
		SELECT path, model_digest, move_number, color, spread, stddev
		FROM positions
		WHERE model_digest = ?
		ORDER BY spread DESC, path, move_number
		LIMIT ?`, modelDigest, limit)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []PositionRow
	for rows.Next() {
		var r PositionRow
		if err := rows.Scan(&r.Path, &r.ModelDigest, &r.MoveNumber, &r.Color, &r.Spread, &r.StdDev); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
