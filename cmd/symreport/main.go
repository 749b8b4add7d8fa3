// Command symreport summarizes parquet results exported by symmetry runs,
// one line per model, and optionally lists a model's least consistent
// positions.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/brensch/symcheck/logging"
	"github.com/brensch/symcheck/store"
	"github.com/rs/zerolog/log"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("symreport", flag.ContinueOnError)
	fs.SetOutput(stderr)

	results := fs.String("results", getEnvOrDefault("RESULTS", ""), "Comma-separated result directories written by symmetry -out-dir")
	worst := fs.Int("worst", 0, "If > 0, also list this many highest-spread positions per model")
	logLevel := fs.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := logging.Setup(stderr, *logLevel, false); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	roots := splitRoots(*results)
	if len(roots) == 0 {
		fmt.Fprintln(stderr, "-results is required")
		fs.Usage()
		return 2
	}

	sums, err := store.SummarizeRuns(ctx, roots)
	if err != nil {
		log.Error().Err(err).Strs("roots", roots).Msg("failed to summarize results")
		return 1
	}

	fmt.Fprintf(stdout, "%-16s  %6s  %7s  %7s  %7s  %7s  %s\n", "digest", "games", "median", "p90", "worst", "stddev", "model")
	for _, s := range sums {
		fmt.Fprintf(stdout, "%-16s  %6d  %7.3f  %7.3f  %7.3f  %7.3f  %s\n",
			s.ModelDigest, s.Games, s.MeanMedian, s.MeanP90, s.MeanWorst, s.MeanStdDev, s.Model)
	}

	if *worst > 0 {
		for _, s := range sums {
			rows, err := store.WorstPositions(ctx, roots, s.ModelDigest, *worst)
			if err != nil {
				log.Error().Err(err).Str("digest", s.ModelDigest).Msg("failed to list positions")
				return 1
			}
			fmt.Fprintf(stdout, "\n%s\n", s.ModelDigest)
			for _, r := range rows {
				fmt.Fprintf(stdout, "  %7.3f  %7.3f  move %4d %s  %s\n", r.Spread, r.StdDev, r.MoveNumber, r.Color, r.Path)
			}
		}
	}
	return 0
}

func splitRoots(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}
