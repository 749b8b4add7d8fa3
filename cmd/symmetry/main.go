// Command symmetry replays every SGF record under a folder, evaluates a value
// network on the eight symmetries of each position and prints how much the
// values disagree.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/brensch/symcheck/executor/analysis"
	"github.com/brensch/symcheck/executor/inference"
	"github.com/brensch/symcheck/logging"
	"github.com/brensch/symcheck/store"
	"github.com/rs/zerolog/log"
)

type predictor interface {
	analysis.ValuePredictor
	ModelPath() string
	Close() error
}

var openPredictor = func(path string, cfg inference.ValueClientConfig) (predictor, error) {
	c, err := inference.NewValueClient(path, cfg)
	if err != nil {
		return nil, err
	}
	return c, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("symmetry", flag.ContinueOnError)
	fs.SetOutput(stderr)

	sgfFolder := fs.String("sgf-folder", getEnvOrDefault("SGF_FOLDER", ""), "Folder searched recursively for .sgf game records")
	loadFile := fs.String("load-file", getEnvOrDefault("LOAD_FILE", ""), "Trained model: an .onnx file or a directory holding one")
	outDir := fs.String("out-dir", getEnvOrDefault("OUT_DIR", ""), "If set, write per-game and per-position results as parquet here")
	cacheDir := fs.String("cache-dir", getEnvOrDefault("CACHE_DIR", ""), "If set, cache per-game results in this badger directory")
	skipErrors := fs.Bool("skip-errors", getEnvBoolOrDefault("SKIP_ERRORS", false), "Log and skip unreadable or illegal records instead of aborting")
	inputName := fs.String("input-name", getEnvOrDefault("INPUT_NAME", inference.DefaultInputName), "Model input tensor name")
	valueOutput := fs.String("value-output", getEnvOrDefault("VALUE_OUTPUT", inference.DefaultValueOutputName), "Model value output name")
	boardSize := fs.Int("board-size", getEnvIntOrDefault("BOARD_SIZE", inference.DefaultBoardSize), "Board size the model was trained on")
	useCUDA := fs.Bool("cuda", getEnvBoolOrDefault("USE_CUDA", false), "Run the model with the CUDA execution provider")
	logLevel := fs.String("log-level", getEnvOrDefault("LOG_LEVEL", "info"), "debug, info, warn or error")
	logPretty := fs.Bool("log-pretty", getEnvBoolOrDefault("LOG_PRETTY", false), "Human-readable logs instead of JSON")

	if err := fs.Parse(args); err != nil {
		return 2
	}
	if err := logging.Setup(stderr, *logLevel, *logPretty); err != nil {
		fmt.Fprintln(stderr, err)
		return 2
	}
	if *sgfFolder == "" || *loadFile == "" {
		fmt.Fprintln(stderr, "-sgf-folder and -load-file are required")
		fs.Usage()
		return 2
	}

	p, err := openPredictor(*loadFile, inference.ValueClientConfig{
		InputName:       *inputName,
		ValueOutputName: *valueOutput,
		BoardSize:       *boardSize,
		UseCUDA:         *useCUDA,
	})
	if err != nil {
		log.Error().Err(err).Str("model", *loadFile).Msg("failed to load model")
		return 1
	}
	defer p.Close()

	corpus := &analysis.Corpus{Predictor: p, SkipErrors: *skipErrors}

	var digest string
	if *cacheDir != "" || *outDir != "" {
		digest, err = inference.ModelDigest(p.ModelPath())
		if err != nil {
			log.Error().Err(err).Msg("failed to hash model")
			return 1
		}
	}

	if *cacheDir != "" {
		cache, err := store.OpenResultCache(*cacheDir)
		if err != nil {
			log.Error().Err(err).Str("dir", *cacheDir).Msg("failed to open result cache")
			return 1
		}
		defer cache.Close()
		corpus.Cache = cache
		corpus.ModelDigest = digest
	}

	var writer *store.ResultWriter
	if *outDir != "" {
		writer = store.NewResultWriter(*outDir, p.ModelPath(), digest)
		corpus.Sink = writer
	}

	stats, err := corpus.Run(ctx, *sgfFolder)
	if errors.Is(err, analysis.ErrNoData) {
		log.Error().Str("folder", *sgfFolder).Int("skipped", stats.Skipped).Int("failed", stats.Failed).Msg("no data")
		return 1
	}
	if err != nil {
		log.Error().Err(err).Msg("symmetry analysis failed")
		return 1
	}

	if writer != nil {
		paths, err := writer.Flush()
		if err != nil {
			log.Error().Err(err).Msg("failed to write results")
			return 1
		}
		log.Info().Strs("files", paths).Msg("results written")
	}

	if err := analysis.WriteReport(stdout, stats); err != nil {
		log.Error().Err(err).Msg("failed to print report")
		return 1
	}
	return 0
}

func getEnvOrDefault(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvIntOrDefault(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		var i int
		if _, err := fmt.Sscanf(val, "%d", &i); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvBoolOrDefault(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}
