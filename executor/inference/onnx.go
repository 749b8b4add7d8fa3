package inference

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/brensch/symcheck/executor/convert"
	"github.com/cespare/xxhash/v2"
	"github.com/rs/zerolog/log"
	ort "github.com/yalue/onnxruntime_go"
)

const (
	DefaultInputName       = "input"
	DefaultValueOutputName = "value"
	DefaultBoardSize       = 19
	// DefaultModelFile is looked up first when the model path is a directory.
	DefaultModelFile = "model.onnx"
)

type ValueClientConfig struct {
	InputName       string
	ValueOutputName string
	BoardSize       int
	Channels        int
	UseCUDA         bool
}

func (cfg *ValueClientConfig) setDefaults() {
	if cfg.InputName == "" {
		cfg.InputName = DefaultInputName
	}
	if cfg.ValueOutputName == "" {
		cfg.ValueOutputName = DefaultValueOutputName
	}
	if cfg.BoardSize <= 0 {
		cfg.BoardSize = DefaultBoardSize
	}
	if cfg.Channels <= 0 {
		cfg.Channels = convert.Channels
	}
}

// ValueClient runs the value head of an exported network with ONNX Runtime.
// Calls are synchronous: one PredictValues call is one session run.
type ValueClient struct {
	session   *ort.DynamicAdvancedSession
	cfg       ValueClientConfig
	modelPath string
}

var ortInitOnce sync.Once
var ortInitErr error

// NewValueClient loads the model at modelPath, which is either an .onnx file
// or a directory containing one.
func NewValueClient(modelPath string, cfg ValueClientConfig) (*ValueClient, error) {
	cfg.setDefaults()

	resolved, err := ResolveModelPath(modelPath)
	if err != nil {
		return nil, err
	}

	if err := initEnvironment(); err != nil {
		return nil, err
	}

	options, err := ort.NewSessionOptions()
	if err != nil {
		return nil, err
	}
	defer options.Destroy()

	if cfg.UseCUDA {
		cudaOptions, err := ort.NewCUDAProviderOptions()
		if err == nil {
			defer cudaOptions.Destroy()
			if err := options.AppendExecutionProviderCUDA(cudaOptions); err != nil {
				log.Warn().Err(err).Msg("failed to append CUDA provider, using CPU")
			} else {
				log.Info().Msg("CUDA provider enabled")
			}
		} else {
			log.Warn().Err(err).Msg("failed to create CUDA options, using CPU")
		}
	}

	session, err := ort.NewDynamicAdvancedSession(resolved,
		[]string{cfg.InputName}, []string{cfg.ValueOutputName}, options)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Debug().Str("model", resolved).Str("input", cfg.InputName).Str("output", cfg.ValueOutputName).
		Int("board_size", cfg.BoardSize).Msg("value network loaded")

	return &ValueClient{
		session:   session,
		cfg:       cfg,
		modelPath: resolved,
	}, nil
}

func initEnvironment() error {
	ortInitOnce.Do(func() {
		if runtime.GOOS == "linux" {
			ensureLinuxLibraryPath()
		}
		if p := sharedLibraryPath(); p != "" {
			ort.SetSharedLibraryPath(p)
		}
		ortInitErr = ort.InitializeEnvironment()
	})
	if ortInitErr != nil {
		return fmt.Errorf("failed to init ort: %w", ortInitErr)
	}
	return nil
}

// sharedLibraryPath prefers ORT_SHARED_LIBRARY_PATH, then a runtime library
// sitting in the working directory.
func sharedLibraryPath() string {
	if p := os.Getenv("ORT_SHARED_LIBRARY_PATH"); p != "" {
		return p
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	var candidates []string
	switch runtime.GOOS {
	case "darwin":
		candidates = []string{"libonnxruntime.dylib"}
	case "windows":
		candidates = []string{"onnxruntime.dll"}
	default:
		candidates = []string{"libonnxruntime.so", "libonnxruntime.so.1", "libonnxruntime.so.1.23.2"}
	}
	for _, name := range candidates {
		abs := filepath.Join(cwd, name)
		if _, err := os.Stat(abs); err == nil {
			return abs
		}
	}
	return ""
}

func ensureLinuxLibraryPath() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}

	// CUDA libraries installed by pip into the project's .venv, next to the
	// training code that exported the model.
	candidateDirs := []string{cwd}
	patterns := []string{
		filepath.Join(cwd, ".venv", "lib", "python*", "site-packages", "nvidia", "*", "lib"),
		filepath.Join(cwd, ".venv", "lib", "python*", "site-packages", "onnxruntime", "capi"),
	}
	for _, pat := range patterns {
		matches, _ := filepath.Glob(pat)
		candidateDirs = append(candidateDirs, matches...)
	}

	existing := os.Getenv("LD_LIBRARY_PATH")
	existingSet := map[string]bool{}
	for _, p := range strings.Split(existing, ":") {
		if p != "" {
			existingSet[p] = true
		}
	}

	toAdd := make([]string, 0, len(candidateDirs))
	for _, d := range candidateDirs {
		if existingSet[d] {
			continue
		}
		if st, err := os.Stat(d); err == nil && st.IsDir() {
			toAdd = append(toAdd, d)
		}
	}
	if len(toAdd) == 0 {
		return
	}

	newVal := strings.Join(toAdd, ":")
	if existing != "" {
		newVal = newVal + ":" + existing
	}
	_ = os.Setenv("LD_LIBRARY_PATH", newVal)
}

// ResolveModelPath accepts an .onnx file, or a directory holding model.onnx
// or exactly one .onnx file.
func ResolveModelPath(path string) (string, error) {
	st, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("model path: %w", err)
	}
	if !st.IsDir() {
		return path, nil
	}

	def := filepath.Join(path, DefaultModelFile)
	if _, err := os.Stat(def); err == nil {
		return def, nil
	}

	matches, err := filepath.Glob(filepath.Join(path, "*.onnx"))
	if err != nil {
		return "", err
	}
	sort.Strings(matches)
	switch len(matches) {
	case 0:
		return "", fmt.Errorf("model dir %s: no .onnx file found", path)
	case 1:
		return matches[0], nil
	}
	return "", fmt.Errorf("model dir %s: %d .onnx files found (%s), pass one explicitly",
		path, len(matches), strings.Join(matches, ", "))
}

// ModelDigest hashes the model file's bytes so cached results can be tied to
// the exact weights that produced them.
func ModelDigest(path string) (string, error) {
	resolved, err := ResolveModelPath(path)
	if err != nil {
		return "", err
	}
	f, err := os.Open(resolved)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("hash model: %w", err)
	}
	return fmt.Sprintf("%016x", h.Sum64()), nil
}

func (c *ValueClient) ModelPath() string { return c.modelPath }

func (c *ValueClient) Close() error {
	return c.session.Destroy()
}

// PredictValues evaluates every tensor in one batch and returns one value per
// tensor, in input order.
func (c *ValueClient) PredictValues(batch []convert.Tensor) ([]float32, error) {
	if len(batch) == 0 {
		return nil, nil
	}

	n := c.cfg.BoardSize
	per := c.cfg.Channels * n * n
	input := make([]float32, 0, len(batch)*per)
	for i, t := range batch {
		if t.Channels != c.cfg.Channels || t.Height != n || t.Width != n {
			return nil, fmt.Errorf("batch[%d] has shape %s, model expects [%d %d %d]", i, t.Shape(), c.cfg.Channels, n, n)
		}
		input = append(input, t.Data...)
	}

	inputShape := ort.NewShape(int64(len(batch)), int64(c.cfg.Channels), int64(n), int64(n))
	inputTensor, err := ort.NewTensor(inputShape, input)
	if err != nil {
		return nil, fmt.Errorf("create input tensor: %w", err)
	}
	defer inputTensor.Destroy()

	// A nil output lets onnxruntime allocate it, which accepts both [B] and
	// [B, 1] value heads.
	outputs := []ort.Value{nil}
	if err := c.session.Run([]ort.Value{inputTensor}, outputs); err != nil {
		return nil, fmt.Errorf("run session: %w", err)
	}
	defer outputs[0].Destroy()

	valueTensor, ok := outputs[0].(*ort.Tensor[float32])
	if !ok {
		return nil, fmt.Errorf("value output %q is %T, want a float32 tensor", c.cfg.ValueOutputName, outputs[0])
	}
	return copyValues(valueTensor.GetData(), len(batch))
}

func copyValues(data []float32, want int) ([]float32, error) {
	if len(data) != want {
		return nil, fmt.Errorf("value output has %d elements for a batch of %d", len(data), want)
	}
	out := make([]float32, want)
	copy(out, data)
	return out, nil
}
