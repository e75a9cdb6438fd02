package models

import (
	"errors"
	"fmt"
	"sync"

	ort "github.com/yalue/onnxruntime_go"

	"pdf-translator/internal/logger"
)

// ErrRuntimeUnavailable is returned by Verify when no onnxruntime shared
// library is configured.
var ErrRuntimeUnavailable = errors.New("onnxruntime library not configured")

// Tensor describes one model input or output.
type Tensor struct {
	Name  string `json:"name"`
	Shape string `json:"shape"`
	Type  string `json:"type"`
}

// Metadata is what onnxruntime reports about a model file.
type Metadata struct {
	Path    string   `json:"path"`
	Inputs  []Tensor `json:"inputs"`
	Outputs []Tensor `json:"outputs"`
}

var (
	ortMu      sync.Mutex
	ortLibPath string
)

// initRuntime loads the onnxruntime library once per process. A different
// library path after the first successful load is rejected.
func initRuntime(libPath string) error {
	ortMu.Lock()
	defer ortMu.Unlock()

	if ort.IsInitialized() {
		if libPath != ortLibPath {
			return fmt.Errorf("onnxruntime already loaded from %s", ortLibPath)
		}
		return nil
	}
	ort.SetSharedLibraryPath(libPath)
	if err := ort.InitializeEnvironment(); err != nil {
		return fmt.Errorf("failed to initialize onnxruntime: %w", err)
	}
	ortLibPath = libPath
	logger.Info("onnxruntime initialized", logger.String("library", libPath))
	return nil
}

// Verify opens the primary model with onnxruntime and returns its input and
// output signature. It catches truncated downloads that a size check
// misses.
func (a *Asset) Verify(libPath string) (Metadata, error) {
	path, ok := a.Primary()
	if !ok {
		return Metadata{}, fmt.Errorf("no model file in %s", a.Dir)
	}
	if libPath == "" {
		return Metadata{Path: path}, ErrRuntimeUnavailable
	}
	if err := initRuntime(libPath); err != nil {
		return Metadata{Path: path}, err
	}

	inputs, outputs, err := ort.GetInputOutputInfo(path)
	if err != nil {
		logger.Warn("model verification failed", logger.String("path", path), logger.Err(err))
		return Metadata{Path: path}, fmt.Errorf("failed to read model %s: %w", path, err)
	}

	meta := Metadata{Path: path}
	for _, in := range inputs {
		meta.Inputs = append(meta.Inputs, tensorOf(in))
	}
	for _, out := range outputs {
		meta.Outputs = append(meta.Outputs, tensorOf(out))
	}
	logger.Info("model verified",
		logger.String("path", path),
		logger.Int("inputs", len(meta.Inputs)),
		logger.Int("outputs", len(meta.Outputs)))
	return meta, nil
}

func tensorOf(info ort.InputOutputInfo) Tensor {
	return Tensor{
		Name:  info.Name,
		Shape: info.Dimensions.String(),
		Type:  fmt.Sprint(info.DataType),
	}
}
