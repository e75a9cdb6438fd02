// Package models tracks the layout-detection model the worker needs before
// it can convert a document, and inspects it with onnxruntime when the
// shared library is available.
package models

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"pdf-translator/internal/types"
)

const (
	// DirName is the model directory inside <resources>/models.
	DirName = "DocLayout-YOLO-DocStructBench-onnx"
	// DownloadScript fetches the model into the directory given as its only
	// argument. Older scripts ignore the argument and write
	// models/model.onnx under their working directory, which is the
	// resources directory.
	DownloadScript = "download_model.py"
)

// Asset is the on-disk location of the layout model.
type Asset struct {
	Dir string
	// Legacy is the single-file location used by older download scripts.
	Legacy string
	// Extensions lists accepted model file extensions.
	Extensions []string
}

// NewAsset returns the asset under <resourcesDir>/models.
func NewAsset(resourcesDir string) *Asset {
	return &Asset{
		Dir:        filepath.Join(resourcesDir, "models", DirName),
		Legacy:     filepath.Join(resourcesDir, "models", "model.onnx"),
		Extensions: []string{".onnx"},
	}
}

// Status reports whether a non-empty model file is present.
func (a *Asset) Status() types.ModelStatus {
	files := a.Files()
	if len(files) == 0 {
		return types.ModelStatus{State: types.ModelNotPresent, Dir: a.Dir}
	}
	return types.ModelStatus{State: types.ModelPresent, Dir: a.Dir, Files: files}
}

// Files lists the model files in the directory, sorted, falling back to
// the legacy file.
func (a *Asset) Files() []string {
	entries, err := os.ReadDir(a.Dir)
	if err != nil {
		return nil
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() || !a.accepts(e.Name()) {
			continue
		}
		info, err := e.Info()
		if err != nil || info.Size() == 0 {
			continue
		}
		files = append(files, filepath.Join(a.Dir, e.Name()))
	}
	sort.Strings(files)
	if len(files) == 0 && a.Legacy != "" {
		if info, err := os.Stat(a.Legacy); err == nil && !info.IsDir() && info.Size() > 0 {
			files = append(files, a.Legacy)
		}
	}
	return files
}

func (a *Asset) accepts(name string) bool {
	ext := strings.ToLower(filepath.Ext(name))
	for _, want := range a.Extensions {
		if ext == want {
			return true
		}
	}
	return false
}

// EnsureDir creates the model directory so a download has somewhere to
// write.
func (a *Asset) EnsureDir() error {
	if err := os.MkdirAll(a.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create model directory: %w", err)
	}
	return nil
}

// Primary returns the model file the worker loads: model.onnx when present,
// otherwise the first file found.
func (a *Asset) Primary() (string, bool) {
	files := a.Files()
	if len(files) == 0 {
		return "", false
	}
	for _, f := range files {
		if filepath.Base(f) == "model.onnx" {
			return f, true
		}
	}
	return files[0], true
}
