package models

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/types"
)

func TestStatus(t *testing.T) {
	res := t.TempDir()
	a := NewAsset(res)

	assert.Equal(t, types.ModelNotPresent, a.Status().State)
	assert.Equal(t, filepath.Join(res, "models", DirName), a.Status().Dir)

	require.NoError(t, a.EnsureDir())
	require.NoError(t, os.WriteFile(filepath.Join(a.Dir, "model.onnx"), nil, 0644))
	require.NoError(t, os.WriteFile(filepath.Join(a.Dir, "README.md"), []byte("docs"), 0644))
	assert.Equal(t, types.ModelNotPresent, a.Status().State, "empty model files do not count")

	require.NoError(t, os.WriteFile(filepath.Join(a.Dir, "model.onnx"), []byte("onnx"), 0644))
	st := a.Status()
	assert.Equal(t, types.ModelPresent, st.State)
	assert.Equal(t, []string{filepath.Join(a.Dir, "model.onnx")}, st.Files)
}

func TestStatus_LegacyLocation(t *testing.T) {
	res := t.TempDir()
	a := NewAsset(res)
	require.NoError(t, os.MkdirAll(filepath.Join(res, "models"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(res, "models", "model.onnx"), []byte("onnx"), 0644))

	st := a.Status()
	assert.Equal(t, types.ModelPresent, st.State)
	assert.Equal(t, []string{filepath.Join(res, "models", "model.onnx")}, st.Files)

	p, ok := a.Primary()
	require.True(t, ok)
	assert.Equal(t, a.Legacy, p)
}

func TestPrimaryPrefersModelOnnx(t *testing.T) {
	a := NewAsset(t.TempDir())
	require.NoError(t, a.EnsureDir())
	require.NoError(t, os.WriteFile(filepath.Join(a.Dir, "a.onnx"), []byte("x"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(a.Dir, "model.onnx"), []byte("x"), 0644))

	p, ok := a.Primary()
	require.True(t, ok)
	assert.Equal(t, "model.onnx", filepath.Base(p))
}

func TestVerifyWithoutRuntime(t *testing.T) {
	a := NewAsset(t.TempDir())

	_, err := a.Verify("")
	require.Error(t, err, "no model yet")

	require.NoError(t, a.EnsureDir())
	require.NoError(t, os.WriteFile(filepath.Join(a.Dir, "model.onnx"), []byte("x"), 0644))

	meta, err := a.Verify("")
	assert.True(t, errors.Is(err, ErrRuntimeUnavailable))
	assert.Equal(t, filepath.Join(a.Dir, "model.onnx"), meta.Path)
}
