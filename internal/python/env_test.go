package python

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvironment_BundledRuntime(t *testing.T) {
	root := t.TempDir()
	for _, v := range []string{"python3.9", "python3.12", "python3.10"} {
		require.NoError(t, os.MkdirAll(filepath.Join(root, "lib", v, "site-packages"), 0755))
	}
	c := Candidate{Path: filepath.Join(root, "bin", "python3"), Root: root, Bundled: true, Source: SourceBundled}

	env := environment(c, []string{"HOME=/home/u", "PATH=/usr/bin:/bin"}, "https://hf-mirror.com", "linux")

	assert.Equal(t, root, env["PYTHONHOME"])
	assert.Equal(t, filepath.Join(root, "lib", "python3.12", "site-packages"), env["PYTHONPATH"])
	assert.Equal(t, filepath.Join(root, "bin")+":/usr/bin:/bin", env["PATH"])
	assert.Equal(t, "https://hf-mirror.com", env["HF_ENDPOINT"])
	assert.Equal(t, "utf-8", env["PYTHONIOENCODING"])
	assert.Equal(t, "1", env["PYTHONUNBUFFERED"])
}

func TestEnvironment_SystemPythonIsLeftAlone(t *testing.T) {
	c := Candidate{Path: "/usr/bin/python3", Root: "/usr", Source: SourcePath}

	env := environment(c, []string{"PATH=/usr/bin"}, "", "linux")

	assert.NotContains(t, env, "PYTHONHOME")
	assert.NotContains(t, env, "PYTHONPATH")
	assert.NotContains(t, env, "PATH")
	assert.NotContains(t, env, "HF_ENDPOINT")
}

func TestEnvironment_VenvPrependsScriptsOnWindows(t *testing.T) {
	c := Candidate{Path: `C:\data\.venv\Scripts\python.exe`, Root: `C:\data\.venv`, Source: SourceVenv}

	env := environment(c, []string{`Path=C:\Windows`}, "", "windows")

	assert.Equal(t, filepath.Dir(c.Path)+`;C:\Windows`, env["PATH"])
	assert.NotContains(t, env, "PYTHONHOME")
}

func TestMergeEnv(t *testing.T) {
	base := []string{"HOME=/home/u", "PATH=/bin", "LANG=C"}

	got := mergeEnv(base, map[string]string{"PATH": "/rt/bin:/bin", "PYTHONHOME": "/rt", "HF_ENDPOINT": "m"}, "linux")

	assert.Equal(t, []string{"HOME=/home/u", "PATH=/rt/bin:/bin", "LANG=C", "HF_ENDPOINT=m", "PYTHONHOME=/rt"}, got)
}

func TestMergeEnv_CaseInsensitiveOnWindows(t *testing.T) {
	got := mergeEnv([]string{`Path=C:\Windows`}, map[string]string{"PATH": `C:\rt;C:\Windows`}, "windows")
	assert.Equal(t, []string{`Path=C:\rt;C:\Windows`}, got)

	got = mergeEnv([]string{"Path=/bin"}, map[string]string{"PATH": "/x"}, "linux")
	assert.Equal(t, []string{"Path=/bin", "PATH=/x"}, got)
}

func TestLookupEnv(t *testing.T) {
	env := []string{"A=1", "a=2", "B=3"}

	v, ok := LookupEnv(env, "A", "linux")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	v, ok = LookupEnv(env, "A", "windows")
	assert.True(t, ok)
	assert.Equal(t, "2", v)

	_, ok = LookupEnv(env, "C", "linux")
	assert.False(t, ok)
}
