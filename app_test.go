package main

import (
	"bytes"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pdf-translator/internal/config"
	"pdf-translator/internal/models"
	"pdf-translator/internal/python"
	"pdf-translator/internal/types"
)

type shLocator struct{}

func (shLocator) Locate() (python.Candidate, error) {
	return python.Candidate{Path: "/bin/sh", Root: "/", Source: python.SourcePath}, nil
}

// newTestApp returns an app whose worker scripts are run by /bin/sh.
func newTestApp(t *testing.T) (*App, string) {
	t.Helper()
	root := t.TempDir()
	resources := filepath.Join(root, "resources")
	require.NoError(t, os.MkdirAll(resources, 0755))

	launcher := config.Launcher{ResourcesDir: resources, HFEndpoint: config.DefaultMirror}
	return newApp(filepath.Join(root, "userdata"), launcher, shLocator{}), resources
}

func TestNewApp_WiresComponents(t *testing.T) {
	app, resources := newTestApp(t)

	assert.NotNil(t, app.runner)
	assert.NotNil(t, app.errorMgr)
	assert.NotNil(t, app.results)
	assert.Equal(t, resources, app.GetResourcesPath())
	assert.Equal(t, filepath.Join(filepath.Dir(resources), "userdata"), app.GetUserDataPath())
	assert.Empty(t, app.ListFailures())
	assert.Empty(t, app.ListRecent())
}

func TestApp_ConfigRoundTrip(t *testing.T) {
	app, _ := newTestApp(t)

	loaded := app.LoadConfig()
	require.Nil(t, loaded.Failure)
	assert.Equal(t, types.DefaultConfig(), loaded.Config)
	assert.FileExists(t, loaded.Path)

	cfg := loaded.Config
	cfg.Service = types.ServiceDeepSeek
	cfg.Thread = 0
	saved := app.SaveConfig(cfg)
	require.True(t, saved.Saved)
	assert.Equal(t, 4, saved.Config.Thread)

	again := app.LoadConfig()
	assert.Equal(t, types.ServiceDeepSeek, again.Config.Service)
}

func TestApp_LoadConfigCorrupt(t *testing.T) {
	app, _ := newTestApp(t)
	path := app.LoadConfig().Path
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0644))

	res := app.LoadConfig()

	require.NotNil(t, res.Failure)
	assert.Equal(t, types.ConfigLoadError, res.Failure.Kind)
	assert.Equal(t, types.DefaultConfig(), res.Config)
}

func TestApp_DialogsWithoutWindow(t *testing.T) {
	app, _ := newTestApp(t)

	res := app.PickFile(nil)
	require.NotNil(t, res.Failure)
	assert.Equal(t, types.InvalidRequest, res.Failure.Kind)
	assert.False(t, res.Cancelled)

	assert.NotNil(t, app.PickDirectory().Failure)
}

func TestApp_SessionKinds(t *testing.T) {
	app, _ := newTestApp(t)

	assert.False(t, app.IsBusy("conversion"))
	assert.False(t, app.IsBusy("bogus"))
	assert.False(t, app.CancelWorker("bogus"))
	assert.False(t, app.CancelWorker("download"))
}

func TestApp_StartConversion(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake workers need /bin/sh")
	}
	app, resources := newTestApp(t)
	worker := "echo \"Stage: 正在翻译\"\nprintf '%%PDF' > \"$2_译文.pdf\"\nprintf '%%PDF' > \"$2_双语.pdf\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(resources, "main.py"), []byte(worker), 0644))

	input := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(input, []byte("%PDF-1.7"), 0644))
	out := filepath.Join(t.TempDir(), "out")

	var buf bytes.Buffer
	app.SetPrinter(newConsolePrinter(&buf, &buf))
	res := app.StartConversion(input, out)

	require.Nil(t, res.Failure, "%v", res.Failure)
	assert.Equal(t, filepath.Join(out, "paper_双语.pdf"), res.Dual)
	assert.Equal(t, filepath.Join(out, "paper_译文.pdf"), res.Mono)
	assert.Contains(t, buf.String(), "正在翻译")

	recent := app.ListRecent()
	require.Len(t, recent, 1)
	assert.Equal(t, res.Dual, recent[0].DualPDF)
}

func TestApp_FailedConversionIsListed(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake workers need /bin/sh")
	}
	app, resources := newTestApp(t)
	require.NoError(t, os.WriteFile(filepath.Join(resources, "main.py"), []byte("exit 3\n"), 0644))
	input := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(input, []byte("%PDF-1.7"), 0644))

	res := app.StartConversion(input, "")

	require.NotNil(t, res.Failure)
	assert.Equal(t, types.WorkerExited, res.Failure.Kind)
	assert.Equal(t, 3, res.Process.ExitCode)

	failures := app.ListFailures()
	require.Len(t, failures, 1)
	assert.Equal(t, "paper.pdf", failures[0].FileName)

	assert.True(t, app.ClearFailures().OK)
	assert.Empty(t, app.ListFailures())
}

func TestApp_RunWorkerRejectsUnknownScript(t *testing.T) {
	app, _ := newTestApp(t)

	res := app.RunWorker(InvocationSpec{Script: "/usr/bin/env", Args: []string{"sh"}})

	require.NotNil(t, res.Failure)
	assert.Equal(t, types.InvalidRequest, res.Failure.Kind)
}

func TestApp_InspectPDFMissing(t *testing.T) {
	app, _ := newTestApp(t)

	res := app.InspectPDF(filepath.Join(t.TempDir(), "none.pdf"))

	require.NotNil(t, res.Failure)
	assert.Equal(t, types.NotFound, res.Failure.Kind)

	script := filepath.Join(t.TempDir(), "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0755))
	res = app.InspectPDF(script)
	require.NotNil(t, res.Failure)
	assert.Equal(t, types.InvalidRequest, res.Failure.Kind)
}

func TestApp_OpenArtifactRejectsOtherFiles(t *testing.T) {
	app, _ := newTestApp(t)
	app.SetWailsRuntime(true)
	dir := t.TempDir()

	script := filepath.Join(dir, "run.sh")
	require.NoError(t, os.WriteFile(script, []byte("#!/bin/sh\n"), 0755))
	stray := filepath.Join(dir, "other.pdf")
	require.NoError(t, os.WriteFile(stray, []byte("%PDF"), 0644))

	for _, path := range []string{"", script, stray, filepath.Join(dir, "none.pdf")} {
		res := app.OpenArtifact(path)
		require.NotNil(t, res.Failure, path)
		assert.Equal(t, types.InvalidRequest, res.Failure.Kind, path)
		assert.False(t, res.OK)
	}
}

func TestApp_OpenArtifactAcceptsProducedPDFs(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake workers need /bin/sh")
	}
	app, resources := newTestApp(t)
	worker := "printf '%%PDF' > \"$2_译文.pdf\"\nprintf '%%PDF' > \"$2_双语.pdf\"\n"
	require.NoError(t, os.WriteFile(filepath.Join(resources, "main.py"), []byte(worker), 0644))
	input := filepath.Join(t.TempDir(), "paper.pdf")
	require.NoError(t, os.WriteFile(input, []byte("%PDF-1.7"), 0644))

	conv := app.StartConversion(input, "")
	require.Nil(t, conv.Failure)

	// accepted as an artifact; only the missing window stops it here
	res := app.OpenArtifact(conv.Dual)
	require.NotNil(t, res.Failure)
	assert.Equal(t, noWindow().Message, res.Failure.Message)

	require.NoError(t, os.Remove(conv.Mono))
	res = app.OpenArtifact(conv.Mono)
	require.NotNil(t, res.Failure)
	assert.Equal(t, types.NotFound, res.Failure.Kind)

	// artifacts from the history survive a restart
	again := newApp(app.userDataDir, app.launcher, shLocator{})
	res = again.OpenArtifact(conv.Dual)
	require.NotNil(t, res.Failure)
	assert.Equal(t, noWindow().Message, res.Failure.Message)
}

func TestApp_ModelStatusAndVerify(t *testing.T) {
	app, resources := newTestApp(t)

	assert.Equal(t, types.ModelNotPresent, app.GetModelStatus().Status.State)
	res := app.VerifyModel()
	require.NotNil(t, res.Failure)
	assert.Equal(t, types.ArtifactsMissing, res.Failure.Kind)

	dir := filepath.Join(resources, "models", models.DirName)
	require.NoError(t, os.MkdirAll(dir, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "model.onnx"), []byte("onnx"), 0644))

	assert.Equal(t, types.ModelPresent, app.GetModelStatus().Status.State)
	res = app.VerifyModel()
	require.NotNil(t, res.Failure)
	assert.Equal(t, types.RuntimeVerificationFailed, res.Failure.Kind)
	assert.Nil(t, res.Metadata)
}

func TestApp_VerifyServiceWithoutNetwork(t *testing.T) {
	app, _ := newTestApp(t)

	res := app.VerifyService(types.DefaultConfig())
	assert.True(t, res.OK)
	assert.False(t, res.Probed)

	cfg := types.DefaultConfig()
	cfg.Service = types.ServiceAzure
	res = app.VerifyService(cfg)
	require.NotNil(t, res.Failure)
	assert.Equal(t, types.ServiceUnverified, res.Failure.Kind)
}

func TestFileURL(t *testing.T) {
	assert.Equal(t, "file:///home/u/a b.pdf", fileURL("/home/u/a b.pdf"))
}

func TestConsolePrinter(t *testing.T) {
	var out, errOut bytes.Buffer
	p := newConsolePrinter(&out, &errOut)

	p.Progress(types.ProgressEvent{Kind: types.EventStage, Stage: "正在翻译", Value: 60})
	p.Progress(types.ProgressEvent{Kind: types.EventPercentage, Value: 60.2, Current: 1, Total: 10})
	p.Progress(types.ProgressEvent{Kind: types.EventPercentage, Value: 77.5, Current: 5, Total: 10})
	p.Progress(types.ProgressEvent{Kind: types.EventDiagnostic, Text: "noise"})
	p.Progress(types.ProgressEvent{Kind: types.EventError, Text: "Error: boom"})

	assert.Equal(t, "[ 60%] 正在翻译\n[ 78%] 5/10\n", out.String())
	assert.Equal(t, "  ! Error: boom\n", errOut.String())
}
