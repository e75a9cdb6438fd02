package main

import (
	"context"
	goerrors "errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pdf-translator/internal/config"
	"pdf-translator/internal/conversion"
	"pdf-translator/internal/errors"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/models"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/python"
	"pdf-translator/internal/results"
	"pdf-translator/internal/services"
	"pdf-translator/internal/supervisor"
	"pdf-translator/internal/types"

	"github.com/wailsapp/wails/v2/pkg/runtime"
)

// Event names for frontend communication
const (
	EventWorkerOutput    = "worker-output"
	EventWorkerProgress  = "worker-progress"
	EventSessionFinished = "session-finished"
)

// OutputLine is the payload of EventWorkerOutput.
type OutputLine struct {
	SessionID string       `json:"session_id"`
	Stream    types.Stream `json:"stream"`
	Line      string       `json:"line"`
}

// PathResult is returned by the file and directory pickers.
type PathResult struct {
	Path      string         `json:"path"`
	Cancelled bool           `json:"cancelled"`
	Failure   *types.Failure `json:"failure,omitempty"`
}

// InvocationSpec is what the UI may ask to run: a known script and its
// arguments. Runtime, script path and environment are chosen here.
type InvocationSpec struct {
	Script string   `json:"script"`
	Args   []string `json:"args"`
}

// ConfigResult is returned by LoadConfig.
type ConfigResult struct {
	Config  types.Config   `json:"config"`
	Path    string         `json:"path"`
	Failure *types.Failure `json:"failure,omitempty"`
}

// SaveResult is returned by SaveConfig.
type SaveResult struct {
	Saved   bool           `json:"saved"`
	Config  types.Config   `json:"config"`
	Failure *types.Failure `json:"failure,omitempty"`
}

// PDFInfoResult is returned by InspectPDF.
type PDFInfoResult struct {
	Info    pdf.Info       `json:"info"`
	Failure *types.Failure `json:"failure,omitempty"`
}

// ModelResult is returned by GetModelStatus and VerifyModel.
type ModelResult struct {
	Status   types.ModelStatus `json:"status"`
	Metadata *models.Metadata  `json:"metadata,omitempty"`
	Failure  *types.Failure    `json:"failure,omitempty"`
}

// ActionResult is returned by bound methods that have nothing else to say.
type ActionResult struct {
	OK      bool           `json:"ok"`
	Failure *types.Failure `json:"failure,omitempty"`
}

// App is the main Wails application controller. Every bound method returns
// data; failures travel in a Failure field instead of a Go error.
type App struct {
	ctx         context.Context
	launcher    config.Launcher
	userDataDir string

	config    *config.ConfigManager
	runner    *conversion.Runner
	inspector *pdf.Inspector
	prober    *services.Prober
	results   *results.ResultManager
	errorMgr  *errors.ErrorManager

	// printer receives worker output when there is no window, as in CLI mode
	printer conversion.Sink

	// produced holds the artifacts of conversions run in this session; with
	// the history they are the only files OpenArtifact will open
	mu       sync.Mutex
	produced map[string]bool

	// isWailsRuntime indicates if the app is running in a Wails environment
	// This is used to safely skip EventsEmit calls during tests
	isWailsRuntime bool
}

// NewApp creates the application with a runtime located from launcher.
func NewApp(userDataDir string, launcher config.Launcher) *App {
	target := python.DetectTarget(launcher.Mode, launcher.ResourcesDir, launcher.PythonPath)
	logger.Info("runtime target",
		logger.String("mode", string(target.Mode)),
		logger.String("resources", target.ResourcesDir),
		logger.String("os", target.GOOS),
		logger.String("arch", target.GOARCH))
	launcher.ResourcesDir = target.ResourcesDir
	return newApp(userDataDir, launcher, python.NewLocator(target))
}

func newApp(userDataDir string, launcher config.Launcher, locator conversion.RuntimeLocator) *App {
	a := &App{
		launcher:    launcher,
		userDataDir: userDataDir,
		config:      config.NewConfigManager(userDataDir),
		inspector:   pdf.NewInspector(),
		prober:      services.NewProber(),
		produced:    make(map[string]bool),
	}

	opts := supervisor.DefaultOptions()
	if !launcher.ProbeRuntime {
		opts.ProbeArgs = nil
	}
	opts.Timeout = launcher.WorkerTimeout

	a.runner = conversion.NewRunner(conversion.Options{
		ResourcesDir:      launcher.ResourcesDir,
		Mirror:            launcher.HFEndpoint,
		ValidateArtifacts: true,
		CheckService:      true,
	}, locator, supervisor.New(opts), a.config)

	if em, err := errors.NewErrorManager(filepath.Join(userDataDir, "errors")); err != nil {
		logger.Warn("failure journal unavailable", logger.Err(err))
	} else {
		a.errorMgr = em
		a.runner.WithJournal(em)
	}
	if rm, err := results.NewResultManager(userDataDir, results.DefaultLimit); err != nil {
		logger.Warn("conversion history unavailable", logger.Err(err))
	} else {
		a.results = rm
		a.runner.WithHistory(rm)
	}
	return a
}

// safeEmit safely emits an event to the frontend.
// It only emits events when running in a Wails environment.
func (a *App) safeEmit(eventName string, data ...interface{}) {
	if !a.isWailsRuntime {
		logger.Debug("event emit skipped (not in Wails runtime)",
			logger.String("event", eventName))
		return
	}
	runtime.EventsEmit(a.ctx, eventName, data...)
}

// SetWailsRuntime sets the Wails runtime flag.
// This should be called from main.go when the app is started in Wails mode.
func (a *App) SetWailsRuntime(isWails bool) {
	a.isWailsRuntime = isWails
}

// SetPrinter forwards worker output to p in addition to the frontend.
func (a *App) SetPrinter(p conversion.Sink) {
	a.printer = p
}

// startup is called when the app starts. The context is saved so we can
// call the runtime methods.
func (a *App) startup(ctx context.Context) {
	a.ctx = ctx
	logger.Info("application starting up",
		logger.String("user_data", a.userDataDir),
		logger.String("resources", a.launcher.ResourcesDir))

	if _, err := a.config.Load(); err != nil {
		logger.Warn("starting with default configuration", logger.Err(err))
	}
	if a.results != nil {
		if n, err := a.results.Prune(); err != nil {
			logger.Warn("failed to prune conversion history", logger.Err(err))
		} else if n > 0 {
			logger.Info("pruned conversion history", logger.Int("removed", n))
		}
	}
}

// shutdown stops running workers.
func (a *App) shutdown(ctx context.Context) {
	for _, kind := range []types.SessionKind{types.SessionConversion, types.SessionDownload} {
		if a.runner.Supervisor().Cancel(kind) {
			logger.Info("cancelled worker on shutdown", logger.String("session", string(kind)))
		}
	}
	logger.Info("application shut down")
}

func (a *App) context() context.Context {
	if a.ctx == nil {
		return context.Background()
	}
	return a.ctx
}

// emitter forwards worker output to the frontend and the printer.
type emitter struct{ a *App }

func (e emitter) Output(sessionID string, stream types.Stream, line string) {
	e.a.safeEmit(EventWorkerOutput, OutputLine{SessionID: sessionID, Stream: stream, Line: line})
	if e.a.printer != nil {
		e.a.printer.Output(sessionID, stream, line)
	}
}

func (e emitter) Progress(ev types.ProgressEvent) {
	e.a.safeEmit(EventWorkerProgress, ev)
	if e.a.printer != nil {
		e.a.printer.Progress(ev)
	}
}

func (a *App) finished(result types.ProcessResult) {
	a.safeEmit(EventSessionFinished, result)
}

func noWindow() *types.Failure {
	return types.NewFailure(types.InvalidRequest, "no window is attached")
}

// PickFile shows an open-file dialog. With no filters PDF files are offered.
func (a *App) PickFile(filters []types.FileFilter) PathResult {
	if !a.isWailsRuntime {
		return PathResult{Failure: noWindow()}
	}
	if len(filters) == 0 {
		filters = []types.FileFilter{
			{DisplayName: "PDF 文件 (*.pdf)", Pattern: "*.pdf"},
			{DisplayName: "所有文件 (*.*)", Pattern: "*.*"},
		}
	}
	wf := make([]runtime.FileFilter, len(filters))
	for i, f := range filters {
		wf[i] = runtime.FileFilter{DisplayName: f.DisplayName, Pattern: f.Pattern}
	}

	selection, err := runtime.OpenFileDialog(a.ctx, runtime.OpenDialogOptions{
		Title:   "选择 PDF 文件",
		Filters: wf,
	})
	if err != nil {
		logger.Error("file dialog error", err)
		return PathResult{Failure: types.WrapFailure(types.InvalidRequest, "file dialog failed", err)}
	}
	if selection == "" {
		return PathResult{Cancelled: true}
	}
	logger.Debug("file selected", logger.String("path", selection))
	return PathResult{Path: selection}
}

// PickDirectory shows a directory dialog.
func (a *App) PickDirectory() PathResult {
	if !a.isWailsRuntime {
		return PathResult{Failure: noWindow()}
	}
	selection, err := runtime.OpenDirectoryDialog(a.ctx, runtime.OpenDialogOptions{
		Title: "选择输出目录",
	})
	if err != nil {
		logger.Error("directory dialog error", err)
		return PathResult{Failure: types.WrapFailure(types.InvalidRequest, "directory dialog failed", err)}
	}
	if selection == "" {
		return PathResult{Cancelled: true}
	}
	return PathResult{Path: selection}
}

// RunWorker runs one of the known worker scripts, streaming its output as
// events.
func (a *App) RunWorker(spec InvocationSpec) types.ProcessResult {
	result := a.runner.RunWorker(a.context(), spec.Script, spec.Args, emitter{a})
	a.finished(result)
	return result
}

// GetUserDataPath returns the per-user data directory.
func (a *App) GetUserDataPath() string {
	return a.userDataDir
}

// GetResourcesPath returns the directory holding scripts and models.
func (a *App) GetResourcesPath() string {
	return a.runner.ResourcesDir()
}

// StartConversion translates inputPath. outputDir may be empty.
func (a *App) StartConversion(inputPath, outputDir string) conversion.Result {
	res := a.runner.Convert(a.context(), conversion.Request{Input: inputPath, OutputDir: outputDir}, emitter{a})
	a.mu.Lock()
	for _, art := range res.Artifacts {
		a.produced[filepath.Clean(art.Path)] = true
	}
	a.mu.Unlock()
	a.finished(res.Process)
	return res
}

// CancelWorker stops the worker of the given session kind.
func (a *App) CancelWorker(kind string) bool {
	k := types.SessionKind(kind)
	if !k.Valid() {
		return false
	}
	return a.runner.Supervisor().Cancel(k)
}

// IsBusy reports whether a worker of the given session kind is running.
func (a *App) IsBusy(kind string) bool {
	k := types.SessionKind(kind)
	return k.Valid() && a.runner.Supervisor().IsBusy(k)
}

// GetModelStatus reports whether the layout model is installed.
func (a *App) GetModelStatus() ModelResult {
	return ModelResult{Status: a.runner.Model().Status()}
}

// DownloadModel fetches the layout model.
func (a *App) DownloadModel() types.ProcessResult {
	result := a.runner.DownloadModel(a.context(), emitter{a})
	a.finished(result)
	return result
}

// VerifyModel loads the model with onnxruntime and reports its signature.
func (a *App) VerifyModel() ModelResult {
	asset := a.runner.Model()
	res := ModelResult{Status: asset.Status()}
	if res.Status.State != types.ModelPresent {
		res.Failure = types.NewFailure(types.ArtifactsMissing, "layout model is not installed")
		return res
	}

	meta, err := asset.Verify(a.launcher.OnnxRuntimeLib)
	if err != nil {
		if goerrors.Is(err, models.ErrRuntimeUnavailable) {
			res.Failure = types.WrapFailure(types.RuntimeVerificationFailed, "set "+config.EnvOnnxRuntime+" to verify the model", err)
		} else {
			res.Failure = types.WrapFailure(types.RuntimeVerificationFailed, "layout model could not be loaded", err)
		}
		return res
	}
	res.Metadata = &meta
	return res
}

// LoadConfig returns the stored configuration. On failure the defaults are
// returned alongside the failure.
func (a *App) LoadConfig() ConfigResult {
	cfg, err := a.config.Load()
	return ConfigResult{
		Config:  cfg,
		Path:    a.config.Path(),
		Failure: types.FailureOf(err, types.ConfigLoadError),
	}
}

// SaveConfig stores cfg and returns the normalized value that was written.
func (a *App) SaveConfig(cfg types.Config) SaveResult {
	if err := a.config.Save(cfg); err != nil {
		return SaveResult{Config: config.Normalize(cfg), Failure: types.FailureOf(err, types.ConfigSaveError)}
	}
	return SaveResult{Saved: true, Config: a.config.Current()}
}

// InspectPDF reports page count, text layer and validity of a PDF.
func (a *App) InspectPDF(path string) PDFInfoResult {
	info, err := a.inspector.Inspect(path)
	if err == nil {
		return PDFInfoResult{Info: info}
	}
	kind := types.InvalidRequest
	var pe *pdf.Error
	if goerrors.As(err, &pe) && pe.Code == pdf.ErrPDFNotFound {
		kind = types.NotFound
	}
	return PDFInfoResult{Info: info, Failure: types.WrapFailure(kind, "PDF cannot be inspected", err)}
}

// VerifyService checks the credentials in cfg for its selected service.
func (a *App) VerifyService(cfg types.Config) services.CheckResult {
	return a.prober.Check(a.context(), config.Normalize(cfg))
}

// OpenArtifact opens a produced PDF with the system viewer. Only artifacts
// of this session's conversions or of the history are accepted.
func (a *App) OpenArtifact(path string) ActionResult {
	if path == "" {
		return ActionResult{Failure: types.NewFailure(types.InvalidRequest, "no file given")}
	}
	if !a.isArtifact(path) {
		f := types.NewFailure(types.InvalidRequest, "only translated PDFs can be opened")
		f.Detail = path
		return ActionResult{Failure: f}
	}
	if _, err := os.Stat(path); err != nil {
		return ActionResult{Failure: types.WrapFailure(types.NotFound, "file does not exist", err)}
	}
	if !a.isWailsRuntime {
		return ActionResult{Failure: noWindow()}
	}
	logger.Info("opening PDF in system viewer", logger.String("path", path))
	runtime.BrowserOpenURL(a.ctx, fileURL(path))
	return ActionResult{OK: true}
}

func (a *App) isArtifact(path string) bool {
	if !pdf.IsPDFPath(path) {
		return false
	}
	path = filepath.Clean(path)
	a.mu.Lock()
	known := a.produced[path]
	a.mu.Unlock()
	if known || a.results == nil {
		return known
	}
	for _, rec := range a.results.List() {
		if rec.DualPDF != "" && filepath.Clean(rec.DualPDF) == path {
			return true
		}
		if rec.MonoPDF != "" && filepath.Clean(rec.MonoPDF) == path {
			return true
		}
	}
	return false
}

func fileURL(path string) string {
	return "file:///" + strings.TrimPrefix(filepath.ToSlash(path), "/")
}

// ListFailures returns journaled failures, newest first.
func (a *App) ListFailures() []errors.FailureRecord {
	if a.errorMgr == nil {
		return []errors.FailureRecord{}
	}
	return a.errorMgr.List()
}

// ClearFailures empties the failure journal.
func (a *App) ClearFailures() ActionResult {
	if a.errorMgr == nil {
		return ActionResult{OK: true}
	}
	if err := a.errorMgr.ClearAll(); err != nil {
		return ActionResult{Failure: types.WrapFailure(types.ConfigSaveError, "failure journal could not be written", err)}
	}
	return ActionResult{OK: true}
}

// ListRecent returns recent successful conversions, newest first.
func (a *App) ListRecent() []results.Record {
	if a.results == nil {
		return []results.Record{}
	}
	return a.results.List()
}
