// Package conversion drives worker sessions end to end: it resolves the
// runtime and script, runs the worker under the supervisor, classifies its
// output and checks what the worker left on disk.
package conversion

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"

	"pdf-translator/internal/config"
	"pdf-translator/internal/errors"
	"pdf-translator/internal/logger"
	"pdf-translator/internal/models"
	"pdf-translator/internal/progress"
	"pdf-translator/internal/python"
	"pdf-translator/internal/results"
	"pdf-translator/internal/supervisor"
	"pdf-translator/internal/types"
)

// Script names accepted by Build.
const (
	ScriptConvert  = "convert"
	ScriptDownload = "download"
)

// ConvertScript is the conversion entry point inside the resources directory.
const ConvertScript = "main.py"

// Sink receives session output while the worker runs. Calls are serialized.
type Sink interface {
	Output(sessionID string, stream types.Stream, line string)
	Progress(ev types.ProgressEvent)
}

type nopSink struct{}

func (nopSink) Output(string, types.Stream, string) {}
func (nopSink) Progress(types.ProgressEvent)        {}

// RuntimeLocator resolves the python interpreter.
type RuntimeLocator interface {
	Locate() (python.Candidate, error)
}

// Options configures a Runner.
type Options struct {
	ResourcesDir string
	// Mirror is exported to workers as HF_ENDPOINT.
	Mirror string
	// ValidateArtifacts runs pdfcpu over produced files.
	ValidateArtifacts bool
	// CheckService rejects a conversion whose service lacks credentials.
	CheckService bool
}

// Runner starts conversion and download sessions.
type Runner struct {
	opts    Options
	locator RuntimeLocator
	sup     *supervisor.Supervisor
	cfg     *config.ConfigManager
	journal *errors.ErrorManager
	history *results.ResultManager
	log     logger.Logger
}

// NewRunner wires a runner. The journal and history are optional.
func NewRunner(opts Options, locator RuntimeLocator, sup *supervisor.Supervisor, cfg *config.ConfigManager) *Runner {
	return &Runner{
		opts:    opts,
		locator: locator,
		sup:     sup,
		cfg:     cfg,
		log:     logger.With(logger.String("component", "conversion")),
	}
}

// WithJournal records failed sessions in j.
func (r *Runner) WithJournal(j *errors.ErrorManager) *Runner {
	r.journal = j
	return r
}

// WithHistory records successful conversions in h.
func (r *Runner) WithHistory(h *results.ResultManager) *Runner {
	r.history = h
	return r
}

// Supervisor returns the supervisor sessions run under.
func (r *Runner) Supervisor() *supervisor.Supervisor {
	return r.sup
}

// ResourcesDir is where scripts, the bundled runtime and models live.
func (r *Runner) ResourcesDir() string {
	return r.opts.ResourcesDir
}

// Model returns the layout model asset.
func (r *Runner) Model() *models.Asset {
	return models.NewAsset(r.opts.ResourcesDir)
}

// Build turns a script name and its arguments into a full invocation. The
// caller never chooses the executable or the environment.
func (r *Runner) Build(script string, args []string) (types.WorkerInvocation, *types.Failure) {
	var (
		kind types.SessionKind
		path string
	)
	switch script {
	case ScriptConvert:
		kind, path = types.SessionConversion, filepath.Join(r.opts.ResourcesDir, ConvertScript)
	case ScriptDownload:
		kind, path = types.SessionDownload, filepath.Join(r.opts.ResourcesDir, models.DownloadScript)
	default:
		return types.WorkerInvocation{}, types.NewFailure(types.InvalidRequest, "unknown worker script: "+script)
	}

	runtime, err := r.locator.Locate()
	if err != nil {
		return types.WorkerInvocation{Session: kind}, python.FailureOf(err)
	}

	return types.WorkerInvocation{
		Session:        kind,
		ExecutablePath: runtime.Path,
		ScriptPath:     path,
		Args:           append([]string(nil), args...),
		WorkingDir:     r.opts.ResourcesDir,
		Env:            python.Environment(runtime, os.Environ(), r.opts.Mirror),
	}, nil
}

// Summary describes what a session reported while it ran.
type Summary struct {
	LastStage string  `json:"last_stage,omitempty"`
	LastError string  `json:"last_error,omitempty"`
	Progress  float64 `json:"progress"`
	Events    uint64  `json:"events"`
}

// Run executes inv, classifying every line with c and forwarding output
// and events to sink.
func (r *Runner) Run(ctx context.Context, inv types.WorkerInvocation, c *progress.Classifier, sink Sink) (types.ProcessResult, Summary) {
	if sink == nil {
		sink = nopSink{}
	}
	if c == nil {
		c = progress.New()
	}
	var (
		seq     atomic.Uint64
		tracker progress.Tracker
		sum     Summary
	)

	result := r.sup.Execute(ctx, inv, func(sessionID string, stream types.Stream, line string) {
		sink.Output(sessionID, stream, line)

		ev := c.Classify(line)
		ev.Stream = stream
		ev.SessionID = sessionID
		ev.Seq = seq.Add(1)

		switch ev.Kind {
		case types.EventStage:
			sum.LastStage = ev.Stage
		case types.EventError:
			sum.LastError = ev.Text
			r.log.Warn("worker reported an error", logger.String("line", ev.Text))
		}
		if _, restarted := tracker.Observe(ev); restarted {
			r.log.Debug("worker progress went backwards", logger.Float64("value", ev.Value))
		}
		sink.Progress(ev)
	})

	sum.Progress = tracker.Last()
	sum.Events = seq.Load()
	return result, sum
}

// RunWorker builds and runs a named script with a classifier suited to it.
func (r *Runner) RunWorker(ctx context.Context, script string, args []string, sink Sink) types.ProcessResult {
	inv, f := r.Build(script, args)
	if f != nil {
		return failedResult(inv.Session, f)
	}
	c := progress.ForConversion()
	if inv.Session == types.SessionDownload {
		c = progress.ForDownload()
	}
	result, _ := r.Run(ctx, inv, c, sink)
	return result
}

func failedResult(kind types.SessionKind, f *types.Failure) types.ProcessResult {
	if kind == "" {
		kind = types.SessionConversion
	}
	return types.ProcessResult{Session: kind, ExitCode: -1, Failure: f}
}

func (r *Runner) recordFailure(input string, kind types.SessionKind, stage string, f *types.Failure) {
	if r.journal == nil || f == nil {
		return
	}
	if err := r.journal.RecordFailure(input, kind, stage, f); err != nil {
		r.log.Warn("failed to journal failure", logger.Err(err))
	}
}

func (r *Runner) resolveFailure(input string, kind types.SessionKind) {
	if r.journal == nil {
		return
	}
	if err := r.journal.Resolve(input, kind); err != nil {
		r.log.Warn("failed to clear journaled failure", logger.Err(err))
	}
}
