package conversion

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/pdf"
	"pdf-translator/internal/progress"
	"pdf-translator/internal/results"
	"pdf-translator/internal/services"
	"pdf-translator/internal/types"
)

// Request names the document to convert.
type Request struct {
	Input string `json:"input"`
	// OutputDir defaults to the input's directory.
	OutputDir string `json:"output_dir,omitempty"`
}

// Result is the outcome of a conversion.
type Result struct {
	Process    types.ProcessResult `json:"process"`
	Input      string              `json:"input"`
	OutputBase string              `json:"output_base,omitempty"`
	Artifacts  []pdf.Artifact      `json:"artifacts,omitempty"`
	Dual       string              `json:"dual,omitempty"`
	Mono       string              `json:"mono,omitempty"`
	Summary    Summary             `json:"summary"`
	Failure    *types.Failure      `json:"failure,omitempty"`
}

// OK reports whether the conversion produced at least one artifact.
func (r Result) OK() bool {
	return r.Failure == nil
}

// Convert translates req.Input. Success requires a zero exit status and at
// least one artifact on disk.
func (r *Runner) Convert(ctx context.Context, req Request, sink Sink) Result {
	res := Result{Input: req.Input}
	fail := func(f *types.Failure) Result {
		res.Failure = f
		switch {
		case res.Process.SessionID == "":
			res.Process = failedResult(types.SessionConversion, f)
		case res.Process.Failure == nil:
			// the worker exited cleanly but its output was rejected
			res.Process.Failure = f
		}
		r.recordFailure(req.Input, types.SessionConversion, res.Summary.LastStage, f)
		return res
	}

	if f := checkInput(req.Input); f != nil {
		return fail(f)
	}

	cfg, err := r.cfg.Load()
	if err != nil {
		return fail(types.FailureOf(err, types.ConfigLoadError))
	}
	if r.opts.CheckService {
		if f := services.Validate(cfg); f != nil {
			return fail(f)
		}
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = filepath.Dir(req.Input)
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return fail(types.WrapFailure(types.InvalidRequest, "output directory cannot be created", err))
	}
	res.OutputBase = pdf.OutputBase(req.Input, outputDir)

	inv, f := r.Build(ScriptConvert, []string{req.Input, res.OutputBase, r.cfg.Path()})
	if f != nil {
		return fail(f)
	}

	r.log.Info("conversion starting",
		logger.String("input", req.Input),
		logger.String("output_base", res.OutputBase),
		logger.String("service", cfg.Service))

	res.Process, res.Summary = r.Run(ctx, inv, progress.ForConversion(), sink)
	if res.Process.Failure != nil {
		return fail(res.Process.Failure)
	}

	res.Artifacts = pdf.FindArtifacts(res.OutputBase, r.opts.ValidateArtifacts)
	if len(res.Artifacts) == 0 {
		f := types.NewFailure(types.ArtifactsMissing, "worker exited successfully but produced no PDF")
		f.Detail = res.OutputBase + pdf.DualSuffix
		return fail(f)
	}
	for _, a := range res.Artifacts {
		switch a.Kind {
		case pdf.ArtifactDual:
			res.Dual = a.Path
		case pdf.ArtifactMono:
			res.Mono = a.Path
		}
	}

	r.resolveFailure(req.Input, types.SessionConversion)
	r.remember(req, outputDir, cfg, res)

	r.log.Info("conversion finished",
		logger.String("input", req.Input),
		logger.Int("artifacts", len(res.Artifacts)),
		logger.Duration("duration", res.Process.Duration))
	return res
}

func checkInput(input string) *types.Failure {
	if input == "" {
		return types.NewFailure(types.InvalidRequest, "no input file selected")
	}
	if !pdf.IsPDFPath(input) {
		return types.NewFailure(types.InvalidRequest, "input is not a PDF file: "+filepath.Base(input))
	}
	st, err := os.Stat(input)
	if err != nil {
		return types.WrapFailure(types.InvalidRequest, "input file cannot be read", err)
	}
	if st.IsDir() {
		return types.NewFailure(types.InvalidRequest, "input is a directory")
	}
	return nil
}

func (r *Runner) remember(req Request, outputDir string, cfg types.Config, res Result) {
	if r.history == nil {
		return
	}
	rec := results.Record{
		InputPath:    req.Input,
		OutputDir:    outputDir,
		Service:      cfg.Service,
		LangIn:       cfg.LangIn,
		LangOut:      cfg.LangOut,
		DualPDF:      res.Dual,
		MonoPDF:      res.Mono,
		TranslatedAt: time.Now(),
		Duration:     res.Process.Duration,
	}
	if info, err := pdf.NewInspector().Inspect(req.Input); err == nil {
		rec.PageCount = info.PageCount
	}
	if _, err := r.history.Add(rec); err != nil {
		r.log.Warn("failed to record conversion", logger.Err(err))
	}
}

// DownloadModel fetches the layout model. Success requires the model file
// to be present afterwards.
func (r *Runner) DownloadModel(ctx context.Context, sink Sink) types.ProcessResult {
	asset := r.Model()
	if err := asset.EnsureDir(); err != nil {
		f := types.WrapFailure(types.PermissionDenied, "model directory cannot be created", err)
		r.recordFailure("", types.SessionDownload, "", f)
		return failedResult(types.SessionDownload, f)
	}

	inv, f := r.Build(ScriptDownload, []string{asset.Dir})
	if f != nil {
		r.recordFailure("", types.SessionDownload, "", f)
		return failedResult(types.SessionDownload, f)
	}

	result, sum := r.Run(ctx, inv, progress.ForDownload(), sink)
	if result.Failure == nil && asset.Status().State != types.ModelPresent {
		result.Failure = types.NewFailure(types.ArtifactsMissing, "download finished but no model file was found")
		result.Failure.Detail = asset.Dir
	}
	if result.Failure != nil {
		r.recordFailure("", types.SessionDownload, sum.LastStage, result.Failure)
		return result
	}
	r.resolveFailure("", types.SessionDownload)
	return result
}
