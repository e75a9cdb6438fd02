package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"syscall"
	"time"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/python"
	"pdf-translator/internal/types"
)

// precheck verifies the paths of inv before anything is started.
func precheck(inv types.WorkerInvocation) *types.Failure {
	if inv.WorkingDir != "" {
		info, err := os.Stat(inv.WorkingDir)
		if err != nil || !info.IsDir() {
			f := types.NewFailure(types.MissingWorkingDirectory, "working directory does not exist")
			f.Detail = inv.WorkingDir
			return f
		}
	}

	if inv.ExecutablePath == "" {
		return types.NewFailure(types.MissingExecutable, "no runtime executable given")
	}
	if info, err := os.Stat(inv.ExecutablePath); err != nil || info.IsDir() {
		f := types.NewFailure(types.MissingExecutable, "runtime executable does not exist")
		f.Detail = inv.ExecutablePath
		return f
	}

	if inv.ScriptPath != "" {
		if info, err := os.Stat(inv.ScriptPath); err != nil || info.IsDir() {
			f := types.NewFailure(types.MissingScript, "worker script does not exist")
			f.Detail = inv.ScriptPath
			return f
		}
	}
	return nil
}

// probe runs the executable with ProbeArgs. A permission problem gets one
// attempt at fixing the execute bit before the probe is repeated.
func (s *Supervisor) probe(ctx context.Context, inv types.WorkerInvocation, log logger.Logger) *types.Failure {
	out, err := s.runProbe(ctx, inv)
	if err == nil {
		log.Debug("runtime probe ok", logger.String("output", strings.TrimSpace(out)))
		return nil
	}

	if isPermissionProblem(err) {
		log.Warn("runtime probe denied, fixing permissions", logger.String("path", inv.ExecutablePath), logger.Err(err))
		if fixErr := python.MakeExecutable(inv.ExecutablePath); fixErr == nil {
			out, err = s.runProbe(ctx, inv)
			if err == nil {
				return nil
			}
		} else {
			log.Warn("failed to fix runtime permissions", logger.Err(fixErr))
		}
	}

	if s.isArchitectureMismatch(err, out) {
		return archFailure(inv.ExecutablePath, out, err)
	}

	detail := strings.TrimSpace(out)
	if detail == "" {
		detail = err.Error()
	} else {
		detail = detail + "\n" + err.Error()
	}
	return &types.Failure{
		Kind:    types.RuntimeVerificationFailed,
		Message: fmt.Sprintf("%s %s failed", inv.ExecutablePath, strings.Join(s.opts.ProbeArgs, " ")),
		Detail:  detail,
		Cause:   err,
	}
}

func (s *Supervisor) runProbe(ctx context.Context, inv types.WorkerInvocation) (string, error) {
	probeCtx, cancel := context.WithTimeout(ctx, s.opts.ProbeTimeout)
	defer cancel()

	cmd := exec.CommandContext(probeCtx, inv.ExecutablePath, s.opts.ProbeArgs...)
	cmd.Dir = inv.WorkingDir
	cmd.Env = python.MergeEnv(os.Environ(), inv.Env)
	cmd.WaitDelay = s.probeWaitDelay()
	python.HideWindow(cmd)
	out, err := cmd.CombinedOutput()
	return DecodeLine(out), err
}

// probeWaitDelay bounds how long a killed probe may hold its output pipe
// open through a forked child.
func (s *Supervisor) probeWaitDelay() time.Duration {
	if s.opts.WaitDelay > 0 {
		return s.opts.WaitDelay
	}
	return 2 * time.Second
}

func isPermissionProblem(err error) bool {
	if errors.Is(err, fs.ErrPermission) {
		return true
	}
	var exitErr *exec.ExitError
	return errors.As(err, &exitErr) && exitErr.ExitCode() == 126
}

// spawnFailure maps an error from exec.Cmd.Start.
func (s *Supervisor) spawnFailure(err error) *types.Failure {
	switch {
	case errors.Is(err, syscall.EPERM):
		return types.WrapFailure(types.OperationNotPermitted, "the system refused to start the worker", err)
	case errors.Is(err, fs.ErrPermission):
		return types.WrapFailure(types.PermissionDenied, "permission denied starting the worker", err)
	case errors.Is(err, fs.ErrNotExist) || errors.Is(err, exec.ErrNotFound):
		return types.WrapFailure(types.NotFound, "worker executable or interpreter not found", err)
	case s.isArchitectureMismatch(err, ""):
		return archFailure("", "", err)
	}
	return types.WrapFailure(types.SpawnError, "failed to start the worker", err)
}

// exitFailure maps a non-zero exit.
func (s *Supervisor) exitFailure(code int, stderr string) *types.Failure {
	detail := tail(stderr, 2048)
	var f *types.Failure
	switch {
	case s.isArchitectureMismatch(nil, stderr):
		f = types.NewFailure(types.ArchitectureMismatch, types.ArchitectureMismatch.Category())
	case code == 126:
		f = types.NewFailure(types.PermissionDenied, "worker could not be executed")
	case code == 127:
		f = types.NewFailure(types.NotFound, "worker command not found")
	default:
		f = types.NewFailure(types.WorkerExited, fmt.Sprintf("worker exited with code %d", code))
	}
	f.Detail = detail
	return f
}

var archMarkers = []string{
	"bad cpu type in executable",
	"wrong architecture",
	"incompatible architecture",
	"exec format error",
}

// isArchitectureMismatch looks for the loader messages printed when an
// x86_64 runtime is started on an arm64 machine without translation.
func (s *Supervisor) isArchitectureMismatch(err error, output string) bool {
	if s.hostArch != "arm64" {
		return false
	}
	if err != nil && errors.Is(err, syscall.ENOEXEC) {
		return true
	}
	text := strings.ToLower(output)
	if err != nil {
		text += "\n" + strings.ToLower(err.Error())
	}
	for _, m := range archMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func archFailure(path, output string, err error) *types.Failure {
	f := types.WrapFailure(types.ArchitectureMismatch,
		"the runtime was not built for this arm64 machine; install the arm64 package", err)
	if out := strings.TrimSpace(output); out != "" {
		f.Detail = out
	}
	if path != "" {
		f.Detail = strings.TrimSpace(path + "\n" + f.Detail)
	}
	return f
}
