// Package supervisor starts worker processes, streams their output line by
// line and reduces every outcome, including failures to start, to a
// types.ProcessResult.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/python"
	"pdf-translator/internal/types"
)

// LineHandler receives each complete output line. Calls are serialized;
// lines of one stream arrive in the order the worker wrote them.
type LineHandler func(sessionID string, stream types.Stream, line string)

// Options configures a Supervisor.
type Options struct {
	// ProbeArgs are run against the executable before each session to
	// verify it starts. Nil disables the probe.
	ProbeArgs    []string
	ProbeTimeout time.Duration
	// Timeout bounds each session. Zero means no limit.
	Timeout time.Duration
	// WaitDelay is how long to wait for output pipes after the process
	// exits or is killed.
	WaitDelay time.Duration
	// CaptureLimit bounds the stdout and stderr kept in the result; the
	// tail is kept.
	CaptureLimit int
	Logger       logger.Logger
}

// DefaultOptions probes with --version and keeps 1 MiB of each stream.
func DefaultOptions() Options {
	return Options{
		ProbeArgs:    []string{"--version"},
		ProbeTimeout: 15 * time.Second,
		WaitDelay:    5 * time.Second,
		CaptureLimit: 1 << 20,
	}
}

type session struct {
	id        string
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// Supervisor runs at most one worker per session kind.
type Supervisor struct {
	opts     Options
	log      logger.Logger
	hostArch string

	mu     sync.Mutex
	active map[types.SessionKind]*session
}

// New returns a supervisor using opts.
func New(opts Options) *Supervisor {
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = 15 * time.Second
	}
	if opts.CaptureLimit <= 0 {
		opts.CaptureLimit = 1 << 20
	}
	log := opts.Logger
	if log == nil {
		log = logger.GetLogger()
	}
	return &Supervisor{
		opts:     opts,
		log:      log,
		hostArch: runtime.GOARCH,
		active:   make(map[types.SessionKind]*session),
	}
}

// IsBusy reports whether a worker of the given kind is running.
func (s *Supervisor) IsBusy(kind types.SessionKind) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.active[kind]
	return ok
}

// Cancel stops the running worker of the given kind. It reports whether
// there was one.
func (s *Supervisor) Cancel(kind types.SessionKind) bool {
	s.mu.Lock()
	sess := s.active[kind]
	s.mu.Unlock()
	if sess == nil {
		return false
	}
	sess.cancelled.Store(true)
	sess.cancel()
	s.log.Info("worker cancel requested", logger.String("session", string(kind)), logger.String("session_id", sess.id))
	return true
}

func (s *Supervisor) acquire(kind types.SessionKind, sess *session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.active[kind]; busy {
		return false
	}
	s.active[kind] = sess
	return true
}

func (s *Supervisor) release(kind types.SessionKind) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, kind)
}

// Execute runs inv to completion and returns its result. It never returns
// an error: every failure is described by ProcessResult.Failure. onLine may
// be nil.
func (s *Supervisor) Execute(ctx context.Context, inv types.WorkerInvocation, onLine LineHandler) types.ProcessResult {
	if inv.Session == "" {
		inv.Session = types.SessionConversion
	}

	result := types.ProcessResult{
		SessionID: uuid.NewString(),
		Session:   inv.Session,
		ExitCode:  -1,
		StartedAt: time.Now(),
	}
	log := s.log.With(logger.String("session", string(inv.Session)), logger.String("session_id", result.SessionID))

	finish := func(f *types.Failure) types.ProcessResult {
		result.Failure = f
		result.Duration = time.Since(result.StartedAt)
		if f != nil {
			log.Warn("worker session failed",
				logger.String("kind", string(f.Kind)),
				logger.String("message", f.Message),
				logger.String("detail", truncate(f.Detail, 500)),
				logger.Int("exit_code", result.ExitCode),
				logger.Duration("duration", result.Duration))
		} else {
			log.Info("worker session finished", logger.Int("exit_code", result.ExitCode), logger.Duration("duration", result.Duration))
		}
		return result
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess := &session{id: result.SessionID, cancel: cancel}

	if !s.acquire(inv.Session, sess) {
		return finish(types.NewFailure(types.AlreadyRunning,
			fmt.Sprintf("a %s worker is already running", inv.Session)))
	}
	defer s.release(inv.Session)

	if f := precheck(inv); f != nil {
		return finish(f)
	}

	if f := interrupted(ctx, sess); f != nil {
		return finish(f)
	}

	if s.opts.ProbeArgs != nil {
		if f := s.probe(runCtx, inv, log); f != nil {
			if c := interrupted(ctx, sess); c != nil {
				return finish(c)
			}
			return finish(f)
		}
	}

	if s.opts.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, s.opts.Timeout)
		defer cancelTimeout()
	}

	log.Info("starting worker", logger.String("command", inv.CommandLine()), logger.String("dir", inv.WorkingDir))

	cmd := exec.CommandContext(runCtx, inv.ExecutablePath, inv.Argv()...)
	cmd.Dir = inv.WorkingDir
	cmd.Env = python.MergeEnv(os.Environ(), inv.Env)
	cmd.WaitDelay = s.opts.WaitDelay
	python.HideWindow(cmd)

	var (
		handlerMu sync.Mutex
		stdout    = newCapture(s.opts.CaptureLimit)
		stderr    = newCapture(s.opts.CaptureLimit)
	)
	deliver := func(stream types.Stream, line string) {
		if stream == types.StreamStderr {
			log.Debug("worker stderr", logger.String("line", line))
		} else {
			log.Debug("worker stdout", logger.String("line", line))
		}
		if onLine == nil {
			return
		}
		handlerMu.Lock()
		defer handlerMu.Unlock()
		onLine(result.SessionID, stream, line)
	}

	// exec copies each pipe from its own goroutine and Wait returns once both
	// copies finish, or WaitDelay after the process is gone.
	stdoutW := newLineWriter(types.StreamStdout, stdout, deliver)
	stderrW := newLineWriter(types.StreamStderr, stderr, deliver)
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		if f := interrupted(ctx, sess); f != nil {
			return finish(f)
		}
		return finish(s.spawnFailure(err))
	}

	waitErr := cmd.Wait()
	stdoutW.Flush()
	stderrW.Flush()

	result.Stdout = stdout.String()
	result.Stderr = stderr.String()
	if cmd.ProcessState != nil {
		result.ExitCode = cmd.ProcessState.ExitCode()
	}

	if f := interrupted(ctx, sess); f != nil {
		return finish(f)
	}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		return finish(types.NewFailure(types.TimedOut, fmt.Sprintf("worker did not finish within %s", s.opts.Timeout)))
	}

	if waitErr != nil && !(errors.Is(waitErr, exec.ErrWaitDelay) && cmd.ProcessState != nil && cmd.ProcessState.Success()) {
		var exitErr *exec.ExitError
		if !errors.As(waitErr, &exitErr) {
			return finish(types.WrapFailure(types.SpawnError, "worker did not exit cleanly", waitErr))
		}
		return finish(s.exitFailure(result.ExitCode, result.Stderr))
	}

	result.ExitCode = 0
	return finish(nil)
}

// interrupted reports a Cancel of sess or a cancelled caller context. Either
// outranks the error it caused in the probe, at start or at exit.
func interrupted(ctx context.Context, sess *session) *types.Failure {
	switch {
	case sess.cancelled.Load():
		return types.NewFailure(types.Cancelled, "worker was cancelled")
	case ctx.Err() != nil:
		return types.WrapFailure(types.Cancelled, "worker was cancelled", ctx.Err())
	}
	return nil
}

// truncate keeps the last n bytes of s.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// tail returns roughly the last n bytes of s, starting at a line boundary
// when one is available.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	s = s[len(s)-n:]
	if i := strings.IndexByte(s, '\n'); i >= 0 && i < len(s)-1 {
		return s[i+1:]
	}
	return s
}
