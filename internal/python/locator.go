// Package python finds the interpreter that runs the translation worker and
// prepares the environment it needs.
//
// Two layouts are supported. A packaged build ships a relocatable runtime in
// <resources>/python_env; such a runtime needs PYTHONHOME and PYTHONPATH to
// find its standard library and site-packages. A development checkout uses
// the same bundled runtime when present, then the uv-managed virtualenv in
// the user data directory, then whatever python is on PATH.
package python

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"pdf-translator/internal/logger"
	"pdf-translator/internal/types"
)

// AppDataDirName is the per-user directory holding the venv, logs and
// config.
const AppDataDirName = ".PDFTranslator"

// BundleDirName is the directory of the relocatable runtime inside the
// resources directory.
const BundleDirName = "python_env"

// Mode selects the candidate search policy.
type Mode string

const (
	ModeDev      Mode = "dev"
	ModePackaged Mode = "packaged"
)

// Target describes the platform and install layout to search.
type Target struct {
	Mode         Mode
	GOOS         string
	GOARCH       string
	ResourcesDir string
	// AppDataDir holds the optional uv-managed .venv.
	AppDataDir string
	// Override is an interpreter path that is always tried first.
	Override string
}

// Source tells where a candidate came from.
type Source string

const (
	SourceOverride Source = "override"
	SourceBundled  Source = "bundled"
	SourceVenv     Source = "venv"
	SourcePath     Source = "path"
)

// Candidate is one possible interpreter location.
type Candidate struct {
	// Path is absolute, except for SourcePath candidates which hold a bare
	// command name until Locate resolves it.
	Path string
	// Root is the runtime prefix (the directory containing bin/ or
	// python.exe).
	Root string
	// Bundled runtimes get PYTHONHOME and PYTHONPATH.
	Bundled bool
	Source  Source
}

func (c Candidate) String() string {
	if c.Source == SourcePath {
		return c.Path + " (PATH)"
	}
	return c.Path
}

// RuntimeNotFoundError lists every location that was searched.
type RuntimeNotFoundError struct {
	Candidates []Candidate
}

func (e *RuntimeNotFoundError) Error() string {
	paths := make([]string, len(e.Candidates))
	for i, c := range e.Candidates {
		paths[i] = c.String()
	}
	return "python runtime not found; searched: " + strings.Join(paths, ", ")
}

// PermissionError is returned when a runtime exists but cannot be made
// executable.
type PermissionError struct {
	Path string
	Err  error
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("python runtime %s is not executable: %v", e.Path, e.Err)
}

func (e *PermissionError) Unwrap() error { return e.Err }

// DetectTarget derives the search target from the running executable.
// mode may be empty for auto-detection: the build counts as packaged when a
// bundled runtime sits next to the executable.
func DetectTarget(mode, resourcesDir, override string) Target {
	t := Target{
		GOOS:     runtime.GOOS,
		GOARCH:   runtime.GOARCH,
		Override: override,
	}
	if home, err := os.UserHomeDir(); err == nil {
		t.AppDataDir = filepath.Join(home, AppDataDirName)
	}

	exeResources := executableResourcesDir()
	switch {
	case resourcesDir != "":
		t.ResourcesDir = resourcesDir
	case Mode(mode) == ModeDev:
		t.ResourcesDir = workingDir()
	case Mode(mode) == ModePackaged || dirExists(filepath.Join(exeResources, BundleDirName)):
		t.ResourcesDir = exeResources
	default:
		t.ResourcesDir = workingDir()
	}

	switch Mode(mode) {
	case ModeDev, ModePackaged:
		t.Mode = Mode(mode)
	default:
		if t.ResourcesDir == exeResources && dirExists(filepath.Join(exeResources, BundleDirName)) {
			t.Mode = ModePackaged
		} else {
			t.Mode = ModeDev
		}
	}
	return t
}

// executableResourcesDir is the executable's directory, or Contents/Resources
// inside a macOS app bundle.
func executableResourcesDir() string {
	exe, err := os.Executable()
	if err != nil {
		return workingDir()
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	dir := filepath.Dir(exe)
	if runtime.GOOS == "darwin" && filepath.Base(dir) == "MacOS" {
		return filepath.Join(filepath.Dir(dir), "Resources")
	}
	return dir
}

func workingDir() string {
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// Candidates returns the ordered search list for t. It does not touch the
// file system.
func Candidates(t Target) []Candidate {
	var out []Candidate

	if t.Override != "" {
		out = append(out, Candidate{
			Path:   t.Override,
			Root:   runtimeRoot(t.Override, t.GOOS),
			Source: SourceOverride,
		})
	}

	bundled := func(root string) Candidate {
		return Candidate{
			Path:    interpreterIn(root, t.GOOS),
			Root:    root,
			Bundled: true,
			Source:  SourceBundled,
		}
	}

	if t.ResourcesDir != "" {
		out = append(out, bundled(filepath.Join(t.ResourcesDir, BundleDirName)))
		if t.Mode == ModePackaged {
			// layout produced by older installers
			out = append(out, bundled(filepath.Join(t.ResourcesDir, "app.asar.unpacked", BundleDirName)))
		}
	}

	if t.Mode == ModePackaged {
		return out
	}

	if t.AppDataDir != "" {
		venv := filepath.Join(t.AppDataDir, ".venv")
		out = append(out, Candidate{
			Path:   venvInterpreter(venv, t.GOOS),
			Root:   venv,
			Source: SourceVenv,
		})
	}

	names := []string{"python3", "python"}
	if t.GOOS == "windows" {
		names = []string{"python", "python3"}
	}
	for _, n := range names {
		out = append(out, Candidate{Path: n, Source: SourcePath})
	}
	return out
}

func interpreterIn(root, goos string) string {
	if goos == "windows" {
		return filepath.Join(root, "python.exe")
	}
	return filepath.Join(root, "bin", "python3")
}

func venvInterpreter(venv, goos string) string {
	if goos == "windows" {
		return filepath.Join(venv, "Scripts", "python.exe")
	}
	return filepath.Join(venv, "bin", "python")
}

// runtimeRoot guesses the prefix of an arbitrary interpreter path.
func runtimeRoot(path, goos string) string {
	dir := filepath.Dir(path)
	if goos != "windows" && filepath.Base(dir) == "bin" {
		return filepath.Dir(dir)
	}
	if goos == "windows" && strings.EqualFold(filepath.Base(dir), "Scripts") {
		return filepath.Dir(dir)
	}
	return dir
}

// Locator resolves the first usable candidate.
type Locator struct {
	Target Target

	lookPath func(string) (string, error)
}

// NewLocator returns a locator for t.
func NewLocator(t Target) *Locator {
	return &Locator{Target: t, lookPath: exec.LookPath}
}

// Locate returns the first candidate that exists and is executable. A
// candidate missing its executable bit is fixed in place; if that fails a
// *PermissionError is returned. When nothing is found the error is a
// *RuntimeNotFoundError.
func (l *Locator) Locate() (Candidate, error) {
	candidates := Candidates(l.Target)

	for _, c := range candidates {
		if c.Source == SourcePath {
			resolved, err := l.lookPath(c.Path)
			if err != nil {
				continue
			}
			c.Path = resolved
			c.Root = runtimeRoot(resolved, l.Target.GOOS)
		}

		info, err := os.Stat(c.Path)
		if err != nil || info.IsDir() {
			continue
		}

		if !isExecutable(c.Path) {
			logger.Warn("python runtime not executable, fixing permissions", logger.String("path", c.Path))
			if err := MakeExecutable(c.Path); err != nil {
				return c, &PermissionError{Path: c.Path, Err: err}
			}
			if !isExecutable(c.Path) {
				return c, &PermissionError{Path: c.Path, Err: fs.ErrPermission}
			}
		}

		logger.Info("python runtime located",
			logger.String("path", c.Path),
			logger.String("source", string(c.Source)),
			logger.String("mode", string(l.Target.Mode)))
		return c, nil
	}

	logger.Warn("python runtime not found", logger.Int("candidates", len(candidates)))
	return Candidate{}, &RuntimeNotFoundError{Candidates: candidates}
}

// FailureOf converts a Locate error into a failure for the UI.
func FailureOf(err error) *types.Failure {
	if err == nil {
		return nil
	}
	var nf *RuntimeNotFoundError
	if errors.As(err, &nf) {
		return types.WrapFailure(types.RuntimeNotFound, "no python runtime found", err)
	}
	var pe *PermissionError
	if errors.As(err, &pe) {
		return types.WrapFailure(types.PermissionDenied, "python runtime is not executable", err)
	}
	return types.WrapFailure(types.RuntimeNotFound, "python runtime could not be located", err)
}

// IsNotFound reports whether err means no runtime exists at all.
func IsNotFound(err error) bool {
	var nf *RuntimeNotFoundError
	return errors.As(err, &nf)
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
