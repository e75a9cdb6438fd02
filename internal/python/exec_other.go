//go:build !windows

package python

import (
	"os"
	"os/exec"

	"golang.org/x/sys/unix"
)

// HideWindow is a no-op outside Windows.
func HideWindow(cmd *exec.Cmd) {}

func isExecutable(path string) bool {
	return unix.Access(path, unix.X_OK) == nil
}

// MakeExecutable adds the execute bits to path.
func MakeExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	return os.Chmod(path, info.Mode().Perm()|0o111)
}
