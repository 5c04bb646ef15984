// Package workdir models the scoped resources the CI runner and page
// synthesis code acquire for the duration of a single operation: the
// process working directory, and the single-tenant scratch workspace
// under D/tmp/workspace.
package workdir

import (
	"fmt"
	"os"

	"github.com/fbksd/fbksd-server/pkg/dataroot"
)

// WithDir changes the process working directory to dir for the
// duration of fn, restoring the original directory on every exit path
// including an error or panic in fn. New code should prefer absolute
// paths over relying on this; it exists for CI-runner subcommands that
// shell out to tools (cmake, rsync, fbksd) expecting a specific cwd.
func WithDir(dir string, fn func() error) (err error) {
	prev, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("workdir: getwd: %w", err)
	}
	if err := os.Chdir(dir); err != nil {
		return fmt.Errorf("workdir: chdir %s: %w", dir, err)
	}
	defer func() {
		if rerr := os.Chdir(prev); rerr != nil && err == nil {
			err = fmt.Errorf("workdir: restore cwd %s: %w", prev, rerr)
		}
	}()
	return fn()
}

// Scratch manages D/tmp/workspace, the single-tenant staging area for
// container runs. Any operation using it must first wipe and recreate
// it; callers are expected to hold the exclusive flock for the duration.
type Scratch struct {
	root *dataroot.Root
}

func NewScratch(root *dataroot.Root) *Scratch {
	return &Scratch{root: root}
}

// Reset wipes and recreates the scratch directory.
func (s *Scratch) Reset() (string, error) {
	dir := s.root.ScratchDir()
	if err := os.RemoveAll(dir); err != nil {
		return "", fmt.Errorf("workdir: clear scratch: %w", err)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("workdir: create scratch: %w", err)
	}
	return dir, nil
}

// Path returns the scratch directory path without resetting it.
func (s *Scratch) Path() string {
	return s.root.ScratchDir()
}
