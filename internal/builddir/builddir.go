// Package builddir manages the per-review temporary build directories and
// the scoped release discipline that guarantees every acquired directory is
// removed on every exit path.
package builddir

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nix-community/nixpkgs-review/internal/logging"
)

// Builddir is an exclusively-owned temporary directory scoped to one
// review. It is created at acquisition and removed on Release regardless of
// how the review went.
type Builddir struct {
	name   string
	path   string
	logger *logging.Logger
}

// Acquire creates a fresh, uniquely named temporary directory for the named
// review session.
func Acquire(name string, logger *logging.Logger) (*Builddir, error) {
	path, err := os.MkdirTemp("", fmt.Sprintf("nixpkgs-review-%s-", name))
	if err != nil {
		return nil, fmt.Errorf("failed to create build directory for %s: %w", name, err)
	}

	logger.Debug("acquired build directory", "name", name, "path", path)
	return &Builddir{name: name, path: path, logger: logger}, nil
}

// Name returns the session name the directory was acquired under.
func (b *Builddir) Name() string { return b.name }

// Path returns the directory's filesystem path.
func (b *Builddir) Path() string { return b.path }

// WorktreeDir returns the path the nixpkgs worktree is checked out under.
func (b *Builddir) WorktreeDir() string {
	return filepath.Join(b.path, "nixpkgs")
}

// Release removes the directory tree unconditionally. It is safe to call
// more than once.
func (b *Builddir) Release() error {
	if b.path == "" {
		return nil
	}
	path := b.path
	b.path = ""

	b.logger.Debug("releasing build directory", "name", b.name, "path", path)
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to remove build directory %s: %w", path, err)
	}
	return nil
}
