package builddir

import (
	"github.com/nix-community/nixpkgs-review/internal/errors"
)

// ReleaseStack collects pending release functions and runs them in
// reverse-acquisition order when the enclosing scope ends. Every release
// runs even if earlier ones fail; failures are joined into one error.
//
// The stack is driven by the single control goroutine; it is not safe for
// concurrent use.
type ReleaseStack struct {
	releases []func() error
}

// Defer pushes a release function onto the stack.
func (s *ReleaseStack) Defer(release func() error) {
	s.releases = append(s.releases, release)
}

// Enter acquires a Builddir and registers its release with the stack.
func (s *ReleaseStack) Enter(b *Builddir, err error) (*Builddir, error) {
	if err != nil {
		return nil, err
	}
	s.Defer(b.Release)
	return b, nil
}

// Release runs all pending releases in reverse order and clears the stack.
func (s *ReleaseStack) Release() error {
	var errs []error
	for i := len(s.releases) - 1; i >= 0; i-- {
		if err := s.releases[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.releases = nil
	return errors.Join(errs...)
}
