package cmd

import (
	"fmt"
	"os"

	"github.com/nix-community/nixpkgs-review/internal/allow"
	"github.com/nix-community/nixpkgs-review/internal/builddir"
	"github.com/nix-community/nixpkgs-review/internal/buildenv"
	"github.com/nix-community/nixpkgs-review/internal/config"
	"github.com/nix-community/nixpkgs-review/internal/errors"
	"github.com/nix-community/nixpkgs-review/internal/logging"
	"github.com/nix-community/nixpkgs-review/internal/nix"
	"github.com/nix-community/nixpkgs-review/internal/review"
)

// session holds the state shared by every review of one invocation: the
// resolved configuration, the build environment, and the release stack that
// guarantees session directories are removed on every exit path.
type session struct {
	cfg      *config.Config
	logger   *logging.Logger
	features allow.AllowedFeatures
	systems  []string
	executor nix.Executor
	env      *buildenv.Buildenv
	stack    *builddir.ReleaseStack
	repoDir  string
}

// newSession loads and validates the configuration and prepares the shared
// review state. Callers must close the session when done.
func newSession() (*session, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := logging.NewLogger(os.Stderr, cfg.Logging.Level)

	features, err := allow.New(cfg.Allow)
	if err != nil {
		return nil, err
	}

	repoDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to determine working directory: %w", err)
	}

	env, err := buildenv.New(features.Aliases(), cfg.ExtraNixpkgsConfig, logger)
	if err != nil {
		return nil, err
	}

	return &session{
		cfg:      cfg,
		logger:   logger,
		features: features,
		systems:  nix.ResolveSystems(cfg.Systems),
		executor: nix.NewCLIExecutor(),
		env:      env,
		stack:    &builddir.ReleaseStack{},
		repoDir:  repoDir,
	}, nil
}

// close releases every acquired session directory and restores the build
// environment. Failures are logged, not returned: cleanup runs on every
// exit path and must never mask the review's outcome.
func (s *session) close() {
	if err := s.stack.Release(); err != nil {
		s.logger.Warn("failed to clean up session directories", "error", err.Error())
	}
	if err := s.env.Close(); err != nil {
		s.logger.Warn("failed to restore build environment", "error", err.Error())
	}
}

// newReview acquires a session directory and builds a Review bound to it.
// The directory's release is registered on the session's stack.
func (s *session) newReview(name string, checkout review.CheckoutOption, client review.GitHubClient) (*review.Review, error) {
	bd, err := s.stack.Enter(builddir.Acquire(name, s.logger))
	if err != nil {
		return nil, err
	}
	return review.New(review.Options{
		Builddir: bd,
		RepoDir:  s.repoDir,
		Config:   s.cfg,
		Allow:    s.features,
		Checkout: checkout,
		Client:   client,
		Executor: s.executor,
		Logger:   s.logger,
		Systems:  s.systems,
	}), nil
}

// reviewResult is one completed review awaiting reporting and the shell.
type reviewResult struct {
	number int
	review *review.Review
	attrs  map[string][]nix.Attr
}

// finish reports every completed review and, unless disabled, opens the
// review shell for each one in turn. With the shell suppressed the outcome
// reflects only the recorded reviews; otherwise a skipped review terminates
// the run before any shell opens.
func (s *session) finish(results []reviewResult, expected int, postResult bool) error {
	success := true
	for _, res := range results {
		ok := res.review.StartReview(res.attrs, res.number, postResult, s.cfg.PrintResult)
		success = success && ok
	}

	for _, res := range results {
		res.review.Cleanup()
	}

	if s.cfg.NoShell {
		if !success {
			return errors.New("some packages failed to build")
		}
		return nil
	}

	if len(results) < expected {
		return fmt.Errorf("%d of %d reviews failed", expected-len(results), expected)
	}

	for _, res := range results {
		dir, err := res.review.PrepareShell(res.attrs)
		if err != nil {
			return err
		}
		if err := nix.RunShell(dir, s.cfg.Run); err != nil {
			return err
		}
	}
	return nil
}

// isReviewFailure reports whether err is a failure of one review that
// should skip that review but not abort the remaining ones.
func isReviewFailure(err error) bool {
	var reviewErr *errors.ReviewError
	return errors.As(err, &reviewErr) ||
		errors.Is(err, errors.ErrCheckoutFailed) ||
		errors.Is(err, errors.ErrEvalFailed)
}
