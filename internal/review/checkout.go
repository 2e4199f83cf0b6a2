package review

import (
	"fmt"
	"strings"

	"github.com/nix-community/nixpkgs-review/internal/config"
	"github.com/nix-community/nixpkgs-review/internal/errors"
)

// CheckoutOption fixes which tree state of a PR is built: the hypothetical
// merge into its target branch, or the PR's tip commit as-is.
type CheckoutOption int

const (
	// CheckoutMerge builds the merge of the change into its target branch.
	CheckoutMerge CheckoutOption = iota
	// CheckoutCommit builds the change's tip commit as-is, unmerged.
	CheckoutCommit
)

// String returns the config-file spelling of the option.
func (o CheckoutOption) String() string {
	if o == CheckoutCommit {
		return config.CheckoutCommit
	}
	return config.CheckoutMerge
}

// ParseCheckoutOption converts a validated config value into a CheckoutOption.
func ParseCheckoutOption(s string) (CheckoutOption, error) {
	switch s {
	case config.CheckoutMerge:
		return CheckoutMerge, nil
	case config.CheckoutCommit:
		return CheckoutCommit, nil
	default:
		return CheckoutMerge, fmt.Errorf("unknown checkout option %q", s)
	}
}

// Review-local refs fetched into the enclosing repository. Using fixed
// names keeps repeated runs from accumulating refs.
const (
	refBase = "refs/nixpkgs-review/0"
	refHead = "refs/nixpkgs-review/1"
)

// fetch fetches the given refspecs from the configured remote into the
// enclosing repository.
func (r *Review) fetch(refspecs ...string) error {
	args := append([]string{"-c", "fetch.prune=false", "fetch", "--force", r.remote}, refspecs...)
	out, err := r.executor.Run(r.repoDir, "git", args...)
	if err != nil {
		return errors.NewGitError("failed to fetch from remote", err).
			WithRef(strings.Join(refspecs, " ")).
			WithOutput(string(out))
	}
	return nil
}

// worktree checks out rev into the session's worktree directory.
func (r *Review) worktree(rev string) error {
	out, err := r.executor.Run(r.repoDir, "git", "worktree", "add", "--force", "--detach", r.builddir.WorktreeDir(), rev)
	if err != nil {
		return errors.NewGitError("failed to create worktree", err).
			WithRef(rev).
			WithOutput(string(out))
	}
	return nil
}

// checkoutInWorktree moves the session's worktree to rev.
func (r *Review) checkoutInWorktree(rev string) error {
	out, err := r.executor.Run(r.builddir.WorktreeDir(), "git", "checkout", "--force", "--detach", rev)
	if err != nil {
		return errors.NewGitError("failed to check out revision", err).
			WithRef(rev).
			WithOutput(string(out))
	}
	return nil
}

// revParse resolves rev to a commit hash in the enclosing repository.
func (r *Review) revParse(rev string) (string, error) {
	out, err := r.executor.Run(r.repoDir, "git", "rev-parse", "--verify", rev)
	if err != nil {
		return "", errors.NewGitError("failed to resolve revision", err).
			WithRef(rev).
			WithOutput(string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// mergeBase returns the merge base of two revisions.
func (r *Review) mergeBase(a, b string) (string, error) {
	out, err := r.executor.Run(r.repoDir, "git", "merge-base", a, b)
	if err != nil {
		return "", errors.NewGitError("failed to compute merge base", err).
			WithRef(a+" "+b).
			WithOutput(string(out))
	}
	return strings.TrimSpace(string(out)), nil
}

// pruneWorktrees drops stale worktree registrations after session
// directories have been released. Best effort.
func (r *Review) pruneWorktrees() {
	_ = r.executor.RunQuiet(r.repoDir, "git", "worktree", "prune")
}

// checkoutPR fetches the PR's refs per the checkout strategy and returns
// (baseRev, headRev): the revision evaluated as "before" and the revision
// built as "after".
func (r *Review) checkoutPR(number int, baseBranch string) (string, string, error) {
	switch r.checkout {
	case CheckoutMerge:
		// GitHub publishes the hypothetical merge commit; its first
		// parent is the target branch tip it was computed against.
		err := r.fetch(
			fmt.Sprintf("%s:%s", baseBranch, refBase),
			fmt.Sprintf("pull/%d/merge:%s", number, refHead),
		)
		if err != nil {
			return "", "", errors.NewGitError("PR has no merge commit (conflict or unmergeable)", err).
				WithRef(fmt.Sprintf("pull/%d/merge", number))
		}
		base, err := r.revParse(refHead + "^1")
		if err != nil {
			return "", "", err
		}
		return base, refHead, nil

	default: // CheckoutCommit
		err := r.fetch(
			fmt.Sprintf("%s:%s", baseBranch, refBase),
			fmt.Sprintf("pull/%d/head:%s", number, refHead),
		)
		if err != nil {
			return "", "", err
		}
		base, err := r.mergeBase(refBase, refHead)
		if err != nil {
			return "", "", err
		}
		return base, refHead, nil
	}
}
