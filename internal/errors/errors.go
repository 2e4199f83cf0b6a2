// Package errors provides centralized error definitions for nixpkgs-review.
// It defines domain-specific error types for the review pipeline (git
// checkout, evaluation, building, GitHub API access), sentinel errors, and
// constructors with context wrapping.
//
// Callers can import only this package for all error handling: the standard
// library helpers Is, As, Unwrap, New and Join are re-exported.
package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Re-export standard library functions for convenience.
var (
	Is     = errors.Is
	As     = errors.As
	Unwrap = errors.Unwrap
	New    = errors.New
	Join   = errors.Join
)

// Sentinel errors for the review pipeline.
var (
	// ErrCheckoutFailed indicates that fetching or checking out a revision failed.
	ErrCheckoutFailed = New("checkout failed")
	// ErrEvalFailed indicates that package evaluation failed.
	ErrEvalFailed = New("evaluation failed")
	// ErrNoEvalResult indicates that no precomputed evaluation result exists.
	ErrNoEvalResult = New("no precomputed evaluation result")
	// ErrMissingToken indicates that a GitHub API token is required but absent.
	ErrMissingToken = New("GitHub token not found")
	// ErrNotFound indicates that a remote resource does not exist.
	ErrNotFound = New("not found")
)

// ReviewError is the error boundary for one PR's review pipeline. Failures
// wrapped in a ReviewError abort that PR only, never the whole run.
type ReviewError struct {
	Message string
	PR      int
	Err     error
}

// NewReviewError creates a ReviewError wrapping the given cause.
func NewReviewError(message string, err error) *ReviewError {
	return &ReviewError{Message: message, Err: err}
}

// WithPR attaches the PR number for diagnostics.
func (e *ReviewError) WithPR(pr int) *ReviewError {
	e.PR = pr
	return e
}

func (e *ReviewError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.PR != 0 {
		fmt.Fprintf(&sb, " (pr %d)", e.PR)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *ReviewError) Unwrap() error { return e.Err }

// GitError represents a failed git invocation, carrying the ref operated on
// and the command output for diagnostics.
type GitError struct {
	Message string
	Ref     string
	Output  string
	Err     error
}

// NewGitError creates a GitError wrapping the given cause.
func NewGitError(message string, err error) *GitError {
	return &GitError{Message: message, Err: err}
}

// WithRef attaches the git ref involved in the failure.
func (e *GitError) WithRef(ref string) *GitError {
	e.Ref = ref
	return e
}

// WithOutput attaches the git command output.
func (e *GitError) WithOutput(output string) *GitError {
	e.Output = strings.TrimSpace(output)
	return e
}

func (e *GitError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.Ref != "" {
		fmt.Fprintf(&sb, " (ref %s)", e.Ref)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	if e.Output != "" {
		sb.WriteString("\n")
		sb.WriteString(e.Output)
	}
	return sb.String()
}

func (e *GitError) Unwrap() error { return e.Err }

// Is lets GitError match ErrCheckoutFailed so callers can classify checkout
// failures without knowing the concrete type.
func (e *GitError) Is(target error) bool {
	return target == ErrCheckoutFailed
}

// EvalError represents a failed evaluator invocation for one system.
type EvalError struct {
	Message string
	System  string
	Err     error
}

// NewEvalError creates an EvalError wrapping the given cause.
func NewEvalError(message string, err error) *EvalError {
	return &EvalError{Message: message, Err: err}
}

// WithSystem attaches the target system being evaluated.
func (e *EvalError) WithSystem(system string) *EvalError {
	e.System = system
	return e
}

func (e *EvalError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Message)
	if e.System != "" {
		fmt.Fprintf(&sb, " (system %s)", e.System)
	}
	if e.Err != nil {
		sb.WriteString(": ")
		sb.WriteString(e.Err.Error())
	}
	return sb.String()
}

func (e *EvalError) Unwrap() error { return e.Err }

// Is lets EvalError match ErrEvalFailed.
func (e *EvalError) Is(target error) bool {
	return target == ErrEvalFailed
}
