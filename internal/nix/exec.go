// Package nix wraps the external nix tooling this tool orchestrates: package
// set evaluation, attr resolution, the two builder backends, and the review
// shell. All invocations go through the Executor interface so tests can
// substitute scripted fakes.
package nix

import (
	"bytes"
	"io"
	"os/exec"
)

// Executor abstracts external command execution for testability.
type Executor interface {
	// Run executes a command and returns its combined output.
	Run(dir string, name string, args ...string) ([]byte, error)

	// RunQuiet executes a command and returns only the error.
	RunQuiet(dir string, name string, args ...string) error

	// RunStream executes a command with stdout and stderr attached to the
	// given writers. Used for builds whose progress the user watches live.
	RunStream(dir string, stdout, stderr io.Writer, name string, args ...string) error

	// RunWithInput executes a command feeding input on stdin and returns
	// its combined output.
	RunWithInput(dir string, input []byte, name string, args ...string) ([]byte, error)
}

// CLIExecutor executes commands using os/exec.
type CLIExecutor struct{}

// NewCLIExecutor creates a new CLI executor.
func NewCLIExecutor() *CLIExecutor {
	return &CLIExecutor{}
}

// Run executes a command and returns its combined output.
func (e *CLIExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// RunQuiet executes a command and returns only the error.
func (e *CLIExecutor) RunQuiet(dir string, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.Run()
}

// RunStream executes a command with output attached to the given writers.
func (e *CLIExecutor) RunStream(dir string, stdout, stderr io.Writer, name string, args ...string) error {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// RunWithInput executes a command feeding input on stdin.
func (e *CLIExecutor) RunWithInput(dir string, input []byte, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	cmd.Stdin = bytes.NewReader(input)
	return cmd.CombinedOutput()
}
