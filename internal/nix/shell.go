package nix

import (
	"fmt"
	"io"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/x/term"
	"github.com/creack/pty"
	"golang.org/x/sys/unix"
)

// WriteShellNix writes a shell.nix into dir exposing the given attrs, so the
// review shell has every successfully built package in scope.
func WriteShellNix(dir string, attrs []Attr) (string, error) {
	var packages strings.Builder
	for i := range attrs {
		if !attrs[i].Succeeded() {
			continue
		}
		packages.WriteString("    ")
		packages.WriteString(attrs[i].Name)
		packages.WriteString("\n")
	}

	expr := fmt.Sprintf(`{ pkgs ? import ./nixpkgs { } }:
with pkgs;
mkShell {
  name = "review-shell";
  packages = [
%s  ];
}
`, packages.String())

	path := filepath.Join(dir, "shell.nix")
	if err := os.WriteFile(path, []byte(expr), 0o644); err != nil {
		return "", fmt.Errorf("failed to write shell.nix: %w", err)
	}
	return path, nil
}

// RunShell drops the user into an interactive nix-shell in dir, running the
// shell under a pty with the controlling terminal in raw mode so line
// editing and job control behave normally. If run is non-empty the command
// is executed in the shell instead of an interactive session.
func RunShell(dir, run string) error {
	if run != "" {
		cmd := exec.Command("nix-shell", "--run", run, "shell.nix")
		cmd.Dir = dir
		cmd.Stdin = os.Stdin
		cmd.Stdout = os.Stdout
		cmd.Stderr = os.Stderr
		return cmd.Run()
	}

	cmd := exec.Command("nix-shell", "shell.nix")
	cmd.Dir = dir

	ptmx, err := pty.Start(cmd)
	if err != nil {
		return fmt.Errorf("failed to start review shell: %w", err)
	}
	defer ptmx.Close()

	// Propagate terminal resizes to the shell.
	winch := make(chan os.Signal, 1)
	signal.Notify(winch, unix.SIGWINCH)
	defer signal.Stop(winch)
	go func() {
		for range winch {
			_ = pty.InheritSize(os.Stdin, ptmx)
		}
	}()
	winch <- unix.SIGWINCH

	state, err := term.MakeRaw(os.Stdin.Fd())
	if err != nil {
		return fmt.Errorf("failed to set raw mode: %w", err)
	}
	defer term.Restore(os.Stdin.Fd(), state)

	go func() {
		_, _ = io.Copy(ptmx, os.Stdin)
	}()
	_, _ = io.Copy(os.Stdout, ptmx)

	return cmd.Wait()
}
