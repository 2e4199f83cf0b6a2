package buildenv

import (
	"os"
	"strings"
	"testing"

	"github.com/nix-community/nixpkgs-review/internal/logging"
)

func TestNew_WritesConfigAndExportsEnv(t *testing.T) {
	t.Setenv("NIXPKGS_CONFIG", "/previous/config.nix")

	env, err := New(true, `{ cudaSupport = true; }`, logging.NopLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer env.Close()

	if got := os.Getenv("NIXPKGS_CONFIG"); got != env.NixpkgsConfigPath() {
		t.Errorf("NIXPKGS_CONFIG = %q, want %q", got, env.NixpkgsConfigPath())
	}

	content, err := os.ReadFile(env.NixpkgsConfigPath())
	if err != nil {
		t.Fatalf("reading derived config: %v", err)
	}
	expr := string(content)
	if !strings.Contains(expr, "allowAliases = true") {
		t.Errorf("derived config = %q, want alias policy included", expr)
	}
	if !strings.Contains(expr, "cudaSupport = true") {
		t.Errorf("derived config = %q, want extra config merged", expr)
	}

	if err := env.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if got := os.Getenv("NIXPKGS_CONFIG"); got != "/previous/config.nix" {
		t.Errorf("Close() should restore NIXPKGS_CONFIG, got %q", got)
	}
	if _, err := os.Stat(env.NixpkgsConfigPath()); !os.IsNotExist(err) {
		t.Errorf("Close() should remove the derived config file")
	}
}

func TestNew_UnsetsEnvWhenNoPrevious(t *testing.T) {
	os.Unsetenv("NIXPKGS_CONFIG")

	env, err := New(false, "{ }", logging.NopLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if _, ok := os.LookupEnv("NIXPKGS_CONFIG"); ok {
		t.Error("Close() should unset NIXPKGS_CONFIG when it was not set before")
	}
}

func TestNew_RejectsNonAttrsetConfig(t *testing.T) {
	tests := []struct {
		name  string
		extra string
	}{
		{"bare string", "allowUnfree = true"},
		{"unterminated", "{ allowUnfree = true;"},
		{"empty", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := New(false, tt.extra, logging.NopLogger()); err == nil {
				t.Errorf("New(%q) should fail", tt.extra)
			}
		})
	}
}

func TestClose_Idempotent(t *testing.T) {
	env, err := New(false, "{ }", logging.NopLogger())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	if err := env.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	if err := env.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
