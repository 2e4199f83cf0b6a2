package nix

import (
	"errors"
	"io"
	"testing"

	"github.com/nix-community/nixpkgs-review/internal/logging"
)

func TestBuild_MarksPerAttrOutcomes(t *testing.T) {
	x := newFakeExecutor()
	// Builder exits non-zero under keep-going; that alone must not fail
	// every attr.
	x.errs["nix"] = errors.New("exit status 1")
	x.quietFailures["/nix/store/bad-pkg"] = true

	attrs := []Attr{
		{Name: "good", System: "x86_64-linux", Exists: true, Path: "/nix/store/good-pkg"},
		{Name: "bad", System: "x86_64-linux", Exists: true, Path: "/nix/store/bad-pkg"},
		{Name: "missing", System: "x86_64-linux", Exists: false},
		{Name: "broken", System: "x86_64-linux", Exists: true, Broken: true},
	}

	Build(x, io.Discard, io.Discard, "/tmp/nixpkgs", attrs, BuildOptions{
		Graph:  "nix",
		System: "x86_64-linux",
	}, logging.NopLogger())

	if attrs[0].Failed || !attrs[0].Succeeded() {
		t.Errorf("good attr should succeed: %+v", attrs[0])
	}
	if !attrs[1].Failed {
		t.Errorf("bad attr should be marked failed: %+v", attrs[1])
	}
	if attrs[2].Failed || attrs[3].Failed {
		t.Error("non-buildable attrs must not be marked as build failures")
	}
	if attrs[2].Succeeded() || attrs[3].Succeeded() {
		t.Error("missing and broken attrs must not count as succeeded")
	}
}

func TestBuild_CommandLine(t *testing.T) {
	x := newFakeExecutor()

	attrs := []Attr{
		{Name: "firefox", System: "x86_64-linux", Exists: true, Path: "/nix/store/x-firefox"},
	}

	Build(x, io.Discard, io.Discard, "/tmp/nixpkgs", attrs, BuildOptions{
		Graph:     "nom",
		ExtraArgs: `--max-jobs 4 --argstr greeting "hello world"`,
		Sandbox:   true,
		System:    "x86_64-linux",
	}, logging.NopLogger())

	if !x.calledWith("nom ") {
		t.Errorf("nom backend should invoke nom: %v", x.calls)
	}
	if !x.calledWith("--keep-going") {
		t.Errorf("builder should keep going past failures: %v", x.calls)
	}
	if !x.calledWith("sandbox true") {
		t.Errorf("sandbox option missing: %v", x.calls)
	}
	if !x.calledWith("--argstr greeting hello world") {
		t.Errorf("quoted extra args should survive splitting: %v", x.calls)
	}
}

func TestBuild_NothingBuildable(t *testing.T) {
	x := newFakeExecutor()
	attrs := []Attr{{Name: "ghost", System: "x86_64-linux", Exists: false}}

	Build(x, io.Discard, io.Discard, "/tmp/nixpkgs", attrs, BuildOptions{Graph: "nix", System: "x86_64-linux"}, logging.NopLogger())

	if len(x.calls) != 0 {
		t.Errorf("builder should not run with nothing buildable: %v", x.calls)
	}
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{"empty", "", nil},
		{"simple", "--max-jobs 4", []string{"--max-jobs", "4"}},
		{"double quotes", `--argstr a "two words"`, []string{"--argstr", "a", "two words"}},
		{"single quotes", `--argstr a 'two words'`, []string{"--argstr", "a", "two words"}},
		{"collapsed whitespace", "  -j   4  ", []string{"-j", "4"}},
		{"empty quoted arg", `""`, []string{""}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitArgs(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("SplitArgs(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("SplitArgs(%q)[%d] = %q, want %q", tt.input, i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestResolveSystems(t *testing.T) {
	current := CurrentSystem()

	tests := []struct {
		name  string
		input []string
		want  []string
	}{
		{"current sentinel", []string{"current"}, []string{current}},
		{"explicit systems", []string{"x86_64-linux", "aarch64-darwin"}, []string{"x86_64-linux", "aarch64-darwin"}},
		{"deduplicates", []string{current, "current"}, []string{current}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolveSystems(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("ResolveSystems(%v) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("ResolveSystems(%v) = %v, want %v", tt.input, got, tt.want)
				}
			}
		})
	}
}
