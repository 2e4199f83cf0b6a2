package nix

import (
	"fmt"
	"io"
	"strings"
)

// fakeExecutor is a scripted Executor for tests. Responses are keyed by
// command name; quietFailures marks nix-store validity checks that should
// fail by store path.
type fakeExecutor struct {
	responses     map[string][]byte
	errs          map[string]error
	quietFailures map[string]bool
	calls         []string
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{
		responses:     make(map[string][]byte),
		errs:          make(map[string]error),
		quietFailures: make(map[string]bool),
	}
}

func (f *fakeExecutor) record(name string, args ...string) string {
	call := name + " " + strings.Join(args, " ")
	f.calls = append(f.calls, call)
	return call
}

func (f *fakeExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	f.record(name, args...)
	if err, ok := f.errs[name]; ok {
		return f.responses[name], err
	}
	if out, ok := f.responses[name]; ok {
		return out, nil
	}
	return nil, fmt.Errorf("unscripted command: %s", name)
}

func (f *fakeExecutor) RunQuiet(dir string, name string, args ...string) error {
	call := f.record(name, args...)
	for needle := range f.quietFailures {
		if strings.Contains(call, needle) {
			return fmt.Errorf("scripted failure for %s", needle)
		}
	}
	if err, ok := f.errs[name]; ok {
		return err
	}
	return nil
}

func (f *fakeExecutor) RunStream(dir string, stdout, stderr io.Writer, name string, args ...string) error {
	f.record(name, args...)
	if out, ok := f.responses[name]; ok {
		stdout.Write(out)
	}
	return f.errs[name]
}

func (f *fakeExecutor) RunWithInput(dir string, input []byte, name string, args ...string) ([]byte, error) {
	return f.Run(dir, name, args...)
}

func (f *fakeExecutor) calledWith(substr string) bool {
	for _, call := range f.calls {
		if strings.Contains(call, substr) {
			return true
		}
	}
	return false
}
