package nix

import "runtime"

// CurrentSystem returns the nix system identifier for the host platform.
func CurrentSystem() string {
	arch := runtime.GOARCH
	switch arch {
	case "amd64":
		arch = "x86_64"
	case "arm64":
		arch = "aarch64"
	case "386":
		arch = "i686"
	}

	os := runtime.GOOS
	switch os {
	case "darwin":
		return arch + "-darwin"
	default:
		return arch + "-linux"
	}
}

// ResolveSystems expands the configured target platform list, replacing the
// "current" sentinel with the host platform and dropping duplicates while
// preserving order.
func ResolveSystems(systems []string) []string {
	seen := make(map[string]bool, len(systems))
	resolved := make([]string, 0, len(systems))
	for _, system := range systems {
		if system == "current" {
			system = CurrentSystem()
		}
		if seen[system] {
			continue
		}
		seen[system] = true
		resolved = append(resolved, system)
	}
	return resolved
}
