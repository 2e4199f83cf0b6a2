package nix

// Attr is one platform-qualified build target produced by evaluation and
// consumed by the builder. Its build outcome is recorded in place once the
// builder has run.
type Attr struct {
	// Name is the attribute path within the package set.
	Name string
	// System is the target platform the attr is built for.
	System string
	// Exists reports whether the attr resolves in the package set.
	Exists bool
	// Broken reports whether the attr is marked broken in its metadata.
	Broken bool
	// Path is the store path the attr builds to, when known.
	Path string
	// Failed records a builder failure for this attr.
	Failed bool
}

// Buildable reports whether the attr should be handed to the builder.
func (a *Attr) Buildable() bool {
	return a.Exists && !a.Broken
}

// Succeeded reports whether the attr resolved, was not broken, and built
// without failure.
func (a *Attr) Succeeded() bool {
	return a.Exists && !a.Broken && !a.Failed
}
