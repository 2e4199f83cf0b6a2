// Package review drives the end-to-end review pipeline for one change:
// checkout per the configured strategy, evaluation dispatch (precomputed
// ofborg result or local evaluation), building the affected attrs, and
// reporting aggregated outcomes. Failures are caught at the review boundary
// so one broken change never aborts the remaining ones.
package review

import (
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/sourcegraph/conc/pool"

	"github.com/nix-community/nixpkgs-review/internal/allow"
	"github.com/nix-community/nixpkgs-review/internal/builddir"
	"github.com/nix-community/nixpkgs-review/internal/config"
	"github.com/nix-community/nixpkgs-review/internal/errors"
	"github.com/nix-community/nixpkgs-review/internal/github"
	"github.com/nix-community/nixpkgs-review/internal/logging"
	"github.com/nix-community/nixpkgs-review/internal/nix"
)

// GitHubClient is the part of the GitHub API the review pipeline consumes.
type GitHubClient interface {
	GetPullRequest(number int) (*github.PullRequest, error)
	OfborgEval(headSHA string) (map[string][]string, error)
	PostComment(number int, body string) error
}

// Options configures a Review.
type Options struct {
	Builddir *builddir.Builddir
	// RepoDir is the enclosing nixpkgs checkout the tool runs in.
	RepoDir  string
	Config   *config.Config
	Allow    allow.AllowedFeatures
	Checkout CheckoutOption
	// Client may be nil for rev and wip reviews, which never talk to
	// GitHub.
	Client   GitHubClient
	Executor nix.Executor
	Logger   *logging.Logger
	// Systems is the resolved target platform list.
	Systems []string
	// Output receives builder progress; defaults to stdout.
	Output io.Writer
}

// Review runs the pipeline for one change.
type Review struct {
	builddir *builddir.Builddir
	repoDir  string
	cfg      *config.Config
	allow    allow.AllowedFeatures
	checkout CheckoutOption
	client   GitHubClient
	executor nix.Executor
	logger   *logging.Logger
	systems  []string
	remote   string
	output   io.Writer
}

// New creates a Review from the given options.
func New(opts Options) *Review {
	output := opts.Output
	if output == nil {
		output = os.Stdout
	}
	return &Review{
		builddir: opts.Builddir,
		repoDir:  opts.RepoDir,
		cfg:      opts.Config,
		allow:    opts.Allow,
		checkout: opts.Checkout,
		client:   opts.Client,
		executor: opts.Executor,
		logger:   opts.Logger,
		systems:  opts.Systems,
		remote:   opts.Config.Remote,
		output:   output,
	}
}

// BuildPR runs checkout, evaluation and build for one PR and returns the
// per-system attr outcomes.
func (r *Review) BuildPR(number int) (map[string][]nix.Attr, error) {
	logger := r.logger.WithPR(number)

	pr, err := r.client.GetPullRequest(number)
	if err != nil {
		return nil, errors.NewReviewError("failed to fetch PR metadata", err).WithPR(number)
	}
	logger.Info("reviewing PR", "title", pr.Title, "base", pr.BaseRef)

	baseRev, headRev, err := r.checkoutPR(number, pr.BaseRef)
	if err != nil {
		return nil, err
	}

	var attrs map[string][]nix.Attr
	if r.cfg.PR.Eval == config.EvalOfborg {
		attrs, err = r.ofborgEval(pr, headRev, logger)
		if errors.Is(err, errors.ErrNoEvalResult) {
			logger.Warn("no ofborg evaluation found, falling back to local evaluation")
			attrs, err = r.localEval(baseRev, headRev, logger)
		}
	} else {
		attrs, err = r.localEval(baseRev, headRev, logger)
	}
	if err != nil {
		return nil, err
	}

	r.build(attrs, logger)
	return attrs, nil
}

// BuildCommit reviews a bare commit against the configured base branch.
func (r *Review) BuildCommit(commit string) (map[string][]nix.Attr, error) {
	logger := r.logger.With("commit", commit)

	if err := r.fetch(fmt.Sprintf("%s:%s", r.cfg.Rev.Branch, refBase)); err != nil {
		return nil, err
	}
	headRev, err := r.revParse(commit)
	if err != nil {
		return nil, err
	}
	baseRev, err := r.mergeBase(refBase, headRev)
	if err != nil {
		return nil, err
	}

	attrs, err := r.localEval(baseRev, headRev, logger)
	if err != nil {
		return nil, err
	}

	r.build(attrs, logger)
	return attrs, nil
}

// BuildWIP reviews the local changes on top of the configured base branch:
// commits not yet on the branch plus the working-tree diff (staged changes
// only when staged is set).
func (r *Review) BuildWIP(staged bool) (map[string][]nix.Attr, error) {
	logger := r.logger.With("review", "wip")

	if err := r.fetch(fmt.Sprintf("%s:%s", r.cfg.Wip.Branch, refBase)); err != nil {
		return nil, err
	}
	head, err := r.revParse("HEAD")
	if err != nil {
		return nil, err
	}
	baseRev, err := r.mergeBase(refBase, head)
	if err != nil {
		return nil, err
	}

	diffArgs := []string{"diff", "HEAD"}
	if staged {
		diffArgs = []string{"diff", "--staged"}
	}
	patch, err := r.executor.Run(r.repoDir, "git", diffArgs...)
	if err != nil {
		return nil, errors.NewGitError("failed to collect working tree changes", err).
			WithOutput(string(patch))
	}

	if err := r.worktree(baseRev); err != nil {
		return nil, err
	}
	base, err := r.listAllSystems(logger)
	if err != nil {
		return nil, err
	}

	if err := r.checkoutInWorktree(head); err != nil {
		return nil, err
	}
	if len(patch) > 0 {
		out, err := r.executor.RunWithInput(r.builddir.WorktreeDir(), patch, "git", "apply", "--index", "-")
		if err != nil {
			return nil, errors.NewGitError("failed to apply working tree changes", err).
				WithOutput(string(out))
		}
	}
	head2, err := r.listAllSystems(logger)
	if err != nil {
		return nil, err
	}

	attrs, err := r.resolveChanged(base, head2, logger)
	if err != nil {
		return nil, err
	}

	r.build(attrs, logger)
	return attrs, nil
}

// systemResult pairs one system with its evaluation output so parallel
// tasks can be reassembled into a map regardless of completion order.
type systemResult[T any] struct {
	system string
	value  T
}

// forEachSystem runs fn for every target system with bounded parallelism
// and reassembles the results keyed by system.
func forEachSystem[T any](r *Review, fn func(system string) (T, error)) (map[string]T, error) {
	p := pool.NewWithResults[systemResult[T]]().
		WithErrors().
		WithMaxGoroutines(r.cfg.NumParallelEvals)

	for _, system := range r.systems {
		system := system
		p.Go(func() (systemResult[T], error) {
			value, err := fn(system)
			return systemResult[T]{system: system, value: value}, err
		})
	}

	results, err := p.Wait()
	if err != nil {
		return nil, err
	}

	out := make(map[string]T, len(results))
	for _, res := range results {
		out[res.system] = res.value
	}
	return out, nil
}

// listAllSystems evaluates the worktree's package set for every target
// system.
func (r *Review) listAllSystems(logger *logging.Logger) (map[string]map[string]string, error) {
	logger.WithStage("eval").Info("listing packages", "systems", len(r.systems))
	return forEachSystem(r, func(system string) (map[string]string, error) {
		return nix.ListPackages(r.executor, r.builddir.WorktreeDir(), system, r.allow)
	})
}

// localEval computes the affected attrs by evaluating the package set
// before and after the change and diffing the results per system.
func (r *Review) localEval(baseRev, headRev string, logger *logging.Logger) (map[string][]nix.Attr, error) {
	if err := r.worktree(baseRev); err != nil {
		return nil, err
	}
	base, err := r.listAllSystems(logger)
	if err != nil {
		return nil, err
	}

	if err := r.checkoutInWorktree(headRev); err != nil {
		return nil, err
	}
	head, err := r.listAllSystems(logger)
	if err != nil {
		return nil, err
	}

	return r.resolveChanged(base, head, logger)
}

// resolveChanged diffs per-system package listings and resolves the changed
// names to buildable attrs.
func (r *Review) resolveChanged(base, head map[string]map[string]string, logger *logging.Logger) (map[string][]nix.Attr, error) {
	return forEachSystem(r, func(system string) ([]nix.Attr, error) {
		changed := nix.DiffPackageNames(base[system], head[system])
		changed = r.filterNames(changed)
		logger.WithSystem(system).Info("changed attrs", "count", len(changed))
		return nix.EvalAttrs(r.executor, r.builddir.WorktreeDir(), system, r.allow, changed)
	})
}

// ofborgEval fetches the precomputed evaluation result and resolves the
// named attrs against the checked-out tree.
func (r *Review) ofborgEval(pr *github.PullRequest, headRev string, logger *logging.Logger) (map[string][]nix.Attr, error) {
	packages, err := r.client.OfborgEval(pr.HeadSHA)
	if errors.Is(err, errors.ErrNoEvalResult) {
		return nil, err
	}
	if err != nil {
		// Network or API failures on the remote path fail this PR's
		// evaluation, not the whole run.
		return nil, errors.NewEvalError("failed to fetch precomputed evaluation result", err)
	}

	if err := r.worktree(headRev); err != nil {
		return nil, err
	}

	return forEachSystem(r, func(system string) ([]nix.Attr, error) {
		names := r.filterNames(packages[system])
		logger.WithSystem(system).Info("ofborg-evaluated attrs", "count", len(names))
		return nix.EvalAttrs(r.executor, r.builddir.WorktreeDir(), system, r.allow, names)
	})
}

// filterNames applies the include/exclude name and regex filters.
func (r *Review) filterNames(names []string) []string {
	filtered := make([]string, 0, len(names))
	for _, name := range names {
		if !r.included(name) || r.skipped(name) {
			continue
		}
		filtered = append(filtered, name)
	}
	return filtered
}

func (r *Review) included(name string) bool {
	if len(r.cfg.Packages) == 0 && len(r.cfg.PackageRegexps()) == 0 {
		return true
	}
	if slices.Contains(r.cfg.Packages, name) {
		return true
	}
	for _, re := range r.cfg.PackageRegexps() {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

func (r *Review) skipped(name string) bool {
	if slices.Contains(r.cfg.SkippedPackages, name) {
		return true
	}
	for _, re := range r.cfg.SkippedPackageRegexps() {
		if re.MatchString(name) {
			return true
		}
	}
	return false
}

// build invokes the builder for each system's attrs, sequentially per
// system to keep the working tree owned by one build at a time. Outcomes
// are recorded on the attrs in place.
func (r *Review) build(attrs map[string][]nix.Attr, logger *logging.Logger) {
	systems := make([]string, 0, len(attrs))
	for system := range attrs {
		systems = append(systems, system)
	}
	slices.Sort(systems)

	for _, system := range systems {
		nix.Build(r.executor, r.output, r.output, r.builddir.WorktreeDir(), attrs[system], nix.BuildOptions{
			Graph:     r.cfg.BuildGraph,
			ExtraArgs: r.cfg.BuildArgs,
			Sandbox:   r.cfg.Sandbox,
			System:    system,
		}, logger.WithStage("build"))
	}
}

// StartReview reports one recorded review: styled console output, optional
// markdown to stdout, optional PR comment. It returns whether every attr
// built successfully.
func (r *Review) StartReview(attrs map[string][]nix.Attr, number int, postResult, printResult bool) bool {
	report := NewReport(attrs)

	fmt.Fprintln(r.output, report.Console())

	title := "nixpkgs-review"
	if number > 0 {
		title = fmt.Sprintf("nixpkgs-review pr %d", number)
	}
	if printResult {
		fmt.Fprintln(r.output, report.Markdown(title))
	}
	if postResult && r.client != nil && number > 0 {
		if err := r.client.PostComment(number, report.Markdown(title)); err != nil {
			r.logger.Warn("failed to post review result", "pr", number, "error", err.Error())
		}
	}

	return report.Succeeded()
}

// PrepareShell writes the shell expression exposing the built attrs into the
// session directory and returns the directory the shell should start in.
func (r *Review) PrepareShell(attrs map[string][]nix.Attr) (string, error) {
	var all []nix.Attr
	for _, systemAttrs := range attrs {
		all = append(all, systemAttrs...)
	}
	if _, err := nix.WriteShellNix(r.builddir.Path(), all); err != nil {
		return "", err
	}
	return r.builddir.Path(), nil
}

// Cleanup drops git bookkeeping left behind by released sessions.
func (r *Review) Cleanup() {
	r.pruneWorktrees()
}
