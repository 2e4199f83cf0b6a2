package cmd

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nix-community/nixpkgs-review/internal/errors"
	"github.com/nix-community/nixpkgs-review/internal/github"
	"github.com/nix-community/nixpkgs-review/internal/review"
)

var prCmd = &cobra.Command{
	Use:   "pr [number|url|first-last]...",
	Short: "Review one or more nixpkgs pull requests",
	Long: `Review one or more pull requests: fetch each PR, determine the packages
it changes, build them, and open a shell with the built packages in scope.

PRs can be given as numbers, GitHub URLs, or first-last ranges (the last
number is excluded). A PR that fails to check out or evaluate is skipped
with a warning; the remaining PRs are still reviewed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runPR,
}

func init() {
	rootCmd.AddCommand(prCmd)

	prCmd.Flags().String("eval", "", "evaluation mode: ofborg or local")
	prCmd.Flags().String("checkout", "", "tree state to build: merge or commit")
	prCmd.Flags().Bool("post-result", false, "post the report as a PR comment (requires a token)")

	_ = viper.BindPFlag("pr.eval", prCmd.Flags().Lookup("eval"))
	_ = viper.BindPFlag("pr.checkout", prCmd.Flags().Lookup("checkout"))
	_ = viper.BindPFlag("pr.post_result", prCmd.Flags().Lookup("post-result"))
}

var (
	prRangeRe = regexp.MustCompile(`^(\d+)-(\d+)$`)
	prURLRe   = regexp.MustCompile(`^https?://github\.com/[^/]+/[^/]+/pull/(\d+)(?:/.*)?$`)
)

// parsePRNumbers expands the command line arguments into PR numbers. A
// first-last range excludes its upper bound, matching how ranges are
// usually copied from a list of sequential PRs.
func parsePRNumbers(args []string) ([]int, error) {
	var prs []int
	for _, arg := range args {
		if m := prRangeRe.FindStringSubmatch(arg); m != nil {
			first, _ := strconv.Atoi(m[1])
			last, _ := strconv.Atoi(m[2])
			// Half-open: first >= last expands to nothing.
			for n := first; n < last; n++ {
				prs = append(prs, n)
			}
			continue
		}
		if m := prURLRe.FindStringSubmatch(arg); m != nil {
			n, _ := strconv.Atoi(m[1])
			prs = append(prs, n)
			continue
		}
		n, err := strconv.Atoi(arg)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("expected a PR number, URL or first-last range, got %q", arg)
		}
		prs = append(prs, n)
	}
	return prs, nil
}

func runPR(cmd *cobra.Command, args []string) error {
	prs, err := parsePRNumbers(args)
	if err != nil {
		return err
	}

	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	checkout, err := review.ParseCheckoutOption(s.cfg.PR.Checkout)
	if err != nil {
		return err
	}

	token := github.Token(s.cfg.Token)
	if s.cfg.PR.PostResult && token == "" {
		return fmt.Errorf("%w: posting results requires a token via --token, GITHUB_TOKEN or the config file", errors.ErrMissingToken)
	}
	client, err := github.NewClient(token, s.cfg.Remote)
	if err != nil {
		return err
	}

	var results []reviewResult
	for _, number := range prs {
		r, err := s.newReview(fmt.Sprintf("pr-%d", number), checkout, client)
		if err != nil {
			return err
		}
		attrs, err := r.BuildPR(number)
		if err != nil {
			if isReviewFailure(err) {
				s.logger.Warn("skipping PR", "pr", number, "error", err.Error())
				continue
			}
			return err
		}
		results = append(results, reviewResult{number: number, review: r, attrs: attrs})
	}

	return s.finish(results, len(prs), s.cfg.PR.PostResult)
}
