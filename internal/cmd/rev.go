package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nix-community/nixpkgs-review/internal/review"
)

var revCmd = &cobra.Command{
	Use:   "rev <commit>",
	Short: "Review the packages changed by a commit",
	Long: `Review a commit already present in the repository: its changed packages
are computed against the merge base with the configured branch.`,
	Args: cobra.ExactArgs(1),
	RunE: runRev,
}

func init() {
	rootCmd.AddCommand(revCmd)

	revCmd.Flags().StringP("branch", "b", "", "branch the commit is compared against")
	_ = viper.BindPFlag("rev.branch", revCmd.Flags().Lookup("branch"))
}

func runRev(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	r, err := s.newReview("rev", review.CheckoutCommit, nil)
	if err != nil {
		return err
	}
	attrs, err := r.BuildCommit(args[0])
	if err != nil {
		return err
	}

	return s.finish([]reviewResult{{review: r, attrs: attrs}}, 1, false)
}
