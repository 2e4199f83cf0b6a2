package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/nix-community/nixpkgs-review/internal/review"
)

var wipCmd = &cobra.Command{
	Use:   "wip",
	Short: "Review uncommitted changes in the working tree",
	Long: `Review the local changes on top of the configured branch: commits not
yet on the branch plus the working tree diff. With --staged only staged
changes are considered.`,
	Args: cobra.NoArgs,
	RunE: runWip,
}

func init() {
	rootCmd.AddCommand(wipCmd)

	wipCmd.Flags().StringP("branch", "b", "", "branch the working tree is compared against")
	wipCmd.Flags().BoolP("staged", "s", false, "review only staged changes")
	_ = viper.BindPFlag("wip.branch", wipCmd.Flags().Lookup("branch"))
	_ = viper.BindPFlag("wip.staged", wipCmd.Flags().Lookup("staged"))
}

func runWip(cmd *cobra.Command, args []string) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.close()

	r, err := s.newReview("wip", review.CheckoutCommit, nil)
	if err != nil {
		return err
	}
	attrs, err := r.BuildWIP(s.cfg.Wip.Staged)
	if err != nil {
		return err
	}

	return s.finish([]reviewResult{{review: r, attrs: attrs}}, 1, false)
}
