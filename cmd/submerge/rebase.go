package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/prtools/submerge/internal/gitcmd"
	"github.com/prtools/submerge/internal/submerge"
)

var (
	argRebaseRemote   string
	argRebaseNoPush   bool
	argRebaseNoPR     bool
	argRebaseNoDelete bool
)

var rebaseCmd = &cobra.Command{
	Use:   "rebase <PR> <newbase>",
	Short: "Rebase a pull request onto another base branch",
	Long: `Rebase the commits of a pull request onto another base branch.

The commits that belong to the pull request are determined by comparing
its first-parent history with the history of its base branch. The result
is placed on a new local branch named rebased/<newbase>/<headref>, pushed
to the fork of the authenticated user and opened as a new pull request,
unless disabled.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		prNumber, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid pull request number %q: %w", args[0], err)
		}
		newBase := args[1]

		remote := argRebaseRemote
		if remote == "" {
			remote = config.GitRemote
		}

		rebaser := submerge.NewRebaser(submerge.RebaserConfig{
			GH:                githubClient,
			Remote:            remote,
			Push:              !argRebaseNoPush,
			OpenPR:            !argRebaseNoPush && !argRebaseNoPR,
			DeleteLocalBranch: !argRebaseNoDelete,
		})

		result, err := rebaser.Rebase(ctx, gitcmd.New("."), prNumber, newBase)
		if err != nil {
			return err
		}

		fmt.Printf("created branch %s\n", result.Branch)

		if result.PullRequestURL != "" {
			fmt.Printf("opened %s\n", result.PullRequestURL)
		}

		if result.Mergeable != nil && !*result.Mergeable {
			fmt.Println("WARNING: the new PR is not mergeable")
		}

		return nil
	},
}

func init() {
	rebaseCmd.Flags().StringVar(&argRebaseRemote, "remote", "",
		"name of the remote to use, overrides the configuration file")
	rebaseCmd.Flags().BoolVar(&argRebaseNoPush, "no-push", false,
		"do not push the rebased branch, implies --no-pr")
	rebaseCmd.Flags().BoolVar(&argRebaseNoPR, "no-pr", false,
		"do not open a PR for the rebased branch")
	rebaseCmd.Flags().BoolVar(&argRebaseNoDelete, "no-delete", false,
		"do not delete the local rebased branch after pushing it")

	rootCmd.AddCommand(rebaseCmd)
}
