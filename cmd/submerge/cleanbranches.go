package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/prtools/submerge/internal/submerge"
)

var (
	argCleanForce  bool
	argCleanDryRun bool
	argCleanSkip   []string
)

var cleanBranchesCmd = &cobra.Command{
	Use:   "clean-branches <repo>",
	Short: "Delete all branches from your fork of a repository",
	Long: `Delete all branches from the fork of the given repository that belongs
to the authenticated user, except the ones listed via --skip.

Either --force or --dry-run must be passed.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		repo := args[0]

		cleaner := submerge.NewBranchCleaner(githubClient, argCleanSkip)

		result, err := cleaner.Clean(ctx, repo, argCleanDryRun)
		if err != nil {
			return err
		}

		for _, branch := range result.Skipped {
			if argCleanDryRun {
				fmt.Println("would not delete", branch)
			}
		}

		for _, branch := range result.Deleted {
			if argCleanDryRun {
				fmt.Println("would delete", branch)
			} else {
				fmt.Println("deleted", branch)
			}
		}

		return nil
	},
}

func init() {
	cleanBranchesCmd.Flags().BoolVarP(&argCleanForce, "force", "f", false,
		"delete all non-skipped branches")
	cleanBranchesCmd.Flags().BoolVarP(&argCleanDryRun, "dry-run", "n", false,
		"only show which branches would be deleted")
	cleanBranchesCmd.MarkFlagsMutuallyExclusive("force", "dry-run")
	cleanBranchesCmd.MarkFlagsOneRequired("force", "dry-run")
	cleanBranchesCmd.Flags().StringSliceVar(&argCleanSkip, "skip", []string{"master"},
		"branches that are never deleted")

	rootCmd.AddCommand(cleanBranchesCmd)
}
