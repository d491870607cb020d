package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/prtools/submerge/internal/gitcmd"
	"github.com/prtools/submerge/internal/submerge"
)

var (
	argMergeInclude     []string
	argMergeExclude     []string
	argMergeFilterQuery string
	argMergeComment     bool
	argMergeReset       bool
	argMergeInfo        bool
)

var mergeCmd = &cobra.Command{
	Use:   "merge <base>",
	Short: "Merge matching open pull requests into the current branch",
	Long: `Merge all open pull requests opened against the given base branch whose
author is a public organization member or whose labels match the include
filter, into the currently checked out branch.

The same policy is applied recursively to every git submodule, a final
commit records the updated submodule pointers. Conflicting pull requests
are rolled back and skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		base := args[0]

		filter, err := submerge.NewFilter(base, argMergeInclude, argMergeExclude, argMergeFilterQuery)
		if err != nil {
			return err
		}

		repo := gitcmd.New(".")

		if argMergeReset {
			if err := repo.ResetHard(ctx, "HEAD"); err != nil {
				return fmt.Errorf("resetting repository failed: %w", err)
			}
		}

		workflow := submerge.NewWorkflow(submerge.WorkflowConfig{
			GH:            githubClient,
			Remote:        config.GitRemote,
			Comment:       argMergeComment,
			InfoOnly:      argMergeInfo,
			TestDirsFile:  config.TestDirectoriesFile,
			OpenSubmodule: openSubmodule,
		})

		result, err := workflow.Merge(ctx, repo, filter)
		if err != nil {
			return err
		}

		printOutcome(".", result.Outcome)
		for _, sub := range result.Submodules {
			printOutcome(sub.Path, sub.Outcome)
		}

		return nil
	},
}

func openSubmodule(parent submerge.GitClient, relPath string) submerge.GitClient {
	return gitcmd.New(filepath.Join(parent.Dir(), relPath))
}

func printOutcome(repoPath string, outcome *submerge.MergeOutcome) {
	for _, pr := range outcome.Merged {
		fmt.Printf("%s: merged PR %d (%s)\n", repoPath, pr.Number, pr.Title)
	}

	for _, conflict := range outcome.Conflicting {
		fmt.Printf("%s: conflicting PR %d (%s): %s\n",
			repoPath, conflict.PR.Number, conflict.PR.Title, conflict.Reason)
	}
}

func init() {
	mergeCmd.Flags().StringSliceVar(&argMergeInclude, "include", nil,
		"PR labels to include in the merge")
	mergeCmd.Flags().StringSliceVar(&argMergeExclude, "exclude", nil,
		"PR labels to exclude from the merge")
	mergeCmd.Flags().StringVar(&argMergeFilterQuery, "filter-query", "",
		"jq query evaluated against the PR JSON representation as an additional candidate filter, must return a boolean")
	mergeCmd.Flags().BoolVar(&argMergeComment, "comment", false,
		"add a comment to conflicting PRs")
	mergeCmd.Flags().BoolVar(&argMergeReset, "reset", false,
		"reset the current branch to its HEAD before merging")
	mergeCmd.Flags().BoolVar(&argMergeInfo, "info", false,
		"display merge candidates but do not merge them")

	rootCmd.AddCommand(mergeCmd)
}
