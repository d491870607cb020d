package submerge

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/prtools/submerge/internal/logfields"
)

// BranchAdminClient provides the github operations the BranchCleaner needs.
type BranchAdminClient interface {
	AuthenticatedLogin(ctx context.Context) (string, error)
	ListBranches(ctx context.Context, owner, repo string) ([]string, error)
	DeleteBranch(ctx context.Context, owner, repo, branch string) error
}

// BranchCleanResult partitions the branches of a repository into deleted and
// skipped ones.
// In dry-run mode Deleted holds the branches that would have been deleted.
type BranchCleanResult struct {
	Deleted []string
	Skipped []string
}

// BranchCleaner deletes the leftover branches from the fork of a repository
// that belongs to the authenticated user.
type BranchCleaner struct {
	gh     BranchAdminClient
	skip   []string
	logger *zap.Logger
}

// NewBranchCleaner creates a BranchCleaner.
// Branches named in skip are never deleted, matching is case-insensitive.
func NewBranchCleaner(gh BranchAdminClient, skip []string) *BranchCleaner {
	return &BranchCleaner{
		gh:     gh,
		skip:   skip,
		logger: zap.L().Named("branch_cleaner"),
	}
}

// Clean deletes all branches of <authenticated user>/<repo> that are not in
// the skip list.
// When dryRun is true nothing is deleted, the returned result describes what
// would have been done.
func (c *BranchCleaner) Clean(ctx context.Context, repo string, dryRun bool) (*BranchCleanResult, error) {
	login, err := c.gh.AuthenticatedLogin(ctx)
	if err != nil {
		return nil, fmt.Errorf("determining authenticated github login failed: %w", err)
	}

	logger := c.logger.With(
		logfields.RepositoryOwner(login),
		logfields.Repository(repo),
	)

	branches, err := c.gh.ListBranches(ctx, login, repo)
	if err != nil {
		return nil, fmt.Errorf("listing branches of %s/%s failed: %w", login, repo, err)
	}

	var result BranchCleanResult

	for _, branch := range branches {
		if c.skipped(branch) {
			result.Skipped = append(result.Skipped, branch)
			continue
		}

		if !dryRun {
			if err := c.gh.DeleteBranch(ctx, login, repo, branch); err != nil {
				return &result, fmt.Errorf("deleting branch %q failed: %w", branch, err)
			}

			logger.Info("deleted branch",
				logfields.Branch(branch),
				logfields.Event("branch_deleted"),
			)
		}

		result.Deleted = append(result.Deleted, branch)
	}

	return &result, nil
}

func (c *BranchCleaner) skipped(branch string) bool {
	for _, skip := range c.skip {
		if strings.EqualFold(skip, branch) {
			return true
		}
	}

	return false
}
