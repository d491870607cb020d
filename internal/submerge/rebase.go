package submerge

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/prtools/submerge/internal/logfields"
	"github.com/prtools/submerge/internal/smerr"
)

// mergeableMaxRetries bounds how often the server-side mergeable flag is
// polled after opening the rebased pull request.
const mergeableMaxRetries = 5

var errMergeableNotComputed = errors.New("mergeable flag not yet computed")

// RebaserConfig configures a Rebaser.
type RebaserConfig struct {
	GH     GithubClient
	Remote string

	// Push pushes the rebased branch to the fork of the authenticated user.
	Push bool
	// OpenPR opens a new pull request for the rebased branch, implies Push.
	OpenPR bool
	// DeleteLocalBranch removes the local rebased branch again after it was
	// pushed.
	DeleteLocalBranch bool
}

// RebaseResult describes the outcome of a rebase workflow run.
type RebaseResult struct {
	// Branch is the name of the created local branch.
	Branch string
	// PullRequestURL is the URL of the newly opened pull request, empty
	// when none was opened.
	PullRequestURL string
	// Mergeable is the server-computed mergeable flag of the new pull
	// request, nil when it was not computed in time or no PR was opened.
	Mergeable *bool
}

// Rebaser replays the commits of one pull request onto a new base branch.
type Rebaser struct {
	gh             GithubClient
	remote         string
	push           bool
	openPR         bool
	deleteLocalBrn bool
	logger         *zap.Logger
}

func NewRebaser(cfg RebaserConfig) *Rebaser {
	remote := cfg.Remote
	if remote == "" {
		remote = "origin"
	}

	return &Rebaser{
		gh:             cfg.GH,
		remote:         remote,
		push:           cfg.Push || cfg.OpenPR,
		openPR:         cfg.OpenPR,
		deleteLocalBrn: cfg.DeleteLocalBranch,
		logger:         zap.L().Named("rebase_workflow"),
	}
}

// Rebase rebases the commits of pull request prNumber onto
// <remote>/<newBase> and creates a local branch rebased/<newBase>/<headref>
// for the result.
//
// The branch and commit the repository started on is restored on every exit
// path. smerr.ErrBranchExists is returned before anything is changed when the
// target branch already exists.
func (r *Rebaser) Rebase(ctx context.Context, repo GitClient, prNumber int, newBase string) (result *RebaseResult, err error) {
	owner, name, err := repo.RemoteInfo(ctx, r.remote)
	if err != nil {
		return nil, fmt.Errorf("resolving %s remote failed: %w", r.remote, err)
	}

	logger := r.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(name),
		logfields.PullRequest(prNumber),
	)

	// remember where we started, to go back to it when we are done
	originalRef, err := repo.CurrentBranch(ctx)
	if err != nil {
		originalRef, err = repo.CurrentSHA(ctx)
		if err != nil {
			return nil, fmt.Errorf("determining current branch and commit failed: %w", err)
		}
	}

	pr, err := r.gh.PullRequest(ctx, owner, name, prNumber)
	if err != nil {
		return nil, fmt.Errorf("fetching pull request %d failed: %w", prNumber, err)
	}

	logger.Info("rebasing pull request",
		logfields.Login(pr.Login),
		logfields.BaseBranch(pr.BaseRef),
		logfields.Commit(pr.HeadSHA),
		zap.Bool("github.merged", pr.Merged),
		zap.String("git.new_base", newBase),
		logfields.Event("rebase_started"),
	)

	newBranch := fmt.Sprintf("rebased/%s/%s", newBase, pr.HeadRef)
	if repo.BranchExists(ctx, newBranch) {
		return nil, fmt.Errorf("local branch %q: %w", newBranch, smerr.ErrBranchExists)
	}

	if err := repo.Fetch(ctx, r.remote); err != nil {
		return nil, fmt.Errorf("fetching %s failed: %w", r.remote, err)
	}

	if err := repo.FetchPullHead(ctx, r.remote, prNumber); err != nil {
		return nil, fmt.Errorf("fetching head of pull request %d failed: %w", prNumber, err)
	}

	branchPoint, err := FindBranchPoint(ctx, repo, pr.HeadSHA, r.remote+"/"+pr.BaseRef)
	if err != nil {
		return nil, err
	}

	branchCreated := false
	defer func() {
		if restoreErr := repo.Checkout(ctx, originalRef); restoreErr != nil {
			logger.Error("restoring original branch failed",
				logfields.Branch(originalRef),
				logfields.Event("rebase_branch_restore_failed"),
				zap.Error(restoreErr),
			)

			if err == nil {
				err = fmt.Errorf("restoring original branch %q failed: %w", originalRef, restoreErr)
			}

			return
		}

		if branchCreated && r.deleteLocalBrn && r.push && err == nil {
			if delErr := repo.DeleteLocalBranch(ctx, newBranch, true); delErr != nil {
				logger.Warn("deleting local rebased branch failed",
					logfields.Branch(newBranch),
					logfields.Event("rebase_branch_delete_failed"),
					zap.Error(delErr),
				)
			}
		}
	}()

	if err := repo.RebaseOnto(ctx, r.remote+"/"+newBase, branchPoint, pr.HeadSHA); err != nil {
		if abortErr := repo.AbortRebase(ctx); abortErr != nil {
			logger.Warn("aborting failed rebase failed",
				logfields.Event("rebase_abort_failed"),
				zap.Error(abortErr),
			)
		}

		return nil, fmt.Errorf("rebasing %s onto %s/%s failed: %w", pr.HeadSHA, r.remote, newBase, err)
	}

	if err := repo.NewBranch(ctx, newBranch, "HEAD"); err != nil {
		return nil, fmt.Errorf("creating branch %q failed: %w", newBranch, err)
	}
	branchCreated = true

	logger.Info("created local branch",
		logfields.Branch(newBranch),
		logfields.Event("rebase_branch_created"),
	)

	result = &RebaseResult{Branch: newBranch}

	if !r.push {
		return result, nil
	}

	login, err := r.gh.AuthenticatedLogin(ctx)
	if err != nil {
		return nil, fmt.Errorf("determining authenticated github login failed: %w", err)
	}

	forkURL := fmt.Sprintf("git@github.com:%s/%s.git", login, name)
	if err := repo.Push(ctx, forkURL, newBranch); err != nil {
		return nil, fmt.Errorf("pushing %q to %s failed: %w", newBranch, forkURL, err)
	}

	logger.Info("pushed rebased branch",
		logfields.Branch(newBranch),
		logfields.Remote(forkURL),
		logfields.Event("rebase_branch_pushed"),
	)

	if !r.openPR {
		return result, nil
	}

	title := fmt.Sprintf("%s (rebased onto %s)", pr.Title, newBase)
	body := fmt.Sprintf("This is the same as gh-%d but rebased onto %s.\n\n----\n\n%s", pr.Number, newBase, pr.Body)

	newPR, err := r.gh.CreatePullRequest(ctx, owner, name, title, body, newBase, login+":"+newBranch)
	if err != nil {
		return nil, fmt.Errorf("opening pull request for %q failed: %w", newBranch, err)
	}

	result.PullRequestURL = newPR.HTMLURL
	result.Mergeable = r.waitMergeable(ctx, owner, name, newPR.Number)

	if result.Mergeable != nil && !*result.Mergeable {
		logger.Warn("new pull request is not mergeable",
			logfields.PullRequest(newPR.Number),
			logfields.Event("rebase_pr_not_mergeable"),
		)
	}

	return result, nil
}

// waitMergeable polls the mergeable flag of a pull request until the server
// computed it, with exponential backoff.
// nil is returned when the flag did not settle within the retry limit, the
// flag is informational and not worth failing the workflow for.
func (r *Rebaser) waitMergeable(ctx context.Context, owner, name string, prNumber int) *bool {
	var mergeable *bool

	op := func() error {
		pr, err := r.gh.PullRequest(ctx, owner, name, prNumber)
		if err != nil {
			return backoff.Permanent(err)
		}

		if pr.Mergeable == nil {
			return errMergeableNotComputed
		}

		mergeable = pr.Mergeable
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond

	err := backoff.Retry(op, backoff.WithContext(backoff.WithMaxRetries(bo, mergeableMaxRetries), ctx))
	if err != nil {
		r.logger.Warn("mergeable flag of new pull request did not settle",
			logfields.PullRequest(prNumber),
			logfields.Event("rebase_mergeable_flag_unsettled"),
			zap.Error(err),
		)
	}

	return mergeable
}
