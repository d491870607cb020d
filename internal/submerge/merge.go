package submerge

import (
	"context"
	"fmt"
	"os"
	"sort"

	"go.uber.org/zap"

	"github.com/prtools/submerge/internal/githubclt"
	"github.com/prtools/submerge/internal/logfields"
)

// remoteNamePrefix prefixes the synthetic fetch remotes registered for the
// head-branch owners of merge candidates.
const remoteNamePrefix = "merge_"

// Conflict records a candidate whose merge attempt failed.
type Conflict struct {
	PR     *githubclt.PullRequest
	Reason string
}

// MergeOutcome partitions a CandidateSet into merged and conflicting pull
// requests. Every candidate appears in exactly one partition.
type MergeOutcome struct {
	Merged      []*githubclt.PullRequest
	Conflicting []Conflict
}

// RemoteRegistry maps synthetic remote names to clone URLs.
// Its lifecycle is scoped to one merge run, the remotes are removed again on
// completion or failure.
type RemoteRegistry map[string]string

// NewRemoteRegistry builds the registry from the unique head-branch owners of
// the candidates. Private repositories get ssh URLs, public ones git URLs.
func NewRemoteRegistry(candidates []*githubclt.PullRequest, repo string, private bool) RemoteRegistry {
	result := RemoteRegistry{}

	for _, pr := range candidates {
		name := remoteNamePrefix + pr.HeadLogin
		if _, exists := result[name]; exists {
			continue
		}

		if private {
			result[name] = fmt.Sprintf("git@github.com:%s/%s.git", pr.HeadLogin, repo)
		} else {
			result[name] = fmt.Sprintf("git://github.com/%s/%s.git", pr.HeadLogin, repo)
		}
	}

	return result
}

// sortedNames returns the remote names in deterministic order.
func (r RemoteRegistry) sortedNames() []string {
	names := make([]string, 0, len(r))
	for name := range r {
		names = append(names, name)
	}
	sort.Strings(names)

	return names
}

// MergeEngine merges the candidates of one repository into its current
// branch, one at a time.
type MergeEngine struct {
	git     GitClient
	gh      GithubClient
	owner   string
	repo    string
	comment bool
	logger  *zap.Logger
}

// NewMergeEngine creates a MergeEngine for one repository working tree.
// When comment is true, a conflict explanation is posted on the pull request
// of every failed merge, provided the github client has write credentials.
func NewMergeEngine(git GitClient, gh GithubClient, owner, repo string, comment bool) *MergeEngine {
	return &MergeEngine{
		git:     git,
		gh:      gh,
		owner:   owner,
		repo:    repo,
		comment: comment,
		logger: zap.L().Named("merge_engine").With(
			logfields.RepositoryOwner(owner),
			logfields.Repository(repo),
		),
	}
}

// Merge attempts to merge every candidate in order with a non-fast-forward
// merge commit and returns the resulting partition.
//
// A conflicting merge is rolled back to the exact pre-attempt commit before
// the next candidate is evaluated, it never aborts the run. Later candidates
// are merged relative to the evolving tree, not the original base, so which
// earlier candidates succeeded influences conflict detection.
//
// The fetch remotes registered for the run are removed again regardless of
// the outcome.
func (e *MergeEngine) Merge(ctx context.Context, candidates *CandidateSet, workflowID string) (*MergeOutcome, error) {
	var outcome MergeOutcome

	if len(candidates.Candidates) == 0 {
		return &outcome, nil
	}

	private, err := e.gh.RepoPrivate(ctx, e.owner, e.repo)
	if err != nil {
		return nil, fmt.Errorf("determining repository visibility failed: %w", err)
	}

	registry := NewRemoteRegistry(candidates.Candidates, e.repo, private)
	defer e.removeRemotes(ctx, registry)

	for _, name := range registry.sortedNames() {
		if err := e.git.AddRemote(ctx, name, registry[name]); err != nil {
			return nil, fmt.Errorf("registering remote %s failed: %w", name, err)
		}

		if err := e.git.Fetch(ctx, name); err != nil {
			return nil, fmt.Errorf("fetching remote %s failed: %w", name, err)
		}
	}

	for _, pr := range candidates.Candidates {
		logger := e.logger.With(logfields.PullRequest(pr.Number))

		premergeSHA, err := e.git.CurrentSHA(ctx)
		if err != nil {
			return nil, fmt.Errorf("reading rollback commit failed: %w", err)
		}

		msg := fmt.Sprintf("%s: PR %d (%s)", workflowID, pr.Number, pr.Title)

		mergeErr := e.git.MergeNoFF(ctx, msg, pr.HeadSHA)
		if mergeErr == nil {
			logger.Info("merged pull request",
				logfields.Commit(pr.HeadSHA),
				logfields.Event("pull_request_merged"),
			)

			outcome.Merged = append(outcome.Merged, pr)
			continue
		}

		// roll back to the exact pre-attempt commit, no partial
		// merge state may survive
		if err := e.git.ResetHard(ctx, premergeSHA); err != nil {
			return nil, fmt.Errorf("rolling back conflicting merge of PR %d to %s failed: %w", pr.Number, premergeSHA, err)
		}

		logger.Info("merge conflicted, rolled back",
			logfields.Commit(premergeSHA),
			logfields.Event("pull_request_merge_conflicted"),
			zap.Error(mergeErr),
		)

		outcome.Conflicting = append(outcome.Conflicting, Conflict{PR: pr, Reason: mergeErr.Error()})

		if e.comment && e.gh.CanWrite() {
			if err := e.gh.CreateIssueComment(ctx, e.owner, e.repo, pr.Number, conflictComment()); err != nil {
				logger.Warn("creating conflict comment failed",
					logfields.Event("conflict_comment_failed"),
					zap.Error(err),
				)
			}
		}
	}

	if err := e.git.SubmoduleUpdate(ctx); err != nil {
		return nil, fmt.Errorf("updating submodules after merging failed: %w", err)
	}

	e.logger.Info("merge run finished",
		zap.Int("merged_count", len(outcome.Merged)),
		zap.Int("conflicting_count", len(outcome.Conflicting)),
		logfields.Event("merge_run_finished"),
	)

	return &outcome, nil
}

func (e *MergeEngine) removeRemotes(ctx context.Context, registry RemoteRegistry) {
	for _, name := range registry.sortedNames() {
		if err := e.git.RemoveRemote(ctx, name); err != nil {
			e.logger.Error("removing remote failed",
				logfields.Remote(name),
				logfields.Event("remote_removal_failed"),
				zap.Error(err),
			)
		}
	}
}

// conflictComment returns the text posted on conflicting pull requests.
// When the run happens inside a Jenkins job, a reference to the build is
// appended.
func conflictComment() string {
	msg := "Conflicting PR."

	jobName := os.Getenv("JOB_NAME")
	buildNumber := os.Getenv("BUILD_NUMBER")
	buildURL := os.Getenv("BUILD_URL")

	if jobName != "" && buildNumber != "" && buildURL != "" {
		msg += fmt.Sprintf(
			" Removed from build [%s#%s](%s). See the [console output](%s/consoleText) for more details.",
			jobName, buildNumber, buildURL, buildURL,
		)
	}

	return msg
}
