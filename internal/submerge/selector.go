package submerge

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/prtools/submerge/internal/githubclt"
	"github.com/prtools/submerge/internal/logfields"
)

// CandidateSet is the ordered result of candidate selection.
// Candidates are ordered ascending by pull request number so that merge
// commit sequences are reproducible across runs.
type CandidateSet struct {
	Candidates []*githubclt.PullRequest

	// TestDirectories are the directories requested via test directives in
	// candidate comments, in candidate order.
	TestDirectories []string
}

// Selector filters the open pull requests of a repository against a Filter.
type Selector struct {
	gh     GithubClient
	logger *zap.Logger
}

func NewSelector(gh GithubClient) *Selector {
	return &Selector{
		gh:     gh,
		logger: zap.L().Named("candidate_selector"),
	}
}

// SelectCandidates returns the pull requests of owner/repo that the filter
// accepts.
//
// A pull request whose author is whitelisted or that carries an include label
// is a candidate, unless it carries an exclude label: exclusion wins
// unconditionally. The optional filter query is an additional gate.
func (s *Selector) SelectCandidates(ctx context.Context, owner, repo string, filter *Filter) (*CandidateSet, error) {
	logger := s.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(repo),
		logfields.BaseBranch(filter.Base),
	)

	prs, err := s.gh.OpenPullRequests(ctx, owner, repo, filter.Base)
	if err != nil {
		return nil, fmt.Errorf("listing open pull requests failed: %w", err)
	}

	var result CandidateSet

	for _, pr := range prs {
		if pr.BaseRef != filter.Base {
			continue
		}

		accepted := false

		whitelisted, err := s.gh.IsWhitelisted(ctx, owner, pr.Login)
		if err != nil {
			return nil, fmt.Errorf("whitelist lookup for %q failed: %w", pr.Login, err)
		}

		if whitelisted {
			accepted = true
		} else if filter.Includes(pr.Labels) {
			logger.Debug("pull request carries an include label",
				logfields.PullRequest(pr.Number),
				logfields.Event("candidate_included_by_label"),
			)
			accepted = true
		}

		if !accepted {
			continue
		}

		// exclusion wins, also over whitelisted authors
		if filter.Excludes(pr.Labels) {
			logger.Debug("pull request carries an exclude label, skipping",
				logfields.PullRequest(pr.Number),
				logfields.Event("candidate_excluded_by_label"),
			)
			continue
		}

		match, err := filter.QueryMatches(ctx, pr)
		if err != nil {
			return nil, fmt.Errorf("evaluating filter query for PR %d failed: %w", pr.Number, err)
		}

		if !match {
			logger.Debug("pull request rejected by filter query",
				logfields.PullRequest(pr.Number),
				logfields.Event("candidate_rejected_by_query"),
			)
			continue
		}

		logger.Debug("pull request accepted as merge candidate",
			logfields.PullRequest(pr.Number),
			logfields.Login(pr.Login),
			logfields.Event("candidate_accepted"),
		)

		result.Candidates = append(result.Candidates, pr)
	}

	sort.Slice(result.Candidates, func(i, j int) bool {
		return result.Candidates[i].Number < result.Candidates[j].Number
	})

	for _, pr := range result.Candidates {
		result.TestDirectories = append(result.TestDirectories, TestDirectories(pr)...)
	}

	logger.Info("candidate selection finished",
		zap.Int("candidate_count", len(result.Candidates)),
		logfields.Event("candidate_selection_finished"),
	)

	return &result, nil
}
