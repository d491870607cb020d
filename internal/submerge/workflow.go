package submerge

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/prtools/submerge/internal/logfields"
)

// WorkflowConfig configures a merge Workflow.
type WorkflowConfig struct {
	GH     GithubClient
	Remote string

	// Comment posts an explanation on every conflicting pull request.
	Comment bool
	// InfoOnly lists candidates without merging anything.
	InfoOnly bool
	// TestDirsFile is the path the requested test directories are written
	// to. Empty disables the artifact.
	TestDirsFile string

	// OpenSubmodule derives the GitClient for a submodule working tree.
	OpenSubmodule SubrepoFunc
}

// SubmoduleOutcome is the merge outcome of one submodule repository,
// identified by its path relative to the top-level repository.
type SubmoduleOutcome struct {
	Path    string
	Outcome *MergeOutcome
}

// MergeResult is the result of one merge workflow run.
type MergeResult struct {
	// Outcome is the partition of the top-level repository candidates.
	Outcome *MergeOutcome
	// Submodules holds the outcome of every processed submodule, in
	// processing order.
	Submodules []SubmoduleOutcome
}

// Workflow runs the multi-pull-request merge workflow: candidate selection,
// merging and submodule recursion, sharing one filter policy.
type Workflow struct {
	gh            GithubClient
	remote        string
	comment       bool
	infoOnly      bool
	testDirsFile  string
	openSubmodule SubrepoFunc
	selector      *Selector
	logger        *zap.Logger
}

func NewWorkflow(cfg WorkflowConfig) *Workflow {
	remote := cfg.Remote
	if remote == "" {
		remote = "origin"
	}

	return &Workflow{
		gh:            cfg.GH,
		remote:        remote,
		comment:       cfg.Comment,
		infoOnly:      cfg.InfoOnly,
		testDirsFile:  cfg.TestDirsFile,
		openSubmodule: cfg.OpenSubmodule,
		selector:      NewSelector(cfg.GH),
		logger:        zap.L().Named("merge_workflow"),
	}
}

// Merge runs the merge workflow on repo and recursively on all of its
// submodules.
// The requested test directories of all processed repositories are written to
// the configured artifact file when at least one was requested.
func (w *Workflow) Merge(ctx context.Context, repo GitClient, filter *Filter) (*MergeResult, error) {
	var result MergeResult

	owner, name, err := repo.RemoteInfo(ctx, w.remote)
	if err != nil {
		return nil, fmt.Errorf("resolving %s remote failed: %w", w.remote, err)
	}

	candidates, err := w.selector.SelectCandidates(ctx, owner, name, filter)
	if err != nil {
		return nil, err
	}

	testDirs := append([]string(nil), candidates.TestDirectories...)

	result.Outcome, err = w.mergeCandidates(ctx, repo, owner, name, candidates, filter)
	if err != nil {
		return nil, err
	}

	result.Submodules, err = w.processSubmodules(ctx, repo, filter, &testDirs)
	if err != nil {
		return nil, err
	}

	if w.testDirsFile != "" {
		if err := WriteTestDirectories(w.testDirsFile, testDirs); err != nil {
			return nil, err
		}
	}

	return &result, nil
}

func (w *Workflow) mergeCandidates(ctx context.Context, repo GitClient, owner, name string, candidates *CandidateSet, filter *Filter) (*MergeOutcome, error) {
	if w.infoOnly {
		if status, err := repo.Status(ctx); err == nil {
			w.logger.Info("repository status",
				logfields.RepositoryOwner(owner),
				logfields.Repository(name),
				zap.String("git.status", status),
				logfields.Event("repository_status"),
			)
		}

		w.listCandidates(owner, name, candidates)
		return &MergeOutcome{}, nil
	}

	engine := NewMergeEngine(repo, w.gh, owner, name, w.comment)

	return engine.Merge(ctx, candidates, filter.WorkflowID())
}

func (w *Workflow) listCandidates(owner, name string, candidates *CandidateSet) {
	logger := w.logger.With(
		logfields.RepositoryOwner(owner),
		logfields.Repository(name),
	)

	for _, pr := range candidates.Candidates {
		logger.Info("merge candidate",
			logfields.PullRequest(pr.Number),
			logfields.Login(pr.Login),
			zap.String("github.title", pr.Title),
			zap.Strings("github.labels", pr.Labels),
			logfields.Event("merge_candidate_listed"),
		)
	}
}

var errNoSubmoduleOpener = errors.New("repository has submodules but no submodule opener is configured")
