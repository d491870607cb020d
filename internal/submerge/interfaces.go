package submerge

import (
	"context"

	"github.com/prtools/submerge/internal/gitcmd"
	"github.com/prtools/submerge/internal/githubclt"
)

// GitClient runs operations in one local repository working tree.
// It is implemented by gitcmd.Repo, the interface lists only the operations
// the workflows use.
type GitClient interface {
	Dir() string
	CurrentBranch(ctx context.Context) (string, error)
	CurrentSHA(ctx context.Context) (string, error)
	Status(ctx context.Context) (string, error)
	RevListFirstParent(ctx context.Context, ref string) ([]string, error)
	Commit(ctx context.Context, msg string, opts gitcmd.CommitOpts) error
	NewBranch(ctx context.Context, name, start string) error
	Checkout(ctx context.Context, ref string) error
	DeleteLocalBranch(ctx context.Context, name string, force bool) error
	BranchExists(ctx context.Context, name string) bool
	AddRemote(ctx context.Context, name, url string) error
	RemoveRemote(ctx context.Context, name string) error
	Fetch(ctx context.Context, remote string) error
	FetchPullHead(ctx context.Context, remote string, prNumber int) error
	Push(ctx context.Context, remote, branch string) error
	MergeNoFF(ctx context.Context, msg, ref string) error
	FastForward(ctx context.Context, remote, base string) error
	ResetHard(ctx context.Context, ref string) error
	RebaseOnto(ctx context.Context, newBase, upstream, head string) error
	AbortRebase(ctx context.Context) error
	SubmodulePaths(ctx context.Context) ([]string, error)
	SubmoduleUpdate(ctx context.Context) error
	RemoteInfo(ctx context.Context, remote string) (owner, repo string, err error)
}

// GithubClient accesses the hosted code-review service.
// It is implemented by githubclt.Client.
type GithubClient interface {
	OpenPullRequests(ctx context.Context, owner, repo, base string) ([]*githubclt.PullRequest, error)
	PullRequest(ctx context.Context, owner, repo string, nr int) (*githubclt.PullRequest, error)
	CreatePullRequest(ctx context.Context, owner, repo, title, body, base, head string) (*githubclt.PullRequest, error)
	CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error
	IsWhitelisted(ctx context.Context, owner, login string) (bool, error)
	RepoPrivate(ctx context.Context, owner, repo string) (bool, error)
	AuthenticatedLogin(ctx context.Context) (string, error)
	CanWrite() bool
}

// SubrepoFunc derives a GitClient for a submodule working tree registered at
// relPath inside the parent repository.
type SubrepoFunc func(parent GitClient, relPath string) GitClient
