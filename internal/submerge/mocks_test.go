package submerge

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/prtools/submerge/internal/gitcmd"
	"github.com/prtools/submerge/internal/githubclt"
)

// MockGitClient is a mock implementation of GitClient
type MockGitClient struct {
	mock.Mock
}

func (m *MockGitClient) Dir() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockGitClient) CurrentBranch(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) CurrentSHA(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) Status(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGitClient) RevListFirstParent(ctx context.Context, ref string) ([]string, error) {
	args := m.Called(ctx, ref)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGitClient) Commit(ctx context.Context, msg string, opts gitcmd.CommitOpts) error {
	args := m.Called(ctx, msg, opts)
	return args.Error(0)
}

func (m *MockGitClient) NewBranch(ctx context.Context, name, start string) error {
	args := m.Called(ctx, name, start)
	return args.Error(0)
}

func (m *MockGitClient) Checkout(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockGitClient) DeleteLocalBranch(ctx context.Context, name string, force bool) error {
	args := m.Called(ctx, name, force)
	return args.Error(0)
}

func (m *MockGitClient) BranchExists(ctx context.Context, name string) bool {
	args := m.Called(ctx, name)
	return args.Bool(0)
}

func (m *MockGitClient) AddRemote(ctx context.Context, name, url string) error {
	args := m.Called(ctx, name, url)
	return args.Error(0)
}

func (m *MockGitClient) RemoveRemote(ctx context.Context, name string) error {
	args := m.Called(ctx, name)
	return args.Error(0)
}

func (m *MockGitClient) Fetch(ctx context.Context, remote string) error {
	args := m.Called(ctx, remote)
	return args.Error(0)
}

func (m *MockGitClient) FetchPullHead(ctx context.Context, remote string, prNumber int) error {
	args := m.Called(ctx, remote, prNumber)
	return args.Error(0)
}

func (m *MockGitClient) Push(ctx context.Context, remote, branch string) error {
	args := m.Called(ctx, remote, branch)
	return args.Error(0)
}

func (m *MockGitClient) MergeNoFF(ctx context.Context, msg, ref string) error {
	args := m.Called(ctx, msg, ref)
	return args.Error(0)
}

func (m *MockGitClient) FastForward(ctx context.Context, remote, base string) error {
	args := m.Called(ctx, remote, base)
	return args.Error(0)
}

func (m *MockGitClient) ResetHard(ctx context.Context, ref string) error {
	args := m.Called(ctx, ref)
	return args.Error(0)
}

func (m *MockGitClient) RebaseOnto(ctx context.Context, newBase, upstream, head string) error {
	args := m.Called(ctx, newBase, upstream, head)
	return args.Error(0)
}

func (m *MockGitClient) AbortRebase(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockGitClient) SubmodulePaths(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockGitClient) SubmoduleUpdate(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockGitClient) RemoteInfo(ctx context.Context, remote string) (string, string, error) {
	args := m.Called(ctx, remote)
	return args.String(0), args.String(1), args.Error(2)
}

// MockGithubClient is a mock implementation of GithubClient
type MockGithubClient struct {
	mock.Mock
}

func (m *MockGithubClient) OpenPullRequests(ctx context.Context, owner, repo, base string) ([]*githubclt.PullRequest, error) {
	args := m.Called(ctx, owner, repo, base)
	return args.Get(0).([]*githubclt.PullRequest), args.Error(1)
}

func (m *MockGithubClient) PullRequest(ctx context.Context, owner, repo string, nr int) (*githubclt.PullRequest, error) {
	args := m.Called(ctx, owner, repo, nr)
	return args.Get(0).(*githubclt.PullRequest), args.Error(1)
}

func (m *MockGithubClient) CreatePullRequest(ctx context.Context, owner, repo, title, body, base, head string) (*githubclt.PullRequest, error) {
	args := m.Called(ctx, owner, repo, title, body, base, head)
	return args.Get(0).(*githubclt.PullRequest), args.Error(1)
}

func (m *MockGithubClient) CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error {
	args := m.Called(ctx, owner, repo, issueOrPRNr, comment)
	return args.Error(0)
}

func (m *MockGithubClient) IsWhitelisted(ctx context.Context, owner, login string) (bool, error) {
	args := m.Called(ctx, owner, login)
	return args.Bool(0), args.Error(1)
}

func (m *MockGithubClient) RepoPrivate(ctx context.Context, owner, repo string) (bool, error) {
	args := m.Called(ctx, owner, repo)
	return args.Bool(0), args.Error(1)
}

func (m *MockGithubClient) AuthenticatedLogin(ctx context.Context) (string, error) {
	args := m.Called(ctx)
	return args.String(0), args.Error(1)
}

func (m *MockGithubClient) CanWrite() bool {
	args := m.Called()
	return args.Bool(0)
}
