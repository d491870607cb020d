package submerge

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/prtools/submerge/internal/gitcmd"
	"github.com/prtools/submerge/internal/githubclt"
)

func mustFilter(t *testing.T, base string, include, exclude []string) *Filter {
	t.Helper()

	filter, err := NewFilter(base, include, exclude, "")
	require.NoError(t, err)

	return filter
}

func TestWorkflowMergesSubmoduleAndCommitsPointers(t *testing.T) {
	ctx := context.Background()
	filter := mustFilter(t, "develop", []string{"include"}, nil)

	testDirsFile := filepath.Join(t.TempDir(), "directories.txt")

	subPR := &githubclt.PullRequest{
		Number:    7,
		Login:     "alice",
		HeadLogin: "alice",
		Title:     "submodule change",
		BaseRef:   "develop",
		HeadSHA:   "sub_sha",
		Labels:    []string{"include"},
		Comments:  []string{"--test lib/src"},
	}

	gh := new(MockGithubClient)
	gh.On("OpenPullRequests", ctx, "ome", "server", "develop").
		Return([]*githubclt.PullRequest{}, nil)
	gh.On("OpenPullRequests", ctx, "ome", "lib", "develop").
		Return([]*githubclt.PullRequest{subPR}, nil)
	gh.On("IsWhitelisted", ctx, "ome", "alice").Return(true, nil)
	gh.On("RepoPrivate", ctx, "ome", "lib").Return(false, nil)

	top := new(MockGitClient)
	top.On("RemoteInfo", ctx, "origin").Return("ome", "server", nil)
	top.On("SubmodulePaths", ctx).Return([]string{"lib"}, nil)
	top.On("Dir").Return("/work/server")
	top.On("Commit", ctx,
		"merge_into_develop+include: Update all modules w/o hooks",
		gitcmd.CommitOpts{All: true, AllowEmpty: true, NoVerify: true},
	).Return(nil)

	sub := new(MockGitClient)
	sub.On("RemoteInfo", ctx, "origin").Return("ome", "lib", nil)
	sub.On("FastForward", ctx, "origin", "develop").Return(nil)
	sub.On("AddRemote", ctx, "merge_alice", "git://github.com/alice/lib.git").Return(nil)
	sub.On("Fetch", ctx, "merge_alice").Return(nil)
	sub.On("CurrentSHA", ctx).Return("sub_head", nil)
	sub.On("MergeNoFF", ctx, mock.Anything, "sub_sha").Return(nil)
	sub.On("SubmoduleUpdate", ctx).Return(nil)
	sub.On("RemoveRemote", ctx, "merge_alice").Return(nil)
	sub.On("SubmodulePaths", ctx).Return([]string{}, nil)

	w := NewWorkflow(WorkflowConfig{
		GH:           gh,
		TestDirsFile: testDirsFile,
		OpenSubmodule: func(parent GitClient, relPath string) GitClient {
			assert.Same(t, GitClient(top), parent)
			assert.Equal(t, "lib", relPath)
			return sub
		},
	})

	result, err := w.Merge(ctx, top, filter)
	require.NoError(t, err)

	require.Len(t, result.Submodules, 1)
	assert.Equal(t, "lib", result.Submodules[0].Path)
	assert.Len(t, result.Submodules[0].Outcome.Merged, 1)

	content, err := os.ReadFile(testDirsFile)
	require.NoError(t, err)
	assert.Equal(t, "lib/src\n", string(content))

	top.AssertExpectations(t)
	sub.AssertExpectations(t)
	gh.AssertExpectations(t)
}

func TestWorkflowNestedSubmodulePaths(t *testing.T) {
	ctx := context.Background()
	filter := mustFilter(t, "develop", []string{"include"}, nil)

	gh := new(MockGithubClient)
	gh.On("OpenPullRequests", ctx, mock.Anything, mock.Anything, "develop").
		Return([]*githubclt.PullRequest{}, nil)

	top := new(MockGitClient)
	top.On("RemoteInfo", ctx, "origin").Return("ome", "server", nil)
	top.On("SubmodulePaths", ctx).Return([]string{"components/lib"}, nil)
	top.On("Dir").Return("/work/server")
	top.On("Commit", ctx, mock.Anything, mock.Anything).Return(nil)

	mid := new(MockGitClient)
	mid.On("RemoteInfo", ctx, "origin").Return("ome", "lib", nil)
	mid.On("FastForward", ctx, "origin", "develop").Return(nil)
	mid.On("SubmodulePaths", ctx).Return([]string{"formats"}, nil)
	mid.On("Dir").Return("/work/server/components/lib")
	mid.On("Commit", ctx, mock.Anything, mock.Anything).Return(nil)

	leaf := new(MockGitClient)
	leaf.On("RemoteInfo", ctx, "origin").Return("ome", "formats", nil)
	leaf.On("FastForward", ctx, "origin", "develop").Return(nil)
	leaf.On("SubmodulePaths", ctx).Return([]string{}, nil)

	w := NewWorkflow(WorkflowConfig{
		GH: gh,
		OpenSubmodule: func(parent GitClient, relPath string) GitClient {
			if parent == GitClient(top) {
				return mid
			}
			return leaf
		},
	})

	result, err := w.Merge(ctx, top, filter)
	require.NoError(t, err)

	require.Len(t, result.Submodules, 2)
	assert.Equal(t, "components/lib", result.Submodules[0].Path)
	assert.Equal(t, "components/lib/formats", result.Submodules[1].Path)
}

func TestWorkflowInfoModeDoesNotTouchRepositories(t *testing.T) {
	ctx := context.Background()
	filter := mustFilter(t, "develop", []string{"include"}, nil)

	pr := &githubclt.PullRequest{
		Number: 3, Login: "alice", HeadLogin: "alice",
		Title: "change", BaseRef: "develop", HeadSHA: "sha",
		Labels: []string{"include"},
	}

	gh := new(MockGithubClient)
	gh.On("OpenPullRequests", ctx, "ome", "server", "develop").
		Return([]*githubclt.PullRequest{pr}, nil)
	gh.On("OpenPullRequests", ctx, "ome", "lib", "develop").
		Return([]*githubclt.PullRequest{}, nil)
	gh.On("IsWhitelisted", ctx, "ome", "alice").Return(true, nil)

	top := new(MockGitClient)
	top.On("RemoteInfo", ctx, "origin").Return("ome", "server", nil)
	top.On("Status", ctx).Return("abc123 latest commit", nil)
	top.On("SubmodulePaths", ctx).Return([]string{"lib"}, nil)

	sub := new(MockGitClient)
	sub.On("RemoteInfo", ctx, "origin").Return("ome", "lib", nil)
	sub.On("Status", ctx).Return("def456 latest commit", nil)
	sub.On("SubmodulePaths", ctx).Return([]string{}, nil)

	w := NewWorkflow(WorkflowConfig{
		GH:       gh,
		InfoOnly: true,
		OpenSubmodule: func(parent GitClient, relPath string) GitClient {
			return sub
		},
	})

	result, err := w.Merge(ctx, top, filter)
	require.NoError(t, err)
	assert.Empty(t, result.Outcome.Merged)

	top.AssertNotCalled(t, "MergeNoFF", mock.Anything, mock.Anything, mock.Anything)
	top.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
	sub.AssertNotCalled(t, "FastForward", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflowNoSubmodulesSkipsPointerCommit(t *testing.T) {
	ctx := context.Background()
	filter := mustFilter(t, "develop", []string{"include"}, nil)

	gh := new(MockGithubClient)
	gh.On("OpenPullRequests", ctx, "ome", "server", "develop").
		Return([]*githubclt.PullRequest{}, nil)

	top := new(MockGitClient)
	top.On("RemoteInfo", ctx, "origin").Return("ome", "server", nil)
	top.On("SubmodulePaths", ctx).Return([]string{}, nil)

	w := NewWorkflow(WorkflowConfig{GH: gh})

	result, err := w.Merge(ctx, top, filter)
	require.NoError(t, err)
	assert.Empty(t, result.Submodules)

	top.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflowSubmoduleFailureSkipsPointerCommit(t *testing.T) {
	ctx := context.Background()
	filter := mustFilter(t, "develop", []string{"include"}, nil)

	gh := new(MockGithubClient)
	gh.On("OpenPullRequests", ctx, "ome", "server", "develop").
		Return([]*githubclt.PullRequest{}, nil)

	top := new(MockGitClient)
	top.On("RemoteInfo", ctx, "origin").Return("ome", "server", nil)
	top.On("SubmodulePaths", ctx).Return([]string{"lib"}, nil)

	sub := new(MockGitClient)
	sub.On("RemoteInfo", ctx, "origin").Return("ome", "lib", nil)
	sub.On("FastForward", ctx, "origin", "develop").Return(errors.New("not fast-forwardable"))

	w := NewWorkflow(WorkflowConfig{
		GH: gh,
		OpenSubmodule: func(parent GitClient, relPath string) GitClient {
			return sub
		},
	})

	_, err := w.Merge(ctx, top, filter)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lib")

	top.AssertNotCalled(t, "Commit", mock.Anything, mock.Anything, mock.Anything)
}

func TestWorkflowSubmodulesWithoutOpener(t *testing.T) {
	ctx := context.Background()
	filter := mustFilter(t, "develop", []string{"include"}, nil)

	gh := new(MockGithubClient)
	gh.On("OpenPullRequests", ctx, "ome", "server", "develop").
		Return([]*githubclt.PullRequest{}, nil)

	top := new(MockGitClient)
	top.On("RemoteInfo", ctx, "origin").Return("ome", "server", nil)
	top.On("SubmodulePaths", ctx).Return([]string{"lib"}, nil)

	w := NewWorkflow(WorkflowConfig{GH: gh})

	_, err := w.Merge(ctx, top, filter)
	require.ErrorIs(t, err, errNoSubmoduleOpener)
}

func TestWriteTestDirectories(t *testing.T) {
	path := filepath.Join(t.TempDir(), "directories.txt")

	require.NoError(t, WriteTestDirectories(path, nil))
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err), "file must not be created without directories")

	require.NoError(t, WriteTestDirectories(path, []string{"lib", "components/server"}))
	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "lib\ncomponents/server\n", string(content))
}
