// Package gitcmd runs git operations in a local repository clone by invoking
// the git executable.
//
// A Repo is bound to one working tree directory. All commands run with their
// working directory set to that path, the process working directory is never
// changed. Submodule repositories are separate Repo values derived via
// Submodule.
package gitcmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/prtools/submerge/internal/logfields"
)

const loggerName = "git"

// Repo executes git commands in a single repository working tree.
type Repo struct {
	dir    string
	logger *zap.Logger
}

// New returns a Repo bound to the working tree at dir.
func New(dir string) *Repo {
	abs, err := filepath.Abs(dir)
	if err != nil {
		abs = dir
	}

	return &Repo{
		dir:    abs,
		logger: zap.L().Named(loggerName).With(logfields.RepositoryDir(abs)),
	}
}

// Dir returns the working tree directory of the repository.
func (r *Repo) Dir() string {
	return r.dir
}

// Submodule returns a Repo for the submodule registered at relPath.
// The receiver is not modified.
func (r *Repo) Submodule(relPath string) *Repo {
	return New(filepath.Join(r.dir, relPath))
}

func (r *Repo) run(ctx context.Context, args ...string) (string, error) {
	r.logger.Debug("running git command",
		zap.Strings("git.args", args),
		logfields.Event("git_command_running"),
	)

	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = r.dir

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("git %s failed: %s: %w",
			strings.Join(args, " "), strings.TrimSpace(stderr.String()), err)
	}

	return strings.TrimSpace(stdout.String()), nil
}

// CurrentBranch returns the symbolic name of the currently checked out branch.
// An error is returned when HEAD is detached.
func (r *Repo) CurrentBranch(ctx context.Context) (string, error) {
	out, err := r.run(ctx, "symbolic-ref", "HEAD")
	if err != nil {
		return "", err
	}

	return strings.TrimPrefix(out, "refs/heads/"), nil
}

// CurrentSHA returns the commit ID of HEAD.
func (r *Repo) CurrentSHA(ctx context.Context) (string, error) {
	return r.run(ctx, "rev-parse", "HEAD")
}

// Status returns a one line description of the current HEAD commit.
func (r *Repo) Status(ctx context.Context) (string, error) {
	return r.run(ctx, "log", "--oneline", "-n", "1", "HEAD")
}

// RevListFirstParent returns the first-parent commit history of ref, newest
// commit first, as returned by git rev-list.
func (r *Repo) RevListFirstParent(ctx context.Context, ref string) ([]string, error) {
	out, err := r.run(ctx, "rev-list", "--first-parent", ref)
	if err != nil {
		return nil, err
	}

	if out == "" {
		return nil, nil
	}

	return strings.Split(out, "\n"), nil
}

// CommitOpts control how a commit is created.
type CommitOpts struct {
	// All stages modified and deleted files before committing (-a).
	All bool
	// AllowEmpty permits a commit that records no tree changes.
	AllowEmpty bool
	// NoVerify skips the pre-commit and commit-msg hooks.
	NoVerify bool
}

// Commit creates a commit with the given message.
func (r *Repo) Commit(ctx context.Context, msg string, opts CommitOpts) error {
	args := []string{"commit"}
	if opts.AllowEmpty {
		args = append(args, "--allow-empty")
	}
	if opts.All {
		args = append(args, "-a")
	}
	if opts.NoVerify {
		args = append(args, "--no-verify")
	}
	args = append(args, "-m", msg)

	_, err := r.run(ctx, args...)
	return err
}

// NewBranch creates a branch named name starting at start and checks it out.
func (r *Repo) NewBranch(ctx context.Context, name, start string) error {
	_, err := r.run(ctx, "checkout", "-b", name, start)
	return err
}

// Checkout switches the working tree to ref.
func (r *Repo) Checkout(ctx context.Context, ref string) error {
	_, err := r.run(ctx, "checkout", ref)
	return err
}

// DeleteLocalBranch deletes a local branch.
func (r *Repo) DeleteLocalBranch(ctx context.Context, name string, force bool) error {
	deleteSwitch := "-d"
	if force {
		deleteSwitch = "-D"
	}

	_, err := r.run(ctx, "branch", deleteSwitch, name)
	return err
}

// BranchExists returns true when a local branch named name exists.
func (r *Repo) BranchExists(ctx context.Context, name string) bool {
	_, err := r.run(ctx, "rev-parse", "--verify", "refs/heads/"+name)
	return err == nil
}

// AddRemote registers a fetch remote.
func (r *Repo) AddRemote(ctx context.Context, name, url string) error {
	_, err := r.run(ctx, "remote", "add", name, url)
	return err
}

// RemoveRemote removes a previously registered remote.
func (r *Repo) RemoveRemote(ctx context.Context, name string) error {
	_, err := r.run(ctx, "remote", "rm", name)
	return err
}

// Fetch fetches from the named remote.
func (r *Repo) Fetch(ctx context.Context, remote string) error {
	_, err := r.run(ctx, "fetch", remote)
	return err
}

// FetchPullHead fetches the head commit of a pull request from the remote via
// the pull/<nr>/head ref.
func (r *Repo) FetchPullHead(ctx context.Context, remote string, prNumber int) error {
	_, err := r.run(ctx, "fetch", remote, fmt.Sprintf("pull/%d/head", prNumber))
	return err
}

// Push pushes branch to the remote, which can be a remote name or a URL.
func (r *Repo) Push(ctx context.Context, remote, branch string) error {
	_, err := r.run(ctx, "push", remote, branch)
	return err
}

// MergeNoFF merges ref into the current branch, always creating a merge
// commit with the given message.
func (r *Repo) MergeNoFF(ctx context.Context, msg, ref string) error {
	_, err := r.run(ctx, "merge", "--no-ff", "-m", msg, ref)
	return err
}

// FastForward advances the current branch to <remote>/<base> without creating
// a merge commit.
func (r *Repo) FastForward(ctx context.Context, remote, base string) error {
	_, err := r.run(ctx, "merge", "--ff-only", remote+"/"+base)
	return err
}

// ResetHard resets the working tree and HEAD to ref.
func (r *Repo) ResetHard(ctx context.Context, ref string) error {
	_, err := r.run(ctx, "reset", "--hard", ref)
	return err
}

// RebaseOnto replays the commits (upstream, head] onto newBase.
func (r *Repo) RebaseOnto(ctx context.Context, newBase, upstream, head string) error {
	_, err := r.run(ctx, "rebase", "--onto", newBase, upstream, head)
	return err
}

// AbortRebase aborts an in-progress rebase.
func (r *Repo) AbortRebase(ctx context.Context) error {
	_, err := r.run(ctx, "rebase", "--abort")
	return err
}

// SubmodulePaths returns the registered submodule paths relative to the
// repository root, in registration order.
func (r *Repo) SubmodulePaths(ctx context.Context) ([]string, error) {
	out, err := r.run(ctx, "submodule", "--quiet", "foreach", "echo $path")
	if err != nil {
		return nil, err
	}

	return splitNonEmptyLines(out), nil
}

// SubmoduleUpdate checks out the commits recorded in the parent tree for all
// submodules.
func (r *Repo) SubmoduleUpdate(ctx context.Context) error {
	_, err := r.run(ctx, "submodule", "update")
	return err
}

// RemoteInfo returns the github owner and repository name parsed from the URL
// of the named remote.
func (r *Repo) RemoteInfo(ctx context.Context, remote string) (owner, repo string, err error) {
	url, err := r.run(ctx, "config", "--get", "remote."+remote+".url")
	if err != nil {
		return "", "", err
	}

	return parseGithubURL(url)
}

func splitNonEmptyLines(out string) []string {
	var result []string

	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line != "" {
			result = append(result, line)
		}
	}

	return result
}

// parseGithubURL extracts owner and repository name from a github clone URL.
// Supported forms: git@github.com:owner/repo.git, ssh://git@github.com/owner/repo.git,
// https://github.com/owner/repo.git and git://github.com/owner/repo.git.
func parseGithubURL(url string) (owner, repo string, err error) {
	url = strings.TrimSpace(url)

	if !strings.Contains(url, "github") {
		return "", "", fmt.Errorf("remote URL %q is not on github", url)
	}

	trimmed := url
	if idx := strings.Index(trimmed, "://"); idx != -1 {
		trimmed = trimmed[idx+3:]
	}

	// scp-like syntax: git@github.com:owner/repo.git
	if idx := strings.Index(trimmed, ":"); idx != -1 {
		trimmed = trimmed[idx+1:]
	} else if idx := strings.Index(trimmed, "/"); idx != -1 {
		trimmed = trimmed[idx+1:]
	}

	trimmed = strings.TrimSuffix(trimmed, ".git")
	trimmed = strings.Trim(trimmed, "/")

	owner, repo = path.Dir(trimmed), path.Base(trimmed)
	if owner == "." || owner == "/" || repo == "." || repo == "" {
		return "", "", fmt.Errorf("can not parse owner and repository from remote URL %q", url)
	}

	// nested paths can occur on github enterprise, only the last two
	// elements identify the repository
	owner = path.Base(owner)

	if owner == "" || owner == "." {
		return "", "", errors.New("remote URL contains an empty owner")
	}

	return owner, repo, nil
}
