// Package githubclt provides a github API client.
package githubclt

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"time"

	"github.com/google/go-github/v43/github"
	"github.com/shurcooL/githubv4"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"github.com/prtools/submerge/internal/logfields"
	"github.com/prtools/submerge/internal/smerr"
)

const DefaultHTTPClientTimeout = time.Minute

const loggerName = "github_client"

// New returns a new github api client.
func New(oauthAPItoken string) *Client {
	httpClient := newHTTPClient(oauthAPItoken)
	return &Client{
		restClt:    github.NewClient(httpClient),
		graphQLClt: githubv4.NewClient(httpClient),
		canWrite:   oauthAPItoken != "",
		logger:     zap.L().Named(loggerName),
	}
}

func newHTTPClient(apiToken string) *http.Client {
	if apiToken == "" {
		return &http.Client{
			Timeout: DefaultHTTPClientTimeout,
		}
	}

	ts := oauth2.StaticTokenSource(
		&oauth2.Token{AccessToken: apiToken},
	)

	tc := oauth2.NewClient(context.Background(), ts)
	tc.Timeout = DefaultHTTPClientTimeout

	return tc
}

// Client is a github API client.
// All methods return a smerr.RetryableError when an operation can be retried.
// This can be e.g. the case when the API ratelimit is exceeded.
type Client struct {
	restClt    *github.Client
	graphQLClt *githubv4.Client
	canWrite   bool
	logger     *zap.Logger
}

// CanWrite returns true when the client was created with an API token and can
// run mutating operations like creating comments and pull requests.
func (clt *Client) CanWrite() bool {
	return clt.canWrite
}

// PullRequest is an immutable snapshot of a pull request, fetched once per
// workflow run.
type PullRequest struct {
	Number    int      `json:"number"`
	Login     string   `json:"login"`
	HeadLogin string   `json:"head_login"`
	Title     string   `json:"title"`
	Body      string   `json:"body"`
	BaseRef   string   `json:"base_ref"`
	HeadRef   string   `json:"head_ref"`
	HeadSHA   string   `json:"head_sha"`
	Labels    []string `json:"labels"`
	Comments  []string `json:"comments"`
	HTMLURL   string   `json:"html_url"`
	Merged    bool     `json:"merged"`
	Mergeable *bool    `json:"mergeable"`
}

func prFromAPI(pr *github.PullRequest) (*PullRequest, error) {
	head := pr.GetHead()
	if head == nil {
		return nil, errors.New("got pull request object with empty head")
	}

	base := pr.GetBase()
	if base == nil {
		return nil, errors.New("got pull request object with empty base field")
	}

	result := PullRequest{
		Number:    pr.GetNumber(),
		Login:     pr.GetUser().GetLogin(),
		HeadLogin: head.GetUser().GetLogin(),
		Title:     pr.GetTitle(),
		Body:      pr.GetBody(),
		BaseRef:   base.GetRef(),
		HeadRef:   head.GetRef(),
		HeadSHA:   head.GetSHA(),
		HTMLURL:   pr.GetHTMLURL(),
		Merged:    pr.GetMerged(),
		Mergeable: pr.Mergeable,
	}

	if result.HeadSHA == "" {
		return nil, errors.New("got pull request object with empty head sha")
	}

	return &result, nil
}

type PRIterator interface {
	Next() (*github.PullRequest, error)
}

type PRIter struct {
	clt *Client

	ctx   context.Context
	owner string
	repo  string
	base  string

	unseen []*github.PullRequest

	nextPage int
	finished bool
}

// Next returns the next pullRequest.
// When the last result was returned a nil PullRequest is returned.
func (it *PRIter) Next() (*github.PullRequest, error) {
	if len(it.unseen) > 0 {
		result := it.unseen[0]
		it.unseen = it.unseen[1:]

		return result, nil
	}

	if it.finished {
		return nil, nil
	}

	prs, resp, err := it.clt.restClt.PullRequests.List(it.ctx, it.owner, it.repo, &github.PullRequestListOptions{
		State: "open",
		Base:  it.base,
		ListOptions: github.ListOptions{
			Page:    it.nextPage,
			PerPage: 100,
		},
	})
	if err != nil {
		return nil, it.clt.wrapRetryableErrors(err)
	}

	if resp.NextPage == 0 || resp.PrevPage+1 == resp.LastPage || len(prs) == 0 {
		it.finished = true
	} else {
		it.nextPage = resp.NextPage
	}

	it.unseen = prs

	return it.Next()
}

// ListPullRequests returns an iterator for receiving all open pull requests
// whose base branch is base.
func (clt *Client) ListPullRequests(ctx context.Context, owner, repo, base string) PRIterator { // interface is returned to make the method mockable
	return &PRIter{
		clt:      clt,
		ctx:      ctx,
		owner:    owner,
		repo:     repo,
		base:     base,
		nextPage: 1,
	}
}

// OpenPullRequests returns snapshots of all open pull requests against base,
// with labels and issue comments hydrated.
func (clt *Client) OpenPullRequests(ctx context.Context, owner, repo, base string) ([]*PullRequest, error) {
	var result []*PullRequest

	it := clt.ListPullRequests(ctx, owner, repo, base)
	for {
		apiPR, err := it.Next()
		if err != nil {
			return nil, err
		}

		if apiPR == nil {
			return result, nil
		}

		pr, err := prFromAPI(apiPR)
		if err != nil {
			return nil, err
		}

		if err := clt.hydrate(ctx, owner, repo, pr); err != nil {
			return nil, fmt.Errorf("fetching labels and comments of PR %d failed: %w", pr.Number, err)
		}

		result = append(result, pr)
	}
}

// hydrate fetches the labels and issue comments of a pull request in a single
// GraphQL query and stores them in the snapshot.
func (clt *Client) hydrate(ctx context.Context, owner, repo string, pr *PullRequest) error {
	var q struct {
		Repository struct {
			PullRequest struct {
				Labels struct {
					Nodes []struct {
						Name githubv4.String
					}
				} `graphql:"labels(first: 100)"`
				Comments struct {
					Nodes []struct {
						Body githubv4.String
					}
				} `graphql:"comments(first: 100)"`
			} `graphql:"pullRequest(number: $prNumber)"`
		} `graphql:"repository(owner: $owner, name: $repoName)"`
	}

	vars := map[string]interface{}{
		"owner":    githubv4.String(owner),
		"repoName": githubv4.String(repo),
		"prNumber": githubv4.Int(pr.Number),
	}

	if err := clt.graphQLClt.Query(ctx, &q, vars); err != nil {
		return clt.wrapGraphQLRetryableErrors(err)
	}

	for _, label := range q.Repository.PullRequest.Labels.Nodes {
		pr.Labels = append(pr.Labels, string(label.Name))
	}

	for _, comment := range q.Repository.PullRequest.Comments.Nodes {
		pr.Comments = append(pr.Comments, string(comment.Body))
	}

	return nil
}

// PullRequest returns a snapshot of a single pull request, including labels
// and comments.
func (clt *Client) PullRequest(ctx context.Context, owner, repo string, nr int) (*PullRequest, error) {
	apiPR, _, err := clt.restClt.PullRequests.Get(ctx, owner, repo, nr)
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	pr, err := prFromAPI(apiPR)
	if err != nil {
		return nil, err
	}

	if err := clt.hydrate(ctx, owner, repo, pr); err != nil {
		return nil, err
	}

	return pr, nil
}

// CreatePullRequest opens a new pull request and returns its snapshot.
func (clt *Client) CreatePullRequest(ctx context.Context, owner, repo, title, body, base, head string) (*PullRequest, error) {
	apiPR, _, err := clt.restClt.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
		Title: &title,
		Body:  &body,
		Base:  &base,
		Head:  &head,
	})
	if err != nil {
		return nil, clt.wrapRetryableErrors(err)
	}

	return prFromAPI(apiPR)
}

// CreateIssueComment creates a comment in an issue or pull request.
func (clt *Client) CreateIssueComment(ctx context.Context, owner, repo string, issueOrPRNr int, comment string) error {
	_, _, err := clt.restClt.Issues.CreateComment(ctx, owner, repo, issueOrPRNr, &github.IssueComment{Body: &comment})
	return clt.wrapRetryableErrors(err)
}

// IsWhitelisted returns true when login is a public member of the
// organization owning the repository.
// When owner is a user account instead of an organization, false is returned.
func (clt *Client) IsWhitelisted(ctx context.Context, owner, login string) (bool, error) {
	member, resp, err := clt.restClt.Organizations.IsPublicMember(ctx, owner, login)
	if err != nil {
		if resp != nil && resp.StatusCode == http.StatusNotFound {
			clt.logger.Debug("membership lookup returned not found, treating login as not whitelisted",
				logfields.RepositoryOwner(owner),
				logfields.Login(login),
				logfields.Event("github_membership_not_found"),
			)

			return false, nil
		}

		return false, clt.wrapRetryableErrors(err)
	}

	return member, nil
}

// RepoPrivate returns true when the repository is private.
func (clt *Client) RepoPrivate(ctx context.Context, owner, repo string) (bool, error) {
	repository, _, err := clt.restClt.Repositories.Get(ctx, owner, repo)
	if err != nil {
		return false, clt.wrapRetryableErrors(err)
	}

	return repository.GetPrivate(), nil
}

// AuthenticatedLogin returns the login of the user the API token belongs to.
func (clt *Client) AuthenticatedLogin(ctx context.Context) (string, error) {
	user, _, err := clt.restClt.Users.Get(ctx, "")
	if err != nil {
		return "", clt.wrapRetryableErrors(err)
	}

	login := user.GetLogin()
	if login == "" {
		return "", errors.New("github returned a user object with an empty login")
	}

	return login, nil
}

// ListBranches returns the names of all branches of the repository.
func (clt *Client) ListBranches(ctx context.Context, owner, repo string) ([]string, error) {
	var result []string

	opts := github.BranchListOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}

	for {
		branches, resp, err := clt.restClt.Repositories.ListBranches(ctx, owner, repo, &opts)
		if err != nil {
			return nil, clt.wrapRetryableErrors(err)
		}

		for _, branch := range branches {
			result = append(result, branch.GetName())
		}

		if resp.NextPage == 0 {
			return result, nil
		}

		opts.Page = resp.NextPage
	}
}

// DeleteBranch deletes a branch from the repository.
func (clt *Client) DeleteBranch(ctx context.Context, owner, repo, branch string) error {
	_, err := clt.restClt.Git.DeleteRef(ctx, owner, repo, "heads/"+branch)
	return clt.wrapRetryableErrors(err)
}

func (clt *Client) wrapRetryableErrors(err error) error {
	switch v := err.(type) {
	case *github.RateLimitError:
		clt.logger.Info(
			"rate limit exceeded",
			logfields.Event("github_api_rate_limit_exceeded"),
			zap.Int("github_api_rate_limit", v.Rate.Limit),
			zap.Time("github_api_rate_limit_reset_time", v.Rate.Reset.Time),
		)

		return smerr.NewRetryableError(err, v.Rate.Reset.Time)

	case *github.ErrorResponse:
		if v.Response.StatusCode >= 500 && v.Response.StatusCode < 600 {
			return smerr.NewRetryableAnytimeError(err)
		}
	}

	return err
}

var graphQlHTTPStatusErrRe = regexp.MustCompile(`^non-200 OK status code: ([0-9]+) .*`)

func (clt *Client) wrapGraphQLRetryableErrors(err error) error {
	matches := graphQlHTTPStatusErrRe.FindStringSubmatch(err.Error())
	if len(matches) != 2 {
		return err
	}

	errcode, atoiErr := strconv.Atoi(matches[1])
	if atoiErr != nil {
		clt.logger.Info(
			"parsing http code from error string failed",
			zap.Error(atoiErr),
			zap.String("error_string", err.Error()),
			zap.String("http_errcode", matches[1]),
		)
		return err
	}

	if errcode >= 500 && errcode < 600 {
		return smerr.NewRetryableAnytimeError(err)
	}

	return err
}
