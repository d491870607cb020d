package githubclt

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prtools/submerge/internal/smerr"

	"github.com/google/go-github/v43/github"
	"github.com/shurcooL/githubv4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"
)

func TestWrapRetryableErrorsGraphql(t *testing.T) {
	t.Cleanup(zap.ReplaceGlobals(zaptest.NewLogger(t).Named(t.Name())))

	// is the same than in vendor/github.com/shurcooL/graphql/graphql.go do()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(503)
	}))

	t.Cleanup(srv.Close)

	clt := Client{
		logger:     zap.L(),
		graphQLClt: githubv4.NewEnterpriseClient(srv.URL, srv.Client()),
	}

	err := clt.hydrate(context.Background(), "test", "test", &PullRequest{Number: 123})
	require.Error(t, err)

	var retryableErr *smerr.RetryableError
	assert.ErrorAs(t, err, &retryableErr)
}

func TestWrapRetryableErrorsGraphqlWithNonStatusErr(t *testing.T) {
	err := errors.New("error")
	wrappedErr := (&Client{}).wrapGraphQLRetryableErrors(err)
	assert.Equal(t, err, wrappedErr)
}

func TestPRFromAPIRejectsEmptyHead(t *testing.T) {
	_, err := prFromAPI(&github.PullRequest{
		Number: github.Int(7),
		Base:   &github.PullRequestBranch{Ref: github.String("main")},
	})
	require.Error(t, err)
}

func TestPRFromAPISnapshot(t *testing.T) {
	pr, err := prFromAPI(&github.PullRequest{
		Number: github.Int(42),
		Title:  github.String("add feature"),
		User:   &github.User{Login: github.String("alice")},
		Head: &github.PullRequestBranch{
			Ref:  github.String("feature"),
			SHA:  github.String("abcdef0123"),
			User: &github.User{Login: github.String("alice")},
		},
		Base: &github.PullRequestBranch{Ref: github.String("develop")},
	})
	require.NoError(t, err)

	assert.Equal(t, 42, pr.Number)
	assert.Equal(t, "alice", pr.Login)
	assert.Equal(t, "alice", pr.HeadLogin)
	assert.Equal(t, "develop", pr.BaseRef)
	assert.Equal(t, "feature", pr.HeadRef)
	assert.Equal(t, "abcdef0123", pr.HeadSHA)
}
