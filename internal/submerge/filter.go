package submerge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/itchyny/gojq"

	"github.com/prtools/submerge/internal/githubclt"
)

// Filter selects the pull requests that take part in a merge run.
//
// A pull request is a candidate when its base branch is Base and either its
// author is whitelisted or one of its labels matches Include. A label
// matching Exclude rejects the pull request unconditionally, also when the
// author is whitelisted. Matching is case-insensitive.
// An optional jq filter query is applied as an additional gate against the
// JSON representation of the pull request snapshot.
type Filter struct {
	Base    string
	Include []string
	Exclude []string

	query *gojq.Query
}

// NewFilter creates a Filter.
// filterQuery can be empty, otherwise it must be a jq expression that
// evaluates to a single boolean.
func NewFilter(base string, include, exclude []string, filterQuery string) (*Filter, error) {
	result := Filter{
		Base:    base,
		Include: include,
		Exclude: exclude,
	}

	if filterQuery != "" {
		query, err := gojq.Parse(filterQuery)
		if err != nil {
			return nil, fmt.Errorf("parsing filter query failed: %w", err)
		}

		result.query = query
	}

	return &result, nil
}

func matchesAnyLabel(patterns, labels []string) bool {
	for _, pattern := range patterns {
		for _, label := range labels {
			if strings.EqualFold(pattern, label) {
				return true
			}
		}
	}

	return false
}

// Includes returns true when the include list is non-empty and one of its
// entries matches a label of the pull request.
func (f *Filter) Includes(labels []string) bool {
	return len(f.Include) != 0 && matchesAnyLabel(f.Include, labels)
}

// Excludes returns true when the exclude list is non-empty and one of its
// entries matches a label of the pull request.
func (f *Filter) Excludes(labels []string) bool {
	return len(f.Exclude) != 0 && matchesAnyLabel(f.Exclude, labels)
}

// QueryMatches evaluates the filter query against the JSON representation of
// the pull request snapshot.
// When no query is configured, true is returned.
func (f *Filter) QueryMatches(ctx context.Context, pr *githubclt.PullRequest) (bool, error) {
	if f.query == nil {
		return true, nil
	}

	data, err := json.Marshal(pr)
	if err != nil {
		return false, fmt.Errorf("marshaling pull request snapshot failed: %w", err)
	}

	var prUn interface{}
	if err := json.Unmarshal(data, &prUn); err != nil {
		return false, fmt.Errorf("unmarshaling pull request snapshot failed: %w", err)
	}

	result, errs := goJQIterToSlice(f.query.RunWithContext(ctx, prUn))
	if len(errs) != 0 {
		return false, fmt.Errorf("json query returned errors, query: %q, errors: %s", f.query.String(), errString(errs))
	}

	if len(result) != 1 {
		return false, fmt.Errorf("json query returned %d results, expected 1, query: %q", len(result), f.query.String())
	}

	val, ok := result[0].(bool)
	if !ok {
		return false, fmt.Errorf(
			"json query returned non-bool result: %+v (%T), query: %q",
			result[0], result[0], f.query.String(),
		)
	}

	return val, nil
}

// WorkflowID returns a deterministic identifier for the merge run, derived
// from the base branch and the include and exclude labels.
// It is embedded in every merge commit message the run creates.
func (f *Filter) WorkflowID() string {
	var result strings.Builder

	result.WriteString("merge_into_")
	result.WriteString(f.Base)

	if len(f.Include) != 0 {
		result.WriteString("+")
		result.WriteString(strings.Join(f.Include, "+"))
	}

	if len(f.Exclude) != 0 {
		result.WriteString("-")
		result.WriteString(strings.Join(f.Exclude, "-"))
	}

	return result.String()
}

func goJQIterToSlice(iter gojq.Iter) ([]interface{}, []error) {
	var result []interface{}
	var errors []error

	for {
		res, ok := iter.Next()
		if !ok {
			return result, errors
		}

		if err, isErr := res.(error); isErr {
			errors = append(errors, err)
			continue
		}

		result = append(result, res)
	}
}

func errString(errs []error) string {
	var result strings.Builder

	for i, err := range errs {
		if i > 0 {
			result.WriteString("; ")
		}

		result.WriteString(fmt.Sprintf("error %d: %s", i, err))
	}

	return result.String()
}
