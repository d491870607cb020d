package submerge

import (
	"strings"

	"github.com/prtools/submerge/internal/githubclt"
)

// testDirectiveMarker starts a comment line that requests directory-scoped
// testing for a pull request.
const testDirectiveMarker = "--test"

// TestDirectories returns the directories requested via testDirectiveMarker
// lines in the issue comments of the pull request, in comment order.
func TestDirectories(pr *githubclt.PullRequest) []string {
	var result []string

	for _, comment := range pr.Comments {
		for _, line := range strings.Split(comment, "\n") {
			if !strings.HasPrefix(line, testDirectiveMarker) {
				continue
			}

			dir := strings.TrimSpace(strings.TrimPrefix(line, testDirectiveMarker))
			if dir != "" {
				result = append(result, dir)
			}
		}
	}

	return result
}
