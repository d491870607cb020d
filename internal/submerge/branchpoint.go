package submerge

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/prtools/submerge/internal/logfields"
	"github.com/prtools/submerge/internal/smerr"
)

// matchingBlock describes a contiguous run of identical elements in two
// sequences: a[A:A+Size] == b[B:B+Size].
type matchingBlock struct {
	A    int
	B    int
	Size int
}

// longestMatch returns the longest contiguous matching block in
// a[alo:ahi] and b[blo:bhi]. Of equally long blocks the leftmost in a is
// returned, ties on a are broken by the leftmost position in b.
func longestMatch(a, b []string, alo, ahi, blo, bhi int, b2j map[string][]int) matchingBlock {
	best := matchingBlock{A: alo, B: blo}

	j2len := map[int]int{}
	for i := alo; i < ahi; i++ {
		newJ2len := map[int]int{}
		for _, j := range b2j[a[i]] {
			if j < blo {
				continue
			}
			if j >= bhi {
				break
			}

			k := j2len[j-1] + 1
			newJ2len[j] = k
			if k > best.Size {
				best = matchingBlock{A: i - k + 1, B: j - k + 1, Size: k}
			}
		}
		j2len = newJ2len
	}

	return best
}

// matchingBlocks aligns two sequences into their maximal contiguous matching
// blocks, ordered by position. The longest block in the full range is found
// first, then the ranges left and right of it are aligned recursively.
func matchingBlocks(a, b []string) []matchingBlock {
	b2j := map[string][]int{}
	for j, elem := range b {
		b2j[elem] = append(b2j[elem], j)
	}

	type span struct{ alo, ahi, blo, bhi int }

	var result []matchingBlock

	queue := []span{{0, len(a), 0, len(b)}}
	for len(queue) > 0 {
		s := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		block := longestMatch(a, b, s.alo, s.ahi, s.blo, s.bhi, b2j)
		if block.Size == 0 {
			continue
		}

		result = append(result, block)

		if s.alo < block.A && s.blo < block.B {
			queue = append(queue, span{s.alo, block.A, s.blo, block.B})
		}
		if block.A+block.Size < s.ahi && block.B+block.Size < s.bhi {
			queue = append(queue, span{block.A + block.Size, s.ahi, block.B + block.Size, s.bhi})
		}
	}

	// order by position, the recursion above emits blocks unordered
	sort.Slice(result, func(i, j int) bool {
		if result[i].A != result[j].A {
			return result[i].A < result[j].A
		}
		return result[i].B < result[j].B
	})

	return result
}

// FindBranchPoint returns the most plausible common ancestor of topic and
// target.
//
// The first-parent commit histories of both references are aligned into
// contiguous matching blocks, the first block's position in the target
// history is the branch point. This is an approximation of merge-base
// computation that only works reliably on linear first-parent histories;
// when the topic history itself contains merge commits the result can be an
// earlier commit than the true fork point.
// smerr.ErrNoCommonAncestor is returned when the histories share no commits.
func FindBranchPoint(ctx context.Context, git GitClient, topic, target string) (string, error) {
	topicRevs, err := git.RevListFirstParent(ctx, topic)
	if err != nil {
		return "", fmt.Errorf("retrieving commit history of %s failed: %w", topic, err)
	}

	targetRevs, err := git.RevListFirstParent(ctx, target)
	if err != nil {
		return "", fmt.Errorf("retrieving commit history of %s failed: %w", target, err)
	}

	blocks := matchingBlocks(topicRevs, targetRevs)
	if len(blocks) == 0 {
		return "", fmt.Errorf("aligning histories of %s and %s: %w", topic, target, smerr.ErrNoCommonAncestor)
	}

	sha := targetRevs[blocks[0].B]

	zap.L().Named("branch_point_finder").Debug("found branch point",
		logfields.Commit(sha),
		zap.String("git.topic_ref", topic),
		zap.String("git.target_ref", target),
		logfields.Event("branch_point_found"),
	)

	return sha, nil
}
