package submerge

import (
	"context"
	"fmt"
	"path"

	"github.com/prtools/submerge/internal/gitcmd"
	"github.com/prtools/submerge/internal/logfields"
)

// processSubmodules applies the merge workflow to every registered submodule
// of repo, transitively, then commits the updated submodule pointers on repo.
//
// Every submodule is processed in its own working-tree context, derived from
// the parent context via the submodule opener; the parent context is never
// mutated, also not when processing a submodule fails.
// Collected test directories are appended to testDirs.
func (w *Workflow) processSubmodules(ctx context.Context, repo GitClient, filter *Filter, testDirs *[]string) ([]SubmoduleOutcome, error) {
	paths, err := repo.SubmodulePaths(ctx)
	if err != nil {
		return nil, fmt.Errorf("listing submodules failed: %w", err)
	}

	if len(paths) == 0 {
		return nil, nil
	}

	if w.openSubmodule == nil {
		return nil, errNoSubmoduleOpener
	}

	var result []SubmoduleOutcome

	for _, relPath := range paths {
		w.logger.Debug("processing submodule",
			logfields.SubmodulePath(relPath),
			logfields.Event("submodule_processing"),
		)

		sub := w.openSubmodule(repo, relPath)

		outcome, nested, err := w.mergeSubmodule(ctx, sub, filter, testDirs)
		if err != nil {
			return nil, fmt.Errorf("processing submodule %s failed: %w", relPath, err)
		}

		result = append(result, SubmoduleOutcome{Path: relPath, Outcome: outcome})

		for _, nestedOutcome := range nested {
			nestedOutcome.Path = path.Join(relPath, nestedOutcome.Path)
			result = append(result, nestedOutcome)
		}
	}

	if !w.infoOnly {
		msg := fmt.Sprintf("%s: Update all modules w/o hooks", filter.WorkflowID())
		err := repo.Commit(ctx, msg, gitcmd.CommitOpts{All: true, AllowEmpty: true, NoVerify: true})
		if err != nil {
			return nil, fmt.Errorf("committing submodule pointer updates failed: %w", err)
		}

		w.logger.Info("committed submodule pointer updates",
			logfields.RepositoryDir(repo.Dir()),
			logfields.Event("submodule_pointers_committed"),
		)
	}

	return result, nil
}

func (w *Workflow) mergeSubmodule(ctx context.Context, sub GitClient, filter *Filter, testDirs *[]string) (*MergeOutcome, []SubmoduleOutcome, error) {
	owner, name, err := sub.RemoteInfo(ctx, w.remote)
	if err != nil {
		return nil, nil, fmt.Errorf("resolving %s remote failed: %w", w.remote, err)
	}

	if !w.infoOnly {
		// pull in already closed PRs before selecting candidates
		if err := sub.FastForward(ctx, w.remote, filter.Base); err != nil {
			return nil, nil, fmt.Errorf("fast-forwarding to %s/%s failed: %w", w.remote, filter.Base, err)
		}
	}

	candidates, err := w.selector.SelectCandidates(ctx, owner, name, filter)
	if err != nil {
		return nil, nil, err
	}

	*testDirs = append(*testDirs, candidates.TestDirectories...)

	outcome, err := w.mergeCandidates(ctx, sub, owner, name, candidates, filter)
	if err != nil {
		return nil, nil, err
	}

	nested, err := w.processSubmodules(ctx, sub, filter, testDirs)
	if err != nil {
		return nil, nil, err
	}

	return outcome, nested, nil
}
