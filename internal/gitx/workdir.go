package gitx

import (
	"fmt"

	"github.com/resquash/resquash/internal/logging"
)

// WorkdirManager owns the working-directory lifecycle around an apply run:
// a clean-state scope backed by at most one stash entry, and disposable
// temporary branches. Cleanup failures are logged, never escalated, so
// they cannot mask the primary result.
type WorkdirManager struct {
	repo   *Repo
	logger logging.Logger
}

// NewWorkdirManager creates a manager for the given repository.
func NewWorkdirManager(repo *Repo, logger logging.Logger) *WorkdirManager {
	if logger == nil {
		logger = logging.NewNilLogger()
	}
	return &WorkdirManager{repo: repo, logger: logger}
}

// CleanState runs fn with a clean working tree. A dirty tree (untracked
// files included) is stashed on entry and popped after fn returns, on
// every exit path. Entry failure surfaces immediately so no ambiguous
// half-stash is left behind.
func (w *WorkdirManager) CleanState(fn func() error) error {
	dirty, err := w.repo.IsDirty()
	if err != nil {
		return fmt.Errorf("failed to inspect working directory: %w", err)
	}

	stashed := false
	if dirty {
		w.logger.Log("Stashing uncommitted changes")
		if err := w.repo.StashPush("resquash-workdir"); err != nil {
			return fmt.Errorf("failed to prepare working directory: %w", err)
		}
		stashed = true
	}

	defer func() {
		if !stashed {
			return
		}
		w.logger.Log("Restoring stashed changes")
		if err := w.repo.StashPop(); err != nil {
			// The stash entry survives; report and move on.
			w.logger.Log("Failed to restore stashed changes: %v", err)
		}
	}()

	return fn()
}

// TemporaryBranch creates and checks out a disposable branch anchored at
// startRef, runs fn on it, and on every exit path first returns to the
// original branch, then best-effort deletes the temporary branch.
func (w *WorkdirManager) TemporaryBranch(name, startRef string, fn func() error) error {
	original, err := w.repo.CurrentBranch()
	if err != nil {
		return fmt.Errorf("failed to determine current branch: %w", err)
	}

	if err := w.repo.CheckoutNew(name, startRef); err != nil {
		return fmt.Errorf("failed to create temporary branch %s: %w", name, err)
	}
	w.logger.Log("Created and checked out temporary branch %s", name)

	fnErr := fn()

	if err := w.repo.Checkout(original); err != nil {
		w.logger.Log("Failed to return to original branch %s: %v", original, err)
		if fnErr == nil {
			return fmt.Errorf("failed to return to branch %s: %w", original, err)
		}
	} else {
		w.logger.Log("Returned to original branch %s", original)
	}

	if err := w.repo.DeleteBranch(name); err != nil {
		w.logger.Log("Failed to delete temporary branch %s: %v", name, err)
	} else {
		w.logger.Log("Deleted temporary branch %s", name)
	}

	return fnErr
}
