package gitx

import (
	"fmt"

	"github.com/resquash/resquash/internal/hunk"
	"github.com/resquash/resquash/internal/logging"
)

// AtomicApplicator gives commit application all-or-nothing semantics: a
// checkpoint is captured on entry, and any failure inside the scope hard
// resets the tree and index back to it and sweeps untracked leftovers.
type AtomicApplicator struct {
	repo   *Repo
	logger logging.Logger
}

// NewAtomicApplicator creates an applicator for the given repository.
func NewAtomicApplicator(repo *Repo, logger logging.Logger) *AtomicApplicator {
	if logger == nil {
		logger = logging.NewNilLogger()
	}
	return &AtomicApplicator{repo: repo, logger: logger}
}

// Atomic runs fn inside a transaction. On error the repository is restored
// to the entry checkpoint and the original error is returned unchanged.
func (a *AtomicApplicator) Atomic(fn func() error) error {
	checkpoint, err := a.repo.Head()
	if err != nil {
		return fmt.Errorf("failed to capture checkpoint: %w", err)
	}
	a.logger.Log("Starting atomic operation from %.8s", checkpoint)

	if err := fn(); err != nil {
		a.logger.Log("Error during atomic operation: %v", err)
		a.rollback(checkpoint)
		return err
	}

	a.logger.Log("Atomic operation completed")
	return nil
}

// rollback force-resets to the checkpoint and cleans untracked files
// created during the attempt. Rollback problems are logged; the caller's
// original error stays primary.
func (a *AtomicApplicator) rollback(checkpoint string) {
	a.logger.Log("Rolling back to checkpoint %.8s", checkpoint)
	if err := a.repo.ResetHard(checkpoint); err != nil {
		a.logger.Log("Rollback reset failed: %v", err)
		return
	}
	if err := a.repo.CleanUntracked(); err != nil {
		a.logger.Log("Rollback clean failed: %v", err)
	}
	a.logger.Log("Rollback completed")
}

// ApplyWithRollback applies the groups in plan order through applyFn. The
// first failing group aborts the whole transaction; success returns an
// aggregate Result carrying every per-group result.
func (a *AtomicApplicator) ApplyWithRollback(groups []hunk.CommitGroup, applyFn func(hunk.CommitGroup) hunk.Result) hunk.Result {
	var results []hunk.Result

	err := a.Atomic(func() error {
		for i, group := range groups {
			a.logger.Log("Applying commit %d/%d: %s", i+1, len(groups), group.ID)
			res := applyFn(group)
			results = append(results, res)
			if res.IsFailure() {
				return fmt.Errorf("failed to apply commit group %s: %s", group.ID, res.Message)
			}
		}
		return nil
	})
	if err != nil {
		return hunk.Failure(err.Error())
	}

	return hunk.Success(fmt.Sprintf("Successfully applied %d commits", len(groups)), results)
}

// CreateSavepoint records the current HEAD for a later narrow restore,
// independent of any enclosing Atomic scope.
func (a *AtomicApplicator) CreateSavepoint() (string, error) {
	sha, err := a.repo.Head()
	if err != nil {
		return "", fmt.Errorf("failed to create savepoint: %w", err)
	}
	a.logger.Log("Created savepoint at %.8s", sha)
	return sha, nil
}

// RestoreSavepoint hard-resets to a previously recorded savepoint.
func (a *AtomicApplicator) RestoreSavepoint(sha string) error {
	if err := a.repo.ResetHard(sha); err != nil {
		return fmt.Errorf("failed to restore savepoint %.8s: %w", sha, err)
	}
	a.logger.Log("Restored savepoint %.8s", sha)
	return nil
}
