package strategy

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/resquash/resquash/internal/builder"
	"github.com/resquash/resquash/internal/gitx"
	"github.com/resquash/resquash/internal/hunk"
	"github.com/resquash/resquash/internal/logging"
	"github.com/resquash/resquash/internal/resolve"
)

// backupRefPrefix is where a pre-run safety ref is written so the original
// HEAD stays reachable no matter what the run does.
const backupRefPrefix = "refs/resquash/backup-"

// GitNative builds each planned commit as real file states on a temporary
// branch, then replays the resulting commits onto the original branch with
// cherry-pick. Conflicted picks are resolved or skipped one at a time, so
// a single bad group cannot sink the whole plan.
type GitNative struct {
	repo     *gitx.Repo
	workdir  *gitx.WorkdirManager
	atomic   *gitx.AtomicApplicator
	builder  *builder.CommitBuilder
	resolver *resolve.Resolver
	hunks    map[string]*hunk.Hunk
	logger   logging.Logger

	base        string
	authorName  string
	authorEmail string
}

// NewGitNative wires the native strategy against an open repository. The
// base ref must match the one the hunks were diffed against.
func NewGitNative(repo *gitx.Repo, hunks map[string]*hunk.Hunk, base, authorName, authorEmail string, logger logging.Logger) *GitNative {
	if logger == nil {
		logger = logging.NewNilLogger()
	}
	return &GitNative{
		repo:        repo,
		workdir:     gitx.NewWorkdirManager(repo, logger),
		atomic:      gitx.NewAtomicApplicator(repo, logger),
		builder:     builder.New(repo.Path(), logger),
		resolver:    resolve.New(logger),
		hunks:       hunks,
		logger:      logger,
		base:        base,
		authorName:  authorName,
		authorEmail: authorEmail,
	}
}

func (s *GitNative) Name() string { return "native" }

// ValidateEnvironment checks the git version and that the repository has
// at least one commit to anchor the temporary branch on.
func (s *GitNative) ValidateEnvironment() hunk.Result {
	major, minor, err := s.repo.Version()
	if err != nil {
		return hunk.Failure(fmt.Sprintf("could not determine git version: %v", err))
	}
	if major < 2 {
		return hunk.Failure(fmt.Sprintf("git 2.0 or newer required, found %d.%d", major, minor))
	}
	if _, err := s.repo.Head(); err != nil {
		return hunk.Failure("repository has no commits to build on")
	}
	for _, h := range s.hunks {
		if h.IsBinary {
			return hunk.Failure(fmt.Sprintf("binary change in %s cannot be restaged by file reconstruction", h.FilePath))
		}
	}
	return hunk.Success("environment supports native application", nil)
}

// ApplyCommits runs the full native pipeline: backup ref, clean working
// state, temporary branch build anchored at the merge base, then reset of
// the original branch to the merge base and cherry-pick replay. The hunks
// describe base...HEAD, so both the build and the replay target must start
// from the merge-base state or committed changes would be applied twice.
func (s *GitNative) ApplyCommits(groups []hunk.CommitGroup) hunk.Result {
	head, err := s.repo.Head()
	if err != nil {
		return hunk.Failure(fmt.Sprintf("could not resolve HEAD: %v", err))
	}
	backupRef := fmt.Sprintf("%s%d", backupRefPrefix, time.Now().Unix())
	if err := s.repo.UpdateRef(backupRef, head); err != nil {
		return hunk.Failure(fmt.Sprintf("could not create backup ref: %v", err))
	}
	s.logger.Log("Created backup ref %s at %s", backupRef, head)

	mergeBase, err := s.repo.MergeBase(s.base, "HEAD")
	if err != nil {
		return hunk.Failure(fmt.Sprintf("could not resolve merge base with %s: %v", s.base, err))
	}

	var result hunk.Result
	err = s.workdir.CleanState(func() error {
		shas, buildErr := s.buildOnTemporaryBranch(mergeBase, groups)
		if buildErr != nil {
			return buildErr
		}
		// Rewind the original branch so the replay reconstructs the
		// history from the merge base; the backup ref keeps the old tip.
		if err := s.repo.ResetHard(mergeBase); err != nil {
			return fmt.Errorf("could not reset to merge base %s: %w", mergeBase, err)
		}
		result = s.replay(shas)
		return nil
	})
	if err != nil {
		return hunk.Failure(fmt.Sprintf("native application failed: %v (original HEAD saved at %s)", err, backupRef))
	}
	return result
}

// buildOnTemporaryBranch constructs every planned commit on a throwaway
// branch anchored at base and returns their SHAs in plan order. The
// commits stay reachable through the object store after the branch is
// deleted, which is all the replay needs.
func (s *GitNative) buildOnTemporaryBranch(base string, groups []hunk.CommitGroup) ([]string, error) {
	branch := "resquash-work-" + uuid.NewString()[:8]
	var shas []string
	err := s.workdir.TemporaryBranch(branch, base, func() error {
		res := s.atomic.ApplyWithRollback(groups, s.applyGroup)
		if res.IsFailure() {
			return errors.New(res.Message)
		}
		tip, err := s.repo.Head()
		if err != nil {
			return err
		}
		shas, err = s.repo.RevList(base, tip)
		return err
	})
	if err != nil {
		return nil, err
	}
	return shas, nil
}

// applyGroup materializes one commit group as a commit on the current
// (temporary) branch.
func (s *GitNative) applyGroup(group hunk.CommitGroup) hunk.Result {
	groupHunks, err := hunk.GroupHunks(group, s.hunks)
	if err != nil {
		return hunk.Failure(err.Error())
	}

	states, err := s.builder.BuildFileStates(groupHunks)
	if err != nil {
		return hunk.Failure(err.Error())
	}
	if len(states) == 0 {
		return hunk.Failure(fmt.Sprintf("commit group %s resolves to no file changes", group.ID))
	}

	removed := make(map[string]bool)
	for _, h := range groupHunks {
		if h.FileDeleted {
			removed[h.FilePath] = true
		}
	}

	paths := make([]string, 0, len(states))
	for path := range states {
		paths = append(paths, path)
	}
	sort.Strings(paths)

	for _, path := range paths {
		full := filepath.Join(s.repo.Path(), path)
		if removed[path] && states[path] == "" {
			// Whole-file deletion: remove from disk and let the add below
			// stage the removal.
			if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
				return hunk.Failure(fmt.Sprintf("could not remove %s: %v", path, err))
			}
			continue
		}
		if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
			return hunk.Failure(fmt.Sprintf("could not create directory for %s: %v", path, err))
		}
		if err := os.WriteFile(full, []byte(states[path]), 0o644); err != nil {
			return hunk.Failure(fmt.Sprintf("could not write %s: %v", path, err))
		}
	}

	if err := s.repo.Add(paths...); err != nil {
		return hunk.Failure(err.Error())
	}
	staged, err := s.repo.StagedFiles()
	if err != nil {
		return hunk.Failure(err.Error())
	}
	if len(staged) == 0 {
		return hunk.Failure(fmt.Sprintf("commit group %s staged no changes", group.ID))
	}

	name, email := s.author(group)
	sha, err := s.repo.Commit(group.Message, name, email)
	if err != nil {
		return hunk.Failure(err.Error())
	}
	// Discard any leftover working-tree edits so the next group builds
	// file states from the committed baseline.
	if err := s.repo.ResetHard("HEAD"); err != nil {
		return hunk.Failure(err.Error())
	}

	s.logger.Log("Built commit %s for group %s (%d files)", sha, group.ID, len(paths))
	return hunk.Success(fmt.Sprintf("created commit %s", sha), sha)
}

func (s *GitNative) author(group hunk.CommitGroup) (string, string) {
	name, email := group.AuthorName, group.AuthorEmail
	if name == "" {
		name = s.authorName
	}
	if email == "" {
		email = s.authorEmail
	}
	return name, email
}

// replay cherry-picks the built commits onto the current branch. A pick
// that conflicts is classified, run through the resolver, and skipped;
// application continues with the next commit.
func (s *GitNative) replay(shas []string) hunk.Result {
	applied, skipped := 0, 0
	var conflicts []hunk.ConflictInfo

	for _, sha := range shas {
		err := s.repo.CherryPick(sha)
		if err == nil {
			applied++
			continue
		}

		conflicts = append(conflicts, s.inspectConflicts(sha, err)...)
		s.repo.CherryPickAbort()
		skipped++
		s.logger.Log("Skipped commit %s after conflict: %v", sha, err)
	}

	if skipped > 0 {
		return hunk.Result{
			Status:    hunk.StatusPartial,
			Message:   fmt.Sprintf("Applied %d of %d commits (%d skipped due to conflicts)", applied, len(shas), skipped),
			Conflicts: conflicts,
		}
	}
	return hunk.Success(fmt.Sprintf("Successfully applied %d commits", applied), nil)
}

// inspectConflicts classifies each conflicted file of a failed pick and
// records the resolver's verdict. Only the skip action is acted on today;
// other verdicts are logged so the gap is visible.
func (s *GitNative) inspectConflicts(sha string, pickErr error) []hunk.ConflictInfo {
	files, err := s.repo.ConflictedFiles()
	if err != nil {
		s.logger.Log("Could not list conflicted files for %s: %v", sha, err)
	}

	var infos []hunk.ConflictInfo
	for _, file := range files {
		working := s.readWorkingFile(file)
		ours, _ := s.repo.ShowFile("HEAD", file)

		info := hunk.ConflictInfo{
			FilePath:     file,
			Type:         resolve.Classify(file, working, pickErr.Error()),
			OurContent:   ours,
			TheirContent: working,
			ErrorMessage: pickErr.Error(),
		}
		res := s.resolver.Resolve(info)
		if res.Action != hunk.Skip {
			s.logger.Log("Resolver proposed %s for %s (%s); skipping commit %s anyway", res.Action, file, res.Reason, sha)
		}
		infos = append(infos, info)
	}
	return infos
}

func (s *GitNative) readWorkingFile(path string) string {
	data, err := os.ReadFile(filepath.Join(s.repo.Path(), path))
	if err != nil {
		return ""
	}
	return string(data)
}
