package strategy

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/resquash/resquash/internal/gitx"
	"github.com/resquash/resquash/internal/hunk"
	"github.com/resquash/resquash/internal/logging"
)

// sweepMessage is the commit message for changes the plan left unclaimed.
const sweepMessage = "chore: remaining uncommitted changes"

// LegacyPatch applies each commit group by staging its literal patch text
// with `git apply --cached`. It predates the native strategy and survives
// as the fallback for environments the native path refuses.
type LegacyPatch struct {
	repo        *gitx.Repo
	hunks       map[string]*hunk.Hunk
	logger      logging.Logger
	base        string
	authorName  string
	authorEmail string
}

// NewLegacyPatch wires the legacy strategy against an open repository. The
// base ref must match the one the hunks were diffed against.
func NewLegacyPatch(repo *gitx.Repo, hunks map[string]*hunk.Hunk, base, authorName, authorEmail string, logger logging.Logger) *LegacyPatch {
	if logger == nil {
		logger = logging.NewNilLogger()
	}
	return &LegacyPatch{
		repo:        repo,
		hunks:       hunks,
		logger:      logger,
		base:        base,
		authorName:  authorName,
		authorEmail: authorEmail,
	}
}

func (s *LegacyPatch) Name() string { return "legacy" }

// ValidateEnvironment only needs a repository with a commit to amend on.
func (s *LegacyPatch) ValidateEnvironment() hunk.Result {
	if _, err := s.repo.Head(); err != nil {
		return hunk.Failure("repository has no commits to build on")
	}
	return hunk.Success("environment supports patch application", nil)
}

// ApplyCommits rewinds HEAD to the merge base with the base branch (the
// patches describe that range, so applying them on the existing tip would
// double up committed changes), then stages and commits each group's patch
// in plan order, then sweeps whatever the plan left behind into a final
// catch-all commit.
func (s *LegacyPatch) ApplyCommits(groups []hunk.CommitGroup) hunk.Result {
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
	if mergeBase != head {
		// Soft reset keeps the final file contents in the working tree;
		// the per-group index resets below stage against the merge base.
		if err := s.repo.ResetSoft(mergeBase); err != nil {
			return hunk.Failure(fmt.Sprintf("could not reset to merge base %s: %v (original HEAD saved at %s)", mergeBase, err, backupRef))
		}
	}

	applied := 0
	for _, group := range groups {
		if err := s.applyGroup(group); err != nil {
			return hunk.Failure(fmt.Sprintf("failed to apply commit group %s: %v (original HEAD saved at %s)", group.ID, err, backupRef))
		}
		applied++
	}

	if err := s.sweepLeftovers(); err != nil {
		return hunk.Failure(fmt.Sprintf("failed to commit remaining changes: %v (original HEAD saved at %s)", err, backupRef))
	}
	return hunk.Success(fmt.Sprintf("Successfully applied %d commits", applied), nil)
}

func (s *LegacyPatch) applyGroup(group hunk.CommitGroup) error {
	groupHunks, err := hunk.GroupHunks(group, s.hunks)
	if err != nil {
		return err
	}

	// Binary changes have no patch text; leave them in the working tree
	// for the sweep commit.
	textHunks := groupHunks[:0]
	for _, h := range groupHunks {
		if h.IsBinary {
			s.logger.Log("Group %s: binary change %s deferred to the sweep commit", group.ID, h.FilePath)
			continue
		}
		textHunks = append(textHunks, h)
	}
	if len(textHunks) == 0 {
		s.logger.Log("Group %s has only binary changes; skipping", group.ID)
		return nil
	}

	patch, err := buildPatch(textHunks)
	if err != nil {
		return err
	}

	if err := s.repo.ResetIndex(); err != nil {
		return err
	}

	patchPath := filepath.Join(os.TempDir(), "resquash-"+uuid.NewString()[:8]+".patch")
	if err := os.WriteFile(patchPath, []byte(patch), 0o600); err != nil {
		return fmt.Errorf("could not write patch file: %w", err)
	}
	defer os.Remove(patchPath)

	if err := s.repo.ApplyCached(patchPath); err != nil {
		return err
	}
	staged, err := s.repo.StagedFiles()
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		return fmt.Errorf("patch for group %s staged no changes", group.ID)
	}

	name, email := group.AuthorName, group.AuthorEmail
	if name == "" {
		name = s.authorName
	}
	if email == "" {
		email = s.authorEmail
	}
	sha, err := s.repo.Commit(group.Message, name, email)
	if err != nil {
		return err
	}
	s.logger.Log("Committed %s for group %s (%d files staged)", sha, group.ID, len(staged))
	return nil
}

// sweepLeftovers commits any working-tree changes the plan did not claim.
func (s *LegacyPatch) sweepLeftovers() error {
	dirty, err := s.repo.IsDirty()
	if err != nil {
		return err
	}
	if !dirty {
		return nil
	}
	if err := s.repo.Add("."); err != nil {
		return err
	}
	staged, err := s.repo.StagedFiles()
	if err != nil {
		return err
	}
	if len(staged) == 0 {
		return nil
	}
	sha, err := s.repo.Commit(sweepMessage, s.authorName, s.authorEmail)
	if err != nil {
		return err
	}
	s.logger.Log("Swept %d leftover files into %s", len(staged), sha)
	return nil
}

// buildPatch reassembles a minimal unified diff from the hunks' raw diff
// text. Hunks that carry explicit content instead of diff text cannot be
// expressed as a patch and force the caller over to the native strategy.
func buildPatch(hunks []*hunk.Hunk) (string, error) {
	byFile := make(map[string][]*hunk.Hunk)
	var fileOrder []string
	for _, h := range hunks {
		if h.Content == "" {
			return "", fmt.Errorf("hunk %s has no patch text", h.ID)
		}
		if _, seen := byFile[h.FilePath]; !seen {
			fileOrder = append(fileOrder, h.FilePath)
		}
		byFile[h.FilePath] = append(byFile[h.FilePath], h)
	}

	var b strings.Builder
	for _, file := range fileOrder {
		fmt.Fprintf(&b, "diff --git a/%s b/%s\n", file, file)
		fmt.Fprintf(&b, "--- a/%s\n", file)
		fmt.Fprintf(&b, "+++ b/%s\n", file)
		for _, h := range byFile[file] {
			b.WriteString(h.Content)
			if !strings.HasSuffix(h.Content, "\n") {
				b.WriteString("\n")
			}
		}
	}
	return b.String(), nil
}
