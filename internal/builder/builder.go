// Package builder reconstructs complete file contents from sets of hunks.
// Hunks touching one file are applied in reverse start-line order so that
// an edit never invalidates the line positions of edits not yet applied;
// that ordering is what prevents the line-shift corruption class.
package builder

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/resquash/resquash/internal/hunk"
	"github.com/resquash/resquash/internal/logging"
)

// CommitBuilder turns hunks into full file states rooted at a repository.
type CommitBuilder struct {
	repoPath string
	logger   logging.Logger
}

// New creates a CommitBuilder for the given repository root.
func New(repoPath string, logger logging.Logger) *CommitBuilder {
	if logger == nil {
		logger = logging.NewNilLogger()
	}
	return &CommitBuilder{repoPath: repoPath, logger: logger}
}

// BuildFileState constructs the complete content of one file with all the
// given hunks applied. A missing file reads as empty (the addition case).
func (b *CommitBuilder) BuildFileState(filePath string, hunks []*hunk.Hunk) (string, error) {
	fullPath := filepath.Join(b.repoPath, filePath)

	var content string
	data, err := os.ReadFile(fullPath)
	switch {
	case err == nil:
		content = string(data)
	case os.IsNotExist(err):
		content = ""
	default:
		return "", fmt.Errorf("failed to read %s: %w", filePath, err)
	}

	// Apply bottom to top so earlier applications cannot shift the line
	// positions of hunks still pending.
	sorted := make([]*hunk.Hunk, len(hunks))
	copy(sorted, hunks)
	sort.SliceStable(sorted, func(i, j int) bool {
		return anchorLine(sorted[i]) > anchorLine(sorted[j])
	})

	for _, h := range sorted {
		content, err = b.applyHunk(content, h)
		if err != nil {
			return "", err
		}
	}
	return content, nil
}

// BuildFileStates builds complete states for every file a commit touches.
// The first per-file failure aborts the whole build; there are no silent
// partial results.
func (b *CommitBuilder) BuildFileStates(hunks []*hunk.Hunk) (map[string]string, error) {
	byFile := make(map[string][]*hunk.Hunk)
	var files []string
	for _, h := range hunks {
		if _, seen := byFile[h.FilePath]; !seen {
			files = append(files, h.FilePath)
		}
		byFile[h.FilePath] = append(byFile[h.FilePath], h)
	}

	states := make(map[string]string, len(files))
	for _, file := range files {
		state, err := b.BuildFileState(file, byFile[file])
		if err != nil {
			return nil, fmt.Errorf("failed to build state for %s: %w", file, err)
		}
		b.logger.Log("Built state for %s with %d hunks", file, len(byFile[file]))
		states[file] = state
	}
	return states, nil
}

// anchorLine is the line a hunk's application is anchored on. Diff-content
// hunks apply at their pre-image position; content-replacement hunks only
// ever carry a post-image position.
func anchorLine(h *hunk.Hunk) int {
	if h.OldStart > 0 {
		return h.OldStart
	}
	return h.StartLine
}

// applyHunk transforms content according to one hunk.
func (b *CommitBuilder) applyHunk(content string, h *hunk.Hunk) (string, error) {
	if h.IsBinary {
		return "", fmt.Errorf("cannot reconstruct binary file %s from hunks", h.FilePath)
	}

	if h.NewContent != nil {
		if h.OldContent != nil {
			// Content-addressed replacement: robust against line drift and
			// idempotent when the replacement already happened.
			return strings.Replace(content, *h.OldContent, *h.NewContent, 1), nil
		}
		if h.Type == hunk.Addition {
			return insertAtLine(content, *h.NewContent, h.StartLine), nil
		}
		// Anything else with only NewContent replaces the whole file.
		return *h.NewContent, nil
	}

	if h.Content != "" {
		return applyDiffContent(content, h), nil
	}
	return content, nil
}

// applyDiffContent applies a unified-diff style hunk body: within the
// hunk's pre-image line range, lines matching a deletion are dropped and
// all additions appended; everything outside the range passes through. The
// pre-image range is used because the builder sees the file as it exists
// before the hunk, not the post-image the hunk ID is anchored on.
func applyDiffContent(content string, h *hunk.Hunk) string {
	lines := splitKeepEnds(content)

	var additions, deletions []string
	for _, line := range splitKeepEnds(h.Content) {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			additions = append(additions, line[1:])
		case strings.HasPrefix(line, "-"):
			deletions = append(deletions, line[1:])
		}
	}

	start := h.OldStart - 1
	end := start + h.OldCount
	if h.OldCount == 0 {
		// An empty pre-image range means "insert after line OldStart"
		// (and "-0,0" means insert at the top of a new file).
		start = h.OldStart
		end = start
	}
	if start < 0 {
		start = 0
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > len(lines) {
		start = len(lines)
	}
	if end < start {
		end = start
	}

	deleted := make(map[string]bool, len(deletions))
	for _, d := range deletions {
		deleted[strings.TrimRight(d, "\n")] = true
	}

	out := make([]string, 0, len(lines)+len(additions))
	out = append(out, lines[:start]...)
	for _, line := range lines[start:end] {
		if !deleted[strings.TrimRight(line, "\n")] {
			out = append(out, line)
		}
	}
	out = append(out, additions...)
	out = append(out, lines[end:]...)

	return strings.Join(out, "")
}

// insertAtLine inserts newContent before the given 1-based line number,
// clamped to the file. A trailing newline is added when the insertion
// would otherwise fuse with the following line.
func insertAtLine(content, newContent string, lineNumber int) string {
	lines := splitKeepEnds(content)

	if newContent != "" && !strings.HasSuffix(newContent, "\n") && len(lines) > 0 {
		newContent += "\n"
	}

	pos := lineNumber - 1
	if pos < 0 {
		pos = 0
	}
	if pos > len(lines) {
		pos = len(lines)
	}

	out := make([]string, 0, len(lines)+1)
	out = append(out, lines[:pos]...)
	out = append(out, newContent)
	out = append(out, lines[pos:]...)
	return strings.Join(out, "")
}

// splitKeepEnds splits content into lines keeping their newline
// terminators, so joins reproduce the input byte for byte.
func splitKeepEnds(content string) []string {
	if content == "" {
		return nil
	}
	var lines []string
	for {
		idx := strings.IndexByte(content, '\n')
		if idx < 0 {
			lines = append(lines, content)
			return lines
		}
		lines = append(lines, content[:idx+1])
		content = content[idx+1:]
		if content == "" {
			return lines
		}
	}
}
