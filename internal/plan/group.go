package plan

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/resquash/resquash/internal/hunk"
)

// GroupByFile builds a plan without AI assistance: hunks of the same file
// share a commit, and files connected by cross-file dependencies are
// merged into one commit. Used when no planner is configured.
func GroupByFile(hunks map[string]*hunk.Hunk) *Plan {
	ordered := sortedByID(hunks)

	// Union files that any dependency edge connects.
	parent := make(map[string]string)
	var find func(string) string
	find = func(f string) string {
		if parent[f] == "" || parent[f] == f {
			parent[f] = f
			return f
		}
		parent[f] = find(parent[f])
		return parent[f]
	}
	union := func(a, b string) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[rb] = ra
		}
	}
	for _, h := range ordered {
		find(h.FilePath)
		for dep := range h.Dependencies {
			if other, ok := hunks[dep]; ok && other.FilePath != h.FilePath {
				union(h.FilePath, other.FilePath)
			}
		}
	}

	byRoot := make(map[string][]*hunk.Hunk)
	var roots []string
	for _, h := range ordered {
		root := find(h.FilePath)
		if _, seen := byRoot[root]; !seen {
			roots = append(roots, root)
		}
		byRoot[root] = append(byRoot[root], h)
	}
	sort.Strings(roots)

	p := &Plan{}
	for _, root := range roots {
		group := byRoot[root]
		ids := make([]string, len(group))
		files := make(map[string]bool)
		for i, h := range group {
			ids[i] = h.ID
			files[h.FilePath] = true
		}
		p.Commits = append(p.Commits, hunk.CommitGroup{
			ID:        "commit-" + uuid.NewString()[:8],
			HunkIDs:   ids,
			Message:   describeGroup(group, files),
			Rationale: fmt.Sprintf("Changes grouped by file: %s", strings.Join(fileNames(files), ", ")),
		})
	}
	return p
}

// describeGroup synthesizes a conventional-commit style message from the
// dominant change type of the group.
func describeGroup(group []*hunk.Hunk, files map[string]bool) string {
	adds, dels := 0, 0
	for _, h := range group {
		switch h.Type {
		case hunk.Addition, hunk.Import, hunk.Export:
			adds++
		case hunk.Deletion:
			dels++
		}
	}

	names := fileNames(files)
	subject := names[0]
	if len(names) > 1 {
		subject = fmt.Sprintf("%s and %d more files", names[0], len(names)-1)
	}
	switch {
	case dels > 0 && adds == 0:
		return fmt.Sprintf("refactor: remove code from %s", subject)
	case adds > 0 && dels == 0:
		return fmt.Sprintf("feat: update %s", subject)
	default:
		return fmt.Sprintf("chore: update %s", subject)
	}
}

func fileNames(files map[string]bool) []string {
	names := make([]string, 0, len(files))
	for f := range files {
		names = append(names, filepath.Base(f))
	}
	sort.Strings(names)
	return names
}
