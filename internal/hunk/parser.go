package hunk

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Regexes for the pieces of `git diff` output we care about.
var (
	diffHeaderRegex  = regexp.MustCompile(`^diff --git a/(.+) b/(.+)$`)
	hunkHeaderRegex  = regexp.MustCompile(`^@@ -(\d+)(?:,(\d+))? \+(\d+)(?:,(\d+))? @@`)
	binaryFileRegex  = regexp.MustCompile(`^Binary files .* differ$`)
	importLineRegex  = regexp.MustCompile(`^\s*(import\s|from\s+\S+\s+import\s|#include\s|require\s*\()`)
	exportLineRegex  = regexp.MustCompile(`^\s*(export\s|module\.exports\s|pub\s+(fn|struct|enum|mod)\s)`)
	deletedFileRegex = regexp.MustCompile(`^deleted file mode`)
	newFileRegex     = regexp.MustCompile(`^new file mode`)
)

// ParseDiff parses `git diff` output into the run's hunk set, keyed by hunk
// ID. Line numbers refer to the post-image (the `+` side of each hunk
// header) so that IDs remain stable under re-parsing of the same tree.
func ParseDiff(diff string) (map[string]*Hunk, error) {
	hunks := make(map[string]*Hunk)
	var order []string

	lines := strings.Split(diff, "\n")

	var file string
	var fileDeleted bool
	i := 0
	for i < len(lines) {
		line := lines[i]

		if m := diffHeaderRegex.FindStringSubmatch(line); m != nil {
			file = m[2]
			fileDeleted = false
			i++
			continue
		}

		if file != "" && binaryFileRegex.MatchString(line) {
			h := &Hunk{
				ID:           NewID(file, 0, 0),
				FilePath:     file,
				Type:         Modification,
				IsBinary:     true,
				Dependencies: make(map[string]bool),
				Dependents:   make(map[string]bool),
			}
			hunks[h.ID] = h
			order = append(order, h.ID)
			i++
			continue
		}

		if deletedFileRegex.MatchString(line) {
			fileDeleted = true
			i++
			continue
		}
		if newFileRegex.MatchString(line) {
			i++
			continue
		}

		m := hunkHeaderRegex.FindStringSubmatch(line)
		if m == nil {
			i++
			continue
		}
		if file == "" {
			return nil, fmt.Errorf("hunk header before any file header at line %d", i+1)
		}

		oldStart, _ := strconv.Atoi(m[1])
		oldCount := 1
		if m[2] != "" {
			oldCount, _ = strconv.Atoi(m[2])
		}
		newStart, _ := strconv.Atoi(m[3])
		newCount := 1
		if m[4] != "" {
			newCount, _ = strconv.Atoi(m[4])
		}
		start := newStart
		end := newStart + newCount - 1
		if newCount == 0 {
			// Pure deletion hunks have an empty post-image range; anchor
			// the ID at the deletion point.
			end = newStart
		}

		// Collect the hunk body: everything up to the next hunk or file
		// header.
		var body strings.Builder
		body.WriteString(line)
		body.WriteString("\n")
		j := i + 1
		for j < len(lines) {
			next := lines[j]
			if diffHeaderRegex.MatchString(next) || hunkHeaderRegex.MatchString(next) {
				break
			}
			body.WriteString(next)
			body.WriteString("\n")
			j++
		}

		h := &Hunk{
			ID:           NewID(file, start, end),
			FilePath:     file,
			StartLine:    start,
			EndLine:      end,
			OldStart:     oldStart,
			OldCount:     oldCount,
			Content:      body.String(),
			Type:         classify(body.String(), fileDeleted),
			FileDeleted:  fileDeleted,
			Dependencies: make(map[string]bool),
			Dependents:   make(map[string]bool),
		}
		hunks[h.ID] = h
		order = append(order, h.ID)
		i = j
	}

	inferDependencies(hunks, order)
	return hunks, nil
}

// classify inspects the changed lines of a hunk body to decide its type.
func classify(body string, fileDeleted bool) ChangeType {
	if fileDeleted {
		return Deletion
	}

	var adds, dels int
	var changed []string
	for _, line := range strings.Split(body, "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"):
		case strings.HasPrefix(line, "+"):
			adds++
			changed = append(changed, line[1:])
		case strings.HasPrefix(line, "-"):
			dels++
			changed = append(changed, line[1:])
		}
	}

	imports, exports := 0, 0
	for _, line := range changed {
		if importLineRegex.MatchString(line) {
			imports++
		}
		if exportLineRegex.MatchString(line) {
			exports++
		}
	}
	if len(changed) > 0 && imports == len(changed) {
		return Import
	}
	if len(changed) > 0 && exports == len(changed) {
		return Export
	}

	switch {
	case adds > 0 && dels == 0:
		return Addition
	case dels > 0 && adds == 0:
		return Deletion
	default:
		return Modification
	}
}

// inferDependencies adds intra-file ordering edges: a hunk depends on any
// import hunk of the same file, and on any earlier same-file hunk whose
// range overlaps its own. IDs arrive in diff order so edges stay
// deterministic.
func inferDependencies(hunks map[string]*Hunk, order []string) {
	byFile := make(map[string][]*Hunk)
	for _, id := range order {
		h := hunks[id]
		byFile[h.FilePath] = append(byFile[h.FilePath], h)
	}

	for _, fileHunks := range byFile {
		for i, h := range fileHunks {
			if h.IsBinary {
				continue
			}
			for _, earlier := range fileHunks[:i] {
				if earlier.IsBinary {
					continue
				}
				overlap := h.StartLine <= earlier.EndLine && earlier.StartLine <= h.EndLine
				importEdge := earlier.Type == Import && h.Type != Import
				if overlap || importEdge {
					h.Dependencies[earlier.ID] = true
					earlier.Dependents[h.ID] = true
				}
			}
		}
	}
}
