// Package plan models the commit plan and the three ways to obtain one:
// a plan file, the heuristic grouper, and the AI planner.
package plan

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/viper"

	"github.com/resquash/resquash/internal/hunk"
	"github.com/resquash/resquash/internal/logging"
)

// SweepMessage is the commit message of the trailing group that collects
// hunks no other group claimed.
const SweepMessage = "chore: remaining uncommitted changes"

// Plan is an ordered list of proposed commits over one run's hunk set.
type Plan struct {
	Commits []hunk.CommitGroup `json:"commits" mapstructure:"commits"`
}

// Load reads a plan from a JSON or YAML file.
func Load(path string) (*Plan, error) {
	v := viper.New()
	v.SetConfigFile(path)
	switch ext := strings.TrimPrefix(filepath.Ext(path), "."); ext {
	case "json", "yaml", "yml":
		v.SetConfigType(ext)
	default:
		return nil, fmt.Errorf("unsupported plan format %q (want .json, .yaml or .yml)", ext)
	}
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read plan file: %w", err)
	}

	var p Plan
	if err := v.Unmarshal(&p); err != nil {
		return nil, fmt.Errorf("failed to parse plan file: %w", err)
	}
	if len(p.Commits) == 0 {
		return nil, fmt.Errorf("plan file %s contains no commits", path)
	}
	return &p, nil
}

// Normalize makes the plan a clean partition of the hunk set: duplicate
// hunk IDs keep their first occurrence, unknown IDs are dropped, and any
// hunk no group claimed is swept into a trailing catch-all group. Groups
// without an ID get one. Returns the warnings produced along the way.
func (p *Plan) Normalize(hunks map[string]*hunk.Hunk, logger logging.Logger) []string {
	if logger == nil {
		logger = logging.NewNilLogger()
	}
	var warnings []string
	warn := func(format string, args ...interface{}) {
		w := fmt.Sprintf(format, args...)
		warnings = append(warnings, w)
		logger.Log("Plan warning: %s", w)
	}

	claimed := make(map[string]bool, len(hunks))
	kept := p.Commits[:0]
	for i := range p.Commits {
		g := p.Commits[i]
		if g.ID == "" {
			g.ID = "commit-" + uuid.NewString()[:8]
		}

		ids := g.HunkIDs[:0]
		for _, id := range g.HunkIDs {
			if _, ok := hunks[id]; !ok {
				warn("group %s references unknown hunk %s; dropped", g.ID, id)
				continue
			}
			if claimed[id] {
				warn("hunk %s claimed more than once; keeping first occurrence", id)
				continue
			}
			claimed[id] = true
			ids = append(ids, id)
		}
		g.HunkIDs = ids
		if len(g.HunkIDs) == 0 {
			warn("group %s has no applicable hunks; dropped", g.ID)
			continue
		}
		kept = append(kept, g)
	}
	p.Commits = kept

	var leftovers []string
	for _, h := range sortedByID(hunks) {
		if !claimed[h.ID] {
			leftovers = append(leftovers, h.ID)
		}
	}
	if len(leftovers) > 0 {
		warn("%d hunks were not claimed by any group; sweeping into %q", len(leftovers), SweepMessage)
		p.Commits = append(p.Commits, hunk.CommitGroup{
			ID:        "commit-" + uuid.NewString()[:8],
			HunkIDs:   leftovers,
			Message:   SweepMessage,
			Rationale: "Changes not claimed by any planned commit",
		})
	}
	return warnings
}

// sortedByID orders hunks by file, then start line, then ID so plan
// output stays deterministic across runs.
func sortedByID(hunks map[string]*hunk.Hunk) []*hunk.Hunk {
	out := make([]*hunk.Hunk, 0, len(hunks))
	for _, h := range hunks {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.FilePath != b.FilePath {
			return a.FilePath < b.FilePath
		}
		if a.StartLine != b.StartLine {
			return a.StartLine < b.StartLine
		}
		return a.ID < b.ID
	})
	return out
}
