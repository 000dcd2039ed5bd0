// Package validate checks commit plans against the hunk dependency graph
// before anything touches the repository. A plan is rejected when a hunk is
// ordered after one of its dependencies or when the commit-level graph
// induced by cross-commit hunk dependencies contains a cycle.
package validate

import (
	"fmt"
	"sort"
	"strings"

	"github.com/resquash/resquash/internal/hunk"
)

// Result holds the outcome of validating one commit plan. Warnings never
// block application; IsValid is false only when Errors is non-empty.
type Result struct {
	IsValid  bool
	Errors   []string
	Warnings []string

	// DependencyGraph is a read-only snapshot (hunk ID -> dependency IDs)
	// for diagnostics.
	DependencyGraph map[string][]string
}

// Validate checks that the plan respects every hunk dependency edge and
// that the induced commit graph is acyclic.
func Validate(groups []hunk.CommitGroup, hunks map[string]*hunk.Hunk) Result {
	var errs, warnings []string

	// Hunk ID -> commit index, first occurrence wins.
	hunkToCommit := make(map[string]int)
	for idx, group := range groups {
		for _, id := range group.HunkIDs {
			if _, seen := hunkToCommit[id]; !seen {
				hunkToCommit[id] = idx
			}
		}
	}

	graph := make(map[string][]string)
	for _, h := range sortedHunks(hunks) {
		if len(h.Dependencies) == 0 {
			continue
		}
		graph[h.ID] = sortedIDs(h.Dependencies)

		commitIdx, assigned := hunkToCommit[h.ID]
		if !assigned {
			warnings = append(warnings, fmt.Sprintf("Hunk %s not assigned to any commit", h.ID))
			continue
		}

		for _, depID := range sortedIDs(h.Dependencies) {
			depIdx, depAssigned := hunkToCommit[depID]
			if !depAssigned {
				errs = append(errs, fmt.Sprintf("Hunk %s depends on %s, but %s is not in any commit", h.ID, depID, depID))
				continue
			}
			if depIdx > commitIdx {
				fileInfo := ""
				if dep, ok := hunks[depID]; ok && dep.FilePath == h.FilePath {
					fileInfo = fmt.Sprintf(" (both in %s)", h.FilePath)
				}
				errs = append(errs, fmt.Sprintf(
					"Hunk %s in commit #%d depends on %s which is in later commit #%d%s. "+
						"These hunks must be in the same commit or dependency must come first.",
					h.ID, commitIdx+1, depID, depIdx+1, fileInfo))
			}
		}
	}

	errs = append(errs, checkCommitCycles(groups, hunks, hunkToCommit)...)

	return Result{
		IsValid:         len(errs) == 0,
		Errors:          errs,
		Warnings:        warnings,
		DependencyGraph: graph,
	}
}

// checkCommitCycles builds the commit-level dependency graph and reports
// every cycle found, as ordered 1-based commit numbers.
func checkCommitCycles(groups []hunk.CommitGroup, hunks map[string]*hunk.Hunk, hunkToCommit map[string]int) []string {
	commitDeps := make(map[int]map[int]bool, len(groups))
	for idx, group := range groups {
		commitDeps[idx] = make(map[int]bool)
		for _, id := range group.HunkIDs {
			h, ok := hunks[id]
			if !ok || len(h.Dependencies) == 0 {
				continue
			}
			for depID := range h.Dependencies {
				depIdx, assigned := hunkToCommit[depID]
				if assigned && depIdx != idx {
					commitDeps[idx][depIdx] = true
				}
			}
		}
	}

	var errs []string
	visited := make(map[int]bool)
	for start := 0; start < len(groups); start++ {
		if visited[start] {
			continue
		}
		if cycle := findCycleFrom(start, commitDeps, visited); cycle != nil {
			parts := make([]string, len(cycle))
			for i, idx := range cycle {
				parts[i] = fmt.Sprintf("Commit #%d", idx+1)
			}
			errs = append(errs, "Circular dependency detected: "+strings.Join(parts, " -> "))
		}
	}
	return errs
}

// frame is one entry of the iterative DFS stack.
type frame struct {
	node      int
	neighbors []int
	next      int
}

// findCycleFrom runs an explicit-stack DFS from start and returns the first
// cycle found as the path from start down to the repeated node, or nil.
// Recursion is avoided so arbitrarily deep plans cannot blow the stack.
func findCycleFrom(start int, commitDeps map[int]map[int]bool, visited map[int]bool) []int {
	onStack := make(map[int]bool)
	stack := []frame{{node: start, neighbors: sortedInts(commitDeps[start])}}
	visited[start] = true
	onStack[start] = true

	for len(stack) > 0 {
		top := &stack[len(stack)-1]
		if top.next >= len(top.neighbors) {
			onStack[top.node] = false
			stack = stack[:len(stack)-1]
			continue
		}
		neighbor := top.neighbors[top.next]
		top.next++

		if onStack[neighbor] {
			// Cycle: the chain from start down to the current node, closed
			// by the back edge to neighbor.
			path := make([]int, 0, len(stack)+1)
			for _, f := range stack {
				path = append(path, f.node)
			}
			return append(path, neighbor)
		}
		if !visited[neighbor] {
			visited[neighbor] = true
			onStack[neighbor] = true
			stack = append(stack, frame{node: neighbor, neighbors: sortedInts(commitDeps[neighbor])})
		}
	}
	return nil
}

// sortedHunks returns hunks ordered by ID so error output is deterministic.
func sortedHunks(hunks map[string]*hunk.Hunk) []*hunk.Hunk {
	out := make([]*hunk.Hunk, 0, len(hunks))
	for _, h := range hunks {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func sortedIDs(set map[string]bool) []string {
	out := make([]string, 0, len(set))
	for id := range set {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func sortedInts(set map[int]bool) []int {
	out := make([]int, 0, len(set))
	for n := range set {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}
