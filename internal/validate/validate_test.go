package validate

import (
	"strings"
	"testing"

	"github.com/resquash/resquash/internal/hunk"
)

func makeHunk(id, file string, deps ...string) *hunk.Hunk {
	h := &hunk.Hunk{
		ID:           id,
		FilePath:     file,
		Dependencies: make(map[string]bool),
		Dependents:   make(map[string]bool),
	}
	for _, d := range deps {
		h.Dependencies[d] = true
	}
	return h
}

func TestValidateOrderedPlan(t *testing.T) {
	hunks := map[string]*hunk.Hunk{
		"a.go:1-5":   makeHunk("a.go:1-5", "a.go"),
		"a.go:10-12": makeHunk("a.go:10-12", "a.go", "a.go:1-5"),
	}
	groups := []hunk.CommitGroup{
		{ID: "g1", HunkIDs: []string{"a.go:1-5"}},
		{ID: "g2", HunkIDs: []string{"a.go:10-12"}},
	}

	res := Validate(groups, hunks)
	if !res.IsValid {
		t.Fatalf("Expected valid plan, got errors: %v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("Expected no warnings, got %v", res.Warnings)
	}
	if deps := res.DependencyGraph["a.go:10-12"]; len(deps) != 1 || deps[0] != "a.go:1-5" {
		t.Errorf("Dependency graph snapshot wrong: %v", res.DependencyGraph)
	}
}

func TestValidateSameCommitDependency(t *testing.T) {
	hunks := map[string]*hunk.Hunk{
		"a.go:1-5":   makeHunk("a.go:1-5", "a.go"),
		"a.go:10-12": makeHunk("a.go:10-12", "a.go", "a.go:1-5"),
	}
	groups := []hunk.CommitGroup{
		{ID: "g1", HunkIDs: []string{"a.go:10-12", "a.go:1-5"}},
	}

	if res := Validate(groups, hunks); !res.IsValid {
		t.Fatalf("Dependency within the same commit must be valid, got %v", res.Errors)
	}
}

func TestValidateDependencyInLaterCommit(t *testing.T) {
	hunks := map[string]*hunk.Hunk{
		"a.go:1-5":   makeHunk("a.go:1-5", "a.go"),
		"a.go:10-12": makeHunk("a.go:10-12", "a.go", "a.go:1-5"),
	}
	groups := []hunk.CommitGroup{
		{ID: "g1", HunkIDs: []string{"a.go:10-12"}},
		{ID: "g2", HunkIDs: []string{"a.go:1-5"}},
	}

	res := Validate(groups, hunks)
	if res.IsValid {
		t.Fatal("Expected invalid plan")
	}
	if len(res.Errors) == 0 {
		t.Fatal("Expected at least one error")
	}
	msg := res.Errors[0]
	for _, want := range []string{"commit #1", "commit #2", "(both in a.go)", "same commit or dependency must come first"} {
		if !strings.Contains(msg, want) {
			t.Errorf("Error message missing %q: %s", want, msg)
		}
	}
}

func TestValidateUnassignedDependency(t *testing.T) {
	hunks := map[string]*hunk.Hunk{
		"a.go:10-12": makeHunk("a.go:10-12", "a.go", "a.go:1-5"),
	}
	groups := []hunk.CommitGroup{
		{ID: "g1", HunkIDs: []string{"a.go:10-12"}},
	}

	res := Validate(groups, hunks)
	if res.IsValid {
		t.Fatal("Expected invalid plan")
	}
	if !strings.Contains(res.Errors[0], "not in any commit") {
		t.Errorf("Unexpected error: %s", res.Errors[0])
	}
}

func TestValidateUnassignedHunkWarns(t *testing.T) {
	hunks := map[string]*hunk.Hunk{
		"a.go:1-5":   makeHunk("a.go:1-5", "a.go"),
		"a.go:10-12": makeHunk("a.go:10-12", "a.go", "a.go:1-5"),
	}
	groups := []hunk.CommitGroup{
		{ID: "g1", HunkIDs: []string{"a.go:1-5"}},
	}

	res := Validate(groups, hunks)
	if !res.IsValid {
		t.Fatalf("Warnings must not block, got errors: %v", res.Errors)
	}
	if len(res.Warnings) != 1 || !strings.Contains(res.Warnings[0], "not assigned to any commit") {
		t.Errorf("Expected unassigned-hunk warning, got %v", res.Warnings)
	}
}

func TestValidateCircularDependency(t *testing.T) {
	// Three commits tied into a ring via cross-commit hunk dependencies:
	// commit 1 depends on commit 2, 2 on 3, 3 on 1.
	hunks := map[string]*hunk.Hunk{
		"a.go:1-1": makeHunk("a.go:1-1", "a.go", "b.go:1-1"),
		"b.go:1-1": makeHunk("b.go:1-1", "b.go", "c.go:1-1"),
		"c.go:1-1": makeHunk("c.go:1-1", "c.go", "a.go:1-1"),
	}
	groups := []hunk.CommitGroup{
		{ID: "g1", HunkIDs: []string{"a.go:1-1"}},
		{ID: "g2", HunkIDs: []string{"b.go:1-1"}},
		{ID: "g3", HunkIDs: []string{"c.go:1-1"}},
	}

	res := Validate(groups, hunks)
	if res.IsValid {
		t.Fatal("Expected cycle to invalidate the plan")
	}

	var cycleMsg string
	for _, e := range res.Errors {
		if strings.Contains(e, "Circular dependency detected") {
			cycleMsg = e
			break
		}
	}
	if cycleMsg == "" {
		t.Fatalf("No cycle error reported: %v", res.Errors)
	}
	if !strings.Contains(cycleMsg, "Commit #1 -> Commit #2 -> Commit #3 -> Commit #1") {
		t.Errorf("Cycle not reported in order: %s", cycleMsg)
	}
}

func TestValidateDeepChainNoRecursion(t *testing.T) {
	// A long linear chain exercises the explicit-stack DFS.
	hunks := make(map[string]*hunk.Hunk)
	groups := make([]hunk.CommitGroup, 0, 5000)
	prev := ""
	for i := 0; i < 5000; i++ {
		id := hunk.NewID("f.go", i*10, i*10+1)
		var h *hunk.Hunk
		if prev == "" {
			h = makeHunk(id, "f.go")
		} else {
			h = makeHunk(id, "f.go", prev)
		}
		hunks[id] = h
		groups = append(groups, hunk.CommitGroup{ID: id, HunkIDs: []string{id}})
		prev = id
	}

	if res := Validate(groups, hunks); !res.IsValid {
		t.Fatalf("Linear chain must be valid, got %d errors", len(res.Errors))
	}
}
