package builder

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/resquash/resquash/internal/hunk"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
}

func strptr(s string) *string { return &s }

func TestBuildFileStateReplacement(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha\nbeta\ngamma\n")

	b := New(dir, nil)
	h := &hunk.Hunk{
		ID:         "a.txt:2-2",
		FilePath:   "a.txt",
		StartLine:  2,
		EndLine:    2,
		Type:       hunk.Modification,
		OldContent: strptr("beta"),
		NewContent: strptr("BETA"),
	}

	got, err := b.BuildFileState("a.txt", []*hunk.Hunk{h})
	if err != nil {
		t.Fatalf("BuildFileState failed: %v", err)
	}
	if got != "alpha\nBETA\ngamma\n" {
		t.Errorf("Unexpected content: %q", got)
	}
}

func TestBuildFileStateReverseOrder(t *testing.T) {
	// H1 inserts two lines at line 1, H2 replaces original line 2. Applying
	// in reverse start-line order must land both edits regardless of the
	// offsets H1 introduces.
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a\nb\n")

	b := New(dir, nil)
	h1 := &hunk.Hunk{
		ID:         "a.txt:1-2",
		FilePath:   "a.txt",
		StartLine:  1,
		EndLine:    2,
		Type:       hunk.Addition,
		NewContent: strptr("x\ny\n"),
	}
	h2 := &hunk.Hunk{
		ID:         "a.txt:2-2",
		FilePath:   "a.txt",
		StartLine:  2,
		EndLine:    2,
		Type:       hunk.Modification,
		OldContent: strptr("b"),
		NewContent: strptr("B"),
	}

	got, err := b.BuildFileState("a.txt", []*hunk.Hunk{h1, h2})
	if err != nil {
		t.Fatalf("BuildFileState failed: %v", err)
	}
	if got != "x\ny\na\nB\n" {
		t.Errorf("Expected both the insertion and the replacement, got %q", got)
	}
}

func TestBuildFileStateIdempotent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha\nBETA\ngamma\n")

	b := New(dir, nil)
	h := &hunk.Hunk{
		ID:         "a.txt:2-2",
		FilePath:   "a.txt",
		StartLine:  2,
		EndLine:    2,
		Type:       hunk.Modification,
		OldContent: strptr("beta"),
		NewContent: strptr("BETA"),
	}

	// The replacement already happened; re-applying must be a no-op.
	got, err := b.BuildFileState("a.txt", []*hunk.Hunk{h})
	if err != nil {
		t.Fatalf("BuildFileState failed: %v", err)
	}
	if got != "alpha\nBETA\ngamma\n" {
		t.Errorf("Re-application must be a no-op, got %q", got)
	}
}

func TestBuildFileStateMissingFile(t *testing.T) {
	dir := t.TempDir()

	b := New(dir, nil)
	h := &hunk.Hunk{
		ID:         "new.txt:1-2",
		FilePath:   "new.txt",
		StartLine:  1,
		EndLine:    2,
		Type:       hunk.Addition,
		NewContent: strptr("hello\nworld\n"),
	}

	got, err := b.BuildFileState("new.txt", []*hunk.Hunk{h})
	if err != nil {
		t.Fatalf("BuildFileState failed: %v", err)
	}
	if got != "hello\nworld\n" {
		t.Errorf("Unexpected content for new file: %q", got)
	}
}

func TestBuildFileStateDiffContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "one\ntwo\nthree\nfour\n")

	b := New(dir, nil)
	h := &hunk.Hunk{
		ID:        "a.txt:2-3",
		FilePath:  "a.txt",
		StartLine: 2,
		EndLine:   3,
		OldStart:  2,
		OldCount:  2,
		Type:      hunk.Modification,
		Content:   "@@ -2,2 +2,2 @@\n-two\n+TWO\n three\n",
	}

	got, err := b.BuildFileState("a.txt", []*hunk.Hunk{h})
	if err != nil {
		t.Fatalf("BuildFileState failed: %v", err)
	}
	if got != "one\nthree\nTWO\nfour\n" {
		t.Errorf("Unexpected diff application result: %q", got)
	}
}

func TestBuildFileStateShrinkingHunk(t *testing.T) {
	// The hunk removes two lines but its post-image range covers only one,
	// so the application window must come from the pre-image side.
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha\nbeta\ngamma\ndelta\n")

	b := New(dir, nil)
	h := &hunk.Hunk{
		ID:        "a.txt:2-2",
		FilePath:  "a.txt",
		StartLine: 2,
		EndLine:   2,
		OldStart:  2,
		OldCount:  3,
		Type:      hunk.Deletion,
		Content:   "@@ -2,3 +2,1 @@\n-beta\n-gamma\n delta\n",
	}

	got, err := b.BuildFileState("a.txt", []*hunk.Hunk{h})
	if err != nil {
		t.Fatalf("BuildFileState failed: %v", err)
	}
	if got != "alpha\ndelta\n" {
		t.Errorf("Both deletions must land, got %q", got)
	}
}

func TestBuildFileStatePureDeletionHunk(t *testing.T) {
	// A "+N,0" hunk has an empty post-image range; the deletions still have
	// to be applied over the pre-image window.
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "alpha\nbeta\ngamma\n")

	b := New(dir, nil)
	h := &hunk.Hunk{
		ID:        "a.txt:1-1",
		FilePath:  "a.txt",
		StartLine: 1,
		EndLine:   1,
		OldStart:  2,
		OldCount:  2,
		Type:      hunk.Deletion,
		Content:   "@@ -2,2 +1,0 @@\n-beta\n-gamma\n",
	}

	got, err := b.BuildFileState("a.txt", []*hunk.Hunk{h})
	if err != nil {
		t.Fatalf("BuildFileState failed: %v", err)
	}
	if got != "alpha\n" {
		t.Errorf("Pure deletion must remove its lines, got %q", got)
	}
}

func TestBuildFileStatesGroupsByFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "a.txt", "a\n")
	writeFile(t, dir, "b.txt", "b\n")

	b := New(dir, nil)
	hunks := []*hunk.Hunk{
		{ID: "a.txt:1-1", FilePath: "a.txt", StartLine: 1, EndLine: 1, Type: hunk.Modification, OldContent: strptr("a"), NewContent: strptr("A")},
		{ID: "b.txt:1-1", FilePath: "b.txt", StartLine: 1, EndLine: 1, Type: hunk.Modification, OldContent: strptr("b"), NewContent: strptr("B")},
	}

	states, err := b.BuildFileStates(hunks)
	if err != nil {
		t.Fatalf("BuildFileStates failed: %v", err)
	}
	if states["a.txt"] != "A\n" || states["b.txt"] != "B\n" {
		t.Errorf("Unexpected states: %v", states)
	}
}

func TestBuildFileStatesBinaryRefused(t *testing.T) {
	dir := t.TempDir()

	b := New(dir, nil)
	hunks := []*hunk.Hunk{
		{ID: "logo.png:0-0", FilePath: "logo.png", IsBinary: true},
	}

	_, err := b.BuildFileStates(hunks)
	if err == nil {
		t.Fatal("Expected error for binary hunk")
	}
	if !strings.Contains(err.Error(), "logo.png") {
		t.Errorf("Error should name the file, got: %v", err)
	}
}
