package gitx

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/resquash/resquash/internal/hunk"
)

// fakeExecutor replays canned responses keyed by the joined git arguments
// and records every invocation in order.
type fakeExecutor struct {
	responses map[string]fakeResponse
	calls     []string
}

type fakeResponse struct {
	out string
	err error
}

func newFakeExecutor() *fakeExecutor {
	return &fakeExecutor{responses: make(map[string]fakeResponse)}
}

func (f *fakeExecutor) on(argv string, out string, err error) {
	f.responses[argv] = fakeResponse{out: out, err: err}
}

func (f *fakeExecutor) Run(dir, name string, args ...string) ([]byte, error) {
	call := strings.Join(args, " ")
	f.calls = append(f.calls, call)
	if resp, ok := f.responses[call]; ok {
		return []byte(resp.out), resp.err
	}
	return nil, nil
}

func (f *fakeExecutor) called(argv string) bool {
	for _, c := range f.calls {
		if c == argv {
			return true
		}
	}
	return false
}

func openTestRepo(t *testing.T, exec *fakeExecutor) *Repo {
	t.Helper()
	repo, err := OpenWithExecutor("/repo", exec, nil)
	if err != nil {
		t.Fatalf("OpenWithExecutor failed: %v", err)
	}
	return repo
}

func TestOpenRejectsNonRepo(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse --git-dir", "fatal: not a git repository", errors.New("exit status 128"))

	if _, err := OpenWithExecutor("/tmp/nowhere", exec, nil); !errors.Is(err, ErrNotARepo) {
		t.Fatalf("Expected ErrNotARepo, got %v", err)
	}
}

func TestVersionParsing(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("version", "git version 2.39.2", nil)
	repo := openTestRepo(t, exec)

	major, minor, err := repo.Version()
	if err != nil {
		t.Fatalf("Version failed: %v", err)
	}
	if major != 2 || minor != 39 {
		t.Errorf("Expected 2.39, got %d.%d", major, minor)
	}
}

func TestCurrentBranchDetached(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse --abbrev-ref HEAD", "HEAD", nil)
	repo := openTestRepo(t, exec)

	if _, err := repo.CurrentBranch(); err == nil {
		t.Fatal("Expected error for detached HEAD")
	}
}

func TestCommitUsesAuthorIdentity(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse HEAD", "abc123", nil)
	repo := openTestRepo(t, exec)

	sha, err := repo.Commit("feat: add thing", "Dev", "dev@example.com")
	if err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if sha != "abc123" {
		t.Errorf("Expected sha abc123, got %s", sha)
	}
	want := `-c user.name=Dev -c user.email=dev@example.com commit -m feat: add thing --author Dev <dev@example.com>`
	if !exec.called(want) {
		t.Errorf("Commit argv wrong; calls: %v", exec.calls)
	}
}

func TestConflictedFilesEmpty(t *testing.T) {
	exec := newFakeExecutor()
	repo := openTestRepo(t, exec)

	files, err := repo.ConflictedFiles()
	if err != nil {
		t.Fatalf("ConflictedFiles failed: %v", err)
	}
	if files != nil {
		t.Errorf("Expected nil, got %v", files)
	}
}

func TestRevListOrder(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-list --reverse main..tmp", "aaa\nbbb\nccc", nil)
	repo := openTestRepo(t, exec)

	shas, err := repo.RevList("main", "tmp")
	if err != nil {
		t.Fatalf("RevList failed: %v", err)
	}
	if len(shas) != 3 || shas[0] != "aaa" || shas[2] != "ccc" {
		t.Errorf("Unexpected rev list: %v", shas)
	}
}

func TestDiffUsesMergeBaseRange(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("diff main...HEAD", "diff --git a/a.txt b/a.txt\n", nil)
	repo := openTestRepo(t, exec)

	out, err := repo.Diff("main")
	if err != nil {
		t.Fatalf("Diff failed: %v", err)
	}
	if out != "diff --git a/a.txt b/a.txt\n" {
		t.Errorf("Unexpected diff output: %q", out)
	}
	if exec.called("diff main") {
		t.Errorf("Two-dot diff must not be used; calls: %v", exec.calls)
	}
}

func TestMergeBase(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("merge-base main HEAD", "mb123\n", nil)
	repo := openTestRepo(t, exec)

	sha, err := repo.MergeBase("main", "HEAD")
	if err != nil {
		t.Fatalf("MergeBase failed: %v", err)
	}
	if sha != "mb123" {
		t.Errorf("Expected mb123, got %s", sha)
	}
}

func TestResolveBaseRefPrefersConfiguredName(t *testing.T) {
	exec := newFakeExecutor()
	repo := openTestRepo(t, exec)

	ref, err := repo.ResolveBaseRef("main")
	if err != nil {
		t.Fatalf("ResolveBaseRef failed: %v", err)
	}
	if ref != "main" {
		t.Errorf("Expected main, got %s", ref)
	}
}

func TestResolveBaseRefFallsBackToOrigin(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse --verify --quiet main", "", errors.New("exit status 1"))
	repo := openTestRepo(t, exec)

	ref, err := repo.ResolveBaseRef("main")
	if err != nil {
		t.Fatalf("ResolveBaseRef failed: %v", err)
	}
	if ref != "origin/main" {
		t.Errorf("Expected origin/main, got %s", ref)
	}
}

func TestResolveBaseRefFallsBackToRootCommit(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse --verify --quiet main", "", errors.New("exit status 1"))
	exec.on("rev-parse --verify --quiet origin/main", "", errors.New("exit status 1"))
	exec.on("rev-parse --verify --quiet master", "", errors.New("exit status 1"))
	exec.on("rev-list --max-parents=0 HEAD", "root999\n", nil)
	repo := openTestRepo(t, exec)

	ref, err := repo.ResolveBaseRef("main")
	if err != nil {
		t.Fatalf("ResolveBaseRef failed: %v", err)
	}
	if ref != "root999" {
		t.Errorf("Expected root commit, got %s", ref)
	}
}

func TestCleanStateStashesOnlyWhenDirty(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("status --porcelain", " M a.txt\n?? b.txt", nil)
	repo := openTestRepo(t, exec)

	w := NewWorkdirManager(repo, nil)
	ran := false
	if err := w.CleanState(func() error { ran = true; return nil }); err != nil {
		t.Fatalf("CleanState failed: %v", err)
	}
	if !ran {
		t.Fatal("Inner function did not run")
	}
	if !exec.called("stash push -u -m resquash-workdir") {
		t.Errorf("Expected stash push; calls: %v", exec.calls)
	}
	if !exec.called("stash pop") {
		t.Errorf("Expected stash pop; calls: %v", exec.calls)
	}
}

func TestCleanStateNoStashWhenClean(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("status --porcelain", "", nil)
	repo := openTestRepo(t, exec)

	w := NewWorkdirManager(repo, nil)
	if err := w.CleanState(func() error { return nil }); err != nil {
		t.Fatalf("CleanState failed: %v", err)
	}
	if exec.called("stash push -u -m resquash-workdir") || exec.called("stash pop") {
		t.Errorf("Clean tree must not be stashed; calls: %v", exec.calls)
	}
}

func TestCleanStateRestoresOnInnerError(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("status --porcelain", " M a.txt", nil)
	repo := openTestRepo(t, exec)

	w := NewWorkdirManager(repo, nil)
	wantErr := errors.New("boom")
	if err := w.CleanState(func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Inner error must propagate, got %v", err)
	}
	if !exec.called("stash pop") {
		t.Errorf("Stash must be restored on error paths; calls: %v", exec.calls)
	}
}

func TestTemporaryBranchLifecycle(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse --abbrev-ref HEAD", "main", nil)
	repo := openTestRepo(t, exec)

	w := NewWorkdirManager(repo, nil)
	if err := w.TemporaryBranch("tmp-1", "base123", func() error { return nil }); err != nil {
		t.Fatalf("TemporaryBranch failed: %v", err)
	}

	for _, want := range []string{"checkout -b tmp-1 base123", "checkout main", "branch -D tmp-1"} {
		if !exec.called(want) {
			t.Errorf("Missing call %q; calls: %v", want, exec.calls)
		}
	}
}

func TestTemporaryBranchDeleteFailureNotEscalated(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse --abbrev-ref HEAD", "main", nil)
	exec.on("branch -D tmp-1", "error: branch in use", errors.New("exit status 1"))
	repo := openTestRepo(t, exec)

	w := NewWorkdirManager(repo, nil)
	if err := w.TemporaryBranch("tmp-1", "base123", func() error { return nil }); err != nil {
		t.Fatalf("Branch deletion failure must not escalate, got %v", err)
	}
}

func TestTemporaryBranchInnerErrorWins(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse --abbrev-ref HEAD", "main", nil)
	exec.on("checkout main", "error", errors.New("exit status 1"))
	repo := openTestRepo(t, exec)

	w := NewWorkdirManager(repo, nil)
	wantErr := errors.New("apply failed")
	err := w.TemporaryBranch("tmp-1", "base123", func() error { return wantErr })
	if !errors.Is(err, wantErr) {
		t.Fatalf("Primary error must not be masked by cleanup, got %v", err)
	}
}

func TestAtomicRollsBackOnError(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse HEAD", "checkpointsha", nil)
	repo := openTestRepo(t, exec)

	a := NewAtomicApplicator(repo, nil)
	wantErr := errors.New("stage failed")
	if err := a.Atomic(func() error { return wantErr }); !errors.Is(err, wantErr) {
		t.Fatalf("Original error must propagate, got %v", err)
	}
	if !exec.called("reset --hard checkpointsha") {
		t.Errorf("Expected hard reset to checkpoint; calls: %v", exec.calls)
	}
	if !exec.called("clean -fd") {
		t.Errorf("Expected untracked cleanup; calls: %v", exec.calls)
	}
}

func TestAtomicNoRollbackOnSuccess(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse HEAD", "checkpointsha", nil)
	repo := openTestRepo(t, exec)

	a := NewAtomicApplicator(repo, nil)
	if err := a.Atomic(func() error { return nil }); err != nil {
		t.Fatalf("Atomic failed: %v", err)
	}
	if exec.called("reset --hard checkpointsha") {
		t.Errorf("Success must not reset; calls: %v", exec.calls)
	}
}

func TestApplyWithRollbackStopsAtFirstFailure(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse HEAD", "checkpointsha", nil)
	repo := openTestRepo(t, exec)

	a := NewAtomicApplicator(repo, nil)
	applied := 0
	res := a.ApplyWithRollback(testGroups(5), func(g hunk.CommitGroup) hunk.Result {
		applied++
		if applied == 3 {
			return hunk.Failure("no staged changes")
		}
		return hunk.Success("ok", nil)
	})

	if !res.IsFailure() {
		t.Fatalf("Expected failure result, got %v", res.Status)
	}
	if applied != 3 {
		t.Errorf("Groups after the failure must not run, applied=%d", applied)
	}
	if !exec.called("reset --hard checkpointsha") {
		t.Errorf("Failure must roll back; calls: %v", exec.calls)
	}
	if !strings.Contains(res.Message, "no staged changes") {
		t.Errorf("Failure message lost: %s", res.Message)
	}
}

func TestApplyWithRollbackAggregatesResults(t *testing.T) {
	exec := newFakeExecutor()
	exec.on("rev-parse HEAD", "checkpointsha", nil)
	repo := openTestRepo(t, exec)

	a := NewAtomicApplicator(repo, nil)
	res := a.ApplyWithRollback(testGroups(2), func(g hunk.CommitGroup) hunk.Result {
		return hunk.Success("ok", nil)
	})

	if !res.IsSuccess() {
		t.Fatalf("Expected success, got %v: %s", res.Status, res.Message)
	}
	inner, ok := res.Data.([]hunk.Result)
	if !ok || len(inner) != 2 {
		t.Errorf("Expected 2 aggregated results, got %v", res.Data)
	}
}

func testGroups(n int) []hunk.CommitGroup {
	groups := make([]hunk.CommitGroup, n)
	for i := range groups {
		groups[i] = hunk.CommitGroup{ID: fmt.Sprintf("g%d", i+1)}
	}
	return groups
}
