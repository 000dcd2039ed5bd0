// Package gitx wraps the git CLI behind a small executor interface so that
// every repository operation in the apply pipeline is mockable in tests.
package gitx

import (
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/resquash/resquash/internal/logging"
)

// ErrNotARepo is returned by Open when the path is not a git work tree.
var ErrNotARepo = errors.New("not a git repository")

// CommandExecutor abstracts subprocess execution. Tests substitute a fake;
// production uses the os/exec implementation below.
type CommandExecutor interface {
	// Run executes a command in dir and returns its combined output.
	Run(dir string, name string, args ...string) ([]byte, error)
}

// CLIExecutor executes commands with os/exec.
type CLIExecutor struct{}

// Run executes a command and returns combined stdout/stderr.
func (CLIExecutor) Run(dir string, name string, args ...string) ([]byte, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	return cmd.CombinedOutput()
}

// Repo is a handle on one git repository.
type Repo struct {
	path   string
	exec   CommandExecutor
	logger logging.Logger
}

// Open validates that path is a git repository and returns a handle on it.
func Open(path string, logger logging.Logger) (*Repo, error) {
	return OpenWithExecutor(path, CLIExecutor{}, logger)
}

// OpenWithExecutor is Open with a custom executor, primarily for tests.
func OpenWithExecutor(path string, executor CommandExecutor, logger logging.Logger) (*Repo, error) {
	if logger == nil {
		logger = logging.NewNilLogger()
	}
	r := &Repo{path: path, exec: executor, logger: logger}
	if _, err := r.git("rev-parse", "--git-dir"); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotARepo, path)
	}
	return r, nil
}

// Path returns the repository root the handle was opened on.
func (r *Repo) Path() string { return r.path }

// git runs one git command and returns trimmed output; errors carry the
// command and its output.
func (r *Repo) git(args ...string) (string, error) {
	out, err := r.exec.Run(r.path, "git", args...)
	if err != nil {
		return strings.TrimSpace(string(out)), fmt.Errorf("git %s: %w: %s",
			strings.Join(args, " "), err, strings.TrimSpace(string(out)))
	}
	return strings.TrimSpace(string(out)), nil
}

// Version returns git's major and minor version numbers.
func (r *Repo) Version() (major, minor int, err error) {
	out, err := r.git("version")
	if err != nil {
		return 0, 0, err
	}
	// "git version 2.39.2" possibly with platform suffixes.
	fields := strings.Fields(out)
	if len(fields) < 3 {
		return 0, 0, fmt.Errorf("unexpected git version output: %q", out)
	}
	parts := strings.Split(fields[2], ".")
	if len(parts) < 2 {
		return 0, 0, fmt.Errorf("unexpected git version output: %q", out)
	}
	major, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected git version output: %q", out)
	}
	minor, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("unexpected git version output: %q", out)
	}
	return major, minor, nil
}

// Head returns the SHA of the current HEAD commit.
func (r *Repo) Head() (string, error) {
	return r.git("rev-parse", "HEAD")
}

// CurrentBranch returns the checked-out branch name.
func (r *Repo) CurrentBranch() (string, error) {
	name, err := r.git("rev-parse", "--abbrev-ref", "HEAD")
	if err != nil {
		return "", err
	}
	if name == "HEAD" {
		return "", errors.New("detached HEAD: a branch checkout is required")
	}
	return name, nil
}

// IsDirty reports whether the working tree has any uncommitted or
// untracked changes.
func (r *Repo) IsDirty() (bool, error) {
	out, err := r.git("status", "--porcelain")
	if err != nil {
		return false, err
	}
	return out != "", nil
}

// StashPush stashes tracked and untracked changes under the given message.
func (r *Repo) StashPush(message string) error {
	_, err := r.git("stash", "push", "-u", "-m", message)
	return err
}

// StashPop restores the most recent stash entry.
func (r *Repo) StashPop() error {
	_, err := r.git("stash", "pop")
	return err
}

// CheckoutNew creates a branch at startRef and checks it out.
func (r *Repo) CheckoutNew(name, startRef string) error {
	_, err := r.git("checkout", "-b", name, startRef)
	return err
}

// Checkout switches to an existing branch.
func (r *Repo) Checkout(name string) error {
	_, err := r.git("checkout", name)
	return err
}

// DeleteBranch force-deletes a branch.
func (r *Repo) DeleteBranch(name string) error {
	_, err := r.git("branch", "-D", name)
	return err
}

// Add stages exactly the given paths.
func (r *Repo) Add(paths ...string) error {
	if len(paths) == 0 {
		return nil
	}
	args := append([]string{"add", "--"}, paths...)
	_, err := r.git(args...)
	return err
}

// Commit records the staged changes with the given identity acting as both
// author and committer, and returns the new commit SHA.
func (r *Repo) Commit(message, authorName, authorEmail string) (string, error) {
	author := fmt.Sprintf("%s <%s>", authorName, authorEmail)
	_, err := r.git(
		"-c", "user.name="+authorName,
		"-c", "user.email="+authorEmail,
		"commit", "-m", message, "--author", author)
	if err != nil {
		return "", err
	}
	return r.Head()
}

// ResetHard resets the index and working tree to ref.
func (r *Repo) ResetHard(ref string) error {
	_, err := r.git("reset", "--hard", ref)
	return err
}

// ResetIndex unstages everything, leaving the working tree alone.
func (r *Repo) ResetIndex() error {
	_, err := r.git("reset")
	return err
}

// CleanUntracked removes untracked files and directories.
func (r *Repo) CleanUntracked() error {
	_, err := r.git("clean", "-fd")
	return err
}

// CherryPick replays one commit onto the current branch.
func (r *Repo) CherryPick(sha string) error {
	_, err := r.git("cherry-pick", sha)
	return err
}

// CherryPickAbort abandons an in-progress cherry-pick. Failures are
// swallowed: abort is always a best-effort cleanup step.
func (r *Repo) CherryPickAbort() {
	if _, err := r.git("cherry-pick", "--abort"); err != nil {
		r.logger.Log("cherry-pick --abort failed: %v", err)
	}
}

// ConflictedFiles lists paths with unresolved merge conflicts.
func (r *Repo) ConflictedFiles() ([]string, error) {
	out, err := r.git("diff", "--name-only", "--diff-filter=U")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// StagedFiles lists currently staged paths.
func (r *Repo) StagedFiles() ([]string, error) {
	out, err := r.git("diff", "--cached", "--name-only")
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// RevList returns the commits in base..head, oldest first.
func (r *Repo) RevList(base, head string) ([]string, error) {
	out, err := r.git("rev-list", "--reverse", base+".."+head)
	if err != nil {
		return nil, err
	}
	if out == "" {
		return nil, nil
	}
	return strings.Split(out, "\n"), nil
}

// Diff returns the diff of HEAD against the merge base with base (the
// three-dot form). A two-dot diff would fold inverse base-only changes
// into the result, so it is never used here.
func (r *Repo) Diff(base string) (string, error) {
	out, err := r.exec.Run(r.path, "git", "diff", base+"...HEAD")
	if err != nil {
		return "", fmt.Errorf("git diff %s...HEAD: %w: %s", base, err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

// MergeBase returns the best common ancestor of the two refs.
func (r *Repo) MergeBase(a, b string) (string, error) {
	out, err := r.git("merge-base", a, b)
	if err != nil {
		return "", err
	}
	if out == "" {
		return "", fmt.Errorf("no merge base between %s and %s", a, b)
	}
	return out, nil
}

// ResetSoft moves HEAD to ref, leaving the index and working tree alone.
func (r *Repo) ResetSoft(ref string) error {
	_, err := r.git("reset", "--soft", ref)
	return err
}

// RefExists reports whether ref resolves to a commit.
func (r *Repo) RefExists(ref string) bool {
	_, err := r.git("rev-parse", "--verify", "--quiet", ref)
	return err == nil
}

// RootCommit returns the first root commit reachable from HEAD.
func (r *Repo) RootCommit() (string, error) {
	out, err := r.git("rev-list", "--max-parents=0", "HEAD")
	if err != nil {
		return "", err
	}
	lines := strings.Split(out, "\n")
	if lines[0] == "" {
		return "", errors.New("no root commit found")
	}
	return lines[0], nil
}

// ResolveBaseRef resolves the base branch to an existing ref, falling back
// through origin/<name> and master to the root commit when the configured
// name does not exist locally.
func (r *Repo) ResolveBaseRef(name string) (string, error) {
	for _, candidate := range []string{name, "origin/" + name, "master"} {
		if candidate != "" && r.RefExists(candidate) {
			if candidate != name {
				r.logger.Log("Base %s not found, using %s", name, candidate)
			}
			return candidate, nil
		}
	}
	root, err := r.RootCommit()
	if err != nil {
		return "", fmt.Errorf("cannot resolve base branch %s: %w", name, err)
	}
	r.logger.Log("Base %s not found, using root commit %s", name, root)
	return root, nil
}

// UpdateRef points a ref at a SHA; used for the pre-operation backup ref.
func (r *Repo) UpdateRef(ref, sha string) error {
	_, err := r.git("update-ref", ref, sha)
	return err
}

// ShowFile returns the content of path at ref (for example "HEAD:a/b.go"
// split as ref and path). Missing files return an error.
func (r *Repo) ShowFile(ref, path string) (string, error) {
	out, err := r.exec.Run(r.path, "git", "show", ref+":"+path)
	if err != nil {
		return "", fmt.Errorf("git show %s:%s: %w", ref, path, err)
	}
	return string(out), nil
}

// ApplyCached applies a patch file to the index only.
func (r *Repo) ApplyCached(patchPath string) error {
	_, err := r.git("apply", "--cached", "--whitespace=nowarn", patchPath)
	return err
}
