package hunk

import (
	"fmt"
	"strings"
)

// ChangeType classifies what a hunk does to its file
type ChangeType string

const (
	// Addition represents newly added lines or a new file
	Addition ChangeType = "addition"
	// Deletion represents removed lines or a deleted file
	Deletion ChangeType = "deletion"
	// Modification represents lines that were changed in place
	Modification ChangeType = "modification"
	// Import represents a change to import/include statements
	Import ChangeType = "import"
	// Export represents a change to exported declarations
	Export ChangeType = "export"
)

// Hunk is a single localized change within a file. Hunks are produced once
// per run by the diff parser and are immutable afterwards; their IDs
// ("path:start-end") are stable for the lifetime of the invocation.
type Hunk struct {
	ID        string
	FilePath  string
	StartLine int
	EndLine   int

	// OldStart and OldCount are the pre-image line range from the hunk
	// header. StartLine/EndLine describe the post-image range and feed the
	// hunk ID; patch application works on the file as it exists before the
	// hunk, so it uses the old-side range.
	OldStart int
	OldCount int

	// Content holds the raw unified-diff text of the hunk. When OldContent
	// and/or NewContent are set they take precedence over Content.
	Content    string
	OldContent *string
	NewContent *string

	Type     ChangeType
	IsBinary bool

	// FileDeleted marks hunks that belong to a file removed outright by
	// the diff ("deleted file mode" header).
	FileDeleted bool

	// Dependencies lists IDs of hunks this hunk requires to be applied
	// first (or in the same commit). Dependents is the reverse edge set.
	Dependencies map[string]bool
	Dependents   map[string]bool
}

// NewID builds the canonical hunk ID for a file and line range.
func NewID(filePath string, startLine, endLine int) string {
	return fmt.Sprintf("%s:%d-%d", filePath, startLine, endLine)
}

// DependsOn reports whether the hunk declares a dependency on the given ID.
func (h *Hunk) DependsOn(id string) bool {
	return h.Dependencies[id]
}

// CommitGroup is one proposed commit: an ordered set of hunk IDs plus the
// message and rationale supplied by the planner.
type CommitGroup struct {
	ID        string   `json:"id" mapstructure:"id"`
	HunkIDs   []string `json:"hunk_ids" mapstructure:"hunk_ids"`
	Message   string   `json:"message" mapstructure:"message"`
	Rationale string   `json:"rationale" mapstructure:"rationale"`

	// Optional author identity; when empty the applying strategy
	// synthesizes one.
	AuthorName  string `json:"author_name,omitempty" mapstructure:"author_name"`
	AuthorEmail string `json:"author_email,omitempty" mapstructure:"author_email"`

	// Optional explicit group-level dependencies (IDs of other groups).
	DependsOn []string `json:"depends_on,omitempty" mapstructure:"depends_on"`
}

// ResultStatus is the outcome class of a core operation
type ResultStatus string

const (
	// StatusSuccess means the operation completed fully
	StatusSuccess ResultStatus = "success"
	// StatusFailure means the operation failed and was rolled back
	StatusFailure ResultStatus = "failure"
	// StatusPartial means some but not all commits were replayed
	StatusPartial ResultStatus = "partial"
	// StatusConflict means the operation stopped on unresolved conflicts
	StatusConflict ResultStatus = "conflict"
)

// Result is the uniform return type of every operation in the apply core.
type Result struct {
	Status    ResultStatus
	Message   string
	Data      interface{}
	Conflicts []ConflictInfo
}

// Success builds a success Result with optional payload.
func Success(message string, data interface{}) Result {
	return Result{Status: StatusSuccess, Message: message, Data: data}
}

// Failure builds a failure Result.
func Failure(message string) Result {
	return Result{Status: StatusFailure, Message: message}
}

// IsSuccess reports whether the result status is success.
func (r Result) IsSuccess() bool { return r.Status == StatusSuccess }

// IsFailure reports whether the result status is failure.
func (r Result) IsFailure() bool { return r.Status == StatusFailure }

// ConflictType classifies why a replay step failed
type ConflictType string

const (
	// MergeConflict is a regular content-level merge conflict
	MergeConflict ConflictType = "merge_conflict"
	// FileDeleted means one side deleted a file the other side modified
	FileDeleted ConflictType = "file_deleted"
	// BinaryConflict is a conflict on a binary file
	BinaryConflict ConflictType = "binary_conflict"
	// LineNumberShift means hunk positions drifted after earlier edits
	LineNumberShift ConflictType = "line_number_shift"
)

// ConflictInfo describes one conflicted file encountered during replay.
type ConflictInfo struct {
	FilePath     string
	Type         ConflictType
	OurContent   string
	TheirContent string
	BaseContent  string
	HunkID       string // originating hunk, when known
	ErrorMessage string
}

// ResolutionAction is the decided outcome for a conflict
type ResolutionAction string

const (
	// UseOurs keeps our side of the conflict
	UseOurs ResolutionAction = "use_ours"
	// UseTheirs takes their side of the conflict
	UseTheirs ResolutionAction = "use_theirs"
	// Manual carries merged content produced outside git
	Manual ResolutionAction = "manual"
	// Skip abandons the conflicting commit and moves on
	Skip ResolutionAction = "skip"
)

// Resolution is the output of the conflict resolver for one ConflictInfo.
type Resolution struct {
	Action  ResolutionAction
	Content string // only set for Manual
	Reason  string
}

// GroupHunks resolves a group's hunk IDs against the run's hunk set,
// preserving plan order. Unknown IDs are reported together in one error.
func GroupHunks(group CommitGroup, hunks map[string]*Hunk) ([]*Hunk, error) {
	resolved := make([]*Hunk, 0, len(group.HunkIDs))
	var missing []string
	for _, id := range group.HunkIDs {
		h, ok := hunks[id]
		if !ok {
			missing = append(missing, id)
			continue
		}
		resolved = append(resolved, h)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("group %s references unknown hunks: %s", group.ID, strings.Join(missing, ", "))
	}
	return resolved, nil
}
