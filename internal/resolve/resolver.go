// Package resolve classifies and resolves conflicts that surface while
// replaying prepared commits onto the original branch.
package resolve

import (
	"errors"
	"regexp"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/resquash/resquash/internal/hunk"
	"github.com/resquash/resquash/internal/logging"
)

// ErrMergeUnsupported marks the declared-but-unimplemented three-way merge
// contract. Line-shift conflicts degrade to a skip until a real diff3 lands.
var ErrMergeUnsupported = errors.New("three-way merge not implemented")

// minorChangeThreshold is how many significant characters may remain,
// after stripping whitespace and comment syntax, for a change to still
// count as minor.
const minorChangeThreshold = 50

var (
	whitespaceRegex   = regexp.MustCompile(`\s+`)
	hashCommentRegex  = regexp.MustCompile(`(?m)#.*$`)
	slashCommentRegex = regexp.MustCompile(`(?m)//.*$`)
	blockCommentRegex = regexp.MustCompile(`(?s)/\*.*?\*/`)

	conflictMarkerRegex = regexp.MustCompile(`(?ms)^<<<<<<< (.+?)\n(.*?)\n=======\n(.*?)\n>>>>>>> (.+?)$`)
)

// Resolver decides what to do with each replay conflict. Automatic rules
// exist for file deletions and line-number shifts; everything else falls
// through to manual resolution, which today means skip.
type Resolver struct {
	logger logging.Logger
}

// New creates a Resolver.
func New(logger logging.Logger) *Resolver {
	if logger == nil {
		logger = logging.NewNilLogger()
	}
	return &Resolver{logger: logger}
}

// Resolve attempts automatic resolution first and falls back to manual
// handling.
func (r *Resolver) Resolve(info hunk.ConflictInfo) hunk.Resolution {
	if r.CanAutoResolve(info) {
		return r.autoResolve(info)
	}
	return r.manualResolve(info)
}

// CanAutoResolve reports whether an automatic rule applies to the conflict.
func (r *Resolver) CanAutoResolve(info hunk.ConflictInfo) bool {
	switch info.Type {
	case hunk.FileDeleted, hunk.LineNumberShift:
		return true
	default:
		return false
	}
}

func (r *Resolver) autoResolve(info hunk.ConflictInfo) hunk.Resolution {
	switch info.Type {
	case hunk.FileDeleted:
		return r.resolveFileDeleted(info)
	case hunk.LineNumberShift:
		return r.resolveLineShift(info)
	default:
		return hunk.Resolution{Action: hunk.Skip, Reason: "No automatic resolution available"}
	}
}

// manualResolve is the placeholder for future interactive handling: it
// records the conflict and skips.
func (r *Resolver) manualResolve(info hunk.ConflictInfo) hunk.Resolution {
	r.logger.Log("Manual resolution required for %s (%s)", info.FilePath, info.Type)
	if preview := diffPreview(info.OurContent, info.TheirContent); preview != "" {
		r.logger.Log("Conflict preview for %s:\n%s", info.FilePath, preview)
	}
	return hunk.Resolution{Action: hunk.Skip, Reason: "Manual resolution not implemented - skipping"}
}

// resolveFileDeleted accepts the deletion when our changes are minor and
// keeps the file otherwise.
func (r *Resolver) resolveFileDeleted(info hunk.ConflictInfo) hunk.Resolution {
	if isMinorChange(info.OurContent) {
		return hunk.Resolution{
			Action: hunk.UseTheirs,
			Reason: "Accepting file deletion - changes were minor",
		}
	}
	return hunk.Resolution{
		Action: hunk.UseOurs,
		Reason: "Keeping file - changes were significant",
	}
}

// resolveLineShift tries the three-way merge; since the merge contract is
// an unimplemented stub the outcome today is always a skip.
func (r *Resolver) resolveLineShift(info hunk.ConflictInfo) hunk.Resolution {
	merged, err := threeWayMerge(info.BaseContent, info.OurContent, info.TheirContent)
	if err != nil {
		return hunk.Resolution{Action: hunk.Skip, Reason: "Could not automatically merge line shifts"}
	}
	return hunk.Resolution{
		Action:  hunk.Manual,
		Content: merged,
		Reason:  "Successfully merged with line number adjustments",
	}
}

// isMinorChange strips whitespace and comment syntax and checks how much
// substance remains.
func isMinorChange(content string) bool {
	if content == "" {
		return true
	}
	stripped := blockCommentRegex.ReplaceAllString(content, "")
	stripped = hashCommentRegex.ReplaceAllString(stripped, "")
	stripped = slashCommentRegex.ReplaceAllString(stripped, "")
	stripped = whitespaceRegex.ReplaceAllString(stripped, "")
	return len(stripped) < minorChangeThreshold
}

// threeWayMerge declares the contract a real merge implementation must
// satisfy: given base, ours and theirs it either produces merged content
// or reports that a clean merge is impossible. The current implementation
// always reports ErrMergeUnsupported.
func threeWayMerge(base, ours, theirs string) (string, error) {
	return "", ErrMergeUnsupported
}

// ConflictMarkers holds the pieces of one git conflict block.
type ConflictMarkers struct {
	OursRef   string
	Ours      string
	Theirs    string
	TheirsRef string
}

// ParseConflictMarkers extracts the first <<<<<<< / ======= / >>>>>>>
// block from content. The zero value is returned when no block is present.
func ParseConflictMarkers(content string) ConflictMarkers {
	m := conflictMarkerRegex.FindStringSubmatch(content)
	if m == nil {
		return ConflictMarkers{}
	}
	return ConflictMarkers{
		OursRef:   m[1],
		Ours:      m[2],
		Theirs:    m[3],
		TheirsRef: m[4],
	}
}

// diffPreview renders a short unified diff of ours vs theirs for the log.
func diffPreview(ours, theirs string) string {
	if ours == "" && theirs == "" {
		return ""
	}
	text, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(ours),
		B:        difflib.SplitLines(theirs),
		FromFile: "ours",
		ToFile:   "theirs",
		Context:  2,
	})
	if err != nil {
		return ""
	}
	const maxPreview = 2000
	if len(text) > maxPreview {
		text = text[:maxPreview] + "\n... (truncated)"
	}
	return text
}

// Classify maps a failed cherry-pick on one file to a conflict type by
// inspecting the working tree and the error output.
func Classify(filePath string, workingContent string, errOutput string) hunk.ConflictType {
	lower := strings.ToLower(errOutput)
	switch {
	case strings.Contains(lower, "binary"):
		return hunk.BinaryConflict
	case strings.Contains(lower, "deleted in"):
		return hunk.FileDeleted
	case ParseConflictMarkers(workingContent) != (ConflictMarkers{}):
		return hunk.MergeConflict
	case strings.Contains(lower, "does not match") || strings.Contains(lower, "patch failed"):
		return hunk.LineNumberShift
	default:
		return hunk.MergeConflict
	}
}
