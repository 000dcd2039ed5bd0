package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/resquash/resquash/internal/hunk"
	"github.com/resquash/resquash/internal/plan"
)

var (
	groupHeaderStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("4"))

	rationaleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("8")).
			Italic(true)

	diffAddedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2"))

	diffRemovedStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("1"))

	successStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("2"))

	failureStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("1"))

	warningStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("3"))
)

// maxPreviewLines caps the per-group diff preview in the plan summary.
const maxPreviewLines = 12

// RenderPlan formats the commit plan for the approval prompt: one block
// per planned commit with message, rationale and a short diff preview.
func RenderPlan(p *plan.Plan, hunks map[string]*hunk.Hunk) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Proposed plan: %d commits\n\n", len(p.Commits))

	for i, g := range p.Commits {
		sb.WriteString(groupHeaderStyle.Render(fmt.Sprintf("Commit #%d: %s", i+1, g.Message)))
		sb.WriteString("\n")
		if g.Rationale != "" {
			sb.WriteString(rationaleStyle.Render("  " + g.Rationale))
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "  %d hunks: %s\n", len(g.HunkIDs), strings.Join(g.HunkIDs, ", "))
		sb.WriteString(renderPreview(g, hunks))
		sb.WriteString("\n")
	}
	return sb.String()
}

// renderPreview shows the first changed lines of a group, color-coded.
func renderPreview(g hunk.CommitGroup, hunks map[string]*hunk.Hunk) string {
	var lines []string
	for _, id := range g.HunkIDs {
		h, ok := hunks[id]
		if !ok {
			continue
		}
		lines = append(lines, previewLines(h)...)
		if len(lines) >= maxPreviewLines {
			lines = append(lines[:maxPreviewLines], "  ...")
			break
		}
	}

	var sb strings.Builder
	for _, line := range lines {
		sb.WriteString(line)
		sb.WriteString("\n")
	}
	return sb.String()
}

func previewLines(h *hunk.Hunk) []string {
	if h.IsBinary {
		return []string{"  (binary file " + h.FilePath + ")"}
	}

	// Content-pair hunks get a synthesized diff; raw diff hunks are shown
	// as-is with their markers.
	text := h.Content
	if text == "" && h.OldContent != nil && h.NewContent != nil {
		d, err := difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
			A:        difflib.SplitLines(*h.OldContent),
			B:        difflib.SplitLines(*h.NewContent),
			FromFile: h.FilePath,
			ToFile:   h.FilePath,
			Context:  1,
		})
		if err == nil {
			text = d
		}
	}
	if text == "" && h.NewContent != nil {
		for _, line := range strings.Split(strings.TrimRight(*h.NewContent, "\n"), "\n") {
			text += "+" + line + "\n"
		}
	}

	var out []string
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		switch {
		case strings.HasPrefix(line, "+++"), strings.HasPrefix(line, "---"), strings.HasPrefix(line, "@@"):
			out = append(out, "  "+line)
		case strings.HasPrefix(line, "+"):
			out = append(out, "  "+diffAddedStyle.Render(line))
		case strings.HasPrefix(line, "-"):
			out = append(out, "  "+diffRemovedStyle.Render(line))
		default:
			out = append(out, "  "+line)
		}
	}
	return out
}

// RenderResult formats the outcome of an apply run.
func RenderResult(res hunk.Result) string {
	var sb strings.Builder
	switch res.Status {
	case hunk.StatusSuccess:
		sb.WriteString(successStyle.Render("✓ " + res.Message))
	case hunk.StatusPartial:
		sb.WriteString(warningStyle.Render("◐ " + res.Message))
	default:
		sb.WriteString(failureStyle.Render("✗ " + res.Message))
	}
	sb.WriteString("\n")

	for _, c := range res.Conflicts {
		fmt.Fprintf(&sb, "  conflict in %s (%s)", c.FilePath, c.Type)
		if c.ErrorMessage != "" {
			fmt.Fprintf(&sb, ": %s", firstLine(c.ErrorMessage))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderValidation formats validator output for the terminal.
func RenderValidation(errors, warnings []string) string {
	var sb strings.Builder
	for _, e := range errors {
		sb.WriteString(failureStyle.Render("error: "))
		sb.WriteString(e)
		sb.WriteString("\n")
	}
	for _, w := range warnings {
		sb.WriteString(warningStyle.Render("warning: "))
		sb.WriteString(w)
		sb.WriteString("\n")
	}
	return sb.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
