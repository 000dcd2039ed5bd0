// Package ui renders the plan review prompt and the apply report.
package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	approvalTitleStyle = lipgloss.NewStyle().
				Bold(true).
				Foreground(lipgloss.Color("5")).
				MarginBottom(1).
				Width(80)

	approvalBodyStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("7")).
				MarginBottom(1).
				Width(80)

	yesButtonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("2")).
			Background(lipgloss.Color("0")).
			Padding(0, 1).
			MarginRight(1)

	noButtonStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("1")).
			Background(lipgloss.Color("0")).
			Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().
			Bold(true).
			Underline(true)
)

// ApprovalModel is a bubble tea model for the plan approval prompt.
type ApprovalModel struct {
	Title    string
	Body     string
	Approved bool
	Done     bool
}

// NewApprovalModel creates an approval model showing the rendered plan.
func NewApprovalModel(title, body string) ApprovalModel {
	return ApprovalModel{
		Title:    title,
		Body:     body,
		Approved: false, // Default to "no" for safety
	}
}

// Init initializes the model
func (m ApprovalModel) Init() tea.Cmd {
	return nil
}

// Update handles updates to the model
func (m ApprovalModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, key.NewBinding(key.WithKeys("esc", "q", "ctrl+c"))):
			m.Done = true
			m.Approved = false
			return m, tea.Quit
		case key.Matches(msg, key.NewBinding(key.WithKeys("left", "h"))):
			m.Approved = true
			return m, nil
		case key.Matches(msg, key.NewBinding(key.WithKeys("right", "l"))):
			m.Approved = false
			return m, nil
		case key.Matches(msg, key.NewBinding(key.WithKeys("y"))):
			m.Done = true
			m.Approved = true
			return m, tea.Quit
		case key.Matches(msg, key.NewBinding(key.WithKeys("n"))):
			m.Done = true
			m.Approved = false
			return m, tea.Quit
		case key.Matches(msg, key.NewBinding(key.WithKeys("enter"))):
			m.Done = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View renders the model
func (m ApprovalModel) View() string {
	var sb strings.Builder

	sb.WriteString(approvalTitleStyle.Render(m.Title))
	sb.WriteString("\n")
	sb.WriteString(approvalBodyStyle.Render(m.Body))
	sb.WriteString("\n\n")

	yes, no := "Apply", "Cancel"
	if m.Approved {
		yes = selectedStyle.Render(yes)
	} else {
		no = selectedStyle.Render(no)
	}
	sb.WriteString(fmt.Sprintf("%s %s", yesButtonStyle.Render(yes), noButtonStyle.Render(no)))
	sb.WriteString("\n\n")
	sb.WriteString("(y to apply, n to cancel, arrow keys and Enter also work)")

	return sb.String()
}

// GetApproval runs the approval UI and returns whether the plan was
// accepted.
func GetApproval(title, body string) (bool, error) {
	model := NewApprovalModel(title, body)

	p := tea.NewProgram(model)
	result, err := p.Run()
	if err != nil {
		return false, fmt.Errorf("error running approval UI: %w", err)
	}

	finalModel, ok := result.(ApprovalModel)
	if !ok {
		return false, fmt.Errorf("unexpected model type: %T", result)
	}
	return finalModel.Approved, nil
}
