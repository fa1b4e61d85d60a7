package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/flowmerge/pkg/workflow"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// decision is the pending verdict for one draft.
type decision int

const (
	undecided decision = iota
	accepted
	rejected
)

// =============================================================================
// Key Bindings
// =============================================================================

type reviewKeys struct {
	Up        key.Binding
	Down      key.Binding
	Accept    key.Binding
	Reject    key.Binding
	Clear     key.Binding
	AcceptAll key.Binding
	RejectAll key.Binding
	Apply     key.Binding
	Quit      key.Binding
}

func defaultReviewKeys() reviewKeys {
	return reviewKeys{
		Up:        key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		Down:      key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		Accept:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "accept")),
		Reject:    key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "reject")),
		Clear:     key.NewBinding(key.WithKeys(" ", "u"), key.WithHelp("space", "undecide")),
		AcceptAll: key.NewBinding(key.WithKeys("A"), key.WithHelp("A", "accept all")),
		RejectAll: key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reject all")),
		Apply:     key.NewBinding(key.WithKeys("enter"), key.WithHelp("⏎", "apply")),
		Quit:      key.NewBinding(key.WithKeys("q", "esc", "ctrl+c"), key.WithHelp("q", "quit")),
	}
}

// ShortHelp implements help.KeyMap.
func (k reviewKeys) ShortHelp() []key.Binding {
	return []key.Binding{k.Accept, k.Reject, k.Apply, k.Quit}
}

// FullHelp implements help.KeyMap.
func (k reviewKeys) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down},
		{k.Accept, k.Reject, k.Clear},
		{k.AcceptAll, k.RejectAll},
		{k.Apply, k.Quit},
	}
}

// =============================================================================
// ReviewModel - Interactive draft review
// =============================================================================

// ReviewModel is the bubbletea model for accepting and rejecting drafts.
// Nothing is saved until the user applies; Applied reports that.
type ReviewModel struct {
	WorkflowID string
	Drafts     []workflow.Node
	Decisions  []decision
	Cursor     int
	Applied    bool

	keys reviewKeys
	help help.Model
}

// NewReviewModel lists the drafts of doc in document order.
func NewReviewModel(doc *workflow.Document) ReviewModel {
	var drafts []workflow.Node
	for i := range doc.Nodes {
		if doc.Nodes[i].IsDraft() {
			drafts = append(drafts, doc.Nodes[i])
		}
	}
	return ReviewModel{
		WorkflowID: doc.ID,
		Drafts:     drafts,
		Decisions:  make([]decision, len(drafts)),
		keys:       defaultReviewKeys(),
		help:       help.New(),
	}
}

func (m ReviewModel) Init() tea.Cmd {
	return nil
}

func (m ReviewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			return m, tea.Quit
		case key.Matches(msg, m.keys.Apply):
			m.Applied = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Up):
			if m.Cursor > 0 {
				m.Cursor--
			}
		case key.Matches(msg, m.keys.Down):
			if m.Cursor < len(m.Drafts)-1 {
				m.Cursor++
			}
		case key.Matches(msg, m.keys.Accept):
			m.decide(accepted)
		case key.Matches(msg, m.keys.Reject):
			m.decide(rejected)
		case key.Matches(msg, m.keys.Clear):
			m.decide(undecided)
		case key.Matches(msg, m.keys.AcceptAll):
			m.decideAll(accepted)
		case key.Matches(msg, m.keys.RejectAll):
			m.decideAll(rejected)
		}
	case tea.WindowSizeMsg:
		m.help.Width = msg.Width
	}
	return m, nil
}

// decide sets the verdict under the cursor and moves down.
func (m *ReviewModel) decide(d decision) {
	if len(m.Drafts) == 0 {
		return
	}
	m.Decisions[m.Cursor] = d
	if d != undecided && m.Cursor < len(m.Drafts)-1 {
		m.Cursor++
	}
}

func (m *ReviewModel) decideAll(d decision) {
	for i := range m.Decisions {
		m.Decisions[i] = d
	}
}

// Accepted returns the ids marked for acceptance.
func (m ReviewModel) Accepted() []string { return m.ids(accepted) }

// Rejected returns the ids marked for rejection.
func (m ReviewModel) Rejected() []string { return m.ids(rejected) }

func (m ReviewModel) ids(d decision) []string {
	var out []string
	for i, dec := range m.Decisions {
		if dec == d {
			out = append(out, m.Drafts[i].ID)
		}
	}
	return out
}

func (m ReviewModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Review drafts in " + m.WorkflowID))
	b.WriteString("\n\n")

	for i := range m.Drafts {
		n := &m.Drafts[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}

		var mark string
		switch m.Decisions[i] {
		case accepted:
			mark = StyleSuccess.Render(iconSuccess)
		case rejected:
			mark = StyleDanger.Render(iconError)
		default:
			mark = listDimStyle.Render("·")
		}

		line := fmt.Sprintf("%s%-28s %s", cursor, n.DisplayName(), listDimStyle.Render(fmt.Sprintf("%s · %s", n.Kind, n.ID)))
		style := listNormalStyle
		if i == m.Cursor {
			style = listSelectedStyle
		}
		b.WriteString(mark + " " + style.Render(line) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  %d accepted · %d rejected · %d undecided",
		len(m.Accepted()), len(m.Rejected()), len(m.Drafts)-len(m.Accepted())-len(m.Rejected()))))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	return b.String()
}
