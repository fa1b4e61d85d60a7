package cli

import (
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/matzehuels/flowmerge/pkg/candidate"
	"github.com/matzehuels/flowmerge/pkg/merge"
	"github.com/matzehuels/flowmerge/pkg/store"
)

// =============================================================================
// Color Palette
// =============================================================================

var (
	colorCyan   = lipgloss.Color("36")  // Teal - primary actions
	colorGreen  = lipgloss.Color("35")  // Green - success
	colorYellow = lipgloss.Color("220") // Amber - warnings, drafts
	colorRed    = lipgloss.Color("167") // Soft red - errors, rejections
	colorBlue   = lipgloss.Color("75")  // Light blue - commands
	colorWhite  = lipgloss.Color("255") // Bright white - values
	colorGray   = lipgloss.Color("245") // Gray - secondary text
	colorDim    = lipgloss.Color("240") // Dim gray - muted text
)

// =============================================================================
// Public Styles
// =============================================================================

var (
	// StyleTitle for main headings.
	StyleTitle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)

	// StyleDim for secondary/muted text.
	StyleDim = lipgloss.NewStyle().Foreground(colorDim)

	// StyleValue for data values.
	StyleValue = lipgloss.NewStyle().Foreground(colorWhite)

	// StyleSuccess for success messages.
	StyleSuccess = lipgloss.NewStyle().Foreground(colorGreen)

	// StyleWarning for warning messages and draft markers.
	StyleWarning = lipgloss.NewStyle().Foreground(colorYellow)

	// StyleDanger for rejections.
	StyleDanger = lipgloss.NewStyle().Foreground(colorRed)
)

// =============================================================================
// Internal Styles
// =============================================================================

var (
	styleIconSuccess = lipgloss.NewStyle().Foreground(colorGreen)
	styleIconError   = lipgloss.NewStyle().Foreground(colorRed)
	styleIconWarning = lipgloss.NewStyle().Foreground(colorYellow)
	styleIconInfo    = lipgloss.NewStyle().Foreground(colorGray)
	styleIconSpinner = lipgloss.NewStyle().Foreground(colorCyan)

	styleCached   = lipgloss.NewStyle().Foreground(colorGreen)
	styleComputed = lipgloss.NewStyle().Foreground(colorGray)

	styleCommand = lipgloss.NewStyle().Foreground(colorBlue)
	styleKey     = lipgloss.NewStyle().Foreground(colorGray).Width(12)
)

// =============================================================================
// Icons
// =============================================================================

const (
	iconSuccess = "✓"
	iconError   = "✗"
	iconWarning = "!"
	iconInfo    = "›"
	iconArrow   = "→"
	iconCached  = "cached"
	iconFresh   = "fresh"
)

// =============================================================================
// Status Output
// =============================================================================

func printSuccess(format string, args ...any) {
	fmt.Println(styleIconSuccess.Render(iconSuccess) + " " + fmt.Sprintf(format, args...))
}

func printError(format string, args ...any) {
	fmt.Println(styleIconError.Render(iconError) + " " + fmt.Sprintf(format, args...))
}

func printWarning(format string, args ...any) {
	fmt.Println(styleIconWarning.Render(iconWarning) + " " + StyleWarning.Render(fmt.Sprintf(format, args...)))
}

func printInfo(format string, args ...any) {
	fmt.Println(styleIconInfo.Render(iconInfo) + " " + fmt.Sprintf(format, args...))
}

// printDetail prints an indented, dimmed line.
func printDetail(format string, args ...any) {
	fmt.Println("  " + StyleDim.Render(fmt.Sprintf(format, args...)))
}

func printFile(path string) {
	fmt.Println("  " + StyleDim.Render(iconArrow) + " " + StyleValue.Render(path))
}

func printKeyValue(key, value string) {
	fmt.Println(styleKey.Render(key) + " " + StyleValue.Render(value))
}

func printNextStep(description, cmd string) {
	fmt.Println(StyleDim.Render(description+":") + " " + styleCommand.Render(cmd))
}

func printNewline() {
	fmt.Println()
}

// =============================================================================
// Domain Output
// =============================================================================

// statsLine renders graph counts and the layout cache status on one line.
func statsLine(nodes, edges, drafts int, cached bool) string {
	parts := []string{
		fmt.Sprintf("%d nodes", nodes),
		fmt.Sprintf("%d edges", edges),
	}
	if drafts > 0 {
		parts = append(parts, StyleWarning.Render(fmt.Sprintf("%d drafts", drafts)))
	}
	status, statusStyle := iconFresh, styleComputed
	if cached {
		status, statusStyle = iconCached, styleCached
	}
	parts = append(parts, statusStyle.Render("layout "+status))
	return "  " + strings.Join(parts, StyleDim.Render(" · "))
}

func printStats(nodes, edges, drafts int, cached bool) {
	fmt.Println(statsLine(nodes, edges, drafts, cached))
}

// printIssues lists candidate validation issues.
func printIssues(issues []candidate.Issue) {
	for _, issue := range issues {
		path := issue.Path
		if path == "" {
			path = "$"
		}
		fmt.Println("  " + styleIconError.Render(iconError) + " " + StyleValue.Render(path) + " " +
			StyleDim.Render("["+issue.Code+"]") + " " + issue.Message)
	}
}

// printReport summarizes what a merge changed or skipped.
func printReport(r merge.Report) {
	for _, from := range slices.Sorted(maps.Keys(r.Remapped)) {
		printDetail("renamed %s %s %s", from, iconArrow, r.Remapped[from])
	}
	for _, d := range r.DroppedEdges {
		printWarning("dropped edge %s %s %s: %s", d.Edge.Source, iconArrow, d.Edge.Target, d.Reason)
	}
	for _, ref := range r.Unresolved {
		printWarning("unresolved reference %s", ref)
	}
	for _, id := range r.SkippedNodes {
		printWarning("skipped node %s", id)
	}
}

// summaryLine renders one stored workflow for store list.
func summaryLine(s store.Summary) string {
	name := s.Name
	if name == "" {
		name = StyleDim.Render("(unnamed)")
	}
	line := fmt.Sprintf("%-24s %s  %s", s.ID, name,
		StyleDim.Render(fmt.Sprintf("v%d · %d nodes · %d edges", s.Version, s.Nodes, s.Edges)))
	if s.Drafts > 0 {
		line += " " + StyleWarning.Render(fmt.Sprintf("· %d drafts", s.Drafts))
	}
	return line
}
