package report

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/Iron-Ham/roundtable/internal/orchestrator"
	"github.com/Iron-Ham/roundtable/internal/workspace"
)

var (
	// Colors - all meet WCAG AA contrast (4.5:1) on dark backgrounds
	PrimaryColor   = lipgloss.Color("#A78BFA") // Purple
	SecondaryColor = lipgloss.Color("#10B981") // Green
	WarningColor   = lipgloss.Color("#F59E0B") // Amber
	ErrorColor     = lipgloss.Color("#F87171") // Red
	MutedColor     = lipgloss.Color("#9CA3AF") // Gray
	InfoColor      = lipgloss.Color("#60A5FA") // Blue

	Title = lipgloss.NewStyle().
		Bold(true).
		Foreground(PrimaryColor)

	Heading = lipgloss.NewStyle().
		Bold(true)

	Label = lipgloss.NewStyle().
		Foreground(MutedColor)

	Success = lipgloss.NewStyle().Foreground(SecondaryColor)
	Warning = lipgloss.NewStyle().Foreground(WarningColor)
	Error   = lipgloss.NewStyle().Foreground(ErrorColor)
	Muted   = lipgloss.NewStyle().Foreground(MutedColor)
	Info    = lipgloss.NewStyle().Foreground(InfoColor)
)

// StateStyle returns the style for a run state and stop reason.
func StateStyle(state orchestrator.State, reason orchestrator.StopReason) lipgloss.Style {
	switch {
	case reason == orchestrator.ReasonError:
		return Error
	case reason == orchestrator.ReasonCanceled:
		return Warning
	case state == orchestrator.StateStopped:
		return Success
	case state == orchestrator.StateExhausted:
		return Info
	default:
		return Muted
	}
}

// OutcomeStyle returns the style for a file write outcome.
func OutcomeStyle(kind workspace.OutcomeKind) lipgloss.Style {
	switch kind {
	case workspace.Created:
		return Success
	case workspace.Updated:
		return Info
	case workspace.Rejected:
		return Error
	default:
		return Muted
	}
}
