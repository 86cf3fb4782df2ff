// Package styles holds the palette and lipgloss styles shared by the lxdm
// command output and interactive forms.
package styles

import (
	"nathanbeddoewebdev/lxdm/internal/domain"

	"github.com/charmbracelet/lipgloss"
)

var (
	White = lipgloss.Color("#E2E2E2")
	Gray  = lipgloss.Color("#888888")
	Muted = lipgloss.Color("#555555")
	Blue  = lipgloss.Color("#5FAFFF")

	Green  = lipgloss.Color("#5FD787")
	Yellow = lipgloss.Color("#FFD787")
	Red    = lipgloss.Color("#FF8787")
)

var (
	// Label is used for field names in detail views.
	Label = lipgloss.NewStyle().
		Foreground(Gray).
		Bold(true)

	// Value is used for field values in detail views.
	Value = lipgloss.NewStyle().
		Foreground(White)

	// MutedText is for hints and placeholder values.
	MutedText = lipgloss.NewStyle().
			Foreground(Muted)

	ErrorText = lipgloss.NewStyle().
			Foreground(Red).
			Bold(true)

	SuccessText = lipgloss.NewStyle().
			Foreground(Green).
			Bold(true)

	WarningText = lipgloss.NewStyle().
			Foreground(Yellow).
			Bold(true)
)

// StateStyle returns the style for a reconciled container state.
func StateStyle(state domain.State) lipgloss.Style {
	switch state {
	case domain.StateRunning:
		return lipgloss.NewStyle().Foreground(Green).Bold(true)
	case domain.StatePending:
		return lipgloss.NewStyle().Foreground(Yellow)
	case domain.StateStopped:
		return lipgloss.NewStyle().Foreground(Red)
	case domain.StateTerminated:
		return lipgloss.NewStyle().Foreground(Muted)
	default:
		return lipgloss.NewStyle().Foreground(Gray)
	}
}

// StateIndicator returns a colored dot followed by the state name.
func StateIndicator(state domain.State) string {
	style := StateStyle(state)
	return style.Render("●") + " " + style.Render(string(state))
}

// OperationStatusStyle returns the style for a locally tracked operation status.
func OperationStatusStyle(status string) lipgloss.Style {
	switch status {
	case domain.OperationStatusSuccess:
		return SuccessText
	case domain.OperationStatusError:
		return ErrorText
	case domain.OperationStatusRunning:
		return WarningText
	default:
		return MutedText
	}
}
