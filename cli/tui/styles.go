// Package tui provides Bubble Tea views for the aetheric CLI.
//
// TUI is opt-in (--tui) and read-only. Views render the same payloads as
// the json, yaml and table formats; there is no TUI-exclusive data.
package tui

import "github.com/charmbracelet/lipgloss"

// Palette. Frame kinds get fixed colors so ASCII, binary and discard counts
// read the same in every view.
var (
	accentColor  = lipgloss.AdaptiveColor{Light: "#0E7490", Dark: "#22D3EE"}
	asciiColor   = lipgloss.AdaptiveColor{Light: "#15803D", Dark: "#4ADE80"}
	binaryColor  = lipgloss.AdaptiveColor{Light: "#1D4ED8", Dark: "#60A5FA"}
	discardColor = lipgloss.AdaptiveColor{Light: "#B45309", Dark: "#FBBF24"}
	failColor    = lipgloss.AdaptiveColor{Light: "#B91C1C", Dark: "#F87171"}
	dimColor     = lipgloss.AdaptiveColor{Light: "#6B7280", Dark: "#9CA3AF"}
	textColor    = lipgloss.AdaptiveColor{Light: "#111827", Dark: "#F9FAFB"}
)

var (
	TitleStyle = lipgloss.NewStyle().Bold(true).Foreground(accentColor).MarginBottom(1)
	LabelStyle = lipgloss.NewStyle().Foreground(dimColor).Width(18)
	ValueStyle = lipgloss.NewStyle().Foreground(textColor)
	HelpStyle  = lipgloss.NewStyle().Foreground(dimColor).MarginTop(1)

	SuccessStyle = lipgloss.NewStyle().Foreground(asciiColor)
	WarningStyle = lipgloss.NewStyle().Foreground(discardColor)
	ErrorStyle   = lipgloss.NewStyle().Foreground(failColor)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(dimColor).
			Padding(1, 2)

	// Counter tiles on the stats views.
	StatBoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 2).
			Width(18).
			Align(lipgloss.Center)
	StatLabelStyle = lipgloss.NewStyle().Foreground(dimColor).Align(lipgloss.Center)
	StatValueStyle = lipgloss.NewStyle().Bold(true).Align(lipgloss.Center)
)

// KindColor returns the tile color for a counter family: "ascii",
// "binary", "discard", "fail"; anything else gets the accent color.
func KindColor(kind string) lipgloss.TerminalColor {
	switch kind {
	case "ascii":
		return asciiColor
	case "binary":
		return binaryColor
	case "discard":
		return discardColor
	case "fail":
		return failColor
	default:
		return accentColor
	}
}

// StateStyle styles a session outcome or validation verdict.
func StateStyle(state string) lipgloss.Style {
	switch state {
	case "completed", "pass":
		return SuccessStyle
	case "remote_closed", "canceled":
		return WarningStyle
	case "transport_error", "parse_error", "storage_error", "fail":
		return ErrorStyle
	default:
		return ValueStyle
	}
}
