package tui

import (
	"fmt"
	"strings"
)

// Run starts the appropriate TUI based on the view type.
// Returns an error if the view type doesn't support TUI.
func Run(viewType string, data any) error {
	if !IsTUISupported(viewType) {
		return fmt.Errorf("TUI mode is not supported for %s", viewType)
	}

	if strings.HasPrefix(viewType, "inspect_") {
		return RunInspectTUI(viewType, data)
	}
	if strings.HasPrefix(viewType, "stats_") {
		return RunStatsTUI(viewType, data)
	}

	return fmt.Errorf("unknown view type: %s", viewType)
}

// IsTUISupported returns true if the view type is one of SupportedTUIViews.
func IsTUISupported(viewType string) bool {
	for _, v := range SupportedTUIViews() {
		if v == viewType {
			return true
		}
	}
	return false
}

// SupportedTUIViews returns a list of view types that support TUI.
func SupportedTUIViews() []string {
	return []string{
		"inspect_session",
		"inspect_report",
		"stats_store",
		"stats_archive",
	}
}

// RenderStatic renders a supported view once, without an interactive
// program. Used when stdout is not a terminal.
func RenderStatic(viewType string, data any) (string, error) {
	switch {
	case !IsTUISupported(viewType):
		return "", fmt.Errorf("TUI mode is not supported for %s", viewType)
	case strings.HasPrefix(viewType, "inspect_"):
		return RenderInspectStatic(viewType, data), nil
	default:
		return RenderStatsStatic(viewType, data), nil
	}
}
