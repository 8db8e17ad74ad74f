package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/aetheric/lode"
	"github.com/justapithecus/aetheric/store"
)

// recentSessionRows caps the session table in stats_store.
const recentSessionRows = 10

// StatsModel is a Bubble Tea model for stats views.
type StatsModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewStatsModel creates a new stats model.
func NewStatsModel(viewType string, data any) StatsModel {
	return StatsModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m StatsModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m StatsModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, keys.Quit) {
			m.quitting = true
			return m, tea.Quit
		}
	}

	return m, nil
}

// View implements tea.Model.
func (m StatsModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "stats_store":
		content = m.renderStatsStore()
	case "stats_archive":
		content = m.renderStatsArchive()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m StatsModel) renderStatsStore() string {
	data, ok := m.data.(*store.Stats)
	if !ok {
		return "Invalid data type for stats_store"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Collector Statistics"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("Messages", data.Counts.Total(), ""),
		m.renderStatBox("ASCII", data.Counts.ASCII, "ascii"),
		m.renderStatBox("Binary", data.Counts.Binary, "binary"),
		m.renderStatBox("Discarded", data.Counts.Discarded, "discard"),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("ASCII length:"),
		ValueStyle.Render(formatRange(data.ASCIILength))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Binary length:"),
		ValueStyle.Render(formatRange(data.BinaryLength))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Binary bytes:"),
		ValueStyle.Render(formatBytes(data.BinaryBytes))))

	if len(data.DiscardsByReason) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Discards by reason"))
		b.WriteString("\n")
		for _, reason := range sortedKeys(data.DiscardsByReason) {
			b.WriteString(fmt.Sprintf("%s %s\n",
				LabelStyle.Render(reason+":"),
				WarningStyle.Render(fmt.Sprintf("%d", data.DiscardsByReason[reason]))))
		}
	}

	if len(data.Sessions) > 0 {
		b.WriteString("\n")
		b.WriteString(TitleStyle.Render("Recent sessions"))
		b.WriteString("\n")
		for i, s := range data.Sessions {
			if i == recentSessionRows {
				break
			}
			outcome := s.Outcome
			if outcome == "" {
				outcome = "open"
			}
			b.WriteString(fmt.Sprintf("%s  %s  %s\n",
				ValueStyle.Render(s.StartedAt.Format("2006-01-02 15:04:05")),
				StateStyle(outcome).Render(fmt.Sprintf("%-16s", outcome)),
				LabelStyle.UnsetWidth().Render(fmt.Sprintf("ascii=%d binary=%d discarded=%d",
					s.ASCII, s.Binary, s.Discarded))))
		}
	}

	return b.String()
}

func (m StatsModel) renderStatsArchive() string {
	data, ok := m.data.(map[string]any)
	if !ok {
		return "Invalid data type for stats_archive"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Archived Session Summary"))
	b.WriteString("\n\n")

	boxes := []string{
		m.renderStatBox("ASCII", lode.ToInt64(data["ascii_frames"]), "ascii"),
		m.renderStatBox("Binary", lode.ToInt64(data["binary_frames"]), "binary"),
		m.renderStatBox("Discards", lode.ToInt64(data["discards"]), "discard"),
		m.renderStatBox("Store fails", lode.ToInt64(data["store_write_failure"]), "fail"),
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, boxes...))
	b.WriteString("\n\n")

	for _, k := range []string{"session_id", "day", "outcome", "ts"} {
		v := fmt.Sprintf("%v", data[k])
		style := ValueStyle
		if k == "outcome" {
			style = StateStyle(v)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", LabelStyle.Render(k+":"), style.Render(v)))
	}

	return b.String()
}

func (m StatsModel) renderStatBox(label string, value int64, kind string) string {
	color := KindColor(kind)
	boxStyle := StatBoxStyle.BorderForeground(color)

	valueStr := StatValueStyle.Foreground(color).Render(fmt.Sprintf("%d", value))
	labelStr := StatLabelStyle.Render(label)

	content := lipgloss.JoinVertical(lipgloss.Center, valueStr, labelStr)

	return boxStyle.Render(content)
}

func formatRange(r store.LengthRange) string {
	return fmt.Sprintf("min %d / max %d / avg %.1f", r.Min, r.Max, r.Avg)
}

func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for v := n / unit; v >= unit; v /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}

func sortedKeys(m map[string]int64) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// RunStatsTUI runs the stats TUI.
func RunStatsTUI(viewType string, data any) error {
	model := NewStatsModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderStatsStatic renders stats data without full TUI (for fallback).
func RenderStatsStatic(viewType string, data any) string {
	model := NewStatsModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
