package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/justapithecus/aetheric/session"
	"github.com/justapithecus/aetheric/validator"
)

// InspectModel is a Bubble Tea model for inspect views.
type InspectModel struct {
	viewType string
	data     any
	width    int
	height   int
	quitting bool
}

// NewInspectModel creates a new inspect model.
func NewInspectModel(viewType string, data any) InspectModel {
	return InspectModel{
		viewType: viewType,
		data:     data,
	}
}

// Init implements tea.Model.
func (m InspectModel) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m InspectModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
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
func (m InspectModel) View() string {
	if m.quitting {
		return ""
	}

	var content string
	switch m.viewType {
	case "inspect_session":
		content = m.renderInspectSession()
	case "inspect_report":
		content = m.renderInspectReport()
	default:
		content = fmt.Sprintf("Unknown view type: %s", m.viewType)
	}

	help := HelpStyle.Render("Press q or Ctrl+C to quit")
	return content + "\n" + help
}

func (m InspectModel) renderInspectSession() string {
	data, ok := m.data.(*session.Result)
	if !ok {
		return "Invalid data type for inspect_session"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Session"))
	b.WriteString("\n\n")

	rows := [][]string{
		{"Session ID", data.SessionID},
		{"Remote", data.Remote},
		{"Outcome", string(data.Outcome)},
		{"Status Sent", fmt.Sprintf("%t", data.StatusSent)},
		{"ASCII", fmt.Sprintf("%d", data.ASCII)},
		{"Binary", fmt.Sprintf("%d", data.Binary)},
		{"Discarded", fmt.Sprintf("%d", data.Discarded)},
		{"Spooled", formatBytes(data.BytesSpooled)},
		{"Resync Bytes", fmt.Sprintf("%d", data.Metrics.ResyncBytes)},
		{"Started At", data.StartedAt.Format("2006-01-02 15:04:05")},
		{"Duration", data.Duration.String()},
	}
	if data.Message != "" {
		rows = append(rows, []string{"Message", data.Message})
	}

	for _, row := range rows {
		label := LabelStyle.Render(row[0] + ":")
		value := row[1]
		if row[0] == "Outcome" {
			value = StateStyle(value).Render(value)
		} else {
			value = ValueStyle.Render(value)
		}
		b.WriteString(fmt.Sprintf("%s %s\n", label, value))
	}

	return BoxStyle.Render(b.String())
}

func (m InspectModel) renderInspectReport() string {
	data, ok := m.data.(*validator.Report)
	if !ok {
		return "Invalid data type for inspect_report"
	}

	var b strings.Builder
	b.WriteString(TitleStyle.Render("Validation Report"))
	b.WriteString("\n\n")

	verdict := "fail"
	if data.Pass {
		verdict = "pass"
	}
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Result:"),
		StateStyle(verdict).Render(strings.ToUpper(verdict))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Mode:"),
		ValueStyle.Render(fmt.Sprintf("%s (sha %s)", data.Mode, data.Sha))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Database:"),
		ValueStyle.Render(data.DBPath)))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Messages:"),
		ValueStyle.Render(fmt.Sprintf("%d", data.Cross.TotalMessages))))

	b.WriteString("\n")
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("ASCII:"),
		countStyle(data.ASCII.Invalid).Render(fmt.Sprintf("%d rows, %d invalid", data.ASCII.Rows, data.ASCII.Invalid))))

	binaryBad := data.Binary.FilesMissing + data.Binary.SizeMismatch +
		data.Binary.ChecksumMismatch + data.Binary.ManifestMismatch
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Binary:"),
		countStyle(binaryBad).Render(fmt.Sprintf("%d rows, %d missing, %d size, %d checksum",
			data.Binary.Rows, data.Binary.FilesMissing, data.Binary.SizeMismatch, data.Binary.ChecksumMismatch))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Discarded:"),
		ValueStyle.Render(fmt.Sprintf("%d", data.Cross.DiscardCount))))
	b.WriteString(fmt.Sprintf("%s %s\n",
		LabelStyle.Render("Orphan .part:"),
		countStyle(data.Cross.OrphanTempFiles).Render(fmt.Sprintf("%d", data.Cross.OrphanTempFiles))))

	for _, w := range data.Warnings {
		b.WriteString(WarningStyle.Render("! " + w))
		b.WriteString("\n")
	}

	return BoxStyle.Render(b.String())
}

func countStyle(bad int64) lipgloss.Style {
	if bad > 0 {
		return ErrorStyle
	}
	return ValueStyle
}

// keyMap defines key bindings.
type keyMap struct {
	Quit key.Binding
}

var keys = keyMap{
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

// RunInspectTUI runs the inspect TUI.
func RunInspectTUI(viewType string, data any) error {
	model := NewInspectModel(viewType, data)
	p := tea.NewProgram(model, tea.WithAltScreen())
	_, err := p.Run()
	return err
}

// RenderInspectStatic renders inspect data without full TUI (for fallback).
func RenderInspectStatic(viewType string, data any) string {
	model := NewInspectModel(viewType, data)
	model.width = 80
	model.height = 24
	return lipgloss.NewStyle().Padding(1, 2).Render(model.View())
}
