package ui

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// ErrorModal reports a startup failure before the chat view exists.
type ErrorModal struct {
	title   string
	message string
	hint    string
	width   int
	height  int
}

func NewErrorModal(title string, err error, hint string) ErrorModal {
	return ErrorModal{
		title:   title,
		message: err.Error(),
		hint:    hint,
	}
}

func (m ErrorModal) Init() tea.Cmd {
	return nil
}

func (m ErrorModal) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "enter", "esc", "q", "ctrl+c":
			return m, tea.Quit
		}
	}

	return m, nil
}

func (m ErrorModal) View() string {
	if m.width < 20 || m.height < 10 {
		return m.title + ": " + m.message
	}

	modalWidth := 60
	if m.width < modalWidth+10 {
		modalWidth = m.width - 10
	}

	titleSection := lipgloss.NewStyle().
		Bold(true).
		Foreground(dangerColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render(m.title)

	body := lipgloss.NewStyle().Width(modalWidth).Align(lipgloss.Center)
	lines := []string{""}
	for _, line := range strings.Split(m.message, "\n") {
		lines = append(lines, body.Render(line))
	}
	if m.hint != "" {
		lines = append(lines, "", body.Foreground(dimColor).Render(m.hint))
	}
	lines = append(lines, "")

	divider := lipgloss.NewStyle().
		BorderTop(true).
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(dimColor)

	messageSection := divider.Render(strings.Join(lines, "\n"))

	footerSection := divider.
		Foreground(dimColor).
		Align(lipgloss.Center).
		Width(modalWidth).
		Render("Press Enter to quit")

	content := strings.Join([]string{titleSection, messageSection, footerSection}, "\n")

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}
