package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	appmodel "crawlchat/model"
	"crawlchat/storage"
)

// searchTranscript fuzzy-matches the live transcript, best match first.
func searchTranscript(t appmodel.Transcript, query string) []storage.MessageMatch {
	return storage.SearchMessages(appmodel.ToStorage(t), query)
}

func (a AppView) handleMessageSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kb := a.keybindings()
	k := msg.String()

	switch {
	case k == "esc":
		a.showMessageSearch = false
		a.messageSearchInput.Blur()
		return a, nil

	case k == kb.GetActionKey("search_down"):
		if a.selectedSearchIdx < len(a.messageSearchResults)-1 {
			a.selectedSearchIdx++
		}
		return a, nil

	case k == kb.GetActionKey("search_up"):
		if a.selectedSearchIdx > 0 {
			a.selectedSearchIdx--
		}
		return a, nil

	case k == "enter":
		if len(a.messageSearchResults) == 0 {
			return a, nil
		}
		match := a.messageSearchResults[a.selectedSearchIdx]
		a.showMessageSearch = false
		a.messageSearchInput.Blur()
		a.highlightedMessageIdx = match.MessageIndex
		a.updateViewportContent(false)
		a.viewport.SetYOffset(messageOffset(a.dataModel.Messages(), match.MessageIndex, a.renderOpts()))
		return a, nil
	}

	var cmd tea.Cmd
	a.messageSearchInput, cmd = a.messageSearchInput.Update(msg)
	a.messageSearchResults = searchTranscript(a.dataModel.State.Transcript, a.messageSearchInput.Value())
	a.selectedSearchIdx = 0
	return a, cmd
}

func (a AppView) renderMessageSearch(width, height int) string {
	return renderMessageSearch(a.messageSearchInput, a.messageSearchResults, a.selectedSearchIdx, a.keybindings().DisplayActionKey("search_down"), width, height)
}

func renderMessageSearch(searchInput textinput.Model, results []storage.MessageMatch, selectedIdx int, downKey string, width, height int) string {
	modalWidth := width - 4
	if modalWidth > 100 {
		modalWidth = 100
	}

	modalStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(dimColor).
		Padding(1, 2)

	title := TitleStyle.Render("Search Transcript")

	resultsView := ""
	switch {
	case len(results) == 0 && searchInput.Value() == "":
		resultsView = DimStyle.Render("Type to search messages...")
	case len(results) == 0:
		resultsView = DimStyle.Render("No matches found")
	default:
		// Border, padding, title, input, count line, footer and blank lines
		fixedOverhead := 12
		maxVisible := (height - fixedOverhead) / 3
		if maxVisible < 1 {
			maxVisible = 1
		}

		start := 0
		if selectedIdx >= maxVisible {
			start = selectedIdx - maxVisible + 1
		}
		end := start + maxVisible
		if end > len(results) {
			end = len(results)
		}

		resultsView = fmt.Sprintf("Found %d matches:\n\n", len(results))
		if start > 0 {
			resultsView += DimStyle.Render(fmt.Sprintf("↑ %d more above\n", start))
		}

		previewWidth := modalWidth - 10
		if previewWidth < 10 {
			previewWidth = 10
		}

		for i := start; i < end; i++ {
			match := results[i]

			roleStyle := UserStyle
			if match.Role == string(appmodel.RoleAssistant) {
				roleStyle = AssistantStyle
			}

			matchText := fmt.Sprintf("%s [%s]\n  %s",
				roleStyle.Render(match.Role),
				match.Timestamp.Format("15:04"),
				runewidth.Truncate(match.Preview, previewWidth, "..."),
			)

			if i == selectedIdx {
				matchText = SelectedStyle.Render("> " + matchText)
			} else {
				matchText = "  " + matchText
			}
			resultsView += matchText + "\n"
		}

		if end < len(results) {
			resultsView += DimStyle.Render(fmt.Sprintf("↓ %d more below", len(results)-end))
		}
	}

	footer := FormatFooter("Type", "to search", downKey+"/Up", "Navigate", "Enter", "Jump", "Esc", "Close")

	content := lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		searchInput.View(),
		"",
		resultsView,
		"",
		footer,
	)

	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center,
		modalStyle.Width(modalWidth).Render(content))
}
