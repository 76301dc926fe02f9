package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"crawlchat/config"
	appmodel "crawlchat/model"
	"crawlchat/storage"
	"crawlchat/voice"
)

type AppView struct {
	// Reference to core data model
	dataModel *appmodel.Model

	// UI Components
	viewport viewport.Model
	textarea textarea.Model
	urlInput textinput.Model

	// Window state
	width  int
	height int
	ready  bool

	// Markdown cache for assistant messages at the current width.
	// generation changes whenever the transcript is replaced.
	rendered   map[int]string
	rendering  map[int]bool
	generation int

	// Loading spinner while Q&A or crawl requests are in flight
	loadingSpinner spinner.Model
	spinning       bool

	showHelp bool

	showMessageSearch    bool
	messageSearchInput   textinput.Model
	messageSearchResults []storage.MessageMatch
	selectedSearchIdx    int

	highlightedMessageIdx int

	// Transient status line text (saves, clipboard)
	flash    string
	flashSeq int
}

func NewAppView(dataModel *appmodel.Model) AppView {
	ta := textarea.New()
	ta.Placeholder = "Ask a question about the crawled pages..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Alt+Enter inserts a newline; Enter alone submits
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	urlInput := textinput.New()
	urlInput.Prompt = "URL: "
	urlInput.Placeholder = "example.com/docs"
	urlInput.CharLimit = 2048

	messageSearchInput := textinput.New()
	messageSearchInput.Prompt = "Search: "
	messageSearchInput.CharLimit = 100

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = AssistantStyle

	return AppView{
		dataModel:             dataModel,
		viewport:              viewport.New(0, 0),
		textarea:              ta,
		urlInput:              urlInput,
		rendered:              map[int]string{},
		rendering:             map[int]bool{},
		loadingSpinner:        sp,
		messageSearchInput:    messageSearchInput,
		highlightedMessageIdx: -1,
	}
}

func (a AppView) Init() tea.Cmd {
	// Markdown waits for the first WindowSizeMsg to know the width
	return tea.Batch(textarea.Blink, a.dataModel.WaitForVoice())
}

func (a AppView) keybindings() *config.KeyBindingsConfig {
	if a.dataModel.Config != nil && a.dataModel.Config.Keybindings != nil {
		return a.dataModel.Config.Keybindings
	}
	return config.DefaultKeybindings()
}

func (a AppView) View() string {
	if !a.ready {
		return "Loading crawlchat..."
	}

	if a.showHelp {
		return a.renderHelpModal(a.width, a.height)
	}

	if a.showMessageSearch {
		return a.renderMessageSearch(a.width, a.height)
	}

	title := AssistantStyle.Render("crawlchat") +
		TitleStyle.Render(fmt.Sprintf(" - %s", a.dataModel.Backend.BaseURL()))
	if indicator := voiceIndicator(a.dataModel.State); indicator != "" {
		title += DimStyle.Render(" | ") + indicator
	}
	if a.dataModel.State.Loading() {
		title += " " + a.loadingSpinner.View()
	}

	var inputView string
	if a.dataModel.State.Input == appmodel.InputURL {
		inputView = urlBoxStyle.Render(a.urlInput.View())
	} else {
		inputView = a.textarea.View()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		a.viewport.View(),
		inputView,
		a.statusBar(),
	)
}

func (a AppView) statusBar() string {
	if a.flash != "" {
		return StatusStyle.Render(a.flash)
	}

	kb := a.keybindings()
	descStyle := lipgloss.NewStyle().Foreground(successColor).Bold(true)

	submit := "Ask"
	if a.dataModel.State.Input == appmodel.InputURL {
		submit = "Crawl"
	}
	record := "Record"
	if a.dataModel.State.Recording() {
		record = "Stop"
	}

	bar := fmt.Sprintf("%s %s  Tab %s  Enter %s  %s %s  %s %s  %s %s",
		kb.DisplayActionKey("quit"), descStyle.Render("Quit"),
		descStyle.Render("Question/URL"),
		descStyle.Render(submit),
		kb.DisplayActionKey("record"), descStyle.Render(record),
		kb.DisplayActionKey("search_messages"), descStyle.Render("Search"),
		kb.DisplayActionKey("help"), descStyle.Render("Help"),
	)
	return StatusStyle.Render(bar)
}

// voiceIndicator describes the voice exchange for the title bar.
func voiceIndicator(s appmodel.State) string {
	switch {
	case s.Recording():
		return RecordingStyle.Render("● Recording")
	case s.Processing():
		return ProcessingStyle.Render("◌ " + phaseLabel(s.VoicePhase))
	case s.VoiceErr != nil:
		return ErrorStyle.Render("Voice: " + s.VoiceErr.Error())
	}
	return ""
}

func phaseLabel(p voice.Phase) string {
	switch p {
	case voice.PhaseAwaitingServerReady, voice.PhaseSending:
		return "Sending"
	case voice.PhaseAwaitingTranscript:
		return "Transcribing"
	case voice.PhaseAwaitingReply, voice.PhaseAwaitingAudio:
		return "Thinking"
	case voice.PhasePlaying:
		return "Speaking"
	}
	return p.String()
}
