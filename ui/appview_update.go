package ui

import (
	"fmt"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"crawlchat/config"
	appmodel "crawlchat/model"
)

const flashDuration = 3 * time.Second

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		if msg.Width != a.width {
			a.resetRenderCache()
		}
		a.width = msg.Width
		a.height = msg.Height

		// Title (1), separator (1), input (3) and status bar (1)
		viewportHeight := a.height - 6
		if viewportHeight < 1 {
			viewportHeight = 1
		}
		a.viewport.Width = a.width
		a.viewport.Height = viewportHeight
		a.textarea.SetWidth(a.width)
		a.urlInput.Width = a.width - len(a.urlInput.Prompt) - 1

		a.ready = true
		a.updateViewportContent(true)
		return a, a.renderPendingAssistants()

	case spinner.TickMsg:
		if !a.dataModel.State.Loading() {
			a.spinning = false
			return a, nil
		}
		var cmd tea.Cmd
		a.loadingSpinner, cmd = a.loadingSpinner.Update(msg)
		return a, cmd

	case answerMsg, crawlMsg:
		a.dataModel.Apply(msg)
		a.updateViewportContent(true)
		return a, a.renderPendingAssistants()

	case voiceStartedMsg:
		a.dataModel.Apply(msg)
		if msg.Err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[UI] voice start failed: %v", msg.Err)
		}
		return a, nil

	case voiceStoppedMsg, voiceCancelledMsg:
		a.dataModel.Apply(msg)
		return a, nil

	case voiceUpdateMsg:
		a.dataModel.Apply(msg)
		if msg.Update.Role != "" {
			a.updateViewportContent(true)
		}
		return a, tea.Batch(a.dataModel.WaitForVoice(), a.renderPendingAssistants())

	case transcriptResetMsg, transcriptLoadedMsg:
		a.dataModel.Apply(msg)
		a.resetRenderCache()
		a.updateViewportContent(true)
		return a, a.renderPendingAssistants()

	case transcriptSavedMsg:
		a.dataModel.Apply(msg)
		if msg.Err != nil {
			return a, a.setFlash("Save failed: " + msg.Err.Error())
		}
		return a, a.setFlash(fmt.Sprintf("Transcript saved as %q", msg.Name))

	case clipboardMsg:
		if msg.Err != nil {
			return a, a.setFlash("Copy failed: " + msg.Err.Error())
		}
		return a, a.setFlash("Copied " + msg.What)

	case markdownRenderedMsg:
		delete(a.rendering, msg.MessageIndex)
		if msg.Generation != a.generation || msg.Width != a.width {
			return a, nil
		}
		a.rendered[msg.MessageIndex] = msg.Rendered
		a.updateViewportContent(a.viewport.AtBottom())
		return a, nil

	case flashTickMsg:
		if msg.seq == a.flashSeq {
			a.flash = ""
		}
		return a, nil

	case tea.KeyMsg:
		return a.handleKey(msg)
	}

	return a, nil
}

func (a AppView) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	kb := a.keybindings()
	k := msg.String()
	is := func(action string) bool { return k == kb.GetActionKey(action) }

	if k == "ctrl+c" || is("quit") {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[UI] quit requested")
		}
		a.dataModel.Quitting = true
		if a.dataModel.Voice != nil {
			a.dataModel.Voice.Cancel()
		}
		return a, tea.Quit
	}

	if a.showHelp {
		if k == "esc" || is("help") {
			a.showHelp = false
		}
		return a, nil
	}

	if a.showMessageSearch {
		return a.handleMessageSearch(msg)
	}

	switch {
	case is("help"):
		a.showHelp = true
		return a, nil

	case is("search_messages"):
		a.showMessageSearch = true
		a.messageSearchInput.SetValue("")
		a.messageSearchResults = nil
		a.selectedSearchIdx = 0
		a.messageSearchInput.Focus()
		return a, textinput.Blink

	case is("toggle_input"):
		a.dataModel.Apply(appmodel.InputModeToggledMsg{})
		if a.dataModel.State.Input == appmodel.InputURL {
			a.textarea.Blur()
			return a, a.urlInput.Focus()
		}
		a.urlInput.Blur()
		return a, a.textarea.Focus()

	case is("clear_input"):
		a.textarea.Reset()
		a.urlInput.SetValue("")
		return a, nil

	case is("record"):
		return a, a.dataModel.ToggleRecording()

	case is("cancel_voice"):
		return a, a.dataModel.CancelVoice()

	case is("new_transcript"):
		return a, a.dataModel.NewTranscript()

	case is("save_transcript"):
		if cmd := a.dataModel.SaveTranscript(); cmd != nil {
			return a, cmd
		}
		return a, a.setFlash("Transcript archive unavailable")

	case is("yank_last_response"):
		return a, copyLastResponse(a.dataModel.State.Transcript)

	case is("yank_conversation"):
		return a, copyConversation(a.dataModel.Messages())

	case is("scroll_down"):
		a.viewport.LineDown(1)
		return a, nil

	case is("scroll_up"):
		a.viewport.LineUp(1)
		return a, nil

	case is("half_page_down"):
		a.viewport.HalfViewDown()
		return a, nil

	case is("half_page_up"):
		a.viewport.HalfViewUp()
		return a, nil

	case is("page_down"), k == "pgdown":
		a.viewport.ViewDown()
		return a, nil

	case is("page_up"), k == "pgup":
		a.viewport.ViewUp()
		return a, nil

	case is("scroll_to_top"):
		a.viewport.GotoTop()
		return a, nil

	case is("scroll_to_bottom"):
		a.viewport.GotoBottom()
		return a, nil

	case k == "enter":
		return a.submit()
	}

	var cmd tea.Cmd
	if a.dataModel.State.Input == appmodel.InputURL {
		a.urlInput, cmd = a.urlInput.Update(msg)
	} else {
		a.textarea, cmd = a.textarea.Update(msg)
	}
	return a, cmd
}

// submit sends the active input as a question or a crawl request.
func (a AppView) submit() (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	if a.dataModel.State.Input == appmodel.InputURL {
		cmd = a.dataModel.Crawl(a.urlInput.Value())
		if cmd != nil {
			a.urlInput.SetValue("")
		}
	} else {
		cmd = a.dataModel.Ask(a.textarea.Value())
		if cmd != nil {
			a.textarea.Reset()
		}
	}

	if cmd == nil {
		return a, nil
	}

	cmds := []tea.Cmd{cmd}
	if !a.spinning {
		a.spinning = true
		cmds = append(cmds, a.loadingSpinner.Tick)
	}
	return a, tea.Batch(cmds...)
}

func (a *AppView) resetRenderCache() {
	a.generation++
	a.rendered = map[int]string{}
	a.rendering = map[int]bool{}
	a.highlightedMessageIdx = -1
}

// setFlash shows text until its own tick fires. Ticks from earlier
// flashes are ignored.
func (a *AppView) setFlash(text string) tea.Cmd {
	a.flash = text
	a.flashSeq++
	seq := a.flashSeq
	return tea.Tick(flashDuration, func(time.Time) tea.Msg { return flashTickMsg{seq: seq} })
}

func copyLastResponse(t appmodel.Transcript) tea.Cmd {
	return func() tea.Msg {
		msg, ok := t.Last(appmodel.RoleAssistant)
		if !ok {
			return clipboardMsg{What: "nothing"}
		}
		return clipboardMsg{What: "last response", Err: clipboard.WriteAll(msg.Content)}
	}
}

func copyConversation(msgs []Message) tea.Cmd {
	return func() tea.Msg {
		return clipboardMsg{What: "conversation", Err: clipboard.WriteAll(appmodel.FormatPlain(msgs))}
	}
}
