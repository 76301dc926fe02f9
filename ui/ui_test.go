package ui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"crawlchat/config"
	appmodel "crawlchat/model"
	"crawlchat/voice"
)

type stubBackend struct{}

func (stubBackend) Ask(ctx context.Context, q string) (string, error) { return "**answer**", nil }
func (stubBackend) Crawl(ctx context.Context, u string) (string, error) {
	return "Content from " + u + " has been processed and stored.", nil
}
func (stubBackend) BaseURL() string { return "http://localhost:8000" }

func newTestView() AppView {
	cfg := &config.Config{Keybindings: config.DefaultKeybindings()}
	m := &appmodel.Model{Config: cfg, Backend: stubBackend{}, State: appmodel.NewState()}
	v := NewAppView(m)
	updated, _ := v.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return updated.(AppView)
}

func typeText(t *testing.T, v AppView, text string) AppView {
	t.Helper()
	updated, _ := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return updated.(AppView)
}

func press(v AppView, k tea.KeyType) (AppView, tea.Cmd) {
	updated, cmd := v.Update(tea.KeyMsg{Type: k})
	return updated.(AppView), cmd
}

func TestRenderTranscript(t *testing.T) {
	msgs := []Message{
		appmodel.NewMessage(appmodel.RoleAssistant, appmodel.Greeting),
		appmodel.NewMessage(appmodel.RoleUser, "what is go?\nsecond line"),
		appmodel.NewMessage(appmodel.RoleAssistant, "raw answer"),
		appmodel.NewMessage(appmodel.RoleSystem, "note"),
	}

	out := renderTranscript(msgs, renderOptions{rendered: map[int]string{2: "RENDERED"}, highlightIdx: -1})

	for _, want := range []string{appmodel.Greeting, "You", "what is go?", "second line", "RENDERED", "note"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if strings.Contains(out, "raw answer") {
		t.Error("cached rendering should replace raw assistant content")
	}
	if strings.Count(out, codeBar) < 3 {
		t.Error("user message lines should carry the vertical bar")
	}

	if got := renderTranscript(nil, renderOptions{}); got != "No messages yet." {
		t.Errorf("empty render = %q", got)
	}
}

func TestMessageOffset(t *testing.T) {
	msgs := []Message{
		appmodel.NewMessage(appmodel.RoleUser, "one"),
		appmodel.NewMessage(appmodel.RoleAssistant, "two"),
	}
	opts := renderOptions{highlightIdx: -1}
	if got := messageOffset(msgs, 0, opts); got != 0 {
		t.Errorf("offset(0) = %d", got)
	}
	// header, one content line, blank line
	if got := messageOffset(msgs, 1, opts); got != 3 {
		t.Errorf("offset(1) = %d, want 3", got)
	}
}

func TestRenderMarkdown(t *testing.T) {
	out := renderMarkdown("See [docs](https://go.dev/doc) for **more**.", 80)
	if !strings.Contains(out, "https://go.dev/doc") {
		t.Errorf("link URL missing from %q", out)
	}
	if strings.Contains(out, "[docs]") {
		t.Errorf("markdown link syntax should be stripped: %q", out)
	}
}

func TestFrameCodeBlocks(t *testing.T) {
	in := "text\n" + codeBar + " x := 1\n" + codeBar + " y := 2\nafter"
	out := frameCodeBlocks(in, 40)
	if !strings.Contains(out, "[code]") {
		t.Error("expected [code] label")
	}
	if strings.Contains(out, codeBar) {
		t.Error("bar prefix should be stripped from code lines")
	}
	if !strings.Contains(out, "x := 1") || !strings.Contains(out, "after") {
		t.Errorf("content lost: %q", out)
	}
}

func TestVoiceIndicator(t *testing.T) {
	tests := []struct {
		name  string
		state appmodel.State
		want  string
	}{
		{"idle", appmodel.State{}, ""},
		{"recording", appmodel.State{VoicePhase: voice.PhaseRecording}, "Recording"},
		{"transcribing", appmodel.State{VoicePhase: voice.PhaseAwaitingTranscript}, "Transcribing"},
		{"playing", appmodel.State{VoicePhase: voice.PhasePlaying}, "Speaking"},
		{"error", appmodel.State{VoiceErr: errors.New("mic busy")}, "mic busy"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := voiceIndicator(tt.state)
			if tt.want == "" {
				if got != "" {
					t.Errorf("got %q, want empty", got)
				}
				return
			}
			if !strings.Contains(got, tt.want) {
				t.Errorf("got %q, want it to contain %q", got, tt.want)
			}
		})
	}
}

func TestSubmitQuestion(t *testing.T) {
	v := newTestView()

	v, cmd := press(v, tea.KeyEnter)
	if cmd != nil {
		t.Fatal("empty input must not submit")
	}

	v = typeText(t, v, "capital of France?")
	v, cmd = press(v, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if v.textarea.Value() != "" {
		t.Error("input should clear after submit")
	}
	if !v.dataModel.State.Loading() {
		t.Error("expected loading state")
	}

	updated, _ := v.Update(appmodel.AnswerMsg{Question: "capital of France?", Answer: "Paris"})
	v = updated.(AppView)
	if v.dataModel.State.Transcript.Len() != 3 {
		t.Errorf("transcript has %d entries", v.dataModel.State.Transcript.Len())
	}
	if !v.rendering[2] {
		t.Error("expected markdown render queued for the answer")
	}
}

func TestToggleInputCrawls(t *testing.T) {
	v := newTestView()

	v, _ = press(v, tea.KeyTab)
	if v.dataModel.State.Input != appmodel.InputURL {
		t.Fatal("Tab should switch to URL input")
	}

	v = typeText(t, v, "go.dev")
	if v.urlInput.Value() != "go.dev" {
		t.Fatalf("url input = %q", v.urlInput.Value())
	}

	v, cmd := press(v, tea.KeyEnter)
	if cmd == nil {
		t.Fatal("expected crawl command")
	}
	if v.urlInput.Value() != "" {
		t.Error("url input should clear")
	}
}

func TestMarkdownRenderedIgnoresStaleResults(t *testing.T) {
	v := newTestView()

	updated, _ := v.Update(appmodel.MarkdownRenderedMsg{MessageIndex: 0, Generation: v.generation, Width: 100, Rendered: "fresh"})
	v = updated.(AppView)
	if v.rendered[0] != "fresh" {
		t.Fatal("expected cached rendering")
	}

	updated, _ = v.Update(appmodel.MarkdownRenderedMsg{MessageIndex: 0, Generation: v.generation, Width: 50, Rendered: "narrow"})
	v = updated.(AppView)
	if v.rendered[0] != "fresh" {
		t.Error("result for another width must be ignored")
	}

	updated, _ = v.Update(appmodel.TranscriptResetMsg{})
	v = updated.(AppView)
	updated, _ = v.Update(appmodel.MarkdownRenderedMsg{MessageIndex: 0, Generation: v.generation - 1, Width: 100, Rendered: "old"})
	v = updated.(AppView)
	if v.rendered[0] == "old" {
		t.Error("result from a replaced transcript must be ignored")
	}
}

func TestSearchTranscript(t *testing.T) {
	tr := appmodel.NewTranscript().Append(
		appmodel.NewMessage(appmodel.RoleUser, "How do goroutines work?"),
		appmodel.NewMessage(appmodel.RoleAssistant, "They are scheduled by the runtime."),
	)
	results := searchTranscript(tr, "goroutines")
	if len(results) == 0 || results[0].MessageIndex != 1 {
		t.Errorf("results = %+v", results)
	}
}

func TestHelpModalToggle(t *testing.T) {
	v := newTestView()
	updated, _ := v.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("h"), Alt: true})
	v = updated.(AppView)
	if !v.showHelp {
		t.Fatal("Alt+H should open help")
	}
	if !strings.Contains(v.View(), "Keyboard Shortcuts") {
		t.Error("help view not rendered")
	}
	v, _ = press(v, tea.KeyEsc)
	if v.showHelp {
		t.Error("Esc should close help")
	}
}

func TestFlashIgnoresEarlierTicks(t *testing.T) {
	v := newTestView()

	updated, _ := v.Update(clipboardMsg{What: "last response"})
	v = updated.(AppView)
	firstSeq := v.flashSeq

	updated, _ = v.Update(transcriptSavedMsg{ID: "abc", Name: "capital of France?"})
	v = updated.(AppView)
	if !strings.Contains(v.flash, "capital of France?") {
		t.Fatalf("flash = %q", v.flash)
	}

	updated, _ = v.Update(flashTickMsg{seq: firstSeq})
	v = updated.(AppView)
	if v.flash == "" {
		t.Fatal("tick from an earlier flash cleared the newer one")
	}

	updated, _ = v.Update(flashTickMsg{seq: v.flashSeq})
	v = updated.(AppView)
	if v.flash != "" {
		t.Errorf("flash = %q after its own tick", v.flash)
	}
}
