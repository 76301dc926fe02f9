package model

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"sync"
	"testing"

	"crawlchat/backend"
	"crawlchat/storage"
	"crawlchat/voice"
)

type fakeBackend struct {
	mu       sync.Mutex
	asked    []string
	crawled  []string
	answer   string
	message  string
	askErr   error
	crawlErr error
}

func (f *fakeBackend) Ask(ctx context.Context, question string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.asked = append(f.asked, question)
	return f.answer, f.askErr
}

func (f *fakeBackend) Crawl(ctx context.Context, rawURL string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.crawled = append(f.crawled, rawURL)
	return f.message, f.crawlErr
}

func (f *fakeBackend) BaseURL() string { return "http://localhost:8000" }

type fakeVoice struct {
	started   int
	stopped   int
	cancelled int
	startErr  error
	updates   chan voice.Update
}

func newFakeVoice() *fakeVoice {
	return &fakeVoice{updates: make(chan voice.Update, 8)}
}

func (f *fakeVoice) Start(ctx context.Context) (uint64, error) {
	if f.startErr != nil {
		return 0, f.startErr
	}
	f.started++
	return uint64(f.started), nil
}

func (f *fakeVoice) Stop() error                  { f.stopped++; return nil }
func (f *fakeVoice) Cancel()                      { f.cancelled++ }
func (f *fakeVoice) Updates() <-chan voice.Update { return f.updates }

func newTestModel(b Backend, v Voice, a *storage.Archive) *Model {
	return &Model{Backend: b, Voice: v, Archive: a, State: NewState()}
}

func contents(t Transcript) []string {
	var out []string
	for _, msg := range t.Messages() {
		out = append(out, string(msg.Role)+":"+msg.Content)
	}
	return out
}

func TestTranscriptAppendDoesNotMutate(t *testing.T) {
	base := NewTranscript()
	a := base.Append(NewMessage(RoleUser, "one"))
	b := base.Append(NewMessage(RoleUser, "two"))

	if base.Len() != 1 {
		t.Fatalf("base grew to %d", base.Len())
	}
	if a.At(1).Content != "one" || b.At(1).Content != "two" {
		t.Errorf("siblings aliased: a=%v b=%v", contents(a), contents(b))
	}

	msgs := a.Messages()
	msgs[0].Content = "changed"
	if a.At(0).Content != Greeting {
		t.Error("Messages() returned shared storage")
	}

	if last, ok := a.Last(RoleUser); !ok || last.Content != "one" {
		t.Errorf("Last(user) = %v, %v", last, ok)
	}
	if _, ok := base.Last(RoleUser); ok {
		t.Error("base should have no user entry")
	}
}

func TestReduceAnswer(t *testing.T) {
	tests := []struct {
		name string
		msg  AnswerMsg
		want []string
	}{
		{
			"success",
			AnswerMsg{Question: "capital of France?", Answer: "Paris"},
			[]string{"user:capital of France?", "assistant:Paris"},
		},
		{
			"server error",
			AnswerMsg{Question: "hi", Err: &backend.StatusError{Op: backend.OpAsk, StatusCode: http.StatusInternalServerError}},
			[]string{"user:hi", "assistant:Error: Failed to get an answer"},
		},
		{
			"transport error",
			AnswerMsg{Question: "hi", Err: errors.New("connection refused")},
			[]string{"user:hi", "assistant:Error: connection refused"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Reduce(NewState(), RequestStartedMsg{})
			if !s.Loading() {
				t.Fatal("expected loading after request start")
			}
			s = Reduce(s, tt.msg)
			if s.Loading() {
				t.Error("expected loading to clear")
			}
			got := contents(s.Transcript)[1:]
			if strings.Join(got, "|") != strings.Join(tt.want, "|") {
				t.Errorf("entries = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReduceCrawl(t *testing.T) {
	s := Reduce(NewState(), CrawlMsg{URL: "https://go.dev", Message: "Content from https://go.dev has been processed and stored."})
	s = Reduce(s, CrawlMsg{URL: "https://bad.example", Err: &backend.StatusError{Op: backend.OpCrawl, StatusCode: 500}})

	want := []string{
		"assistant:" + Greeting,
		"user:Crawling URL: https://go.dev",
		"assistant:Content from https://go.dev has been processed and stored.",
		"user:Crawling URL: https://bad.example",
		"assistant:Error: Failed to crawl the URL",
	}
	if got := contents(s.Transcript); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("entries = %v", got)
	}
	if s.Pending != 0 {
		t.Errorf("Pending = %d, must not go negative", s.Pending)
	}
}

func TestReduceVoiceUpdates(t *testing.T) {
	s := Reduce(NewState(), VoiceStartedMsg{Seq: 2})
	if !s.Recording() {
		t.Fatal("expected recording after start")
	}

	s = Reduce(s, VoiceUpdateMsg{voice.Update{Seq: 1, Phase: voice.PhaseIdle, Role: voice.RoleUser, Text: "stale"}})
	if !s.Recording() || s.Transcript.Len() != 1 {
		t.Fatal("stale update from an older exchange must be ignored")
	}

	updates := []voice.Update{
		{Seq: 2, Phase: voice.PhaseAwaitingServerReady},
		{Seq: 2, Phase: voice.PhaseAwaitingReply, Role: voice.RoleUser, Text: "what is go"},
		{Seq: 2, Phase: voice.PhaseAwaitingAudio, Role: voice.RoleAssistant, Text: "a language", Prompt: "what is go"},
		{Seq: 2, Phase: voice.PhasePlaying},
		{Seq: 2, Phase: voice.PhaseIdle},
	}
	for _, u := range updates {
		s = Reduce(s, VoiceUpdateMsg{u})
		if u.Phase.Processing() != s.Processing() {
			t.Errorf("Processing() = %v during %s", s.Processing(), u.Phase)
		}
	}

	want := []string{"assistant:" + Greeting, "user:what is go", "assistant:a language"}
	if got := contents(s.Transcript); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("entries = %v", got)
	}

	s = Reduce(s, VoiceUpdateMsg{voice.Update{Seq: 2, Phase: voice.PhaseIdle, Err: voice.ErrUnexpectedMessage}})
	if !errors.Is(s.VoiceErr, voice.ErrUnexpectedMessage) || s.Recording() || s.Processing() {
		t.Errorf("failure did not reset flags: %+v", s)
	}
}

func TestReduceVoiceStartFailure(t *testing.T) {
	s := Reduce(NewState(), VoiceStartedMsg{Err: errors.New("permission denied")})
	if s.Recording() || s.VoiceErr == nil {
		t.Errorf("state = %+v", s)
	}
	if s.Transcript.Len() != 1 {
		t.Error("start failure must not add transcript entries")
	}
}

func TestReduceToggleInputAndReset(t *testing.T) {
	s := Reduce(NewState(), InputModeToggledMsg{})
	if s.Input != InputURL {
		t.Fatalf("Input = %s", s.Input)
	}
	s = Reduce(s, InputModeToggledMsg{})
	if s.Input != InputQuestion {
		t.Fatalf("Input = %s", s.Input)
	}

	s = Reduce(s, AnswerMsg{Question: "q", Answer: "a"})
	s = Reduce(s, SaveStartedMsg{ID: "abc"})
	s = Reduce(s, TranscriptResetMsg{})
	if s.Transcript.Len() != 1 || s.SavedID != "" {
		t.Errorf("reset left %d entries, saved id %q", s.Transcript.Len(), s.SavedID)
	}
}

func TestAskCommand(t *testing.T) {
	fb := &fakeBackend{answer: "Paris"}
	m := newTestModel(fb, nil, nil)

	if cmd := m.Ask("   "); cmd != nil {
		t.Fatal("blank question must not produce a command")
	}
	if m.State.Pending != 0 || m.State.Transcript.Len() != 1 {
		t.Fatal("blank question must not change state")
	}

	cmd := m.Ask("capital of France?")
	if cmd == nil {
		t.Fatal("expected a command")
	}
	if !m.State.Loading() {
		t.Error("expected loading while in flight")
	}

	m.Apply(cmd())
	if m.State.Loading() {
		t.Error("expected loading to clear")
	}
	if len(fb.asked) != 1 || fb.asked[0] != "capital of France?" {
		t.Errorf("backend saw %v", fb.asked)
	}
	if m.State.Transcript.Len() != 3 {
		t.Errorf("transcript has %d entries, want 3", m.State.Transcript.Len())
	}
}

func TestAskConcurrentCompletionOrder(t *testing.T) {
	m := newTestModel(&fakeBackend{answer: "x"}, nil, nil)

	first := m.Ask("first")
	second := m.Ask("second")
	if m.State.Pending != 2 {
		t.Fatalf("Pending = %d, want 2", m.State.Pending)
	}

	m.Apply(second())
	m.Apply(first())

	got := contents(m.State.Transcript)[1:]
	want := []string{"user:second", "assistant:x", "user:first", "assistant:x"}
	if strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("entries = %v, want completion order %v", got, want)
	}
}

func TestCrawlCommand(t *testing.T) {
	fb := &fakeBackend{message: "stored"}
	m := newTestModel(fb, nil, nil)

	if cmd := m.Crawl(""); cmd != nil {
		t.Fatal("blank URL must not produce a command")
	}

	m.Apply(m.Crawl(" example.com/docs ")())
	if len(fb.crawled) != 1 || fb.crawled[0] != "https://example.com/docs" {
		t.Errorf("backend saw %v", fb.crawled)
	}
	last := m.State.Transcript.At(m.State.Transcript.Len() - 2)
	if last.Content != "Crawling URL: https://example.com/docs" {
		t.Errorf("user entry = %q", last.Content)
	}
}

func TestVoiceCommands(t *testing.T) {
	fv := newFakeVoice()
	m := newTestModel(&fakeBackend{}, fv, nil)

	if cmd := m.StopRecording(); cmd != nil {
		t.Error("stop while idle should be a no-op")
	}

	m.Apply(m.ToggleRecording()())
	if fv.started != 1 || !m.State.Recording() {
		t.Fatalf("started=%d recording=%v", fv.started, m.State.Recording())
	}

	m.Apply(m.ToggleRecording()())
	if fv.stopped != 1 {
		t.Errorf("stopped = %d", fv.stopped)
	}

	fv.updates <- voice.Update{Seq: 1, Phase: voice.PhaseAwaitingServerReady}
	m.Apply(m.WaitForVoice()())
	if !m.State.Processing() {
		t.Error("expected processing after stop")
	}

	m.Apply(m.CancelVoice()())
	if fv.cancelled != 1 || m.State.Processing() {
		t.Errorf("cancel did not reset: cancelled=%d state=%+v", fv.cancelled, m.State)
	}

	fv.startErr = errors.New("denied")
	m.Apply(m.StartRecording()())
	if m.State.Recording() || m.State.VoiceErr == nil {
		t.Errorf("start failure state = %+v", m.State)
	}
}

func TestVoiceCommandsWithoutClient(t *testing.T) {
	m := newTestModel(&fakeBackend{}, nil, nil)
	if m.StartRecording() != nil || m.CancelVoice() != nil || m.WaitForVoice() != nil {
		t.Error("voice commands must be nil without a voice client")
	}
}

func TestSaveAndLoadTranscript(t *testing.T) {
	archive, err := storage.NewArchive(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()

	m := newTestModel(&fakeBackend{answer: "Paris"}, nil, archive)
	m.Apply(m.Ask("capital of France?")())

	msg := m.SaveTranscript()().(TranscriptSavedMsg)
	if msg.Err != nil {
		t.Fatalf("save: %v", msg.Err)
	}
	m.Apply(msg)
	if m.State.SavedID == "" || msg.Name != "capital of France?" {
		t.Errorf("saved id=%q name=%q", m.State.SavedID, msg.Name)
	}

	again := m.SaveTranscript()().(TranscriptSavedMsg)
	if again.ID != msg.ID {
		t.Error("second save should update the same archive entry")
	}

	m.Apply(m.NewTranscript()())
	m.Apply(m.LoadTranscript(msg.ID)())
	if m.State.Transcript.Len() != 3 || m.State.SavedID != msg.ID {
		t.Errorf("loaded %d entries, id %q", m.State.Transcript.Len(), m.State.SavedID)
	}
}

func TestSaveTranscriptInFlight(t *testing.T) {
	archive, err := storage.NewArchive(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()

	m := newTestModel(&fakeBackend{answer: "Paris"}, nil, archive)
	m.Apply(m.Ask("capital of France?")())

	// Both commands are built before either save completes.
	first := m.SaveTranscript()
	second := m.SaveTranscript()
	a := first().(TranscriptSavedMsg)
	b := second().(TranscriptSavedMsg)
	if a.Err != nil || b.Err != nil {
		t.Fatalf("save errors: %v, %v", a.Err, b.Err)
	}
	if a.ID != b.ID {
		t.Errorf("saves used different ids %q and %q", a.ID, b.ID)
	}

	list, err := archive.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 1 {
		t.Errorf("archive holds %d transcripts, want 1", len(list))
	}
}

func TestSaveAfterResetCreatesNewEntry(t *testing.T) {
	archive, err := storage.NewArchive(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer archive.Close()

	m := newTestModel(&fakeBackend{answer: "Paris"}, nil, archive)
	m.Apply(m.Ask("capital of France?")())
	pending := m.SaveTranscript()

	m.Apply(m.NewTranscript()())
	m.Apply(pending())
	if m.State.SavedID != "" {
		t.Fatalf("late save result adopted id %q after reset", m.State.SavedID)
	}

	m.Apply(m.Ask("capital of Spain?")())
	m.Apply(m.SaveTranscript()())

	list, err := archive.List()
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 2 {
		t.Errorf("archive holds %d transcripts, want 2", len(list))
	}
}

func TestFormatPlain(t *testing.T) {
	got := FormatPlain([]Message{
		{Role: RoleUser, Content: "hi"},
		{Role: RoleAssistant, Content: "hello\n"},
	})
	want := "You: hi\n\nAssistant: hello\n"
	if got != want {
		t.Errorf("FormatPlain = %q, want %q", got, want)
	}
}
