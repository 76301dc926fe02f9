package model

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"

	"crawlchat/backend"
	"crawlchat/config"
	"crawlchat/storage"
)

// Ask submits a question. Blank questions return nil and change nothing.
func (m *Model) Ask(question string) tea.Cmd {
	if strings.TrimSpace(question) == "" {
		return nil
	}

	m.Apply(RequestStartedMsg{})
	client := m.Backend

	return func() tea.Msg {
		answer, err := client.Ask(context.Background(), question)
		if err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[Model] ask failed: %v", err)
		}
		return AnswerMsg{Question: question, Answer: answer, Err: err}
	}
}

// Crawl asks the backend to ingest a page. Blank input returns nil.
func (m *Model) Crawl(rawURL string) tea.Cmd {
	normalized := backend.NormalizeURL(rawURL)
	if normalized == "" {
		return nil
	}

	m.Apply(RequestStartedMsg{})
	client := m.Backend

	return func() tea.Msg {
		message, err := client.Crawl(context.Background(), normalized)
		if err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[Model] crawl of %s failed: %v", normalized, err)
		}
		return CrawlMsg{URL: normalized, Message: message, Err: err}
	}
}

// StartRecording opens a new voice exchange, replacing any live one.
func (m *Model) StartRecording() tea.Cmd {
	if m.Voice == nil {
		return nil
	}
	v := m.Voice
	return func() tea.Msg {
		seq, err := v.Start(context.Background())
		return VoiceStartedMsg{Seq: seq, Err: err}
	}
}

func (m *Model) StopRecording() tea.Cmd {
	if m.Voice == nil || !m.State.Recording() {
		return nil
	}
	v := m.Voice
	return func() tea.Msg {
		return VoiceStoppedMsg{Err: v.Stop()}
	}
}

// ToggleRecording starts a recording when idle and stops it while recording.
func (m *Model) ToggleRecording() tea.Cmd {
	if m.State.Recording() {
		return m.StopRecording()
	}
	return m.StartRecording()
}

func (m *Model) CancelVoice() tea.Cmd {
	if m.Voice == nil {
		return nil
	}
	v := m.Voice
	return func() tea.Msg {
		v.Cancel()
		return VoiceCancelledMsg{}
	}
}

// WaitForVoice blocks for the next voice update. Re-issue it after each
// VoiceUpdateMsg to keep listening.
func (m *Model) WaitForVoice() tea.Cmd {
	if m.Voice == nil {
		return nil
	}
	updates := m.Voice.Updates()
	return func() tea.Msg {
		return VoiceUpdateMsg{Update: <-updates}
	}
}

// SaveTranscript stores a copy of the current transcript in the archive.
func (m *Model) SaveTranscript() tea.Cmd {
	if m.Archive == nil {
		return nil
	}

	// The id is fixed before the save runs so repeated saves, even ones
	// still in flight, update one archive entry.
	id := m.State.SavedID
	if id == "" {
		id = uuid.New().String()
		m.Apply(SaveStartedMsg{ID: id})
	}

	t := &storage.Transcript{
		ID:       id,
		BaseURL:  m.Backend.BaseURL(),
		Messages: ToStorage(m.State.Transcript),
	}
	archive := m.Archive

	return func() tea.Msg {
		err := archive.Save(t)
		if err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[Archive] save failed: %v", err)
		}
		return TranscriptSavedMsg{ID: t.ID, Name: t.Name, Err: err}
	}
}

// LoadTranscript replaces the live transcript with an archived one.
func (m *Model) LoadTranscript(id string) tea.Cmd {
	if m.Archive == nil {
		return nil
	}
	archive := m.Archive
	return func() tea.Msg {
		t, err := archive.Load(id)
		if err != nil {
			return TranscriptLoadedMsg{Err: err}
		}
		return TranscriptLoadedMsg{Transcript: FromStorage(t.Messages), ID: t.ID}
	}
}

func (m *Model) NewTranscript() tea.Cmd {
	return func() tea.Msg { return TranscriptResetMsg{} }
}

func ToStorage(t Transcript) []storage.Message {
	out := make([]storage.Message, 0, t.Len())
	for _, msg := range t.Messages() {
		out = append(out, storage.Message{
			Role:      string(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	return out
}

func FromStorage(msgs []storage.Message) Transcript {
	converted := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		converted = append(converted, Message{
			Role:      Role(msg.Role),
			Content:   msg.Content,
			Timestamp: msg.Timestamp,
		})
	}
	return TranscriptOf(converted...)
}
