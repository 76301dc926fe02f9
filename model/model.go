package model

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"

	"crawlchat/config"
	"crawlchat/storage"
	"crawlchat/voice"
)

// Backend is the HTTP side of the crawl/answer server.
type Backend interface {
	Ask(ctx context.Context, question string) (string, error)
	Crawl(ctx context.Context, rawURL string) (string, error)
	BaseURL() string
}

// Voice runs recorded exchanges over the voice socket.
type Voice interface {
	Start(ctx context.Context) (uint64, error)
	Stop() error
	Cancel()
	Updates() <-chan voice.Update
}

// Model holds the core application data and business logic state
type Model struct {
	// Core dependencies
	Config  *config.Config
	Backend Backend
	Voice   Voice
	Archive *storage.Archive

	// Application data
	State State

	// Runtime state (not UI)
	Quitting bool

	// Application metadata
	Version string
	License string
}

// NewModel creates a new Model with a fresh transcript. voiceClient and
// archive may be nil; the matching features are then unavailable.
func NewModel(cfg *config.Config, backend Backend, voiceClient Voice, archive *storage.Archive, version, license string) *Model {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Model] NewModel: backend=%s voice=%v archive=%v",
			backend.BaseURL(), voiceClient != nil, archive != nil)
	}

	return &Model{
		Config:  cfg,
		Backend: backend,
		Voice:   voiceClient,
		Archive: archive,
		State:   NewState(),
		Version: version,
		License: license,
	}
}

// Apply folds a result message into the model state.
func (m *Model) Apply(msg tea.Msg) {
	m.State = Reduce(m.State, msg)
}

func (m *Model) Messages() []Message {
	return m.State.Transcript.Messages()
}
