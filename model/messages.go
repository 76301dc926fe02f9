package model

import "crawlchat/voice"

type RequestStartedMsg struct{}

type AnswerMsg struct {
	Question string
	Answer   string
	Err      error
}

type CrawlMsg struct {
	URL     string
	Message string
	Err     error
}

type VoiceStartedMsg struct {
	Seq uint64
	Err error
}

type VoiceStoppedMsg struct {
	Err error
}

type VoiceCancelledMsg struct{}

type VoiceUpdateMsg struct {
	Update voice.Update
}

type TranscriptResetMsg struct{}

// SaveStartedMsg assigns the archive id for the live transcript.
type SaveStartedMsg struct {
	ID string
}

type TranscriptSavedMsg struct {
	ID   string
	Name string
	Err  error
}

type TranscriptLoadedMsg struct {
	Transcript Transcript
	ID         string
	Err        error
}

type InputModeToggledMsg struct{}

type MarkdownRenderedMsg struct {
	MessageIndex int
	Generation   int
	Width        int
	Rendered     string
}

type ClipboardMsg struct {
	What string
	Err  error
}
