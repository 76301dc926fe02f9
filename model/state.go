package model

import (
	tea "github.com/charmbracelet/bubbletea"

	"crawlchat/config"
	"crawlchat/voice"
)

type InputMode int

const (
	InputQuestion InputMode = iota
	InputURL
)

func (m InputMode) String() string {
	if m == InputURL {
		return "url"
	}
	return "question"
}

// State is everything the view projects. It changes only through Reduce.
type State struct {
	Transcript Transcript
	Input      InputMode

	// Pending counts Q&A and crawl requests still in flight.
	Pending int

	VoiceSeq   uint64
	VoicePhase voice.Phase
	VoiceErr   error

	SavedID string
}

func NewState() State {
	return State{Transcript: NewTranscript()}
}

func (s State) Loading() bool {
	return s.Pending > 0
}

func (s State) Recording() bool {
	return s.VoicePhase.Recording()
}

func (s State) Processing() bool {
	return s.VoicePhase.Processing()
}

// Reduce applies one result message to the state. Messages it does not
// know are ignored.
func Reduce(s State, msg tea.Msg) State {
	switch msg := msg.(type) {
	case RequestStartedMsg:
		s.Pending++

	case AnswerMsg:
		s.Pending = settle(s.Pending)
		reply := msg.Answer
		if msg.Err != nil {
			reply = ErrorContent(msg.Err)
		}
		s.Transcript = s.Transcript.Append(
			NewMessage(RoleUser, msg.Question),
			NewMessage(RoleAssistant, reply),
		)

	case CrawlMsg:
		s.Pending = settle(s.Pending)
		reply := msg.Message
		if msg.Err != nil {
			reply = ErrorContent(msg.Err)
		}
		s.Transcript = s.Transcript.Append(
			NewMessage(RoleUser, "Crawling URL: "+msg.URL),
			NewMessage(RoleAssistant, reply),
		)

	case VoiceStartedMsg:
		if msg.Err != nil {
			s.VoicePhase = voice.PhaseIdle
			s.VoiceErr = msg.Err
			break
		}
		if msg.Seq > s.VoiceSeq {
			s.VoiceSeq = msg.Seq
			s.VoicePhase = voice.PhaseRecording
		}
		s.VoiceErr = nil

	case VoiceStoppedMsg:
		if msg.Err != nil {
			s.VoiceErr = msg.Err
		}

	case VoiceCancelledMsg:
		s.VoicePhase = voice.PhaseIdle

	case VoiceUpdateMsg:
		u := msg.Update
		if u.Seq < s.VoiceSeq {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Model] dropping stale voice update from exchange %d", u.Seq)
			}
			break
		}
		s.VoiceSeq = u.Seq
		s.VoicePhase = u.Phase
		if u.Err != nil {
			s.VoiceErr = u.Err
		}
		switch u.Role {
		case voice.RoleUser:
			s.Transcript = s.Transcript.Append(NewMessage(RoleUser, u.Text))
		case voice.RoleAssistant:
			s.Transcript = s.Transcript.Append(NewMessage(RoleAssistant, u.Text))
		}

	case TranscriptResetMsg:
		s.Transcript = NewTranscript()
		s.SavedID = ""

	case TranscriptLoadedMsg:
		if msg.Err == nil {
			s.Transcript = msg.Transcript
			s.SavedID = msg.ID
		}

	case SaveStartedMsg:
		s.SavedID = msg.ID

	case InputModeToggledMsg:
		if s.Input == InputQuestion {
			s.Input = InputURL
		} else {
			s.Input = InputQuestion
		}
	}

	return s
}

func settle(pending int) int {
	if pending > 0 {
		return pending - 1
	}
	return 0
}
