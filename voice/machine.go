package voice

import "fmt"

// Phase is the position of a voice exchange in its round trip.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseRecording
	PhaseAwaitingServerReady
	PhaseSending
	PhaseAwaitingTranscript
	PhaseAwaitingReply
	PhaseAwaitingAudio
	PhasePlaying
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseRecording:
		return "recording"
	case PhaseAwaitingServerReady:
		return "awaiting server ready"
	case PhaseSending:
		return "sending"
	case PhaseAwaitingTranscript:
		return "awaiting transcript"
	case PhaseAwaitingReply:
		return "awaiting reply"
	case PhaseAwaitingAudio:
		return "awaiting audio"
	case PhasePlaying:
		return "playing"
	default:
		return fmt.Sprintf("phase(%d)", int(p))
	}
}

// Recording reports whether the microphone is being captured.
func (p Phase) Recording() bool {
	return p == PhaseRecording
}

// Processing reports whether a recorded utterance is still in flight.
func (p Phase) Processing() bool {
	return p >= PhaseAwaitingServerReady
}

// State is owned by a single exchange loop. Step may reuse its buffer.
type State struct {
	Phase  Phase
	Buffer Buffer

	// ServerReady latches a ready frame that arrived while still recording.
	ServerReady    bool
	LastTranscript string
}

type Input interface{ input() }

type StartInput struct{}

type FragmentInput struct{ Data []byte }

// StopInput is fed once capture has ended and every fragment was delivered.
type StopInput struct{}

type ServerInput struct{ Event Event }

type PlaybackDoneInput struct{ Err error }

type FailureInput struct{ Err error }

func (StartInput) input()        {}
func (FragmentInput) input()     {}
func (StopInput) input()         {}
func (ServerInput) input()       {}
func (PlaybackDoneInput) input() {}
func (FailureInput) input()      {}

type Effect interface{ effect() }

// SendAudioEffect carries the concatenated recording and how many captured
// fragments went into it.
type SendAudioEffect struct {
	Payload   []byte
	Fragments int
}

type SendCompleteEffect struct{}

type PlayEffect struct{ Audio []byte }

// AppendEffect adds a transcript entry. Prompt is the transcription the
// reply answers, set only for assistant entries.
type AppendEffect struct {
	Role   string
	Text   string
	Prompt string
}

type CloseEffect struct{ Err error }

func (SendAudioEffect) effect()    {}
func (SendCompleteEffect) effect() {}
func (PlayEffect) effect()         {}
func (AppendEffect) effect()       {}
func (CloseEffect) effect()        {}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Step advances the exchange by one input. It performs no I/O.
func Step(s State, in Input) (State, []Effect) {
	switch in := in.(type) {
	case StartInput:
		return State{Phase: PhaseRecording}, nil

	case FragmentInput:
		if s.Phase == PhaseRecording {
			s.Buffer.Append(in.Data)
		}
		return s, nil

	case StopInput:
		if s.Phase != PhaseRecording {
			return s, nil
		}
		if s.ServerReady {
			s.ServerReady = false
			return flush(s)
		}
		s.Phase = PhaseAwaitingServerReady
		return s, nil

	case ServerInput:
		return stepServer(s, in.Event)

	case PlaybackDoneInput:
		if s.Phase != PhasePlaying {
			return s, nil
		}
		if in.Err != nil {
			return fail(s, fmt.Errorf("playback failed: %w", in.Err))
		}
		s.Phase = PhaseIdle
		return s, []Effect{SendCompleteEffect{}}

	case FailureInput:
		return fail(s, in.Err)
	}
	return s, nil
}

func stepServer(s State, ev Event) (State, []Effect) {
	switch ev.Kind {
	case EventReady:
		switch s.Phase {
		case PhaseRecording:
			s.ServerReady = true
			return s, nil
		case PhaseAwaitingServerReady:
			return flush(s)
		case PhaseIdle:
			// The server re-announces readiness after each completed round.
			return s, nil
		}

	case EventTranscription:
		if s.Phase == PhaseAwaitingTranscript {
			s.Phase = PhaseAwaitingReply
			s.LastTranscript = ev.Text
			return s, []Effect{AppendEffect{Role: RoleUser, Text: ev.Text}}
		}

	case EventResponse:
		if s.Phase == PhaseAwaitingReply {
			s.Phase = PhaseAwaitingAudio
			return s, []Effect{AppendEffect{Role: RoleAssistant, Text: ev.Text, Prompt: s.LastTranscript}}
		}

	case EventAudio:
		if s.Phase == PhaseAwaitingAudio {
			s.Phase = PhasePlaying
			return s, []Effect{PlayEffect{Audio: ev.Audio}}
		}
	}

	return fail(s, fmt.Errorf("%w: %s while %s", ErrUnexpectedMessage, ev.Kind, s.Phase))
}

// flush sends the buffered recording. An empty buffer sends nothing and the
// exchange stays in PhaseSending until it is cancelled or restarted.
func flush(s State) (State, []Effect) {
	fragments := s.Buffer.Fragments()
	payload := s.Buffer.Drain()
	if len(payload) == 0 {
		s.Phase = PhaseSending
		return s, nil
	}
	s.Phase = PhaseAwaitingTranscript
	return s, []Effect{SendAudioEffect{Payload: payload, Fragments: fragments}}
}

func fail(s State, err error) (State, []Effect) {
	return State{Phase: PhaseIdle, LastTranscript: s.LastTranscript}, []Effect{CloseEffect{Err: err}}
}
