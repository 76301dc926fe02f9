package voice

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

var (
	ErrMalformedFrame    = errors.New("malformed voice frame")
	ErrUnexpectedMessage = errors.New("unexpected voice message")
	ErrNotRecording      = errors.New("no recording in progress")
)

type EventKind int

const (
	EventReady EventKind = iota + 1
	EventTranscription
	EventResponse
	EventAudio
)

func (k EventKind) String() string {
	switch k {
	case EventReady:
		return "ready"
	case EventTranscription:
		return "transcription"
	case EventResponse:
		return "response"
	case EventAudio:
		return "audio"
	default:
		return fmt.Sprintf("event(%d)", int(k))
	}
}

// Event is one decoded server frame.
type Event struct {
	Kind  EventKind
	Text  string
	Audio []byte
}

// controlFrame covers every JSON frame on the socket in both directions.
type controlFrame struct {
	Status string `json:"status,omitempty"`
	Type   string `json:"type,omitempty"`
	Text   string `json:"text,omitempty"`
}

const (
	statusReady    = "ready"
	statusComplete = "complete"

	typeTranscription = "transcription"
	typeResponse      = "response"
)

// ParseFrame decodes a WebSocket message into an Event.
func ParseFrame(messageType int, data []byte) (Event, error) {
	switch messageType {
	case websocket.BinaryMessage:
		audio := make([]byte, len(data))
		copy(audio, data)
		return Event{Kind: EventAudio, Audio: audio}, nil

	case websocket.TextMessage:
		var frame controlFrame
		if err := json.Unmarshal(data, &frame); err != nil {
			return Event{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
		}

		switch {
		case frame.Status == statusReady:
			return Event{Kind: EventReady}, nil
		case frame.Type == typeTranscription:
			return Event{Kind: EventTranscription, Text: frame.Text}, nil
		case frame.Type == typeResponse:
			return Event{Kind: EventResponse, Text: frame.Text}, nil
		}
		return Event{}, fmt.Errorf("%w: %s", ErrMalformedFrame, truncate(string(data), 120))

	default:
		return Event{}, fmt.Errorf("%w: message type %d", ErrMalformedFrame, messageType)
	}
}

func completeFrame() []byte {
	b, _ := json.Marshal(controlFrame{Status: statusComplete})
	return b
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
