package model

// Transcript is an append-only message log. Values are immutable: Append
// returns a new Transcript and never writes into storage an older value
// can observe.
type Transcript struct {
	messages []Message
}

// NewTranscript returns a transcript holding only the greeting.
func NewTranscript() Transcript {
	return Transcript{messages: []Message{NewMessage(RoleAssistant, Greeting)}}
}

func TranscriptOf(msgs ...Message) Transcript {
	return Transcript{}.Append(msgs...)
}

func (t Transcript) Append(msgs ...Message) Transcript {
	if len(msgs) == 0 {
		return t
	}
	next := make([]Message, len(t.messages), len(t.messages)+len(msgs))
	copy(next, t.messages)
	return Transcript{messages: append(next, msgs...)}
}

func (t Transcript) Len() int {
	return len(t.messages)
}

func (t Transcript) At(i int) Message {
	return t.messages[i]
}

// Messages returns a copy of the log.
func (t Transcript) Messages() []Message {
	out := make([]Message, len(t.messages))
	copy(out, t.messages)
	return out
}

// Last returns the most recent message with the given role.
func (t Transcript) Last(role Role) (Message, bool) {
	for i := len(t.messages) - 1; i >= 0; i-- {
		if t.messages[i].Role == role {
			return t.messages[i], true
		}
	}
	return Message{}, false
}
