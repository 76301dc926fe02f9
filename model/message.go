package model

import "time"

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Greeting opens every new transcript.
const Greeting = "Hello! To start using this app, you need to enter a url to get started."

// Message represents one entry in the conversation log
type Message struct {
	Role      Role
	Content   string
	Timestamp time.Time
}

func NewMessage(role Role, content string) Message {
	return Message{Role: role, Content: content, Timestamp: time.Now()}
}

// ErrorContent formats a failure the way it is shown in the log.
func ErrorContent(err error) string {
	return "Error: " + err.Error()
}
