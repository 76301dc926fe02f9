package model

import (
	"fmt"
	"strings"
)

// FormatPlain renders a transcript as plain text, one block per message.
func FormatPlain(msgs []Message) string {
	var b strings.Builder
	for i, msg := range msgs {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(&b, "%s: %s\n", roleLabel(msg.Role), strings.TrimRight(msg.Content, "\n"))
	}
	return b.String()
}

func roleLabel(r Role) string {
	switch r {
	case RoleUser:
		return "You"
	case RoleAssistant:
		return "Assistant"
	default:
		return "System"
	}
}
