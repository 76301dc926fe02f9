package storage

import (
	"strings"
	"time"

	"github.com/sahilm/fuzzy"
)

type MessageMatch struct {
	MessageIndex int
	Role         string
	Content      string
	Preview      string
	Timestamp    time.Time
	Score        int
}

type TranscriptMatch struct {
	TranscriptID   string
	TranscriptName string
	MessageMatch
}

type messageSource []Message

func (m messageSource) String(i int) string { return m[i].Content }
func (m messageSource) Len() int            { return len(m) }

// SearchMessages fuzzy-matches query against message contents, best first.
// System entries are never matched.
func SearchMessages(messages []Message, query string) []MessageMatch {
	query = strings.TrimSpace(query)
	if query == "" {
		return []MessageMatch{}
	}

	results := fuzzy.FindFrom(query, messageSource(messages))

	matches := []MessageMatch{}
	for _, r := range results {
		msg := messages[r.Index]
		if msg.Role == "system" {
			continue
		}
		matches = append(matches, MessageMatch{
			MessageIndex: r.Index,
			Role:         msg.Role,
			Content:      msg.Content,
			Preview:      preview(msg.Content),
			Timestamp:    msg.Timestamp,
			Score:        r.Score,
		})
	}

	return matches
}

// SearchAll searches every archived transcript.
func (a *Archive) SearchAll(query string) ([]TranscriptMatch, error) {
	if strings.TrimSpace(query) == "" {
		return []TranscriptMatch{}, nil
	}

	list, err := a.List()
	if err != nil {
		return nil, err
	}

	var matches []TranscriptMatch
	for _, meta := range list {
		t, err := a.Load(meta.ID)
		if err != nil {
			continue
		}
		for _, m := range SearchMessages(t.Messages, query) {
			matches = append(matches, TranscriptMatch{
				TranscriptID:   t.ID,
				TranscriptName: t.Name,
				MessageMatch:   m,
			})
		}
	}

	return matches, nil
}

func preview(content string) string {
	content = strings.ReplaceAll(content, "\n", " ")
	if runes := []rune(content); len(runes) > 100 {
		return string(runes[:100]) + "..."
	}
	return content
}
