package ui

import (
	"crawlchat/model"
)

type Message = model.Message

// Result messages are defined in the model package
type answerMsg = model.AnswerMsg
type crawlMsg = model.CrawlMsg
type voiceStartedMsg = model.VoiceStartedMsg
type voiceStoppedMsg = model.VoiceStoppedMsg
type voiceCancelledMsg = model.VoiceCancelledMsg
type voiceUpdateMsg = model.VoiceUpdateMsg
type transcriptResetMsg = model.TranscriptResetMsg
type transcriptSavedMsg = model.TranscriptSavedMsg
type transcriptLoadedMsg = model.TranscriptLoadedMsg
type markdownRenderedMsg = model.MarkdownRenderedMsg
type clipboardMsg = model.ClipboardMsg

type flashTickMsg struct {
	seq int
}
