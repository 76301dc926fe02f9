package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"

	"crawlchat/config"
	"crawlchat/model"
)

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s\x1b]+)`)
)

const codeBar = "┃"

// renderOptions controls how the message log is projected.
type renderOptions struct {
	// rendered holds markdown output keyed by message index
	rendered     map[int]string
	highlightIdx int
}

// renderTranscript projects the message log into terminal text. It is a pure
// function of its inputs.
func renderTranscript(msgs []Message, opts renderOptions) string {
	if len(msgs) == 0 {
		return "No messages yet."
	}

	var content strings.Builder
	for i, msg := range msgs {
		content.WriteString(renderMessage(i, msg, opts))
	}
	return content.String()
}

func renderMessage(i int, msg Message, opts renderOptions) string {
	highlightPrefix := ""
	if i == opts.highlightIdx {
		highlightPrefix = HighlightStyle.Render(">>> ")
	}

	timestamp := DimStyle.Render(msg.Timestamp.Format("[15:04]"))

	body := msg.Content
	if r, ok := opts.rendered[i]; ok && r != "" {
		body = r
	}

	switch msg.Role {
	case model.RoleUser:
		return formatUserMessage(highlightPrefix, timestamp, UserStyle.Render("You"), msg.Content)
	case model.RoleAssistant:
		return fmt.Sprintf("%s%s %s\n%s\n\n", highlightPrefix, timestamp, AssistantStyle.Render("Assistant"), strings.TrimRight(body, "\n"))
	default:
		return fmt.Sprintf("%s%s %s\n%s\n\n", highlightPrefix, timestamp, DimStyle.Render("System"), DimStyle.Render(msg.Content))
	}
}

// messageOffset returns the line at which message idx starts.
func messageOffset(msgs []Message, idx int, opts renderOptions) int {
	lines := 0
	for i := 0; i < idx && i < len(msgs); i++ {
		lines += strings.Count(renderMessage(i, msgs[i], opts), "\n")
	}
	return lines
}

func (a *AppView) updateViewportContent(gotoBottom bool) {
	a.viewport.SetContent(renderTranscript(a.dataModel.Messages(), a.renderOpts()))
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func (a AppView) renderOpts() renderOptions {
	return renderOptions{
		rendered:     a.rendered,
		highlightIdx: a.highlightedMessageIdx,
	}
}

func formatUserMessage(highlightPrefix, timestamp, role, content string) string {
	greenBold := "\x1b[32;1m"
	reset := "\x1b[0m"
	bar := greenBold + codeBar + reset

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s%s %s %s\n", highlightPrefix, bar, timestamp, role))

	for _, line := range strings.Split(content, "\n") {
		result.WriteString(fmt.Sprintf("%s %s\n", bar, line))
	}

	result.WriteString("\n")

	return result.String()
}

// renderPendingAssistants queues markdown rendering for assistant messages
// that have no cached output at the current width.
func (a *AppView) renderPendingAssistants() tea.Cmd {
	if a.width <= 0 {
		return nil
	}

	var cmds []tea.Cmd
	msgs := a.dataModel.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != model.RoleAssistant {
			continue
		}
		if _, ok := a.rendered[i]; ok {
			continue
		}
		if a.rendering[i] {
			continue
		}
		a.rendering[i] = true
		cmds = append(cmds, renderMarkdownAsync(i, a.generation, msgs[i].Content, a.width))
	}
	return tea.Batch(cmds...)
}

func renderMarkdownAsync(messageIndex, generation int, content string, width int) tea.Cmd {
	return func() tea.Msg {
		startTime := time.Now()
		rendered := renderMarkdown(content, width)

		if config.DebugLog != nil {
			config.DebugLog.Printf("[UI] markdown for message %d rendered in %v", messageIndex, time.Since(startTime))
		}

		return markdownRenderedMsg{
			MessageIndex: messageIndex,
			Generation:   generation,
			Width:        width,
			Rendered:     rendered,
		}
	}
}

// renderMarkdown renders assistant content for a terminal of the given width.
func renderMarkdown(content string, width int) string {
	content = preprocessLinks(content)

	// Autolink stays off so URLs remain plain text for the terminal to detect
	customExt := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(customExt)

	lineWidth := width - 4
	if lineWidth < 20 {
		lineWidth = 20
	}
	r := markdown.NewRenderer(lineWidth, 0)
	doc := p.Parse([]byte(content))
	rendered := gomarkdown.Render(doc, r)

	return postProcessMarkdown(string(rendered), width)
}

func postProcessMarkdown(rendered string, width int) string {
	rendered = fixInlineCode(rendered)
	rendered = colorURLs(rendered)
	return frameCodeBlocks(rendered, width)
}

// preprocessLinks turns [text](url) into a bare url
func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

// fixInlineCode swaps the blue-background inline code style for red text
func fixInlineCode(s string) string {
	return inlineCodeRegex.ReplaceAllString(s, "\x1b[31m$1\x1b[0m")
}

func colorURLs(s string) string {
	redColor := "\x1b[31m"
	reset := "\x1b[0m"

	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !strings.Contains(line, codeBar) {
			lines[i] = urlRegex.ReplaceAllString(line, redColor+"$1"+reset)
		}
	}
	return strings.Join(lines, "\n")
}

func frameCodeBlocks(s string, width int) string {
	lines := strings.Split(s, "\n")
	var result []string
	inCodeBlock := false

	darkGray := "\x1b[90m"
	reset := "\x1b[0m"

	ruleLen := width - 4
	if ruleLen < 10 {
		ruleLen = 10
	}
	closing := darkGray + strings.Repeat("━", ruleLen) + reset

	for _, line := range lines {
		if strings.Contains(line, codeBar) {
			if !inCodeBlock {
				inCodeBlock = true
				label := "[code]"
				leftLen := (ruleLen - len(label)) / 2
				rightLen := ruleLen - len(label) - leftLen
				result = append(result, "",
					darkGray+strings.Repeat("━", leftLen)+reset+label+darkGray+strings.Repeat("━", rightLen)+reset,
					"")
			}
			result = append(result, stripCodeBlockPrefix(line))
			continue
		}

		if inCodeBlock {
			result = append(result, "", closing, "")
			inCodeBlock = false
		}
		result = append(result, line)
	}

	if inCodeBlock {
		result = append(result, "", closing, "")
	}

	return strings.Join(result, "\n")
}

func stripCodeBlockPrefix(line string) string {
	idx := strings.Index(line, codeBar)
	if idx < 0 {
		return line
	}
	after := idx + len(codeBar)
	if after < len(line) && line[after] == ' ' {
		after++
	}
	return line[after:]
}
