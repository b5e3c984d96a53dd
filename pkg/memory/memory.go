// Package memory renders short-term conversational memory for prompts and
// folds it into retrieval queries.
//
// Everything here is a pure function of its inputs: the same session and
// options always produce the same text.
package memory

import (
	"strings"

	"github.com/papercomputeco/medibot/pkg/conversation"
)

const (
	// DefaultMaxTurns is how many recent turns a summary covers.
	DefaultMaxTurns = 6

	// DefaultMaxChars bounds the rendered summary.
	DefaultMaxChars = 800

	// AssistantTurnChars bounds each assistant turn before rendering.
	AssistantTurnChars = 200

	// FooterSeparator divides an assistant answer from its footer.
	FooterSeparator = "---"

	ellipsis = "..."
)

// Options bounds a summary. Zero values fall back to the defaults.
type Options struct {
	MaxTurns int
	MaxChars int
}

func (o Options) withDefaults() Options {
	if o.MaxTurns <= 0 {
		o.MaxTurns = DefaultMaxTurns
	}
	if o.MaxChars <= 0 {
		o.MaxChars = DefaultMaxChars
	}
	return o
}

// Summarize renders the most recent turns of s as "User: ..." and
// "Assistant: ..." lines, oldest first. A nil or empty session renders "".
func Summarize(s *conversation.Session, opts Options) string {
	if s == nil {
		return ""
	}
	return SummarizeTurns(s.Turns, opts)
}

// SummarizeTurns is Summarize over a bare turn slice.
func SummarizeTurns(turns []conversation.Turn, opts Options) string {
	opts = opts.withDefaults()
	if len(turns) == 0 {
		return ""
	}
	if len(turns) > opts.MaxTurns {
		turns = turns[len(turns)-opts.MaxTurns:]
	}

	lines := make([]string, 0, len(turns))
	for _, t := range turns {
		switch t.Role {
		case conversation.RoleUser:
			lines = append(lines, "User: "+t.Content)
		case conversation.RoleAssistant:
			lines = append(lines, "Assistant: "+condenseAssistant(t.Content))
		}
	}

	out := strings.Join(lines, "\n")
	return truncate(out, opts.MaxChars)
}

// condenseAssistant shortens an assistant answer and drops its footer.
func condenseAssistant(content string) string {
	content = truncate(content, AssistantTurnChars)
	if i := strings.Index(content, FooterSeparator); i >= 0 {
		content = content[:i]
	}
	return strings.TrimSpace(content)
}

// truncate cuts s to max runes and marks the cut with an ellipsis.
func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + ellipsis
}
