package answer

import (
	"fmt"
	"strings"

	"github.com/papercomputeco/medibot/pkg/generation"
	"github.com/papercomputeco/medibot/pkg/retrieval"
	"github.com/papercomputeco/medibot/pkg/triage"
)

const (
	emergencyNote = "⚠️ MEDICAL EMERGENCY DETECTED - Prioritize immediate care guidance."
	urgentNote    = "⚠️ URGENT MEDICAL CONCERN - Emphasize timely medical consultation."
)

// Input is everything the assembler needs for one answer.
type Input struct {
	Question string

	// History is the rendered conversation window, empty for a new session.
	History string

	Evidence   []retrieval.Chunk
	Assessment triage.Assessment
}

type promptData struct {
	History     string
	Evidence    string
	UrgencyNote string
	Question    string
}

// UrgencyNote returns the prompt line for a tier, or "" for routine.
func UrgencyNote(t triage.Tier) string {
	switch t {
	case triage.TierEmergency:
		return emergencyNote
	case triage.TierHigh:
		return urgentNote
	default:
		return ""
	}
}

// JoinEvidence concatenates chunk texts separated by blank lines.
func JoinEvidence(chunks []retrieval.Chunk) string {
	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		if t := strings.TrimSpace(c.Text); t != "" {
			texts = append(texts, t)
		}
	}
	return strings.Join(texts, "\n\n")
}

// BuildPrompt renders the template for kind.
func BuildPrompt(kind Kind, in Input) (generation.Request, error) {
	t := TemplateFor(kind)

	var sb strings.Builder
	err := t.Human.Execute(&sb, promptData{
		History:     strings.TrimSpace(in.History),
		Evidence:    JoinEvidence(in.Evidence),
		UrgencyNote: UrgencyNote(in.Assessment.Tier),
		Question:    in.Question,
	})
	if err != nil {
		return generation.Request{}, fmt.Errorf("rendering %s prompt: %w", kind, err)
	}

	return generation.Request{
		System: t.System,
		Prompt: sb.String(),
	}, nil
}
