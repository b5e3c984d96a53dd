// Package answer turns retrieved evidence and conversation history into the
// final user-facing reply: prompt construction, one generation call and
// post-processing. It also renders the fallback reply used when any of that
// fails.
package answer

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/papercomputeco/medibot/pkg/generation"
	"github.com/papercomputeco/medibot/pkg/retrieval"
	"github.com/papercomputeco/medibot/pkg/vocab"
)

// Result is an assembled answer.
type Result struct {
	Response        string
	Kind            Kind
	Sources         []string
	Model           string
	GenerationTime  time.Duration
	SafetyValidated bool
	SafetyIssues    []string
	Timestamp       time.Time
}

// Assembler builds prompts, calls the generator and post-processes output.
type Assembler struct {
	generator generation.Generator
	vocab     *vocab.Holder
	now       func() time.Time
	logger    *slog.Logger
}

// Config configures an Assembler.
type Config struct {
	Generator generation.Generator

	// Vocabulary supplies meta-commentary and safety lists. Defaults apply
	// when nil.
	Vocabulary *vocab.Holder
	Now        func() time.Time
	Logger     *slog.Logger
}

// NewAssembler creates an Assembler.
func NewAssembler(c Config) *Assembler {
	if c.Vocabulary == nil {
		c.Vocabulary = vocab.NewHolder(nil)
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	return &Assembler{
		generator: c.Generator,
		vocab:     c.Vocabulary,
		now:       c.Now,
		logger:    c.Logger,
	}
}

// Model returns the generator's model name.
func (a *Assembler) Model() string {
	return a.generator.Model()
}

// Assemble produces the final answer. started marks the beginning of the
// request and feeds the footer's response time. A failed safety check is
// recorded on the Result but never blocks delivery.
func (a *Assembler) Assemble(ctx context.Context, in Input, started time.Time) (*Result, error) {
	if started.IsZero() {
		started = a.now()
	}
	v := a.vocab.Get()

	kind := SelectTemplate(in.Question, in.Assessment, v)
	req, err := BuildPrompt(kind, in)
	if err != nil {
		return nil, err
	}

	raw, err := a.generator.Generate(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	text := AppendDisclaimer(CleanResponse(raw, v))

	now := a.now()
	elapsed := now.Sub(started)
	sources := retrieval.Sources(in.Evidence)
	text = FormatResponse(text, sources, Metadata{
		Model:     a.generator.Model(),
		Elapsed:   elapsed,
		Timestamp: now,
	})

	safety := ValidateSafety(text, v)
	if !safety.Safe {
		a.logger.Warn("generated answer failed safety validation",
			"issues", safety.Issues,
			"template", kind.String(),
		)
	}

	return &Result{
		Response:        text,
		Kind:            kind,
		Sources:         sources,
		Model:           a.generator.Model(),
		GenerationTime:  elapsed,
		SafetyValidated: safety.Safe,
		SafetyIssues:    safety.Issues,
		Timestamp:       now,
	}, nil
}
