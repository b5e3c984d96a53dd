// Package pipeline answers one user question inside a conversation session.
//
// Each Ask walks a fixed sequence of states: the session is resolved, recent
// history is summarized, the user turn is recorded, the query is augmented
// and retrieval runs alongside urgency triage, the answer is generated and
// finally the assistant turn is recorded. Any failure after validation moves
// the request to StateFailed, which records a fallback reply as the
// assistant turn and returns it with Success=false. Panics raised by the
// retriever or generator are treated the same way. Ask only returns an error
// for invalid input.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/papercomputeco/medibot/pkg/answer"
	"github.com/papercomputeco/medibot/pkg/conversation"
	"github.com/papercomputeco/medibot/pkg/eventstream"
	"github.com/papercomputeco/medibot/pkg/eventstream/nop"
	"github.com/papercomputeco/medibot/pkg/memory"
	"github.com/papercomputeco/medibot/pkg/retrieval"
	"github.com/papercomputeco/medibot/pkg/session"
	"github.com/papercomputeco/medibot/pkg/triage"
	"github.com/papercomputeco/medibot/pkg/vocab"
)

const (
	DefaultMaxChunks      = 3
	MaxChunksLimit        = 10
	DefaultMaxQueryLength = 1000

	// ErrMsgNoEvidence is the fallback note when retrieval finds nothing.
	ErrMsgNoEvidence = "No relevant medical information found"

	instrumentationName = "github.com/papercomputeco/medibot/pkg/pipeline"
	publishTimeout      = 2 * time.Second
)

// ErrInvalidQuery is returned for empty or oversized queries. Nothing is
// recorded for an invalid query.
var ErrInvalidQuery = errors.New("invalid query")

// State is a step of an Ask.
type State string

const (
	StateReceived        State = "received"
	StateSessionResolved State = "session_resolved"
	StateContextBuilt    State = "context_built"
	StateRetrieved       State = "retrieved"
	StateClassified      State = "classified"
	StateGenerated       State = "generated"
	StatePersisted       State = "persisted"
	StateDone            State = "done"
	StateFailed          State = "failed"
)

// AskRequest is one user question.
type AskRequest struct {
	Query     string `json:"query"`
	SessionID string `json:"session_id,omitempty"`
	MaxChunks int    `json:"max_chunks,omitempty"`
}

// AskResult is the outcome of Ask. It is always well formed, including on
// the fallback path.
type AskResult struct {
	Success           bool           `json:"success"`
	Query             string         `json:"query"`
	Response          string         `json:"response"`
	SessionID         string         `json:"session_id"`
	SessionStatus     session.Status `json:"session_status,omitempty"`
	ContextUsed       bool           `json:"conversation_context_used"`
	Sources           []string       `json:"sources"`
	Urgency           triage.Tier    `json:"urgency_level,omitempty"`
	EmergencyDetected bool           `json:"emergency_detected"`
	SafetyValidated   bool           `json:"safety_validated"`
	ChunksUsed        int            `json:"chunks_used"`
	GenerationTime    float64        `json:"generation_time"`
	Model             string         `json:"model_used,omitempty"`
	Timestamp         time.Time      `json:"timestamp"`
	Error             string         `json:"error,omitempty"`

	// State is StateDone or StateFailed. FailedAt names the last state
	// reached before a failure.
	State    State `json:"-"`
	FailedAt State `json:"-"`
}

// Config wires a Pipeline.
type Config struct {
	Sessions  *session.Store
	Retriever retrieval.Retriever
	Assembler *answer.Assembler

	// Vocabulary drives augmentation and triage. Defaults apply when nil.
	Vocabulary *vocab.Holder

	// Publisher receives an event per completed exchange. Defaults to nop.
	Publisher eventstream.Publisher

	// DefaultChunks is used when a request leaves MaxChunks unset.
	// Defaults to DefaultMaxChunks.
	DefaultChunks int

	MaxQueryLength int
	Now            func() time.Time
	Logger         *slog.Logger

	// TracerProvider and MeterProvider default to the otel globals.
	TracerProvider trace.TracerProvider
	MeterProvider  metric.MeterProvider
}

// Pipeline orchestrates Ask and the session side operations.
type Pipeline struct {
	sessions       *session.Store
	retriever      retrieval.Retriever
	assembler      *answer.Assembler
	vocab          *vocab.Holder
	publisher      eventstream.Publisher
	defaultChunks  int
	maxQueryLength int
	now            func() time.Time
	logger         *slog.Logger

	tracer    trace.Tracer
	asks      metric.Int64Counter
	fallbacks metric.Int64Counter
	duration  metric.Float64Histogram
}

// New validates cfg and builds a Pipeline.
func New(cfg Config) (*Pipeline, error) {
	if cfg.Sessions == nil || cfg.Retriever == nil || cfg.Assembler == nil {
		return nil, errors.New("pipeline requires sessions, retriever and assembler")
	}
	if cfg.Vocabulary == nil {
		cfg.Vocabulary = vocab.NewHolder(nil)
	}
	if cfg.Publisher == nil {
		cfg.Publisher = nop.NewPublisher()
	}
	if cfg.DefaultChunks <= 0 {
		cfg.DefaultChunks = DefaultMaxChunks
	}
	if cfg.MaxQueryLength <= 0 {
		cfg.MaxQueryLength = DefaultMaxQueryLength
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.TracerProvider == nil {
		cfg.TracerProvider = otel.GetTracerProvider()
	}
	if cfg.MeterProvider == nil {
		cfg.MeterProvider = otel.GetMeterProvider()
	}

	meter := cfg.MeterProvider.Meter(instrumentationName)
	asks, err := meter.Int64Counter("medibot.pipeline.asks",
		metric.WithDescription("Questions answered, by outcome"))
	if err != nil {
		return nil, fmt.Errorf("creating asks counter: %w", err)
	}
	fallbacks, err := meter.Int64Counter("medibot.pipeline.fallbacks",
		metric.WithDescription("Fallback replies, by failed state"))
	if err != nil {
		return nil, fmt.Errorf("creating fallbacks counter: %w", err)
	}
	duration, err := meter.Float64Histogram("medibot.pipeline.duration",
		metric.WithDescription("End to end Ask latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, fmt.Errorf("creating duration histogram: %w", err)
	}

	return &Pipeline{
		sessions:       cfg.Sessions,
		retriever:      cfg.Retriever,
		assembler:      cfg.Assembler,
		vocab:          cfg.Vocabulary,
		publisher:      cfg.Publisher,
		defaultChunks:  ClampChunks(cfg.DefaultChunks),
		maxQueryLength: cfg.MaxQueryLength,
		now:            cfg.Now,
		logger:         cfg.Logger,
		tracer:         cfg.TracerProvider.Tracer(instrumentationName),
		asks:           asks,
		fallbacks:      fallbacks,
		duration:       duration,
	}, nil
}

// ClampChunks maps a requested chunk count onto 1..MaxChunksLimit, with 0
// meaning DefaultMaxChunks.
func ClampChunks(n int) int {
	switch {
	case n <= 0:
		return DefaultMaxChunks
	case n > MaxChunksLimit:
		return MaxChunksLimit
	default:
		return n
	}
}

// Validate checks a request without side effects.
func (p *Pipeline) Validate(req AskRequest) error {
	q := strings.TrimSpace(req.Query)
	if q == "" {
		return fmt.Errorf("%w: query is empty", ErrInvalidQuery)
	}
	if n := utf8.RuneCountInString(q); n > p.maxQueryLength {
		return fmt.Errorf("%w: query has %d characters, limit is %d", ErrInvalidQuery, n, p.maxQueryLength)
	}
	return nil
}

// run carries the per-request state between steps.
type run struct {
	state       State
	query       string
	requestedID string
	sessionID   string
	status      session.Status
	contextUsed bool
	assessment  triage.Assessment
	classified  bool
	started     time.Time
	span        trace.Span
}

func (p *Pipeline) advance(r *run, s State) {
	r.state = s
	r.span.AddEvent(string(s))
	p.logger.Debug("pipeline state", "state", s, "session_id", r.sessionID)
}

// Ask answers req.Query within the requested session.
func (p *Pipeline) Ask(ctx context.Context, req AskRequest) (res *AskResult, err error) {
	if err := p.Validate(req); err != nil {
		return nil, err
	}

	ctx, span := p.tracer.Start(ctx, "pipeline.ask")
	defer span.End()

	r := &run{
		state:       StateReceived,
		query:       strings.TrimSpace(req.Query),
		requestedID: req.SessionID,
		started:     p.now(),
		span:        span,
	}
	// A panicking collaborator still yields the fallback reply.
	defer func() {
		if v := recover(); v != nil {
			p.logger.Error("pipeline panic", "panic", v, "state", r.state, "session_id", r.sessionID)
			res, err = p.fail(ctx, r, fmt.Errorf("internal error: %v", v)), nil
		}
	}()

	k := p.defaultChunks
	if req.MaxChunks > 0 {
		k = ClampChunks(req.MaxChunks)
	}
	v := p.vocab.Get()

	// History is rendered before the new user turn so the prompt never
	// repeats the current question.
	history := p.sessions.ContextSummary(ctx, req.SessionID, memory.DefaultMaxTurns, memory.DefaultMaxChars)
	r.contextUsed = strings.TrimSpace(history) != ""

	added, err := p.sessions.AddTurn(ctx, req.SessionID, conversation.RoleUser, r.query, nil)
	if err != nil {
		return p.fail(ctx, r, fmt.Errorf("recording user turn: %w", err)), nil
	}
	r.sessionID = added.SessionID
	r.status = added.Status
	span.SetAttributes(
		attribute.String("medibot.session.id", r.sessionID),
		attribute.String("medibot.session.status", string(r.status)),
	)
	p.advance(r, StateSessionResolved)

	augmented := memory.Augment(r.query, history, v.Keywords)
	p.advance(r, StateContextBuilt)

	// Triage is pure and independent of retrieval, so it runs alongside it.
	triaged := make(chan triage.Assessment, 1)
	go func() {
		triaged <- triage.Classify(r.query, v)
	}()

	chunks, retrieveErr := p.retrieve(ctx, augmented, k)
	r.assessment = <-triaged
	r.classified = true
	span.SetAttributes(attribute.String("medibot.urgency", string(r.assessment.Tier)))

	if retrieveErr != nil {
		return p.fail(ctx, r, retrieveErr), nil
	}
	if len(chunks) == 0 {
		return p.fail(ctx, r, errors.New(ErrMsgNoEvidence)), nil
	}
	p.advance(r, StateRetrieved)
	p.advance(r, StateClassified)

	assembled, err := p.generate(ctx, answer.Input{
		Question:   r.query,
		History:    history,
		Evidence:   chunks,
		Assessment: r.assessment,
	}, r.started)
	if err != nil {
		return p.fail(ctx, r, err), nil
	}
	p.advance(r, StateGenerated)

	_, err = p.sessions.AddTurn(ctx, r.sessionID, conversation.RoleAssistant, assembled.Response, map[string]any{
		"sources":         assembled.Sources,
		"generation_time": assembled.GenerationTime.Seconds(),
		"urgency_level":   string(r.assessment.Tier),
	})
	if err != nil {
		p.logger.Error("failed to record assistant turn", "session_id", r.sessionID, "error", err)
	}
	p.advance(r, StatePersisted)

	result := &AskResult{
		Success:           true,
		Query:             r.query,
		Response:          assembled.Response,
		SessionID:         r.sessionID,
		SessionStatus:     r.status,
		ContextUsed:       r.contextUsed,
		Sources:           assembled.Sources,
		Urgency:           r.assessment.Tier,
		EmergencyDetected: r.assessment.Emergency,
		SafetyValidated:   assembled.SafetyValidated,
		ChunksUsed:        len(chunks),
		GenerationTime:    assembled.GenerationTime.Seconds(),
		Model:             assembled.Model,
		Timestamp:         assembled.Timestamp,
		State:             StateDone,
	}
	p.advance(r, StateDone)
	p.finish(ctx, r, result)

	p.logger.Info("answered question",
		"session_id", r.sessionID,
		"session_status", r.status,
		"context_used", r.contextUsed,
		"urgency", r.assessment.Tier,
		"chunks", len(chunks),
		"duration", time.Duration(result.GenerationTime*float64(time.Second)),
	)
	return result, nil
}

func (p *Pipeline) retrieve(ctx context.Context, query string, k int) ([]retrieval.Chunk, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.retrieve",
		trace.WithAttributes(attribute.Int("medibot.retrieval.k", k)))
	defer span.End()

	chunks, err := p.retriever.Retrieve(ctx, query, k)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("retrieving evidence: %w", err)
	}
	span.SetAttributes(attribute.Int("medibot.retrieval.chunks", len(chunks)))
	return chunks, nil
}

func (p *Pipeline) generate(ctx context.Context, in answer.Input, started time.Time) (*answer.Result, error) {
	ctx, span := p.tracer.Start(ctx, "pipeline.generate")
	defer span.End()

	res, err := p.assembler.Assemble(ctx, in, started)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.String("medibot.template", res.Kind.String()),
		attribute.Bool("medibot.safety_validated", res.SafetyValidated),
	)
	return res, nil
}

// fail renders the fallback reply, records it as the assistant turn when a
// session exists and returns the failed result.
func (p *Pipeline) fail(ctx context.Context, r *run, cause error) *AskResult {
	failedAt := r.state
	r.state = StateFailed
	r.span.RecordError(cause)
	r.span.SetStatus(codes.Error, cause.Error())

	msg := cause.Error()
	if errors.Is(cause, context.DeadlineExceeded) || errors.Is(cause, context.Canceled) {
		msg = "the request timed out"
	}
	fallback := answer.Fallback(r.query, r.contextUsed, msg)

	sessionID := r.sessionID
	if sessionID != "" {
		_, err := p.sessions.AddTurn(context.WithoutCancel(ctx), sessionID, conversation.RoleAssistant, fallback,
			map[string]any{"fallback": true, "error": cause.Error()})
		if err != nil {
			p.logger.Error("failed to record fallback turn", "session_id", sessionID, "error", err)
		}
	} else {
		sessionID = r.requestedID
	}

	result := &AskResult{
		Success:       false,
		Query:         r.query,
		Response:      fallback,
		SessionID:     sessionID,
		SessionStatus: r.status,
		ContextUsed:   r.contextUsed,
		Sources:       []string{},
		Timestamp:     p.now(),
		Error:         cause.Error(),
		State:         StateFailed,
		FailedAt:      failedAt,
	}
	if r.classified {
		result.Urgency = r.assessment.Tier
		result.EmergencyDetected = r.assessment.Emergency
	}

	p.fallbacks.Add(ctx, 1, metric.WithAttributes(attribute.String("state", string(failedAt))))
	p.finish(ctx, r, result)

	p.logger.Warn("answered with fallback",
		"session_id", sessionID,
		"failed_at", failedAt,
		"error", cause,
	)
	return result
}

// finish records metrics and publishes the exchange event.
func (p *Pipeline) finish(ctx context.Context, r *run, res *AskResult) {
	completed := p.now()
	elapsed := completed.Sub(r.started)

	outcome := "success"
	if !res.Success {
		outcome = "fallback"
	}
	p.asks.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	p.duration.Record(ctx, elapsed.Seconds(), metric.WithAttributes(attribute.String("outcome", outcome)))

	if res.SessionID == "" {
		return
	}

	event := eventstream.NewExchangePersistedEvent(completed)
	event.Source.Model = res.Model
	event.Session = eventstream.SessionMeta{ID: res.SessionID, Status: string(res.SessionStatus)}
	event.Timing = eventstream.TimingMeta{
		StartedAt:   r.started,
		CompletedAt: completed,
		DurationMs:  elapsed.Milliseconds(),
	}
	event.Exchange = eventstream.ExchangeMeta{
		Query:           res.Query,
		Response:        res.Response,
		Success:         res.Success,
		Urgency:         string(res.Urgency),
		Emergency:       res.EmergencyDetected,
		Sources:         res.Sources,
		ChunksUsed:      res.ChunksUsed,
		ContextUsed:     res.ContextUsed,
		SafetyValidated: res.SafetyValidated,
		Error:           res.Error,
	}

	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.publisher.PublishExchange(pctx, event); err != nil {
		p.logger.Warn("failed to publish exchange event", "session_id", res.SessionID, "error", err)
	}
}
