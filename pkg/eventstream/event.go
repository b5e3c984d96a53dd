package eventstream

import (
	"time"

	"github.com/google/uuid"
)

const (
	// SchemaVersionV1 is the first version of the event payload schema.
	SchemaVersionV1 = 1

	// EventTypeExchangePersisted is emitted after a question and its answer
	// have been recorded in a session.
	EventTypeExchangePersisted = "medibot.exchange.persisted"
)

// ExchangePersistedEvent is a transport-neutral event payload for one
// question/answer exchange.
type ExchangePersistedEvent struct {
	SchemaVersion int          `json:"schema_version"`
	EventType     string       `json:"event_type"`
	EventID       string       `json:"event_id"`
	EmittedAt     time.Time    `json:"emitted_at"`
	Source        EventSource  `json:"source"`
	Session       SessionMeta  `json:"session"`
	Timing        TimingMeta   `json:"timing"`
	Exchange      ExchangeMeta `json:"exchange"`
}

// EventSource identifies the producing service and model.
type EventSource struct {
	Service string `json:"service"`
	Model   string `json:"model,omitempty"`
}

// SessionMeta captures how the exchange's session was resolved.
type SessionMeta struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

// TimingMeta captures request lifecycle timing for the event.
type TimingMeta struct {
	StartedAt   time.Time `json:"started_at"`
	CompletedAt time.Time `json:"completed_at"`
	DurationMs  int64     `json:"duration_ms"`
}

// ExchangeMeta is the outcome of the exchange.
type ExchangeMeta struct {
	Query           string   `json:"query"`
	Response        string   `json:"response"`
	Success         bool     `json:"success"`
	Urgency         string   `json:"urgency,omitempty"`
	Emergency       bool     `json:"emergency"`
	Sources         []string `json:"sources"`
	ChunksUsed      int      `json:"chunks_used"`
	ContextUsed     bool     `json:"context_used"`
	SafetyValidated bool     `json:"safety_validated"`
	Error           string   `json:"error,omitempty"`
}

// NewExchangePersistedEvent fills the envelope fields of a v1 event.
func NewExchangePersistedEvent(now time.Time) *ExchangePersistedEvent {
	return &ExchangePersistedEvent{
		SchemaVersion: SchemaVersionV1,
		EventType:     EventTypeExchangePersisted,
		EventID:       "evt_" + uuid.NewString(),
		EmittedAt:     now.UTC(),
		Source:        EventSource{Service: "medibot"},
	}
}
