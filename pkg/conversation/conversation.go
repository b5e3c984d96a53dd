// Package conversation holds the session and turn value types shared by the
// session store, the context builder and the pipeline.
package conversation

import (
	"fmt"
	"time"
)

// Role identifies who produced a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAssistant
}

// Metadata keys written on every new session.
const (
	MetadataVersion = "version"
	MetadataSource  = "source"

	SchemaVersion = "1.0"
	SourceName    = "medibot"
)

// Turn is a single message in a session. A turn is never modified once it
// has been appended.
type Turn struct {
	Role      Role           `json:"role"`
	Content   string         `json:"content"`
	Timestamp time.Time      `json:"timestamp"`
	Metadata  map[string]any `json:"metadata,omitempty"`
}

// NewTurn validates and builds a turn stamped with now.
func NewTurn(role Role, content string, metadata map[string]any, now time.Time) (Turn, error) {
	if !role.Valid() {
		return Turn{}, fmt.Errorf("%w: %q", ErrInvalidRole, role)
	}
	if role == RoleUser && content == "" {
		return Turn{}, ErrEmptyContent
	}
	return Turn{
		Role:      role,
		Content:   content,
		Timestamp: now,
		Metadata:  metadata,
	}, nil
}

// Session is one conversation thread.
type Session struct {
	ID        string         `json:"session_id"`
	Turns     []Turn         `json:"messages"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Metadata  map[string]any `json:"metadata"`
}

// NewSession returns an empty session created at now.
func NewSession(id string, now time.Time) *Session {
	return &Session{
		ID:        id,
		Turns:     []Turn{},
		CreatedAt: now,
		UpdatedAt: now,
		Metadata: map[string]any{
			MetadataVersion: SchemaVersion,
			MetadataSource:  SourceName,
		},
	}
}

// Append adds t to the end of the session and refreshes UpdatedAt.
// UpdatedAt never moves behind CreatedAt, even with a skewed clock.
func (s *Session) Append(t Turn) {
	s.Turns = append(s.Turns, t)
	s.touch(t.Timestamp)
}

// Clear drops every turn.
func (s *Session) Clear(now time.Time) {
	s.Turns = []Turn{}
	s.touch(now)
}

func (s *Session) touch(now time.Time) {
	if now.Before(s.CreatedAt) {
		now = s.CreatedAt
	}
	s.UpdatedAt = now
}

// Expired reports whether the session has been idle longer than maxAge.
func (s *Session) Expired(now time.Time, maxAge time.Duration) bool {
	return maxAge > 0 && now.Sub(s.UpdatedAt) > maxAge
}

// Recent returns the last n turns in chronological order.
func (s *Session) Recent(n int) []Turn {
	if n <= 0 || len(s.Turns) == 0 {
		return nil
	}
	if n >= len(s.Turns) {
		return s.Turns
	}
	return s.Turns[len(s.Turns)-n:]
}

// Clone returns a deep copy so callers never alias the store's copy.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.Turns = make([]Turn, len(s.Turns))
	for i, t := range s.Turns {
		t.Metadata = cloneMap(t.Metadata)
		c.Turns[i] = t
	}
	c.Metadata = cloneMap(s.Metadata)
	return &c
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
