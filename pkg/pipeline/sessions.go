package pipeline

import (
	"context"

	"github.com/papercomputeco/medibot/pkg/conversation"
	"github.com/papercomputeco/medibot/pkg/session"
)

// SessionStatus is the externally visible summary of a session.
type SessionStatus struct {
	SessionID string `json:"session_id"`
	session.Info
}

// CreateSession starts an empty session.
func (p *Pipeline) CreateSession(ctx context.Context) (string, error) {
	return p.sessions.Create(ctx)
}

// Clear drops a session's turns but keeps the session.
func (p *Pipeline) Clear(ctx context.Context, id string) error {
	return p.sessions.Clear(ctx, id)
}

// Delete removes a session. It reports whether the session existed.
func (p *Pipeline) Delete(ctx context.Context, id string) (bool, error) {
	return p.sessions.Delete(ctx, id)
}

// Status reports whether a session exists and how active it is.
func (p *Pipeline) Status(ctx context.Context, id string) SessionStatus {
	return SessionStatus{SessionID: id, Info: p.sessions.Info(ctx, id)}
}

// History returns a copy of a session with all of its turns.
func (p *Pipeline) History(ctx context.Context, id string) (*conversation.Session, error) {
	return p.sessions.Get(ctx, id)
}

// Sessions exposes the underlying store for health reporting.
func (p *Pipeline) Sessions() *session.Store {
	return p.sessions
}

// Model names the language model that answers questions.
func (p *Pipeline) Model() string {
	return p.assembler.Model()
}
