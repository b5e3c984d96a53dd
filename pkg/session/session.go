// Package session owns the lifecycle of conversation sessions: creation,
// lookup with lazy expiry, ordered mutation, durable mirroring, sweeping and
// startup recovery.
//
// A Store is the single authoritative holder of live sessions for a process.
// Each session has its own lock so appends to one session never interleave,
// while independent sessions proceed in parallel. The storage driver is a
// durable mirror used to refill the cache; it is never a second writer.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/papercomputeco/medibot/pkg/conversation"
	"github.com/papercomputeco/medibot/pkg/memory"
	"github.com/papercomputeco/medibot/pkg/session/writer"
	"github.com/papercomputeco/medibot/pkg/storage"
)

const (
	DefaultMaxAge          = 24 * time.Hour
	DefaultCleanupInterval = 30 * time.Minute
	DefaultRecoveryLimit   = 50
)

var (
	// ErrNotFound is returned for unknown or expired session ids.
	ErrNotFound = errors.New("session not found")

	// ErrStorage wraps durable storage faults surfaced to callers.
	ErrStorage = errors.New("session storage failure")
)

// Status reports how AddTurn resolved the requested session id.
type Status string

const (
	// StatusResumed means the turn was appended to the requested session.
	StatusResumed Status = "resumed"

	// StatusRecreated means the requested id was unknown or expired and a
	// new session was created in its place.
	StatusRecreated Status = "recreated"

	// StatusCreated means no id was supplied and a new session was created.
	StatusCreated Status = "created"
)

// AddResult is the outcome of AddTurn. SessionID differs from the requested
// id whenever Status is not StatusResumed.
type AddResult struct {
	SessionID string
	Status    Status
}

// Info is a lightweight view of a session.
type Info struct {
	Exists       bool      `json:"exists"`
	TurnCount    int       `json:"message_count"`
	LastActivity time.Time `json:"last_activity,omitzero"`
}

// Config configures a Store.
type Config struct {
	// Driver is the durable mirror. Required.
	Driver storage.Driver

	// Writer, when set, mirrors writes asynchronously instead of inline.
	Writer *writer.Pool

	// MaxAge is the idle time after which a session expires.
	MaxAge time.Duration

	// CleanupInterval is the minimum time between opportunistic sweeps.
	CleanupInterval time.Duration

	// RecoveryLimit bounds how many sessions are loaded at startup.
	RecoveryLimit int

	// Now is the clock. Defaults to time.Now.
	Now func() time.Time

	// NewID mints session ids. Defaults to random UUIDs.
	NewID func() string

	Logger *slog.Logger
}

// entry is the cache slot for one session id. mu serializes every read and
// write of session; removed is set once the slot has left the cache so
// goroutines that were waiting on mu know to give up.
type entry struct {
	mu      sync.Mutex
	session *conversation.Session
	removed bool

	// loading is guarded by Store.mu and set while a cold load is in flight.
	loading bool
}

// Store is the session registry.
type Store struct {
	driver          storage.Driver
	writer          *writer.Pool
	maxAge          time.Duration
	cleanupInterval time.Duration
	now             func() time.Time
	newID           func() string
	logger          *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry

	sweepMu   sync.Mutex
	lastSweep time.Time
}

// New builds a Store and recovers recent sessions from the driver.
func New(ctx context.Context, c Config) (*Store, error) {
	if c.Driver == nil {
		return nil, errors.New("session store requires a storage driver")
	}
	if c.MaxAge <= 0 {
		c.MaxAge = DefaultMaxAge
	}
	if c.CleanupInterval <= 0 {
		c.CleanupInterval = DefaultCleanupInterval
	}
	if c.RecoveryLimit <= 0 {
		c.RecoveryLimit = DefaultRecoveryLimit
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.NewID == nil {
		c.NewID = uuid.NewString
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}

	s := &Store{
		driver:          c.Driver,
		writer:          c.Writer,
		maxAge:          c.MaxAge,
		cleanupInterval: c.CleanupInterval,
		now:             c.Now,
		newID:           c.NewID,
		logger:          c.Logger,
		entries:         make(map[string]*entry),
	}
	s.lastSweep = s.now()

	s.recover(ctx, c.RecoveryLimit)
	return s, nil
}

// recover loads the most recently updated sessions and deletes expired ones.
// A failing driver leaves the store empty but usable.
func (s *Store) recover(ctx context.Context, limit int) {
	sessions, err := s.driver.ListRecent(ctx, 0)
	if err != nil {
		s.logger.Warn("session recovery failed", "error", err)
		return
	}

	now := s.now()
	loaded, expired := 0, 0
	for _, sess := range sessions {
		if sess.Expired(now, s.maxAge) {
			if _, err := s.driver.Delete(ctx, sess.ID); err != nil {
				s.logger.Warn("failed to delete expired session", "session_id", sess.ID, "error", err)
			}
			expired++
			continue
		}
		if loaded >= limit {
			continue
		}
		s.entries[sess.ID] = &entry{session: sess}
		loaded++
	}

	s.logger.Info("sessions recovered", "loaded", loaded, "expired", expired)
}

// Create starts an empty session and persists it before returning its id.
func (s *Store) Create(ctx context.Context) (string, error) {
	defer s.maybeSweep(ctx)

	e, err := s.insert(s.now())
	if err != nil {
		return "", err
	}
	defer e.mu.Unlock()

	id := e.session.ID
	if err := s.persistNow(ctx, e.session); err != nil {
		s.mu.Lock()
		delete(s.entries, id)
		s.mu.Unlock()
		e.removed = true
		return "", errors.Join(ErrStorage, err)
	}

	s.logger.Debug("session created", "session_id", id)
	return id, nil
}

// insert registers a fresh session and returns its entry locked.
func (s *Store) insert(now time.Time) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for range 3 {
		id := s.newID()
		if _, taken := s.entries[id]; taken {
			continue
		}
		e := &entry{session: conversation.NewSession(id, now)}
		e.mu.Lock()
		s.entries[id] = e
		return e, nil
	}
	return nil, errors.New("could not allocate a unique session id")
}

// acquire resolves id to a live session and returns its entry locked.
// Cache misses are filled from the driver; expired sessions are evicted.
func (s *Store) acquire(ctx context.Context, id string) (*entry, error) {
	if id == "" {
		return nil, ErrNotFound
	}

	s.mu.Lock()
	e, ok := s.entries[id]
	if ok {
		s.mu.Unlock()
		e.mu.Lock()
		if e.removed {
			e.mu.Unlock()
			return nil, ErrNotFound
		}
	} else {
		// Publish a locked placeholder so concurrent callers wait for this
		// load instead of creating a second copy.
		e = &entry{loading: true}
		e.mu.Lock()
		s.entries[id] = e
		s.mu.Unlock()

		loaded, err := s.driver.Get(ctx, id)
		if err != nil {
			if !storage.IsNotFound(err) {
				s.logger.Warn("session load failed", "session_id", id, "error", err)
			}
			s.detach(id, e)
			e.mu.Unlock()
			return nil, ErrNotFound
		}
		e.session = loaded
		s.mu.Lock()
		e.loading = false
		s.mu.Unlock()
	}

	if e.session.Expired(s.now(), s.maxAge) {
		s.evict(ctx, id, e)
		e.mu.Unlock()
		return nil, ErrNotFound
	}
	return e, nil
}

// detach removes e from the cache. The caller holds e.mu.
func (s *Store) detach(id string, e *entry) {
	s.mu.Lock()
	if s.entries[id] == e {
		delete(s.entries, id)
	}
	s.mu.Unlock()
	e.removed = true
}

// evict deletes an expired session from storage and cache. The caller holds
// e.mu. The durable delete happens first so no concurrent cache miss can
// reload the record.
func (s *Store) evict(ctx context.Context, id string, e *entry) {
	if _, err := s.remove(ctx, id); err != nil {
		s.logger.Warn("failed to delete expired session", "session_id", id, "error", err)
	}
	s.detach(id, e)
	s.logger.Info("session expired", "session_id", id)
}

// Get returns a copy of the session.
func (s *Store) Get(ctx context.Context, id string) (*conversation.Session, error) {
	e, err := s.acquire(ctx, id)
	if err != nil {
		return nil, err
	}
	defer e.mu.Unlock()
	return e.session.Clone(), nil
}

// AddTurn appends a turn to the session, creating a new session if id does
// not resolve. The durable write is issued before the session lock is
// released, which keeps the durable order equal to the append order.
func (s *Store) AddTurn(ctx context.Context, id string, role conversation.Role, content string, metadata map[string]any) (AddResult, error) {
	now := s.now()
	turn, err := conversation.NewTurn(role, content, cloneMap(metadata), now)
	if err != nil {
		return AddResult{}, err
	}
	defer s.maybeSweep(ctx)

	status := StatusResumed
	e, err := s.acquire(ctx, id)
	if err != nil {
		status = StatusRecreated
		if id == "" {
			status = StatusCreated
		}
		if e, err = s.insert(now); err != nil {
			return AddResult{}, err
		}
		if status == StatusRecreated {
			s.logger.Info("session recreated", "requested_id", id, "session_id", e.session.ID)
		}
	}
	defer e.mu.Unlock()

	e.session.Append(turn)
	s.persist(ctx, e.session)

	return AddResult{SessionID: e.session.ID, Status: status}, nil
}

// Clear drops every turn of a session.
func (s *Store) Clear(ctx context.Context, id string) error {
	defer s.maybeSweep(ctx)

	e, err := s.acquire(ctx, id)
	if err != nil {
		return err
	}
	defer e.mu.Unlock()

	e.session.Clear(s.now())
	s.persist(ctx, e.session)
	s.logger.Info("session cleared", "session_id", id)
	return nil
}

// Delete removes a session from cache and storage. It is idempotent and
// reports whether a live session existed; an expired record is removed but
// reported as absent.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	defer s.maybeSweep(ctx)

	if id == "" {
		return false, nil
	}

	e, err := s.acquire(ctx, id)
	if err != nil {
		// Nothing live. Drop any unreadable leftover so the id stays gone.
		if _, err := s.remove(ctx, id); err != nil {
			s.logger.Warn("failed to delete session", "session_id", id, "error", err)
		}
		return false, nil
	}
	defer e.mu.Unlock()

	if _, err := s.remove(ctx, id); err != nil {
		s.logger.Warn("failed to delete session", "session_id", id, "error", err)
	}
	s.detach(id, e)

	s.logger.Info("session deleted", "session_id", id)
	return true, nil
}

// ContextSummary renders recent turns of a session. Unknown sessions render "".
func (s *Store) ContextSummary(ctx context.Context, id string, maxTurns, maxChars int) string {
	e, err := s.acquire(ctx, id)
	if err != nil {
		return ""
	}
	defer e.mu.Unlock()
	return memory.Summarize(e.session, memory.Options{MaxTurns: maxTurns, MaxChars: maxChars})
}

// Info reports whether a session exists and how active it is.
func (s *Store) Info(ctx context.Context, id string) Info {
	e, err := s.acquire(ctx, id)
	if err != nil {
		return Info{}
	}
	defer e.mu.Unlock()
	return Info{
		Exists:       true,
		TurnCount:    len(e.session.Turns),
		LastActivity: e.session.UpdatedAt,
	}
}

// ActiveCount returns the number of cached sessions. Entries still being
// loaded from storage are not counted.
func (s *Store) ActiveCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.entries {
		if !e.loading {
			n++
		}
	}
	return n
}

// HealthCheck verifies the durable mirror accepts writes.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.driver.Ping(ctx)
}

// Flush waits for queued durable writes when a writer pool is configured.
func (s *Store) Flush(ctx context.Context) error {
	if s.writer == nil {
		return nil
	}
	return s.writer.Flush(ctx)
}

// persist mirrors a session, logging failures. The in-memory mutation is
// never rolled back.
func (s *Store) persist(ctx context.Context, sess *conversation.Session) {
	if err := s.persistNow(ctx, sess); err != nil {
		s.logger.Error("session persistence failed", "session_id", sess.ID, "error", err)
	}
}

func (s *Store) persistNow(ctx context.Context, sess *conversation.Session) error {
	snapshot := sess.Clone()
	if s.writer != nil {
		return s.writer.Put(context.WithoutCancel(ctx), snapshot)
	}
	return s.driver.Put(context.WithoutCancel(ctx), snapshot)
}

func (s *Store) remove(ctx context.Context, id string) (bool, error) {
	if s.writer != nil {
		return s.writer.Delete(context.WithoutCancel(ctx), id)
	}
	return s.driver.Delete(context.WithoutCancel(ctx), id)
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
