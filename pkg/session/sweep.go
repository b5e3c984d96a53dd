package session

import "context"

// maybeSweep runs Sweep when the cleanup interval has elapsed. It is called
// after mutating operations have released their own session lock.
func (s *Store) maybeSweep(ctx context.Context) {
	s.sweepMu.Lock()
	now := s.now()
	if now.Sub(s.lastSweep) < s.cleanupInterval {
		s.sweepMu.Unlock()
		return
	}
	s.lastSweep = now
	s.sweepMu.Unlock()

	if n := s.Sweep(ctx); n > 0 {
		s.logger.Info("expired sessions swept", "count", n)
	}
}

// Sweep evicts every cached session idle longer than the max age and returns
// how many were removed.
func (s *Store) Sweep(ctx context.Context) int {
	s.mu.Lock()
	candidates := make(map[string]*entry, len(s.entries))
	for id, e := range s.entries {
		candidates[id] = e
	}
	s.mu.Unlock()

	now := s.now()
	swept := 0
	for id, e := range candidates {
		e.mu.Lock()
		if !e.removed && e.session != nil && e.session.Expired(now, s.maxAge) {
			s.evict(ctx, id, e)
			swept++
		}
		e.mu.Unlock()
	}
	return swept
}
