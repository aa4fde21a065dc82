package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/fxtoolworks/licensebot/pkg/logger"
)

// Session is one user's conversation. Its mutex serializes message handling
// so a user's messages are processed one at a time in arrival order.
type Session struct {
	mu       sync.Mutex
	userID   int64
	state    State
	lastSeen time.Time
}

// Store holds the in-process sessions, keyed by chat user id. Sessions are
// deliberately not persisted; a restart drops in-flight conversations.
type Store struct {
	mu       sync.Mutex
	sessions map[int64]*Session
	idle     time.Duration
	sweep    time.Duration
	logger   *logger.Logger
	now      func() time.Time
}

// NewStore builds the session store.
func NewStore(idle, sweep time.Duration, logg *logger.Logger) *Store {
	return &Store{
		sessions: make(map[int64]*Session),
		idle:     idle,
		sweep:    sweep,
		logger:   logg,
		now:      time.Now,
	}
}

// Do runs fn while holding the user's session lock, creating the session on
// first contact. The session's idle clock resets on every call.
func (s *Store) Do(userID int64, fn func(session *Session)) {
	s.mu.Lock()
	session, ok := s.sessions[userID]
	if !ok {
		session = &Session{userID: userID}
		s.sessions[userID] = session
	}
	s.mu.Unlock()

	session.mu.Lock()
	defer session.mu.Unlock()
	session.lastSeen = s.now()
	fn(session)
}

// State returns the session's current state, nil when idle.
func (s *Session) State() State {
	return s.state
}

// Transition moves the session to the next state. A nil state ends the
// conversation.
func (s *Session) Transition(next State) {
	s.state = next
}

// Clear drops the in-flight conversation.
func (s *Session) Clear() {
	s.state = nil
}

// StartJanitor evicts idle sessions from the map until the context is
// cancelled, so the store does not grow with every user ever seen.
func (s *Store) StartJanitor(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.sweep)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.sweepIdle(ctx)
			}
		}
	}()
}

func (s *Store) sweepIdle(ctx context.Context) {
	cutoff := s.now().Add(-s.idle)

	dropped := 0
	s.mu.Lock()
	for id, session := range s.sessions {
		if !session.mu.TryLock() {
			// in the middle of handling a message, leave it alone
			continue
		}
		if session.lastSeen.Before(cutoff) {
			if session.state != nil {
				dropped++
			}
			delete(s.sessions, id)
		}
		session.mu.Unlock()
	}
	s.mu.Unlock()

	if dropped > 0 && s.logger != nil {
		s.logger.Info(s.logger.WithField(ctx, "sessions", dropped), "idle conversations discarded")
	}
}
