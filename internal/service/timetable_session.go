package service

import (
	"context"
	"sync"
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// DefaultSessionID keys callers that identify themselves neither by token nor header.
const DefaultSessionID = "default"

type classChoice struct {
	Grade   string
	Section string
}

type timetableSession struct {
	Selection *classChoice
	Editor    models.EditorState
	TouchedAt time.Time
}

// sessionStore keeps per-caller selection and editor state with idle expiry.
type sessionStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.Mutex
	items map[string]*timetableSession
}

func newSessionStore(ttl time.Duration) *sessionStore {
	return &sessionStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]*timetableSession),
	}
}

// With runs fn against the caller's session while holding the store lock.
// Expired sessions start over empty.
func (s *sessionStore) With(id string, fn func(*timetableSession) error) error {
	if id == "" {
		id = DefaultSessionID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	session, ok := s.items[id]
	if !ok || now.Sub(session.TouchedAt) > s.ttl {
		session = &timetableSession{}
		s.items[id] = session
	}
	session.TouchedAt = now
	return fn(session)
}

// Len reports the number of tracked sessions.
func (s *sessionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

func (s *sessionStore) purge() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	removed := 0
	for id, session := range s.items {
		if now.Sub(session.TouchedAt) > s.ttl {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

// startSweeper purges idle sessions until ctx is cancelled.
func (s *sessionStore) startSweeper(ctx context.Context, interval time.Duration, onPurge func(int)) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.purge(); removed > 0 && onPurge != nil {
					onPurge(removed)
				}
			}
		}
	}()
}
