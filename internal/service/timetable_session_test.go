package service

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestSessionStoreKeepsStatePerCaller(t *testing.T) {
	store := newSessionStore(time.Hour)

	require.NoError(t, store.With("alice", func(s *timetableSession) error {
		s.Selection = &classChoice{Grade: "9", Section: "A"}
		return nil
	}))
	require.NoError(t, store.With("", func(s *timetableSession) error {
		assert.Nil(t, s.Selection)
		return nil
	}))
	require.NoError(t, store.With("alice", func(s *timetableSession) error {
		require.NotNil(t, s.Selection)
		assert.Equal(t, "A", s.Selection.Section)
		return nil
	}))
	assert.Equal(t, 2, store.Len())
}

func TestSessionStoreExpiresIdleSessions(t *testing.T) {
	now := time.Date(2024, 5, 6, 7, 0, 0, 0, time.UTC)
	store := newSessionStore(30 * time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.With("alice", func(s *timetableSession) error {
		s.Editor = models.EditorState{Open: true, Day: models.DayMonday, Period: models.Periods[0]}
		return nil
	}))
	require.NoError(t, store.With("bob", func(s *timetableSession) error { return nil }))

	now = now.Add(20 * time.Minute)
	require.NoError(t, store.With("bob", func(s *timetableSession) error { return nil }))

	now = now.Add(15 * time.Minute)
	assert.Equal(t, 1, store.purge())
	assert.Equal(t, 1, store.Len())

	now = now.Add(time.Hour)
	require.NoError(t, store.With("bob", func(s *timetableSession) error {
		assert.False(t, s.Editor.Open)
		assert.Nil(t, s.Selection)
		return nil
	}))
}

func TestSessionStorePropagatesCallbackError(t *testing.T) {
	store := newSessionStore(time.Hour)
	boom := errors.New("boom")
	err := store.With("alice", func(s *timetableSession) error { return boom })
	assert.ErrorIs(t, err, boom)
}
