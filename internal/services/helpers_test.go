package services

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/store"
	"github.com/chrislearn/mofa-studio/internal/store/sqlite"
)

var now = time.Date(2026, 6, 15, 10, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	s, err := sqlite.New(context.Background(), sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func newScheduler(t *testing.T, s store.Store) *SchedulerService {
	t.Helper()
	return NewSchedulerService(s, DefaultSchedulerPolicy(), zerolog.Nop())
}

func seedItem(t *testing.T, s store.Store, text string, next time.Time, interval, difficulty int) *model.VocabularyItem {
	t.Helper()
	it, err := s.Items().Create(context.Background(), &model.VocabularyItem{
		Text:               text,
		Category:           model.CategoryUnfamiliar,
		CreationTime:       now.Add(-30 * 24 * time.Hour),
		NextReviewTime:     next,
		ReviewIntervalDays: interval,
		DifficultyLevel:    difficulty,
	})
	require.NoError(t, err)
	return it
}

func seedSession(t *testing.T, s store.Store, id string) {
	t.Helper()
	_, err := s.Sessions().Create(context.Background(), &model.LearningSession{SessionID: id, StartTime: now})
	require.NoError(t, err)
}

// fakeStore fails the test on any access; used to prove validation runs first.
type fakeStore struct {
	store.Store
	t *testing.T
}

func (f fakeStore) WithTx(context.Context, store.TxOptions, func(store.Store) error) error {
	f.t.Fatalf("store accessed")
	return nil
}
