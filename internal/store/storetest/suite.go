// Package storetest is a compliance suite for store.Store implementations.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/store"
)

// Run exercises the suite against a store.Store implementation. makeStore must
// return a clean, isolated store for every call.
func Run(t *testing.T, makeStore func(t *testing.T) store.Store) {
	t.Helper()
	t.Run("Items", func(t *testing.T) { testItems(t, makeStore(t)) })
	t.Run("DueRanking", func(t *testing.T) { testDueRanking(t, makeStore(t)) })
	t.Run("DailyCap", func(t *testing.T) { testDailyCap(t, makeStore(t)) })
	t.Run("Sessions", func(t *testing.T) { testSessions(t, makeStore(t)) })
	t.Run("TurnsAndAnnotations", func(t *testing.T) { testTurnsAndAnnotations(t, makeStore(t)) })
	t.Run("PracticeLog", func(t *testing.T) { testPracticeLog(t, makeStore(t)) })
	t.Run("TxRollback", func(t *testing.T) { testTxRollback(t, makeStore(t)) })
}

var base = time.Date(2026, 4, 10, 12, 0, 0, 0, time.UTC)

func mkItem(t *testing.T, s store.Store, text string, next time.Time, difficulty int, created time.Time) *model.VocabularyItem {
	t.Helper()
	it, err := s.Items().Create(context.Background(), &model.VocabularyItem{
		Text:               text,
		Category:           model.CategoryUnfamiliar,
		Description:        model.Bilingual{Text: text + " desc", Translation: "译"},
		CreationTime:       created,
		NextReviewTime:     next,
		ReviewIntervalDays: 1,
		DifficultyLevel:    difficulty,
	})
	require.NoError(t, err)
	require.NotZero(t, it.ItemID)
	return it
}

func mkSession(t *testing.T, s store.Store) *model.LearningSession {
	t.Helper()
	sess, err := s.Sessions().Create(context.Background(), &model.LearningSession{SessionID: uuid.NewString(), StartTime: base})
	require.NoError(t, err)
	return sess
}

func ids(items []*model.VocabularyItem) []int64 {
	out := make([]int64, len(items))
	for i, it := range items {
		out[i] = it.ItemID
	}
	return out
}

func testItems(t *testing.T, s store.Store) {
	ctx := context.Background()
	it := mkItem(t, s, "serendipity", base, 3, base)

	got, err := s.Items().Get(ctx, it.ItemID)
	require.NoError(t, err)
	assert.Equal(t, "serendipity", got.Text)
	assert.Equal(t, model.CategoryUnfamiliar, got.Category)
	assert.Equal(t, "译", got.Description.Translation)
	assert.True(t, got.NextReviewTime.Equal(base))
	assert.Nil(t, got.LastPickedTime)

	found, err := s.Items().FindByText(ctx, "serendipity", model.CategoryUnfamiliar)
	require.NoError(t, err)
	assert.Equal(t, it.ItemID, found.ItemID)

	_, err = s.Items().FindByText(ctx, "serendipity", model.CategoryGrammar)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = s.Items().Get(ctx, 987654)
	assert.True(t, errors.Is(err, model.ErrNotFound))

	_, err = s.Items().Create(ctx, &model.VocabularyItem{
		Text: "serendipity", Category: model.CategoryUnfamiliar, CreationTime: base, ReviewIntervalDays: 1, DifficultyLevel: 1,
	})
	assert.True(t, errors.Is(err, model.ErrConflict), "duplicate text and category: %v", err)
	assert.False(t, model.IsStoreUnavailable(err))

	picked := base.Add(time.Hour)
	got.LastPickedTime = &picked
	got.NextReviewTime = picked.Add(48 * time.Hour)
	got.ReviewIntervalDays = 2
	got.DifficultyLevel = 2
	got.PickCount = 1
	got.Context = "It was pure serendipity."
	require.NoError(t, s.Items().Update(ctx, got))

	err = s.WithTx(ctx, store.TxOptions{}, func(tx store.Store) error {
		locked, err := tx.Items().GetForUpdate(ctx, it.ItemID)
		require.NoError(t, err)
		assert.Equal(t, 2, locked.ReviewIntervalDays)
		assert.Equal(t, 1, locked.PickCount)
		require.NotNil(t, locked.LastPickedTime)
		assert.True(t, locked.LastPickedTime.Equal(picked))
		assert.Equal(t, "It was pure serendipity.", locked.Context)
		return nil
	})
	require.NoError(t, err)

	missing := *got
	missing.ItemID = 987654
	assert.True(t, errors.Is(s.Items().Update(ctx, &missing), model.ErrNotFound))

	mkItem(t, s, "ubiquitous", base.Add(72*time.Hour), 1, base)
	all, err := s.Items().List(ctx, model.ListItemsRequest{})
	require.NoError(t, err)
	assert.Len(t, all, 2)
	due, err := s.Items().List(ctx, model.ListItemsRequest{DueOnly: true, Now: base.Add(50 * time.Hour)})
	require.NoError(t, err)
	assert.Len(t, due, 1)
	none, err := s.Items().List(ctx, model.ListItemsRequest{Category: model.CategoryGrammar})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func testDueRanking(t *testing.T, s store.Store) {
	ctx := context.Background()
	now := base
	window := store.CapWindow{Start: now.Add(-12 * time.Hour), End: now.Add(12 * time.Hour), Cap: 5}

	a := mkItem(t, s, "a", now.Add(-48*time.Hour), 1, base)
	b := mkItem(t, s, "b", now.Add(-24*time.Hour), 2, base)
	c := mkItem(t, s, "c", now.Add(-24*time.Hour), 5, base)
	d := mkItem(t, s, "d", now, 3, base)
	e := mkItem(t, s, "e", now.Add(time.Hour), 1, base)
	f := mkItem(t, s, "f", now.Add(2*time.Hour), 4, base)

	due, err := s.Items().Due(ctx, now, window, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ItemID, c.ItemID, b.ItemID, d.ItemID}, ids(due))

	limited, err := s.Items().Due(ctx, now, window, 2)
	require.NoError(t, err)
	assert.Equal(t, []int64{a.ItemID, c.ItemID}, ids(limited))

	up, err := s.Items().Upcoming(ctx, now, window, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{e.ItemID, f.ItemID}, ids(up))
}

func testDailyCap(t *testing.T, s store.Store) {
	ctx := context.Background()
	sess := mkSession(t, s)
	capped := mkItem(t, s, "capped", base.Add(-time.Hour), 3, base)
	free := mkItem(t, s, "free", base.Add(-time.Hour), 3, base)

	for i := 0; i < 5; i++ {
		_, err := s.PracticeLog().Append(ctx, &model.PracticeLogEntry{
			ItemID: capped.ItemID, SessionID: sess.SessionID, PracticedAt: base.Add(-time.Duration(i+1) * time.Minute), Outcome: model.OutcomeFailure,
		})
		require.NoError(t, err)
	}
	// yesterday does not count
	_, err := s.PracticeLog().Append(ctx, &model.PracticeLogEntry{
		ItemID: free.ItemID, SessionID: sess.SessionID, PracticedAt: base.Add(-30 * time.Hour), Outcome: model.OutcomeFailure,
	})
	require.NoError(t, err)

	window := store.CapWindow{Start: base.Truncate(24 * time.Hour), End: base.Truncate(24 * time.Hour).Add(24 * time.Hour), Cap: 5}
	due, err := s.Items().Due(ctx, base, window, 10)
	require.NoError(t, err)
	assert.Equal(t, []int64{free.ItemID}, ids(due))

	window.Cap = 6
	due, err = s.Items().Due(ctx, base, window, 10)
	require.NoError(t, err)
	assert.Len(t, due, 2)
}

func testSessions(t *testing.T, s store.Store) {
	ctx := context.Background()
	in := &model.LearningSession{SessionID: uuid.NewString(), TargetItemIDs: []int64{3, 1, 2}, StartTime: base}
	_, err := s.Sessions().Create(ctx, in)
	require.NoError(t, err)

	got, err := s.Sessions().Get(ctx, in.SessionID)
	require.NoError(t, err)
	assert.Equal(t, []int64{3, 1, 2}, got.TargetItemIDs)
	assert.Nil(t, got.Topic)
	assert.Nil(t, got.EndTime)
	assert.True(t, got.StartTime.Equal(base))

	require.NoError(t, s.Sessions().SetTopic(ctx, in.SessionID, "careers"))
	require.NoError(t, s.Sessions().IncrementExchanges(ctx, in.SessionID))
	require.NoError(t, s.Sessions().End(ctx, in.SessionID, base.Add(time.Hour)))
	require.NoError(t, s.Sessions().End(ctx, in.SessionID, base.Add(2*time.Hour)))

	got, err = s.Sessions().Get(ctx, in.SessionID)
	require.NoError(t, err)
	require.NotNil(t, got.Topic)
	assert.Equal(t, "careers", *got.Topic)
	assert.Equal(t, 1, got.ExchangeCount)
	require.NotNil(t, got.EndTime)
	assert.True(t, got.EndTime.Equal(base.Add(time.Hour)))

	empty := mkSession(t, s)
	got, err = s.Sessions().Get(ctx, empty.SessionID)
	require.NoError(t, err)
	assert.NotNil(t, got.TargetItemIDs)
	assert.Empty(t, got.TargetItemIDs)

	list, err := s.Sessions().List(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, list, 2)

	_, err = s.Sessions().Get(ctx, "missing")
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.True(t, errors.Is(s.Sessions().SetTopic(ctx, "missing", "x"), model.ErrNotFound))
	assert.True(t, errors.Is(s.Sessions().End(ctx, "missing", base), model.ErrNotFound))
}

func testTurnsAndAnnotations(t *testing.T, s store.Store) {
	ctx := context.Background()
	sess := mkSession(t, s)
	other := mkSession(t, s)

	audio := "clips/1.wav"
	u, err := s.Turns().Append(ctx, &model.ConversationTurn{
		SessionID: sess.SessionID, Speaker: model.SpeakerUser, Text: "I goes to school",
		AudioRef: &audio, Metrics: &model.TurnMetrics{SpeechRateWPM: 96.5, PauseCount: 3}, CreationTime: base,
	})
	require.NoError(t, err)
	_, err = s.Turns().Append(ctx, &model.ConversationTurn{SessionID: sess.SessionID, Speaker: model.SpeakerTutor, Text: "You go to school?", CreationTime: base.Add(time.Second)})
	require.NoError(t, err)
	o, err := s.Turns().Append(ctx, &model.ConversationTurn{SessionID: other.SessionID, Speaker: model.SpeakerUser, Text: "hello", CreationTime: base})
	require.NoError(t, err)

	got, err := s.Turns().Get(ctx, u.TurnID)
	require.NoError(t, err)
	require.NotNil(t, got.Metrics)
	assert.Equal(t, 3, got.Metrics.PauseCount)
	assert.InDelta(t, 96.5, got.Metrics.SpeechRateWPM, 0.001)
	require.NotNil(t, got.AudioRef)
	assert.Equal(t, audio, *got.AudioRef)

	list, err := s.Turns().List(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, model.SpeakerUser, list[0].Speaker)
	assert.Nil(t, list[1].Metrics)

	_, err = s.Annotations().Create(ctx, &model.ConversationAnnotation{
		TurnID: u.TurnID, Kind: model.KindGrammar, Severity: model.SeverityMedium,
		Original: "I goes", Suggested: "I go", Description: model.Bilingual{Text: "subject-verb agreement", Translation: "主谓一致"},
	})
	require.NoError(t, err)
	_, err = s.Annotations().Create(ctx, &model.ConversationAnnotation{TurnID: o.TurnID, Kind: model.KindVocabulary, Severity: model.SeverityLow, Original: "hello"})
	require.NoError(t, err)

	anns, err := s.Annotations().ListBySession(ctx, sess.SessionID)
	require.NoError(t, err)
	require.Len(t, anns, 1)
	assert.Equal(t, "I go", anns[0].Suggested)
	assert.Equal(t, "主谓一致", anns[0].Description.Translation)
	assert.Equal(t, model.KindGrammar, anns[0].Kind)
}

func testPracticeLog(t *testing.T, s store.Store) {
	ctx := context.Background()
	sess := mkSession(t, s)
	it := mkItem(t, s, "wander", base, 3, base)

	outcomes := []model.Outcome{model.OutcomeFailure, model.OutcomeSuccess, model.OutcomeNeutral, model.OutcomeSuccess}
	for i, o := range outcomes {
		_, err := s.PracticeLog().Append(ctx, &model.PracticeLogEntry{ItemID: it.ItemID, SessionID: sess.SessionID, PracticedAt: base.Add(time.Duration(i) * time.Minute), Outcome: o})
		require.NoError(t, err)
	}

	n, err := s.PracticeLog().CountInWindow(ctx, it.ItemID, base, base.Add(2*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	recent, err := s.PracticeLog().RecentOutcomes(ctx, it.ItemID, 3)
	require.NoError(t, err)
	assert.Equal(t, []model.Outcome{model.OutcomeSuccess, model.OutcomeNeutral, model.OutcomeSuccess}, recent)

	byItem, err := s.PracticeLog().ListByItem(ctx, it.ItemID)
	require.NoError(t, err)
	require.Len(t, byItem, 4)
	assert.Equal(t, model.OutcomeFailure, byItem[0].Outcome)

	bySession, err := s.PracticeLog().ListBySession(ctx, sess.SessionID)
	require.NoError(t, err)
	assert.Len(t, bySession, 4)
}

func testTxRollback(t *testing.T, s store.Store) {
	ctx := context.Background()
	boom := errors.New("boom")
	id := uuid.NewString()
	err := s.WithTx(ctx, store.TxOptions{Snapshot: true}, func(tx store.Store) error {
		if _, err := tx.Sessions().Create(ctx, &model.LearningSession{SessionID: id, StartTime: base}); err != nil {
			return err
		}
		// nested WithTx joins the enclosing transaction
		return tx.WithTx(ctx, store.TxOptions{}, func(inner store.Store) error {
			if _, err := inner.Items().Create(ctx, &model.VocabularyItem{Text: "ghost", Category: model.CategoryUsage, ReviewIntervalDays: 1, DifficultyLevel: 3, NextReviewTime: base}); err != nil {
				return err
			}
			return boom
		})
	})
	require.ErrorIs(t, err, boom)

	_, err = s.Sessions().Get(ctx, id)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	_, err = s.Items().FindByText(ctx, "ghost", model.CategoryUsage)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}
