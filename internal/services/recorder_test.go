package services

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/store"
)

func newRecorder(t *testing.T) (*RecorderService, *SchedulerService) {
	t.Helper()
	s := newTestStore(t)
	sched := newScheduler(t, s)
	return NewRecorderService(s, sched, zerolog.Nop()), sched
}

func TestNormalizePhrase(t *testing.T) {
	assert.Equal(t, "go to school", NormalizePhrase("  \"Go   to School!\" "))
	assert.Equal(t, "café", NormalizePhrase("Café..."))
	assert.Equal(t, "a", NormalizePhrase("(a)"))
	assert.Equal(t, "", NormalizePhrase("?!"))
}

func TestMapFindingType(t *testing.T) {
	cases := map[string][2]string{
		"grammar":     {"grammar", "grammar"},
		"word_choice": {"usage", "usage"},
		"Usage":       {"usage", "usage"},
		"suggestion":  {"vocabulary", "unfamiliar"},
		"":            {"vocabulary", "unfamiliar"},
	}
	for in, want := range cases {
		k, c := MapFindingType(in)
		assert.Equal(t, want[0], string(k), in)
		assert.Equal(t, want[1], string(c), in)
	}
}

func TestRecord_PersistsAnnotationsItemsAndFailures(t *testing.T) {
	ctx := context.Background()
	rec, sched := newRecorder(t)
	st := sched.store
	seedSession(t, st, "s1")

	res, err := rec.Record(ctx, &model.AnalysisResult{
		SessionID: "s1",
		UserText:  "Yesterday I goes to the libary.",
		Issues: []model.Finding{
			{Type: "grammar", Original: "I goes", Suggested: "I went", Description: model.Bilingual{Text: "past tense", Translation: "过去时"}, Severity: model.SeverityHigh},
			{Type: "word_choice", Original: "a", Suggested: "an"},
		},
		PronunciationIssues: []model.PronunciationFinding{{Word: "Library", Confidence: 0.42}},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 3, res.AnnotationsStored)
	assert.Equal(t, 2, res.PracticeEntriesStored)
	assert.Equal(t, 2, res.IssuesStored)
	assert.Equal(t, 1, res.PronunciationIssuesStored)
	require.NotZero(t, res.TurnID)

	turns, err := st.Turns().List(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, model.SpeakerUser, turns[0].Speaker)

	anns, err := st.Annotations().ListBySession(ctx, "s1")
	require.NoError(t, err)
	require.Len(t, anns, 3)
	assert.Equal(t, model.KindGrammar, anns[0].Kind)
	assert.Equal(t, model.SeverityHigh, anns[0].Severity)
	assert.Equal(t, model.KindUsage, anns[1].Kind)
	assert.Equal(t, model.SeverityMedium, anns[1].Severity)
	assert.Equal(t, model.KindPronunciation, anns[2].Kind)
	assert.Equal(t, "Low confidence in pronunciation (confidence: 0.42)", anns[2].Description.Text)

	g, err := st.Items().FindByText(ctx, "i goes", model.CategoryGrammar)
	require.NoError(t, err)
	assert.Equal(t, 3, g.DifficultyLevel)
	assert.Equal(t, 1, g.ReviewIntervalDays)
	assert.True(t, g.NextReviewTime.Equal(now.Add(24*time.Hour)))
	assert.Equal(t, "Yesterday I goes to the libary.", g.Context)
	assert.Equal(t, "过去时", g.Description.Translation)

	p, err := st.Items().FindByText(ctx, "library", model.CategoryPronunciation)
	require.NoError(t, err)
	assert.Equal(t, 2, p.DifficultyLevel)

	_, err = st.Items().FindByText(ctx, "a", model.CategoryUsage)
	assert.True(t, model.IsNotFound(err))

	history, err := st.PracticeLog().ListByItem(ctx, g.ItemID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, model.OutcomeFailure, history[0].Outcome)
}

func TestRecord_ExistingItemTakesFailureTransition(t *testing.T) {
	ctx := context.Background()
	rec, sched := newRecorder(t)
	st := sched.store
	seedSession(t, st, "s1")
	existing, err := st.Items().Create(ctx, &model.VocabularyItem{
		Text: "borrow", Category: model.CategoryUsage, NextReviewTime: now.Add(7 * 24 * time.Hour),
		ReviewIntervalDays: 7, DifficultyLevel: 2, CreationTime: now.Add(-time.Hour),
	})
	require.NoError(t, err)

	turn, err := st.Turns().Append(ctx, &model.ConversationTurn{SessionID: "s1", Speaker: model.SpeakerUser, Text: "Can you lend me your pen?"})
	require.NoError(t, err)

	res, err := rec.Record(ctx, &model.AnalysisResult{
		SessionID: "s1",
		TurnID:    &turn.TurnID,
		Issues:    []model.Finding{{Type: "usage", Original: "Borrow!", Description: model.Bilingual{Text: "borrow vs lend"}}},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, turn.TurnID, res.TurnID)
	assert.Equal(t, 1, res.PracticeEntriesStored)

	got, err := st.Items().Get(ctx, existing.ItemID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ReviewIntervalDays)
	assert.Equal(t, 3, got.DifficultyLevel)
	assert.Equal(t, 1, got.PickCount)
	assert.Equal(t, "borrow vs lend", got.Description.Text)
	assert.Equal(t, "Can you lend me your pen?", got.Context)

	turns, err := st.Turns().List(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, turns, 1)
}

func TestRecord_NoFindings(t *testing.T) {
	rec, sched := newRecorder(t)
	seedSession(t, sched.store, "s1")
	res, err := rec.Record(context.Background(), &model.AnalysisResult{SessionID: "s1", UserText: "All good here."}, now)
	require.NoError(t, err)
	assert.Zero(t, res.AnnotationsStored)
	assert.Zero(t, res.PracticeEntriesStored)
	assert.NotZero(t, res.TurnID)
}

func TestRecord_ValidationBeforeStoreAccess(t *testing.T) {
	rec := NewRecorderService(fakeStore{t: t}, nil, zerolog.Nop())
	turnID := int64(1)
	bad := []*model.AnalysisResult{
		nil,
		{UserText: "hi"},
		{SessionID: "s1"},
		{SessionID: "s1", UserText: "hi", Issues: []model.Finding{{Type: "grammar", Original: "  "}}},
		{SessionID: "s1", TurnID: &turnID, Issues: []model.Finding{{Original: "x", Severity: "critical"}}},
		{SessionID: "s1", UserText: "hi", PronunciationIssues: []model.PronunciationFinding{{Word: "hi", Confidence: 1.5}}},
		{SessionID: "s1", UserText: "hi", PronunciationIssues: []model.PronunciationFinding{{Word: "", Confidence: 0.5}}},
	}
	for i, r := range bad {
		_, err := rec.Record(context.Background(), r, now)
		require.Error(t, err, "case %d", i)
		assert.True(t, model.IsValidationError(err), "case %d: %v", i, err)
	}
}

func TestRecord_UnknownSessionAndForeignTurn(t *testing.T) {
	ctx := context.Background()
	rec, sched := newRecorder(t)
	st := sched.store
	seedSession(t, st, "s1")
	seedSession(t, st, "s2")
	other, err := st.Turns().Append(ctx, &model.ConversationTurn{SessionID: "s2", Speaker: model.SpeakerUser, Text: "hey"})
	require.NoError(t, err)

	_, err = rec.Record(ctx, &model.AnalysisResult{SessionID: "missing", UserText: "hi"}, now)
	assert.True(t, model.IsNotFound(err))

	_, err = rec.Record(ctx, &model.AnalysisResult{
		SessionID: "s1", TurnID: &other.TurnID,
		Issues: []model.Finding{{Type: "grammar", Original: "hey you"}},
	}, now)
	assert.True(t, model.IsValidationError(err))

	// nothing from the failed calls was committed
	anns, err := st.Annotations().ListBySession(ctx, "s2")
	require.NoError(t, err)
	assert.Empty(t, anns)
	items, err := st.Items().List(ctx, model.ListItemsRequest{})
	require.NoError(t, err)
	assert.Empty(t, items)
}

// racingStore makes the first `losses` item inserts fail as if another writer
// had inserted the same (text, category) first.
type racingStore struct {
	store.Store
	losses  *atomic.Int32
	creates *atomic.Int32
}

func (r racingStore) WithTx(ctx context.Context, opts store.TxOptions, fn func(store.Store) error) error {
	return r.Store.WithTx(ctx, opts, func(tx store.Store) error {
		return fn(racingStore{Store: tx, losses: r.losses, creates: r.creates})
	})
}

func (r racingStore) Items() store.Items { return racingItems{Items: r.Store.Items(), r: r} }

type racingItems struct {
	store.Items
	r racingStore
}

func (i racingItems) Create(ctx context.Context, it *model.VocabularyItem) (*model.VocabularyItem, error) {
	i.r.creates.Add(1)
	if i.r.losses.Add(-1) >= 0 {
		return nil, fmt.Errorf("create item: %w", model.ErrConflict)
	}
	return i.Items.Create(ctx, it)
}

func newRacingRecorder(t *testing.T, losses int32) (*RecorderService, store.Store, *atomic.Int32) {
	t.Helper()
	base := newTestStore(t)
	seedSession(t, base, "s1")
	rs := racingStore{Store: base, losses: &atomic.Int32{}, creates: &atomic.Int32{}}
	rs.losses.Store(losses)
	return NewRecorderService(rs, newScheduler(t, rs), zerolog.Nop()), base, rs.creates
}

func TestRecord_RetriesOnceWhenItemCreatedConcurrently(t *testing.T) {
	ctx := context.Background()
	rec, base, creates := newRacingRecorder(t, 1)

	sr, err := rec.Record(ctx, &model.AnalysisResult{
		SessionID: "s1",
		UserText:  "He go there",
		Issues:    []model.Finding{{Type: "grammar", Original: "he go"}},
	}, now)
	require.NoError(t, err)
	assert.Equal(t, 1, sr.AnnotationsStored)
	assert.Equal(t, 1, sr.PracticeEntriesStored)
	assert.Equal(t, int32(2), creates.Load())

	it, err := base.Items().FindByText(ctx, "he go", model.CategoryGrammar)
	require.NoError(t, err)
	assert.Equal(t, 3, it.DifficultyLevel)
	turns, err := base.Turns().List(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, turns, 1, "the rolled-back attempt leaves no turn behind")
}

func TestRecord_PersistentConflictIsNotUnavailable(t *testing.T) {
	rec, _, _ := newRacingRecorder(t, 2)
	_, err := rec.Record(context.Background(), &model.AnalysisResult{
		SessionID: "s1",
		UserText:  "He go there",
		Issues:    []model.Finding{{Type: "grammar", Original: "he go"}},
	}, now)
	require.Error(t, err)
	assert.True(t, model.IsConflict(err))
	assert.False(t, model.IsStoreUnavailable(err))
}
