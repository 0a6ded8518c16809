package cadence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrislearn/mofa-studio/internal/model"
)

var t0 = time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)

func TestNext_FollowsTableAndClamps(t *testing.T) {
	assert.Equal(t, 1, Next(0))
	assert.Equal(t, 2, Next(1))
	assert.Equal(t, 4, Next(2))
	assert.Equal(t, 4, Next(3))
	assert.Equal(t, 30, Next(14))
	assert.Equal(t, 30, Next(30))
	assert.Equal(t, 30, Next(90))
}

func TestApply_SuccessSequence(t *testing.T) {
	s := State{IntervalDays: 1, Difficulty: 3, NextReviewTime: t0}
	got := []int{s.IntervalDays}
	streak := 0
	for i := 0; i < 7; i++ {
		s = Apply(s, model.OutcomeSuccess, t0, streak, Policy{})
		streak++
		got = append(got, s.IntervalDays)
	}
	assert.Equal(t, []int{1, 2, 4, 7, 14, 30, 30, 30}, got)
	assert.Equal(t, 7, s.PickCount)
	assert.Equal(t, 3, s.Difficulty)
}

func TestApply_SuccessSetsNextReview(t *testing.T) {
	s := Apply(State{IntervalDays: 1, Difficulty: 2, NextReviewTime: t0}, model.OutcomeSuccess, t0, 0, DefaultPolicy)
	assert.Equal(t, 2, s.IntervalDays)
	assert.Equal(t, t0.Add(48*time.Hour), s.NextReviewTime)
	require.NotNil(t, s.LastPickedTime)
	assert.Equal(t, t0, *s.LastPickedTime)
	assert.Equal(t, 1, s.PickCount)
}

func TestApply_FailureResetsAndRaisesDifficulty(t *testing.T) {
	for _, start := range []int{1, 4, 30} {
		s := Apply(State{IntervalDays: start, Difficulty: 3}, model.OutcomeFailure, t0, 0, DefaultPolicy)
		assert.Equal(t, 1, s.IntervalDays)
		assert.Equal(t, 4, s.Difficulty)
		assert.Equal(t, t0.Add(Day), s.NextReviewTime)
	}
	s := Apply(State{IntervalDays: 7, Difficulty: 5}, model.OutcomeFailure, t0, 0, DefaultPolicy)
	assert.Equal(t, 5, s.Difficulty)
}

func TestApply_NeutralKeepsCadence(t *testing.T) {
	later := t0.Add(10 * Day)
	s := Apply(State{IntervalDays: 4, Difficulty: 2, NextReviewTime: later}, model.OutcomeNeutral, t0, 0, DefaultPolicy)
	assert.Equal(t, 4, s.IntervalDays)
	assert.Equal(t, 2, s.Difficulty)
	assert.Equal(t, 1, s.PickCount)
	assert.Equal(t, later, s.NextReviewTime)

	// an overdue item is pushed to satisfy next >= last picked + interval
	s = Apply(State{IntervalDays: 4, Difficulty: 2, NextReviewTime: t0.Add(-Day)}, model.OutcomeNeutral, t0, 0, DefaultPolicy)
	assert.Equal(t, t0.Add(4*Day), s.NextReviewTime)
}

func TestApply_DifficultyDropsEverySecondSuccess(t *testing.T) {
	s := State{IntervalDays: 1, Difficulty: 4}
	s = Apply(s, model.OutcomeSuccess, t0, 0, DefaultPolicy)
	assert.Equal(t, 4, s.Difficulty)
	s = Apply(s, model.OutcomeSuccess, t0, 1, DefaultPolicy)
	assert.Equal(t, 3, s.Difficulty)
	s = Apply(s, model.OutcomeSuccess, t0, 2, DefaultPolicy)
	assert.Equal(t, 3, s.Difficulty)
	s = Apply(s, model.OutcomeSuccess, t0, 3, DefaultPolicy)
	assert.Equal(t, 2, s.Difficulty)

	s = State{IntervalDays: 1, Difficulty: 1}
	s = Apply(s, model.OutcomeSuccess, t0, 1, DefaultPolicy)
	assert.Equal(t, 1, s.Difficulty)
}

func TestTrailingSuccesses(t *testing.T) {
	h := []model.Outcome{model.OutcomeSuccess, model.OutcomeFailure, model.OutcomeSuccess, model.OutcomeNeutral, model.OutcomeSuccess}
	assert.Equal(t, 2, TrailingSuccesses(h))
	assert.Equal(t, 0, TrailingSuccesses(nil))
	assert.Equal(t, 0, TrailingSuccesses([]model.Outcome{model.OutcomeFailure}))
}

func TestDayWindow(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	now := time.Date(2026, 3, 2, 20, 0, 0, 0, time.UTC) // 04:00 on Mar 3 in UTC+8
	start, end := DayWindow(now, loc)
	assert.Equal(t, time.Date(2026, 3, 3, 0, 0, 0, 0, loc), start)
	assert.Equal(t, 24*time.Hour, end.Sub(start))

	start, _ = DayWindow(now, nil)
	assert.Equal(t, time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC), start)
}

func TestStateRoundTripOnItem(t *testing.T) {
	it := model.VocabularyItem{ReviewIntervalDays: 2, DifficultyLevel: 3, PickCount: 4, NextReviewTime: t0}
	s := Apply(StateOf(it), model.OutcomeFailure, t0, 0, DefaultPolicy)
	s.ApplyTo(&it)
	assert.Equal(t, 1, it.ReviewIntervalDays)
	assert.Equal(t, 4, it.DifficultyLevel)
	assert.Equal(t, 5, it.PickCount)
}
