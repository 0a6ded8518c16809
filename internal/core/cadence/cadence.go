// Package cadence holds the pure review-cadence rules: the interval progression,
// the outcome transitions and the calendar-day window used by the daily cap.
package cadence

import (
	"time"

	"github.com/chrislearn/mofa-studio/internal/model"
)

// Progression is the ordered table of review intervals in days. Success moves one
// step along it and clamps at the last entry.
var Progression = [...]int{1, 2, 4, 7, 14, 30}

const (
	MinDifficulty = 1
	MaxDifficulty = 5
	Day           = 24 * time.Hour
)

// Next returns the interval that follows current in Progression. Values that are
// not in the table advance to the first larger entry.
func Next(current int) int {
	for _, v := range Progression {
		if v > current {
			return v
		}
	}
	return Progression[len(Progression)-1]
}

// ClampDifficulty keeps a difficulty level within [MinDifficulty, MaxDifficulty].
func ClampDifficulty(d int) int {
	if d < MinDifficulty {
		return MinDifficulty
	}
	if d > MaxDifficulty {
		return MaxDifficulty
	}
	return d
}

// State is the slice of a vocabulary item the transitions read and write.
type State struct {
	IntervalDays   int
	Difficulty     int
	PickCount      int
	LastPickedTime *time.Time
	NextReviewTime time.Time
}

// StateOf extracts the cadence state from an item.
func StateOf(it model.VocabularyItem) State {
	return State{
		IntervalDays:   it.ReviewIntervalDays,
		Difficulty:     it.DifficultyLevel,
		PickCount:      it.PickCount,
		LastPickedTime: it.LastPickedTime,
		NextReviewTime: it.NextReviewTime,
	}
}

// ApplyTo writes s back onto it.
func (s State) ApplyTo(it *model.VocabularyItem) {
	it.ReviewIntervalDays = s.IntervalDays
	it.DifficultyLevel = s.Difficulty
	it.PickCount = s.PickCount
	it.LastPickedTime = s.LastPickedTime
	it.NextReviewTime = s.NextReviewTime
}

// Policy tunes the transitions. DropStreak is the number of consecutive successes
// after which difficulty drops by one; zero disables the drop.
type Policy struct {
	DropStreak int
}

// DefaultPolicy drops difficulty after two consecutive successes.
var DefaultPolicy = Policy{DropStreak: 2}

// Apply returns the state after one practice exposure at now. priorStreak is the
// number of successes immediately preceding this one, neutral entries skipped.
func Apply(s State, outcome model.Outcome, now time.Time, priorStreak int, p Policy) State {
	picked := now
	s.PickCount++
	s.LastPickedTime = &picked
	if s.IntervalDays < 1 {
		s.IntervalDays = 1
	}

	switch outcome {
	case model.OutcomeSuccess:
		s.IntervalDays = Next(s.IntervalDays)
		s.NextReviewTime = now.Add(time.Duration(s.IntervalDays) * Day)
		streak := priorStreak + 1
		if p.DropStreak > 0 && streak%p.DropStreak == 0 {
			s.Difficulty--
		}
	case model.OutcomeFailure:
		s.IntervalDays = 1
		s.NextReviewTime = now.Add(Day)
		s.Difficulty++
	case model.OutcomeNeutral:
		// Interval is kept; next review is pushed only as far as the
		// last-picked invariant requires.
		floor := now.Add(time.Duration(s.IntervalDays) * Day)
		if s.NextReviewTime.Before(floor) {
			s.NextReviewTime = floor
		}
	}
	s.Difficulty = ClampDifficulty(s.Difficulty)
	return s
}

// TrailingSuccesses counts the successes at the end of a chronologically ordered
// outcome history, skipping neutral entries and stopping at the first failure.
func TrailingSuccesses(history []model.Outcome) int {
	n := 0
	for i := len(history) - 1; i >= 0; i-- {
		switch history[i] {
		case model.OutcomeSuccess:
			n++
		case model.OutcomeNeutral:
			continue
		default:
			return n
		}
	}
	return n
}

// DayWindow returns the [start, end) bounds of the calendar day containing now
// in loc.
func DayWindow(now time.Time, loc *time.Location) (time.Time, time.Time) {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	start := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	return start, start.AddDate(0, 0, 1)
}
