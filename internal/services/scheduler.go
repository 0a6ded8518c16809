package services

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chrislearn/mofa-studio/internal/config"
	"github.com/chrislearn/mofa-studio/internal/core/cadence"
	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/store"
)

// streakLookback bounds how many log entries are read to find the trailing success run.
const streakLookback = 64

// SchedulerPolicy tunes selection and cadence updates.
type SchedulerPolicy struct {
	DailyCap int
	MinWords int
	MaxWords int
	// Location defines calendar-day boundaries for the daily cap.
	Location *time.Location
	Cadence  cadence.Policy
}

// DefaultSchedulerPolicy returns cap 5, bounds 20/30, UTC days and a two-success drop.
func DefaultSchedulerPolicy() SchedulerPolicy {
	return SchedulerPolicy{
		DailyCap: 5,
		MinWords: 20,
		MaxWords: 30,
		Location: time.UTC,
		Cadence:  cadence.DefaultPolicy,
	}
}

// PolicyFromConfig builds the scheduler policy from service configuration.
func PolicyFromConfig(cfg *config.Config) SchedulerPolicy {
	return SchedulerPolicy{
		DailyCap: cfg.DailyCap,
		MinWords: cfg.MinWords,
		MaxWords: cfg.MaxWords,
		Location: cfg.Location(),
		Cadence:  cadence.Policy{DropStreak: cfg.DifficultyDropStreak},
	}
}

// SchedulerService selects review items for sessions and applies practice outcomes.
type SchedulerService struct {
	store  store.Store
	policy SchedulerPolicy
	log    zerolog.Logger
}

func NewSchedulerService(s store.Store, p SchedulerPolicy, log zerolog.Logger) *SchedulerService {
	if p.Location == nil {
		p.Location = time.UTC
	}
	return &SchedulerService{store: s, policy: p, log: log}
}

// Policy returns the active policy.
func (s *SchedulerService) Policy() SchedulerPolicy { return s.policy }

// Bounds resolves requested selection bounds. A zero maxCount selects the
// configured defaults; negative or inverted bounds are rejected.
func (s *SchedulerService) Bounds(minCount, maxCount int) (int, int, error) {
	if minCount < 0 || maxCount < 0 {
		return 0, 0, model.NewValidationError("bounds", "minCount and maxCount must not be negative")
	}
	if maxCount == 0 {
		maxCount = s.policy.MaxWords
		if minCount == 0 {
			minCount = s.policy.MinWords
		}
	}
	if minCount > maxCount {
		return 0, 0, model.NewValidationError("bounds", "minCount must not exceed maxCount")
	}
	return minCount, maxCount, nil
}

func (s *SchedulerService) capWindow(now time.Time) store.CapWindow {
	start, end := cadence.DayWindow(now, s.policy.Location)
	return store.CapWindow{Start: start, End: end, Cap: s.policy.DailyCap}
}

// Select chooses up to maxCount due items, backfills with upcoming items until
// minCount, and persists a new session referencing them. Selection and session
// creation commit together.
func (s *SchedulerService) Select(ctx context.Context, now time.Time, minCount, maxCount int) (*model.SessionSelection, error) {
	minCount, maxCount, err := s.Bounds(minCount, maxCount)
	if err != nil {
		return nil, err
	}

	var sel model.SessionSelection
	err = s.store.WithTx(ctx, store.TxOptions{Snapshot: true}, func(tx store.Store) error {
		w := s.capWindow(now)
		chosen, err := tx.Items().Due(ctx, now, w, maxCount)
		if err != nil {
			return err
		}
		due := len(chosen)
		if len(chosen) < minCount {
			upcoming, err := tx.Items().Upcoming(ctx, now, w, minCount-len(chosen))
			if err != nil {
				return err
			}
			chosen = append(chosen, upcoming...)
		}

		sess := &model.LearningSession{
			SessionID:     uuid.NewString(),
			TargetItemIDs: make([]int64, 0, len(chosen)),
			StartTime:     now,
		}
		sel.Items = make([]model.VocabularyItem, 0, len(chosen))
		for _, it := range chosen {
			sess.TargetItemIDs = append(sess.TargetItemIDs, it.ItemID)
			sel.Items = append(sel.Items, *it)
		}
		if _, err := tx.Sessions().Create(ctx, sess); err != nil {
			return err
		}
		sel.SessionID = sess.SessionID

		s.log.Info().
			Str("session_id", sess.SessionID).
			Int("due", due).
			Int("backfilled", len(chosen)-due).
			Int("min", minCount).
			Int("max", maxCount).
			Msg("session selected")
		return nil
	})
	if err != nil {
		return nil, err
	}

	sessionsSelectedTotal.Inc()
	selectionSize.Observe(float64(len(sel.Items)))
	return &sel, nil
}

// RecordOutcome applies one practice outcome to an item inside a transaction
// that holds the item's row lock, and appends the practice log entry.
func (s *SchedulerService) RecordOutcome(ctx context.Context, itemID int64, sessionID string, outcome model.Outcome, now time.Time) (*model.VocabularyItem, error) {
	if itemID <= 0 {
		return nil, model.NewValidationError("itemId", "must be positive")
	}
	if sessionID == "" {
		return nil, model.NewValidationError("sessionId", "is required")
	}
	if !outcome.IsValid() {
		return nil, model.NewValidationError("outcome", "must be success, failure or neutral")
	}

	var out *model.VocabularyItem
	err := s.store.WithTx(ctx, store.TxOptions{}, func(tx store.Store) error {
		if _, err := tx.Sessions().Get(ctx, sessionID); err != nil {
			return err
		}
		it, err := tx.Items().GetForUpdate(ctx, itemID)
		if err != nil {
			return err
		}
		out, err = s.apply(ctx, tx, it, sessionID, outcome, now)
		return err
	})
	if err != nil {
		return nil, err
	}
	outcomesTotal.WithLabelValues(string(outcome), "scheduler").Inc()
	return out, nil
}

// apply runs the cadence transition on a locked item and logs the exposure.
func (s *SchedulerService) apply(ctx context.Context, tx store.Store, it *model.VocabularyItem, sessionID string, outcome model.Outcome, now time.Time) (*model.VocabularyItem, error) {
	prior := 0
	if outcome == model.OutcomeSuccess && s.policy.Cadence.DropStreak > 0 {
		history, err := tx.PracticeLog().RecentOutcomes(ctx, it.ItemID, streakLookback)
		if err != nil {
			return nil, err
		}
		prior = cadence.TrailingSuccesses(history)
	}

	before := cadence.StateOf(*it)
	after := cadence.Apply(before, outcome, now, prior, s.policy.Cadence)
	after.ApplyTo(it)
	if err := tx.Items().Update(ctx, it); err != nil {
		return nil, err
	}
	if _, err := tx.PracticeLog().Append(ctx, &model.PracticeLogEntry{
		ItemID:      it.ItemID,
		SessionID:   sessionID,
		PracticedAt: now,
		Outcome:     outcome,
	}); err != nil {
		return nil, err
	}

	s.log.Debug().
		Int64("item_id", it.ItemID).
		Str("session_id", sessionID).
		Str("outcome", string(outcome)).
		Int("interval_from", before.IntervalDays).
		Int("interval_to", after.IntervalDays).
		Int("difficulty", after.Difficulty).
		Msg("outcome applied")
	return it, nil
}
