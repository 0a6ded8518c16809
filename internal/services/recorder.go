package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/store"
)

// minPhraseRunes is the shortest normalized fragment that becomes a vocabulary item.
const minPhraseRunes = 2

// New items start one level below their target difficulty; the failure
// transition applied on discovery lifts them onto it.
const (
	newTextItemDifficulty          = 2
	newPronunciationItemDifficulty = 1
)

// RecorderService turns analyzer output into annotations, vocabulary items and
// failure outcomes.
type RecorderService struct {
	store     store.Store
	scheduler *SchedulerService
	log       zerolog.Logger
}

func NewRecorderService(s store.Store, scheduler *SchedulerService, log zerolog.Logger) *RecorderService {
	return &RecorderService{store: s, scheduler: scheduler, log: log}
}

// NormalizePhrase trims surrounding punctuation, lowercases and collapses whitespace.
func NormalizePhrase(s string) string {
	s = strings.TrimFunc(s, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

// MapFindingType maps analyzer vocabulary onto annotation kind and item category.
func MapFindingType(t string) (model.AnnotationKind, model.Category) {
	switch strings.ToLower(strings.TrimSpace(t)) {
	case "grammar", "grammar_error":
		return model.KindGrammar, model.CategoryGrammar
	case "word_choice", "usage":
		return model.KindUsage, model.CategoryUsage
	case "pronunciation":
		return model.KindPronunciation, model.CategoryPronunciation
	default:
		return model.KindVocabulary, model.CategoryUnfamiliar
	}
}

// pronunciationSeverity grades a low-confidence word.
func pronunciationSeverity(confidence float64) model.Severity {
	switch {
	case confidence < 0.4:
		return model.SeverityHigh
	case confidence < 0.7:
		return model.SeverityMedium
	default:
		return model.SeverityLow
	}
}

// Validate rejects malformed analysis results before any store access.
func (r *RecorderService) Validate(res *model.AnalysisResult) error {
	if res == nil {
		return model.NewValidationError("analysis", "is required")
	}
	if strings.TrimSpace(res.SessionID) == "" {
		return model.NewValidationError("sessionId", "is required")
	}
	if res.TurnID == nil && strings.TrimSpace(res.UserText) == "" {
		return model.NewValidationError("turnId", "turnId or userText is required")
	}
	for i, f := range res.Issues {
		if strings.TrimSpace(f.Original) == "" {
			return model.NewValidationError(fmt.Sprintf("issues[%d].original", i), "is required")
		}
		if f.Severity != "" && !f.Severity.IsValid() {
			return model.NewValidationError(fmt.Sprintf("issues[%d].severity", i), "must be low, medium or high")
		}
	}
	for i, p := range res.PronunciationIssues {
		if strings.TrimSpace(p.Word) == "" {
			return model.NewValidationError(fmt.Sprintf("pronunciationIssues[%d].word", i), "is required")
		}
		if p.Confidence < 0 || p.Confidence > 1 {
			return model.NewValidationError(fmt.Sprintf("pronunciationIssues[%d].confidence", i), "must be within [0,1]")
		}
	}
	return nil
}

type finding struct {
	annotation model.ConversationAnnotation
	category   model.Category
	difficulty int
	pron       bool
}

func (r *RecorderService) findings(res *model.AnalysisResult) []finding {
	out := make([]finding, 0, len(res.Issues)+len(res.PronunciationIssues))
	for _, f := range res.Issues {
		kind, category := MapFindingType(f.Type)
		sev := f.Severity
		if sev == "" {
			sev = model.SeverityMedium
		}
		difficulty := newTextItemDifficulty
		if category == model.CategoryPronunciation {
			difficulty = newPronunciationItemDifficulty
		}
		out = append(out, finding{
			annotation: model.ConversationAnnotation{
				Kind:        kind,
				Severity:    sev,
				Original:    strings.TrimSpace(f.Original),
				Suggested:   strings.TrimSpace(f.Suggested),
				Description: f.Description,
			},
			category:   category,
			difficulty: difficulty,
			pron:       category == model.CategoryPronunciation,
		})
	}
	for _, p := range res.PronunciationIssues {
		out = append(out, finding{
			annotation: model.ConversationAnnotation{
				Kind:     model.KindPronunciation,
				Severity: pronunciationSeverity(p.Confidence),
				Original: strings.TrimSpace(p.Word),
				Description: model.Bilingual{
					Text: fmt.Sprintf("Low confidence in pronunciation (confidence: %.2f)", p.Confidence),
				},
			},
			category:   model.CategoryPronunciation,
			difficulty: newPronunciationItemDifficulty,
			pron:       true,
		})
	}
	return out
}

// Record persists every finding of one analysis result in a single transaction:
// the annotation, the upserted vocabulary item and a failure outcome for it.
func (r *RecorderService) Record(ctx context.Context, res *model.AnalysisResult, now time.Time) (*model.StorageResult, error) {
	if err := r.Validate(res); err != nil {
		return nil, err
	}
	fs := r.findings(res)

	var out model.StorageResult
	record := func(tx store.Store) error {
		out = model.StorageResult{}
		if _, err := tx.Sessions().Get(ctx, res.SessionID); err != nil {
			return err
		}
		turn, err := r.resolveTurn(ctx, tx, res, now)
		if err != nil {
			return err
		}
		out.TurnID = turn.TurnID

		for _, f := range fs {
			a := f.annotation
			a.TurnID = turn.TurnID
			a.CreationTime = now
			if _, err := tx.Annotations().Create(ctx, &a); err != nil {
				return err
			}
			out.AnnotationsStored++
			if f.pron {
				out.PronunciationIssuesStored++
			} else {
				out.IssuesStored++
			}

			phrase := NormalizePhrase(a.Original)
			if utf8.RuneCountInString(phrase) < minPhraseRunes {
				continue
			}
			it, err := r.upsertItem(ctx, tx, phrase, f, turn.Text, now)
			if err != nil {
				return err
			}
			if _, err := r.scheduler.apply(ctx, tx, it, res.SessionID, model.OutcomeFailure, now); err != nil {
				return err
			}
			out.PracticeEntriesStored++
		}
		return nil
	}
	err := r.store.WithTx(ctx, store.TxOptions{}, record)
	if model.IsConflict(err) {
		// A concurrent recorder created the same item first; the rerun finds it.
		r.log.Debug().Err(err).Str("session_id", res.SessionID).Msg("item created concurrently, retrying analysis")
		err = r.store.WithTx(ctx, store.TxOptions{}, record)
	}
	if err != nil {
		return nil, err
	}

	for _, f := range fs {
		annotationsStoredTotal.WithLabelValues(string(f.annotation.Kind)).Inc()
	}
	outcomesTotal.WithLabelValues(string(model.OutcomeFailure), "recorder").Add(float64(out.PracticeEntriesStored))
	r.log.Info().
		Str("session_id", res.SessionID).
		Int64("turn_id", out.TurnID).
		Int("annotations", out.AnnotationsStored).
		Int("practice_entries", out.PracticeEntriesStored).
		Msg("analysis recorded")
	return &out, nil
}

// resolveTurn loads the referenced turn or appends the user turn carried by the result.
func (r *RecorderService) resolveTurn(ctx context.Context, tx store.Store, res *model.AnalysisResult, now time.Time) (*model.ConversationTurn, error) {
	if res.TurnID != nil {
		t, err := tx.Turns().Get(ctx, *res.TurnID)
		if err != nil {
			return nil, err
		}
		if t.SessionID != res.SessionID {
			return nil, model.NewValidationError("turnId", "turn belongs to another session")
		}
		return t, nil
	}
	return tx.Turns().Append(ctx, &model.ConversationTurn{
		SessionID:    res.SessionID,
		Speaker:      model.SpeakerUser,
		Text:         res.UserText,
		CreationTime: now,
	})
}

// upsertItem returns the locked item for (phrase, category), creating it when new.
func (r *RecorderService) upsertItem(ctx context.Context, tx store.Store, phrase string, f finding, sentence string, now time.Time) (*model.VocabularyItem, error) {
	it, err := tx.Items().FindByText(ctx, phrase, f.category)
	switch {
	case err == nil:
		if f.annotation.Description.Text != "" {
			it.Description = f.annotation.Description
		}
		it.Context = sentence
		return it, nil
	case model.IsNotFound(err):
		return tx.Items().Create(ctx, &model.VocabularyItem{
			Text:               phrase,
			Category:           f.category,
			Description:        f.annotation.Description,
			Context:            sentence,
			CreationTime:       now,
			NextReviewTime:     now,
			ReviewIntervalDays: 1,
			DifficultyLevel:    f.difficulty,
		})
	default:
		return nil, err
	}
}
