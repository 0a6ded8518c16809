package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/chrislearn/mofa-studio/internal/core/cadence"
	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/store"
)

// NewItem is the input for seeding a vocabulary item.
type NewItem struct {
	Text            string          `json:"text" yaml:"text"`
	Category        model.Category  `json:"category" yaml:"category"`
	Description     model.Bilingual `json:"description" yaml:"description"`
	Context         string          `json:"context,omitempty" yaml:"context"`
	DifficultyLevel int             `json:"difficultyLevel,omitempty" yaml:"difficulty"`
}

// ImportResult reports a bulk seeding run.
type ImportResult struct {
	Created int `json:"created"`
	Skipped int `json:"skipped"`
}

// ItemService manages the vocabulary catalogue outside of scheduling.
type ItemService struct {
	store store.Store
	log   zerolog.Logger
}

func NewItemService(s store.Store, log zerolog.Logger) *ItemService {
	return &ItemService{store: s, log: log}
}

func (in NewItem) validate() error {
	if NormalizePhrase(in.Text) == "" {
		return model.NewValidationError("text", "is required")
	}
	if !in.Category.IsValid() {
		return model.NewValidationError("category", "must be pronunciation, grammar, usage or unfamiliar")
	}
	if in.DifficultyLevel != 0 && (in.DifficultyLevel < cadence.MinDifficulty || in.DifficultyLevel > cadence.MaxDifficulty) {
		return model.NewValidationError("difficultyLevel", "must be between 1 and 5")
	}
	return nil
}

func (in NewItem) toModel(now time.Time) *model.VocabularyItem {
	d := in.DifficultyLevel
	if d == 0 {
		d = 3
	}
	return &model.VocabularyItem{
		Text:               NormalizePhrase(in.Text),
		Category:           in.Category,
		Description:        in.Description,
		Context:            in.Context,
		CreationTime:       now,
		NextReviewTime:     now,
		ReviewIntervalDays: 1,
		DifficultyLevel:    d,
	}
}

// CreateItem seeds one item, due immediately.
func (s *ItemService) CreateItem(ctx context.Context, in NewItem, now time.Time) (*model.VocabularyItem, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	var out *model.VocabularyItem
	err := s.store.WithTx(ctx, store.TxOptions{}, func(tx store.Store) error {
		m := in.toModel(now)
		_, err := tx.Items().FindByText(ctx, m.Text, m.Category)
		if err == nil {
			return fmt.Errorf("item %q (%s): %w", m.Text, m.Category, model.ErrConflict)
		}
		if !model.IsNotFound(err) {
			return err
		}
		out, err = tx.Items().Create(ctx, m)
		return err
	})
	return out, err
}

// ImportItems seeds many items in one transaction. Items whose (text, category)
// already exists are skipped.
func (s *ItemService) ImportItems(ctx context.Context, items []NewItem, now time.Time) (*ImportResult, error) {
	for i, in := range items {
		if err := in.validate(); err != nil {
			var ve model.ValidationError
			if errors.As(err, &ve) {
				ve.Field = fmt.Sprintf("items[%d].%s", i, ve.Field)
				return nil, ve
			}
			return nil, err
		}
	}
	res := &ImportResult{}
	err := s.store.WithTx(ctx, store.TxOptions{}, func(tx store.Store) error {
		*res = ImportResult{}
		for _, in := range items {
			m := in.toModel(now)
			_, err := tx.Items().FindByText(ctx, m.Text, m.Category)
			if err == nil {
				res.Skipped++
				continue
			}
			if !model.IsNotFound(err) {
				return err
			}
			if _, err := tx.Items().Create(ctx, m); err != nil {
				return err
			}
			res.Created++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Int("created", res.Created).Int("skipped", res.Skipped).Msg("items imported")
	return res, nil
}

func (s *ItemService) GetItem(ctx context.Context, itemID int64) (*model.VocabularyItem, error) {
	return s.store.Items().Get(ctx, itemID)
}

func (s *ItemService) ListItems(ctx context.Context, req model.ListItemsRequest) ([]*model.VocabularyItem, error) {
	if req.Category != "" && !req.Category.IsValid() {
		return nil, model.NewValidationError("category", "unknown category")
	}
	return s.store.Items().List(ctx, req)
}

// ItemHistory returns the practice log of one item, oldest first.
func (s *ItemService) ItemHistory(ctx context.Context, itemID int64) ([]*model.PracticeLogEntry, error) {
	if _, err := s.store.Items().Get(ctx, itemID); err != nil {
		return nil, err
	}
	return s.store.PracticeLog().ListByItem(ctx, itemID)
}
