package services

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/store"
)

// NewTurn is the input for appending a conversation turn.
type NewTurn struct {
	Speaker  model.Speaker      `json:"speaker"`
	Text     string             `json:"text"`
	AudioRef *string            `json:"audioRef,omitempty"`
	Metrics  *model.TurnMetrics `json:"metrics,omitempty"`
}

// SessionService covers the session lifecycle and conversation history.
type SessionService struct {
	store store.Store
	log   zerolog.Logger
}

func NewSessionService(s store.Store, log zerolog.Logger) *SessionService {
	return &SessionService{store: s, log: log}
}

func (s *SessionService) GetSession(ctx context.Context, sessionID string) (*model.LearningSession, error) {
	return s.store.Sessions().Get(ctx, sessionID)
}

func (s *SessionService) ListSessions(ctx context.Context, limit int) ([]*model.LearningSession, error) {
	return s.store.Sessions().List(ctx, limit)
}

// SetTopic records the generated topic on the session.
func (s *SessionService) SetTopic(ctx context.Context, sessionID, topic string) error {
	if strings.TrimSpace(topic) == "" {
		return model.NewValidationError("topic", "is required")
	}
	return s.store.Sessions().SetTopic(ctx, sessionID, topic)
}

// CloseSession sets the end time. Closing twice keeps the first end time.
func (s *SessionService) CloseSession(ctx context.Context, sessionID string, now time.Time) (*model.LearningSession, error) {
	var out *model.LearningSession
	err := s.store.WithTx(ctx, store.TxOptions{}, func(tx store.Store) error {
		if err := tx.Sessions().End(ctx, sessionID, now); err != nil {
			return err
		}
		var err error
		out, err = tx.Sessions().Get(ctx, sessionID)
		return err
	})
	if err != nil {
		return nil, err
	}
	s.log.Info().Str("session_id", sessionID).Int("exchanges", out.ExchangeCount).Msg("session closed")
	return out, nil
}

// AppendTurn stores a turn. Tutor turns complete an exchange.
func (s *SessionService) AppendTurn(ctx context.Context, sessionID string, in NewTurn, now time.Time) (*model.ConversationTurn, error) {
	if !in.Speaker.IsValid() {
		return nil, model.NewValidationError("speaker", "must be user or tutor")
	}
	if strings.TrimSpace(in.Text) == "" {
		return nil, model.NewValidationError("text", "is required")
	}
	var out *model.ConversationTurn
	err := s.store.WithTx(ctx, store.TxOptions{}, func(tx store.Store) error {
		if _, err := tx.Sessions().Get(ctx, sessionID); err != nil {
			return err
		}
		var err error
		out, err = tx.Turns().Append(ctx, &model.ConversationTurn{
			SessionID:    sessionID,
			Speaker:      in.Speaker,
			Text:         in.Text,
			AudioRef:     in.AudioRef,
			Metrics:      in.Metrics,
			CreationTime: now,
		})
		if err != nil {
			return err
		}
		if in.Speaker == model.SpeakerTutor {
			return tx.Sessions().IncrementExchanges(ctx, sessionID)
		}
		return nil
	})
	return out, err
}

func (s *SessionService) ListTurns(ctx context.Context, sessionID string) ([]*model.ConversationTurn, error) {
	if _, err := s.store.Sessions().Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.Turns().List(ctx, sessionID)
}

func (s *SessionService) ListAnnotations(ctx context.Context, sessionID string) ([]*model.ConversationAnnotation, error) {
	if _, err := s.store.Sessions().Get(ctx, sessionID); err != nil {
		return nil, err
	}
	return s.store.Annotations().ListBySession(ctx, sessionID)
}

// SessionStats counts turns, annotations by kind and practice outcomes for a session.
func (s *SessionService) SessionStats(ctx context.Context, sessionID string) (*model.SessionStats, error) {
	stats := &model.SessionStats{
		SessionID:         sessionID,
		AnnotationsByKind: map[model.AnnotationKind]int{},
		OutcomeCounts:     map[model.Outcome]int{},
	}
	err := s.store.WithTx(ctx, store.TxOptions{Snapshot: true}, func(tx store.Store) error {
		if _, err := tx.Sessions().Get(ctx, sessionID); err != nil {
			return err
		}
		turns, err := tx.Turns().List(ctx, sessionID)
		if err != nil {
			return err
		}
		for _, t := range turns {
			if t.Speaker == model.SpeakerTutor {
				stats.TutorTurns++
			} else {
				stats.UserTurns++
			}
		}
		anns, err := tx.Annotations().ListBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		for _, a := range anns {
			stats.AnnotationsByKind[a.Kind]++
		}
		entries, err := tx.PracticeLog().ListBySession(ctx, sessionID)
		if err != nil {
			return err
		}
		for _, e := range entries {
			stats.OutcomeCounts[e.Outcome]++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return stats, nil
}
