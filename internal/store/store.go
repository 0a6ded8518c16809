package store

import (
	"context"
	"time"

	"github.com/chrislearn/mofa-studio/internal/model"
)

// Store exposes persistence operations required by services.
// Implementations live under internal/store/<driver>/ (sqlite, postgres).
type Store interface {
	Items() Items
	Sessions() Sessions
	Turns() Turns
	Annotations() Annotations
	PracticeLog() PracticeLog

	// WithTx runs fn inside one transaction and commits when fn returns nil.
	// The Store passed to fn is bound to that transaction. Calling WithTx on a
	// transaction-bound Store runs fn in the enclosing transaction.
	WithTx(ctx context.Context, opts TxOptions, fn func(tx Store) error) error

	Close() error
}

// TxOptions tune a transaction.
type TxOptions struct {
	// Snapshot requests a consistent snapshot for multi-row reads.
	Snapshot bool
}

// CapWindow restricts candidate items to those with fewer than Cap practice log
// entries in [Start, End).
type CapWindow struct {
	Start time.Time
	End   time.Time
	Cap   int
}

type Items interface {
	Create(ctx context.Context, it *model.VocabularyItem) (*model.VocabularyItem, error)
	Get(ctx context.Context, itemID int64) (*model.VocabularyItem, error)
	// GetForUpdate reads the item and holds a row lock until the transaction ends.
	GetForUpdate(ctx context.Context, itemID int64) (*model.VocabularyItem, error)
	FindByText(ctx context.Context, text string, category model.Category) (*model.VocabularyItem, error)
	Update(ctx context.Context, it *model.VocabularyItem) error
	List(ctx context.Context, req model.ListItemsRequest) ([]*model.VocabularyItem, error)
	// Due returns items with next review <= now under the cap, most overdue first,
	// harder first among ties.
	Due(ctx context.Context, now time.Time, w CapWindow, limit int) ([]*model.VocabularyItem, error)
	// Upcoming returns items with next review > now under the cap, soonest first.
	Upcoming(ctx context.Context, now time.Time, w CapWindow, limit int) ([]*model.VocabularyItem, error)
}

type Sessions interface {
	Create(ctx context.Context, s *model.LearningSession) (*model.LearningSession, error)
	Get(ctx context.Context, sessionID string) (*model.LearningSession, error)
	List(ctx context.Context, limit int) ([]*model.LearningSession, error)
	SetTopic(ctx context.Context, sessionID, topic string) error
	// End sets the end time unless the session is already closed.
	End(ctx context.Context, sessionID string, at time.Time) error
	IncrementExchanges(ctx context.Context, sessionID string) error
}

type Turns interface {
	Append(ctx context.Context, t *model.ConversationTurn) (*model.ConversationTurn, error)
	Get(ctx context.Context, turnID int64) (*model.ConversationTurn, error)
	List(ctx context.Context, sessionID string) ([]*model.ConversationTurn, error)
}

type Annotations interface {
	Create(ctx context.Context, a *model.ConversationAnnotation) (*model.ConversationAnnotation, error)
	ListBySession(ctx context.Context, sessionID string) ([]*model.ConversationAnnotation, error)
}

type PracticeLog interface {
	Append(ctx context.Context, e *model.PracticeLogEntry) (*model.PracticeLogEntry, error)
	CountInWindow(ctx context.Context, itemID int64, start, end time.Time) (int, error)
	// RecentOutcomes returns up to limit latest outcomes for the item, oldest first.
	RecentOutcomes(ctx context.Context, itemID int64, limit int) ([]model.Outcome, error)
	ListByItem(ctx context.Context, itemID int64) ([]*model.PracticeLogEntry, error)
	ListBySession(ctx context.Context, sessionID string) ([]*model.PracticeLogEntry, error)
}
