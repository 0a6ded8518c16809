package sqlstore

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/store"
)

const itemColumns = `item_id, text, category, description, description_translation, context,
	created_at, last_picked_at, next_review_at, review_interval_days, difficulty_level, pick_count`

// rankOrder: most overdue first, harder first among ties, then oldest.
const rankOrder = ` ORDER BY i.next_review_at ASC, i.difficulty_level DESC, i.created_at ASC, i.item_id ASC`

const underCap = ` AND (SELECT COUNT(*) FROM word_practice_log l
	WHERE l.item_id = i.item_id AND l.practiced_at >= ? AND l.practiced_at < ?) < ?`

type items struct{ s *Store }

func scanItem(r scanner) (*model.VocabularyItem, error) {
	var (
		it       model.VocabularyItem
		category string
		created  int64
		last     sql.NullInt64
		next     int64
	)
	if err := r.Scan(&it.ItemID, &it.Text, &category, &it.Description.Text, &it.Description.Translation, &it.Context,
		&created, &last, &next, &it.ReviewIntervalDays, &it.DifficultyLevel, &it.PickCount); err != nil {
		return nil, err
	}
	it.Category = model.Category(category)
	it.CreationTime = fromMicros(created)
	it.LastPickedTime = fromNullMicros(last)
	it.NextReviewTime = fromMicros(next)
	return &it, nil
}

func (i *items) collect(ctx context.Context, op, query string, args ...any) ([]*model.VocabularyItem, error) {
	rows, err := i.s.query(ctx, query, args...)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()
	var out []*model.VocabularyItem
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, wrap(op, err)
		}
		out = append(out, it)
	}
	return out, wrap(op, rows.Err())
}

func (i *items) Create(ctx context.Context, in *model.VocabularyItem) (*model.VocabularyItem, error) {
	out := *in
	out.CreationTime = nowIfZero(out.CreationTime)
	if out.NextReviewTime.IsZero() {
		out.NextReviewTime = out.CreationTime
	}
	row := i.s.queryRow(ctx, `
		INSERT INTO vocabulary_items (text, category, description, description_translation, context,
			created_at, last_picked_at, next_review_at, review_interval_days, difficulty_level, pick_count)
		VALUES (?,?,?,?,?,?,?,?,?,?,?)
		RETURNING item_id`,
		out.Text, string(out.Category), out.Description.Text, out.Description.Translation, out.Context,
		micros(out.CreationTime), nullMicros(out.LastPickedTime), micros(out.NextReviewTime),
		out.ReviewIntervalDays, out.DifficultyLevel, out.PickCount)
	if err := row.Scan(&out.ItemID); err != nil {
		return nil, i.s.conflict("create item", err)
	}
	out.CreationTime = fromMicros(micros(out.CreationTime))
	out.NextReviewTime = fromMicros(micros(out.NextReviewTime))
	return &out, nil
}

func (i *items) Get(ctx context.Context, itemID int64) (*model.VocabularyItem, error) {
	it, err := scanItem(i.s.queryRow(ctx, `SELECT `+itemColumns+` FROM vocabulary_items WHERE item_id = ?`, itemID))
	return it, wrap("get item", err)
}

func (i *items) GetForUpdate(ctx context.Context, itemID int64) (*model.VocabularyItem, error) {
	q := `SELECT ` + itemColumns + ` FROM vocabulary_items WHERE item_id = ?` + i.s.d.LockClause
	it, err := scanItem(i.s.queryRow(ctx, q, itemID))
	return it, wrap("lock item", err)
}

func (i *items) FindByText(ctx context.Context, text string, category model.Category) (*model.VocabularyItem, error) {
	it, err := scanItem(i.s.queryRow(ctx,
		`SELECT `+itemColumns+` FROM vocabulary_items WHERE text = ? AND category = ?`+i.s.d.LockClause,
		text, string(category)))
	return it, wrap("find item", err)
}

func (i *items) Update(ctx context.Context, it *model.VocabularyItem) error {
	res, err := i.s.exec(ctx, `
		UPDATE vocabulary_items SET description = ?, description_translation = ?, context = ?,
			last_picked_at = ?, next_review_at = ?, review_interval_days = ?, difficulty_level = ?, pick_count = ?
		WHERE item_id = ?`,
		it.Description.Text, it.Description.Translation, it.Context,
		nullMicros(it.LastPickedTime), micros(it.NextReviewTime), it.ReviewIntervalDays, it.DifficultyLevel, it.PickCount,
		it.ItemID)
	return mustAffect("update item", res, err)
}

func (i *items) List(ctx context.Context, req model.ListItemsRequest) ([]*model.VocabularyItem, error) {
	var (
		where []string
		args  []any
	)
	if req.Category != "" {
		where = append(where, "i.category = ?")
		args = append(args, string(req.Category))
	}
	if req.DueOnly {
		where = append(where, "i.next_review_at <= ?")
		args = append(args, micros(req.Now))
	}
	q := `SELECT ` + itemColumns + ` FROM vocabulary_items i`
	if len(where) > 0 {
		q += " WHERE " + strings.Join(where, " AND ")
	}
	q += rankOrder
	if req.Limit > 0 {
		q += " LIMIT ?"
		args = append(args, req.Limit)
	}
	return i.collect(ctx, "list items", q, args...)
}

func (i *items) Due(ctx context.Context, now time.Time, w store.CapWindow, limit int) ([]*model.VocabularyItem, error) {
	return i.collect(ctx, "due items",
		`SELECT `+itemColumns+` FROM vocabulary_items i WHERE i.next_review_at <= ?`+underCap+rankOrder+` LIMIT ?`,
		micros(now), micros(w.Start), micros(w.End), w.Cap, limit)
}

func (i *items) Upcoming(ctx context.Context, now time.Time, w store.CapWindow, limit int) ([]*model.VocabularyItem, error) {
	return i.collect(ctx, "upcoming items",
		`SELECT `+itemColumns+` FROM vocabulary_items i WHERE i.next_review_at > ?`+underCap+rankOrder+` LIMIT ?`,
		micros(now), micros(w.Start), micros(w.End), w.Cap, limit)
}
