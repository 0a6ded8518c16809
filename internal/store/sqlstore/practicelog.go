package sqlstore

import (
	"context"
	"time"

	"github.com/chrislearn/mofa-studio/internal/model"
)

type practiceLog struct{ s *Store }

func (p *practiceLog) Append(ctx context.Context, in *model.PracticeLogEntry) (*model.PracticeLogEntry, error) {
	out := *in
	out.PracticedAt = fromMicros(micros(nowIfZero(out.PracticedAt)))
	row := p.s.queryRow(ctx, `
		INSERT INTO word_practice_log (item_id, session_id, practiced_at, outcome)
		VALUES (?,?,?,?)
		RETURNING entry_id`,
		out.ItemID, out.SessionID, micros(out.PracticedAt), string(out.Outcome))
	if err := row.Scan(&out.EntryID); err != nil {
		return nil, wrap("append practice entry", err)
	}
	return &out, nil
}

func (p *practiceLog) CountInWindow(ctx context.Context, itemID int64, start, end time.Time) (int, error) {
	var n int
	err := p.s.queryRow(ctx, `
		SELECT COUNT(*) FROM word_practice_log
		WHERE item_id = ? AND practiced_at >= ? AND practiced_at < ?`,
		itemID, micros(start), micros(end)).Scan(&n)
	return n, wrap("count practice entries", err)
}

func (p *practiceLog) RecentOutcomes(ctx context.Context, itemID int64, limit int) ([]model.Outcome, error) {
	rows, err := p.s.query(ctx, `
		SELECT outcome FROM word_practice_log
		WHERE item_id = ?
		ORDER BY practiced_at DESC, entry_id DESC
		LIMIT ?`, itemID, limit)
	if err != nil {
		return nil, wrap("recent outcomes", err)
	}
	defer rows.Close()
	var newest []model.Outcome
	for rows.Next() {
		var o string
		if err := rows.Scan(&o); err != nil {
			return nil, wrap("recent outcomes", err)
		}
		newest = append(newest, model.Outcome(o))
	}
	if err := rows.Err(); err != nil {
		return nil, wrap("recent outcomes", err)
	}
	out := make([]model.Outcome, len(newest))
	for i, o := range newest {
		out[len(newest)-1-i] = o
	}
	return out, nil
}

func (p *practiceLog) ListByItem(ctx context.Context, itemID int64) ([]*model.PracticeLogEntry, error) {
	return p.list(ctx, "list item history", `WHERE item_id = ?`, itemID)
}

func (p *practiceLog) ListBySession(ctx context.Context, sessionID string) ([]*model.PracticeLogEntry, error) {
	return p.list(ctx, "list session practice", `WHERE session_id = ?`, sessionID)
}

func (p *practiceLog) list(ctx context.Context, op, where string, arg any) ([]*model.PracticeLogEntry, error) {
	rows, err := p.s.query(ctx, `
		SELECT entry_id, item_id, session_id, practiced_at, outcome FROM word_practice_log `+where+`
		ORDER BY practiced_at, entry_id`, arg)
	if err != nil {
		return nil, wrap(op, err)
	}
	defer rows.Close()
	var out []*model.PracticeLogEntry
	for rows.Next() {
		var (
			e       model.PracticeLogEntry
			at      int64
			outcome string
		)
		if err := rows.Scan(&e.EntryID, &e.ItemID, &e.SessionID, &at, &outcome); err != nil {
			return nil, wrap(op, err)
		}
		e.PracticedAt = fromMicros(at)
		e.Outcome = model.Outcome(outcome)
		out = append(out, &e)
	}
	return out, wrap(op, rows.Err())
}
