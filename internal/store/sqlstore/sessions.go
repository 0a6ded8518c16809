package sqlstore

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/chrislearn/mofa-studio/internal/model"
)

const sessionColumns = `session_id, topic, target_item_ids, started_at, ended_at, exchange_count`

type sessions struct{ s *Store }

func scanSession(r scanner) (*model.LearningSession, error) {
	var (
		out     model.LearningSession
		topic   sql.NullString
		targets string
		started int64
		ended   sql.NullInt64
	)
	if err := r.Scan(&out.SessionID, &topic, &targets, &started, &ended, &out.ExchangeCount); err != nil {
		return nil, err
	}
	out.Topic = fromNullString(topic)
	out.StartTime = fromMicros(started)
	out.EndTime = fromNullMicros(ended)
	out.TargetItemIDs = []int64{}
	if targets != "" {
		if err := json.Unmarshal([]byte(targets), &out.TargetItemIDs); err != nil {
			return nil, err
		}
	}
	return &out, nil
}

func (ss *sessions) Create(ctx context.Context, in *model.LearningSession) (*model.LearningSession, error) {
	out := *in
	out.StartTime = fromMicros(micros(nowIfZero(out.StartTime)))
	if out.TargetItemIDs == nil {
		out.TargetItemIDs = []int64{}
	}
	targets, err := json.Marshal(out.TargetItemIDs)
	if err != nil {
		return nil, err
	}
	_, err = ss.s.exec(ctx, `
		INSERT INTO learning_sessions (session_id, topic, target_item_ids, started_at, ended_at, exchange_count)
		VALUES (?,?,?,?,?,?)`,
		out.SessionID, nullString(out.Topic), string(targets), micros(out.StartTime), nullMicros(out.EndTime), out.ExchangeCount)
	if err != nil {
		return nil, wrap("create session", err)
	}
	return &out, nil
}

func (ss *sessions) Get(ctx context.Context, sessionID string) (*model.LearningSession, error) {
	out, err := scanSession(ss.s.queryRow(ctx, `SELECT `+sessionColumns+` FROM learning_sessions WHERE session_id = ?`, sessionID))
	return out, wrap("get session", err)
}

func (ss *sessions) List(ctx context.Context, limit int) ([]*model.LearningSession, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := ss.s.query(ctx, `SELECT `+sessionColumns+` FROM learning_sessions ORDER BY started_at DESC, session_id LIMIT ?`, limit)
	if err != nil {
		return nil, wrap("list sessions", err)
	}
	defer rows.Close()
	var out []*model.LearningSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, wrap("list sessions", err)
		}
		out = append(out, sess)
	}
	return out, wrap("list sessions", rows.Err())
}

func (ss *sessions) SetTopic(ctx context.Context, sessionID, topic string) error {
	res, err := ss.s.exec(ctx, `UPDATE learning_sessions SET topic = ? WHERE session_id = ?`, topic, sessionID)
	return mustAffect("set topic", res, err)
}

func (ss *sessions) End(ctx context.Context, sessionID string, at time.Time) error {
	res, err := ss.s.exec(ctx, `UPDATE learning_sessions SET ended_at = COALESCE(ended_at, ?) WHERE session_id = ?`, micros(at), sessionID)
	return mustAffect("end session", res, err)
}

func (ss *sessions) IncrementExchanges(ctx context.Context, sessionID string) error {
	res, err := ss.s.exec(ctx, `UPDATE learning_sessions SET exchange_count = exchange_count + 1 WHERE session_id = ?`, sessionID)
	return mustAffect("increment exchanges", res, err)
}
