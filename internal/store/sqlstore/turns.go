package sqlstore

import (
	"context"
	"database/sql"

	"github.com/chrislearn/mofa-studio/internal/model"
)

const turnColumns = `turn_id, session_id, speaker, text, audio_ref, speech_rate_wpm, pause_count, created_at`

type turns struct{ s *Store }

func scanTurn(r scanner) (*model.ConversationTurn, error) {
	var (
		out     model.ConversationTurn
		speaker string
		audio   sql.NullString
		rate    sql.NullFloat64
		pauses  sql.NullInt64
		created int64
	)
	if err := r.Scan(&out.TurnID, &out.SessionID, &speaker, &out.Text, &audio, &rate, &pauses, &created); err != nil {
		return nil, err
	}
	out.Speaker = model.Speaker(speaker)
	out.AudioRef = fromNullString(audio)
	if rate.Valid || pauses.Valid {
		out.Metrics = &model.TurnMetrics{SpeechRateWPM: rate.Float64, PauseCount: int(pauses.Int64)}
	}
	out.CreationTime = fromMicros(created)
	return &out, nil
}

func (t *turns) Append(ctx context.Context, in *model.ConversationTurn) (*model.ConversationTurn, error) {
	out := *in
	out.CreationTime = fromMicros(micros(nowIfZero(out.CreationTime)))
	var (
		rate   sql.NullFloat64
		pauses sql.NullInt64
	)
	if out.Metrics != nil {
		rate = sql.NullFloat64{Float64: out.Metrics.SpeechRateWPM, Valid: true}
		pauses = sql.NullInt64{Int64: int64(out.Metrics.PauseCount), Valid: true}
	}
	row := t.s.queryRow(ctx, `
		INSERT INTO conversation_turns (session_id, speaker, text, audio_ref, speech_rate_wpm, pause_count, created_at)
		VALUES (?,?,?,?,?,?,?)
		RETURNING turn_id`,
		out.SessionID, string(out.Speaker), out.Text, nullString(out.AudioRef), rate, pauses, micros(out.CreationTime))
	if err := row.Scan(&out.TurnID); err != nil {
		return nil, wrap("append turn", err)
	}
	return &out, nil
}

func (t *turns) Get(ctx context.Context, turnID int64) (*model.ConversationTurn, error) {
	out, err := scanTurn(t.s.queryRow(ctx, `SELECT `+turnColumns+` FROM conversation_turns WHERE turn_id = ?`, turnID))
	return out, wrap("get turn", err)
}

func (t *turns) List(ctx context.Context, sessionID string) ([]*model.ConversationTurn, error) {
	rows, err := t.s.query(ctx, `SELECT `+turnColumns+` FROM conversation_turns WHERE session_id = ? ORDER BY created_at, turn_id`, sessionID)
	if err != nil {
		return nil, wrap("list turns", err)
	}
	defer rows.Close()
	var out []*model.ConversationTurn
	for rows.Next() {
		tr, err := scanTurn(rows)
		if err != nil {
			return nil, wrap("list turns", err)
		}
		out = append(out, tr)
	}
	return out, wrap("list turns", rows.Err())
}
