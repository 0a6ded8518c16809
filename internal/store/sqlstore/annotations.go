package sqlstore

import (
	"context"

	"github.com/chrislearn/mofa-studio/internal/model"
)

type annotations struct{ s *Store }

func (a *annotations) Create(ctx context.Context, in *model.ConversationAnnotation) (*model.ConversationAnnotation, error) {
	out := *in
	out.CreationTime = fromMicros(micros(nowIfZero(out.CreationTime)))
	row := a.s.queryRow(ctx, `
		INSERT INTO conversation_annotations (turn_id, kind, severity, original, suggested,
			description, description_translation, created_at)
		VALUES (?,?,?,?,?,?,?,?)
		RETURNING annotation_id`,
		out.TurnID, string(out.Kind), string(out.Severity), out.Original, out.Suggested,
		out.Description.Text, out.Description.Translation, micros(out.CreationTime))
	if err := row.Scan(&out.AnnotationID); err != nil {
		return nil, wrap("create annotation", err)
	}
	return &out, nil
}

func (a *annotations) ListBySession(ctx context.Context, sessionID string) ([]*model.ConversationAnnotation, error) {
	rows, err := a.s.query(ctx, `
		SELECT a.annotation_id, a.turn_id, a.kind, a.severity, a.original, a.suggested,
			a.description, a.description_translation, a.created_at
		FROM conversation_annotations a
		JOIN conversation_turns t ON t.turn_id = a.turn_id
		WHERE t.session_id = ?
		ORDER BY a.annotation_id`, sessionID)
	if err != nil {
		return nil, wrap("list annotations", err)
	}
	defer rows.Close()
	var out []*model.ConversationAnnotation
	for rows.Next() {
		var (
			an       model.ConversationAnnotation
			kind     string
			severity string
			created  int64
		)
		if err := rows.Scan(&an.AnnotationID, &an.TurnID, &kind, &severity, &an.Original, &an.Suggested,
			&an.Description.Text, &an.Description.Translation, &created); err != nil {
			return nil, wrap("list annotations", err)
		}
		an.Kind = model.AnnotationKind(kind)
		an.Severity = model.Severity(severity)
		an.CreationTime = fromMicros(created)
		out = append(out, &an)
	}
	return out, wrap("list annotations", rows.Err())
}
