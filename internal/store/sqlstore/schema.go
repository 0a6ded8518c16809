package sqlstore

import "fmt"

// SchemaStatements returns the DDL for the five row families. idType is the
// engine's auto-increment primary key declaration.
func SchemaStatements(idType string) []string {
	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS vocabulary_items (
			item_id %s,
			text TEXT NOT NULL,
			category TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			description_translation TEXT NOT NULL DEFAULT '',
			context TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL,
			last_picked_at BIGINT,
			next_review_at BIGINT NOT NULL,
			review_interval_days INTEGER NOT NULL DEFAULT 1 CHECK (review_interval_days >= 1),
			difficulty_level INTEGER NOT NULL DEFAULT 3 CHECK (difficulty_level BETWEEN 1 AND 5),
			pick_count INTEGER NOT NULL DEFAULT 0,
			UNIQUE (text, category)
		)`, idType),
		`CREATE INDEX IF NOT EXISTS idx_vocabulary_items_next_review ON vocabulary_items(next_review_at)`,
		`CREATE TABLE IF NOT EXISTS learning_sessions (
			session_id TEXT PRIMARY KEY,
			topic TEXT,
			target_item_ids TEXT NOT NULL DEFAULT '[]',
			started_at BIGINT NOT NULL,
			ended_at BIGINT,
			exchange_count INTEGER NOT NULL DEFAULT 0
		)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS conversation_turns (
			turn_id %s,
			session_id TEXT NOT NULL REFERENCES learning_sessions(session_id),
			speaker TEXT NOT NULL,
			text TEXT NOT NULL,
			audio_ref TEXT,
			speech_rate_wpm DOUBLE PRECISION,
			pause_count INTEGER,
			created_at BIGINT NOT NULL
		)`, idType),
		`CREATE INDEX IF NOT EXISTS idx_conversation_turns_session ON conversation_turns(session_id, created_at)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS conversation_annotations (
			annotation_id %s,
			turn_id BIGINT NOT NULL REFERENCES conversation_turns(turn_id),
			kind TEXT NOT NULL,
			severity TEXT NOT NULL,
			original TEXT NOT NULL,
			suggested TEXT NOT NULL DEFAULT '',
			description TEXT NOT NULL DEFAULT '',
			description_translation TEXT NOT NULL DEFAULT '',
			created_at BIGINT NOT NULL
		)`, idType),
		`CREATE INDEX IF NOT EXISTS idx_conversation_annotations_turn ON conversation_annotations(turn_id)`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS word_practice_log (
			entry_id %s,
			item_id BIGINT NOT NULL REFERENCES vocabulary_items(item_id),
			session_id TEXT NOT NULL REFERENCES learning_sessions(session_id),
			practiced_at BIGINT NOT NULL,
			outcome TEXT NOT NULL
		)`, idType),
		`CREATE INDEX IF NOT EXISTS idx_word_practice_log_item_time ON word_practice_log(item_id, practiced_at)`,
		`CREATE INDEX IF NOT EXISTS idx_word_practice_log_session ON word_practice_log(session_id)`,
	}
}
