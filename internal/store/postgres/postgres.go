// Package postgres provides the shared Postgres store on the pgx stdlib driver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/chrislearn/mofa-studio/internal/store/sqlstore"
)

// Dialect is the Postgres flavour used by sqlstore. Outcome updates lock the
// item row; selection reads run under REPEATABLE READ.
var Dialect = sqlstore.Dialect{
	Name:          "postgres",
	Numbered:      true,
	LockClause:    " FOR UPDATE",
	SnapshotLevel: sql.LevelRepeatableRead,
	Schema:        sqlstore.SchemaStatements("BIGSERIAL PRIMARY KEY"),

	IsUniqueViolation: isUniqueViolation,
}

// uniqueViolation is SQLSTATE unique_violation.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// New opens the database and ensures the schema exists.
func New(ctx context.Context, dsn string) (*sqlstore.Store, error) {
	db, err := Open(dsn)
	if err != nil {
		return nil, err
	}
	s := sqlstore.New(db, Dialect)
	if err := s.EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Bootstrap performs a connectivity check to ensure Postgres is reachable.
func Bootstrap(ctx context.Context, dsn string) error {
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return db.PingContext(ctx)
}

// Reset empties every table. Used by integration tests.
func Reset(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `TRUNCATE word_practice_log, conversation_annotations, conversation_turns,
		learning_sessions, vocabulary_items RESTART IDENTITY CASCADE`)
	return err
}
