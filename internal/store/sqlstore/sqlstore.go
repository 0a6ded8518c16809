// Package sqlstore implements store.Store on database/sql. The sqlite and
// postgres packages supply a Dialect and open the connection.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/chrislearn/mofa-studio/internal/model"
	"github.com/chrislearn/mofa-studio/internal/store"
)

// Dialect captures the differences between SQL engines.
type Dialect struct {
	Name string
	// Numbered switches "?" placeholders to "$1, $2, ...".
	Numbered bool
	// LockClause is appended to row reads that must lock the row.
	LockClause string
	// SnapshotLevel is the isolation used for TxOptions.Snapshot.
	SnapshotLevel sql.IsolationLevel
	// Schema statements are executed in order by EnsureSchema.
	Schema []string
	// IsUniqueViolation recognises the driver's unique-constraint error.
	IsUniqueViolation func(error) bool
}

func (d Dialect) rebind(q string) string {
	if !d.Numbered || !strings.Contains(q, "?") {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Store is a store.Store backed by a *sql.DB, optionally bound to a transaction.
type Store struct {
	db *sql.DB
	tx *sql.Tx
	q  querier
	d  Dialect
}

var _ store.Store = (*Store)(nil)

// New wraps db with the given dialect.
func New(db *sql.DB, d Dialect) *Store {
	return &Store{db: db, q: db, d: d}
}

func (s *Store) Items() store.Items             { return &items{s} }
func (s *Store) Sessions() store.Sessions       { return &sessions{s} }
func (s *Store) Turns() store.Turns             { return &turns{s} }
func (s *Store) Annotations() store.Annotations { return &annotations{s} }
func (s *Store) PracticeLog() store.PracticeLog { return &practiceLog{s} }

// DB returns the underlying handle.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect returns the engine name.
func (s *Store) Dialect() string { return s.d.Name }

// HealthPing implements health.HealthPinger.
func (s *Store) HealthPing(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// EnsureSchema creates the tables and indexes when they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	for _, stmt := range s.d.Schema {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("%s schema: %w", s.d.Name, err)
		}
	}
	return nil
}

func (s *Store) WithTx(ctx context.Context, opts store.TxOptions, fn func(tx store.Store) error) error {
	if s.tx != nil {
		return fn(s)
	}
	txo := &sql.TxOptions{}
	if opts.Snapshot {
		txo.Isolation = s.d.SnapshotLevel
	}
	tx, err := s.db.BeginTx(ctx, txo)
	if err != nil {
		return model.Unavailable("begin tx", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := fn(&Store{db: s.db, tx: tx, q: tx, d: s.d}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return model.Unavailable("commit tx", err)
	}
	return nil
}

// Close closes the database. It is a no-op on a transaction-bound store.
func (s *Store) Close() error {
	if s.tx != nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return s.q.ExecContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.q.QueryContext(ctx, s.d.rebind(query), args...)
}

func (s *Store) queryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return s.q.QueryRowContext(ctx, s.d.rebind(query), args...)
}

// wrap maps driver errors onto the model taxonomy.
func wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return model.Unavailable(op, err)
}

// conflict reports a unique-constraint violation as ErrConflict, else defers to wrap.
func (s *Store) conflict(op string, err error) error {
	if err != nil && s.d.IsUniqueViolation != nil && s.d.IsUniqueViolation(err) {
		return fmt.Errorf("%s: %w: %v", op, model.ErrConflict, err)
	}
	return wrap(op, err)
}

func mustAffect(op string, res sql.Result, err error) error {
	if err != nil {
		return wrap(op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return wrap(op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, model.ErrNotFound)
	}
	return nil
}

// Times are stored as UTC epoch microseconds so ordering is exact on every engine.
func micros(t time.Time) int64 { return t.UTC().UnixMicro() }

func fromMicros(v int64) time.Time { return time.UnixMicro(v).UTC() }

func nullMicros(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: micros(*t), Valid: true}
}

func fromNullMicros(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMicros(v.Int64)
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func fromNullString(v sql.NullString) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}

func nowIfZero(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

type scanner interface {
	Scan(dest ...any) error
}
