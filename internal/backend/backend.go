package backend

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"

	sq "github.com/Masterminds/squirrel"
	"github.com/hashicorp/go-multierror"
	"github.com/sirupsen/logrus"
)

// Dialect names a supported SQL database
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite3"
)

// ParseDialect maps a driver name to a Dialect.
func ParseDialect(driver string) (Dialect, error) {
	switch strings.ToLower(driver) {
	case "postgres", "postgresql", "":
		return Postgres, nil
	case "sqlite3", "sqlite":
		return SQLite, nil
	default:
		return "", fmt.Errorf("unsupported database driver %q", driver)
	}
}

func (d Dialect) placeholders() sq.PlaceholderFormat {
	if d == Postgres {
		return sq.Dollar
	}
	return sq.Question
}

// ErrRollback is wrapped into the error returned by InTx when a failed
// transaction could not be rolled back.
var ErrRollback = errors.New("rollback failed")

// Row maps column names to values for inserts, updates and upserts.
type Row map[string]any

// Columns returns the row's column names in sorted order.
func (r Row) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Querier is satisfied by both *sql.DB and *sql.Tx
type Querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// Backend is the generic query/insert/update/delete/upsert interface over
// named collections. Builders come pre-configured with the dialect's
// placeholder format; Query, QueryRow and Exec run them.
type Backend struct {
	db      *sql.DB
	q       Querier
	sb      sq.StatementBuilderType
	dialect Dialect
	logger  *logrus.Logger
}

// New creates a Backend bound to db.
func New(db *sql.DB, dialect Dialect, logger *logrus.Logger) *Backend {
	return &Backend{
		db:      db,
		q:       db,
		sb:      sq.StatementBuilder.PlaceholderFormat(dialect.placeholders()),
		dialect: dialect,
		logger:  logger,
	}
}

// Dialect returns the SQL dialect of the underlying database.
func (b *Backend) Dialect() Dialect {
	return b.dialect
}

// Select starts a query on collection. With no columns it selects "*".
func (b *Backend) Select(collection string, columns ...string) sq.SelectBuilder {
	if len(columns) == 0 {
		columns = []string{"*"}
	}
	return b.sb.Select(columns...).From(collection)
}

// Insert builds a multi-row insert. The column set is the sorted union of
// every row's keys; a row missing a column inserts NULL for it.
func (b *Backend) Insert(collection string, rows ...Row) sq.InsertBuilder {
	cols := unionColumns(rows)
	ib := b.sb.Insert(collection).Columns(cols...)
	for _, r := range rows {
		values := make([]any, len(cols))
		for i, c := range cols {
			values[i] = r[c]
		}
		ib = ib.Values(values...)
	}
	return ib
}

// Update builds an update applying patch to every row matching filter.
func (b *Backend) Update(collection string, patch Row, filter sq.Sqlizer) sq.UpdateBuilder {
	ub := b.sb.Update(collection)
	for _, c := range patch.Columns() {
		ub = ub.Set(c, patch[c])
	}
	return ub.Where(filter)
}

// Delete builds a delete of every row matching filter.
func (b *Backend) Delete(collection string, filter sq.Sqlizer) sq.DeleteBuilder {
	return b.sb.Delete(collection).Where(filter)
}

// Upsert builds an insert that updates the non-key columns of rows whose
// conflictKey already exists. When every column is part of the key the
// conflicting rows are left untouched.
func (b *Backend) Upsert(collection string, rows []Row, conflictKey ...string) sq.InsertBuilder {
	ib := b.Insert(collection, rows...)

	key := make(map[string]bool, len(conflictKey))
	for _, k := range conflictKey {
		key[k] = true
	}
	var sets []string
	for _, c := range unionColumns(rows) {
		if !key[c] {
			sets = append(sets, fmt.Sprintf("%s = excluded.%s", c, c))
		}
	}

	clause := fmt.Sprintf("ON CONFLICT (%s) DO NOTHING", strings.Join(conflictKey, ", "))
	if len(sets) > 0 {
		clause = fmt.Sprintf("ON CONFLICT (%s) DO UPDATE SET %s", strings.Join(conflictKey, ", "), strings.Join(sets, ", "))
	}
	return ib.Suffix(clause)
}

// Query runs a statement that returns rows.
func (b *Backend) Query(ctx context.Context, s sq.Sqlizer) (*sql.Rows, error) {
	query, args, err := b.build(s)
	if err != nil {
		return nil, err
	}
	return b.q.QueryContext(ctx, query, args...)
}

// QueryRow runs a statement that returns at most one row. Build errors are
// reported by Scan.
func (b *Backend) QueryRow(ctx context.Context, s sq.Sqlizer) RowScanner {
	query, args, err := b.build(s)
	if err != nil {
		return errRow{err: err}
	}
	return b.q.QueryRowContext(ctx, query, args...)
}

// Exec runs a statement that returns no rows.
func (b *Backend) Exec(ctx context.Context, s sq.Sqlizer) (sql.Result, error) {
	query, args, err := b.build(s)
	if err != nil {
		return nil, err
	}
	return b.q.ExecContext(ctx, query, args...)
}

// InTx runs fn against a Backend bound to a new transaction and commits when
// fn succeeds. Nested calls reuse the outer transaction.
func (b *Backend) InTx(ctx context.Context, fn func(tx *Backend) error) error {
	if b.db == nil {
		return fn(b)
	}

	tx, err := b.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txb := &Backend{q: tx, sb: b.sb, dialect: b.dialect, logger: b.logger}
	if err := fn(txb); err != nil {
		// ErrTxDone means database/sql already rolled back on ctx cancellation
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return multierror.Append(err, fmt.Errorf("%w: %v", ErrRollback, rbErr))
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (b *Backend) build(s sq.Sqlizer) (string, []any, error) {
	query, args, err := s.ToSql()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build SQL query: %w", err)
	}
	b.logger.WithField("args", len(args)).Debugf("Executing SQL: %s", query)
	return query, args, nil
}

// RowScanner is the part of *sql.Row used by repositories
type RowScanner interface {
	Scan(dest ...any) error
}

type errRow struct{ err error }

func (r errRow) Scan(...any) error { return r.err }

func unionColumns(rows []Row) []string {
	seen := make(map[string]bool)
	var cols []string
	for _, r := range rows {
		for c := range r {
			if !seen[c] {
				seen[c] = true
				cols = append(cols, c)
			}
		}
	}
	sort.Strings(cols)
	return cols
}
