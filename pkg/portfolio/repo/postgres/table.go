package postgres

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/tendant/portfolio-admin/pkg/portfolio"
)

// DBTX is an interface that allows us to use either a database connection or a transaction
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

// Table implements portfolio.Table on a PostgreSQL table
type Table[E any] struct {
	db      DBTX
	schema  portfolio.Schema
	columns string
}

// NewTable creates a table client. Only the columns named by schema are
// ever read or written.
func NewTable[E any](db DBTX, schema portfolio.Schema) *Table[E] {
	cols := []string{"id"}
	if schema.Timestamped {
		cols = append(cols, "created_at")
	}
	cols = append(cols, schema.Columns...)
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
	}
	return &Table[E]{
		db:      db,
		schema:  schema,
		columns: strings.Join(quoted, ", "),
	}
}

func (t *Table[E]) Name() string {
	return t.schema.Table
}

func (t *Table[E]) ident() string {
	return pgx.Identifier{t.schema.Table}.Sanitize()
}

func (t *Table[E]) Select(ctx context.Context, q portfolio.Query) ([]E, error) {
	var sb strings.Builder
	args := make([]interface{}, 0, len(q.Filters))
	fmt.Fprintf(&sb, "SELECT %s FROM %s", t.columns, t.ident())

	for i, f := range q.Filters {
		if !t.schema.HasColumn(f.Column) {
			return nil, t.unknownColumn("select", f.Column)
		}
		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		if f.Value == nil {
			fmt.Fprintf(&sb, "%s IS NULL", pgx.Identifier{f.Column}.Sanitize())
			continue
		}
		args = append(args, f.Value)
		fmt.Fprintf(&sb, "%s = $%d", pgx.Identifier{f.Column}.Sanitize(), len(args))
	}

	if q.OrderBy != "" {
		if !t.schema.HasColumn(q.OrderBy) {
			return nil, t.unknownColumn("select", q.OrderBy)
		}
		dir := "DESC"
		if q.Ascending {
			dir = "ASC"
		}
		fmt.Fprintf(&sb, " ORDER BY %s %s, id ASC", pgx.Identifier{q.OrderBy}.Sanitize(), dir)
	} else {
		sb.WriteString(" ORDER BY id ASC")
	}

	rows, err := t.db.Query(ctx, sb.String(), args...)
	if err != nil {
		return nil, t.handlePostgresError("select", err)
	}
	result, err := pgx.CollectRows(rows, pgx.RowToStructByName[E])
	if err != nil {
		return nil, t.handlePostgresError("select", err)
	}
	if result == nil {
		result = []E{}
	}
	return result, nil
}

func (t *Table[E]) Insert(ctx context.Context, values map[string]any) (E, error) {
	var zero E
	cols, args, err := t.assignments("insert", values)
	if err != nil {
		return zero, err
	}

	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf("INSERT INTO %s DEFAULT VALUES RETURNING %s", t.ident(), t.columns)
	} else {
		placeholders := make([]string, len(cols))
		for i := range cols {
			placeholders[i] = fmt.Sprintf("$%d", i+1)
		}
		query = fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
			t.ident(), strings.Join(cols, ", "), strings.Join(placeholders, ", "), t.columns)
	}

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return zero, t.handlePostgresError("insert", err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[E])
	if err != nil {
		return zero, t.handlePostgresError("insert", err)
	}
	return row, nil
}

func (t *Table[E]) Update(ctx context.Context, id int64, values map[string]any) (E, error) {
	var zero E
	cols, args, err := t.assignments("update", values)
	if err != nil {
		return zero, err
	}

	var query string
	if len(cols) == 0 {
		query = fmt.Sprintf("SELECT %s FROM %s WHERE id = $1", t.columns, t.ident())
		args = []interface{}{id}
	} else {
		sets := make([]string, len(cols))
		for i, c := range cols {
			sets[i] = fmt.Sprintf("%s = $%d", c, i+1)
		}
		args = append(args, id)
		query = fmt.Sprintf("UPDATE %s SET %s WHERE id = $%d RETURNING %s",
			t.ident(), strings.Join(sets, ", "), len(args), t.columns)
	}

	rows, err := t.db.Query(ctx, query, args...)
	if err != nil {
		return zero, t.handlePostgresError("update", err)
	}
	row, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByName[E])
	if err != nil {
		return zero, t.handlePostgresError("update", err)
	}
	return row, nil
}

func (t *Table[E]) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", t.ident())
	if _, err := t.db.Exec(ctx, query, id); err != nil {
		return t.handlePostgresError("delete", err)
	}
	return nil
}

// assignments returns the quoted column names and arguments of values in a
// stable order.
func (t *Table[E]) assignments(op string, values map[string]any) ([]string, []interface{}, error) {
	names := make([]string, 0, len(values))
	for col := range values {
		if col == "id" || col == "created_at" || !t.schema.HasColumn(col) {
			return nil, nil, t.unknownColumn(op, col)
		}
		names = append(names, col)
	}
	slices.Sort(names)

	cols := make([]string, len(names))
	args := make([]interface{}, len(names))
	for i, name := range names {
		cols[i] = pgx.Identifier{name}.Sanitize()
		args[i] = values[name]
	}
	return cols, args, nil
}

func (t *Table[E]) unknownColumn(op, col string) error {
	return &portfolio.RemoteQueryError{
		Table:   t.Name(),
		Op:      op,
		Kind:    portfolio.KindInvalid,
		Code:    "42703",
		Message: fmt.Sprintf("column %q does not exist", col),
	}
}

// handlePostgresError maps driver errors onto the closed set of query error
// kinds
func (t *Table[E]) handlePostgresError(op string, err error) error {
	qe := &portfolio.RemoteQueryError{Table: t.Name(), Op: op, Kind: portfolio.KindUnknown, Err: err}

	var pgErr *pgconn.PgError
	var connErr *pgconn.ConnectError
	switch {
	case errors.As(err, &pgErr):
		qe.Code = pgErr.Code
		qe.Message = pgErr.Message
		switch {
		case pgErr.Code == "23505": // unique_violation
			qe.Kind = portfolio.KindConflict
		case pgErr.Code == "23503": // foreign_key_violation
			qe.Kind = portfolio.KindConflict
		case pgErr.Code == "23502": // not_null_violation
			qe.Kind = portfolio.KindInvalid
			qe.Message = fmt.Sprintf("required field %s is missing", pgErr.ColumnName)
		case pgErr.Code == "42P01": // undefined_table
			qe.Kind = portfolio.KindUnavailable
			qe.Message = "table does not exist - database migration required"
		case pgErr.Code == "42703", strings.HasPrefix(pgErr.Code, "22"), strings.HasPrefix(pgErr.Code, "23"):
			qe.Kind = portfolio.KindInvalid
		case strings.HasPrefix(pgErr.Code, "08"), strings.HasPrefix(pgErr.Code, "57P"), strings.HasPrefix(pgErr.Code, "53"):
			qe.Kind = portfolio.KindUnavailable
		}
	case errors.Is(err, pgx.ErrNoRows):
		qe.Kind = portfolio.KindNoRows
		qe.Message = "no rows returned"
		qe.Err = fmt.Errorf("%w: %w", portfolio.ErrNoRows, err)
	case errors.As(err, &connErr), errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		qe.Kind = portfolio.KindUnavailable
		qe.Message = err.Error()
	default:
		qe.Message = err.Error()
	}
	return qe
}
