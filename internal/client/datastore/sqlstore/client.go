package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/dbx"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const setClaimsSQL = `SELECT set_config('request.jwt.claims', $1, true)`

// Client is a datastore.Client bound to one bearer token.
type Client struct {
	store  *Store
	token  string
	claims string
}

var _ datastore.Client = (*Client)(nil)

func (c *Client) Token() string { return c.token }

func (c *Client) Select(ctx context.Context, table string, q datastore.Query) (datastore.Rows, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := q.Validate(); err != nil {
		return nil, invalid(err)
	}
	query, args := buildSelect(c.store.dialect, table, q)
	return c.run(ctx, query, args)
}

func (c *Client) Insert(ctx context.Context, table string, row datastore.Row) (datastore.Rows, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	query, args, err := buildInsert(c.store.dialect, table, row, "")
	if err != nil {
		return nil, invalid(err)
	}
	return c.run(ctx, query, args)
}

func (c *Client) Update(ctx context.Context, table string, values datastore.Row, filters ...datastore.Filter) (datastore.Rows, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}
	query, args, err := buildUpdate(c.store.dialect, table, values, filters)
	if err != nil {
		return nil, invalid(err)
	}
	return c.run(ctx, query, args)
}

func (c *Client) Upsert(ctx context.Context, table string, row datastore.Row, onConflict string) (datastore.Rows, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if !datastore.ValidIdentifier(onConflict) {
		return nil, invalid(fmt.Errorf("invalid conflict column %q", onConflict))
	}
	if _, ok := row[onConflict]; !ok {
		return nil, invalid(fmt.Errorf("upsert row lacks conflict column %q", onConflict))
	}
	query, args, err := buildInsert(c.store.dialect, table, row, onConflict)
	if err != nil {
		return nil, invalid(err)
	}
	return c.run(ctx, query, args)
}

func (c *Client) Delete(ctx context.Context, table string, filters ...datastore.Filter) (datastore.Rows, error) {
	if err := checkTable(table); err != nil {
		return nil, err
	}
	if err := checkFilters(filters); err != nil {
		return nil, err
	}
	query, args := buildDelete(c.store.dialect, table, filters)
	return c.run(ctx, query, args)
}

// run executes one statement in its own transaction, publishing the
// token claims first on Postgres.
func (c *Client) run(ctx context.Context, query string, args []any) (datastore.Rows, error) {
	dialect := c.store.dialect
	rows, err := dbx.InTx(ctx, c.store.db, nil, func(ctx context.Context, tx dbx.DBTX) (datastore.Rows, error) {
		if dialect == Postgres {
			if _, err := tx.ExecContext(ctx, setClaimsSQL, c.claims); err != nil {
				return nil, fmt.Errorf("set claims: %w", err)
			}
		}
		rs, err := tx.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		defer rs.Close()
		return scanRows(rs, dialect)
	})
	if err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}

func scanRows(rs *sql.Rows, dialect Dialect) (datastore.Rows, error) {
	cols, err := rs.Columns()
	if err != nil {
		return nil, err
	}
	types, err := rs.ColumnTypes()
	if err != nil {
		return nil, err
	}

	out := datastore.Rows{}
	for rs.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rs.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		row := make(datastore.Row, len(cols))
		for i, c := range cols {
			var declType string
			if i < len(types) && types[i] != nil {
				declType = types[i].DatabaseTypeName()
			}
			row[c] = normalize(vals[i], declType, dialect)
		}
		out = append(out, row)
	}
	if err := rs.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return out, nil
}

// normalize turns driver values into the shapes PostgREST would emit.
func normalize(v any, declType string, dialect Dialect) any {
	switch x := v.(type) {
	case []byte:
		return string(x)
	case [16]byte:
		return uuid.UUID(x).String()
	case int64:
		if dialect == SQLite && strings.EqualFold(declType, "BOOLEAN") {
			return x != 0
		}
	}
	return v
}

func checkTable(table string) error {
	if !datastore.ValidIdentifier(table) {
		return invalid(fmt.Errorf("invalid table %q", table))
	}
	return nil
}

func checkFilters(filters []datastore.Filter) error {
	if len(filters) == 0 {
		return invalid(errors.New("update and delete require at least one filter"))
	}
	if err := datastore.ValidateFilters(filters); err != nil {
		return invalid(err)
	}
	return nil
}

func invalid(err error) error {
	return &datastore.Error{Code: datastore.CodeInvalidRequest, Message: err.Error(), Status: http.StatusBadRequest}
}

// mapError translates driver errors into *datastore.Error using Postgres
// SQLSTATE codes for both dialects.
func mapError(err error) error {
	var de *datastore.Error
	if errors.As(err, &de) {
		return de
	}

	var pe *pgconn.PgError
	if errors.As(err, &pe) {
		return &datastore.Error{Code: pe.Code, Message: pe.Message, Details: pe.Detail, Hint: pe.Hint, Status: statusFor(pe.Code)}
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		code := sqliteCode(se)
		return &datastore.Error{Code: code, Message: se.Error(), Status: statusFor(code)}
	}

	return fmt.Errorf("sqlstore: %w", err)
}

func sqliteCode(se *sqlite.Error) string {
	msg := se.Error()
	switch {
	case se.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE,
		se.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY,
		strings.Contains(msg, "UNIQUE constraint failed"):
		return datastore.CodeUniqueViolation
	case se.Code() == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY,
		strings.Contains(msg, "FOREIGN KEY constraint failed"):
		return datastore.CodeForeignKey
	case se.Code() == sqlite3.SQLITE_CONSTRAINT_CHECK,
		se.Code() == sqlite3.SQLITE_CONSTRAINT_NOTNULL,
		strings.Contains(msg, "CHECK constraint failed"),
		strings.Contains(msg, "NOT NULL constraint failed"):
		return datastore.CodeCheckViolation
	case strings.Contains(msg, "no such table"):
		return datastore.CodeUndefinedTable
	}
	return datastore.CodeInternal
}

func statusFor(code string) int {
	switch code {
	case datastore.CodeUniqueViolation, datastore.CodeForeignKey:
		return http.StatusConflict
	case datastore.CodeCheckViolation, "23502":
		return http.StatusBadRequest
	case datastore.CodeUndefinedTable:
		return http.StatusNotFound
	case "42501":
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}
