// Package sqlstore implements datastore.Client on top of database/sql.
//
// Two dialects are supported: SQLite through modernc.org/sqlite, used for
// local development and tests, and Postgres through the pgx stdlib driver.
// On Postgres each operation runs in its own transaction that first
// publishes the caller's token claims with
//
//	SELECT set_config('request.jwt.claims', <claims>, true)
//
// so the row-level security policies installed by the migrations see the
// same subject a PostgREST gateway would.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/dares/internal/client/datastore"
	"github.com/dmitrijs2005/dares/internal/client/datastore/sqlstore/migrations"
	"github.com/dmitrijs2005/dares/internal/common"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// Dialect selects SQL flavour and driver.
type Dialect int

const (
	SQLite Dialect = iota
	Postgres
)

// ParseDialect maps a backend name ("sqlite", "postgres") to a Dialect.
func ParseDialect(name string) (Dialect, error) {
	switch strings.ToLower(name) {
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "postgres", "postgresql", "pgx":
		return Postgres, nil
	}
	return 0, fmt.Errorf("unknown sql backend %q: %w", name, common.ErrConfiguration)
}

func (d Dialect) String() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite"
}

func (d Dialect) driverName() string {
	if d == Postgres {
		return "pgx"
	}
	return "sqlite"
}

func (d Dialect) gooseDialect() string {
	if d == Postgres {
		return "postgres"
	}
	return "sqlite3"
}

// Store owns the connection pool shared by every Client it vends.
type Store struct {
	db      *sql.DB
	dialect Dialect
}

// New wraps an existing pool.
func New(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect}
}

// Open connects to dsn. SQLite pools are pinned to one connection so that
// ":memory:" databases are shared and foreign keys are enforced.
func Open(ctx context.Context, dialect Dialect, dsn string) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("sqlstore: empty dsn: %w", common.ErrConfiguration)
	}
	if dialect == SQLite {
		dsn = withSQLitePragmas(dsn)
	}
	db, err := sql.Open(dialect.driverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("sqlstore: open %s: %w", dialect, err)
	}
	if dialect == SQLite {
		db.SetMaxOpenConns(1)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlstore: ping %s: %w", dialect, err)
	}
	return New(db, dialect), nil
}

func withSQLitePragmas(dsn string) string {
	if strings.Contains(dsn, "_pragma=foreign_keys") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_pragma=foreign_keys(1)"
}

// DB exposes the underlying pool.
func (s *Store) DB() *sql.DB { return s.db }

// Dialect reports the store's SQL flavour.
func (s *Store) Dialect() Dialect { return s.dialect }

// Close releases the pool.
func (s *Store) Close() error { return s.db.Close() }

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies the embedded schema for the store's dialect.
func (s *Store) Migrate(ctx context.Context) error {
	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect(s.dialect.gooseDialect()); err != nil {
		return err
	}
	if err := gooseUpContext(ctx, s.db, s.dialect.String()); err != nil {
		return fmt.Errorf("sqlstore: migrate: %w", err)
	}
	return nil
}

// Factory returns a datastore.Factory vending clients over this store.
func (s *Store) Factory() datastore.Factory {
	return func(token string) (datastore.Client, error) {
		return s.Client(token)
	}
}

// Client builds a datastore client for token.
func (s *Store) Client(token string) (*Client, error) {
	claims, err := claimsJSON(token)
	if err != nil {
		return nil, err
	}
	return &Client{store: s, token: token, claims: claims}, nil
}
