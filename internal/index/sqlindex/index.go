// Package sqlindex implements index.Index on a relational database.
// PostgreSQL (via pgx) and SQLite (via modernc.org/sqlite) are supported;
// queries are written once with '?' placeholders and rebound per dialect.
package sqlindex

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/aasindex/internal/dbx"
	"github.com/dmitrijs2005/aasindex/internal/index"
	"github.com/dmitrijs2005/aasindex/internal/index/sqlindex/migrations"
	"github.com/dmitrijs2005/aasindex/internal/keywords"
	"github.com/dmitrijs2005/aasindex/internal/logging"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

var _ index.Index = (*Index)(nil)

// Index is the SQL-backed document index.
type Index struct {
	db      *sql.DB
	dialect dbx.Dialect
	dir     *keywords.Directory
	logger  logging.Logger
}

// New wraps an open database. The schema must already be migrated.
func New(db *sql.DB, dialect dbx.Dialect, dir *keywords.Directory, logger logging.Logger) *Index {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Index{db: db, dialect: dialect, dir: dir, logger: logger.With("component", "sqlindex")}
}

// Open connects to dsn, migrates the schema and returns the index.
func Open(ctx context.Context, dialect dbx.Dialect, dsn string, dir *keywords.Directory, logger logging.Logger) (*Index, error) {
	db, err := sql.Open(dialect.DriverName(), dsn)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", dialect, err)
	}
	if dialect == dbx.SQLite {
		// one writer; also keeps in-memory databases alive across calls
		db.SetMaxOpenConns(1)
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable foreign keys: %w", err)
		}
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping %s: %w", dialect, err)
	}

	idx := New(db, dialect, dir, logger)
	if err := idx.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return idx, nil
}

// gooseUpContext is a seam for testing goose.UpContext.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

// Migrate applies the embedded migrations of the index's dialect.
func (x *Index) Migrate(ctx context.Context) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(migrations.FS)
	if err := goose.SetDialect(x.dialect.GooseDialect()); err != nil {
		return fmt.Errorf("goose dialect: %w", err)
	}
	if err := gooseUpContext(ctx, x.db, string(x.dialect)); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	x.logger.Debug(ctx, "schema migrated", "dialect", x.dialect)
	return nil
}

// Close closes the database.
func (x *Index) Close() error {
	return x.db.Close()
}

func (x *Index) q(query string) string {
	return x.dialect.Rebind(query)
}
