package store

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/jmoiron/sqlx"
	"github.com/qustavo/dotsql"
)

//go:embed queries/*.sql
var queriesFS embed.FS

//go:embed schema.sql
var schemaSQL string

// Queries provides access to named SQL queries loaded from embedded .sql
// files, with ? placeholders rebound for the active driver.
type Queries struct {
	dot *dotsql.DotSql
	db  *sqlx.DB
}

// LoadQueries loads all embedded .sql query files.
func LoadQueries(db *sqlx.DB) (*Queries, error) {
	var combined string
	err := fs.WalkDir(queriesFS, "queries", func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(path) != ".sql" {
			return nil
		}
		content, err := queriesFS.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		combined += string(content) + "\n"
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load query files: %w", err)
	}

	dot, err := dotsql.LoadFromString(combined)
	if err != nil {
		return nil, fmt.Errorf("parse queries: %w", err)
	}
	return &Queries{dot: dot, db: db}, nil
}

// Migrate applies the embedded schema. Statements are idempotent
// (CREATE ... IF NOT EXISTS) and dialect-neutral across sqlite and postgres.
func Migrate(db *sqlx.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// Exec executes a named query with placeholder rebinding.
func (q *Queries) Exec(ctx context.Context, name string, args ...any) (sql.Result, error) {
	query, err := q.dot.Raw(name)
	if err != nil {
		return nil, fmt.Errorf("query not found: %s", name)
	}
	return q.db.ExecContext(ctx, q.db.Rebind(query), args...)
}

// Get retrieves a single row into dest using a named query.
func (q *Queries) Get(ctx context.Context, name string, dest any, args ...any) error {
	query, err := q.dot.Raw(name)
	if err != nil {
		return fmt.Errorf("query not found: %s", name)
	}
	return q.db.GetContext(ctx, dest, q.db.Rebind(query), args...)
}

// Select retrieves multiple rows into dest using a named query.
func (q *Queries) Select(ctx context.Context, name string, dest any, args ...any) error {
	query, err := q.dot.Raw(name)
	if err != nil {
		return fmt.Errorf("query not found: %s", name)
	}
	return q.db.SelectContext(ctx, dest, q.db.Rebind(query), args...)
}
