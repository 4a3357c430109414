/*
 * Copyright (c) 2025 by Alexander Drost, Oldenburg, Germany.
 * This file is licensed to you under the Apache License, Version 2.0 (the "License"); you may not use this file except in compliance with the License.  You may obtain a copy of the License at
 *   http://www.apache.org/licenses/LICENSE-2.0
 * Unless required by applicable law or agreed to in writing, software distributed under the License is distributed on an
 * "AS IS" BASIS, WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.  See the License for the specific language governing permissions and limitations under the License.
 */

package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	// PostgreSQL through database/sql
	_ "github.com/jackc/pgx/v5/stdlib"
	// Pure-Go SQLite driver (CGO-free)
	_ "modernc.org/sqlite"

	applog "vnengine/internal/log"
	"vnengine/internal/version"
)

// schemaVersion tracks the save store schema. Bump it and add a migration
// step when the schema changes.
const schemaVersion = 2

// Dialect names the SQL flavor behind a Store.
type Dialect string

const (
	SQLite   Dialect = "sqlite"
	Postgres Dialect = "pgx"
)

// Store is a handle on the save database.
type Store struct {
	db      *sql.DB
	dialect Dialect
	log     *slog.Logger
}

// DialectFor picks the driver for a DSN: postgres URLs use pgx, anything else
// is a SQLite file path.
func DialectFor(dsn string) Dialect {
	d := strings.ToLower(strings.TrimSpace(dsn))
	if strings.HasPrefix(d, "postgres://") || strings.HasPrefix(d, "postgresql://") {
		return Postgres
	}
	return SQLite
}

// Open connects to the store at dsn and brings its schema up to date.
func Open(ctx context.Context, dsn string) (*Store, error) {
	l := applog.WithOperation(applog.WithComponent("storage"), "open")
	if strings.TrimSpace(dsn) == "" {
		return nil, errors.New("store dsn is required")
	}
	dialect := DialectFor(dsn)
	var (
		db  *sql.DB
		err error
	)
	switch dialect {
	case Postgres:
		db, err = sql.Open(string(Postgres), dsn)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
	default:
		if dir := filepath.Dir(dsn); dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create store dir: %w", err)
			}
		}
		uri := fmt.Sprintf("file:%s?cache=shared&_pragma=busy_timeout(5000)", filepath.ToSlash(dsn))
		db, err = sql.Open(string(SQLite), uri)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
	}
	s := &Store{db: db, dialect: dialect, log: applog.WithComponent("storage")}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if dialect == SQLite {
		if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL;"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("enable WAL: %w", err)
		}
	}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		l.Error("ensure schema failed", slog.Any("err", err))
		return nil, err
	}
	if err := s.runMigrations(ctx); err != nil {
		_ = db.Close()
		l.Error("run migrations failed", slog.Any("err", err))
		return nil, err
	}
	l.Info("save store ready", slog.String("dialect", string(dialect)))
	return s, nil
}

// Close releases the database.
func (s *Store) Close() error { return s.db.Close() }

// Dialect reports which driver the store uses.
func (s *Store) Dialect() Dialect { return s.dialect }

// SchemaVersion reads the schema version recorded in the store.
func (s *Store) SchemaVersion(ctx context.Context) (int, error) {
	var v int
	err := s.db.QueryRowContext(ctx, s.rebind(`SELECT schema FROM version WHERE id=1`)).Scan(&v)
	return v, err
}

// rebind rewrites ? placeholders to $n for PostgreSQL.
func (s *Store) rebind(q string) string {
	if s.dialect != Postgres {
		return q
	}
	var b strings.Builder
	n := 0
	for _, r := range q {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(q), args...)
}

func (s *Store) ensureSchema(ctx context.Context) error {
	ddl := []string{
		`CREATE TABLE IF NOT EXISTS version (
			id          INTEGER PRIMARY KEY CHECK(id=1),
			schema      INTEGER NOT NULL,
			app         TEXT,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS saves (
			id          TEXT PRIMARY KEY,
			slot        TEXT NOT NULL UNIQUE,
			script      TEXT NOT NULL,
			idx         INTEGER NOT NULL,
			state       TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		)`,
	}
	for _, q := range ddl {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create table: %w", err)
		}
	}
	now := time.Now().UTC().Format(time.RFC3339)
	appv := version.String()
	var cur int
	err := s.db.QueryRowContext(ctx, `SELECT schema FROM version WHERE id=1`).Scan(&cur)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		// fresh stores start at 1 and migrate forward like old ones
		if _, err := s.exec(ctx, `INSERT INTO version (id, schema, app, created_at, updated_at) VALUES(1, ?, ?, ?, ?)`, 1, appv, now, now); err != nil {
			return fmt.Errorf("insert version: %w", err)
		}
	case err != nil:
		return fmt.Errorf("read version: %w", err)
	default:
		if _, err := s.exec(ctx, `UPDATE version SET app=?, updated_at=? WHERE id=1`, appv, now); err != nil {
			return fmt.Errorf("update version: %w", err)
		}
	}
	return nil
}

// migrations maps a schema version to the statements that reach it.
var migrations = map[int][]string{
	2: {
		`CREATE INDEX IF NOT EXISTS idx_saves_updated ON saves(updated_at)`,
		`CREATE INDEX IF NOT EXISTS idx_saves_script ON saves(script)`,
	},
}

func (s *Store) runMigrations(ctx context.Context) error {
	cur, err := s.SchemaVersion(ctx)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if cur > schemaVersion {
		s.log.Warn("store schema is newer than this build", slog.Int("schema", cur), slog.Int("supported", schemaVersion))
		return nil
	}
	for cur < schemaVersion {
		next := cur + 1
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", next, err)
		}
		for _, q := range migrations[next] {
			if _, err := tx.ExecContext(ctx, q); err != nil {
				_ = tx.Rollback()
				return fmt.Errorf("migration %d stmt failed: %w", next, err)
			}
		}
		if _, err := tx.ExecContext(ctx, s.rebind(`UPDATE version SET schema=?, updated_at=? WHERE id=1`), next, time.Now().UTC().Format(time.RFC3339)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d update version: %w", next, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("migration %d commit: %w", next, err)
		}
		s.log.Info("store migrated", slog.Int("schema", next))
		cur = next
	}
	return nil
}
