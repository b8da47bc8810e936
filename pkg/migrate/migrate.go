// Package migrate applies the goose migrations embedded in the binary.
package migrate

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"strconv"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/angelmondragon/learnhub-backend/pkg/config"
)

// SourceDir is where new migration files are written, relative to the repo root.
const SourceDir = "pkg/migrate/migrations"

const embeddedDir = "migrations"

//go:embed migrations/*.sql
var embedded embed.FS

// goose keeps dialect and filesystem in package globals.
var gooseMu sync.Mutex

// Dialect maps a configured database driver onto the goose dialect name.
func Dialect(driver string) string {
	if driver == config.DBDriverSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// Migrator runs the embedded migration set against one database.
type Migrator struct {
	db      *sql.DB
	dialect string
}

func New(db *sql.DB, driver string) (*Migrator, error) {
	if db == nil {
		return nil, fmt.Errorf("db is required")
	}
	return &Migrator{db: db, dialect: Dialect(driver)}, nil
}

func (m *Migrator) Up(ctx context.Context) error {
	return m.with(func() error { return goose.UpContext(ctx, m.db, embeddedDir) })
}

func (m *Migrator) Down(ctx context.Context) error {
	return m.with(func() error { return goose.DownContext(ctx, m.db, embeddedDir) })
}

// Status prints the applied state of every migration to stdout.
func (m *Migrator) Status(ctx context.Context) error {
	return m.with(func() error { return goose.StatusContext(ctx, m.db, embeddedDir) })
}

// Version returns the current schema version.
func (m *Migrator) Version(ctx context.Context) (int64, error) {
	var version int64
	err := m.with(func() error {
		v, err := goose.GetDBVersionContext(ctx, m.db)
		version = v
		return err
	})
	return version, err
}

// To moves the schema up or down to target (YYYYMMDDHHMMSS).
func (m *Migrator) To(ctx context.Context, target string) error {
	version, err := strconv.ParseInt(target, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid version %q (expected YYYYMMDDHHMMSS): %w", target, err)
	}
	return m.with(func() error {
		current, err := goose.GetDBVersionContext(ctx, m.db)
		if err != nil {
			return fmt.Errorf("get db version: %w", err)
		}
		switch {
		case current == version:
			return nil
		case current < version:
			return goose.UpToContext(ctx, m.db, embeddedDir, version)
		default:
			return goose.DownToContext(ctx, m.db, embeddedDir, version)
		}
	})
}

func (m *Migrator) with(fn func() error) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	goose.SetBaseFS(embedded)
	if err := goose.SetDialect(m.dialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}
	if err := fn(); err != nil {
		return fmt.Errorf("goose: %w", err)
	}
	return nil
}
