package database

import (
	"embed"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	mdb "github.com/golang-migrate/migrate/v4/database"
	migratepgx "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/eslsoft/studyplan/internal/infrastructure/config"
)

//go:embed migrations/*.sql
var migrationFS embed.FS

// Migrator applies the embedded schema migrations.
type Migrator struct {
	m *migrate.Migrate
}

// NewMigrator binds the embedded migrations to db. The migrator is not closed
// separately: closing it would close db.
func NewMigrator(db *DB) (*Migrator, error) {
	src, err := iofs.New(migrationFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("load migrations: %w", err)
	}
	target, err := migrationTarget(db)
	if err != nil {
		return nil, err
	}
	m, err := migrate.NewWithInstance("iofs", src, db.DriverName, target)
	if err != nil {
		return nil, fmt.Errorf("init migrator: %w", err)
	}
	return &Migrator{m: m}, nil
}

func migrationTarget(db *DB) (mdb.Driver, error) {
	var (
		drv mdb.Driver
		err error
	)
	switch db.DriverName {
	case config.DriverPostgres:
		drv, err = postgres.WithInstance(db.SQL, &postgres.Config{})
	case config.DriverPgx:
		drv, err = migratepgx.WithInstance(db.SQL, &migratepgx.Config{})
	case config.DriverSQLite3:
		drv, err = sqlite3.WithInstance(db.SQL, &sqlite3.Config{})
	case config.DriverSQLite:
		drv, err = sqlite.WithInstance(db.SQL, &sqlite.Config{})
	default:
		return nil, fmt.Errorf("no migration driver for %q", db.DriverName)
	}
	if err != nil {
		return nil, fmt.Errorf("migration driver %s: %w", db.DriverName, err)
	}
	return drv, nil
}

// Up applies all pending migrations.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate up: %w", err)
	}
	return nil
}

// Steps applies n migrations, rolling back when n is negative.
func (m *Migrator) Steps(n int) error {
	if err := m.m.Steps(n); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migrate steps %d: %w", n, err)
	}
	return nil
}

// Version reports the applied version. ok is false on a fresh database.
func (m *Migrator) Version() (version uint, dirty bool, ok bool, err error) {
	version, dirty, err = m.m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, false, nil
	}
	if err != nil {
		return 0, false, false, fmt.Errorf("migration version: %w", err)
	}
	return version, dirty, true, nil
}

// Migrate applies all pending migrations to db.
func Migrate(db *DB) error {
	m, err := NewMigrator(db)
	if err != nil {
		return err
	}
	return m.Up()
}
