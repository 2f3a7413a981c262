package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"entgo.io/ent/dialect"
	entsql "entgo.io/ent/dialect/sql"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jackc/pgx/v5/tracelog"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	_ "modernc.org/sqlite"

	"github.com/eslsoft/studyplan/internal/infrastructure/config"
)

const pingTimeout = 5 * time.Second

var sqlitePragmas = []string{
	"PRAGMA foreign_keys = ON",
	"PRAGMA busy_timeout = 5000",
	"PRAGMA journal_mode = WAL",
	"PRAGMA synchronous = NORMAL",
}

// DB is an open database handle. Queries built with entgo.io/ent/dialect/sql run
// through the embedded ent driver; SQL holds the raw pool for migrations and backups.
type DB struct {
	dialect.Driver

	SQL        *sql.DB
	DriverName string
}

// Options configures Open.
type Options struct {
	Driver string
	DSN    string
	// Logger receives SQL statements at debug level when set.
	Logger logrus.FieldLogger
}

// NewDB opens the database described by cfg and returns a cleanup func closing it.
func NewDB(cfg *config.Config, logger *logrus.Logger) (*DB, func(), error) {
	driver, err := cfg.DatabaseDriver()
	if err != nil {
		return nil, nil, fmt.Errorf("determine database driver: %w", err)
	}
	dsn, err := cfg.DatabaseURL()
	if err != nil {
		return nil, nil, fmt.Errorf("determine database dsn: %w", err)
	}

	opts := Options{Driver: driver, DSN: dsn}
	if cfg.Database.LogSQL {
		opts.Logger = logger.WithField("component", "sql")
	}
	db, err := Open(context.Background(), opts)
	if err != nil {
		return nil, nil, err
	}
	return db, func() { _ = db.Close() }, nil
}

// Open connects and pings the database.
func Open(ctx context.Context, opts Options) (*DB, error) {
	var (
		raw  *sql.DB
		name string
		err  error
	)
	switch opts.Driver {
	case config.DriverPostgres:
		name = dialect.Postgres
		raw, err = sql.Open(opts.Driver, opts.DSN)
	case config.DriverPgx:
		name = dialect.Postgres
		raw, err = openPgx(opts)
	case config.DriverSQLite3, config.DriverSQLite:
		name = dialect.SQLite
		raw, err = sql.Open(opts.Driver, opts.DSN)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", opts.Driver)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s db: %w", opts.Driver, err)
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	if name == dialect.SQLite {
		raw.SetMaxOpenConns(1)
		raw.SetMaxIdleConns(1)
	}
	if err := raw.PingContext(ctx); err != nil {
		raw.Close()
		return nil, fmt.Errorf("ping %s db: %w", opts.Driver, err)
	}
	if name == dialect.SQLite {
		for _, p := range sqlitePragmas {
			if _, err := raw.ExecContext(ctx, p); err != nil {
				raw.Close()
				return nil, fmt.Errorf("%s: %w", p, err)
			}
		}
	}

	var drv dialect.Driver = entsql.OpenDB(name, raw)
	if opts.Logger != nil && opts.Driver != config.DriverPgx {
		drv = dialect.Debug(drv, opts.Logger.Debug)
	}
	return &DB{Driver: drv, SQL: raw, DriverName: opts.Driver}, nil
}

func openPgx(opts Options) (*sql.DB, error) {
	connCfg, err := pgx.ParseConfig(opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse pgx config: %w", err)
	}
	if opts.Logger != nil {
		connCfg.Tracer = &tracelog.TraceLog{
			Logger:   traceLogger(opts.Logger),
			LogLevel: tracelog.LogLevelDebug,
		}
	}
	return stdlib.OpenDB(*connCfg), nil
}

// traceLogger forwards pgx trace output onto logrus.
func traceLogger(log logrus.FieldLogger) tracelog.Logger {
	return tracelog.LoggerFunc(func(_ context.Context, lvl tracelog.LogLevel, msg string, data map[string]any) {
		entry := log.WithFields(logrus.Fields(data))
		switch lvl {
		case tracelog.LogLevelError:
			entry.Error(msg)
		case tracelog.LogLevelWarn:
			entry.Warn(msg)
		case tracelog.LogLevelInfo:
			entry.Info(msg)
		default:
			entry.Debug(msg)
		}
	})
}

// Builder returns a statement builder for the connected dialect.
func (db *DB) Builder() *entsql.DialectBuilder {
	return entsql.Dialect(db.Dialect())
}
