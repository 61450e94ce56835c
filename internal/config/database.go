package config

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sethvargo/go-retry"
	"github.com/sirupsen/logrus"

	"github.com/nasirmalek/FamilyCircle/internal/backend"
	"github.com/nasirmalek/FamilyCircle/migrations"
)

const pingAttempts = 5

// Database holds database connection and configuration
type Database struct {
	*sql.DB
	Dialect backend.Dialect
	logger  *logrus.Logger
}

// NewDatabase opens a connection for driver and waits for it to answer a
// ping, retrying with exponential backoff.
func NewDatabase(ctx context.Context, driver, databaseURL string, logger *logrus.Logger) (*Database, error) {
	dialect, err := backend.ParseDialect(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(string(dialect), databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if dialect == backend.SQLite {
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}

	b := retry.WithMaxRetries(pingAttempts-1, retry.NewExponential(200*time.Millisecond))
	attempt := 0
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		if err := db.PingContext(ctx); err != nil {
			logger.WithFields(logrus.Fields{
				"attempt": attempt,
				"driver":  dialect,
			}).Warnf("Database ping failed: %v", err)
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.WithField("driver", dialect).Info("Database connection established successfully")

	return &Database{
		DB:      db,
		Dialect: dialect,
		logger:  logger,
	}, nil
}

// Backend returns the generic query layer over this connection.
func (d *Database) Backend() *backend.Backend {
	return backend.New(d.DB, d.Dialect, d.logger)
}

// Migrate runs the embedded migrations for the database's dialect.
func (d *Database) Migrate() error {
	return Migrate(d.DB, d.Dialect, d.logger)
}

// Migrate applies the embedded migrations to db. The migrate instance is
// not closed because its drivers close the underlying *sql.DB.
func Migrate(db *sql.DB, dialect backend.Dialect, logger *logrus.Logger) error {
	var (
		driver database.Driver
		err    error
	)
	switch dialect {
	case backend.Postgres:
		driver, err = postgres.WithInstance(db, &postgres.Config{})
	case backend.SQLite:
		driver, err = sqlite3.WithInstance(db, &sqlite3.Config{})
	default:
		return fmt.Errorf("unsupported database driver %q", dialect)
	}
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrations.FS, string(dialect))
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", source, string(dialect), driver)
	if err != nil {
		return fmt.Errorf("failed to create migration instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// Close closes the database connection
func (d *Database) Close() error {
	if d.DB != nil {
		return d.DB.Close()
	}
	return nil
}
