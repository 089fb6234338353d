// Package database provides database connection handling and error
// classification for the relational target store.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	// Drivers register themselves with database/sql
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
)

// Supported sql driver names.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite3"
)

// Connection pool defaults
const (
	defaultMaxOpenConns    = 10
	defaultMaxIdleConns    = 5
	defaultConnMaxLifetime = 5 * time.Minute
	defaultPingTimeout     = 10 * time.Second
)

// Config holds database connection parameters.
type Config struct {
	// Driver is the sql driver name. Inferred from the DSN when empty.
	Driver string

	// DSN is the connection string
	DSN string
}

// Open opens and verifies a database connection, returning the handle and
// the resolved driver name.
func Open(ctx context.Context, cfg Config) (*sql.DB, string, error) {
	driver := cfg.Driver
	if driver == "" {
		driver = inferDriver(cfg.DSN)
	}
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, "", fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, "", NewConnectionError("failed to open database", err)
	}

	db.SetMaxOpenConns(defaultMaxOpenConns)
	db.SetMaxIdleConns(defaultMaxIdleConns)
	db.SetConnMaxLifetime(defaultConnMaxLifetime)

	// SQLite files tolerate a single writer
	if driver == DriverSQLite {
		db.SetMaxOpenConns(1)
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, "", NewConnectionError("failed to ping database", err)
	}

	return db, driver, nil
}

// inferDriver guesses the driver from the DSN shape. Postgres DSNs use a
// URL scheme or key=value pairs; everything else is treated as a SQLite
// file path.
func inferDriver(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		return DriverPostgres
	}
	if strings.Contains(dsn, "host=") || strings.Contains(dsn, "dbname=") {
		return DriverPostgres
	}
	return DriverSQLite
}

// FormatPlaceholder returns the parameter placeholder for the driver:
// $n for postgres, ? for sqlite3. index is 1-based.
func FormatPlaceholder(driver string, index int) string {
	if driver == DriverPostgres {
		return fmt.Sprintf("$%d", index)
	}
	return "?"
}
