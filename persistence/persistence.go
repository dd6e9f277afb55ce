// Package persistence opens the bun database and applies the account
// schema migrations.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	account "github.com/goliatone/go-account"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// Open connects to the database and wraps it with the bun dialect for
// driver.
func Open(driver, dsn string) (*bun.DB, error) {
	switch normalizeDriver(driver) {
	case DriverSQLite:
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, fmt.Errorf("db open error: %w", err)
		}
		// sqlite serializes writers, a single connection avoids SQLITE_BUSY
		sqldb.SetMaxOpenConns(1)
		return bun.NewDB(sqldb, sqlitedialect.New()), nil
	case DriverPostgres:
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, fmt.Errorf("db open error: %w", err)
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}
}

// Migrate applies every pending migration for the dialect of db
func Migrate(ctx context.Context, db *bun.DB, logger account.Logger) error {
	gooseDialect, dir, err := dialectOf(db)
	if err != nil {
		return err
	}

	fsys, err := account.DialectMigrations(dir)
	if err != nil {
		return fmt.Errorf("migrations fs: %w", err)
	}

	provider, err := goose.NewProvider(gooseDialect, db.DB, fsys)
	if err != nil {
		return fmt.Errorf("migration provider: %w", err)
	}

	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("migration error: %w", err)
	}

	if logger != nil {
		for _, res := range results {
			logger.Info("applied migration %d %s in %s", res.Source.Version, res.Direction, res.Duration)
		}
	}
	return nil
}

// OpenAndMigrate is Open followed by Migrate
func OpenAndMigrate(ctx context.Context, driver, dsn string, logger account.Logger) (*bun.DB, error) {
	db, err := Open(driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("db ping error: %w", err)
	}
	if err := Migrate(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

func dialectOf(db *bun.DB) (goose.Dialect, string, error) {
	switch db.Dialect().Name() {
	case dialect.SQLite:
		return goose.DialectSQLite3, DriverSQLite, nil
	case dialect.PG:
		return goose.DialectPostgres, DriverPostgres, nil
	default:
		return "", "", fmt.Errorf("unsupported dialect %s", db.Dialect().Name())
	}
}

func normalizeDriver(driver string) string {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "sqlite", "sqlite3", "":
		return DriverSQLite
	case "postgres", "postgresql", "pg", "pgx":
		return DriverPostgres
	default:
		return driver
	}
}
