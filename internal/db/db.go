package db

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib" // registers the "pgx" driver
	"github.com/longcipher/sui-indexer/pkg/config"
	_ "github.com/mattn/go-sqlite3"
)

// Open opens the database selected by cfg.URL, sizes its connection pool and
// verifies it is reachable within cfg.ConnectTimeout.
// It returns the database/sql driver name alongside the handle.
func Open(ctx context.Context, cfg config.DatabaseConfig) (*sql.DB, string, error) {
	driver, dsn, err := cfg.Driver()
	if err != nil {
		return nil, "", err
	}

	if driver == config.DriverSQLite {
		dsn = fmt.Sprintf(
			"file:%s?_txlock=immediate&_journal_mode=%s&_busy_timeout=%d",
			dsn,
			cfg.JournalMode,
			cfg.BusyTimeout,
		)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, "", fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxConnections)
	db.SetMaxIdleConns(cfg.MinConnections)
	db.SetConnMaxIdleTime(cfg.IdleTimeout.Duration)

	if cfg.ConnectTimeout.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.ConnectTimeout.Duration)
		defer cancel()
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, "", fmt.Errorf("failed to connect to database: %w", err)
	}

	return db, driver, nil
}
