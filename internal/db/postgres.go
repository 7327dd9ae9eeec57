package db

import (
	"database/sql"
	"errors"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const (
	maxOpenConns    = 10
	maxIdleConns    = 2
	connMaxIdleTime = 5 * time.Minute

	pingRetries   = 3
	pingRetryWait = 500 * time.Millisecond
)

// Open opens a Postgres connection pool using the given DSN and verifies it with a short
// ping-retry loop, so the server survives a database that is still starting up.
// Caller must call Close when done.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, errors.New("db: empty DSN")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	var lastErr error
	for i := 0; i < pingRetries; i++ {
		if lastErr = db.Ping(); lastErr == nil {
			return db, nil
		}
		time.Sleep(pingRetryWait)
	}
	_ = db.Close()
	return nil, lastErr
}
