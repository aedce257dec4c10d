package db

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/sethvargo/go-retry"
)

// ConnectOptions controls the startup ping loop and the pool size.
type ConnectOptions struct {
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	// PingAttempts is how many times to ping before giving up (default 5).
	PingAttempts uint64
}

func Connect(
	ctx context.Context,
	host, port, name, user, password string,
	opts ConnectOptions,
) (*sql.DB, error) {

	sslmode := opts.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	dsn := fmt.Sprintf(
		"host=%s port=%s dbname=%s user=%s password=%s sslmode=%s",
		host, port, name, user, password, sslmode,
	)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if opts.MaxOpenConns > 0 {
		db.SetMaxOpenConns(opts.MaxOpenConns)
	}
	if opts.MaxIdleConns > 0 {
		db.SetMaxIdleConns(opts.MaxIdleConns)
	}

	attempts := opts.PingAttempts
	if attempts == 0 {
		attempts = 5
	}
	// Postgres may still be starting when the API container comes up.
	backoff := retry.WithMaxRetries(attempts, retry.NewExponential(500*time.Millisecond))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		if err := db.PingContext(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return db, nil
}
