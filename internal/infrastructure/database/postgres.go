package database

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotConfigured means the data store endpoint is absent or still the
// placeholder value; callers route to the first-run setup state instead
// of treating it as a connection failure.
var ErrNotConfigured = errors.New("postgres: CIRCLE_DB_URL is not configured")

// Connect creates a pgx connection pool for the given DSN and verifies
// it with a ping.
func Connect(ctx context.Context, dsn string, opts ...func(*pgxpool.Config)) (*pgxpool.Pool, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	for _, opt := range opts {
		if opt != nil {
			opt(cfg)
		}
	}

	// Defaults sized for a chat gateway: a handful of query conns plus
	// one long-lived LISTEN conn.
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 8
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	if cfg.HealthCheckPeriod == 0 {
		cfg.HealthCheckPeriod = time.Minute
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

// NewPoolFromEnv reads CIRCLE_DB_URL and connects. A missing value or
// the setup placeholder yields ErrNotConfigured.
func NewPoolFromEnv(ctx context.Context, opts ...func(*pgxpool.Config)) (*pgxpool.Pool, error) {
	dsn := strings.TrimSpace(os.Getenv("CIRCLE_DB_URL"))
	if dsn == "" || dsn == "your-database-url" {
		return nil, ErrNotConfigured
	}
	return Connect(ctx, dsn, opts...)
}
