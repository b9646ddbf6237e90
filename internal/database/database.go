// Package database provides connection management for the supported stores:
// PostgreSQL through pgx and an embedded SQLite file through modernc.org/sqlite.
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// Config holds PostgreSQL connection settings.
type Config struct {
	Host            string `env:"HOST" envDefault:"localhost"`
	Port            string `env:"PORT" envDefault:"5432"`
	User            string `env:"USER" envDefault:"postgres"`
	Password        string `env:"PASSWORD" envDefault:"postgres"`
	DBName          string `env:"NAME" envDefault:"activities"`
	SSLMode         string `env:"SSLMODE" envDefault:"disable"`
	MaxConns        int32  `env:"MAX_CONNS" envDefault:"20"`
	ConnectAttempts int    `env:"CONNECT_ATTEMPTS" envDefault:"5"`
}

// DSN builds a libpq-compatible connection string.
func (c Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode,
	)
}

// NewPool creates and validates a pgxpool connection pool.
// It retries up to cfg.ConnectAttempts times to accommodate containers starting up.
func NewPool(ctx context.Context, cfg Config, logger zerolog.Logger) (*pgxpool.Pool, error) {
	return newPool(ctx, cfg.DSN(), cfg.MaxConns, cfg.ConnectAttempts, logger)
}

// NewPoolFromURL is NewPool for a postgres:// URL, used by tests.
func NewPoolFromURL(ctx context.Context, url string, logger zerolog.Logger) (*pgxpool.Pool, error) {
	return newPool(ctx, url, 10, 1, logger)
}

func newPool(ctx context.Context, dsn string, maxConns int32, attempts int, logger zerolog.Logger) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	if maxConns > 0 {
		poolCfg.MaxConns = maxConns
	}
	poolCfg.MinConns = 2
	poolCfg.MaxConnLifetime = 30 * time.Minute
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	if attempts < 1 {
		attempts = 1
	}

	var pool *pgxpool.Pool
	for attempt := 1; attempt <= attempts; attempt++ {
		pool, err = pgxpool.NewWithConfig(ctx, poolCfg)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		if attempt == attempts {
			break
		}
		logger.Warn().Err(err).
			Int("attempt", attempt).
			Int("attempts", attempts).
			Msg("db connect failed, retrying in 2s")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(2 * time.Second):
		}
	}
	return nil, fmt.Errorf("connect to postgres: %w", err)
}
