package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/florence-gateway/backend/internal/retry"
)

const applicationName = "florence-gateway"

// PoolOptions tunes the pool. Zero values fall back to the defaults below.
type PoolOptions struct {
	MaxConns         int32
	StatementTimeout time.Duration
	// Connect retries the first ping, the database often comes up after the gateway.
	Connect retry.Policy
}

// poolConfig builds the pgxpool config. Every event takes a few short ledger
// queries under a per-user lock, so the pool stays small and statements are capped.
func poolConfig(dsn string, opts PoolOptions) (*pgxpool.Config, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}

	cfg.MaxConns = opts.MaxConns
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 8
	}
	cfg.MinConns = 1
	cfg.MaxConnLifetime = 30 * time.Minute
	cfg.MaxConnIdleTime = 5 * time.Minute

	timeout := opts.StatementTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	rp := cfg.ConnConfig.RuntimeParams
	if _, ok := rp["application_name"]; !ok {
		rp["application_name"] = applicationName
	}
	rp["statement_timeout"] = fmt.Sprintf("%d", timeout.Milliseconds())
	return cfg, nil
}

func NewPostgresPool(ctx context.Context, dsn string, opts PoolOptions, log *zap.Logger) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn, opts)
	if err != nil {
		return nil, err
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	policy := opts.Connect
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 1
	}
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		log.Warn("postgres not ready, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("delay", delay),
			zap.Error(err),
		)
	}
	if err := policy.Do(ctx, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	log.Info("postgres pool created",
		zap.String("database", cfg.ConnConfig.Database),
		zap.Int32("max_conns", cfg.MaxConns),
		zap.String("statement_timeout_ms", cfg.ConnConfig.RuntimeParams["statement_timeout"]),
	)
	return pool, nil
}
