package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/wonny/krxvalue/pkg/config"
)

// ErrNotConfigured is returned when DATABASE_URL is empty.
// The database is optional: callers fall back to upstream-only prices.
var ErrNotConfigured = errors.New("database not configured")

const connectTimeout = 5 * time.Second

// DB owns the process-wide pgx pool
// ⭐ SSOT: DB 연결은 이 패키지에서만 생성
type DB struct {
	Pool *pgxpool.Pool
}

// New opens the pool and verifies it with one ping
// ⭐ SSOT: 유일하게 pgxpool.NewWithConfig()를 호출하는 함수
func New(cfg *config.Config) (*DB, error) {
	if !cfg.Database.Enabled() {
		return nil, ErrNotConfigured
	}

	poolConfig, err := poolConfig(cfg.Database)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("open pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping %s: %w", poolConfig.ConnConfig.Host, err)
	}

	return &DB{Pool: pool}, nil
}

// poolConfig applies the pool sizing; zero values keep pgx defaults
func poolConfig(c config.DatabaseConfig) (*pgxpool.Config, error) {
	pc, err := pgxpool.ParseConfig(c.URL)
	if err != nil {
		return nil, fmt.Errorf("parse DATABASE_URL: %w", err)
	}

	if c.MaxConns > 0 {
		pc.MaxConns = int32(c.MaxConns)
	}
	if c.MinConns > 0 {
		pc.MinConns = int32(c.MinConns)
	}
	if c.MaxConnLifetime > 0 {
		pc.MaxConnLifetime = c.MaxConnLifetime
	}
	if c.MaxConnIdleTime > 0 {
		pc.MaxConnIdleTime = c.MaxConnIdleTime
	}
	return pc, nil
}

// Close closes the pool
func (db *DB) Close() {
	if db.Pool != nil {
		db.Pool.Close()
	}
}

// Ping is the /health check. The error carries pool usage for diagnosis.
func (db *DB) Ping(ctx context.Context) error {
	if err := db.Pool.Ping(ctx); err != nil {
		stat := db.Pool.Stat()
		return fmt.Errorf("postgres ping (conns %d/%d acquired): %w",
			stat.AcquiredConns(), stat.TotalConns(), err)
	}
	return nil
}
