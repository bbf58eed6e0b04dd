package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/KevinKickass/FleetView/internal/config"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const createSessionsTable = `
CREATE TABLE IF NOT EXISTS ui_sessions (
	session_id TEXT NOT NULL,
	key        TEXT NOT NULL,
	value      TEXT NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
	PRIMARY KEY (session_id, key)
)`

// PostgresStore persists session keys in the ui_sessions table.
type PostgresStore struct {
	pool *pgxpool.Pool
	ttl  time.Duration
}

func NewPostgresStore(ctx context.Context, cfg config.DatabaseConfig, ttl time.Duration) (*PostgresStore, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to parse pool config: %w", err)
	}

	if cfg.MaxConnections > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConnections)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create pool: %w", err)
	}

	// Connection testen
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, createSessionsTable); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create sessions table: %w", err)
	}

	return &PostgresStore{pool: pool, ttl: ttl}, nil
}

func (p *PostgresStore) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	if sessionID == "" {
		return "", false, ErrNoSession
	}

	var value string
	err := p.pool.QueryRow(ctx, `
		WITH live AS (
			UPDATE ui_sessions SET updated_at = NOW()
			WHERE session_id = $1
			  AND ($3::bigint = 0 OR updated_at > NOW() - make_interval(secs => $3::bigint))
			RETURNING key, value
		)
		SELECT value FROM live WHERE key = $2
	`, sessionID, key, int64(p.ttl.Seconds())).Scan(&value)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("failed to get session key: %w", err)
	}
	return value, true, nil
}

func (p *PostgresStore) Set(ctx context.Context, sessionID, key, value string) error {
	if sessionID == "" {
		return ErrNoSession
	}

	_, err := p.pool.Exec(ctx, `
		INSERT INTO ui_sessions (session_id, key, value, updated_at)
		VALUES ($1, $2, $3, NOW())
		ON CONFLICT (session_id, key)
		DO UPDATE SET value = EXCLUDED.value, updated_at = NOW()
	`, sessionID, key, value)
	if err != nil {
		return fmt.Errorf("failed to set session key: %w", err)
	}
	return nil
}

func (p *PostgresStore) Delete(ctx context.Context, sessionID string, keys ...string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	if len(keys) == 0 {
		return nil
	}

	_, err := p.pool.Exec(ctx, `
		DELETE FROM ui_sessions WHERE session_id = $1 AND key = ANY($2)
	`, sessionID, keys)
	if err != nil {
		return fmt.Errorf("failed to delete session keys: %w", err)
	}
	return nil
}

func (p *PostgresStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrNoSession
	}
	if _, err := p.pool.Exec(ctx, `DELETE FROM ui_sessions WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("failed to clear session: %w", err)
	}
	return nil
}

// Purge removes rows older than the configured ttl.
func (p *PostgresStore) Purge(ctx context.Context) (int64, error) {
	if p.ttl <= 0 {
		return 0, nil
	}
	tag, err := p.pool.Exec(ctx, `
		DELETE FROM ui_sessions WHERE updated_at < NOW() - make_interval(secs => $1::bigint)
	`, int64(p.ttl.Seconds()))
	if err != nil {
		return 0, fmt.Errorf("failed to purge sessions: %w", err)
	}
	return tag.RowsAffected(), nil
}

func (p *PostgresStore) Close() {
	p.pool.Close()
}
