package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/KevinKickass/FleetView/internal/config"
	"go.uber.org/zap"
)

// Store is the key-value backend behind browser sessions.
type Store interface {
	Get(ctx context.Context, sessionID, key string) (string, bool, error)
	Set(ctx context.Context, sessionID, key, value string) error
	Delete(ctx context.Context, sessionID string, keys ...string) error
	Clear(ctx context.Context, sessionID string) error
	Close()
}

var ErrNoSession = errors.New("session id missing")

// NewStore builds the backend selected by session.backend.
func NewStore(ctx context.Context, cfg config.SessionConfig, logger *zap.Logger) (Store, error) {
	switch cfg.Backend {
	case "postgres":
		store, err := NewPostgresStore(ctx, cfg.Database, cfg.TTL)
		if err != nil {
			return nil, err
		}
		logger.Info("Session store: postgres",
			zap.String("host", cfg.Database.Host),
			zap.String("database", cfg.Database.Database))
		return store, nil
	case "memory", "":
		logger.Info("Session store: memory", zap.Duration("ttl", cfg.TTL))
		return NewMemoryStore(cfg.TTL), nil
	default:
		return nil, fmt.Errorf("unknown session backend %q", cfg.Backend)
	}
}
