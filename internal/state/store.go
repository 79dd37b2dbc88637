package state

import (
	"context"
	"fmt"

	"github.com/y0ug/ipamon/internal/state/models"
)

// Store defines the methods required for durable channel state.
type Store interface {
	// Initialize sets up the backing storage and loads any existing state.
	Initialize(ctx context.Context) error

	Close(ctx context.Context) error

	// ChannelState retrieves the state for a channel. An unknown channel
	// yields an empty, normalized state rather than an error.
	ChannelState(ctx context.Context, channel string) (models.ChannelState, error)

	// SetChannelState durably replaces the state for a channel.
	SetChannelState(ctx context.Context, channel string, state models.ChannelState) error
}

// Config holds the state-store configuration. Type selects the backend;
// "file" is the default and keeps the state in a single JSON document.
type Config struct {
	Type      string `toml:"type"`
	Path      string `toml:"path"`
	RedisAddr string `toml:"redis_addr"`
	RedisPass string `toml:"redis_password"`
	RedisDB   int    `toml:"redis_db"`
}

// DefaultStatePath is used when the file backend is selected without an
// explicit path.
const DefaultStatePath = "/var/lib/ipamon/state.json"

// Open constructs the store selected by cfg.
func Open(cfg Config) (Store, error) {
	path := cfg.Path

	switch cfg.Type {
	case "", "file":
		if path == "" {
			path = DefaultStatePath
		}
		return NewFileStore(path), nil
	case "bolt":
		if path == "" {
			return nil, fmt.Errorf("state path is required for the bolt backend")
		}
		return NewBoltStore(path)
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("redis_addr is required for the redis backend")
		}
		return NewRedisStore(cfg)
	default:
		return nil, fmt.Errorf("unsupported state backend: %s", cfg.Type)
	}
}
