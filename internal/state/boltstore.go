package state

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/y0ug/ipamon/internal/state/models"
	"go.etcd.io/bbolt"
)

var channelsBucket = []byte("Channels")

// BoltStore implements the Store interface using bbolt.
type BoltStore struct {
	db   *bbolt.DB
	path string
}

// NewBoltStore opens (or creates) a bbolt database at path.
func NewBoltStore(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, nil)
	if err != nil {
		return nil, err
	}

	return &BoltStore{db: db, path: path}, nil
}

// Initialize sets up the necessary buckets.
func (b *BoltStore) Initialize(ctx context.Context) error {
	return b.db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists(channelsBucket); err != nil {
			return fmt.Errorf("create Channels bucket: %w", err)
		}
		return nil
	})
}

// ChannelState retrieves the state for a channel.
func (b *BoltStore) ChannelState(ctx context.Context, channel string) (models.ChannelState, error) {
	var raw []byte

	err := b.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(channelsBucket)
		if bucket == nil {
			return fmt.Errorf("Channels bucket does not exist")
		}
		if val := bucket.Get([]byte(channel)); val != nil {
			raw = append(raw, val...)
		}
		return nil
	})
	if err != nil {
		return models.ChannelState{}, err
	}

	// DecodeChannelState tolerates missing and legacy-shaped values.
	return models.DecodeChannelState(raw), nil
}

// SetChannelState replaces the state for a channel.
func (b *BoltStore) SetChannelState(ctx context.Context, channel string, state models.ChannelState) error {
	state.Normalize()

	data, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("failed to marshal channel state: %w", err)
	}

	err = b.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(channelsBucket)
		if bucket == nil {
			return fmt.Errorf("Channels bucket does not exist")
		}
		return bucket.Put([]byte(channel), data)
	})
	if err != nil {
		return fmt.Errorf("failed to store channel state: %w", err)
	}

	return nil
}

// Close closes the underlying bbolt database.
func (b *BoltStore) Close(ctx context.Context) error {
	return b.db.Close()
}
