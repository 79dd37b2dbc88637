package state

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/y0ug/ipamon/internal/state/models"
)

// FileStore implements the Store interface on a single JSON document,
// one entry per channel. Writes go through a temp file plus rename so a
// process killed mid-write never leaves a half-written state file behind.
type FileStore struct {
	path string
	mu   sync.Mutex
	doc  map[string]models.ChannelState
}

// NewFileStore initializes a FileStore for the given path. The file is read
// (or created) by Initialize.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		doc:  make(map[string]models.ChannelState),
	}
}

// fileDocument is the on-disk envelope. Older state files stored the
// per-channel entries at the top level without the envelope; loadLocked
// accepts both.
type fileDocument struct {
	Channels map[string]json.RawMessage `json:"channels"`
}

// Initialize creates the state directory if needed and loads existing state,
// migrating legacy-shaped entries in place.
func (f *FileStore) Initialize(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	if _, err := os.Stat(f.path); os.IsNotExist(err) {
		logrus.WithField("path", f.path).Info("State file not found, starting with empty state")
		return f.persistLocked()
	}

	return f.loadLocked()
}

func (f *FileStore) loadLocked() error {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fmt.Errorf("failed to read state file: %w", err)
	}

	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("invalid state file %s: %w", f.path, err)
	}

	entries := doc.Channels
	if entries == nil {
		// Legacy layout: channel entries at the top level.
		if err := json.Unmarshal(data, &entries); err != nil {
			return fmt.Errorf("invalid state file %s: %w", f.path, err)
		}
		logrus.WithField("path", f.path).Info("Migrating legacy state file layout")
	}

	f.doc = make(map[string]models.ChannelState, len(entries))
	for channel, raw := range entries {
		f.doc[channel] = models.DecodeChannelState(raw)
	}

	return nil
}

func (f *FileStore) persistLocked() error {
	doc := struct {
		Channels map[string]models.ChannelState `json:"channels"`
	}{Channels: f.doc}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write state file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}

	return nil
}

// ChannelState retrieves the state for a channel.
func (f *FileStore) ChannelState(ctx context.Context, channel string) (models.ChannelState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	state, ok := f.doc[channel]
	if !ok {
		state = models.ChannelState{}
	}
	state.Normalize()
	return state, nil
}

// SetChannelState replaces the state for a channel and persists the full
// document synchronously.
func (f *FileStore) SetChannelState(ctx context.Context, channel string, state models.ChannelState) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	state.Normalize()
	previous, had := f.doc[channel]
	f.doc[channel] = state

	if err := f.persistLocked(); err != nil {
		// Keep memory and disk in agreement; a failed write must not
		// advance the state a later tick reads.
		if had {
			f.doc[channel] = previous
		} else {
			delete(f.doc, channel)
		}
		return err
	}

	return nil
}

// Close is a no-op for the file backend; every mutation is already flushed.
func (f *FileStore) Close(ctx context.Context) error {
	return nil
}
