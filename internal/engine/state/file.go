package state

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"
)

// FileStore keeps the full key→state mapping in memory and writes the whole
// JSON object through to disk on every Put. Check intervals are seconds to
// minutes, so the rewrite cost is irrelevant next to crash tolerance.
type FileStore struct {
	path   string
	logger *zap.Logger

	mu     sync.Mutex
	states map[string]State
}

// NewFileStore loads existing state from path. A missing file starts the
// engine with all-default state; a record that fails to parse falls back to
// the default for that key rather than failing the whole store.
func NewFileStore(path string, logger *zap.Logger) (*FileStore, error) {
	fs := &FileStore{
		path:   path,
		logger: logger,
		states: make(map[string]State),
	}
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fs, nil
		}
		return nil, fmt.Errorf("FileStore: reading %s: %w", path, err)
	}
	var raw map[string]json.RawMessage
	if err = json.Unmarshal(b, &raw); err != nil {
		logger.Warn("state file is corrupt, starting with default state",
			zap.String("path", path), zap.Error(err))
		return fs, nil
	}
	for key, rec := range raw {
		var st State
		if err = json.Unmarshal(rec, &st); err != nil {
			logger.Warn("dropping unparseable state record",
				zap.String("key", key), zap.Error(err))
			continue
		}
		fs.states[key] = st
	}
	return fs, nil
}

func (fs *FileStore) Get(_ context.Context, key string) State {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	st, ok := fs.states[key]
	if !ok {
		return Default()
	}
	return st
}

func (fs *FileStore) Put(_ context.Context, key string, st State) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.states[key] = st
	if err := fs.flushLocked(); err != nil {
		return fmt.Errorf("FileStore.Put: %w", err)
	}
	return nil
}

func (fs *FileStore) Prune(_ context.Context, active map[string]struct{}) error {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	pruned := false
	for key := range fs.states {
		if _, ok := active[key]; !ok {
			delete(fs.states, key)
			pruned = true
		}
	}
	if !pruned {
		return nil
	}
	if err := fs.flushLocked(); err != nil {
		return fmt.Errorf("FileStore.Prune: %w", err)
	}
	return nil
}

// flushLocked writes via a temp file and rename so a crash mid-write never
// leaves a truncated state file. Caller holds fs.mu.
func (fs *FileStore) flushLocked() error {
	b, err := json.MarshalIndent(fs.states, "", "  ")
	if err != nil {
		return err
	}
	tmp := fs.path + ".tmp"
	if err = os.MkdirAll(filepath.Dir(fs.path), 0o755); err != nil {
		return err
	}
	if err = os.WriteFile(tmp, b, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, fs.path)
}

func (fs *FileStore) Close() error {
	return nil
}
