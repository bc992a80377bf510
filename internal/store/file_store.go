package store

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/renameio/v2"
)

// FileStore persists the state as one JSON document on local disk.
// Writes go to a temporary file that is renamed over the document, so readers
// never observe a partially written file. Serialization is per process: two
// processes sharing one file can still lose updates.
type FileStore struct {
	path   string
	strict bool
	logger *slog.Logger
	mu     sync.RWMutex
}

// NewFileStore creates a FileStore backed by the JSON document at path.
// The file and its directory are created on the first write.
func NewFileStore(path string, strict bool, logger *slog.Logger) *FileStore {
	return &FileStore{
		path:   path,
		strict: strict,
		logger: logger.With("component", "file_store", "path", path),
	}
}

func (f *FileStore) Load(ctx context.Context) (*State, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	st, _, err := f.load(ctx)
	return st, err
}

func (f *FileStore) Save(ctx context.Context, state *State) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.save(state)
}

func (f *FileStore) Update(ctx context.Context, fn func(state *State) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	st, healed, err := f.load(ctx)
	if err != nil {
		return err
	}
	if err := fn(st); err != nil {
		return err
	}
	if healed {
		f.quarantine(ctx)
	}
	return f.save(st)
}

// Ping checks that the directory holding the document exists.
func (f *FileStore) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(filepath.Dir(f.path))
	if err != nil {
		return fmt.Errorf("store directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("store directory %s is not a directory", filepath.Dir(f.path))
	}
	return nil
}

// load reads the document. healed is true when an unreadable document was replaced by an empty state.
func (f *FileStore) load(ctx context.Context) (st *State, healed bool, err error) {
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewState(), false, nil
	}
	if err != nil {
		st, err = healCorrupt(ctx, f.logger, f.strict, fmt.Errorf("read %s: %w", f.path, err))
		return st, err == nil, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewState(), false, nil
	}
	st, err = decodeState(data)
	if err != nil {
		st, err = healCorrupt(ctx, f.logger, f.strict, fmt.Errorf("decode %s: %w", f.path, err))
		return st, err == nil, err
	}
	return st, false, nil
}

func (f *FileStore) save(state *State) error {
	data, err := encodeState(state)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("failed to create store directory: %w", err)
	}
	if err := renameio.WriteFile(f.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}

// quarantine moves an unreadable document aside before it is overwritten.
func (f *FileStore) quarantine(ctx context.Context) {
	backup := fmt.Sprintf("%s.corrupt-%s", f.path, time.Now().UTC().Format("20060102T150405.000000000"))
	if err := os.Rename(f.path, backup); err != nil && !errors.Is(err, fs.ErrNotExist) {
		f.logger.WarnContext(ctx, "Failed to move unreadable state aside", "error", err)
		return
	}
	f.logger.WarnContext(ctx, "Unreadable state moved aside", "backup", backup)
}
