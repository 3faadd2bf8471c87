package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/natefinch/atomic"
)

// FileKV is a [KV] stored as one JSON object in a file, the on-disk analogue of
// browser local storage. Every write replaces the file atomically, and [FileKV.Watch]
// reports modifications made by other processes sharing the file.
type FileKV struct {
	path string

	mu          sync.Mutex
	lastWritten []byte
}

// NewFileKV creates a backend persisting to path. The file and its directory are
// created on first write.
func NewFileKV(path string) *FileKV {
	return &FileKV{path: filepath.Clean(path)}
}

// Path returns the backing file.
func (f *FileKV) Path() string {
	return f.path
}

func (f *FileKV) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readLocked()
	if err != nil {
		return "", false, err
	}
	v, ok := data[key]
	return v, ok, nil
}

func (f *FileKV) Put(_ context.Context, values map[string]string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readLocked()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return err
		}
		data = map[string]string{}
	}
	for k, v := range values {
		if v == "" {
			delete(data, k)
			continue
		}
		data[k] = v
	}
	return f.writeLocked(data)
}

func (f *FileKV) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := f.readLocked()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return err
		}
		// A corrupt file holds nothing worth keeping.
		data = map[string]string{}
	}
	for _, k := range keys {
		delete(data, k)
	}
	return f.writeLocked(data)
}

// Watch reports changes to the backing file that this FileKV did not write
// itself. The parent directory is watched so atomic replacements are seen.
func (f *FileKV) Watch(ctx context.Context, onChange func()) error {
	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("session: file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("session: watch %s: %w", dir, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != f.path {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) &&
				!ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
				continue
			}
			if f.isOwnWrite() {
				continue
			}
			onChange()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("session: file watcher: %w", err)
		}
	}
}

func (f *FileKV) isOwnWrite() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	current, err := os.ReadFile(f.path)
	if err != nil {
		return errors.Is(err, os.ErrNotExist) && f.lastWritten == nil
	}
	return f.lastWritten != nil && bytes.Equal(current, f.lastWritten)
}

func (f *FileKV) readLocked() (map[string]string, error) {
	raw, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]string{}, nil
	}

	data := map[string]string{}
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, errors.Join(ErrCorrupt, err)
	}
	return data, nil
}

func (f *FileKV) writeLocked(data map[string]string) error {
	encoded, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if err := atomic.WriteFile(f.path, bytes.NewReader(encoded)); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	f.lastWritten = encoded
	return nil
}
