package cache

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// persistState holds the on-disk side of the cache. A file lock guards the
// JSON file because the CLI and a long-running engine process may share it.
type persistState struct {
	path string
	lock *flock.Flock
}

func newPersistState(path string) *persistState {
	return &persistState{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// cacheFile is the persisted representation.
type cacheFile struct {
	Version int      `json:"version"`
	Entries []*Entry `json:"entries"`
}

// persistLocked writes the current entries to disk. Caller holds c.mu.
// Persistence failures are logged, never fatal; the in-memory cache keeps
// working.
func (c *ResponseCache) persistLocked() {
	entries := make([]*Entry, 0, c.lru.Len())
	for _, key := range c.lru.Keys() {
		if entry, ok := c.lru.Peek(key); ok {
			entries = append(entries, entry)
		}
	}

	data, err := json.Marshal(cacheFile{Version: 1, Entries: entries})
	if err != nil {
		slog.Warn("cache_persist_marshal_failed", slog.String("error", err.Error()))
		return
	}

	if err := os.MkdirAll(filepath.Dir(c.state.path), 0o755); err != nil {
		slog.Warn("cache_persist_mkdir_failed", slog.String("error", err.Error()))
		return
	}

	locked, err := c.state.lock.TryLock()
	if err != nil || !locked {
		slog.Debug("cache_persist_skipped", slog.String("reason", "lock held by another process"))
		return
	}
	defer func() { _ = c.state.lock.Unlock() }()

	tmp := c.state.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		slog.Warn("cache_persist_write_failed", slog.String("error", err.Error()))
		return
	}
	if err := os.Rename(tmp, c.state.path); err != nil {
		_ = os.Remove(tmp)
		slog.Warn("cache_persist_rename_failed", slog.String("error", err.Error()))
		return
	}

	slog.Debug("cache_persisted",
		slog.String("path", c.state.path),
		slog.Int("entries", len(entries)))
}

// loadFromDisk restores unexpired entries. A corrupt or missing file starts
// the cache empty.
func (c *ResponseCache) loadFromDisk() {
	locked, err := c.state.lock.TryLock()
	if err != nil || !locked {
		return
	}
	defer func() { _ = c.state.lock.Unlock() }()

	data, err := os.ReadFile(c.state.path)
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("cache_load_failed", slog.String("error", err.Error()))
		}
		return
	}

	var file cacheFile
	if err := json.Unmarshal(data, &file); err != nil {
		slog.Warn("cache_load_corrupt",
			slog.String("path", c.state.path),
			slog.String("error", err.Error()))
		return
	}

	now := c.now()
	loaded := 0
	for _, entry := range file.Entries {
		if entry == nil || entry.Query == "" {
			continue
		}
		if now.Sub(entry.CreatedAt) > c.ttl {
			continue
		}
		c.lru.Add(Key(entry.Query, entry.FileFilter), entry)
		loaded++
	}

	slog.Debug("cache_loaded",
		slog.String("path", c.state.path),
		slog.Int("entries", loaded))
}
