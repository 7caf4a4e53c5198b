package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Snapshot bundles the three index handles that must stay consistent
// with each other. Readers grab the whole snapshot and never see a
// half-reloaded index.
type Snapshot struct {
	Lexical LexicalIndex
	Vector  VectorIndex
	Chunks  ChunkStore
}

// LoadFunc builds a fresh Snapshot from disk.
type LoadFunc func(ctx context.Context) (*Snapshot, error)

// Reloader watches the index directory and atomically swaps in a new
// snapshot when the on-disk indexes change, so a long-running engine
// picks up reindexed documents without a restart.
type Reloader struct {
	dir      string
	load     LoadFunc
	debounce time.Duration

	current atomic.Pointer[Snapshot]

	mu      sync.Mutex
	watcher *fsnotify.Watcher
	timer   *time.Timer
	stopped bool

	reloads atomic.Int64
}

// NewReloader creates a reloader seeded with an initial snapshot.
func NewReloader(dir string, initial *Snapshot, load LoadFunc) (*Reloader, error) {
	if initial == nil {
		return nil, fmt.Errorf("initial snapshot is required")
	}
	if load == nil {
		return nil, fmt.Errorf("load function is required")
	}

	r := &Reloader{
		dir:      dir,
		load:     load,
		debounce: 500 * time.Millisecond,
	}
	r.current.Store(initial)
	return r, nil
}

// Snapshot returns the current index snapshot.
func (r *Reloader) Snapshot() *Snapshot {
	return r.current.Load()
}

// Reloads returns how many snapshot swaps have happened.
func (r *Reloader) Reloads() int64 {
	return r.reloads.Load()
}

// Start begins watching the index directory. It returns immediately;
// reloads happen on a background goroutine until ctx is cancelled or
// Stop is called.
func (r *Reloader) Start(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", r.dir, err)
	}

	r.mu.Lock()
	r.watcher = watcher
	r.mu.Unlock()

	go r.run(ctx, watcher)
	return nil
}

func (r *Reloader) run(ctx context.Context, watcher *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			r.Stop()
			return

		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			// Only writes and creates change index content.
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			slog.Debug("index_change_detected",
				slog.String("path", event.Name),
				slog.String("op", event.Op.String()))
			r.scheduleReload(ctx)

		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("index_watch_error", slog.String("error", err.Error()))
		}
	}
}

// scheduleReload debounces bursts of file events into a single reload.
func (r *Reloader) scheduleReload(ctx context.Context) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	if r.timer != nil {
		r.timer.Stop()
	}
	r.timer = time.AfterFunc(r.debounce, func() {
		r.doReload(ctx)
	})
}

func (r *Reloader) doReload(ctx context.Context) {
	start := time.Now()

	snap, err := r.load(ctx)
	if err != nil {
		slog.Error("index_reload_failed", slog.String("error", err.Error()))
		return
	}

	old := r.current.Swap(snap)
	r.reloads.Add(1)

	slog.Info("index_reloaded",
		slog.Duration("took", time.Since(start)),
		slog.Int64("reload_count", r.reloads.Load()))

	// Old readers may still hold the previous snapshot; give them a
	// grace period before closing the handles.
	if old != nil && old != snap {
		go func() {
			time.Sleep(30 * time.Second)
			closeSnapshot(old)
		}()
	}
}

func closeSnapshot(s *Snapshot) {
	if s.Lexical != nil {
		_ = s.Lexical.Close()
	}
	if s.Vector != nil {
		_ = s.Vector.Close()
	}
	if s.Chunks != nil {
		_ = s.Chunks.Close()
	}
}

// Stop stops watching. Safe to call multiple times. The current
// snapshot stays valid.
func (r *Reloader) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.stopped {
		return
	}
	r.stopped = true
	if r.timer != nil {
		r.timer.Stop()
	}
	if r.watcher != nil {
		_ = r.watcher.Close()
	}
}
