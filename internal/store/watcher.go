package store

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/lawnchairsociety/statcalc/internal/logger"
)

const defaultDebounce = 200 * time.Millisecond

// Watcher reloads a JSONStore when its file is changed by another process.
// Writes made through the store hash to the same content and are skipped.
type Watcher struct {
	store    *JSONStore
	debounce time.Duration
	fsw      *fsnotify.Watcher

	mu        sync.Mutex
	listeners []func()
}

// NewWatcher watches the directory holding the store's file. The directory
// is watched rather than the file so atomic replacements are seen.
func NewWatcher(s *JSONStore, debounce time.Duration) (*Watcher, error) {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := fsw.Add(filepath.Dir(s.Path())); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("watch %s: %w", filepath.Dir(s.Path()), err)
	}
	return &Watcher{store: s, debounce: debounce, fsw: fsw}, nil
}

// OnReload registers fn to run after every reload that changed the store.
func (w *Watcher) OnReload(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.listeners = append(w.listeners, fn)
}

// Run processes file events until ctx is cancelled. It closes the watcher on return.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	target := filepath.Clean(w.store.Path())
	var fire <-chan time.Time

	logger.Info("Store watcher started", "path", target, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
				continue
			}
			logger.Debug("Store change detected", "path", event.Name, "op", event.Op.String())
			fire = time.After(w.debounce)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			logger.Error("Store watcher error", "error", err)

		case <-fire:
			fire = nil
			w.reload()
		}
	}
}

func (w *Watcher) reload() {
	changed, err := w.store.Reload()
	if err != nil {
		logger.Warning("Store reload failed, keeping previous contents", "error", err)
		return
	}
	if !changed {
		return
	}
	logger.Info("Store reloaded", "path", w.store.Path())

	w.mu.Lock()
	listeners := append([]func(){}, w.listeners...)
	w.mu.Unlock()
	for _, fn := range listeners {
		fn()
	}
}
