package store

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"viewer/internal/logging"
)

// WatcherStats tracks watcher activity.
type WatcherStats struct {
	Events        int
	Syncs         int
	Removed       int
	Errors        int
	LastEventPath string
	LastEventType string
	LastSync      SyncReport
}

// Watcher re-syncs a workspace directory into the store when its files
// change. Bursts of events are collapsed into one sync.
type Watcher struct {
	mu          sync.Mutex
	store       *Store
	dir         string
	debounceDur time.Duration
	pending     bool
	lastEvent   time.Time
	removed     map[string]struct{}
	stats       WatcherStats

	// OnSync, when set, is called after every debounced sync.
	OnSync func(SyncReport, error)
}

// NewWatcher creates a watcher for dir.
func NewWatcher(s *Store, dir string) *Watcher {
	return &Watcher{
		store:       s,
		dir:         dir,
		debounceDur: 250 * time.Millisecond,
		removed:     make(map[string]struct{}),
	}
}

// SetDebounce changes how long the workspace must be quiet before a sync.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.mu.Lock()
	w.debounceDur = d
	w.mu.Unlock()
}

// Stats returns a snapshot of the watcher's counters.
func (w *Watcher) Stats() WatcherStats {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.stats
}

// Run watches until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	serversDir := filepath.Join(w.dir, ServersDir)
	if err := os.MkdirAll(serversDir, 0755); err != nil {
		logging.StoreError("watcher: create %s: %v", serversDir, err)
	}
	for _, d := range []string{w.dir, serversDir} {
		if err := fw.Add(d); err != nil {
			return err
		}
	}
	logging.Store("watcher: watching %s", w.dir)

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logging.Store("watcher: stopped")
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(event)

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logging.StoreError("watcher error: %v", err)
			w.mu.Lock()
			w.stats.Errors++
			w.mu.Unlock()

		case <-ticker.C:
			w.flush(ctx)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if !w.relevant(event.Name) {
		return
	}

	var eventType string
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = "create"
	case event.Op&fsnotify.Write != 0:
		eventType = "modify"
	case event.Op&fsnotify.Remove != 0:
		eventType = "delete"
	case event.Op&fsnotify.Rename != 0:
		eventType = "rename"
	default:
		return
	}
	logging.StoreDebug("watcher: %s %s", eventType, event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	w.stats.Events++
	w.stats.LastEventPath = event.Name
	w.stats.LastEventType = eventType
	w.pending = true
	w.lastEvent = time.Now()

	if (eventType == "delete" || eventType == "rename") && filepath.Dir(event.Name) == filepath.Join(w.dir, ServersDir) {
		if def, ok := serverFromFile(filepath.Base(event.Name)); ok {
			w.removed[def.Name] = struct{}{}
		}
	}
}

// relevant reports whether path is a file a sync reads.
func (w *Watcher) relevant(path string) bool {
	base := filepath.Base(path)
	if filepath.Dir(path) == filepath.Join(w.dir, ServersDir) {
		_, ok := serverFromFile(base)
		return ok
	}
	if filepath.Dir(path) != filepath.Clean(w.dir) {
		return false
	}
	switch base {
	case AliasesFile, VariablesFile, SecretsFile:
		return true
	}
	return false
}

func (w *Watcher) flush(ctx context.Context) {
	w.mu.Lock()
	if !w.pending || time.Since(w.lastEvent) < w.debounceDur {
		w.mu.Unlock()
		return
	}
	w.pending = false
	removed := w.removed
	w.removed = make(map[string]struct{})
	w.mu.Unlock()

	// A renamed or deleted server file is dropped unless the sync below
	// brings a file with the same name back.
	for name := range removed {
		if err := w.store.DeleteServer(ctx, name); err != nil {
			logging.StoreError("watcher: %v", err)
		}
	}

	report, err := w.store.SyncWorkspace(ctx, w.dir)
	if err != nil {
		logging.StoreError("watcher: sync %s: %v", w.dir, err)
	}

	w.mu.Lock()
	w.stats.Syncs++
	w.stats.Removed += len(removed)
	w.stats.LastSync = report
	if err != nil {
		w.stats.Errors++
	}
	onSync := w.OnSync
	w.mu.Unlock()

	if onSync != nil {
		onSync(report, err)
	}
}
