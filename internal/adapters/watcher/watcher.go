// Package watcher reports changes to individual files using fsnotify.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is the default window for coalescing rapid writes.
const DefaultDebounce = 200 * time.Millisecond

// FileWatcher calls a function whenever one of a set of files is written,
// created or replaced. It watches the parent directories so that editors
// which save by renaming a temp file over the original are still seen.
type FileWatcher struct {
	files    map[string]bool
	onChange func(path string)
	debounce time.Duration

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	debouncer *Debouncer
	running   bool
	cancel    context.CancelFunc
}

// NewFileWatcher creates a watcher for the given files.
func NewFileWatcher(paths []string, debounce time.Duration, onChange func(path string)) *FileWatcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	files := make(map[string]bool, len(paths))
	for _, p := range paths {
		if abs, err := filepath.Abs(p); err == nil {
			files[abs] = true
		}
	}
	return &FileWatcher{
		files:    files,
		onChange: onChange,
		debounce: debounce,
	}
}

// Start begins watching. It is a no-op when already running.
func (w *FileWatcher) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.running {
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dirs := make(map[string]bool)
	for f := range w.files {
		dirs[filepath.Dir(f)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			_ = fw.Close()
			return err
		}
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.watcher = fw
	w.cancel = cancel
	w.debouncer = NewDebouncer(w.debounce, w.onChange)
	w.running = true

	go w.eventLoop(watchCtx, fw)

	log.Debug().Int("files", len(w.files)).Dur("debounce", w.debounce).Msg("file watcher started")
	return nil
}

// Stop terminates file watching.
func (w *FileWatcher) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.running {
		return nil
	}
	w.running = false

	w.cancel()
	w.debouncer.Stop()
	err := w.watcher.Close()
	w.watcher = nil
	log.Debug().Msg("file watcher stopped")
	return err
}

// IsRunning returns true if the watcher is active.
func (w *FileWatcher) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// eventLoop handles fsnotify events.
func (w *FileWatcher) eventLoop(ctx context.Context, fw *fsnotify.Watcher) {
	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handleEvent(event)

		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watcher error")
		}
	}
}

func (w *FileWatcher) handleEvent(event fsnotify.Event) {
	path, err := filepath.Abs(event.Name)
	if err != nil || !w.files[path] {
		return
	}
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
		return
	}

	w.mu.Lock()
	d := w.debouncer
	w.mu.Unlock()
	if d != nil {
		d.Add(path)
	}
}
