package config

import (
	"path/filepath"
	"sync"
	"time"

	"vigil/internal/infrastructure/logging"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a FileProvider whenever its settings file changes on
// disk, so categorisation and threshold edits apply without a restart.
// Editor save patterns (write bursts, rename-over) are debounced.
type Watcher struct {
	mu       sync.Mutex
	provider *FileProvider
	watcher  *fsnotify.Watcher
	logger   logging.Logger
	stopCh   chan struct{}
	doneCh   chan struct{}
	running  bool

	debounce time.Duration
}

// NewWatcher creates a watcher for the provider's settings file.
func NewWatcher(provider *FileProvider, logger logging.Logger) (*Watcher, error) {
	if logger == nil {
		logger = logging.NewDefaultLogger()
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &Watcher{
		provider: provider,
		watcher:  fw,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
		debounce: 250 * time.Millisecond,
	}, nil
}

// Start begins watching. Watching the parent directory instead of the
// file itself survives editors that replace the file on save.
func (w *Watcher) Start() error {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = true
	w.mu.Unlock()

	dir := filepath.Dir(w.provider.path)
	if err := w.watcher.Add(dir); err != nil {
		w.logger.Warn("Settings watch failed, live reload disabled", "dir", dir, "error", err)
	}

	go w.run()
	return nil
}

// Stop stops the watcher and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return
	}
	w.running = false
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) run() {
	defer close(w.doneCh)

	var timer *time.Timer
	var timerCh <-chan time.Time

	target := filepath.Clean(w.provider.path)

	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				timer.Reset(w.debounce)
			}
		case <-timerCh:
			timer = nil
			timerCh = nil
			if err := w.provider.Reload(); err != nil {
				w.logger.Warn("Settings reload failed", "error", err)
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Settings watcher error", "error", err)
		case <-w.stopCh:
			if timer != nil {
				timer.Stop()
			}
			return
		}
	}
}
