// Package watch notifies when the files presence reads from change on disk.
package watch

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"

	customerrors "github.com/bavix/presence/internal/errors"
)

const DefaultDebounce = 200 * time.Millisecond

// Watcher watches files for changes and triggers callbacks.
//
// Parent directories are watched rather than the files themselves, so atomic
// replace-by-rename writers keep being observed.
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	delay     time.Duration

	mu        sync.RWMutex
	callbacks []func()
	files     map[string]struct{}
	started   bool

	timerMu sync.Mutex
	timer   *time.Timer
}

// New creates a watcher; bursts of events within delay collapse into one
// callback round.
func New(delay time.Duration) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	if delay <= 0 {
		delay = DefaultDebounce
	}

	return &Watcher{
		fsWatcher: fsw,
		delay:     delay,
		files:     make(map[string]struct{}),
	}, nil
}

// OnChange registers a callback to be called when a watched file changes.
func (w *Watcher) OnChange(callback func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.callbacks = append(w.callbacks, callback)
}

// Watch starts watching files until ctx is done. Files whose directory does
// not exist are skipped with a warning.
func (w *Watcher) Watch(ctx context.Context, files []string) error {
	logger := zerolog.Ctx(ctx)

	w.mu.Lock()
	if w.started {
		w.mu.Unlock()

		return customerrors.ErrFileWatcherAlreadyEnabled
	}

	w.started = true
	dirs := make(map[string]struct{})

	for _, f := range files {
		if f == "" {
			continue
		}

		abs, err := filepath.Abs(f)
		if err != nil {
			abs = filepath.Clean(f)
		}

		w.files[abs] = struct{}{}
		dirs[filepath.Dir(abs)] = struct{}{}
	}
	w.mu.Unlock()

	for dir := range dirs {
		if err := w.fsWatcher.Add(dir); err != nil {
			logger.Warn().Err(err).Str("dir", dir).Msg("failed to watch directory")
		}
	}

	go w.loop(ctx)

	return nil
}

func (w *Watcher) loop(ctx context.Context) {
	logger := zerolog.Ctx(ctx)

	for {
		select {
		case <-ctx.Done():
			_ = w.fsWatcher.Close()

			w.timerMu.Lock()
			if w.timer != nil {
				w.timer.Stop()
			}
			w.timerMu.Unlock()

			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}

			if !w.tracked(event.Name) || event.Op == fsnotify.Chmod {
				continue
			}

			logger.Debug().
				Str("file", event.Name).
				Str("op", event.Op.String()).
				Msg("file change detected")

			w.schedule()

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}

			logger.Warn().Err(err).Msg("fsnotify error")
		}
	}
}

func (w *Watcher) tracked(name string) bool {
	abs, err := filepath.Abs(name)
	if err != nil {
		abs = filepath.Clean(name)
	}

	w.mu.RLock()
	defer w.mu.RUnlock()

	_, ok := w.files[abs]

	return ok
}

func (w *Watcher) schedule() {
	w.timerMu.Lock()
	defer w.timerMu.Unlock()

	if w.timer != nil {
		w.timer.Stop()
	}

	w.timer = time.AfterFunc(w.delay, w.trigger)
}

func (w *Watcher) trigger() {
	w.mu.RLock()
	callbacks := w.callbacks
	w.mu.RUnlock()

	for _, cb := range callbacks {
		cb()
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	return w.fsWatcher.Close()
}
