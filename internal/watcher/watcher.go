// Package watcher monitors one database file for external modification and
// funnels change bursts into single reloads.
//
// Each open session owns its own watcher lifecycle; there is no process-wide
// watcher registry. Watch failure is never fatal to browsing: once retries
// are exhausted the watcher disables itself and manual refresh still works.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"sqlite-viewer/internal/logging"
	"sqlite-viewer/internal/metrics"
)

// State is the watcher's lifecycle state.
type State int

const (
	StateIdle State = iota
	StateWatching
	StateDebouncing
	StateReloading
	StateDeleted
	StateRetrying
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateWatching:
		return "watching"
	case StateDebouncing:
		return "debouncing"
	case StateReloading:
		return "reloading"
	case StateDeleted:
		return "deleted"
	case StateRetrying:
		return "retrying"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// Config controls debouncing and watch-registration retry behavior.
type Config struct {
	// Debounce is how long to wait after the last modify event before
	// triggering a reload, so a burst of writes collapses into one.
	Debounce time.Duration

	// MaxRetries bounds watch re-registration attempts after OS-level
	// errors before the watcher disables itself for the session.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// DefaultConfig returns the default debounce and retry settings.
func DefaultConfig() Config {
	return Config{
		Debounce:       300 * time.Millisecond,
		MaxRetries:     3,
		InitialBackoff: 500 * time.Millisecond,
		MaxBackoff:     5 * time.Second,
	}
}

// internal sentinel results of one watch loop iteration.
type loopResult int

const (
	loopStopped loopResult = iota
	loopDeleted
	loopError
)

// Watcher watches one file path. Reload is invoked synchronously after the
// debounce window closes; notify (optional) observes every state change.
type Watcher struct {
	path   string
	dir    string
	cfg    Config
	reload func()
	notify func(State)

	// register is swapped out by tests to inject registration failures.
	register func() (*fsnotify.Watcher, error)

	mu      sync.Mutex
	state   State
	started bool
	stop    chan struct{}
	done    chan struct{}
	once    sync.Once
}

// New creates a watcher for path. The reload callback must be non-nil;
// notify may be nil.
func New(path string, cfg Config, reload func(), notify func(State)) *Watcher {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	w := &Watcher{
		path:   abs,
		dir:    filepath.Dir(abs),
		cfg:    cfg,
		reload: reload,
		notify: notify,
		state:  StateIdle,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
	w.register = w.registerOS
	return w
}

// registerOS registers with the OS notification facility. The parent
// directory is watched rather than the file itself so the rename-over
// replacement pattern some writers use keeps delivering events.
func (w *Watcher) registerOS() (*fsnotify.Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(w.dir); err != nil {
		fsw.Close()
		return nil, err
	}
	return fsw, nil
}

// Start begins watching in the background. Registration failures are retried
// with backoff inside the run loop, so Start itself only fails when the
// watcher was already started.
func (w *Watcher) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return fmt.Errorf("watcher already started for %s", w.path)
	}
	w.started = true
	go w.run()
	return nil
}

// Stop halts watching and waits for the run loop to exit. It is idempotent
// and safe to call even if the watcher disabled itself.
func (w *Watcher) Stop() {
	w.mu.Lock()
	started := w.started
	w.mu.Unlock()
	if !started {
		return
	}
	w.once.Do(func() { close(w.stop) })
	<-w.done
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
	metrics.WatcherState.Set(float64(s))
	if w.notify != nil {
		w.notify(s)
	}
}

func (w *Watcher) run() {
	defer close(w.done)

	attempts := 0
	backoff := w.cfg.InitialBackoff

	for {
		fsw, err := w.register()
		if err != nil {
			metrics.WatcherErrorsTotal.Inc()
			attempts++
			if attempts > w.cfg.MaxRetries {
				logging.Warn("watch registration for %s failed %d times, disabling file watching: %v",
					w.path, attempts, err)
				w.setState(StateDisabled)
				return
			}

			w.setState(StateRetrying)
			metrics.WatcherRetriesTotal.Inc()
			logging.Debug("watch registration for %s failed, retrying in %v (attempt %d/%d): %v",
				w.path, backoff, attempts, w.cfg.MaxRetries, err)

			select {
			case <-w.stop:
				w.setState(StateIdle)
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > w.cfg.MaxBackoff {
				backoff = w.cfg.MaxBackoff
			}
			continue
		}

		attempts = 0
		backoff = w.cfg.InitialBackoff
		w.setState(StateWatching)
		logging.Debug("watching %s for changes", w.path)

		result := w.watchLoop(fsw)
		fsw.Close()

		switch result {
		case loopStopped:
			w.setState(StateIdle)
			return
		case loopDeleted:
			logging.Info("watched file %s was deleted", w.path)
			w.setState(StateDeleted)
			w.setState(StateIdle)
			return
		case loopError:
			// Fall through to re-registration with backoff.
		}
	}
}

// watchLoop processes events from one registration until it stops, the file
// disappears, or the OS watch errors out.
func (w *Watcher) watchLoop(fsw *fsnotify.Watcher) loopResult {
	var debounce *time.Timer
	var debounceC <-chan time.Time
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	for {
		select {
		case <-w.stop:
			return loopStopped

		case ev, ok := <-fsw.Events:
			if !ok {
				return loopError
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			metrics.WatcherEventsTotal.WithLabelValues(eventType(ev.Op)).Inc()

			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}

			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				if _, err := os.Stat(w.path); err != nil {
					return loopDeleted
				}
				// The path still resolves: the file was atomically
				// replaced. Treat it as a modification.
			}

			// Any surviving event restarts the debounce window so a write
			// burst collapses into one reload.
			w.setState(StateDebouncing)
			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.NewTimer(w.cfg.Debounce)
			debounceC = debounce.C

		case <-debounceC:
			debounceC = nil
			w.setState(StateReloading)
			metrics.WatcherReloadsTotal.Inc()
			w.reload()
			w.setState(StateWatching)

		case err, ok := <-fsw.Errors:
			if !ok {
				return loopError
			}
			metrics.WatcherErrorsTotal.Inc()
			logging.Warn("watch error for %s: %v", w.path, err)
			return loopError
		}
	}
}

func eventType(op fsnotify.Op) string {
	switch {
	case op&fsnotify.Create != 0:
		return "create"
	case op&fsnotify.Write != 0:
		return "write"
	case op&fsnotify.Remove != 0:
		return "remove"
	case op&fsnotify.Rename != 0:
		return "rename"
	case op&fsnotify.Chmod != 0:
		return "chmod"
	default:
		return "unknown"
	}
}
