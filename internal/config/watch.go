package config

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads a bounded subset of Config from disk: polling
// interval, inference threshold, loop interval, and health thresholds. It
// never reloads connection, cabin-array, write-back, or the model path —
// those require a restart, matching the non-goal on dynamic model hot-swap.
type Watcher struct {
	path string
	cur  atomic.Pointer[Config]

	mu     sync.Mutex
	fsw    *fsnotify.Watcher
	stopCh chan struct{}
}

// NewWatcher builds a Watcher seeded with initial and bound to path.
func NewWatcher(path string, initial Config) *Watcher {
	w := &Watcher{path: path}
	w.cur.Store(&initial)
	return w
}

// Current returns the most recently applied configuration.
func (w *Watcher) Current() Config {
	return *w.cur.Load()
}

// Start begins watching the config file's directory for writes. fsnotify
// watches directories rather than files directly so that editors which
// replace the file (write-temp-then-rename) are still observed.
func (w *Watcher) Start() error {
	if w.path == "" {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}

	dir := dirOf(w.path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return err
	}

	w.mu.Lock()
	w.fsw = fsw
	w.stopCh = make(chan struct{})
	stopCh := w.stopCh
	w.mu.Unlock()

	go w.run(fsw, stopCh)
	return nil
}

// Stop closes the underlying filesystem watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fsw == nil {
		return
	}
	close(w.stopCh)
	w.fsw.Close()
	w.fsw = nil
}

func (w *Watcher) run(fsw *fsnotify.Watcher, stopCh chan struct{}) {
	for {
		select {
		case <-stopCh:
			return
		case event, ok := <-fsw.Events:
			if !ok {
				return
			}
			if event.Name != w.path {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			w.reload()
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			log.Printf("config: watcher error: %v", err)
		}
	}
}

func (w *Watcher) reload() {
	reloaded := Load(w.path)
	base := w.Current()
	merged := applyLiveFields(base, reloaded)
	w.cur.Store(&merged)
	log.Printf("config: reloaded live fields from %s", w.path)
}

// applyLiveFields copies only the fields this daemon treats as safe to
// change without a restart; everything else (connection, cabin array,
// write-back offsets, database path) is carried over from base untouched.
func applyLiveFields(base, reloaded Config) Config {
	base.Polling.IntervalMS = reloaded.Polling.IntervalMS
	base.Runtime.Threshold = reloaded.Runtime.Threshold
	base.Runtime.LoopInterval = reloaded.Runtime.LoopInterval
	base.Health = reloaded.Health
	return base
}

func dirOf(path string) string {
	for i := len(path) - 1; i >= 0; i-- {
		if path[i] == '/' {
			return path[:i]
		}
	}
	return "."
}
