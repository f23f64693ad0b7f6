package dynamic

import (
	"log/slog"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the debounce duration for file change events.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithWatcherLogger sets the logger for the watcher.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		w.logger = l
	}
}

// Watcher monitors the plugins root directory for source or manifest
// changes and invokes the reinstall callback with the affected plugin
// directory. Events are debounced so editors that write in bursts trigger
// a single reload.
type Watcher struct {
	root     string
	debounce time.Duration
	logger   *slog.Logger
	onChange func(pluginDir string)

	fsWatcher *fsnotify.Watcher
	done      chan struct{}
	wg        sync.WaitGroup

	mu      sync.Mutex
	pending map[string]time.Time
}

// NewWatcher creates a watcher over the plugins root directory. onChange
// receives the plugin directory whose contents changed.
func NewWatcher(root string, onChange func(pluginDir string), opts ...WatcherOption) *Watcher {
	w := &Watcher{
		root:     root,
		debounce: 500 * time.Millisecond,
		logger:   slog.Default(),
		onChange: onChange,
		done:     make(chan struct{}),
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start begins watching. It returns after the watch is established; events
// are handled on a background goroutine until Stop is called.
func (w *Watcher) Start() error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	w.fsWatcher = fw
	if err := fw.Add(w.root); err != nil {
		fw.Close()
		return err
	}

	w.wg.Add(1)
	go w.loop()
	return nil
}

// Stop ends watching and waits for the event loop to drain.
func (w *Watcher) Stop() {
	close(w.done)
	if w.fsWatcher != nil {
		w.fsWatcher.Close()
	}
	w.wg.Wait()
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	ticker := time.NewTicker(w.debounce / 2)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case ev, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if !relevant(ev) {
				continue
			}
			dir := w.pluginDirOf(ev.Name)
			if dir == "" {
				continue
			}
			w.mu.Lock()
			w.pending[dir] = time.Now()
			w.mu.Unlock()
		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("Plugin watcher error", "error", err)
		case <-ticker.C:
			w.flush()
		}
	}
}

// flush fires the callback for plugin dirs whose last event is older than
// the debounce window.
func (w *Watcher) flush() {
	now := time.Now()
	var ready []string
	w.mu.Lock()
	for dir, last := range w.pending {
		if now.Sub(last) >= w.debounce {
			ready = append(ready, dir)
			delete(w.pending, dir)
		}
	}
	w.mu.Unlock()

	for _, dir := range ready {
		w.logger.Info("Plugin directory changed", "dir", dir)
		w.onChange(dir)
	}
}

func relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Remove) {
		return false
	}
	ext := filepath.Ext(ev.Name)
	return ext == ".go" || ext == ".json" || ext == ".yaml" || ext == ".yml"
}

// pluginDirOf maps a changed path to its top-level plugin directory under
// the watched root, or "" for paths directly in the root.
func (w *Watcher) pluginDirOf(path string) string {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return ""
	}
	parts := strings.Split(rel, string(filepath.Separator))
	if len(parts) < 2 {
		return ""
	}
	return filepath.Join(w.root, parts[0])
}
