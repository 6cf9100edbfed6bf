package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long the watcher waits for a plugin's files to
// settle before acting.
const DefaultDebounce = 250 * time.Millisecond

// ErrWatcherClosed is returned when starting a closed watcher.
var ErrWatcherClosed = errors.New("watcher is closed")

// Action is what the watcher did for a changed plugin.
type Action string

// Watcher actions.
const (
	ActionLoad   Action = "load"
	ActionReload Action = "reload"
	ActionUnload Action = "unload"
)

// ChangeFunc observes watcher actions.
type ChangeFunc func(name string, action Action, err error)

// Watcher reloads plugins when files under the manager's search paths
// change. Changes are grouped per plugin entry and debounced: a new entry
// is loaded, a changed one reloaded and a removed one unloaded.
type Watcher struct {
	manager *Manager
	fsw     *fsnotify.Watcher
	logger  *slog.Logger

	delay    time.Duration
	onChange ChangeFunc

	mu      sync.Mutex
	pending map[string]*time.Timer
	closed  bool

	// Serializes manager calls from timer goroutines. Close takes it to
	// wait for a running apply.
	applyMu sync.Mutex

	closeCh chan struct{}
	wg      sync.WaitGroup
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithDebounce sets the settle delay.
func WithDebounce(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		if d > 0 {
			w.delay = d
		}
	}
}

// WithWatcherLogger sets the logger.
func WithWatcherLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithOnChange registers fn to run after every action.
func WithOnChange(fn ChangeFunc) WatcherOption {
	return func(w *Watcher) {
		w.onChange = fn
	}
}

// NewWatcher creates a watcher for m's search paths.
func NewWatcher(m *Manager, opts ...WatcherOption) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	w := &Watcher{
		manager: m,
		fsw:     fsw,
		logger:  m.logger,
		delay:   DefaultDebounce,
		pending: make(map[string]*time.Timer),
		closeCh: make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Start watches every existing search path and the plugin directories
// inside them, then processes events until ctx is done or Close is
// called.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return ErrWatcherClosed
	}

	for _, base := range w.manager.loader.Paths() {
		if err := w.watchTree(base); err != nil && !os.IsNotExist(err) {
			return err
		}
	}

	w.wg.Add(1)
	go w.loop(ctx)
	return nil
}

// watchTree adds dir and its subdirectories, skipping hidden ones.
func (w *Watcher) watchTree(dir string) error {
	return filepath.WalkDir(dir, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != dir && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		return w.fsw.Add(p)
	})
}

// WatchedPaths returns the directories being watched.
func (w *Watcher) WatchedPaths() []string {
	return w.fsw.WatchList()
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handle(ctx, ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			w.logger.WarnContext(ctx, "plugin watcher error", slog.Any("error", err))
		}
	}
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod {
		return
	}
	entry, ok := w.entryFor(ev.Name)
	if !ok {
		return
	}

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			_ = w.watchTree(ev.Name)
		}
	}
	w.schedule(ctx, entry)
}

// entryFor maps a changed path to the plugin entry it belongs to: the
// directory or .lua file directly under a search path.
func (w *Watcher) entryFor(path string) (string, bool) {
	for _, base := range w.manager.loader.Paths() {
		rel, err := filepath.Rel(base, path)
		if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
			continue
		}
		first := strings.SplitN(rel, string(filepath.Separator), 2)[0]
		if strings.HasPrefix(first, ".") {
			return "", false
		}
		entry := filepath.Join(base, first)
		if first == rel && filepath.Ext(first) != ".lua" {
			// A plain file directly under the search path is not a plugin,
			// but a directory created there is.
			if info, err := os.Stat(entry); err != nil || !info.IsDir() {
				if _, known := w.manager.loader.Owner(entry); !known {
					return "", false
				}
			}
		}
		return entry, true
	}
	return "", false
}

func (w *Watcher) schedule(ctx context.Context, entry string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return
	}
	if t, ok := w.pending[entry]; ok {
		t.Reset(w.delay)
		return
	}
	w.pending[entry] = time.AfterFunc(w.delay, func() {
		w.mu.Lock()
		delete(w.pending, entry)
		closed := w.closed
		w.mu.Unlock()
		if !closed {
			w.apply(ctx, entry)
		}
	})
}

// apply loads, reloads or unloads the plugin at entry. It does nothing
// once the watcher is closed.
func (w *Watcher) apply(ctx context.Context, entry string) {
	w.applyMu.Lock()
	defer w.applyMu.Unlock()

	w.mu.Lock()
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	_, statErr := os.Stat(entry)
	prev, known := w.manager.loader.Owner(entry)

	if _, err := w.manager.loader.Discover(); err != nil {
		w.logger.WarnContext(ctx, "plugin rescan failed", slog.Any("error", err))
		return
	}

	if statErr != nil {
		if known {
			if _, loaded := w.manager.Get(prev.Name); loaded {
				w.report(prev.Name, ActionUnload, w.manager.unload(ctx, prev.Name, "removed"))
			}
		}
		return
	}

	info, ok := w.manager.loader.Owner(entry)
	if !ok {
		return
	}
	if known && prev.Name != info.Name {
		if _, loaded := w.manager.Get(prev.Name); loaded {
			w.report(prev.Name, ActionUnload, w.manager.unload(ctx, prev.Name, "renamed"))
		}
	}

	if _, loaded := w.manager.Get(info.Name); loaded {
		_, err := w.manager.Reload(ctx, info.Name)
		w.report(info.Name, ActionReload, err)
		return
	}
	_, err := w.manager.load(ctx, info)
	w.report(info.Name, ActionLoad, err)
}

func (w *Watcher) report(name string, action Action, err error) {
	if err != nil {
		w.logger.Warn("plugin change failed",
			slog.String("plugin", name), slog.String("action", string(action)), slog.Any("error", err))
	} else {
		w.logger.Info("plugin change applied",
			slog.String("plugin", name), slog.String("action", string(action)))
	}
	if w.onChange != nil {
		w.onChange(name, action, err)
	}
}

// Close stops the watcher and cancels pending actions. It returns after
// an action already running has finished, so no plugin changes once
// Close returns.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	for entry, t := range w.pending {
		t.Stop()
		delete(w.pending, entry)
	}
	w.mu.Unlock()

	w.wg.Wait()
	w.applyMu.Lock()
	//nolint:staticcheck // empty critical section waits for apply
	w.applyMu.Unlock()
	return w.fsw.Close()
}
