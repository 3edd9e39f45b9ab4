// Package watch turns filesystem events into rebuild triggers.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/gardener/internal/build"
	"git.home.luguber.info/inful/gardener/internal/content"
	"git.home.luguber.info/inful/gardener/internal/logfields"
	"git.home.luguber.info/inful/gardener/internal/paths"
)

// Handler receives triggers. It is called from the watcher goroutine and must not block
// for the duration of a rebuild.
type Handler func(build.Trigger)

// Options configures a Watcher.
type Options struct {
	ContentDir string
	// Tooling lists files and directories whose changes reload the pipeline: the config
	// file, the layout template, the scripts dir.
	Tooling []string
	// Ignore lists directories never reported, typically the output dir.
	Ignore []string
	// Debounce coalesces bursts of events into one trigger; zero reports every event.
	Debounce time.Duration
	Logger   *slog.Logger
}

// Watcher reports content and tooling changes.
type Watcher struct {
	fs      *fsnotify.Watcher
	content string
	tooling []string
	ignore  []string
	handler Handler
	wait    time.Duration
	log     *slog.Logger

	mu     sync.Mutex
	timer  *time.Timer
	batch  build.Trigger
	queued bool
}

// New watches the content dir recursively plus every tooling path.
func New(opts Options, handler Handler) (*Watcher, error) {
	if handler == nil {
		return nil, errors.New("watch handler is required")
	}
	content, err := filepath.Abs(opts.ContentDir)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{
		fs:      fsw,
		content: content,
		handler: handler,
		wait:    opts.Debounce,
		log:     opts.Logger,
	}
	if w.log == nil {
		w.log = slog.Default()
	}
	for _, p := range opts.Ignore {
		if abs, err := filepath.Abs(p); err == nil {
			w.ignore = append(w.ignore, abs)
		}
	}

	w.addDirsRecursive(content)
	for _, p := range opts.Tooling {
		if p == "" {
			continue
		}
		abs, err := filepath.Abs(p)
		if err != nil {
			continue
		}
		w.tooling = append(w.tooling, abs)
		st, err := os.Stat(abs)
		switch {
		case err != nil:
			w.log.Warn("Tooling path missing, not watched", logfields.Path(abs), logfields.Error(err))
		case st.IsDir():
			w.addDirsRecursive(abs)
		default:
			// editors replace files on save, which drops a watch on the file itself
			if err := fsw.Add(filepath.Dir(abs)); err != nil {
				w.log.Warn("Watch add failed", logfields.Path(abs), logfields.Error(err))
			}
		}
	}
	return w, nil
}

// Run forwards events until ctx is done or the watcher is closed. Watcher errors are
// logged, never returned.
func (w *Watcher) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// Close stops the watcher and drops any debounced trigger.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.timer != nil {
		w.timer.Stop()
	}
	w.queued = false
	w.mu.Unlock()
	return w.fs.Close()
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if ev.Op == fsnotify.Chmod || shouldIgnoreEvent(ev.Name) || w.ignored(ev.Name) {
		return
	}
	w.log.Debug("File change detected", logfields.Path(ev.Name), slog.String("op", ev.Op.String()))

	if w.isTooling(ev.Name) {
		if ev.Op.Has(fsnotify.Create) {
			w.watchIfDir(ev.Name)
		}
		w.emit(build.Trigger{Kind: build.TriggerTooling, Reason: "tooling"})
		return
	}

	rel, ok := w.relative(ev.Name)
	if !ok {
		return
	}
	removed := ev.Op.Has(fsnotify.Remove) || ev.Op.Has(fsnotify.Rename)
	changes := []content.Change{{Path: rel, Removed: removed}}
	if ev.Op.Has(fsnotify.Create) {
		// files created together with their directory arrive before the watch does
		changes = append(changes, w.watchIfDir(ev.Name)...)
	}
	w.emit(build.Trigger{Kind: build.TriggerContent, Changes: changes, Reason: "watch"})
}

// emit hands t to the handler, directly or after the debounce window.
func (w *Watcher) emit(t build.Trigger) {
	if w.wait <= 0 {
		w.handler(t)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if t.Kind == build.TriggerTooling {
		w.batch.Kind = build.TriggerTooling
	} else if w.batch.Kind == "" {
		w.batch.Kind = build.TriggerContent
	}
	w.batch.Changes = append(w.batch.Changes, t.Changes...)
	w.batch.Reason = t.Reason
	w.queued = true
	if w.timer != nil {
		w.timer.Stop()
	}
	w.timer = time.AfterFunc(w.wait, w.flush)
}

func (w *Watcher) flush() {
	w.mu.Lock()
	if !w.queued {
		w.mu.Unlock()
		return
	}
	t := w.batch
	w.batch = build.Trigger{}
	w.queued = false
	w.mu.Unlock()
	w.handler(t)
}

func (w *Watcher) relative(name string) (paths.FilePath, bool) {
	rel, err := filepath.Rel(w.content, name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return "", false
	}
	return paths.FilePath(filepath.ToSlash(rel)), true
}

func (w *Watcher) isTooling(name string) bool {
	for _, t := range w.tooling {
		if within(name, t) {
			return true
		}
	}
	return false
}

func (w *Watcher) ignored(name string) bool {
	for _, dir := range w.ignore {
		if within(name, dir) {
			return true
		}
	}
	return false
}

func within(name, root string) bool {
	return name == root || strings.HasPrefix(name, root+string(filepath.Separator))
}

// watchIfDir adds a newly created directory and reports the files already inside it.
func (w *Watcher) watchIfDir(name string) []content.Change {
	st, err := os.Stat(name)
	if err != nil || !st.IsDir() {
		return nil
	}
	w.addDirsRecursive(name)

	var found []content.Change
	_ = filepath.WalkDir(name, func(p string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return nil
		}
		if rel, ok := w.relative(p); ok {
			found = append(found, content.Change{Path: rel})
		}
		return nil
	})
	return found
}

func (w *Watcher) addDirsRecursive(root string) {
	_ = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != root && (strings.HasPrefix(d.Name(), ".") || w.ignored(p)) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(p); err != nil {
			w.log.Warn("Watch add failed", logfields.Path(p), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreEvent reports editor temp files and OS litter.
func shouldIgnoreEvent(name string) bool {
	base := filepath.Base(name)
	switch {
	case strings.HasPrefix(base, "."):
		return true
	case strings.HasSuffix(base, "~"), strings.HasSuffix(base, ".swp"), strings.HasSuffix(base, ".swx"):
		return true
	case strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#"):
		return true
	case base == "Thumbs.db", base == "4913":
		return true
	}
	return false
}
