// Package watch turns filesystem notifications from the project's source
// directories into debounced restarts of the process pair.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// DefaultPaths are the candidate directories, relative to the project root.
var DefaultPaths = []string{
	"packages/client/src",
	"packages/client/api",
	"packages/server",
	"packages/lib",
	"packages/contracts/src",
}

// Handler receives change events. path is relative to the registration root
// when it lies below it. isDir is true when the path is a directory.
type Handler interface {
	Handle(path string, isDir bool) bool
}

// Watcher feeds fsnotify events from a set of directory trees into one Handler.
type Watcher struct {
	fs      *fsnotify.Watcher
	handler Handler
	filter  Filter
	log     *slog.Logger
	root    string
}

// New wraps an open fsnotify watcher. Directories matching filter's exclude
// list are not descended into when registering trees.
func New(w *fsnotify.Watcher, h Handler, f Filter, log *slog.Logger) *Watcher {
	return &Watcher{fs: w, handler: h, filter: f, log: log}
}

// Register resolves each candidate under root and watches it recursively if
// it exists. Missing candidates are skipped silently. It returns the
// candidates that were registered, in order.
func (w *Watcher) Register(root string, candidates []string) ([]string, error) {
	w.root = root
	var registered []string
	for _, c := range candidates {
		full := c
		if !filepath.IsAbs(full) {
			full = filepath.Join(root, c)
		}
		info, err := os.Stat(full)
		if err != nil || !info.IsDir() {
			w.log.Debug("watch path skipped", "path", c)
			continue
		}
		if err := w.addTree(full); err != nil {
			return registered, err
		}
		registered = append(registered, c)
	}
	return registered, nil
}

// Run delivers events to the handler until ctx is done or the watcher is
// closed. The handler runs on this goroutine.
func (w *Watcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.dispatch(ev)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.log.Warn("file watcher error", "err", err)
		}
	}
}

// Close stops delivery of events and releases the underlying watches.
func (w *Watcher) Close() error {
	return w.fs.Close()
}

func (w *Watcher) dispatch(ev fsnotify.Event) {
	if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
		return
	}
	isDir := false
	if info, err := os.Stat(ev.Name); err == nil {
		isDir = info.IsDir()
	}
	rel := w.rel(ev.Name)
	if isDir && ev.Has(fsnotify.Create) && !w.filter.Excluded(rel) {
		if err := w.addTree(ev.Name); err != nil {
			w.log.Warn("cannot watch new directory", "path", rel, "err", err)
		}
	}
	w.handler.Handle(rel, isDir)
}

// rel strips the registration root so exclude patterns never match the
// directories the project itself lives in.
func (w *Watcher) rel(path string) string {
	if w.root == "" {
		return path
	}
	r, err := filepath.Rel(w.root, path)
	if err != nil || r == ".." || strings.HasPrefix(r, ".."+string(filepath.Separator)) {
		return path
	}
	return r
}

// addTree watches dir and every non-excluded directory below it. The root
// itself is always added; unreadable sub-directories are skipped.
func (w *Watcher) addTree(dir string) error {
	if err := w.fs.Add(dir); err != nil {
		return err
	}
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			if !errors.Is(err, fs.ErrPermission) && !errors.Is(err, fs.ErrNotExist) {
				w.log.Debug("walk error", "path", path, "err", err)
			}
			return nil
		}
		if !d.IsDir() || path == dir {
			return nil
		}
		rel, _ := filepath.Rel(dir, path)
		if w.filter.Excluded(rel) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			w.log.Debug("cannot watch directory", "path", path, "err", err)
		}
		return nil
	})
}
