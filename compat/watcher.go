package compat

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

// WatchDebounce is the quiet period the watcher waits for after a change
// before reloading. Editors tend to write a file in several steps.
var WatchDebounce = 100 * time.Millisecond

// Watcher watches a single file and calls a reload function when the file is
// written, created or replaced.
type Watcher struct {
	reload func() error

	w    *fsnotify.Watcher
	j    Journaler
	file string
	dead chan struct{}
}

// TryWatch attempts to watch the given file asynchronously, but it will log
// into the journaler if, for some reason, it fails to watch the file.
func TryWatch(ctx context.Context, file string, j Journaler, reload func() error) *Watcher {
	w := newWatcher(file, j, reload)

	go func() {
		if err := w.init(); err != nil {
			j.Write(&EventWarning{
				Component: "watcher",
				Error:     fmt.Sprintf("not watching objects file because: %v", err),
			})
			close(w.dead)
			return
		}

		w.watch(ctx)
	}()

	return w
}

// NewWatcher watches the given file and calls reload every time it changes.
// The watcher is stopped once the given context is canceled.
func NewWatcher(ctx context.Context, file string, j Journaler, reload func() error) (*Watcher, error) {
	w := newWatcher(file, j, reload)
	if err := w.init(); err != nil {
		return nil, err
	}

	go w.watch(ctx)
	return w, nil
}

func newWatcher(file string, j Journaler, reload func() error) *Watcher {
	return &Watcher{
		reload: reload,
		j:      j,
		file:   filepath.Clean(file),
		dead:   make(chan struct{}),
	}
}

// Done returns a channel that is closed once the watcher stops.
func (w *Watcher) Done() <-chan struct{} {
	return w.dead
}

func (w *Watcher) init() error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "failed to create watcher")
	}

	// Watch the directory instead of the file, since replacing the file
	// drops a watch on the file itself.
	if err := watcher.Add(filepath.Dir(w.file)); err != nil {
		watcher.Close()
		return errors.Wrap(err, "failed to watch dir")
	}

	w.w = watcher
	return nil
}

func (w *Watcher) watch(ctx context.Context) {
	defer close(w.dead)
	defer w.w.Close()

	debounce := time.NewTimer(WatchDebounce)
	debounce.Stop()
	defer debounce.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-w.w.Errors:
			if !ok {
				return
			}
			w.j.Write(&EventWarning{
				Component: "watcher",
				Error:     "inotify error: " + err.Error(),
			})

		case evt, ok := <-w.w.Events:
			if !ok {
				return
			}
			if !w.isChange(evt) {
				continue
			}
			debounce.Reset(WatchDebounce)

		case <-debounce.C:
			if err := w.reload(); err != nil {
				w.j.Write(&EventWarning{
					Component: "watcher",
					Error:     fmt.Sprintf("failed to reload %s: %v", w.file, err),
				})
				continue
			}

			w.j.Write(&EventObjectsReloaded{File: w.file})
		}
	}
}

// isChange returns true if the event modifies the watched file. A removed file
// is not a change: the last loaded objects stay in place until a new file
// shows up.
func (w *Watcher) isChange(evt fsnotify.Event) bool {
	if filepath.Clean(evt.Name) != w.file {
		return false
	}

	return evt.Op&(fsnotify.Write|fsnotify.Create) != 0
}
