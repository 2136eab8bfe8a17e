/*
Copyright © 2026 Benny Powers <web@bennypowers.com>

This program is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

This program is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with this program. If not, see <http://www.gnu.org/licenses/>.
*/

// Package watch turns filesystem changes in a source and a destination tree
// into incremental builds and batched reload notifications.
package watch

import (
	"context"
	"errors"
	"fmt"
	iofs "io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"

	"bennypowers.dev/kiln/fs"
)

// ErrWatch is the sentinel matched by every watcher failure.
var ErrWatch = errors.New("watch failed")

// WatchError is a failure of the watcher on Root.
type WatchError struct {
	Root string
	Err  error
}

func (e *WatchError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("watching %s: %v", e.Root, e.Err)
}

func (e *WatchError) Unwrap() []error { return []error{ErrWatch, e.Err} }

// EventKind is the kind of a watcher event.
type EventKind int

const (
	Add EventKind = iota
	Change
	Remove
	// Ready is delivered once, after every directory is registered.
	Ready
	// Error is delivered once when the watcher stops on a failure.
	Error
)

func (k EventKind) String() string {
	switch k {
	case Add:
		return "add"
	case Change:
		return "change"
	case Remove:
		return "remove"
	case Ready:
		return "ready"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("EventKind(%d)", int(k))
	}
}

// Event is delivered to the watcher's listener. Path is absolute; Err is set
// for Error events.
type Event struct {
	Kind EventKind
	Path string
	Err  error
}

// State is the lifecycle state of a Watcher.
type State int

const (
	Stopped State = iota
	Starting
	Watching
)

func (s State) String() string {
	switch s {
	case Starting:
		return "starting"
	case Watching:
		return "watching"
	default:
		return "stopped"
	}
}

var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/*.swp",
	"**/*.swx",
	"**/*~",
	"**/.DS_Store",
	"**/4913",
}

// Listener receives every event of a watcher, one at a time.
type Listener func(Event)

// Watcher reports changes to regular files under a root directory. It has a
// single listener and never restarts itself after a failure.
type Watcher struct {
	root    string
	ignores []string
	exclude []string
	log     logrus.FieldLogger

	mu       sync.Mutex
	state    State
	fsw      *fsnotify.Watcher
	cancel   context.CancelFunc
	done     chan struct{}
	listener Listener
}

// NewWatcher creates a stopped watcher for root.
func NewWatcher(root string, log logrus.FieldLogger) *Watcher {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Watcher{
		root:    filepath.Clean(root),
		ignores: append([]string(nil), defaultIgnores...),
		log:     log.WithField("root", root),
	}
}

// Ignore adds doublestar patterns, relative to the root, whose matches never
// produce events.
func (w *Watcher) Ignore(patterns ...string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.ignores = append(w.ignores, patterns...)
}

// Exclude skips an absolute directory, for instance a destination tree nested
// inside the source tree.
func (w *Watcher) Exclude(dir string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.exclude = append(w.exclude, filepath.Clean(dir))
}

// State returns the current lifecycle state.
func (w *Watcher) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Start begins watching and delivers events to listener until ctx is done,
// Stop is called or the watcher fails. Calling Start on a running watcher
// stops the previous run first.
func (w *Watcher) Start(ctx context.Context, listener Listener) error {
	w.Stop()

	w.mu.Lock()
	w.state = Starting
	w.listener = listener
	w.mu.Unlock()

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		w.setState(Stopped)
		return &WatchError{Root: w.root, Err: err}
	}
	if err := w.addDirectories(fsw, w.root); err != nil {
		fsw.Close() //nolint:errcheck
		w.setState(Stopped)
		return &WatchError{Root: w.root, Err: err}
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})

	w.mu.Lock()
	w.fsw = fsw
	w.cancel = cancel
	w.done = done
	w.state = Watching
	w.mu.Unlock()

	go w.loop(runCtx, fsw, listener, done)
	return nil
}

// Stop ends the current run, if any, and waits for its listener calls to
// finish. It is safe to call on a stopped watcher.
func (w *Watcher) Stop() {
	w.mu.Lock()
	cancel, done := w.cancel, w.done
	w.cancel, w.done = nil, nil
	w.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (w *Watcher) setState(s State) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.state = s
}

func (w *Watcher) loop(ctx context.Context, fsw *fsnotify.Watcher, listener Listener, done chan struct{}) {
	defer close(done)
	defer func() {
		if err := fsw.Close(); err != nil {
			w.log.WithError(err).Debug("closing watcher")
		}
		w.setState(Stopped)
	}()

	listener(Event{Kind: Ready, Path: w.root})

	for {
		select {
		case <-ctx.Done():
			return

		case evt, ok := <-fsw.Events:
			if !ok {
				w.fail(listener, errors.New("event channel closed"))
				return
			}
			w.handle(fsw, listener, evt)

		case err, ok := <-fsw.Errors:
			if !ok {
				err = errors.New("error channel closed")
			}
			w.fail(listener, err)
			return
		}
	}
}

func (w *Watcher) fail(listener Listener, err error) {
	w.setState(Stopped)
	werr := &WatchError{Root: w.root, Err: err}
	w.log.WithError(err).Error("watcher stopped")
	listener(Event{Kind: Error, Path: w.root, Err: werr})
}

func (w *Watcher) handle(fsw *fsnotify.Watcher, listener Listener, evt fsnotify.Event) {
	if w.skip(evt.Name) {
		return
	}

	switch {
	case evt.Has(fsnotify.Create):
		info, err := os.Stat(evt.Name)
		if err != nil {
			return
		}
		if info.IsDir() {
			// Files created together with their directory may predate the
			// watch on it, so report what is already there.
			if err := w.addDirectories(fsw, evt.Name); err != nil {
				w.log.WithError(err).WithField("dir", evt.Name).Warn("cannot watch new directory")
			}
			w.walkFiles(evt.Name, func(p string) { listener(Event{Kind: Add, Path: p}) })
			return
		}
		listener(Event{Kind: Add, Path: evt.Name})

	case evt.Has(fsnotify.Write):
		listener(Event{Kind: Change, Path: evt.Name})

	case evt.Has(fsnotify.Remove), evt.Has(fsnotify.Rename):
		listener(Event{Kind: Remove, Path: evt.Name})
	}
}

func (w *Watcher) addDirectories(fsw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			w.log.WithError(err).WithField("path", path).Debug("skipping inaccessible path")
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && w.skip(path) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

func (w *Watcher) walkFiles(dir string, fn func(string)) {
	_ = filepath.WalkDir(dir, func(path string, d iofs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if path != dir && w.skip(path) {
				return filepath.SkipDir
			}
			return nil
		}
		if !w.skip(path) {
			fn(path)
		}
		return nil
	})
}

// skip reports whether path is ignored or excluded.
func (w *Watcher) skip(path string) bool {
	w.mu.Lock()
	ignores, exclude := w.ignores, w.exclude
	w.mu.Unlock()

	for _, dir := range exclude {
		if fs.IsWithin(dir, path) {
			return true
		}
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range ignores {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return true
		}
		if ok, _ := doublestar.Match(pattern, rel+"/"); ok {
			return true
		}
	}
	return false
}
