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

package watch

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"bennypowers.dev/kiln/build"
	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/taskmap"
)

// SessionOptions configures a Session.
type SessionOptions struct {
	// Window is the coalescing window; DefaultWindow when zero.
	Window time.Duration
	// Notifier receives destination paths, relative to the destination
	// root, once they settle.
	Notifier Notifier
	Log      logrus.FieldLogger
}

// Session keeps a destination tree in sync with its source tree: source
// changes trigger builds and removals, destination changes are batched into
// notifications. Events are ignored until both watchers are ready.
type Session struct {
	builder   *build.Builder
	coalescer *Coalescer
	src       *Watcher
	dest      *Watcher
	log       logrus.FieldLogger

	suppress atomic.Bool
	ready    atomic.Int32
	readyCh  chan struct{}
	once     sync.Once
	errs     chan error
	ctx      context.Context
}

// NewSession creates a Session for the builder's source and destination
// roots.
func NewSession(b *build.Builder, opts SessionOptions) *Session {
	log := opts.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	o := b.Options()

	src := NewWatcher(o.SourceRoot, log)
	if fs.IsWithin(o.SourceRoot, o.DestRoot) {
		src.Exclude(o.DestRoot)
	}

	s := &Session{
		builder:   b,
		coalescer: NewCoalescer(opts.Window, opts.Notifier),
		src:       src,
		dest:      NewWatcher(o.DestRoot, log),
		log:       log,
		readyCh:   make(chan struct{}),
		errs:      make(chan error, 2),
	}
	s.suppress.Store(true)
	return s
}

// Ready is closed once both watchers are registered and events are handled.
func (s *Session) Ready() <-chan struct{} { return s.readyCh }

// Coalescer returns the session's coalescer.
func (s *Session) Coalescer() *Coalescer { return s.coalescer }

// Run watches until ctx is done or a watcher fails. A watcher failure is
// returned as an error matching ErrWatch; the session does not retry.
func (s *Session) Run(ctx context.Context) error {
	s.ctx = ctx
	s.suppress.Store(true)
	s.ready.Store(0)

	destRoot := s.builder.Options().DestRoot
	if err := os.MkdirAll(destRoot, 0755); err != nil {
		return &WatchError{Root: destRoot, Err: err}
	}

	if err := s.src.Start(ctx, s.onSource); err != nil {
		return err
	}
	defer s.src.Stop()
	if err := s.dest.Start(ctx, s.onDest); err != nil {
		return err
	}
	defer s.dest.Stop()
	defer s.coalescer.Flush()

	select {
	case <-ctx.Done():
		return nil
	case err := <-s.errs:
		return err
	}
}

func (s *Session) markReady() {
	if s.ready.Add(1) == 2 {
		s.suppress.Store(false)
		s.once.Do(func() { close(s.readyCh) })
		s.log.Info("watching for changes")
	}
}

func (s *Session) onError(ev Event) {
	select {
	case s.errs <- ev.Err:
	default:
	}
}

func (s *Session) onSource(ev Event) {
	switch ev.Kind {
	case Ready:
		s.markReady()
		return
	case Error:
		s.onError(ev)
		return
	}
	if s.suppress.Load() {
		return
	}

	log := s.log.WithFields(logrus.Fields{"file": ev.Path, "event": ev.Kind.String()})
	switch ev.Kind {
	case Add, Change:
		if !s.coalescer.NotTooRecent(ev.Path) {
			return
		}
		if s.builder.IsPartial(ev.Path) {
			ext := taskmap.Ext(ev.Path)
			if !s.builder.HasExtractor(ext) {
				return
			}
			log.Info("partial changed, rebuilding dependents")
			s.report(s.builder.BuildExt(s.ctx, ext))
			return
		}
		log.Debug("source changed")
		s.report(s.builder.BuildFiles(s.ctx, []string{ev.Path}))

	case Remove:
		log.Debug("source removed")
		s.report(s.builder.CleanFiles(s.ctx, []string{ev.Path}))
	}
}

func (s *Session) onDest(ev Event) {
	switch ev.Kind {
	case Ready:
		s.markReady()
		return
	case Error:
		s.onError(ev)
		return
	}
	if s.suppress.Load() || ev.Kind == Remove {
		return
	}
	if !s.coalescer.NotTooRecent(ev.Path) {
		return
	}
	rel, err := filepath.Rel(s.builder.Options().DestRoot, ev.Path)
	if err != nil {
		return
	}
	s.coalescer.ScheduleNotify(filepath.ToSlash(rel))
}

func (s *Session) report(result *build.Result, err error) {
	if err != nil {
		s.log.WithError(err).Warn("incremental build failed")
		return
	}
	if result == nil {
		return
	}
	done, skipped, _ := result.Count()
	s.log.WithFields(logrus.Fields{"pass": result.Pass, "done": done, "skipped": skipped}).Debug("incremental pass")
}
