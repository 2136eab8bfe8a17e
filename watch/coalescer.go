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
	"sync"
	"time"
)

// DefaultWindow is both the minimum spacing between two handled events for
// the same path and the quiet period before a batched notification fires.
const DefaultWindow = 300 * time.Millisecond

// Notifier receives batches of changed destination paths.
type Notifier interface {
	Notify(paths []string)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(paths []string)

// Notify calls f(paths).
func (f NotifierFunc) Notify(paths []string) { f(paths) }

// Coalescer drops repeated events for the same path that arrive within the
// window, and batches notifications until the window passes with no new
// ones. Each Coalescer owns its state.
type Coalescer struct {
	window   time.Duration
	notifier Notifier
	now      func() time.Time

	mu      sync.Mutex
	recent  map[string]time.Time
	timer   *time.Timer
	gen     uint64
	changed []string
}

// NewCoalescer returns a Coalescer with the given window (DefaultWindow when
// window <= 0). A nil notifier discards batches.
func NewCoalescer(window time.Duration, notifier Notifier) *Coalescer {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Coalescer{
		window:   window,
		notifier: notifier,
		now:      time.Now,
		recent:   make(map[string]time.Time),
	}
}

// NotTooRecent reports whether an event for path should be handled: true
// unless another event for the same path was handled within the window.
// Entries older than the window are pruned as a side effect.
func (c *Coalescer) NotTooRecent(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	for p, t := range c.recent {
		if now.Sub(t) >= c.window {
			delete(c.recent, p)
		}
	}
	if _, ok := c.recent[path]; ok {
		return false
	}
	c.recent[path] = now
	return true
}

// ScheduleNotify adds paths to the pending batch and restarts the settle
// timer. When the timer fires the whole batch goes to the notifier in one
// call, in first-seen order and without duplicates.
func (c *Coalescer) ScheduleNotify(paths ...string) {
	if len(paths) == 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, p := range paths {
		if !contains(c.changed, p) {
			c.changed = append(c.changed, p)
		}
	}
	if c.timer != nil {
		c.timer.Stop()
	}
	// A superseded callback may already be running; it sees a stale gen.
	c.gen++
	gen := c.gen
	c.timer = time.AfterFunc(c.window, func() { c.fire(gen) })
}

// Pending returns a copy of the batch waiting to be sent.
func (c *Coalescer) Pending() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.changed...)
}

// Flush sends the pending batch now, if there is one.
func (c *Coalescer) Flush() {
	c.mu.Lock()
	if c.timer != nil {
		c.timer.Stop()
	}
	c.gen++
	gen := c.gen
	c.mu.Unlock()
	c.fire(gen)
}

// fire sends the batch only if no ScheduleNotify or Flush has happened since
// the call that armed it.
func (c *Coalescer) fire(gen uint64) {
	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	batch := c.changed
	c.changed = nil
	c.timer = nil
	c.mu.Unlock()

	if len(batch) > 0 && c.notifier != nil {
		c.notifier.Notify(batch)
	}
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
