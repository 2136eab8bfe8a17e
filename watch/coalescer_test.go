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
	"slices"
	"sync"
	"testing"
	"time"
)

type recorder struct {
	mu      sync.Mutex
	batches [][]string
	fired   chan struct{}
}

func newRecorder() *recorder {
	return &recorder{fired: make(chan struct{}, 16)}
}

func (r *recorder) Notify(paths []string) {
	r.mu.Lock()
	r.batches = append(r.batches, append([]string(nil), paths...))
	r.mu.Unlock()
	r.fired <- struct{}{}
}

func (r *recorder) all() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.batches)
}

func TestNotTooRecent(t *testing.T) {
	c := NewCoalescer(300*time.Millisecond, nil)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	if !c.NotTooRecent("/src/a.css") {
		t.Fatal("Expected first event to be handled")
	}

	clock = clock.Add(100 * time.Millisecond)
	if c.NotTooRecent("/src/a.css") {
		t.Error("Expected second event within the window to be dropped")
	}
	if !c.NotTooRecent("/src/b.css") {
		t.Error("Expected other paths to be independent")
	}

	clock = clock.Add(250 * time.Millisecond)
	if !c.NotTooRecent("/src/a.css") {
		t.Error("Expected event after the window to be handled")
	}
}

func TestNotTooRecentPrunes(t *testing.T) {
	c := NewCoalescer(time.Second, nil)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return clock }

	for _, p := range []string{"/a", "/b", "/c"} {
		c.NotTooRecent(p)
	}
	clock = clock.Add(2 * time.Second)
	c.NotTooRecent("/d")

	c.mu.Lock()
	n := len(c.recent)
	c.mu.Unlock()
	if n != 1 {
		t.Errorf("Expected stale entries to be pruned, %d remain", n)
	}
}

func TestScheduleNotifyBatches(t *testing.T) {
	rec := newRecorder()
	c := NewCoalescer(50*time.Millisecond, rec)

	c.ScheduleNotify("css/site.css")
	c.ScheduleNotify("index.html", "css/site.css")
	time.Sleep(10 * time.Millisecond)
	c.ScheduleNotify("js/app.js")

	select {
	case <-rec.fired:
	case <-time.After(2 * time.Second):
		t.Fatal("Expected a notification")
	}

	// No second batch follows.
	select {
	case <-rec.fired:
		t.Fatal("Expected exactly one notification")
	case <-time.After(150 * time.Millisecond):
	}

	batches := rec.all()
	expected := []string{"css/site.css", "index.html", "js/app.js"}
	if len(batches) != 1 || !slices.Equal(batches[0], expected) {
		t.Errorf("Expected one batch %v, got %v", expected, batches)
	}
	if p := c.Pending(); len(p) != 0 {
		t.Errorf("Expected batch to be cleared, got %v", p)
	}
}

func TestScheduleNotifyRestartsTimer(t *testing.T) {
	rec := newRecorder()
	c := NewCoalescer(80*time.Millisecond, rec)

	start := time.Now()
	for range 4 {
		c.ScheduleNotify("a.css")
		time.Sleep(40 * time.Millisecond)
	}
	<-rec.fired

	if elapsed := time.Since(start); elapsed < 160*time.Millisecond {
		t.Errorf("Expected the timer to restart on every schedule, fired after %v", elapsed)
	}
}

func TestFlush(t *testing.T) {
	rec := newRecorder()
	c := NewCoalescer(time.Hour, rec)

	c.ScheduleNotify("a.css", "b.css")
	c.Flush()

	batches := rec.all()
	if len(batches) != 1 || !slices.Equal(batches[0], []string{"a.css", "b.css"}) {
		t.Errorf("Expected flushed batch, got %v", batches)
	}

	c.Flush()
	if n := len(rec.all()); n != 1 {
		t.Errorf("Expected empty flush to be a no-op, got %d batches", n)
	}
}

func TestCoalescersAreIndependent(t *testing.T) {
	a := NewCoalescer(time.Hour, nil)
	b := NewCoalescer(time.Hour, nil)

	a.NotTooRecent("/x")
	if !b.NotTooRecent("/x") {
		t.Error("Expected coalescers not to share state")
	}
	a.ScheduleNotify("x")
	if len(b.Pending()) != 0 {
		t.Error("Expected pending batches not to be shared")
	}
	a.Flush()
}

func TestScheduleNotifyAtWindowBoundary(t *testing.T) {
	const window = 5 * time.Millisecond
	for i := range 20 {
		var (
			mu      sync.Mutex
			flushed time.Time
		)
		done := make(chan struct{})
		c := NewCoalescer(window, NotifierFunc(func([]string) {
			mu.Lock()
			flushed = time.Now()
			mu.Unlock()
			close(done)
		}))

		c.ScheduleNotify("a")
		time.Sleep(window)
		last := time.Now()
		c.ScheduleNotify("b")

		select {
		case <-done:
		case <-time.After(2 * time.Second):
			t.Fatalf("Expected a notification on iteration %d", i)
		}
		mu.Lock()
		gap := flushed.Sub(last)
		mu.Unlock()
		if gap < window {
			t.Fatalf("Expected flush at least %v after the last schedule, got %v on iteration %d", window, gap, i)
		}
	}
}

func TestFireIgnoresSupersededTimer(t *testing.T) {
	rec := newRecorder()
	c := NewCoalescer(time.Hour, rec)

	c.ScheduleNotify("a")
	c.mu.Lock()
	stale := c.gen
	c.mu.Unlock()
	c.ScheduleNotify("b")

	c.fire(stale)
	if n := len(rec.all()); n != 0 {
		t.Errorf("Expected superseded timer not to flush, got %d batches", n)
	}
	c.mu.Lock()
	armed := c.timer != nil
	c.mu.Unlock()
	if !armed {
		t.Error("Expected the current timer to be kept")
	}
	if p := c.Pending(); !slices.Equal(p, []string{"a", "b"}) {
		t.Errorf("Expected pending [a b], got %v", p)
	}
	c.Flush()
}
