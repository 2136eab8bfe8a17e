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

package include

import (
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// Cache is the per-pass include state. A new Cache is created for every clean
// or build pass, so nothing learned in one pass leaks into the next.
//
// Entries are keyed by normalized absolute path and only ever filled, so
// concurrent pipelines sharing a Cache at worst race to stat the same file;
// singleflight collapses those stats into one.
type Cache struct {
	mu       sync.Mutex
	newer    map[string]map[string]time.Time // fileType -> path -> mtime
	missing  map[string]struct{}             // paths known not to exist
	seen     map[string]map[string]struct{}  // scanID -> visited paths
	reported map[string]struct{}             // fileTypes with a logged newer notice
	stats    singleflight.Group
}

// NewCache returns an empty per-pass cache.
func NewCache() *Cache {
	return &Cache{
		newer:    make(map[string]map[string]time.Time),
		missing:  make(map[string]struct{}),
		seen:     make(map[string]map[string]struct{}),
		reported: make(map[string]struct{}),
	}
}

// ModTime returns the cached mtime of path for fileType.
func (c *Cache) ModTime(fileType, path string) (time.Time, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.newer[fileType][path]
	return t, ok
}

// Len returns the number of cached mtimes for fileType.
func (c *Cache) Len(fileType string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.newer[fileType])
}

func (c *Cache) setModTime(fileType, path string, t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	byPath, ok := c.newer[fileType]
	if !ok {
		byPath = make(map[string]time.Time)
		c.newer[fileType] = byPath
	}
	byPath[path] = t
}

func (c *Cache) isMissing(path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.missing[path]
	return ok
}

func (c *Cache) setMissing(path string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.missing[path] = struct{}{}
}

// visit marks path as queued for scanID and reports whether it was new.
func (c *Cache) visit(scanID, path string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	set, ok := c.seen[scanID]
	if !ok {
		set = make(map[string]struct{})
		c.seen[scanID] = set
	}
	if _, dup := set[path]; dup {
		return false
	}
	set[path] = struct{}{}
	return true
}

func (c *Cache) endScan(scanID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.seen, scanID)
}

// activeScans returns the number of scans that have not finished.
func (c *Cache) activeScans() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.seen)
}

// markReported reports whether this is the first newer notice for fileType.
func (c *Cache) markReported(fileType string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.reported[fileType]; ok {
		return false
	}
	c.reported[fileType] = struct{}{}
	return true
}
