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

// Package taskmap maps source extensions to ordered transform pipelines and
// destination extensions back to the source extensions that can produce them.
//
// Extensions are stored lower-cased and without a leading dot. A destination
// entry whose candidate list contains Wildcard means the destination
// extension is an extra layer on top of another mapped extension, so
// "app.js.map" and "index.html.gz" resolve through "app.js" and "index.html".
package taskmap

import (
	"fmt"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"sync"
)

const (
	// Wildcard in a destination entry strips one trailing extension and
	// resolves the shortened path again.
	Wildcard = "*"

	// DefaultStep is the pipeline used for extensions with no mapping.
	DefaultStep = "copy"

	// MaxLayerDepth bounds wildcard recursion so that a misconfigured
	// mapping can never recurse without end.
	MaxLayerDepth = 8
)

// Map holds the source->tasks, destination->source and source->destination
// extension tables. It is safe for concurrent use.
type Map struct {
	mu    sync.RWMutex
	tasks map[string][]string
	dest  map[string][]string
	ext   map[string]string
}

// New returns an empty Map.
func New() *Map {
	return &Map{
		tasks: make(map[string][]string),
		dest:  make(map[string][]string),
		ext:   make(map[string]string),
	}
}

// Default returns the built-in mapping.
func Default() *Map {
	m := New()
	m.AddMapping("concat", "concat")
	m.AddMapping("md", "markdown")
	m.AddMapping("markdown", "markdown")
	m.AddMapping("html", "ssi")
	m.AddMapping("shtml", "ssi")

	m.AddDestMapping("html", "md", "markdown", "shtml", "html.concat")
	m.AddDestMapping("js", "js.concat")
	m.AddDestMapping("css", "css.concat")
	m.AddDestMapping("gz", Wildcard)
	m.AddDestMapping("zst", Wildcard)
	m.AddDestMapping("map", Wildcard)

	m.AddDestExt("concat", "")
	m.AddDestExt("md", "html")
	m.AddDestExt("markdown", "html")
	m.AddDestExt("shtml", "html")
	return m
}

// Normalize lower-cases ext and strips a leading dot.
func Normalize(ext string) string {
	return strings.ToLower(strings.TrimPrefix(strings.TrimSpace(ext), "."))
}

// Ext returns the normalized trailing extension of path.
func Ext(path string) string {
	return Normalize(filepath.Ext(path))
}

// AddMapping appends steps to the pipeline for ext. Existing steps are kept
// and steps already present are not duplicated.
func (m *Map) AddMapping(ext string, steps ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ext = Normalize(ext)
	for _, s := range steps {
		if !slices.Contains(m.tasks[ext], s) {
			m.tasks[ext] = append(m.tasks[ext], s)
		}
	}
}

// AddDestMapping appends candidate source extensions for destExt without
// dropping existing entries.
func (m *Map) AddDestMapping(destExt string, exts ...string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	destExt = Normalize(destExt)
	for _, e := range exts {
		if e != Wildcard {
			e = Normalize(e)
		}
		if !slices.Contains(m.dest[destExt], e) {
			m.dest[destExt] = append(m.dest[destExt], e)
		}
	}
}

// AddDestExt records that sources with srcExt are written with destExt. An
// empty destExt strips the extension. It reports false, leaving the table
// untouched, when srcExt already has a destination extension.
func (m *Map) AddDestExt(srcExt, destExt string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	srcExt = Normalize(srcExt)
	if _, ok := m.ext[srcExt]; ok {
		return false
	}
	m.ext[srcExt] = Normalize(destExt)
	return true
}

// PipelineFor returns the ordered step names for a source extension. When ext
// has no mapping it returns the single DefaultStep and false, so callers can
// report the missing mapping.
func (m *Map) PipelineFor(ext string) ([]string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	steps, ok := m.tasks[Normalize(ext)]
	if !ok || len(steps) == 0 {
		return []string{DefaultStep}, false
	}
	return slices.Clone(steps), true
}

// DestExt returns the extension a source with srcExt is written with. Without
// an explicit entry it inverts the destination table; otherwise the source
// extension is kept.
func (m *Map) DestExt(srcExt string) string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	srcExt = Normalize(srcExt)
	if d, ok := m.ext[srcExt]; ok {
		return d
	}

	destExts := make([]string, 0, len(m.dest))
	for d := range m.dest {
		destExts = append(destExts, d)
	}
	sort.Strings(destExts)
	for _, d := range destExts {
		if slices.Contains(m.dest[d], srcExt) {
			return d
		}
	}
	return srcExt
}

// DestPath applies extension substitution to a source path.
func (m *Map) DestPath(source string) string {
	raw := filepath.Ext(source)
	if raw == "" {
		return source
	}
	ext := Normalize(raw)
	destExt := m.DestExt(ext)
	if destExt == ext {
		return source
	}
	stem := strings.TrimSuffix(source, raw)
	if destExt == "" {
		return stem
	}
	return stem + "." + destExt
}

// CandidateSources returns every path, in the same directory as destPath,
// that could legitimately have produced destPath: destPath itself, then each
// mapped candidate extension substituted for its trailing extension. A
// Wildcard candidate strips one trailing extension and resolves the shorter
// path again, at most MaxLayerDepth times.
func (m *Map) CandidateSources(destPath string) []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []string
	seen := make(map[string]struct{})
	m.collectLocked(destPath, 0, &out, seen)
	return out
}

func (m *Map) collectLocked(p string, depth int, out *[]string, seen map[string]struct{}) {
	if _, ok := seen[p]; !ok {
		seen[p] = struct{}{}
		*out = append(*out, p)
	}
	if depth >= MaxLayerDepth {
		return
	}

	raw := filepath.Ext(p)
	if raw == "" {
		return
	}
	stem := strings.TrimSuffix(p, raw)
	for _, candidate := range m.dest[Normalize(raw)] {
		if candidate == Wildcard {
			m.collectLocked(stem, depth+1, out, seen)
			continue
		}
		c := stem + "." + candidate
		if _, ok := seen[c]; !ok {
			seen[c] = struct{}{}
			*out = append(*out, c)
		}
	}
}

// CandidateSourceExts returns the trailing extension of every candidate
// source of destPath, in CandidateSources order.
func (m *Map) CandidateSourceExts(destPath string) []string {
	var exts []string
	for _, c := range m.CandidateSources(destPath) {
		e := Ext(c)
		if !slices.Contains(exts, e) {
			exts = append(exts, e)
		}
	}
	return exts
}

// Extensions returns the source extensions that have a pipeline, sorted.
func (m *Map) Extensions() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	exts := make([]string, 0, len(m.tasks))
	for e := range m.tasks {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}

// LayerExts returns the destination extensions mapped to Wildcard, sorted.
// These are the extra layers ("gz", "map") a built file may carry.
func (m *Map) LayerExts() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var exts []string
	for _, d := range sortedKeys(m.dest) {
		if slices.Contains(m.dest[d], Wildcard) {
			exts = append(exts, d)
		}
	}
	return exts
}

// Validate checks that every step referenced by a pipeline, plus
// DefaultStep, is known to has.
func (m *Map) Validate(has func(step string) bool) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if !has(DefaultStep) {
		return fmt.Errorf("taskmap: default step %q is not registered", DefaultStep)
	}
	for _, ext := range sortedKeys(m.tasks) {
		for _, step := range m.tasks[ext] {
			if !has(step) {
				return fmt.Errorf("taskmap: extension %q uses unknown step %q", ext, step)
			}
		}
	}
	return nil
}

func sortedKeys(m map[string][]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
