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

// Package include discovers the files included by a source file (template
// partials, stylesheet imports, concatenation fragments) and decides whether
// any of them is newer than a previously built output.
//
// The resolver is language agnostic. Extracting raw references from content
// is delegated to an Extractor; the resolver normalizes those references,
// expands globs, drops dangling ones and recurses into included files.
package include

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/sirupsen/logrus"

	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/taskmap"
)

// Extractor returns the raw, unresolved include references found in content.
// path is the file the content was read from.
type Extractor func(content []byte, path string) ([]string, error)

// defaultFamilies groups extensions whose files may include one another and
// should be scanned with the same extractor.
var defaultFamilies = [][]string{
	{"css", "scss", "sass", "less"},
	{"html", "htm", "shtml"},
	{"js", "mjs", "cjs", "ts"},
}

// refCacheSize bounds the number of files whose references are memoized.
const refCacheSize = 4096

type refEntry struct {
	modTime time.Time
	size    int64
	refs    []string
}

// Resolver expands include graphs rooted in a source tree.
type Resolver struct {
	fs         fs.FileSystem
	sourceRoot string
	families   [][]string
	refs       *lru.Cache[string, refEntry]
	log        logrus.FieldLogger
}

// NewResolver creates a Resolver for files under sourceRoot.
func NewResolver(fsys fs.FileSystem, sourceRoot string, log logrus.FieldLogger) *Resolver {
	refs, _ := lru.New[string, refEntry](refCacheSize)
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Resolver{
		fs:         fsys,
		sourceRoot: filepath.Clean(sourceRoot),
		families:   defaultFamilies,
		refs:       refs,
		log:        log,
	}
}

// FindIncludes returns the absolute paths of every file transitively included
// by content, in discovery order and without duplicates. sourcePath is the
// file content belongs to; it is never part of the result.
//
// Each call gets its own scan id so concurrent scans sharing pass never see
// each other's visited sets. Recursion follows included files of the same
// extension family as sourcePath and stops at paths already visited in this
// scan, which handles both cycles and diamonds.
func (r *Resolver) FindIncludes(ctx context.Context, pass *Cache, content []byte, sourcePath string, extract Extractor) ([]string, error) {
	scanID := uuid.NewString()
	defer pass.endScan(scanID)

	sourcePath = filepath.Clean(sourcePath)
	pass.visit(scanID, sourcePath)

	var found []string
	refs, err := extract(content, sourcePath)
	if err != nil {
		return nil, fmt.Errorf("extracting includes from %s: %w", sourcePath, err)
	}
	if err := r.walk(ctx, pass, scanID, refs, sourcePath, taskmap.Ext(sourcePath), extract, &found); err != nil {
		return nil, err
	}
	return found, nil
}

func (r *Resolver) walk(ctx context.Context, pass *Cache, scanID string, refs []string, from, rootExt string, extract Extractor, found *[]string) error {
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return err
		}
		for _, p := range r.expand(pass, ref, from) {
			if !pass.visit(scanID, p) {
				continue
			}
			*found = append(*found, p)

			if !r.sameFamily(rootExt, taskmap.Ext(p)) {
				continue
			}
			childRefs, err := r.references(p, rootExt, extract)
			if err != nil {
				r.log.WithField("file", p).WithError(err).Debug("skipping unreadable include")
				continue
			}
			if err := r.walk(ctx, pass, scanID, childRefs, p, rootExt, extract, found); err != nil {
				return err
			}
		}
	}
	return nil
}

// references returns the raw references of an included file, reusing the
// last extraction while the file's mtime and size are unchanged. Entries are
// keyed by the root extension too, since that picks the extractor.
func (r *Resolver) references(path, rootExt string, extract Extractor) ([]string, error) {
	info, err := r.fs.Stat(path)
	if err != nil {
		return nil, err
	}
	key := rootExt + "\x00" + path
	if cached, ok := r.refs.Get(key); ok && cached.modTime.Equal(info.ModTime()) && cached.size == info.Size() {
		return cached.refs, nil
	}

	content, err := r.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	refs, err := extract(content, path)
	if err != nil {
		return nil, err
	}
	r.refs.Add(key, refEntry{modTime: info.ModTime(), size: info.Size(), refs: refs})
	return refs, nil
}

// expand resolves ref against the including file and returns the existing
// files it names. Glob references may name several files; dangling
// references name none.
func (r *Resolver) expand(pass *Cache, ref, from string) []string {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}
	native := filepath.FromSlash(ref)

	var abs string
	switch {
	case filepath.IsAbs(native) && fs.IsWithin(r.sourceRoot, native):
		abs = native
	case strings.HasPrefix(ref, "/"):
		abs = filepath.Join(r.sourceRoot, native)
	default:
		abs = filepath.Join(filepath.Dir(from), native)
	}
	abs = filepath.Clean(abs)

	if strings.ContainsAny(ref, "*?[{") {
		base, pattern := doublestar.SplitPattern(filepath.ToSlash(abs))
		matches, err := r.fs.Glob(filepath.FromSlash(base), pattern)
		if err != nil {
			r.log.WithField("pattern", ref).WithError(err).Debug("invalid include pattern")
			return nil
		}
		slices.Sort(matches)
		return matches
	}

	if pass.isMissing(abs) {
		return nil
	}
	info, err := r.fs.Stat(abs)
	if err != nil || info.IsDir() {
		pass.setMissing(abs)
		return nil
	}
	return []string{abs}
}

func (r *Resolver) sameFamily(a, b string) bool {
	if a == b {
		return true
	}
	for _, family := range r.families {
		if slices.Contains(family, a) && slices.Contains(family, b) {
			return true
		}
	}
	return false
}

// AnyNewerThan reports whether any of paths was modified after ref. The pass
// cache is consulted before statting, and every path is checked even after
// the answer is known so the cache is filled consistently. The first time a
// file type has a newer include in a pass, one notice is logged.
func (r *Resolver) AnyNewerThan(ctx context.Context, pass *Cache, paths []string, fileType string, ref time.Time) bool {
	newer := false
	for _, p := range paths {
		if ctx.Err() != nil {
			break
		}
		modTime, ok := pass.ModTime(fileType, p)
		if !ok {
			v, err, _ := pass.stats.Do(p, func() (any, error) {
				info, err := r.fs.Stat(p)
				if err != nil {
					return nil, err
				}
				return info.ModTime(), nil
			})
			if err != nil {
				continue
			}
			modTime = v.(time.Time)
			pass.setModTime(fileType, p, modTime)
		}
		if modTime.After(ref) {
			newer = true
		}
	}

	if newer && pass.markReported(fileType) {
		r.log.WithField("type", fileType).Info("includes changed, rebuilding dependent files")
	}
	return newer
}
