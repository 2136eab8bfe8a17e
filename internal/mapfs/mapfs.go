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

// Package mapfs provides an in-memory filesystem implementation for testing.
package mapfs

import (
	"fmt"
	"io/fs"
	"path"
	"strings"
	"sync"
	"testing/fstest"
	"time"

	"github.com/bmatcuk/doublestar/v4"
)

// MapFileSystem implements FileSystem using an in-memory fstest.MapFS.
// Every file carries its own modification time so staleness decisions can be
// exercised without sleeping. Files written through WriteFile receive the
// current clock value, which tests advance with Tick or SetClock.
type MapFileSystem struct {
	mu    sync.RWMutex
	mapFS fstest.MapFS
	clock time.Time
}

// New creates a new in-memory filesystem for testing.
func New() *MapFileSystem {
	return &MapFileSystem{
		mapFS: make(fstest.MapFS),
		clock: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

// AddFile adds a file with the current clock as its modification time.
func (mfs *MapFileSystem) AddFile(path string, content string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.mapFS[mfs.cleanPath(path)] = &fstest.MapFile{
		Data:    []byte(content),
		Mode:    mode,
		ModTime: mfs.clock,
	}
}

// AddFileAt adds a file with an explicit modification time.
func (mfs *MapFileSystem) AddFileAt(path string, content string, modTime time.Time) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.mapFS[mfs.cleanPath(path)] = &fstest.MapFile{
		Data:    []byte(content),
		Mode:    0644,
		ModTime: modTime,
	}
}

// AddDir adds a directory to the in-memory filesystem.
func (mfs *MapFileSystem) AddDir(path string, mode fs.FileMode) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	mfs.mapFS[mfs.cleanPath(path)+"/.keep"] = &fstest.MapFile{
		Mode:    mode.Perm(),
		ModTime: mfs.clock,
	}
}

// SetModTime changes the modification time of an existing file.
func (mfs *MapFileSystem) SetModTime(path string, modTime time.Time) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name := mfs.cleanPath(path)
	file, ok := mfs.mapFS[name]
	if !ok {
		return &fs.PathError{Op: "chtimes", Path: path, Err: fs.ErrNotExist}
	}
	file.ModTime = modTime
	return nil
}

// SetClock sets the time stamped on files written from now on.
func (mfs *MapFileSystem) SetClock(t time.Time) {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.clock = t
}

// Tick advances the clock by d and returns the new time.
func (mfs *MapFileSystem) Tick(d time.Duration) time.Time {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()
	mfs.clock = mfs.clock.Add(d)
	return mfs.clock
}

// Now returns the current clock value.
func (mfs *MapFileSystem) Now() time.Time {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()
	return mfs.clock
}

// WriteFile implements FileSystem.
func (mfs *MapFileSystem) WriteFile(name string, data []byte, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = mfs.cleanPath(name)

	if err := mfs.ensureParentDirLocked(name); err != nil {
		return err
	}

	mfs.mapFS[name] = &fstest.MapFile{
		Data:    append([]byte(nil), data...),
		Mode:    perm,
		ModTime: mfs.clock,
	}

	return nil
}

// ReadFile implements FileSystem.
func (mfs *MapFileSystem) ReadFile(name string) ([]byte, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return fs.ReadFile(mfs.mapFS, mfs.cleanPath(name))
}

// Remove implements FileSystem.
func (mfs *MapFileSystem) Remove(name string) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	name = mfs.cleanPath(name)

	if _, exists := mfs.mapFS[name]; !exists {
		return &fs.PathError{Op: "remove", Path: name, Err: fs.ErrNotExist}
	}

	delete(mfs.mapFS, name)
	return nil
}

// MkdirAll implements FileSystem.
func (mfs *MapFileSystem) MkdirAll(path string, perm fs.FileMode) error {
	mfs.mu.Lock()
	defer mfs.mu.Unlock()

	path = mfs.cleanPath(path)
	if path == "" {
		return nil
	}

	if file, exists := mfs.mapFS[path]; exists && !file.Mode.IsDir() {
		return &fs.PathError{Op: "mkdir", Path: path, Err: fmt.Errorf("not a directory")}
	}

	mfs.mapFS[path+"/.keep"] = &fstest.MapFile{
		Mode:    perm.Perm(),
		ModTime: mfs.clock,
	}

	return nil
}

// Stat implements FileSystem.
func (mfs *MapFileSystem) Stat(name string) (fs.FileInfo, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return fs.Stat(mfs.mapFS, mfs.cleanPath(name))
}

// Exists implements FileSystem.
func (mfs *MapFileSystem) Exists(path string) bool {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	path = mfs.cleanPath(path)

	if _, exists := mfs.mapFS[path]; exists {
		return true
	}

	prefix := path + "/"
	for filePath := range mfs.mapFS {
		if strings.HasPrefix(filePath, prefix) {
			return true
		}
	}

	return false
}

// ReadDir implements FileSystem.
func (mfs *MapFileSystem) ReadDir(name string) ([]fs.DirEntry, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	return fs.ReadDir(mfs.mapFS, mfs.cleanPath(name))
}

// Glob implements FileSystem. Directory marker files are never returned.
func (mfs *MapFileSystem) Glob(root, pattern string) ([]string, error) {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	full := path.Join(mfs.cleanPath(root), pattern)
	matches, err := doublestar.Glob(mfs.mapFS, full, doublestar.WithFilesOnly())
	if err != nil {
		return nil, err
	}

	var paths []string
	for _, m := range matches {
		if path.Base(m) == ".keep" {
			continue
		}
		paths = append(paths, "/"+m)
	}
	return paths, nil
}

// ListFiles returns all files in the MapFS for debugging.
func (mfs *MapFileSystem) ListFiles() map[string]string {
	mfs.mu.RLock()
	defer mfs.mu.RUnlock()

	result := make(map[string]string)
	for p, file := range mfs.mapFS {
		// Directories are stored as .keep files
		if strings.HasSuffix(p, "/.keep") || p == ".keep" {
			dirPath := path.Dir(p)
			if dirPath == "." {
				dirPath = "/"
			}
			result["/"+strings.TrimPrefix(dirPath, "/")] = "directory"
		} else {
			result["/"+p] = fmt.Sprintf("file (%d bytes)", len(file.Data))
		}
	}
	return result
}

func (mfs *MapFileSystem) cleanPath(p string) string {
	cleaned := path.Clean(p)
	if !path.IsAbs(cleaned) {
		cleaned = "/" + cleaned
	}
	return strings.TrimPrefix(cleaned, "/")
}

func (mfs *MapFileSystem) ensureParentDirLocked(filePath string) error {
	dir := path.Dir(filePath)
	if dir == "." || dir == "/" || dir == "" {
		return nil
	}

	if file, exists := mfs.mapFS[dir]; exists && !file.Mode.IsDir() {
		return &fs.PathError{Op: "open", Path: filePath, Err: fmt.Errorf("not a directory")}
	}

	return nil
}
