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

package build

import (
	"context"
	"fmt"
	"path/filepath"

	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/include"
	"bennypowers.dev/kiln/job"
	"bennypowers.dev/kiln/taskmap"
)

// Mode selects how much work staleness resolution does for a job.
type Mode int

const (
	// ModeInMemory compares mtimes and loads the source when a build is due.
	ModeInMemory Mode = iota
	// ModeOnDisk compares mtimes and prepares the destination directory; it
	// never reads content.
	ModeOnDisk
	// ModeWithIncludes is ModeInMemory plus a check of the included files
	// when the mtimes alone say the output is fresh.
	ModeWithIncludes
)

func (m Mode) String() string {
	switch m {
	case ModeOnDisk:
		return "on-disk"
	case ModeWithIncludes:
		return "with-includes"
	default:
		return "in-memory"
	}
}

// Staleness decides whether a job's output must be rebuilt. It never writes
// file content.
type Staleness struct {
	FS         fs.FileSystem
	SourceRoot string
	DestRoot   string
	Tasks      *taskmap.Map
	Includes   *include.Resolver
	Extractors map[string]include.Extractor
	Force      bool
}

// DestFor maps a source path to its destination: the path relative to the
// source root is re-rooted at the destination root, then its extension is
// substituted through the task map.
func (s *Staleness) DestFor(source string) (string, error) {
	rel, err := filepath.Rel(s.SourceRoot, source)
	if err != nil || !fs.IsWithin(s.SourceRoot, source) {
		return "", fmt.Errorf("%s is not under the source root %s", source, s.SourceRoot)
	}
	return s.Tasks.DestPath(filepath.Join(s.DestRoot, rel)), nil
}

// Resolve sets j.Build, and fills j.Dest, j.DestModTime and j.Data as the
// mode requires. Errors are *FileError values for the three file-level
// failures.
func (s *Staleness) Resolve(ctx context.Context, pass *Pass, j *job.Job, mode Mode) error {
	j.Build = false

	if len(j.Data) > 0 {
		switch {
		case j.Dest != "":
			j.Dest = filepath.Clean(j.Dest)
		case j.Source != "":
			dest, err := s.DestFor(filepath.Clean(j.Source))
			if err != nil {
				return err
			}
			j.Dest = dest
		default:
			return fileError(ErrNoDestination, "")
		}
		if err := s.CheckDest(j.Dest); err != nil {
			return err
		}
		j.Build = true
		return nil
	}

	if j.Dest != "" {
		return s.resolveDest(j, mode)
	}

	if j.Source == "" {
		return fmt.Errorf("job has neither a source nor a destination")
	}
	j.Source = filepath.Clean(j.Source)
	dest, err := s.DestFor(j.Source)
	if err != nil {
		return err
	}
	if err := s.CheckDest(dest); err != nil {
		return err
	}
	j.Dest = dest

	if s.Force {
		j.Build = true
	} else {
		srcInfo, err := s.FS.Stat(j.Source)
		if err != nil {
			return fileError(ErrMissingSource, j.Source)
		}
		destInfo, err := s.FS.Stat(j.Dest)
		if err != nil {
			j.Build = true
		} else {
			j.DestModTime = destInfo.ModTime()
			j.Build = srcInfo.ModTime().After(j.DestModTime)
		}

		if !j.Build && mode == ModeWithIncludes {
			if err := s.checkIncludes(ctx, pass, j); err != nil {
				return err
			}
		}
	}

	if !j.Build {
		return nil
	}
	if mode == ModeOnDisk {
		return s.FS.MkdirAll(filepath.Dir(j.Dest), 0755)
	}
	if len(j.Data) == 0 {
		data, err := s.FS.ReadFile(j.Source)
		if err != nil {
			return fileError(ErrMissingSource, j.Source)
		}
		j.Data = data
	}
	return nil
}

// CheckDest rejects a destination inside the source tree unless it is also
// inside a destination root nested there.
func (s *Staleness) CheckDest(dest string) error {
	if fs.IsWithin(s.SourceRoot, dest) && !fs.IsWithin(s.DestRoot, dest) {
		return fileError(ErrDestInSourceTree, dest)
	}
	return nil
}

// resolveDest handles a job whose destination was supplied by the caller.
func (s *Staleness) resolveDest(j *job.Job, mode Mode) error {
	dest := filepath.Clean(j.Dest)
	j.Dest = dest
	if err := s.CheckDest(dest); err != nil {
		return err
	}
	info, err := s.FS.Stat(dest)
	if err != nil {
		return fileError(ErrMissingDestination, dest)
	}
	j.Build = true
	j.DestModTime = info.ModTime()
	if mode == ModeOnDisk {
		return nil
	}
	data, err := s.FS.ReadFile(dest)
	if err != nil {
		return fileError(ErrMissingDestination, dest)
	}
	j.Data = data
	return nil
}

func (s *Staleness) checkIncludes(ctx context.Context, pass *Pass, j *job.Job) error {
	ext := taskmap.Ext(j.Source)
	extract, ok := s.Extractors[ext]
	if !ok || s.Includes == nil {
		return nil
	}
	content, err := s.FS.ReadFile(j.Source)
	if err != nil {
		return fileError(ErrMissingSource, j.Source)
	}
	includes, err := s.Includes.FindIncludes(ctx, pass.Includes, content, j.Source, extract)
	if err != nil {
		return err
	}
	if s.Includes.AnyNewerThan(ctx, pass.Includes, includes, ext, j.DestModTime) {
		j.Build = true
		j.Data = content
	}
	return nil
}
