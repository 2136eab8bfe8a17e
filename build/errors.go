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
	"errors"
	"fmt"
)

var (
	// ErrMissingSource means a source file to build does not exist.
	ErrMissingSource = errors.New("source file does not exist")
	// ErrMissingDestination means a caller-supplied destination does not
	// exist.
	ErrMissingDestination = errors.New("destination file does not exist")
	// ErrDestInSourceTree means a destination resolves inside the source
	// tree, where writing or removing it could destroy sources.
	ErrDestInSourceTree = errors.New("destination is inside the source tree")
	// ErrNoDestination means a job carries data but neither a source to
	// derive a destination from nor a destination of its own.
	ErrNoDestination = errors.New("job has no source or destination")
)

// FileError ties one of the sentinel errors above to the path it concerns.
type FileError struct {
	Kind error
	Path string
}

func (e *FileError) Error() string {
	if e == nil {
		return ""
	}
	if e.Path == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Path, e.Kind.Error())
}

func (e *FileError) Unwrap() error { return e.Kind }

func fileError(kind error, path string) error {
	return &FileError{Kind: kind, Path: path}
}
