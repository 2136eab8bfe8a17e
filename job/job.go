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

// Package job defines the per-file record threaded through every pipeline
// stage, and the three-way outcome a pipeline reports to the scheduler.
package job

import (
	"fmt"
	"time"
)

// Job is the unit passed through every stage of a per-file pipeline. It is
// created fresh at pipeline entry and mutated in place by each stage.
type Job struct {
	// Source is the absolute source path. Empty when the caller drives a
	// rebuild from an existing destination file.
	Source string
	// Dest is the absolute destination path. Either supplied by the caller or
	// derived from Source by the staleness stage.
	Dest string
	// Data is the in-memory content. Non-empty at entry means the caller
	// already has the content to (re)write.
	Data []byte
	// Build is recomputed by the staleness stage; callers must not set it.
	Build bool
	// DestModTime is the destination mtime observed during staleness
	// resolution. Zero when the destination did not exist.
	DestModTime time.Time
	// Written is set by a step that has already persisted Data to Dest.
	Written bool
	// Outputs lists every file the pipeline wrote, in order.
	Outputs []string
}

// AddOutput records a written file.
func (j *Job) AddOutput(path string) {
	for _, p := range j.Outputs {
		if p == path {
			return
		}
	}
	j.Outputs = append(j.Outputs, path)
}

// Status is the tagged result of a per-file pipeline.
type Status int

const (
	// Done means the pipeline ran to completion and produced or removed files.
	Done Status = iota
	// Skipped means the pipeline stopped early because nothing needed doing.
	// It is not an error.
	Skipped
	// Failed means the pipeline stopped with an error.
	Failed
)

func (s Status) String() string {
	switch s {
	case Done:
		return "done"
	case Skipped:
		return "skipped"
	case Failed:
		return "failed"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

// Outcome is what a per-file pipeline reports back to the scheduler.
type Outcome struct {
	Path    string
	Status  Status
	Outputs []string
	Err     error
}

// DoneWith returns a Done outcome for path with the given outputs.
func DoneWith(path string, outputs ...string) Outcome {
	return Outcome{Path: path, Status: Done, Outputs: outputs}
}

// SkippedOutcome returns a Skipped outcome for path.
func SkippedOutcome(path string) Outcome {
	return Outcome{Path: path, Status: Skipped}
}

// FailedWith returns a Failed outcome for path.
func FailedWith(path string, err error) Outcome {
	return Outcome{Path: path, Status: Failed, Err: err}
}
