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

// Package transform holds the named steps a pipeline is built from and the
// registry the extension map is validated against.
package transform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"bennypowers.dev/kiln/job"
)

// ErrTransform is the sentinel matched by every step failure.
var ErrTransform = errors.New("transform failed")

// StepError is a failure of one named step on one file.
type StepError struct {
	Step string
	Path string
	Err  error
}

func (e *StepError) Error() string {
	if e == nil {
		return ""
	}
	return fmt.Sprintf("%s: %s: %v", e.Path, e.Step, e.Err)
}

// Unwrap exposes both ErrTransform and the underlying cause to errors.Is.
func (e *StepError) Unwrap() []error { return []error{ErrTransform, e.Err} }

// Mode tells the staleness stage whether a step wants the source content in
// memory or works directly on files.
type Mode int

const (
	// InMemory steps transform job.Data.
	InMemory Mode = iota
	// OnDisk steps read the source and write the destination themselves.
	OnDisk
)

func (m Mode) String() string {
	if m == OnDisk {
		return "on-disk"
	}
	return "in-memory"
}

// Func transforms a job. It may return the same job or a replacement.
type Func func(ctx context.Context, j *job.Job) (*job.Job, error)

// Step is a named transform.
type Step struct {
	Name string
	Mode Mode
	Run  Func
}

// Registry maps step names to steps. It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	steps map[string]Step
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{steps: make(map[string]Step)}
}

// Register adds a step. Registering a name twice is an error.
func (r *Registry) Register(s Step) error {
	if s.Name == "" || s.Run == nil {
		return fmt.Errorf("transform: step needs a name and a func")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.steps[s.Name]; dup {
		return fmt.Errorf("transform: step %q already registered", s.Name)
	}
	r.steps[s.Name] = s
	return nil
}

// Get returns the named step.
func (r *Registry) Get(name string) (Step, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.steps[name]
	return s, ok
}

// Has reports whether name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.Get(name)
	return ok
}

// Names returns the registered step names, sorted.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.steps))
	for n := range r.steps {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Apply runs the named steps in order. The first failing step stops the
// pipeline and is reported as a *StepError.
func (r *Registry) Apply(ctx context.Context, j *job.Job, names []string) (*job.Job, error) {
	for _, name := range names {
		s, ok := r.Get(name)
		if !ok {
			return j, &StepError{Step: name, Path: j.Source, Err: fmt.Errorf("unknown step")}
		}
		next, err := s.Run(ctx, j)
		if err != nil {
			path := j.Source
			if path == "" {
				path = j.Dest
			}
			return j, &StepError{Step: name, Path: path, Err: err}
		}
		if next != nil {
			j = next
		}
	}
	return j, nil
}
