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

// Package build runs the per-file build and clean pipelines over a source
// and destination tree.
//
// A build pipeline resolves staleness, runs the transform steps mapped to
// the file's extension and writes the result. A clean pipeline removes
// destination files no source can produce any more. Both run under the
// bounded scheduler and report a three-way outcome per file.
package build

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"bennypowers.dev/kiln/extract"
	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/include"
	"bennypowers.dev/kiln/internal/metrics"
	"bennypowers.dev/kiln/job"
	"bennypowers.dev/kiln/scheduler"
	"bennypowers.dev/kiln/taskmap"
	"bennypowers.dev/kiln/transform"
)

// DefaultIncludePrefix marks partials that are only ever included.
const DefaultIncludePrefix = "_"

// Options configures a Builder. Only SourceRoot and DestRoot are required.
type Options struct {
	SourceRoot    string
	DestRoot      string
	Concurrency   int
	Force         bool
	IncludePrefix string

	// Tasks defaults to taskmap.Default().
	Tasks *taskmap.Map
	// Steps defaults to transform.Builtins.
	Steps *transform.Registry
	// Extractors defaults to extract.Defaults().
	Extractors map[string]include.Extractor

	Log     logrus.FieldLogger
	Metrics *metrics.Recorder
}

// Result summarizes one pass.
type Result struct {
	Pass     string        `json:"pass"`
	Outcomes []job.Outcome `json:"-"`
	Duration time.Duration `json:"-"`
	Missing  []string      `json:"missingMappings,omitempty"`
}

// Count tallies the pass outcomes by status.
func (r *Result) Count() (done, skipped, failed int) {
	return scheduler.Count(r.Outcomes)
}

// Builder runs build and clean passes.
type Builder struct {
	fs         fs.FileSystem
	opts       Options
	tasks      *taskmap.Map
	steps      *transform.Registry
	extractors map[string]include.Extractor
	stale      *Staleness
	log        logrus.FieldLogger
	metrics    *metrics.Recorder
}

// New validates opts and returns a Builder. Every step named by the task map
// must be registered.
func New(fsys fs.FileSystem, opts Options) (*Builder, error) {
	if opts.SourceRoot == "" || opts.DestRoot == "" {
		return nil, errors.New("build: source and destination roots are required")
	}
	opts.SourceRoot = filepath.Clean(opts.SourceRoot)
	opts.DestRoot = filepath.Clean(opts.DestRoot)
	if opts.SourceRoot == opts.DestRoot {
		return nil, fileError(ErrDestInSourceTree, opts.DestRoot)
	}
	if opts.IncludePrefix == "" {
		opts.IncludePrefix = DefaultIncludePrefix
	}
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	if opts.Tasks == nil {
		opts.Tasks = taskmap.Default()
	}
	if opts.Extractors == nil {
		opts.Extractors = extract.Defaults()
	}
	if opts.Steps == nil {
		steps, err := transform.Builtins(fsys, transform.Options{SourceRoot: opts.SourceRoot, Log: opts.Log})
		if err != nil {
			return nil, err
		}
		opts.Steps = steps
	}
	if err := opts.Tasks.Validate(opts.Steps.Has); err != nil {
		return nil, err
	}

	b := &Builder{
		fs:         fsys,
		opts:       opts,
		tasks:      opts.Tasks,
		steps:      opts.Steps,
		extractors: opts.Extractors,
		log:        opts.Log,
		metrics:    opts.Metrics,
	}
	b.stale = &Staleness{
		FS:         fsys,
		SourceRoot: opts.SourceRoot,
		DestRoot:   opts.DestRoot,
		Tasks:      opts.Tasks,
		Includes:   include.NewResolver(fsys, opts.SourceRoot, opts.Log),
		Extractors: opts.Extractors,
		Force:      opts.Force,
	}
	return b, nil
}

// Options returns the normalized options.
func (b *Builder) Options() Options { return b.opts }

// Tasks returns the task map in use.
func (b *Builder) Tasks() *taskmap.Map { return b.tasks }

// HasExtractor reports whether files with ext are scanned for includes.
func (b *Builder) HasExtractor(ext string) bool {
	_, ok := b.extractors[taskmap.Normalize(ext)]
	return ok
}

// IsPartial reports whether path is an include partial that is never built
// on its own.
func (b *Builder) IsPartial(path string) bool {
	return strings.HasPrefix(filepath.Base(path), b.opts.IncludePrefix)
}

// Sources returns every buildable file under the source root, sorted.
func (b *Builder) Sources() ([]string, error) {
	return b.glob("**")
}

func (b *Builder) glob(pattern string) ([]string, error) {
	matches, err := b.fs.Glob(b.opts.SourceRoot, pattern)
	if err != nil {
		return nil, fmt.Errorf("listing sources: %w", err)
	}
	var out []string
	for _, m := range matches {
		if b.skipSource(m) {
			continue
		}
		out = append(out, m)
	}
	slices.Sort(out)
	return out, nil
}

// skipSource filters hidden files, partials and anything inside a
// destination tree nested in the source tree.
func (b *Builder) skipSource(path string) bool {
	if fs.IsWithin(b.opts.DestRoot, path) || b.IsPartial(path) {
		return true
	}
	rel, err := filepath.Rel(b.opts.SourceRoot, path)
	if err != nil {
		return true
	}
	for _, seg := range strings.Split(filepath.ToSlash(rel), "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// Build builds every source file.
func (b *Builder) Build(ctx context.Context) (*Result, error) {
	sources, err := b.Sources()
	if err != nil {
		return nil, err
	}
	return b.BuildFiles(ctx, sources)
}

// BuildGlob builds the sources matching a doublestar pattern relative to the
// source root.
func (b *Builder) BuildGlob(ctx context.Context, pattern string) (*Result, error) {
	sources, err := b.glob(pattern)
	if err != nil {
		return nil, err
	}
	return b.BuildFiles(ctx, sources)
}

// BuildExt builds every source with the given extension. Watch mode uses it
// when a shared include partial changes.
func (b *Builder) BuildExt(ctx context.Context, ext string) (*Result, error) {
	return b.BuildGlob(ctx, "**/*."+taskmap.Normalize(ext))
}

// BuildFiles builds the given source files. Relative paths are taken
// relative to the source root.
func (b *Builder) BuildFiles(ctx context.Context, files []string) (*Result, error) {
	paths := make([]string, len(files))
	for i, f := range files {
		paths[i] = b.abs(f)
	}
	return b.run(ctx, "build", paths, func(ctx context.Context, pass *Pass, path string) job.Outcome {
		return b.runJob(ctx, pass, &job.Job{Source: path})
	})
}

// BuildJobs runs the build pipeline over caller-prepared jobs, for instance
// jobs carrying their content or naming an existing destination to
// reprocess.
func (b *Builder) BuildJobs(ctx context.Context, jobs []*job.Job) (*Result, error) {
	byKey := make(map[string]*job.Job, len(jobs))
	keys := make([]string, 0, len(jobs))
	for _, j := range jobs {
		key := jobKey(j)
		if _, dup := byKey[key]; dup {
			continue
		}
		byKey[key] = j
		keys = append(keys, key)
	}
	return b.run(ctx, "build", keys, func(ctx context.Context, pass *Pass, key string) job.Outcome {
		return b.runJob(ctx, pass, byKey[key])
	})
}

func jobKey(j *job.Job) string {
	if j.Source != "" {
		return j.Source
	}
	return j.Dest
}

func (b *Builder) abs(path string) string {
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(b.opts.SourceRoot, path)
}

type passFunc func(ctx context.Context, pass *Pass, path string) job.Outcome

// run executes one pass with a fresh Pass context.
func (b *Builder) run(ctx context.Context, name string, paths []string, fn passFunc) (*Result, error) {
	start := time.Now()
	pass := NewPass(name)

	outcomes, err := scheduler.Run(ctx, paths, b.opts.Concurrency, func(ctx context.Context, path string) job.Outcome {
		return fn(ctx, pass, path)
	}, b.log)

	pass.reportMissing(b.log)
	result := &Result{
		Pass:     name,
		Outcomes: outcomes,
		Duration: time.Since(start),
		Missing:  pass.Missing(),
	}
	b.metrics.Observe(name, outcomes, result.Duration)

	done, skipped, failed := result.Count()
	b.log.WithFields(logrus.Fields{
		"pass":    name,
		"done":    done,
		"skipped": skipped,
		"failed":  failed,
	}).Debug("pass finished")
	return result, err
}

// runJob is the per-file build pipeline.
func (b *Builder) runJob(ctx context.Context, pass *Pass, j *job.Job) job.Outcome {
	key := jobKey(j)
	if j.Source != "" && b.IsPartial(j.Source) {
		return job.SkippedOutcome(key)
	}

	ext := taskmap.Ext(key)
	steps, mapped := b.tasks.PipelineFor(ext)
	if !mapped {
		pass.RecordMissing(ext)
	}

	if err := b.stale.Resolve(ctx, pass, j, b.modeFor(ext, steps)); err != nil {
		return job.FailedWith(key, err)
	}
	if !j.Build {
		return job.SkippedOutcome(key)
	}

	j, err := b.steps.Apply(ctx, j, steps)
	if err != nil {
		return job.FailedWith(key, err)
	}

	if !j.Written {
		// Steps may rewrite the destination.
		if err := b.stale.CheckDest(filepath.Clean(j.Dest)); err != nil {
			return job.FailedWith(key, err)
		}
		if err := b.fs.MkdirAll(filepath.Dir(j.Dest), 0755); err != nil {
			return job.FailedWith(key, err)
		}
		if err := b.fs.WriteFile(j.Dest, j.Data, 0644); err != nil {
			return job.FailedWith(key, err)
		}
		j.Written = true
	}
	outputs := append([]string{j.Dest}, slices.DeleteFunc(slices.Clone(j.Outputs), func(p string) bool {
		return p == j.Dest
	})...)
	return job.DoneWith(key, outputs...)
}

// modeFor picks the staleness mode for a pipeline: include checking when the
// extension has an extractor, otherwise whatever the first step works on.
func (b *Builder) modeFor(ext string, steps []string) Mode {
	if _, ok := b.extractors[ext]; ok {
		return ModeWithIncludes
	}
	if len(steps) > 0 {
		if s, ok := b.steps.Get(steps[0]); ok && s.Mode == transform.OnDisk {
			return ModeOnDisk
		}
	}
	return ModeInMemory
}
