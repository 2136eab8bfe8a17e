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
	"errors"
	iofs "io/fs"
	"path/filepath"

	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/job"
)

// Clean removes every destination file that no candidate source can produce.
// It refuses to run when the destination root is the source root or lies
// inside it.
func (b *Builder) Clean(ctx context.Context) (*Result, error) {
	if fs.IsWithin(b.opts.SourceRoot, b.opts.DestRoot) {
		return nil, fileError(ErrDestInSourceTree, b.opts.DestRoot)
	}
	if !b.fs.Exists(b.opts.DestRoot) {
		return &Result{Pass: "clean"}, nil
	}
	dests, err := b.fs.Glob(b.opts.DestRoot, "**")
	if err != nil {
		return nil, err
	}
	return b.run(ctx, "clean", dests, b.cleanOne)
}

// cleanOne removes dest unless one of its candidate sources exists.
func (b *Builder) cleanOne(_ context.Context, _ *Pass, dest string) job.Outcome {
	rel, err := filepath.Rel(b.opts.DestRoot, dest)
	if err != nil || !fs.IsWithin(b.opts.DestRoot, dest) {
		return job.FailedWith(dest, fileError(ErrDestInSourceTree, dest))
	}
	for _, candidate := range b.tasks.CandidateSources(filepath.Join(b.opts.SourceRoot, rel)) {
		if info, err := b.fs.Stat(candidate); err == nil && !info.IsDir() {
			return job.SkippedOutcome(dest)
		}
	}
	if err := b.fs.Remove(dest); err != nil {
		return job.FailedWith(dest, err)
	}
	b.log.WithField("file", dest).Debug("removed orphaned output")
	return job.DoneWith(dest, dest)
}

// CleanFiles removes the outputs derived from the given source files: the
// destination itself and every layered sibling (dest.gz, dest.map, ...).
// Watch mode calls it when sources are deleted.
func (b *Builder) CleanFiles(ctx context.Context, sources []string) (*Result, error) {
	paths := make([]string, len(sources))
	for i, s := range sources {
		paths[i] = b.abs(s)
	}
	return b.run(ctx, "clean", paths, b.removeDerived)
}

func (b *Builder) removeDerived(_ context.Context, _ *Pass, source string) job.Outcome {
	dest, err := b.stale.DestFor(source)
	if err != nil {
		return job.FailedWith(source, err)
	}
	if fs.IsWithin(b.opts.SourceRoot, dest) && !fs.IsWithin(b.opts.DestRoot, dest) {
		return job.FailedWith(source, fileError(ErrDestInSourceTree, dest))
	}

	var removed []string
	targets := []string{dest}
	for _, layer := range b.tasks.LayerExts() {
		targets = append(targets, dest+"."+layer)
	}
	for _, t := range targets {
		err := b.fs.Remove(t)
		switch {
		case err == nil:
			removed = append(removed, t)
		case errors.Is(err, iofs.ErrNotExist):
		default:
			return job.FailedWith(source, err)
		}
	}
	if len(removed) == 0 {
		return job.SkippedOutcome(source)
	}
	return job.DoneWith(source, removed...)
}
