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

package transform

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/sirupsen/logrus"

	"bennypowers.dev/kiln/extract"
	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/job"
	"bennypowers.dev/kiln/livereload"
)

// Options configures the built-in steps.
type Options struct {
	// SourceRoot anchors "/"-rooted references in concat lists and SSI
	// directives.
	SourceRoot string
	// GzipLevel is the gzip compression level; 0 selects the default.
	GzipLevel int
	// Sanitize runs rendered markdown through an HTML sanitizer.
	Sanitize bool
	// Commands are extra steps that pipe job data through a shell command,
	// keyed by step name.
	Commands map[string]string
	// LiveReload is the LiveReload server address. When set, a "livereload"
	// step injects the client snippet into HTML.
	LiveReload string
	Log        logrus.FieldLogger
}

// Builtins returns a registry holding copy, concat, markdown, ssi, gz, zst,
// livereload when an address is configured, and one step per configured
// command.
func Builtins(fsys fs.FileSystem, opts Options) (*Registry, error) {
	if opts.Log == nil {
		opts.Log = logrus.StandardLogger()
	}
	r := NewRegistry()

	steps := []Step{
		{Name: "copy", Mode: OnDisk, Run: Copy(fsys)},
		{Name: "concat", Mode: InMemory, Run: Concat(fsys, opts.SourceRoot)},
		{Name: "markdown", Mode: InMemory, Run: Markdown(opts.Sanitize)},
		{Name: "ssi", Mode: InMemory, Run: SSI(fsys, opts.SourceRoot)},
		{Name: "gz", Mode: InMemory, Run: Gzip(fsys, opts.GzipLevel)},
		{Name: "zst", Mode: InMemory, Run: Zstd(fsys)},
	}
	if opts.LiveReload != "" {
		snippet, err := livereload.Snippet(opts.LiveReload)
		if err != nil {
			return nil, err
		}
		steps = append(steps, Step{Name: "livereload", Mode: InMemory, Run: InjectReload(snippet)})
	}
	names := make([]string, 0, len(opts.Commands))
	for name := range opts.Commands {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		steps = append(steps, Step{Name: name, Mode: InMemory, Run: Exec(opts.Commands[name], opts.Log)})
	}

	for _, s := range steps {
		if err := r.Register(s); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Copy writes the source file to the destination unchanged. When the job
// has no source it persists whatever data it carries.
func Copy(fsys fs.FileSystem) Func {
	return func(_ context.Context, j *job.Job) (*job.Job, error) {
		data := j.Data
		if j.Source != "" && len(data) == 0 {
			var err error
			data, err = fsys.ReadFile(j.Source)
			if err != nil {
				return nil, err
			}
		}
		if err := writeDest(fsys, j.Dest, data); err != nil {
			return nil, err
		}
		j.Data = data
		j.Written = true
		j.AddOutput(j.Dest)
		return j, nil
	}
}

// Concat replaces a list of file patterns with the joined contents of the
// files they match. Patterns are relative to the list file, or to the source
// root when they start with "/". Each file's content ends with a newline.
func Concat(fsys fs.FileSystem, sourceRoot string) Func {
	return func(ctx context.Context, j *job.Job) (*job.Job, error) {
		patterns, err := extract.Concat(j.Data, j.Source)
		if err != nil {
			return nil, err
		}

		var out strings.Builder
		seen := make(map[string]struct{})
		for _, pattern := range patterns {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			matches, err := expandPattern(fsys, sourceRoot, filepath.Dir(j.Source), pattern)
			if err != nil {
				return nil, err
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("concat: %q matches no files", pattern)
			}
			for _, m := range matches {
				if _, dup := seen[m]; dup {
					continue
				}
				seen[m] = struct{}{}
				content, err := fsys.ReadFile(m)
				if err != nil {
					return nil, err
				}
				out.Write(content)
				if len(content) > 0 && content[len(content)-1] != '\n' {
					out.WriteByte('\n')
				}
			}
		}
		j.Data = []byte(out.String())
		return j, nil
	}
}

// resolveRef maps a reference to an absolute path.
func resolveRef(sourceRoot, dir, ref string) string {
	native := filepath.FromSlash(ref)
	switch {
	case filepath.IsAbs(native) && fs.IsWithin(sourceRoot, native):
		return filepath.Clean(native)
	case strings.HasPrefix(ref, "/"):
		return filepath.Join(sourceRoot, native)
	default:
		return filepath.Join(dir, native)
	}
}

func expandPattern(fsys fs.FileSystem, sourceRoot, dir, ref string) ([]string, error) {
	abs := resolveRef(sourceRoot, dir, ref)
	if !strings.ContainsAny(ref, "*?[{") {
		if _, err := fsys.Stat(abs); err != nil {
			return nil, nil
		}
		return []string{abs}, nil
	}
	base, pattern := doublestar.SplitPattern(filepath.ToSlash(abs))
	matches, err := fsys.Glob(filepath.FromSlash(base), pattern)
	if err != nil {
		return nil, fmt.Errorf("concat: bad pattern %q: %w", ref, err)
	}
	slices.Sort(matches)
	return matches, nil
}

func writeDest(fsys fs.FileSystem, dest string, data []byte) error {
	if dest == "" {
		return fmt.Errorf("no destination")
	}
	if err := fsys.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}
	return fsys.WriteFile(dest, data, 0644)
}

// currentData returns the job's content, reading it back from the
// destination when an earlier on-disk step already wrote it.
func currentData(fsys fs.FileSystem, j *job.Job) ([]byte, error) {
	if len(j.Data) > 0 || !j.Written {
		return j.Data, nil
	}
	return fsys.ReadFile(j.Dest)
}
