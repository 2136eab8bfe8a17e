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
	"bytes"
	"context"
	"fmt"
	"io"
	"path/filepath"

	"golang.org/x/net/html"

	"bennypowers.dev/kiln/extract"
	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/job"
)

// maxSSIDepth bounds nested include expansion.
const maxSSIDepth = 16

// SSI expands <!--#include file="..." --> and <!--#include virtual="..." -->
// directives in HTML, recursively. Everything else is copied byte for byte.
func SSI(fsys fs.FileSystem, sourceRoot string) Func {
	return func(ctx context.Context, j *job.Job) (*job.Job, error) {
		var buf bytes.Buffer
		stack := []string{filepath.Clean(j.Source)}
		if err := inline(ctx, fsys, sourceRoot, j.Data, j.Source, stack, &buf); err != nil {
			return nil, err
		}
		j.Data = buf.Bytes()
		return j, nil
	}
}

func inline(ctx context.Context, fsys fs.FileSystem, sourceRoot string, content []byte, from string, stack []string, out *bytes.Buffer) error {
	if len(stack) > maxSSIDepth {
		return fmt.Errorf("ssi: includes nested deeper than %d at %s", maxSSIDepth, from)
	}
	z := html.NewTokenizer(bytes.NewReader(content))
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return err
			}
			return nil
		}
		raw := z.Raw()
		if tt != html.CommentToken {
			out.Write(raw)
			continue
		}
		ref, ok := extract.ParseSSI(string(z.Token().Data))
		if !ok {
			out.Write(raw)
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		target := resolveRef(sourceRoot, filepath.Dir(from), ref)
		for _, p := range stack {
			if p == target {
				return fmt.Errorf("ssi: include cycle through %s", target)
			}
		}
		included, err := fsys.ReadFile(target)
		if err != nil {
			return fmt.Errorf("ssi: %s includes missing %s", from, ref)
		}
		if err := inline(ctx, fsys, sourceRoot, included, target, append(stack, target), out); err != nil {
			return err
		}
	}
}
