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

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"

	"bennypowers.dev/kiln/job"
)

// Markdown renders CommonMark with GitHub extensions to HTML. Raw HTML in the
// source is passed through unless sanitize is set, in which case the output
// is filtered with a user-generated-content policy.
func Markdown(sanitize bool) Func {
	md := goldmark.New(
		goldmark.WithExtensions(extension.GFM),
		goldmark.WithParserOptions(parser.WithAutoHeadingID()),
		goldmark.WithRendererOptions(html.WithUnsafe()),
	)
	var policy *bluemonday.Policy
	if sanitize {
		policy = bluemonday.UGCPolicy()
	}

	return func(_ context.Context, j *job.Job) (*job.Job, error) {
		var buf bytes.Buffer
		if err := md.Convert(j.Data, &buf); err != nil {
			return nil, err
		}
		out := buf.Bytes()
		if policy != nil {
			out = policy.SanitizeBytes(out)
		}
		j.Data = out
		return j, nil
	}
}
