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
	"io"

	"golang.org/x/net/html"

	"bennypowers.dev/kiln/job"
	"bennypowers.dev/kiln/livereload"
)

// InjectReload inserts snippet before the closing body tag of an HTML
// document, or appends it when there is none. Documents that already load
// the LiveReload client are left unchanged.
func InjectReload(snippet string) Func {
	return func(_ context.Context, j *job.Job) (*job.Job, error) {
		if bytes.Contains(j.Data, []byte(livereload.ClientPath)) {
			return j, nil
		}
		at, err := bodyEnd(j.Data)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, len(j.Data)+len(snippet)+1)
		out = append(out, j.Data[:at]...)
		out = append(out, snippet...)
		if at < len(j.Data) {
			out = append(out, '\n')
		}
		out = append(out, j.Data[at:]...)
		j.Data = out
		return j, nil
	}
}

// bodyEnd returns the offset of the last </body> tag, or len(content).
func bodyEnd(content []byte) (int, error) {
	z := html.NewTokenizer(bytes.NewReader(content))
	offset, at := 0, len(content)
	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			if err := z.Err(); err != io.EOF {
				return 0, err
			}
			return at, nil
		}
		raw := len(z.Raw())
		if tt == html.EndTagToken {
			if name, _ := z.TagName(); string(name) == "body" {
				at = offset
			}
		}
		offset += raw
	}
}
