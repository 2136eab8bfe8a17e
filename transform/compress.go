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

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/job"
)

// Gzip writes a gzip-compressed sibling of the destination (dest + ".gz").
// The job's own data is left untouched.
func Gzip(fsys fs.FileSystem, level int) Func {
	if level == 0 {
		level = gzip.DefaultCompression
	}
	return func(_ context.Context, j *job.Job) (*job.Job, error) {
		data, err := currentData(fsys, j)
		if err != nil {
			return nil, err
		}
		var buf bytes.Buffer
		zw, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, err
		}
		if _, err := zw.Write(data); err != nil {
			return nil, err
		}
		if err := zw.Close(); err != nil {
			return nil, err
		}
		return writeLayer(fsys, j, ".gz", buf.Bytes())
	}
}

// Zstd writes a zstandard-compressed sibling of the destination
// (dest + ".zst").
func Zstd(fsys fs.FileSystem) Func {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return func(_ context.Context, j *job.Job) (*job.Job, error) {
		if err != nil {
			return nil, err
		}
		data, rerr := currentData(fsys, j)
		if rerr != nil {
			return nil, rerr
		}
		return writeLayer(fsys, j, ".zst", enc.EncodeAll(data, nil))
	}
}

func writeLayer(fsys fs.FileSystem, j *job.Job, suffix string, data []byte) (*job.Job, error) {
	path := j.Dest + suffix
	if err := writeDest(fsys, path, data); err != nil {
		return nil, err
	}
	j.AddOutput(path)
	return j, nil
}
