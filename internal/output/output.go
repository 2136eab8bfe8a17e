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

// Package output renders pass results for the kiln commands.
package output

import (
	"bytes"
	"encoding/json"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"bennypowers.dev/kiln/build"
	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/job"
)

const (
	FormatText = "text"
	FormatJSON = "json"
)

type fileReport struct {
	Path    string   `json:"path"`
	Status  string   `json:"status"`
	Outputs []string `json:"outputs,omitempty"`
	Error   string   `json:"error,omitempty"`
}

type report struct {
	Pass     string       `json:"pass"`
	Done     int          `json:"done"`
	Skipped  int          `json:"skipped"`
	Failed   int          `json:"failed"`
	Duration string       `json:"duration"`
	Missing  []string     `json:"missingMappings,omitempty"`
	Files    []fileReport `json:"files"`
}

// Format renders r. Paths are shown relative to root when they are inside it.
// Text output lists every file that was not skipped, then a summary line.
func Format(r *build.Result, root, format string) (string, error) {
	done, skipped, failed := r.Count()
	rep := report{
		Pass:     r.Pass,
		Done:     done,
		Skipped:  skipped,
		Failed:   failed,
		Duration: r.Duration.Round(time.Millisecond).String(),
		Missing:  r.Missing,
		Files:    make([]fileReport, 0, len(r.Outcomes)),
	}
	for _, o := range r.Outcomes {
		f := fileReport{Path: rel(root, o.Path), Status: o.Status.String(), Outputs: o.Outputs}
		if o.Err != nil {
			f.Error = o.Err.Error()
		}
		rep.Files = append(rep.Files, f)
	}

	switch format {
	case FormatJSON:
		out, err := json.MarshalIndent(rep, "", "  ")
		if err != nil {
			return "", fmt.Errorf("error marshaling result: %w", err)
		}
		return string(out), nil
	case FormatText, "":
		var buf bytes.Buffer
		for _, f := range rep.Files {
			switch f.Status {
			case job.Failed.String():
				fmt.Fprintf(&buf, "%-7s %s: %s\n", f.Status, f.Path, f.Error)
			case job.Done.String():
				fmt.Fprintf(&buf, "%-7s %s\n", f.Status, f.Path)
			}
		}
		fmt.Fprintf(&buf, "%s: %d done, %d skipped, %d failed in %s", rep.Pass, rep.Done, rep.Skipped, rep.Failed, rep.Duration)
		return buf.String(), nil
	default:
		return "", fmt.Errorf("unknown format %q (want %s or %s)", format, FormatText, FormatJSON)
	}
}

// Result formats r and writes it to the file named by viper's "output" key,
// or to stdout when that is empty.
func Result(osfs fs.FileSystem, r *build.Result, root, format string) error {
	out, err := Format(r, root, format)
	if err != nil {
		return err
	}
	if outputPath := viper.GetString("output"); outputPath != "" {
		return osfs.WriteFile(outputPath, []byte(out+"\n"), 0644)
	}
	fmt.Println(out)
	return nil
}

func rel(root, path string) string {
	if root == "" || !fs.IsWithin(root, path) {
		return path
	}
	r, err := filepath.Rel(root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(r)
}
