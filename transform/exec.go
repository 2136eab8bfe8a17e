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
	"os"
	"os/exec"
	"strings"

	"github.com/sirupsen/logrus"

	"bennypowers.dev/kiln/job"
)

// Exec pipes the job's data through a shell command and replaces it with
// the command's stdout. KILN_SOURCE and KILN_DEST are set in its environment.
func Exec(command string, log logrus.FieldLogger) Func {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return func(ctx context.Context, j *job.Job) (*job.Job, error) {
		cmd := exec.CommandContext(ctx, "sh", "-c", command)
		cmd.Stdin = bytes.NewReader(j.Data)
		cmd.Env = append(os.Environ(), "KILN_SOURCE="+j.Source, "KILN_DEST="+j.Dest)

		var stdout, stderr bytes.Buffer
		cmd.Stdout = &stdout
		cmd.Stderr = &stderr

		if err := cmd.Run(); err != nil {
			msg := strings.TrimSpace(stderr.String())
			if msg == "" {
				return nil, fmt.Errorf("%q: %w", command, err)
			}
			return nil, fmt.Errorf("%q: %w: %s", command, err, msg)
		}
		if stderr.Len() > 0 {
			log.WithField("file", j.Source).Debug(strings.TrimSpace(stderr.String()))
		}
		j.Data = stdout.Bytes()
		return j, nil
	}
}
