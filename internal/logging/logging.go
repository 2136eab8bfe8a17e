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

// Package logging builds the logrus logger shared by every kiln command.
package logging

import (
	"fmt"
	"io"
	stdlib "log"
	"strings"

	"github.com/sirupsen/logrus"
)

// Formats accepted by New.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New returns a logger writing to out at the given level ("debug", "info",
// "warn", ...) and format. Messages from the standard library log package
// are routed through it as well.
func New(level, format string, out io.Writer) (*logrus.Logger, error) {
	log := logrus.New()
	log.Out = out

	lvl, err := logrus.ParseLevel(strings.TrimSpace(level))
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	log.Level = lvl

	switch strings.ToLower(format) {
	case "", FormatText:
		log.Formatter = &logrus.TextFormatter{DisableTimestamp: true}
	case FormatJSON:
		log.Formatter = &logrus.JSONFormatter{}
	default:
		return nil, fmt.Errorf("invalid log format %q (want %s or %s)", format, FormatText, FormatJSON)
	}

	stdlib.SetFlags(0)
	stdlib.SetOutput(log.WriterLevel(logrus.InfoLevel))
	return log, nil
}
