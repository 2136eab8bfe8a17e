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

package config

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"bennypowers.dev/kiln/build"
	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/internal/logging"
	"bennypowers.dev/kiln/internal/metrics"
)

// Env is what a command needs to run a build: the resolved configuration,
// its logger and a builder over the chosen filesystem.
type Env struct {
	Config  *Config
	Log     *logrus.Logger
	Builder *build.Builder
}

// Open resolves v and creates the logger, writing to logOut, and the builder.
// rec may be nil.
func Open(v *viper.Viper, fsys fs.FileSystem, logOut io.Writer, rec *metrics.Recorder) (*Env, error) {
	c, err := Load(v)
	if err != nil {
		return nil, err
	}
	log, err := logging.New(c.LogLevel, c.LogFormat, logOut)
	if err != nil {
		return nil, err
	}
	opts, err := c.BuildOptions(fsys, log, rec)
	if err != nil {
		return nil, err
	}
	b, err := build.New(fsys, opts)
	if err != nil {
		return nil, err
	}
	return &Env{Config: c, Log: log, Builder: b}, nil
}
