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

// Package config reads kiln settings from flags, KILN_* environment
// variables, a .env file and an optional .kiln.yaml, all through viper.
package config

import (
	"errors"
	"fmt"
	iofs "io/fs"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"bennypowers.dev/kiln/build"
	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/internal/metrics"
	"bennypowers.dev/kiln/taskmap"
	"bennypowers.dev/kiln/transform"
)

// EnvPrefix prefixes every environment variable kiln reads.
const EnvPrefix = "KILN"

// Config is the resolved configuration.
type Config struct {
	Source        string
	Dest          string
	Concurrency   int
	Force         bool
	IncludePrefix string

	// Tasks appends steps to source extensions (ext -> steps).
	Tasks map[string][]string
	// DestMap appends candidate source extensions (destExt -> exts).
	DestMap map[string][]string
	// ExtMap sets destination extensions (srcExt -> destExt).
	ExtMap map[string]string
	// Steps defines shell command steps (name -> command).
	Steps map[string]string

	GzipLevel  int
	Sanitize   bool
	LiveReload string
	Debounce   time.Duration
	LogLevel   string
	LogFormat  string
}

// SetDefaults registers the default of every key and wires KILN_* variables.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("source", "src")
	v.SetDefault("dest", "dist")
	v.SetDefault("concurrency", runtime.NumCPU())
	v.SetDefault("force", false)
	v.SetDefault("include-prefix", build.DefaultIncludePrefix)
	v.SetDefault("gzip-level", 0)
	v.SetDefault("markdown.sanitize", false)
	v.SetDefault("livereload", "localhost:35729")
	v.SetDefault("debounce", "300ms")
	v.SetDefault("log-level", "info")
	v.SetDefault("log-format", "text")

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	v.AutomaticEnv()
}

// LoadEnv loads variables from the given .env files (".env" when none are
// named). Missing files are ignored; variables already set are kept.
func LoadEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, iofs.ErrNotExist) {
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}

// ReadFile reads path into v, or looks for .kiln.yaml in dir when path is
// empty. A missing default file is not an error.
func ReadFile(v *viper.Viper, path, dir string) error {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return fmt.Errorf("reading config %s: %w", path, err)
		}
		return nil
	}
	v.SetConfigName(".kiln")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("reading config: %w", err)
	}
	return nil
}

// Load resolves v into a Config. Source and Dest are made absolute.
func Load(v *viper.Viper) (*Config, error) {
	c := &Config{
		Concurrency:   v.GetInt("concurrency"),
		Force:         v.GetBool("force"),
		IncludePrefix: v.GetString("include-prefix"),
		Tasks:         v.GetStringMapStringSlice("map.tasks"),
		DestMap:       v.GetStringMapStringSlice("map.dest"),
		ExtMap:        v.GetStringMapString("map.ext"),
		Steps:         v.GetStringMapString("steps"),
		GzipLevel:     v.GetInt("gzip-level"),
		Sanitize:      v.GetBool("markdown.sanitize"),
		LiveReload:    v.GetString("livereload"),
		Debounce:      v.GetDuration("debounce"),
		LogLevel:      v.GetString("log-level"),
		LogFormat:     v.GetString("log-format"),
	}

	var err error
	if c.Source, err = filepath.Abs(v.GetString("source")); err != nil {
		return nil, fmt.Errorf("invalid source directory: %w", err)
	}
	if c.Dest, err = filepath.Abs(v.GetString("dest")); err != nil {
		return nil, fmt.Errorf("invalid destination directory: %w", err)
	}
	if c.Source == c.Dest {
		return nil, fmt.Errorf("source and destination are both %s", c.Source)
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 1
	}
	if c.GzipLevel < -2 || c.GzipLevel > 9 {
		return nil, fmt.Errorf("gzip-level %d out of range (-2..9)", c.GzipLevel)
	}
	return c, nil
}

// TaskMap returns the default mapping extended with the configured entries.
// A configured destination extension also registers the source extension as
// a candidate for it, so clean can trace outputs back. Overriding a built-in
// destination extension is an error.
func (c *Config) TaskMap() (*taskmap.Map, error) {
	m := taskmap.Default()
	for ext, steps := range c.Tasks {
		m.AddMapping(ext, steps...)
	}
	for destExt, exts := range c.DestMap {
		m.AddDestMapping(destExt, exts...)
	}
	for src, dest := range c.ExtMap {
		if !m.AddDestExt(src, dest) {
			return nil, fmt.Errorf("map.ext: %q already maps to %q", src, m.DestExt(src))
		}
		if dest != "" {
			m.AddDestMapping(dest, src)
		}
	}
	return m, nil
}

// BuildOptions assembles the builder options. The task map is validated
// against the step registry when the builder is created.
func (c *Config) BuildOptions(fsys fs.FileSystem, log logrus.FieldLogger, rec *metrics.Recorder) (build.Options, error) {
	steps, err := transform.Builtins(fsys, transform.Options{
		SourceRoot: c.Source,
		GzipLevel:  c.GzipLevel,
		Sanitize:   c.Sanitize,
		Commands:   c.Steps,
		LiveReload: c.LiveReload,
		Log:        log,
	})
	if err != nil {
		return build.Options{}, err
	}
	tasks, err := c.TaskMap()
	if err != nil {
		return build.Options{}, err
	}
	return build.Options{
		SourceRoot:    c.Source,
		DestRoot:      c.Dest,
		Concurrency:   c.Concurrency,
		Force:         c.Force,
		IncludePrefix: c.IncludePrefix,
		Tasks:         tasks,
		Steps:         steps,
		Log:           log,
		Metrics:       rec,
	}, nil
}
