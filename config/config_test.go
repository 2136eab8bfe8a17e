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
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/kiln/build"
	"bennypowers.dev/kiln/internal/mapfs"
)

const siteConfig = `
source: /site/src
dest: /site/dist
concurrency: 3
gzip-level: 9
markdown:
  sanitize: true
debounce: 1s
map:
  tasks:
    css: [minify, gz]
    scss: [sass]
  dest:
    css: [less]
  ext:
    scss: css
steps:
  minify: cat
  sass: sassc --stdin
`

func loadYAML(t *testing.T, yaml string) *Config {
	t.Helper()
	v := viper.New()
	SetDefaults(v)
	v.SetConfigType("yaml")
	require.NoError(t, v.ReadConfig(strings.NewReader(yaml)))
	c, err := Load(v)
	require.NoError(t, err)
	return c
}

func TestDefaults(t *testing.T) {
	c := loadYAML(t, "")
	cwd, err := os.Getwd()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(cwd, "src"), c.Source)
	assert.Equal(t, filepath.Join(cwd, "dist"), c.Dest)
	assert.Equal(t, build.DefaultIncludePrefix, c.IncludePrefix)
	assert.Equal(t, 300*time.Millisecond, c.Debounce)
	assert.Equal(t, "info", c.LogLevel)
	assert.Equal(t, "text", c.LogFormat)
	assert.Positive(t, c.Concurrency)
	assert.False(t, c.Force)
}

func TestLoadYAML(t *testing.T) {
	c := loadYAML(t, siteConfig)

	assert.Equal(t, "/site/src", c.Source)
	assert.Equal(t, "/site/dist", c.Dest)
	assert.Equal(t, 3, c.Concurrency)
	assert.Equal(t, 9, c.GzipLevel)
	assert.True(t, c.Sanitize)
	assert.Equal(t, time.Second, c.Debounce)
	assert.Equal(t, []string{"minify", "gz"}, c.Tasks["css"])
	assert.Equal(t, "sassc --stdin", c.Steps["sass"])
}

func TestTaskMap(t *testing.T) {
	c := loadYAML(t, siteConfig)
	m, err := c.TaskMap()
	require.NoError(t, err)

	steps, ok := m.PipelineFor("css")
	assert.True(t, ok)
	assert.Equal(t, []string{"minify", "gz"}, steps)

	pipeline, _ := m.PipelineFor("md")
	assert.Equal(t, []string{"markdown"}, pipeline, "built-in mappings are kept")

	assert.Equal(t, "/site/dist/a.css", m.DestPath("/site/dist/a.scss"))
	assert.Contains(t, m.CandidateSources("/site/dist/a.css"), "/site/dist/a.scss")
	assert.Contains(t, m.CandidateSources("/site/dist/a.css"), "/site/dist/a.less")
}

func TestTaskMapConflict(t *testing.T) {
	c := loadYAML(t, "map:\n  ext:\n    md: txt\n")
	_, err := c.TaskMap()
	assert.ErrorContains(t, err, "md")
}

func TestBuildOptions(t *testing.T) {
	c := loadYAML(t, siteConfig)
	logger, _ := logtest.NewNullLogger()

	opts, err := c.BuildOptions(mapfs.New(), logger, nil)
	require.NoError(t, err)
	assert.Equal(t, 3, opts.Concurrency)
	assert.True(t, opts.Steps.Has("sass"))
	assert.True(t, opts.Steps.Has("minify"))
	assert.True(t, opts.Steps.Has("livereload"))

	_, err = build.New(mapfs.New(), opts)
	assert.NoError(t, err, "every mapped step is registered")
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"same roots", "source: /a\ndest: /a\n", "both"},
		{"gzip level", "gzip-level: 12\n", "gzip-level"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			v.SetConfigType("yaml")
			require.NoError(t, v.ReadConfig(strings.NewReader(tt.yaml)))
			_, err := Load(v)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNonPositiveConcurrency(t *testing.T) {
	c := loadYAML(t, "concurrency: 0\n")
	assert.Equal(t, 1, c.Concurrency)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("KILN_CONCURRENCY", "7")
	t.Setenv("KILN_INCLUDE_PREFIX", "inc-")
	t.Setenv("KILN_MARKDOWN_SANITIZE", "true")

	c := loadYAML(t, "concurrency: 2\n")
	assert.Equal(t, 7, c.Concurrency, "environment overrides the file")
	assert.Equal(t, "inc-", c.IncludePrefix)
	assert.True(t, c.Sanitize)
}

func TestLoadEnv(t *testing.T) {
	const key = "KILN_TEST_DOTENV_LEVEL"
	t.Cleanup(func() { os.Unsetenv(key) })

	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(path, []byte(key+"=debug\n"), 0644))

	require.NoError(t, LoadEnv(path))
	assert.Equal(t, "debug", os.Getenv(key))

	assert.NoError(t, LoadEnv(filepath.Join(dir, "missing.env")), "missing files are ignored")
}

func TestReadFile(t *testing.T) {
	dir := t.TempDir()

	v := viper.New()
	SetDefaults(v)
	require.NoError(t, ReadFile(v, "", dir), "no .kiln.yaml is fine")

	require.NoError(t, os.WriteFile(filepath.Join(dir, ".kiln.yaml"), []byte("dest: out\nforce: true\n"), 0644))
	v = viper.New()
	SetDefaults(v)
	require.NoError(t, ReadFile(v, "", dir))
	assert.True(t, v.GetBool("force"))
	assert.Equal(t, "out", v.GetString("dest"))

	v = viper.New()
	assert.Error(t, ReadFile(v, filepath.Join(dir, "nope.yaml"), ""))
}

func TestOpen(t *testing.T) {
	v := viper.New()
	SetDefaults(v)
	v.Set("source", "/site/src")
	v.Set("dest", "/site/dist")
	v.Set("log-level", "debug")

	env, err := Open(v, mapfs.New(), io.Discard, nil)
	require.NoError(t, err)
	assert.Equal(t, "/site/src", env.Builder.Options().SourceRoot)
	assert.Equal(t, "debug", env.Log.GetLevel().String())

	v.Set("log-format", "xml")
	_, err = Open(v, mapfs.New(), io.Discard, nil)
	assert.Error(t, err)
}
