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

package build_test

import (
	"context"
	"slices"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/kiln/build"
	"bennypowers.dev/kiln/internal/mapfs"
	"bennypowers.dev/kiln/internal/metrics"
	"bennypowers.dev/kiln/job"
	"bennypowers.dev/kiln/taskmap"
	"bennypowers.dev/kiln/transform"
)

func siteFS() *mapfs.MapFileSystem {
	mfs := mapfs.New()
	mfs.AddFile("/src/index.md", "# Welcome\n", 0644)
	mfs.AddFile("/src/css/site.css", "body{}", 0644)
	mfs.AddFile("/src/js/all.js.concat", "lib/*.js\n", 0644)
	mfs.AddFile("/src/js/lib/a.js", "a();", 0644)
	mfs.AddFile("/src/js/lib/b.js", "b();", 0644)
	mfs.AddFile("/src/_layout.html", "<main></main>", 0644)
	mfs.AddFile("/src/.git/HEAD", "ref", 0644)
	return mfs
}

func newBuilder(t *testing.T, mfs *mapfs.MapFileSystem, mutate func(*build.Options)) (*build.Builder, *logtest.Hook) {
	t.Helper()
	logger, hook := logtest.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)
	opts := build.Options{
		SourceRoot:  "/src",
		DestRoot:    "/out",
		Concurrency: 3,
		Log:         logger,
	}
	if mutate != nil {
		mutate(&opts)
	}
	b, err := build.New(mfs, opts)
	require.NoError(t, err)
	return b, hook
}

func statuses(outcomes []job.Outcome) map[string]job.Status {
	m := make(map[string]job.Status, len(outcomes))
	for _, o := range outcomes {
		m[o.Path] = o.Status
	}
	return m
}

func TestSources(t *testing.T) {
	b, _ := newBuilder(t, siteFS(), nil)
	sources, err := b.Sources()
	require.NoError(t, err)
	assert.Equal(t, []string{
		"/src/css/site.css",
		"/src/index.md",
		"/src/js/all.js.concat",
		"/src/js/lib/a.js",
		"/src/js/lib/b.js",
	}, sources)
}

func TestBuild(t *testing.T) {
	mfs := siteFS()
	b, _ := newBuilder(t, mfs, nil)

	result, err := b.Build(context.Background())
	require.NoError(t, err)

	done, skipped, failed := result.Count()
	assert.Equal(t, 5, done)
	assert.Equal(t, 0, skipped)
	assert.Equal(t, 0, failed)

	html, err := mfs.ReadFile("/out/index.html")
	require.NoError(t, err)
	assert.Contains(t, string(html), "<h1")

	all, err := mfs.ReadFile("/out/js/all.js")
	require.NoError(t, err)
	assert.Equal(t, "a();\nb();\n", string(all))

	css, err := mfs.ReadFile("/out/css/site.css")
	require.NoError(t, err)
	assert.Equal(t, "body{}", string(css))

	assert.False(t, mfs.Exists("/out/_layout.html"), "partials are not built on their own")
	assert.Equal(t, []string{"css", "js"}, result.Missing)
}

func TestBuildIsIncremental(t *testing.T) {
	mfs := siteFS()
	b, _ := newBuilder(t, mfs, nil)

	_, err := b.Build(context.Background())
	require.NoError(t, err)

	result, err := b.Build(context.Background())
	require.NoError(t, err)
	_, skipped, _ := result.Count()
	assert.Equal(t, 5, skipped, "nothing changed")

	require.NoError(t, mfs.SetModTime("/src/js/lib/b.js", mfs.Now().Add(time.Hour)))
	mfs.Tick(2 * time.Hour)

	result, err = b.Build(context.Background())
	require.NoError(t, err)
	got := statuses(result.Outcomes)
	assert.Equal(t, job.Done, got["/src/js/all.js.concat"], "concat output depends on b.js")
	assert.Equal(t, job.Done, got["/src/js/lib/b.js"])
	assert.Equal(t, job.Skipped, got["/src/js/lib/a.js"])
	assert.Equal(t, job.Skipped, got["/src/index.md"])
}

func TestBuildFailsTogether(t *testing.T) {
	mfs := siteFS()
	mfs.AddFile("/src/broken.css.concat", "nothing/*.css\n", 0644)
	b, hook := newBuilder(t, mfs, nil)

	result, err := b.Build(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, transform.ErrTransform)

	done, _, failed := result.Count()
	assert.Equal(t, 5, done, "other files are still built")
	assert.Equal(t, 1, failed)

	var logged bool
	for _, e := range hook.AllEntries() {
		if e.Level == logrus.ErrorLevel && e.Data["file"] == "/src/broken.css.concat" {
			logged = true
		}
	}
	assert.True(t, logged, "failure is logged with its path")
}

func TestBuildFilesAndGlob(t *testing.T) {
	mfs := siteFS()
	b, _ := newBuilder(t, mfs, nil)

	result, err := b.BuildFiles(context.Background(), []string{"index.md"})
	require.NoError(t, err)
	assert.Len(t, result.Outcomes, 1)
	assert.True(t, mfs.Exists("/out/index.html"))
	assert.False(t, mfs.Exists("/out/css/site.css"))

	result, err = b.BuildGlob(context.Background(), "js/**")
	require.NoError(t, err)
	assert.Len(t, result.Outcomes, 3)

	result, err = b.BuildExt(context.Background(), "css")
	require.NoError(t, err)
	assert.Equal(t, "/src/css/site.css", result.Outcomes[0].Path)
}

func TestBuildJobs(t *testing.T) {
	mfs := mapfs.New()
	b, _ := newBuilder(t, mfs, nil)

	result, err := b.BuildJobs(context.Background(), []*job.Job{
		{Source: "/src/generated.md", Data: []byte("*hi*")},
	})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, job.Done, result.Outcomes[0].Status)

	out, err := mfs.ReadFile("/out/generated.html")
	require.NoError(t, err)
	assert.Contains(t, string(out), "<em>hi</em>")
}

func TestBuildJobsRejectsSourceTreeDest(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/src/index.html", "ORIGINAL", 0644)
	b, _ := newBuilder(t, mfs, nil)

	result, err := b.BuildJobs(context.Background(), []*job.Job{
		{Dest: "/src/index.html", Data: []byte("CLOBBERED")},
		{Dest: "/out/../src/index.html", Data: []byte("CLOBBERED")},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, build.ErrDestInSourceTree)

	_, _, failed := result.Count()
	assert.Equal(t, 2, failed)

	data, err := mfs.ReadFile("/src/index.html")
	require.NoError(t, err)
	assert.Equal(t, "ORIGINAL", string(data), "source file must be left untouched")
}

func TestBuildPartialIsSkipped(t *testing.T) {
	b, _ := newBuilder(t, siteFS(), nil)
	result, err := b.BuildFiles(context.Background(), []string{"/src/_layout.html"})
	require.NoError(t, err)
	assert.Equal(t, job.Skipped, result.Outcomes[0].Status)
}

func TestBuildLayers(t *testing.T) {
	mfs := siteFS()
	tasks := taskmap.Default()
	tasks.AddMapping("css", "copy", "gz")

	b, _ := newBuilder(t, mfs, func(o *build.Options) { o.Tasks = tasks })
	result, err := b.BuildFiles(context.Background(), []string{"css/site.css"})
	require.NoError(t, err)

	assert.Equal(t, []string{"/out/css/site.css", "/out/css/site.css.gz"}, result.Outcomes[0].Outputs)
	assert.True(t, mfs.Exists("/out/css/site.css.gz"))
}

func TestBuildRecordsMetrics(t *testing.T) {
	rec := metrics.New()
	b, _ := newBuilder(t, siteFS(), func(o *build.Options) { o.Metrics = rec })

	_, err := b.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, float64(5), promtest.ToFloat64(rec.Files("build", job.Done)))
}

func TestBuildMissingMappingLoggedOnce(t *testing.T) {
	b, hook := newBuilder(t, siteFS(), nil)
	_, err := b.Build(context.Background())
	require.NoError(t, err)

	var notices []string
	for _, e := range hook.AllEntries() {
		if exts, ok := e.Data["extensions"]; ok {
			notices = append(notices, exts.(string))
		}
	}
	assert.Equal(t, []string{"css,js"}, notices)
}

func TestNewValidation(t *testing.T) {
	mfs := mapfs.New()

	_, err := build.New(mfs, build.Options{SourceRoot: "/site", DestRoot: "/site"})
	assert.ErrorIs(t, err, build.ErrDestInSourceTree)

	_, err = build.New(mfs, build.Options{SourceRoot: "/site"})
	assert.Error(t, err)

	tasks := taskmap.New()
	tasks.AddMapping("scss", "sass")
	_, err = build.New(mfs, build.Options{SourceRoot: "/src", DestRoot: "/out", Tasks: tasks})
	assert.ErrorContains(t, err, "sass")

	steps := transform.NewRegistry()
	_, err = build.New(mfs, build.Options{SourceRoot: "/src", DestRoot: "/out", Steps: steps})
	assert.Error(t, err, "copy must be registered")
}

func TestIsPartial(t *testing.T) {
	b, _ := newBuilder(t, mapfs.New(), func(o *build.Options) { o.IncludePrefix = "inc-" })
	assert.True(t, b.IsPartial("/src/inc-header.html"))
	assert.False(t, b.IsPartial("/src/_header.html"))
	assert.True(t, slices.Contains(b.Tasks().Extensions(), "md"))
	assert.True(t, b.HasExtractor(".CSS"))
}
