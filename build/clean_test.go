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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bennypowers.dev/kiln/build"
	"bennypowers.dev/kiln/internal/mapfs"
	"bennypowers.dev/kiln/job"
)

func TestCleanRemovesOrphans(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/src/index.md", "# hi", 0644)
	mfs.AddFile("/src/app.js", "run()", 0644)
	mfs.AddFile("/src/all.css.concat", "a.css", 0644)
	mfs.AddFile("/src/logo.png", "png", 0644)

	kept := []string{
		"/out/index.html",    // from index.md
		"/out/app.js",        // same name
		"/out/app.js.map",    // wildcard layer over app.js
		"/out/app.js.map.gz", // stacked layers
		"/out/all.css",       // from all.css.concat
		"/out/logo.png.zst",  // compressed copy
	}
	removed := []string{
		"/out/about.html",
		"/out/old.css.gz",
		"/out/sub/gone.js",
	}
	for _, p := range append(append([]string{}, kept...), removed...) {
		mfs.AddFile(p, "x", 0644)
	}

	b, _ := newBuilder(t, mfs, nil)
	result, err := b.Clean(context.Background())
	require.NoError(t, err)

	got := statuses(result.Outcomes)
	for _, p := range kept {
		assert.True(t, mfs.Exists(p), "expected %s to be kept", p)
		assert.Equal(t, job.Skipped, got[p], p)
	}
	for _, p := range removed {
		assert.False(t, mfs.Exists(p), "expected %s to be removed", p)
		assert.Equal(t, job.Done, got[p], p)
	}
	assert.Equal(t, "clean", result.Pass)
}

func TestCleanRefusesDestInsideSource(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/site/index.html", "<p>", 0644)
	mfs.AddFile("/site/_out/index.html", "<p>", 0644)

	b, _ := newBuilder(t, mfs, func(o *build.Options) {
		o.SourceRoot = "/site"
		o.DestRoot = "/site/_out"
	})
	_, err := b.Clean(context.Background())
	assert.ErrorIs(t, err, build.ErrDestInSourceTree)
	assert.True(t, mfs.Exists("/site/index.html"))
}

func TestCleanMissingDestRoot(t *testing.T) {
	b, _ := newBuilder(t, mapfs.New(), nil)
	result, err := b.Clean(context.Background())
	require.NoError(t, err)
	assert.Empty(t, result.Outcomes)
}

func TestCleanFiles(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/out/css/site.css", "body{}", 0644)
	mfs.AddFile("/out/css/site.css.gz", "gz", 0644)
	mfs.AddFile("/out/css/site.css.map", "{}", 0644)
	mfs.AddFile("/out/css/other.css", "a{}", 0644)

	b, _ := newBuilder(t, mfs, nil)
	result, err := b.CleanFiles(context.Background(), []string{"/src/css/site.css"})
	require.NoError(t, err)

	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, job.Done, result.Outcomes[0].Status)
	assert.Equal(t, []string{"/out/css/site.css", "/out/css/site.css.gz", "/out/css/site.css.map"}, result.Outcomes[0].Outputs)
	assert.True(t, mfs.Exists("/out/css/other.css"))

	result, err = b.CleanFiles(context.Background(), []string{"css/site.css"})
	require.NoError(t, err)
	assert.Equal(t, job.Skipped, result.Outcomes[0].Status)
}

func TestCleanFilesUsesDestExtension(t *testing.T) {
	mfs := mapfs.New()
	mfs.AddFile("/out/docs/intro.html", "<h1>", 0644)

	b, _ := newBuilder(t, mfs, nil)
	_, err := b.CleanFiles(context.Background(), []string{"docs/intro.md"})
	require.NoError(t, err)
	assert.False(t, mfs.Exists("/out/docs/intro.html"))
}
