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
// Package testutil loads kiln fixtures from testdata and compares trees
// against golden files.
package testutil

import (
	"flag"
	iofs "io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"bennypowers.dev/kiln/fs"
	"bennypowers.dev/kiln/internal/mapfs"
)

// updateGolden enables updating golden files with actual output when -update flag is set.
var updateGolden = flag.Bool("update", false, "update golden files with actual output")

// findTestdata resolves a path under testdata/ from any package directory.
func findTestdata(rel string) (string, bool) {
	for _, up := range []string{".", "..", filepath.Join("..", "..")} {
		p := filepath.Join(up, "testdata", rel)
		if _, err := os.Stat(p); err == nil {
			return p, true
		}
	}
	return "", false
}

func walkFixture(t *testing.T, fixtureDir string, fn func(rel string, content []byte)) {
	t.Helper()
	root, ok := findTestdata(fixtureDir)
	if !ok {
		t.Fatalf("Could not find fixtures at %s (tried all paths)", fixtureDir)
	}
	err := filepath.WalkDir(root, func(path string, d iofs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		fn(rel, content)
		return nil
	})
	if err != nil {
		t.Fatalf("Failed to load fixtures from %s: %v", fixtureDir, err)
	}
}

// NewFixtureFS loads testdata/<fixtureDir> into a MapFileSystem under
// rootPath. Every file gets the filesystem's current clock as its mtime.
func NewFixtureFS(t *testing.T, fixtureDir string, rootPath string) *mapfs.MapFileSystem {
	t.Helper()
	mfs := mapfs.New()
	walkFixture(t, fixtureDir, func(rel string, content []byte) {
		mfs.AddFile(filepath.Join(rootPath, rel), string(content), 0644)
	})
	return mfs
}

// CopyFixture copies testdata/<fixtureDir> into a fresh temporary directory
// and returns its path.
func CopyFixture(t *testing.T, fixtureDir string) string {
	t.Helper()
	dir := t.TempDir()
	walkFixture(t, fixtureDir, func(rel string, content []byte) {
		dest := filepath.Join(dir, rel)
		if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
			t.Fatalf("Failed to create %s: %v", filepath.Dir(dest), err)
		}
		if err := os.WriteFile(dest, content, 0644); err != nil {
			t.Fatalf("Failed to write %s: %v", dest, err)
		}
	})
	return dir
}

// Snapshot renders every file under root as a "== path" header followed by
// its content, sorted by path. Binary layers (.gz, .zst) are listed without
// content.
func Snapshot(t *testing.T, fsys fs.FileSystem, root string) string {
	t.Helper()
	paths, err := fsys.Glob(root, "**")
	if err != nil {
		t.Fatalf("Failed to list %s: %v", root, err)
	}
	slices.Sort(paths)

	var b strings.Builder
	for _, p := range paths {
		rel, err := filepath.Rel(root, p)
		if err != nil {
			t.Fatalf("Failed to relativize %s: %v", p, err)
		}
		b.WriteString("== " + filepath.ToSlash(rel) + "\n")
		switch filepath.Ext(p) {
		case ".gz", ".zst":
			continue
		}
		content, err := fsys.ReadFile(p)
		if err != nil {
			t.Fatalf("Failed to read %s: %v", p, err)
		}
		b.Write(content)
		if len(content) > 0 && content[len(content)-1] != '\n' {
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// LoadGoldenFile reads a golden file from testdata. If the -update flag is
// set, it returns nil so the caller can write actual output.
func LoadGoldenFile(t *testing.T, goldenPath string) []byte {
	t.Helper()
	if *updateGolden {
		return nil
	}
	p, ok := findTestdata(goldenPath)
	if !ok {
		t.Fatalf("Failed to find golden file %s (tried all paths)", goldenPath)
	}
	content, err := os.ReadFile(p)
	if err != nil {
		t.Fatalf("Failed to read golden file %s: %v", goldenPath, err)
	}
	return content
}

// UpdateGoldenFile writes actual output to the golden file when -update flag is set.
// No-ops when -update is not set. Creates parent directories as needed.
func UpdateGoldenFile(t *testing.T, goldenPath string, actual []byte) {
	t.Helper()
	if !*updateGolden {
		return
	}

	target, ok := findTestdata(filepath.Dir(goldenPath))
	if ok {
		target = filepath.Join(target, filepath.Base(goldenPath))
	} else {
		target = filepath.Join("testdata", goldenPath)
	}
	if err := os.MkdirAll(filepath.Dir(target), 0755); err != nil {
		t.Fatalf("Failed to create directory for golden file %s: %v", goldenPath, err)
	}
	if err := os.WriteFile(target, actual, 0644); err != nil {
		t.Fatalf("Failed to write golden file %s: %v", goldenPath, err)
	}
	t.Logf("Updated golden file: %s", target)
}
