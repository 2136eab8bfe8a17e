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

package mapfs

import (
	"errors"
	"io/fs"
	"slices"
	"testing"
	"time"
)

func TestWriteFileStampsClock(t *testing.T) {
	mfs := New()
	start := mfs.Now()

	if err := mfs.WriteFile("/out/a.txt", []byte("a"), 0644); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	later := mfs.Tick(time.Minute)
	if err := mfs.WriteFile("/out/b.txt", []byte("b"), 0644); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	a, err := mfs.Stat("/out/a.txt")
	if err != nil {
		t.Fatal(err)
	}
	b, err := mfs.Stat("/out/b.txt")
	if err != nil {
		t.Fatal(err)
	}
	if !a.ModTime().Equal(start) {
		t.Errorf("Expected %v, got %v", start, a.ModTime())
	}
	if !b.ModTime().Equal(later) {
		t.Errorf("Expected %v, got %v", later, b.ModTime())
	}
}

func TestSetModTime(t *testing.T) {
	mfs := New()
	mfs.AddFile("/src/a.css", "a{}", 0644)
	when := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := mfs.SetModTime("/src/a.css", when); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	info, err := mfs.Stat("/src/a.css")
	if err != nil {
		t.Fatal(err)
	}
	if !info.ModTime().Equal(when) {
		t.Errorf("Expected %v, got %v", when, info.ModTime())
	}

	if err := mfs.SetModTime("/src/missing.css", when); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
}

func TestGlobSkipsDirectoryMarkers(t *testing.T) {
	mfs := New()
	mfs.AddFile("/src/a.md", "", 0644)
	mfs.AddFile("/src/sub/b.md", "", 0644)
	if err := mfs.MkdirAll("/src/empty", 0755); err != nil {
		t.Fatal(err)
	}

	got, err := mfs.Glob("/src", "**")
	if err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	slices.Sort(got)
	want := []string{"/src/a.md", "/src/sub/b.md"}
	if !slices.Equal(got, want) {
		t.Errorf("Expected %v, got %v", want, got)
	}
	if !mfs.Exists("/src/empty") {
		t.Error("Expected the empty directory to exist")
	}
}

func TestRemove(t *testing.T) {
	mfs := New()
	mfs.AddFile("/out/a.txt", "a", 0644)

	if err := mfs.Remove("/out/a.txt"); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}
	if mfs.Exists("/out/a.txt") {
		t.Error("Expected file to be removed")
	}
	if err := mfs.Remove("/out/a.txt"); !errors.Is(err, fs.ErrNotExist) {
		t.Errorf("Expected ErrNotExist, got %v", err)
	}
}
