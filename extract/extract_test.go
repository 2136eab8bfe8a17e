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

package extract_test

import (
	"slices"
	"testing"

	"bennypowers.dev/kiln/extract"
)

func TestConcat(t *testing.T) {
	content := []byte("# vendor first\nvendor/*.js\n\n  app.js  \n# trailing comment\n")

	refs, err := extract.Concat(content, "/src/all.js.concat")
	if err != nil {
		t.Fatalf("Concat failed: %v", err)
	}
	expected := []string{"vendor/*.js", "app.js"}
	if !slices.Equal(refs, expected) {
		t.Errorf("Expected %v, got %v", expected, refs)
	}
}

func TestCSS(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		content  string
		expected []string
	}{
		{
			name:     "plain css imports",
			path:     "/src/site.css",
			content:  `@import "reset.css"; @import url(theme.css); @import url("print.css") print; body { color: red }`,
			expected: []string{"reset.css", "theme.css", "print.css"},
		},
		{
			name:     "remote imports are skipped",
			path:     "/src/site.css",
			content:  `@import url("https://fonts.example.com/a.css"); @import "//cdn.example.com/b.css";`,
			expected: nil,
		},
		{
			name:     "scss partials",
			path:     "/src/app.scss",
			content:  `@use "sass:math"; @use "base/colors"; @forward "mixins.scss";`,
			expected: []string{"base/colors.scss", "base/_colors.scss", "mixins.scss"},
		},
		{
			name:     "less imports",
			path:     "/src/app.less",
			content:  `@import "vars"; .a { color: @c }`,
			expected: []string{"vars.less"},
		},
		{
			name:     "strings outside import rules",
			path:     "/src/site.css",
			content:  `a::after { content: "x.css" }`,
			expected: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			refs, err := extract.CSS([]byte(tt.content), tt.path)
			if err != nil {
				t.Fatalf("CSS failed: %v", err)
			}
			if !slices.Equal(refs, tt.expected) {
				t.Errorf("Expected %v, got %v", tt.expected, refs)
			}
		})
	}
}

func TestParseSSI(t *testing.T) {
	tests := []struct {
		comment string
		ref     string
		ok      bool
	}{
		{`<!--#include file="header.html" -->`, "header.html", true},
		{`#include virtual="partials/nav.html"`, "/partials/nav.html", true},
		{`<!--#include virtual="/footer.html"-->`, "/footer.html", true},
		{`<!-- just a comment -->`, "", false},
		{`<!--#echo var="DATE_LOCAL" -->`, "", false},
	}
	for _, tt := range tests {
		ref, ok := extract.ParseSSI(tt.comment)
		if ok != tt.ok || ref != tt.ref {
			t.Errorf("ParseSSI(%q) = (%q, %v), expected (%q, %v)", tt.comment, ref, ok, tt.ref, tt.ok)
		}
	}
}

func TestHTML(t *testing.T) {
	content := []byte(`<!doctype html>
<html>
<body>
<!--#include file="_header.html" -->
<main>hello</main>
<!-- not an include -->
<!--#include virtual="/partials/_footer.html" -->
</body>
</html>
`)

	refs, err := extract.HTML(content, "/src/index.html")
	if err != nil {
		t.Fatalf("HTML failed: %v", err)
	}
	expected := []string{"_header.html", "/partials/_footer.html"}
	if !slices.Equal(refs, expected) {
		t.Errorf("Expected %v, got %v", expected, refs)
	}
}

func TestJS(t *testing.T) {
	content := []byte(`import { html } from "lit";
import "./side-effect.js";
import util from '../lib/util.js';
export * from "./reexport.js";
const lazy = () => import("./lazy.js");
`)

	refs, err := extract.JS(content, "/src/app/main.js")
	if err != nil {
		t.Fatalf("JS failed: %v", err)
	}
	expected := []string{"./side-effect.js", "../lib/util.js", "./reexport.js", "./lazy.js"}
	if !slices.Equal(refs, expected) {
		t.Errorf("Expected %v, got %v", expected, refs)
	}
}

func TestImportsDynamicFlag(t *testing.T) {
	imports, err := extract.Imports([]byte(`import a from "./a.js"; import("./b.js");`))
	if err != nil {
		t.Fatalf("Imports failed: %v", err)
	}
	if len(imports) != 2 {
		t.Fatalf("Expected 2 imports, got %d: %+v", len(imports), imports)
	}
	if imports[0].IsDynamic {
		t.Error("Expected first import to be static")
	}
	if !imports[1].IsDynamic {
		t.Error("Expected second import to be dynamic")
	}
}

func TestDefaults(t *testing.T) {
	defaults := extract.Defaults()
	for _, ext := range []string{"concat", "css", "scss", "html", "js"} {
		if defaults[ext] == nil {
			t.Errorf("Expected a default extractor for %s", ext)
		}
	}
	if defaults["png"] != nil {
		t.Error("Expected no extractor for png")
	}
}
