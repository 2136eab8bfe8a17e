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

package extract

import (
	"fmt"
	"strings"

	ts "github.com/tree-sitter/go-tree-sitter"
)

// ModuleImport is an import specifier found in a JavaScript or TypeScript
// module.
type ModuleImport struct {
	Specifier string
	IsDynamic bool
	Line      int
}

// Imports parses JavaScript/TypeScript content and returns every static,
// re-export and literal dynamic import specifier in source order.
func Imports(content []byte) ([]ModuleImport, error) {
	qm, err := getQueryManager()
	if err != nil {
		return nil, err
	}

	parser := getTSParser()
	defer putTSParser(parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse content")
	}
	defer tree.Close()

	query, err := qm.query("typescript", "imports")
	if err != nil {
		return nil, err
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	var imports []ModuleImport
	matches := cursor.Matches(query, tree.RootNode(), content)
	captureNames := query.CaptureNames()

	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			imp := ModuleImport{
				Specifier: capture.Node.Utf8Text(content),
				Line:      int(capture.Node.StartPosition().Row) + 1,
			}
			switch captureNames[capture.Index] {
			case "import.spec", "reexport.spec":
			case "dynamicImport.spec":
				imp.IsDynamic = true
			default:
				continue
			}
			imports = append(imports, imp)
		}
	}

	return imports, nil
}

// JS extracts the relative and root-relative imports of a module. Bare
// specifiers resolve through a package manager and are not includes.
func JS(content []byte, _ string) ([]string, error) {
	imports, err := Imports(content)
	if err != nil {
		return nil, err
	}
	var refs []string
	for _, imp := range imports {
		s := imp.Specifier
		if strings.HasPrefix(s, "./") || strings.HasPrefix(s, "../") || (strings.HasPrefix(s, "/") && !strings.HasPrefix(s, "//")) {
			refs = append(refs, s)
		}
	}
	return refs, nil
}
