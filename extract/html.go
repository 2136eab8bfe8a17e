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

	ts "github.com/tree-sitter/go-tree-sitter"
)

// HTML extracts server-side include directives (<!--#include file="..." -->
// and <!--#include virtual="..." -->) from HTML content.
func HTML(content []byte, _ string) ([]string, error) {
	qm, err := getQueryManager()
	if err != nil {
		return nil, err
	}

	parser := getHTMLParser()
	defer putHTMLParser(parser)

	tree := parser.Parse(content, nil)
	if tree == nil {
		return nil, fmt.Errorf("failed to parse content")
	}
	defer tree.Close()

	query, err := qm.query("html", "comments")
	if err != nil {
		return nil, err
	}

	cursor := ts.NewQueryCursor()
	defer cursor.Close()

	var refs []string
	matches := cursor.Matches(query, tree.RootNode(), content)
	for {
		match := matches.Next()
		if match == nil {
			break
		}
		for _, capture := range match.Captures {
			if ref, ok := ParseSSI(capture.Node.Utf8Text(content)); ok {
				refs = append(refs, ref)
			}
		}
	}
	return refs, nil
}
