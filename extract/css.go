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
	"path"
	"strings"

	"github.com/gorilla/css/scanner"

	"bennypowers.dev/kiln/taskmap"
)

// importRules are the at-rules whose arguments name other stylesheets.
var importRules = map[string]bool{
	"@import":  true,
	"@use":     true,
	"@forward": true,
}

// CSS extracts @import, @use and @forward references from css, scss, sass and
// less content. Remote and built-in module references are skipped. For the
// preprocessor syntaxes an extensionless reference yields both the plain and
// the underscore-prefixed partial spelling with the including file's
// extension; whichever exists wins.
func CSS(content []byte, filePath string) ([]string, error) {
	ext := taskmap.Ext(filePath)

	var refs []string
	s := scanner.New(string(content))
	inRule := false
	for {
		tok := s.Next()
		switch tok.Type {
		case scanner.TokenEOF, scanner.TokenError:
			return refs, nil
		case scanner.TokenAtKeyword:
			inRule = importRules[strings.ToLower(tok.Value)]
		case scanner.TokenChar:
			if tok.Value == ";" || tok.Value == "{" {
				inRule = false
			}
		case scanner.TokenString:
			if inRule {
				refs = append(refs, candidates(unquote(tok.Value), ext)...)
			}
		case scanner.TokenURI:
			if inRule {
				refs = append(refs, candidates(uriValue(tok.Value), ext)...)
			}
		}
	}
}

func candidates(ref, ext string) []string {
	if ref == "" || isRemote(ref) || strings.HasPrefix(ref, "sass:") {
		return nil
	}
	if path.Ext(ref) != "" {
		return []string{ref}
	}
	switch ext {
	case "scss", "sass":
		dir, base := path.Split(ref)
		return []string{ref + "." + ext, dir + "_" + base + "." + ext}
	case "less":
		return []string{ref + ".less"}
	default:
		return []string{ref}
	}
}

func unquote(s string) string {
	if len(s) >= 2 && (s[0] == '"' || s[0] == '\'') && s[len(s)-1] == s[0] {
		return s[1 : len(s)-1]
	}
	return s
}

func uriValue(s string) string {
	s = strings.TrimSpace(s)
	if len(s) >= 5 && strings.EqualFold(s[:4], "url(") && strings.HasSuffix(s, ")") {
		s = strings.TrimSpace(s[4 : len(s)-1])
	}
	return unquote(s)
}
