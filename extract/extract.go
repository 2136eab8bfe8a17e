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

// Package extract provides the per-language include extractors used by the
// include resolver. Each extractor returns raw references exactly as written
// in the file; resolving them against the source tree is not its job.
package extract

import (
	"regexp"
	"strings"

	"bennypowers.dev/kiln/include"
)

// Defaults returns the built-in extractors keyed by source extension.
func Defaults() map[string]include.Extractor {
	return map[string]include.Extractor{
		"concat": Concat,
		"css":    CSS,
		"scss":   CSS,
		"sass":   CSS,
		"less":   CSS,
		"html":   HTML,
		"htm":    HTML,
		"shtml":  HTML,
		"js":     JS,
		"mjs":    JS,
		"ts":     JS,
	}
}

var ssiDirective = regexp.MustCompile(`^#include\s+(file|virtual)\s*=\s*"([^"]*)"`)

// ParseSSI parses a server-side include directive such as
// <!--#include file="header.html" -->. The comment delimiters are optional.
// virtual includes are returned rooted ("/x.html") so they resolve against
// the source root.
func ParseSSI(comment string) (string, bool) {
	body := strings.TrimSpace(comment)
	body = strings.TrimPrefix(body, "<!--")
	body = strings.TrimSuffix(body, "-->")
	body = strings.TrimSpace(body)

	m := ssiDirective.FindStringSubmatch(body)
	if m == nil || m[2] == "" {
		return "", false
	}
	ref := m[2]
	if m[1] == "virtual" && !strings.HasPrefix(ref, "/") {
		ref = "/" + ref
	}
	return ref, true
}

func isRemote(ref string) bool {
	for _, prefix := range []string{"http:", "https:", "//", "data:"} {
		if strings.HasPrefix(ref, prefix) {
			return true
		}
	}
	return false
}
