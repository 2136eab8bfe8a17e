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
	"embed"
	"fmt"
	"path"
	"sync"

	ts "github.com/tree-sitter/go-tree-sitter"
	tsHtml "github.com/tree-sitter/tree-sitter-html/bindings/go"
	tsTypescript "github.com/tree-sitter/tree-sitter-typescript/bindings/go"
)

//go:embed queries/*/*.scm
var queryFiles embed.FS

// Languages holds pre-initialized tree-sitter language grammars.
var languages = struct {
	html       *ts.Language
	typescript *ts.Language
}{
	ts.NewLanguage(tsHtml.Language()),
	ts.NewLanguage(tsTypescript.LanguageTypescript()),
}

// Parser pools for reuse across concurrently built files.
var (
	htmlParserPool = sync.Pool{
		New: func() any {
			parser := ts.NewParser()
			if err := parser.SetLanguage(languages.html); err != nil {
				panic("failed to set HTML language: " + err.Error())
			}
			return parser
		},
	}

	tsParserPool = sync.Pool{
		New: func() any {
			parser := ts.NewParser()
			if err := parser.SetLanguage(languages.typescript); err != nil {
				panic("failed to set TypeScript language: " + err.Error())
			}
			return parser
		},
	}
)

func getHTMLParser() *ts.Parser {
	return htmlParserPool.Get().(*ts.Parser)
}

func putHTMLParser(p *ts.Parser) {
	p.Reset()
	htmlParserPool.Put(p)
}

func getTSParser() *ts.Parser {
	return tsParserPool.Get().(*ts.Parser)
}

func putTSParser(p *ts.Parser) {
	p.Reset()
	tsParserPool.Put(p)
}

// queryManager owns the compiled tree-sitter queries.
type queryManager struct {
	mu      sync.Mutex
	queries map[string]*ts.Query // "language/name" -> query
}

func newQueryManager() (*queryManager, error) {
	qm := &queryManager{queries: make(map[string]*ts.Query)}
	for _, q := range []struct{ language, name string }{
		{"html", "comments"},
		{"typescript", "imports"},
	} {
		if err := qm.load(q.language, q.name); err != nil {
			qm.close()
			return nil, err
		}
	}
	return qm, nil
}

func (qm *queryManager) load(language, name string) error {
	queryPath := path.Join("queries", language, name+".scm")
	data, err := queryFiles.ReadFile(queryPath)
	if err != nil {
		return fmt.Errorf("failed to read query %s: %w", queryPath, err)
	}

	var lang *ts.Language
	switch language {
	case "html":
		lang = languages.html
	case "typescript":
		lang = languages.typescript
	default:
		return fmt.Errorf("unknown language: %s", language)
	}

	query, qerr := ts.NewQuery(lang, string(data))
	if qerr != nil {
		return fmt.Errorf("failed to parse query %s: %w", name, qerr)
	}
	qm.queries[language+"/"+name] = query
	return nil
}

func (qm *queryManager) query(language, name string) (*ts.Query, error) {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	q, ok := qm.queries[language+"/"+name]
	if !ok {
		return nil, fmt.Errorf("query not found: %s/%s", language, name)
	}
	return q, nil
}

func (qm *queryManager) close() {
	qm.mu.Lock()
	defer qm.mu.Unlock()
	for _, q := range qm.queries {
		q.Close()
	}
	qm.queries = nil
}

var (
	globalQM     *queryManager
	globalQMOnce sync.Once
	globalQMErr  error
)

func getQueryManager() (*queryManager, error) {
	globalQMOnce.Do(func() {
		globalQM, globalQMErr = newQueryManager()
	})
	return globalQM, globalQMErr
}
