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

package build

import (
	"sort"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"bennypowers.dev/kiln/include"
)

// Pass is the state of one clean or build invocation. Nothing in it survives
// the pass: a new Pass is constructed every time.
type Pass struct {
	Name     string
	Includes *include.Cache

	mu      sync.Mutex
	missing map[string]struct{}
}

// NewPass returns an empty pass.
func NewPass(name string) *Pass {
	return &Pass{
		Name:     name,
		Includes: include.NewCache(),
		missing:  make(map[string]struct{}),
	}
}

// RecordMissing notes an extension that fell back to the default pipeline.
func (p *Pass) RecordMissing(ext string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.missing[ext] = struct{}{}
}

// Missing returns the extensions recorded with RecordMissing, sorted.
func (p *Pass) Missing() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	exts := make([]string, 0, len(p.missing))
	for e := range p.missing {
		exts = append(exts, e)
	}
	sort.Strings(exts)
	return exts
}

// reportMissing logs the missing-mapping summary once for the pass.
func (p *Pass) reportMissing(log logrus.FieldLogger) {
	exts := p.Missing()
	if len(exts) == 0 {
		return
	}
	for i, e := range exts {
		if e == "" {
			exts[i] = "(none)"
		}
	}
	log.WithField("extensions", strings.Join(exts, ",")).Info("no task mapping, copied as-is")
}
