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

package logging

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
)

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("warn", "text", &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if log.Level != logrus.WarnLevel {
		t.Errorf("Expected warn level, got %v", log.Level)
	}

	log.Info("hidden")
	log.WithField("file", "/src/a.css").Warn("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("Expected info message to be filtered, got %q", out)
	}
	if !strings.Contains(out, "file=/src/a.css") {
		t.Errorf("Expected file field in output, got %q", out)
	}
}

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	log, err := New("info", "json", &buf)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	log.WithField("pass", "build").Info("done")

	var entry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("Expected JSON output, got %q: %v", buf.String(), err)
	}
	if entry["pass"] != "build" || entry["msg"] != "done" {
		t.Errorf("Unexpected entry: %v", entry)
	}
}

func TestNewInvalid(t *testing.T) {
	if _, err := New("loud", "text", &bytes.Buffer{}); err == nil {
		t.Error("Expected error for invalid level")
	}
	if _, err := New("info", "xml", &bytes.Buffer{}); err == nil {
		t.Error("Expected error for invalid format")
	}
}
