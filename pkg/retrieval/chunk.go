// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package retrieval

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spnl-dev/spnl/pkg/ir"
)

// WindowConfig controls the fixed-width sliding window used for
// extracted binary text. Width and Step default to 8 and 2, the same
// defaults the reference client uses.
type WindowConfig struct {
	Width int
	Step  int
}

// DefaultWindowConfig returns the default sliding-window parameters.
func DefaultWindowConfig() WindowConfig {
	return WindowConfig{Width: 8, Step: 2}
}

// Window splits a named document into fragments according to its kind:
//   - Text(.txt): one line per fragment.
//   - Text(.jsonl): one "text" field per line.
//   - Binary: extracted text split into fixed-width sliding windows
//     of whitespace-delimited words.
//
// name is the document's (filename, Document) pair's first element
// (ir.Augment.DocName); it supplies the extension used to pick a
// windowing strategy for Text, and a format hint for Binary.
func Window(name string, doc ir.Document, cfg WindowConfig) ([]string, error) {
	switch d := doc.(type) {
	case ir.TextDocument:
		if strings.HasSuffix(strings.ToLower(name), ".jsonl") {
			return windowJSONL(d.Content)
		}
		return windowLines(d.Content), nil

	case ir.BinaryDocument:
		text, err := ExtractText(name, d.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to window binary document %s: %w", name, err)
		}
		return windowSliding(text, cfg), nil

	default:
		return nil, fmt.Errorf("retrieval: unknown document kind %T", doc)
	}
}

func windowLines(content string) []string {
	lines := strings.Split(content, "\n")
	fragments := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		fragments = append(fragments, line)
	}
	return fragments
}

func windowJSONL(content string) ([]string, error) {
	var fragments []string
	for i, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		var row struct {
			Text string `json:"text"`
		}
		if err := json.Unmarshal([]byte(line), &row); err != nil {
			return nil, fmt.Errorf("malformed jsonl at line %d: %w", i+1, err)
		}
		if row.Text != "" {
			fragments = append(fragments, row.Text)
		}
	}
	return fragments, nil
}

func windowSliding(text string, cfg WindowConfig) []string {
	width := cfg.Width
	if width <= 0 {
		width = 8
	}
	step := cfg.Step
	if step <= 0 {
		step = 2
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}

	var fragments []string
	for start := 0; start < len(words); start += step {
		end := min(start+width, len(words))
		fragments = append(fragments, strings.Join(words[start:end], " "))
		if end == len(words) {
			break
		}
	}
	return fragments
}
