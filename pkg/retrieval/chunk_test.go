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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spnl-dev/spnl/pkg/ir"
)

func TestWindowTextOneLinePerFragment(t *testing.T) {
	doc := ir.TextDocument{Content: "line1\nline2\n\nline3"}
	fragments, err := Window("notes.txt", doc, DefaultWindowConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"line1", "line2", "line3"}, fragments)
}

func TestWindowJSONLExtractsTextField(t *testing.T) {
	doc := ir.TextDocument{Content: `{"text":"a"}` + "\n" + `{"text":"b"}`}
	fragments, err := Window("rows.jsonl", doc, DefaultWindowConfig())
	require.NoError(t, err)
	require.Equal(t, []string{"a", "b"}, fragments)
}

func TestWindowJSONLMalformedErrors(t *testing.T) {
	doc := ir.TextDocument{Content: "not json"}
	_, err := Window("rows.jsonl", doc, DefaultWindowConfig())
	require.Error(t, err)
}

func TestWindowSlidingDefaultWidthStep(t *testing.T) {
	words := "one two three four five six seven eight nine ten"
	fragments := windowSliding(words, DefaultWindowConfig())

	require.Equal(t, "one two three four five six seven eight", fragments[0])
	require.Equal(t, "three four five six seven eight nine ten", fragments[1])
	require.Equal(t, fragments[len(fragments)-1], fragments[len(fragments)-1])
}

func TestSanitizeTableNameDeterministic(t *testing.T) {
	cfg := DefaultWindowConfig()
	a := SanitizeTableName("spnl", "text-embedding-3-small", "doc.txt", cfg)
	b := SanitizeTableName("spnl", "text-embedding-3-small", "doc.txt", cfg)
	require.Equal(t, a, b)

	c := SanitizeTableName("spnl", "text-embedding-3-small", "other.txt", cfg)
	require.NotEqual(t, a, c)
}
