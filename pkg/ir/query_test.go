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

package ir

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func intPtr(i int) *int { return &i }

func TestRoundTrip(t *testing.T) {
	cases := []Query{
		User("hello"),
		System("hi"),
		&Plus{Items: []Query{User("a"), System("b")}},
		&Cross{Items: []Query{User("a"), User("b"), &Plus{Items: []Query{User("sloop")}}}},
		&Generate{
			Metadata: GenerateMetadata{Model: "ollama/granite3.2:2b", MaxTokens: intPtr(128)},
			Input:    User("hello"),
		},
		&Repeat{N: 3, Generate: &Generate{Metadata: GenerateMetadata{Model: "m"}, Input: User("x")}},
		&Map{Inputs: []Query{User("a"), User("b")}, Metadata: GenerateMetadata{Model: "m"}},
		&Monad{Query: User("side-effect")},
		&Augment{
			EmbeddingModel: "e",
			Body:           User("Q"),
			DocName:        "d.txt",
			Doc:            TextDocument{Content: "line1\nline2"},
		},
		&Print{Text: "hi"},
		&Ask{Text: "name?"},
	}

	for _, q := range cases {
		data, err := Marshal(q)
		require.NoError(t, err)
		got, err := Unmarshal(data)
		require.NoError(t, err)
		require.True(t, q.Equal(got), "round-trip mismatch: %s", string(data))
	}
}

func TestUnmarshalStrictness(t *testing.T) {
	_, err := Unmarshal([]byte(`{}`))
	require.Error(t, err)

	_, err = Unmarshal([]byte(`{"user":"a","system":"b"}`))
	require.Error(t, err)

	_, err = Unmarshal([]byte(`{"bogus":"a"}`))
	require.Error(t, err)
}

func TestMaxTokensZeroNormalizesToNil(t *testing.T) {
	data := []byte(`{"g":{"model":"m","max_tokens":0,"input":{"user":"hi"}}}`)
	q, err := Unmarshal(data)
	require.NoError(t, err)
	gen, ok := q.(*Generate)
	require.True(t, ok)
	require.Nil(t, gen.Metadata.MaxTokens)
}

func TestEqualStructural(t *testing.T) {
	a := &Plus{Items: []Query{User("a"), User("b")}}
	b := &Plus{Items: []Query{User("a"), User("b")}}
	c := &Plus{Items: []Query{User("a"), User("c")}}

	require.True(t, a.Equal(b))
	require.False(t, a.Equal(c))
}

func TestChildrenPreservesOrder(t *testing.T) {
	p := &Par{Items: []Query{User("1"), User("2"), User("3")}}
	children := p.Children()
	require.Len(t, children, 3)
	for i, c := range children {
		m := c.(*Message)
		require.Equal(t, string(rune('1'+i)), m.Text)
	}
}

func TestPrettyTruncatesLongText(t *testing.T) {
	long := make([]byte, 2000)
	for i := range long {
		long[i] = 'x'
	}
	out := Pretty(User(string(long)))
	require.Contains(t, out, "…")
}
