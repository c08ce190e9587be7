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

package backend

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spnl-dev/spnl/pkg/ir"
)

func reverse(s string) string {
	r := []rune(s)
	for i, j := 0, len(r)-1; i < j; i, j = i+1, j-1 {
		r[i], r[j] = r[j], r[i]
	}
	return string(r)
}

func TestMockBackendSimpleChat(t *testing.T) {
	m := NewMockBackend(func(s string) string { return s + "!" })
	repeat := &ir.Repeat{N: 1, Generate: &ir.Generate{
		Metadata: ir.GenerateMetadata{Model: "m"},
		Input:    &ir.Message{Role: ir.RoleUser, Text: "hi"},
	}}

	out, err := m.GenerateChat(context.Background(), repeat, CallOptions{})
	require.NoError(t, err)
	require.Len(t, out.Items, 1)
	require.Equal(t, "hi!", out.Items[0].(*ir.Message).Text)
}

func TestMockBackendParallelFanOut(t *testing.T) {
	m := NewMockBackend(reverse)
	repeat := &ir.Repeat{N: 3, Generate: &ir.Generate{
		Metadata: ir.GenerateMetadata{Model: "m"},
		Input:    &ir.Message{Role: ir.RoleUser, Text: "abc"},
	}}

	out, err := m.GenerateChat(context.Background(), repeat, CallOptions{})
	require.NoError(t, err)
	require.Len(t, out.Items, 3)
	for _, item := range out.Items {
		require.Equal(t, "cba", item.(*ir.Message).Text)
	}
}

func TestMockBackendFailureInjection(t *testing.T) {
	m := NewMockBackend(nil)
	m.FailAt = 1

	mp := &ir.Map{
		Metadata: ir.GenerateMetadata{Model: "m"},
		Inputs: []ir.Query{
			&ir.Message{Role: ir.RoleUser, Text: "a"},
			&ir.Message{Role: ir.RoleUser, Text: "b"},
			&ir.Message{Role: ir.RoleUser, Text: "c"},
		},
	}

	_, err := m.GenerateCompletion(context.Background(), mp, CallOptions{})
	require.Error(t, err)
	require.True(t, strings.Contains(err.Error(), "injected failure"))
}

func TestRegistryResolvesByPrefixAndFallsBackToCatchAll(t *testing.T) {
	r := NewRegistry()
	ollama := NewMockBackend(nil)
	local := NewMockBackend(nil)

	r.Register(ollama, PrefixMatcher("ollama/"))
	r.Register(local, func(string) bool { return true })

	got, err := r.Resolve("ollama/llama3.2")
	require.NoError(t, err)
	require.Equal(t, Backend(ollama), got)

	got, err = r.Resolve("my-local-model")
	require.NoError(t, err)
	require.Equal(t, Backend(local), got)
}

func TestRegistryNoMatchErrors(t *testing.T) {
	r := NewRegistry()
	r.Register(NewMockBackend(nil), PrefixMatcher("openai/"))

	_, err := r.Resolve("ollama/llama3.2")
	require.Error(t, err)
}
