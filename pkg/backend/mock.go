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
	"fmt"

	"github.com/spnl-dev/spnl/pkg/ir"
)

// MockTransform computes the assistant reply for a single flattened
// input string.
type MockTransform func(input string) string

// MockBackend is a deterministic, in-memory Backend for executor and
// optimizer tests: it never performs I/O, applies Transform to the
// concatenation of every Message leaf's text reachable from the
// generation's input, and fails the call whose index matches FailAt
// (FailAt < 0 disables failure injection) to exercise Par/Plus/Bulk
// error-cancellation semantics.
type MockBackend struct {
	Transform MockTransform
	FailAt    int
	calls     int
}

// NewMockBackend creates a mock backend applying transform to every
// generation's flattened input text.
func NewMockBackend(transform MockTransform) *MockBackend {
	if transform == nil {
		transform = func(s string) string { return s }
	}
	return &MockBackend{Transform: transform, FailAt: -1}
}

func (b *MockBackend) Name() string { return "mock" }

func (b *MockBackend) Capabilities() Capability {
	return CapCompletion | CapChat | CapEmbed | CapPull | CapSpan
}

func flattenToText(q ir.Query) string {
	var text string
	var walk func(ir.Query)
	walk = func(q ir.Query) {
		if m, ok := q.(*ir.Message); ok {
			text += m.Text
			return
		}
		for _, c := range q.Children() {
			walk(c)
		}
	}
	walk(q)
	return text
}

func (b *MockBackend) next(input ir.Query) (string, error) {
	idx := b.calls
	b.calls++
	if b.FailAt >= 0 && idx == b.FailAt {
		return "", fmt.Errorf("mock backend: injected failure at call %d", idx)
	}
	return b.Transform(flattenToText(input)), nil
}

// GenerateCompletion transforms each input independently, in order.
func (b *MockBackend) GenerateCompletion(ctx context.Context, m *ir.Map, opts CallOptions) (*ir.Par, error) {
	out := &ir.Par{Items: make([]ir.Query, len(m.Inputs))}
	for i, input := range m.Inputs {
		text, err := b.next(input)
		if err != nil {
			return nil, err
		}
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: text}
	}
	return out, nil
}

// GenerateChat transforms r.Generate.Input identically r.N times.
func (b *MockBackend) GenerateChat(ctx context.Context, r *ir.Repeat, opts CallOptions) (*ir.Par, error) {
	out := &ir.Par{Items: make([]ir.Query, r.N)}
	for i := 0; i < r.N; i++ {
		text, err := b.next(r.Generate.Input)
		if err != nil {
			return nil, err
		}
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: text}
	}
	return out, nil
}

// Embed returns a deterministic one-element vector per text (its byte
// length), sufficient for retrieval-pipeline tests that don't assert
// on embedding semantics.
func (b *MockBackend) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t))}
	}
	return out, nil
}

// PullIfNeeded always succeeds immediately.
func (b *MockBackend) PullIfNeeded(ctx context.Context, model string, progress ProgressFunc) error {
	return nil
}

var _ Backend = (*MockBackend)(nil)
