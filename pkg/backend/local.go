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
	"github.com/spnl-dev/spnl/pkg/modelpool"
)

// Engine is the in-process inference device a LocalBackend checks out
// of its model pool: a loaded tokenizer/weights/device handle capable
// of decoding one generation (or embedding) at a time. The engine's
// internal implementation is outside this module's scope — the corpus
// carries no local-inference runtime dependency, only the pooling
// discipline around one — so LocalBackend takes it as a caller-supplied
// interface instead of fabricating a binding to a specific runtime.
type Engine interface {
	// Generate decodes a completion for the flattened message list.
	Generate(ctx context.Context, messages []ir.Message, meta ir.GenerateMetadata, progress func(delta string, done bool)) (string, error)
	// Embed returns one vector per text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	// Close releases the engine's device/tokenizer resources.
	Close() error
}

// EngineLoader constructs an Engine for a bare HF-style model name
// (no "ollama/", "openai/", "gemini/", or "spnl/" prefix).
type EngineLoader func(ctx context.Context, model string) (Engine, error)

// LocalBackend runs generation in-process against pool-managed Engine
// instances, implementing spec's "local engine" fallback for bare
// model names. Instance reuse, growth-on-contention, and the
// never-evict/never-block-unless-all-busy invariants come from
// modelpool.Pool, not from this type.
type LocalBackend struct {
	pool *modelpool.Pool[Engine]
}

// NewLocalBackend creates a local backend that loads engines with load.
func NewLocalBackend(load EngineLoader) *LocalBackend {
	return &LocalBackend{pool: modelpool.New(modelpool.Loader[Engine](load))}
}

func (b *LocalBackend) Name() string { return "local" }

func (b *LocalBackend) Capabilities() Capability {
	return CapCompletion | CapChat | CapEmbed
}

func (b *LocalBackend) generateOnce(ctx context.Context, taskIndex int, model string, messages []ir.Message, meta ir.GenerateMetadata, opts CallOptions) (string, error) {
	if opts.Prepare {
		return "", fmt.Errorf("backend %s: prepare is not supported", b.Name())
	}

	handle, err := b.pool.GetOrLoad(ctx, model)
	if err != nil {
		return "", fmt.Errorf("backend %s: %w", b.Name(), err)
	}
	defer handle.Release()

	var progress func(delta string, done bool)
	if opts.Progress != nil {
		progress = func(delta string, done bool) { opts.Progress(taskIndex, delta, done) }
	}

	return handle.Value.Generate(ctx, messages, meta, progress)
}

func flattenToMessageValues(q ir.Query) []ir.Message {
	var out []ir.Message
	var walk func(ir.Query)
	walk = func(q ir.Query) {
		if m, ok := q.(*ir.Message); ok {
			out = append(out, *m)
			return
		}
		for _, c := range q.Children() {
			walk(c)
		}
	}
	walk(q)
	return out
}

// GenerateCompletion issues one generation per input, in positional
// order.
func (b *LocalBackend) GenerateCompletion(ctx context.Context, m *ir.Map, opts CallOptions) (*ir.Par, error) {
	out := &ir.Par{Items: make([]ir.Query, len(m.Inputs))}
	for i, input := range m.Inputs {
		text, err := b.generateOnce(ctx, i, m.Metadata.Model, flattenToMessageValues(input), m.Metadata, opts)
		if err != nil {
			return nil, fmt.Errorf("completion %d failed: %w", i, err)
		}
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: text}
	}
	return out, nil
}

// GenerateChat issues r.N generations against identical input, each
// checking out its own (possibly freshly loaded) pool instance.
func (b *LocalBackend) GenerateChat(ctx context.Context, r *ir.Repeat, opts CallOptions) (*ir.Par, error) {
	messages := flattenToMessageValues(r.Generate.Input)
	out := &ir.Par{Items: make([]ir.Query, r.N)}
	for i := 0; i < r.N; i++ {
		text, err := b.generateOnce(ctx, i, r.Generate.Metadata.Model, messages, r.Generate.Metadata, opts)
		if err != nil {
			return nil, fmt.Errorf("chat repeat %d failed: %w", i, err)
		}
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: text}
	}
	return out, nil
}

// Embed checks out an engine instance and delegates embedding to it.
func (b *LocalBackend) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	handle, err := b.pool.GetOrLoad(ctx, model)
	if err != nil {
		return nil, fmt.Errorf("backend %s: %w", b.Name(), err)
	}
	defer handle.Release()
	return handle.Value.Embed(ctx, texts)
}

// PullIfNeeded is a no-op: a local engine's weights are expected to
// already be on disk; the model pool loads them lazily on first use.
func (b *LocalBackend) PullIfNeeded(ctx context.Context, model string, progress ProgressFunc) error {
	return nil
}

var _ Backend = (*LocalBackend)(nil)
