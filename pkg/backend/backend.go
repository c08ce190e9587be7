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

// Package backend defines the inference-provider abstraction the
// executor and retrieval subsystem dispatch through: one interface,
// many concrete providers selected by a model-name prefix.
package backend

import (
	"context"

	"github.com/spnl-dev/spnl/pkg/ir"
)

// Capability flags what a Backend supports. An executor that needs a
// capability a backend lacks must fail loudly rather than silently
// degrade.
type Capability int

const (
	// CapCompletion marks support for GenerateCompletion (Bulk::Map).
	CapCompletion Capability = 1 << iota
	// CapChat marks support for GenerateChat (Generate, Bulk::Repeat).
	CapChat
	// CapEmbed marks support for Embed.
	CapEmbed
	// CapPull marks support for PullIfNeeded (registry-backed providers).
	CapPull
	// CapSpan marks support for span/prepare calls: a zero-decode
	// "planning only" generation used by the optimizer's span
	// materialization pass.
	CapSpan
)

// Has reports whether c includes capability want.
func (c Capability) Has(want Capability) bool { return c&want != 0 }

// ProgressFunc receives streamed output for a single task: either an
// incremental token (delta non-empty) or a final flush (done=true).
type ProgressFunc func(taskIndex int, delta string, done bool)

// CallOptions tunes a single generate/embed/pull call.
type CallOptions struct {
	// Prepare requests planning-only generation: the backend must
	// not decode tokens, only validate it could. Backends that
	// cannot honor this must return an error, not silently generate.
	Prepare bool

	// Silent suppresses streaming output to stdout (progress bars,
	// if any, still update).
	Silent bool

	// Progress receives streamed deltas when non-nil.
	Progress ProgressFunc
}

// Backend is the polymorphic inference-provider abstraction. Concrete
// providers (OpenAI-compatible HTTP, Ollama, spnl's own HTTP
// protocol, an in-process local engine, or a test mock) implement
// whichever subset of methods their Capabilities() declares; callers
// must consult Capabilities before invoking a method the provider
// doesn't support.
type Backend interface {
	// Name identifies the backend (e.g. "openai", "ollama").
	Name() string

	// Capabilities reports which methods are safe to call.
	Capabilities() Capability

	// GenerateCompletion evaluates m.Inputs under m.Metadata, one
	// completion per input in positional order, returning a Par of
	// Assistant messages the same length as m.Inputs.
	GenerateCompletion(ctx context.Context, m *ir.Map, opts CallOptions) (*ir.Par, error)

	// GenerateChat runs r.N chats against r.Generate's
	// already-evaluated input, returning a Par of r.N Assistant
	// messages. Whether the chats run concurrently is up to the
	// implementation: the Ollama and mock backends run them one after
	// another.
	GenerateChat(ctx context.Context, r *ir.Repeat, opts CallOptions) (*ir.Par, error)

	// Embed returns one vector per item in texts, 1:1, right-padded
	// to vectorstore.VectorDimension by the caller.
	Embed(ctx context.Context, model string, texts []string) ([][]float32, error)

	// PullIfNeeded ensures model is available on this backend before
	// it is used, retrying on transient errors and failing fast on a
	// definitive "not found".
	PullIfNeeded(ctx context.Context, model string, progress ProgressFunc) error
}
