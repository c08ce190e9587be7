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

// Package optimizer implements the query-tree rewrite passes chained
// before execution: retrieval inlining (erases Augment), span
// materialization (exposes shared-prefix fan-out to span-capable
// backends), and a bottom-up simplifier run to a fixed point.
package optimizer

import (
	"context"
	"fmt"

	"github.com/spnl-dev/spnl/pkg/backend"
	"github.com/spnl-dev/spnl/pkg/ir"
	"github.com/spnl-dev/spnl/pkg/retrieval"
	"github.com/spnl-dev/spnl/pkg/retrieval/vectorstore"
)

// maxFixedPointIterations bounds the simplify-to-fixed-point loop so
// a malformed rewrite rule can never spin forever.
const maxFixedPointIterations = 5

// Optimizer chains the rewrite passes. It needs a retriever and
// embedder resolver to inline Augment nodes, and a backend registry to
// decide span eligibility per Generate's target model.
type Optimizer struct {
	Indexer      *retrieval.Indexer
	Retriever    *retrieval.Retriever
	Embedders    EmbedderResolver
	Backends     *backend.Registry
	TablePrefix  string
	Window       retrieval.WindowConfig
	RetrieveOpts retrieval.RetrieveOptions
}

// EmbedderResolver returns the Embedder for a given embedding model
// name, so Augment nodes referencing different models each use the
// right one.
type EmbedderResolver func(model string) (retrieval.Embedder, error)

// New creates an Optimizer. provider indexes and searches retrieval
// corpora; embedders resolves an Augment's embedding_model to the
// Embedder that should query it; backends is consulted for span
// capability during span materialization.
func New(provider vectorstore.Provider, embedders EmbedderResolver, backends *backend.Registry) *Optimizer {
	return &Optimizer{
		Indexer:      retrieval.NewIndexer(provider),
		Retriever:    retrieval.NewRetriever(provider),
		Embedders:    embedders,
		Backends:     backends,
		TablePrefix:  "spnl",
		Window:       retrieval.DefaultWindowConfig(),
		RetrieveOpts: retrieval.RetrieveOptions{},
	}
}

// Optimize runs the full pipeline: inline retrieval, materialize
// spans, then simplify to a fixed point. The result tree contains no
// Augment nodes.
func (o *Optimizer) Optimize(ctx context.Context, q ir.Query) (ir.Query, error) {
	inlined, err := o.inlineAugments(ctx, q, nil)
	if err != nil {
		return nil, fmt.Errorf("retrieval inlining failed: %w", err)
	}

	spanned := o.materializeSpans(inlined)

	fixed := spanned
	for i := 0; i < maxFixedPointIterations; i++ {
		next := Simplify(fixed)
		if queryEqual(next, fixed) {
			fixed = next
			break
		}
		fixed = next
	}

	if containsAugment(fixed) {
		return nil, fmt.Errorf("optimizer invariant violated: Augment survived optimization")
	}
	return fixed, nil
}

func containsAugment(q ir.Query) bool {
	if _, ok := q.(*ir.Augment); ok {
		return true
	}
	for _, c := range q.Children() {
		if containsAugment(c) {
			return true
		}
	}
	return false
}

func queryEqual(a, b ir.Query) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Equal(b)
}
