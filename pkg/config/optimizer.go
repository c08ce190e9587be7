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

package config

import (
	"context"
	"fmt"

	"github.com/spnl-dev/spnl/pkg/backend"
	"github.com/spnl-dev/spnl/pkg/optimizer"
	"github.com/spnl-dev/spnl/pkg/retrieval"
	"github.com/spnl-dev/spnl/pkg/retrieval/vectorstore"
)

// backendEmbedder adapts a capability-bearing backend.Backend into a
// retrieval.Embedder bound to one model, so the optimizer's Augment
// inlining can embed fragments/queries through whichever backend the
// model resolves to.
type backendEmbedder struct {
	b     backend.Backend
	model string
}

func (e *backendEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.b.Embed(ctx, e.model, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("backend %s: empty embed response", e.b.Name())
	}
	return vecs[0], nil
}

func (e *backendEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	return e.b.Embed(ctx, e.model, texts)
}

func (e *backendEmbedder) Dimension() int { return 0 }
func (e *backendEmbedder) Model() string  { return e.model }
func (e *backendEmbedder) Close() error   { return nil }

// embedderResolver resolves an embedding model name to a backendEmbedder
// bound to whatever backend in backends matches it.
func embedderResolver(backends *backend.Registry) optimizer.EmbedderResolver {
	return func(model string) (retrieval.Embedder, error) {
		b, err := backends.Resolve(model)
		if err != nil {
			return nil, err
		}
		if !b.Capabilities().Has(backend.CapEmbed) {
			return nil, fmt.Errorf("backend %s: does not support embedding", b.Name())
		}
		return &backendEmbedder{b: b, model: model}, nil
	}
}

// BuildOptimizer constructs an Optimizer backed by whichever vector
// store cfg.Retrieval selects and the embedder resolver derived from
// backends. Callers needing a provider vectorstore.New doesn't cover
// should build an *optimizer.Optimizer directly instead of using this
// helper.
func BuildOptimizer(cfg *Config, backends *backend.Registry) (*optimizer.Optimizer, error) {
	provider, err := vectorstore.New(cfg.Retrieval.providerConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to create vector store: %w", err)
	}

	opt := optimizer.New(provider, embedderResolver(backends), backends)
	opt.RetrieveOpts.MaxDistance = float32(cfg.Retrieval.MaxDistance)
	if cfg.Retrieval.WindowSize > 0 {
		opt.Window.Width = cfg.Retrieval.WindowSize
	}
	if cfg.Retrieval.WindowStep > 0 {
		opt.Window.Step = cfg.Retrieval.WindowStep
	}
	return opt, nil
}
