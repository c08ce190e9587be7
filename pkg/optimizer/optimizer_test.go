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

package optimizer

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spnl-dev/spnl/pkg/ir"
	"github.com/spnl-dev/spnl/pkg/retrieval"
	"github.com/spnl-dev/spnl/pkg/retrieval/vectorstore"
)

// fixedEmbedder maps specific strings to specific low-dimensional
// vectors so a retrieval test can assert a deterministic
// nearest-neighbor winner without depending on a real embedding model.
type fixedEmbedder struct {
	vectors map[string][]float32
	model   string
}

func (f *fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := f.vectors[text]; ok {
		return v, nil
	}
	return []float32{0, 0}, nil
}

func (f *fixedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := f.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func (f *fixedEmbedder) Dimension() int { return 2 }
func (f *fixedEmbedder) Model() string  { return f.model }
func (f *fixedEmbedder) Close() error   { return nil }

func TestOptimizeInlinesAugmentIntoFragmentPlus(t *testing.T) {
	provider, err := vectorstore.NewChromemProvider(vectorstore.ChromemConfig{})
	require.NoError(t, err)
	defer provider.Close()

	embedder := &fixedEmbedder{model: "e", vectors: map[string][]float32{
		"line1": {1, 0},
		"line2": {0, 1},
		"Q":     {0, 1},
	}}

	opt := New(provider, func(model string) (retrieval.Embedder, error) {
		if model != "e" {
			return nil, fmt.Errorf("unknown embedding model %q", model)
		}
		return embedder, nil
	}, nil)
	opt.RetrieveOpts.MaxDistance = 0.5

	aug := &ir.Augment{
		EmbeddingModel: "e",
		Body:           &ir.Message{Role: ir.RoleUser, Text: "Q"},
		DocName:        "d.txt",
		Doc:            ir.TextDocument{Content: "line1\nline2"},
	}
	gen := &ir.Generate{Metadata: ir.GenerateMetadata{Model: "m"}, Input: aug}

	optimized, err := opt.Optimize(context.Background(), gen)
	require.NoError(t, err)

	outGen, ok := optimized.(*ir.Generate)
	require.True(t, ok)

	plus, ok := outGen.Input.(*ir.Plus)
	require.True(t, ok, "expected Plus(fragments), got %T", outGen.Input)
	require.Len(t, plus.Items, 1)
	require.Equal(t, "Relevant Document line2", plus.Items[0].(*ir.Message).Text)
}

func TestOptimizeErrorsOnUnresolvableEmbedder(t *testing.T) {
	opt := &Optimizer{}
	aug := &ir.Augment{EmbeddingModel: "e", Body: &ir.Message{Role: ir.RoleUser, Text: "Q"}, DocName: "d", Doc: ir.TextDocument{Content: "x"}}
	opt.Embedders = func(string) (retrieval.Embedder, error) {
		return nil, fmt.Errorf("no embedder configured")
	}

	_, err := opt.Optimize(context.Background(), aug)
	require.Error(t, err)
}
