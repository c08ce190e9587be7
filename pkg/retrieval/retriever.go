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
	"context"
	"fmt"

	"github.com/spnl-dev/spnl/pkg/ir"
	"github.com/spnl-dev/spnl/pkg/retrieval/vectorstore"
)

// RetrieveOptions tunes a single retrieval call.
type RetrieveOptions struct {
	// TopK is the number of nearest neighbors fetched per query
	// vector, before de-duplication. Defaults to 10.
	TopK int

	// MaxDistance optionally discards results whose score is below
	// this similarity threshold. Zero disables the filter.
	MaxDistance float32
}

// Retriever answers Augment queries against an already-built table.
type Retriever struct {
	Provider vectorstore.Provider
}

// NewRetriever creates a Retriever backed by the given vector provider.
func NewRetriever(provider vectorstore.Provider) *Retriever {
	return &Retriever{Provider: provider}
}

// bodyQueryVectors extracts the text the retriever embeds as query
// vectors: every message in body, in tree order. A Retrieve that
// needs multiple nearest-neighbor passes (e.g. a Cross of several
// questions) embeds each leaf message independently.
func bodyQueryVectors(body ir.Query) []string {
	var texts []string
	var walk func(q ir.Query)
	walk = func(q ir.Query) {
		switch v := q.(type) {
		case *ir.Message:
			texts = append(texts, v.Text)
		default:
			for _, c := range q.Children() {
				walk(c)
			}
		}
	}
	walk(body)
	return texts
}

// Retrieve finds fragments of table relevant to body: embed each
// query text drawn from body, run a nearest-neighbor search per
// vector, de-duplicate the hits across all query vectors (preserving
// first-seen order), then reverse so the most relevant fragment ends
// up adjacent to the question once fragments are prepended to it.
//
// Zero fragments is a valid result: the retrieval site becomes an
// empty Plus, not an error.
func (r *Retriever) Retrieve(ctx context.Context, table string, body ir.Query, embedder Embedder, opts RetrieveOptions) ([]string, error) {
	topK := opts.TopK
	if topK <= 0 {
		topK = defaultTopK
	}

	queries := bodyQueryVectors(body)
	if len(queries) == 0 {
		return nil, nil
	}

	seen := make(map[string]bool)
	var ordered []string

	for _, q := range queries {
		vec, err := embedder.Embed(ctx, q)
		if err != nil {
			return nil, fmt.Errorf("failed to embed retrieval query: %w", err)
		}
		padded := vectorstore.PadVector(vec)

		results, err := r.Provider.Search(ctx, table, padded, topK)
		if err != nil {
			return nil, fmt.Errorf("nearest-neighbor search against %s failed: %w", table, err)
		}

		for _, res := range results {
			if res.ID == doneMarkerID {
				continue
			}
			if opts.MaxDistance > 0 && res.Score < opts.MaxDistance {
				continue
			}
			if seen[res.Content] {
				continue
			}
			seen[res.Content] = true
			ordered = append(ordered, res.Content)
		}
	}

	for i, j := 0, len(ordered)-1; i < j; i, j = i+1, j-1 {
		ordered[i], ordered[j] = ordered[j], ordered[i]
	}
	return ordered, nil
}
