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

// Package retrieval implements the augment component: chunking source
// documents into fragments, embedding them, and serving nearest-
// neighbor lookups against a vector table.
package retrieval

import "context"

// Embedder produces vector embeddings from text. An embedding-model
// name (the first element of an augment query's model pair) resolves
// to one of these through a Registry.
type Embedder interface {
	// Embed converts text to a single vector embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch embeds multiple texts, more efficiently than calling
	// Embed in a loop where the provider supports batching.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector's native width, before
	// any padding to vectorstore.VectorDimension.
	Dimension() int

	// Model returns the model name the embedder was constructed with.
	Model() string

	Close() error
}
