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

// Package vectorstore abstracts the fragment table: a named
// collection of (filename, vector[1024]) rows with upsert-or-insert
// semantics, behind concrete providers (chromem-go embedded, Qdrant,
// Pinecone, Weaviate).
package vectorstore

import "context"

// VectorDimension is the fixed embedding width the retrieval
// subsystem pads every vector to before it reaches a provider.
const VectorDimension = 1024

// Result is a single nearest-neighbor hit.
type Result struct {
	ID       string
	Score    float32
	Content  string
	Metadata map[string]any
}

// Provider is a vector table backend. Every method is safe for
// concurrent use; a Provider instance is shared across retrievals
// within an invocation.
type Provider interface {
	// Name returns the provider's identifying name (e.g. "chromem").
	Name() string

	// Upsert inserts or updates a row keyed by id within collection.
	Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error

	// Search returns the topK nearest rows to vector.
	Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error)

	// SearchWithFilter additionally restricts results to rows whose
	// metadata matches filter (exact-match, ANDed).
	SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error)

	// Delete removes a single row by id.
	Delete(ctx context.Context, collection, id string) error

	// DeleteByFilter removes every row matching filter.
	DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error

	// CreateCollection ensures collection exists with the given
	// vector dimension. Providers that create collections implicitly
	// on first write may treat this as a no-op.
	CreateCollection(ctx context.Context, collection string, dimension int) error

	// DeleteCollection removes a collection and all its rows.
	DeleteCollection(ctx context.Context, collection string) error

	// Close releases resources held by the provider.
	Close() error
}

// NilProvider is a Provider that rejects every operation. It is
// returned by the factory when no configuration is supplied, so a
// caller that never intended to use retrieval gets a clear error
// instead of a nil-pointer panic.
type NilProvider struct{}

func (NilProvider) Name() string { return "nil" }

func (NilProvider) Upsert(context.Context, string, string, []float32, map[string]any) error {
	return errNilProvider
}

func (NilProvider) Search(context.Context, string, []float32, int) ([]Result, error) {
	return nil, errNilProvider
}

func (NilProvider) SearchWithFilter(context.Context, string, []float32, int, map[string]any) ([]Result, error) {
	return nil, errNilProvider
}

func (NilProvider) Delete(context.Context, string, string) error { return errNilProvider }

func (NilProvider) DeleteByFilter(context.Context, string, map[string]any) error {
	return errNilProvider
}

func (NilProvider) CreateCollection(context.Context, string, int) error { return errNilProvider }

func (NilProvider) DeleteCollection(context.Context, string) error { return errNilProvider }

func (NilProvider) Close() error { return nil }

// PadVector right-pads v with zeros to VectorDimension. Vectors
// already at or beyond the dimension are returned unmodified (never
// truncated — a wider embedding model is the caller's choice).
func PadVector(v []float32) []float32 {
	if len(v) >= VectorDimension {
		return v
	}
	out := make([]float32, VectorDimension)
	copy(out, v)
	return out
}
