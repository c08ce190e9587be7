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

package vectorstore

import (
	"context"
	"fmt"

	"github.com/pinecone-io/go-pinecone/pinecone"
	"google.golang.org/protobuf/types/known/structpb"
)

// PineconeConfig configures the Pinecone vector provider.
type PineconeConfig struct {
	APIKey      string `yaml:"api_key"`
	Host        string `yaml:"host,omitempty"`
	IndexName   string `yaml:"index_name"`
	Environment string `yaml:"environment,omitempty"`
}

// PineconeProvider implements Provider against Pinecone's managed
// vector service. Indexes must pre-exist: Pinecone has no notion of
// creating or deleting an index from a data-plane client.
type PineconeProvider struct {
	client    *pinecone.Client
	config    PineconeConfig
	indexName string
}

// NewPineconeProvider creates a new Pinecone provider.
func NewPineconeProvider(cfg PineconeConfig) (*PineconeProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("pinecone: api_key is required")
	}

	clientParams := pinecone.NewClientParams{ApiKey: cfg.APIKey}
	if cfg.Host != "" {
		clientParams.Host = cfg.Host
	}

	client, err := pinecone.NewClient(clientParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create Pinecone client: %w", err)
	}

	indexName := cfg.IndexName
	if indexName == "" {
		indexName = "spnl-fragments"
	}

	return &PineconeProvider{client: client, config: cfg, indexName: indexName}, nil
}

func (p *PineconeProvider) Name() string { return "pinecone" }

func (p *PineconeProvider) getIndexConnection(ctx context.Context, indexName string) (*pinecone.IndexConnection, error) {
	index, err := p.client.DescribeIndex(ctx, indexName)
	if err != nil {
		return nil, fmt.Errorf("failed to describe index %s: %w", indexName, err)
	}

	indexConn, err := p.client.Index(pinecone.NewIndexConnParams{Host: index.Host, Namespace: ""})
	if err != nil {
		return nil, fmt.Errorf("failed to create index connection: %w", err)
	}
	return indexConn, nil
}

func (p *PineconeProvider) resolveIndex(collection string) string {
	if collection == "" {
		return p.indexName
	}
	return collection
}

func toStructpb(m map[string]any) (*pinecone.Metadata, error) {
	if len(m) == 0 {
		return nil, nil
	}
	iface := make(map[string]interface{}, len(m))
	for k, v := range m {
		iface[k] = v
	}
	return structpb.NewStruct(iface)
}

func (p *PineconeProvider) Upsert(ctx context.Context, collection, id string, vector []float32, metadata map[string]any) error {
	indexConn, err := p.getIndexConnection(ctx, p.resolveIndex(collection))
	if err != nil {
		return err
	}
	defer indexConn.Close()

	meta, err := toStructpb(metadata)
	if err != nil {
		return fmt.Errorf("failed to convert metadata: %w", err)
	}

	vec := &pinecone.Vector{Id: id, Values: vector, Metadata: meta}
	if _, err := indexConn.UpsertVectors(ctx, []*pinecone.Vector{vec}); err != nil {
		return fmt.Errorf("failed to upsert vector: %w", err)
	}
	return nil
}

func (p *PineconeProvider) Search(ctx context.Context, collection string, vector []float32, topK int) ([]Result, error) {
	return p.SearchWithFilter(ctx, collection, vector, topK, nil)
}

func (p *PineconeProvider) SearchWithFilter(ctx context.Context, collection string, vector []float32, topK int, filter map[string]any) ([]Result, error) {
	indexConn, err := p.getIndexConnection(ctx, p.resolveIndex(collection))
	if err != nil {
		return nil, err
	}
	defer indexConn.Close()

	metadataFilter, err := toStructpb(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to convert filter: %w", err)
	}

	queryResponse, err := indexConn.QueryByVectorValues(ctx, &pinecone.QueryByVectorValuesRequest{
		Vector:          vector,
		TopK:            uint32(topK),
		MetadataFilter:  metadataFilter,
		IncludeMetadata: true,
		IncludeValues:   false,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query Pinecone: %w", err)
	}
	return convertPineconeResults(queryResponse.Matches), nil
}

func (p *PineconeProvider) Delete(ctx context.Context, collection, id string) error {
	indexConn, err := p.getIndexConnection(ctx, p.resolveIndex(collection))
	if err != nil {
		return err
	}
	defer indexConn.Close()

	if err := indexConn.DeleteVectorsById(ctx, []string{id}); err != nil {
		return fmt.Errorf("failed to delete vector: %w", err)
	}
	return nil
}

func (p *PineconeProvider) DeleteByFilter(ctx context.Context, collection string, filter map[string]any) error {
	indexConn, err := p.getIndexConnection(ctx, p.resolveIndex(collection))
	if err != nil {
		return err
	}
	defer indexConn.Close()

	metadataFilter, err := toStructpb(filter)
	if err != nil {
		return fmt.Errorf("failed to convert filter: %w", err)
	}
	if err := indexConn.DeleteVectorsByFilter(ctx, metadataFilter); err != nil {
		return fmt.Errorf("failed to delete by filter: %w", err)
	}
	return nil
}

// CreateCollection checks that the index already exists: Pinecone
// indexes are provisioned out of band, via console or control-plane API.
func (p *PineconeProvider) CreateCollection(ctx context.Context, collection string, dimension int) error {
	indexName := p.resolveIndex(collection)

	indexes, err := p.client.ListIndexes(ctx)
	if err != nil {
		return fmt.Errorf("failed to list indexes: %w", err)
	}
	for _, idx := range indexes {
		if idx.Name == indexName {
			return nil
		}
	}
	return fmt.Errorf("pinecone: index %s does not exist, create it via console or control-plane API", indexName)
}

func (p *PineconeProvider) DeleteCollection(ctx context.Context, collection string) error {
	return fmt.Errorf("pinecone: index deletion requires the control-plane API, not the data client (%s)", p.resolveIndex(collection))
}

func (p *PineconeProvider) Close() error { return nil }

func convertPineconeResults(matches []*pinecone.ScoredVector) []Result {
	results := make([]Result, 0, len(matches))
	for _, m := range matches {
		if m.Vector == nil {
			continue
		}

		metadata := make(map[string]any)
		if m.Vector.Metadata != nil {
			for k, v := range m.Vector.Metadata.AsMap() {
				metadata[k] = v
			}
		}

		content := ""
		if c, ok := metadata["content"].(string); ok {
			content = c
		}

		results = append(results, Result{ID: m.Vector.Id, Content: content, Metadata: metadata, Score: m.Score})
	}
	return results
}

// Ensure PineconeProvider implements Provider.
var _ Provider = (*PineconeProvider)(nil)
