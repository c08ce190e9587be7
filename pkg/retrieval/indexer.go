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
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/spnl-dev/spnl/pkg/ir"
	"github.com/spnl-dev/spnl/pkg/retrieval/vectorstore"
)

const (
	embedBatchSize  = 64
	defaultTopK     = 10
	doneMarkerID    = "__index_done__"
	doneMarkerValue = "done"
)

var unsafeTableChars = regexp.MustCompile(`[^a-zA-Z0-9_]+`)

// SanitizeTableName builds a deterministic, filesystem/SQL-safe table
// name from an augmentation's identity: the configured prefix, the
// embedding model, the window size, and the document name. Two
// augmentations with the same identity always map to the same table,
// so re-running an index build against an already-indexed corpus is
// a fast no-op (see the done marker in Indexer.Build).
func SanitizeTableName(prefix, embeddingModel, docName string, cfg WindowConfig) string {
	raw := fmt.Sprintf("%s_%s_w%d_s%d_%s", prefix, embeddingModel, cfg.Width, cfg.Step, docName)
	sanitized := unsafeTableChars.ReplaceAllString(raw, "_")
	if len(sanitized) <= 120 {
		return sanitized
	}

	sum := sha256.Sum256([]byte(raw))
	return sanitized[:100] + "_" + hex.EncodeToString(sum[:8])
}

// Indexer builds and maintains the fragment vector tables referenced
// by Augment nodes.
type Indexer struct {
	Provider vectorstore.Provider
	Window   WindowConfig
}

// NewIndexer creates an Indexer backed by the given vector provider.
func NewIndexer(provider vectorstore.Provider) *Indexer {
	return &Indexer{Provider: provider, Window: DefaultWindowConfig()}
}

// Build indexes a single Augment's document against embedder, unless
// the table's done marker already exists. Per-batch embedding errors
// abort the whole build: a partially-indexed table is never marked
// done, so a retry will redo it from scratch.
func (idx *Indexer) Build(ctx context.Context, tablePrefix string, aug *ir.Augment, embedder Embedder) (string, error) {
	table := SanitizeTableName(tablePrefix, aug.EmbeddingModel, aug.DocName, idx.Window)

	if done, err := idx.isDone(ctx, table); err != nil {
		return "", err
	} else if done {
		return table, nil
	}

	fragments, err := Window(aug.DocName, aug.Doc, idx.Window)
	if err != nil {
		return "", fmt.Errorf("failed to window document %s: %w", aug.DocName, err)
	}

	if err := idx.Provider.CreateCollection(ctx, table, vectorstore.VectorDimension); err != nil {
		return "", fmt.Errorf("failed to create table %s: %w", table, err)
	}

	for start := 0; start < len(fragments); start += embedBatchSize {
		end := min(start+embedBatchSize, len(fragments))
		batch := fragments[start:end]

		vectors, err := embedder.EmbedBatch(ctx, batch)
		if err != nil {
			return "", fmt.Errorf("index build for %s aborted: embedding batch [%d:%d] failed: %w", table, start, end, err)
		}

		for i, text := range batch {
			padded := vectorstore.PadVector(vectors[i])
			id := fragmentID(text)
			if err := idx.Provider.Upsert(ctx, table, id, padded, map[string]any{"content": text}); err != nil {
				return "", fmt.Errorf("index build for %s aborted: upsert failed: %w", table, err)
			}
		}

		slog.Debug("indexed fragment batch", "table", table, "fragments", len(batch))
	}

	if err := idx.markDone(ctx, table); err != nil {
		return "", err
	}
	return table, nil
}

func (idx *Indexer) isDone(ctx context.Context, table string) (bool, error) {
	results, err := idx.Provider.SearchWithFilter(ctx, table, vectorstore.PadVector(nil), 1, map[string]any{"marker": doneMarkerValue})
	if err != nil {
		// A not-yet-created table reads as empty, not an error.
		return false, nil
	}
	return len(results) > 0, nil
}

func (idx *Indexer) markDone(ctx context.Context, table string) error {
	marker := vectorstore.PadVector(nil)
	meta := map[string]any{"content": doneMarkerValue, "marker": doneMarkerValue}
	if err := idx.Provider.Upsert(ctx, table, doneMarkerID, marker, meta); err != nil {
		return fmt.Errorf("failed to write done marker for %s: %w", table, err)
	}
	return nil
}

// fragmentID derives a stable id for a fragment so re-indexing the
// same corpus upserts in place instead of duplicating rows.
func fragmentID(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:16])
}
