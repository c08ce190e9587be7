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

package executor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/spnl-dev/spnl/pkg/ir"
)

// runOrdered evaluates items left-to-right, each awaiting the prior's
// completion (Seq/Cross semantics). A Monad child's result (always an
// empty marker message) is elided from the returned slice: Monad's
// whole purpose is to run something for its side effects and discard
// the result, so it should not survive as a placeholder sibling in the
// reassembled container.
func (e *Executor) runOrdered(ctx context.Context, items []ir.Query, opts ExecuteOptions) ([]ir.Query, error) {
	out := make([]ir.Query, 0, len(items))
	for _, item := range items {
		result, err := e.runSubtree(ctx, item, opts)
		if err != nil {
			return nil, err
		}
		if isMonad(item) {
			continue
		}
		out = append(out, result)
	}
	return out, nil
}

// runConcurrent evaluates items concurrently, canceling the remaining
// siblings as soon as any one fails and surfacing that first error.
// Results are reassembled in original positional order regardless of
// completion order. Monad children are elided as in runOrdered.
func (e *Executor) runConcurrent(ctx context.Context, items []ir.Query, opts ExecuteOptions) ([]ir.Query, error) {
	results := make([]ir.Query, len(items))
	group, groupCtx := errgroup.WithContext(ctx)
	for i, item := range items {
		i, item := i, item
		group.Go(func() error {
			result, err := e.runSubtree(groupCtx, item, opts)
			if err != nil {
				return err
			}
			results[i] = result
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	out := make([]ir.Query, 0, len(items))
	for i, item := range items {
		if isMonad(item) {
			continue
		}
		out = append(out, results[i])
	}
	return out, nil
}

func isMonad(q ir.Query) bool {
	_, ok := q.(*ir.Monad)
	return ok
}

// singleOrEmpty collapses a single-original-child Par/Plus's filtered
// result: the common case returns its one element, but a sole Monad
// child elides to nothing, so the collapse falls back to the empty
// marker rather than indexing an empty slice.
func singleOrEmpty(items []ir.Query) ir.Query {
	if len(items) == 0 {
		return ir.Empty()
	}
	return items[0]
}
