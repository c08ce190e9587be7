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

// Package executor walks an already-optimized query tree and runs it:
// Seq/Cross sequentially, Par/Plus/Bulk concurrently bounded by a
// counting semaphore, Generate/Repeat/Map dispatched to a backend
// resolved by model name, Monad/Print/Ask handled as local side
// effects. The public entry point is Execute.
package executor

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/spnl-dev/spnl/pkg/backend"
	"github.com/spnl-dev/spnl/pkg/ir"
	"github.com/spnl-dev/spnl/pkg/optimizer"
	"github.com/spnl-dev/spnl/pkg/spnlerr"
)

// TimeMode selects what Execute records timing for, mirroring the
// `time` execute option.
type TimeMode string

const (
	TimeNone TimeMode = "none"
	TimeGen1 TimeMode = "gen1"
	TimeGen  TimeMode = "gen"
	TimeAll  TimeMode = "all"
)

// defaultConcurrency bounds simultaneous in-flight generations per
// invocation when the caller does not override it. Local engines
// backed by a model pool typically pass a higher value.
const defaultConcurrency = 2

// TimingHook receives lifecycle events for a single Generate/Repeat/Map
// dispatch so a timing recorder can compute TTFT, total duration, and
// token counts without the executor depending on the timing package.
// A nil hook (the default) records nothing.
type TimingHook interface {
	// Start marks the beginning of a dispatch for task index idx
	// (always 0 for a plain Generate; 0..n-1 for Repeat's n calls and
	// for Map's per-input calls).
	Start(idx int)
	// Token marks a streamed delta for idx; the hook itself decides
	// whether this is the first (for TTFT) or a later one.
	Token(idx int, delta string)
	// Done marks completion of idx, successful or not.
	Done(idx int, err error)
}

// ExecuteOptions tunes a single Execute call.
type ExecuteOptions struct {
	// Prepare requests planning-only generation across the whole
	// tree: backends validate but do not decode tokens.
	Prepare bool
	// Time selects what timing instrumentation records.
	Time TimeMode
	// Silent suppresses streamed stdout output (progress bars, if
	// any, still update).
	Silent bool
	// Timing receives lifecycle events when non-nil.
	Timing TimingHook
	// AskHistoryFile names the file Ask persists readline history
	// to. Empty disables history persistence.
	AskHistoryFile string
}

// Executor runs an optimized query tree against a registry of
// backends.
type Executor struct {
	Backends    *backend.Registry
	Concurrency int

	sem *semaphore.Weighted
}

// New creates an Executor. concurrency <= 0 uses defaultConcurrency.
func New(backends *backend.Registry, concurrency int) *Executor {
	if concurrency <= 0 {
		concurrency = defaultConcurrency
	}
	return &Executor{
		Backends:    backends,
		Concurrency: concurrency,
		sem:         semaphore.NewWeighted(int64(concurrency)),
	}
}

// Execute is the public entry point: run query to completion and
// return the result tree. The input must already be optimizer output
// (no Augment nodes).
func (e *Executor) Execute(ctx context.Context, query ir.Query, opts ExecuteOptions) (ir.Query, error) {
	return e.runSubtree(ctx, query, opts)
}

// runSubtree evaluates query and simplifies the result, mirroring the
// per-node wrap applied throughout the original recursive walk: every
// intermediate result is tidied (singleton collapse, nested-Seq
// flattening) before it becomes part of a larger result tree.
func (e *Executor) runSubtree(ctx context.Context, query ir.Query, opts ExecuteOptions) (ir.Query, error) {
	result, err := e.runSubtreeOnce(ctx, query, opts)
	if err != nil {
		return nil, err
	}
	return optimizer.Simplify(result), nil
}

func (e *Executor) runSubtreeOnce(ctx context.Context, query ir.Query, opts ExecuteOptions) (ir.Query, error) {
	select {
	case <-ctx.Done():
		return nil, spnlerr.NewCancelled("context cancelled", ctx.Err())
	default:
	}

	switch v := query.(type) {
	case *ir.Message:
		return v, nil

	case *ir.Seq:
		items, err := e.runOrdered(ctx, v.Items, opts)
		if err != nil {
			return nil, err
		}
		return &ir.Seq{Items: items}, nil

	case *ir.Cross:
		items, err := e.runOrdered(ctx, v.Items, opts)
		if err != nil {
			return nil, err
		}
		return &ir.Cross{Items: items}, nil

	case *ir.Par:
		items, err := e.runConcurrent(ctx, v.Items, opts)
		if err != nil {
			return nil, err
		}
		if len(v.Items) == 1 {
			return singleOrEmpty(items), nil
		}
		return &ir.Par{Items: items}, nil

	case *ir.Plus:
		items, err := e.runConcurrent(ctx, v.Items, opts)
		if err != nil {
			return nil, err
		}
		if len(v.Items) == 1 {
			return singleOrEmpty(items), nil
		}
		return &ir.Plus{Items: items}, nil

	case *ir.Monad:
		if _, err := e.runSubtree(ctx, v.Query, opts); err != nil {
			return nil, err
		}
		return ir.Empty(), nil

	case *ir.Repeat:
		return e.generateRepeat(ctx, v, opts)

	case *ir.Map:
		return e.generateMap(ctx, v, opts)

	case *ir.Generate:
		input, err := e.runSubtree(ctx, v.Input, opts)
		if err != nil {
			return nil, err
		}
		return e.generateRepeat(ctx, &ir.Repeat{N: 1, Generate: &ir.Generate{Metadata: v.Metadata, Input: input}}, opts)

	case *ir.Print:
		if opts.Time == TimeNone {
			e.printLine(v.Text)
		}
		return ir.Empty(), nil

	case *ir.Ask:
		return e.ask(v, opts)

	case *ir.Augment:
		return nil, spnlerr.NewParseError("augment", "unreachable after optimize", errAugmentUnreachable)

	default:
		return nil, spnlerr.NewParseError("unknown", "unrecognized query node", errUnknownNode)
	}
}
