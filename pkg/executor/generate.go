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
	"fmt"

	"github.com/spnl-dev/spnl/pkg/backend"
	"github.com/spnl-dev/spnl/pkg/ir"
	"github.com/spnl-dev/spnl/pkg/spnlerr"
)

// generateRepeat dispatches Bulk(Repeat{n, g}) (and a bare Generate,
// wrapped by the caller as Repeat{n:1}) to the backend resolved for
// g.Generate's model, bounded by the executor's concurrency semaphore.
func (e *Executor) generateRepeat(ctx context.Context, r *ir.Repeat, opts ExecuteOptions) (ir.Query, error) {
	b, err := e.resolveBackend(r.Generate.Metadata.Model)
	if err != nil {
		return nil, err
	}
	if !b.Capabilities().Has(backend.CapChat) {
		return nil, spnlerr.NewCapabilityUnsupported(b.Name(), "chat", nil)
	}
	if opts.Prepare && !b.Capabilities().Has(backend.CapSpan) {
		return nil, spnlerr.NewCapabilityUnsupported(b.Name(), "prepare", nil)
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, spnlerr.NewCancelled("waiting for a concurrency slot", err)
	}
	defer e.sem.Release(1)

	if opts.Timing != nil {
		for i := 0; i < r.N; i++ {
			opts.Timing.Start(i)
		}
	}

	result, err := b.GenerateChat(ctx, r, e.callOptions(opts))
	if err != nil {
		return nil, spnlerr.NewGenerationFailure(r.Generate.Metadata.Model, err)
	}
	return result, nil
}

// generateMap dispatches Bulk(Map) to the backend resolved for the
// shared metadata's model, one completion per input. Unlike a bare
// Generate, a Map's inputs are passed to the backend as-is: by
// construction they are already-realized message structures with
// nothing left to recursively execute.
func (e *Executor) generateMap(ctx context.Context, m *ir.Map, opts ExecuteOptions) (ir.Query, error) {
	b, err := e.resolveBackend(m.Metadata.Model)
	if err != nil {
		return nil, err
	}
	if !b.Capabilities().Has(backend.CapCompletion) {
		return nil, spnlerr.NewCapabilityUnsupported(b.Name(), "completion", nil)
	}

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, spnlerr.NewCancelled("waiting for a concurrency slot", err)
	}
	defer e.sem.Release(1)

	if opts.Timing != nil {
		for i := range m.Inputs {
			opts.Timing.Start(i)
		}
	}

	result, err := b.GenerateCompletion(ctx, m, e.callOptions(opts))
	if err != nil {
		return nil, spnlerr.NewGenerationFailure(m.Metadata.Model, err)
	}
	return result, nil
}

func (e *Executor) resolveBackend(model string) (backend.Backend, error) {
	if e.Backends == nil {
		return nil, spnlerr.NewModelNotFound(model, fmt.Errorf("no backend registry configured"))
	}
	b, err := e.Backends.Resolve(model)
	if err != nil {
		return nil, spnlerr.NewModelNotFound(model, err)
	}
	return b, nil
}

// callOptions builds the CallOptions a backend receives, wiring its
// streamed output into stdout (unless silenced or timing is active)
// and into the timing hook.
func (e *Executor) callOptions(opts ExecuteOptions) backend.CallOptions {
	return backend.CallOptions{
		Prepare: opts.Prepare,
		Silent:  opts.Silent,
		Progress: func(taskIndex int, delta string, done bool) {
			if opts.Timing != nil {
				if done {
					opts.Timing.Done(taskIndex, nil)
				} else {
					opts.Timing.Token(taskIndex, delta)
				}
			}
			if !opts.Silent && opts.Time == TimeNone && delta != "" {
				fmt.Print(greenText(delta))
			}
		},
	}
}

func greenText(s string) string { return "\x1b[32m" + s + "\x1b[0m" }
