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

// Package modelpool implements the process-wide shared-instance cache
// for in-process (local/HF-style) backends: a per-model list of
// loaded instances, grown on demand and never evicted, that lets
// concurrent generations reuse an idle instance's device handle,
// tokenizer, and KV-cache position instead of reloading weights.
package modelpool

import (
	"context"
	"fmt"
	"sync"
)

// Loader constructs a fresh model instance. Loading may take seconds
// (reading weights off disk, warming a device) so it runs outside the
// pool's lock.
type Loader[T any] func(ctx context.Context, name string) (T, error)

type instance[T any] struct {
	mu    sync.Mutex
	busy  bool
	value T
}

// Handle is a checked-out model instance. The caller must call
// Release exactly once when done, so the instance becomes available
// to the next caller.
type Handle[T any] struct {
	inst  *instance[T]
	Value T
}

// Release returns the instance to the pool. It never evicts the
// instance — only marks it available for the next checkout.
func (h *Handle[T]) Release() {
	h.inst.mu.Lock()
	h.inst.busy = false
	h.inst.mu.Unlock()
}

// Pool is a process-wide mapping model_name -> list of shared
// instances, bounded implicitly by peak concurrent demand: it never
// shrinks, and only grows when every existing instance for a model is
// busy at checkout time.
type Pool[T any] struct {
	mu        sync.Mutex
	instances map[string][]*instance[T]
	load      Loader[T]
}

// New creates a model pool that loads new instances with load.
func New[T any](load Loader[T]) *Pool[T] {
	return &Pool[T]{instances: make(map[string][]*instance[T]), load: load}
}

// GetOrLoad returns a handle to an idle instance of name, loading a
// new one if every existing instance is currently checked out.
// Concurrent callers for the same model never block on a second load
// unless all current instances are busy — the scan-and-mark runs
// under a single lock, but the (possibly slow) load itself does not.
func (p *Pool[T]) GetOrLoad(ctx context.Context, name string) (*Handle[T], error) {
	if name == "" {
		return nil, fmt.Errorf("modelpool: model name is required")
	}

	p.mu.Lock()
	for _, inst := range p.instances[name] {
		inst.mu.Lock()
		if !inst.busy {
			inst.busy = true
			inst.mu.Unlock()
			p.mu.Unlock()
			return &Handle[T]{inst: inst, Value: inst.value}, nil
		}
		inst.mu.Unlock()
	}
	p.mu.Unlock()

	value, err := p.load(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load model %s: %w", name, err)
	}

	inst := &instance[T]{busy: true, value: value}

	p.mu.Lock()
	p.instances[name] = append(p.instances[name], inst)
	p.mu.Unlock()

	return &Handle[T]{inst: inst, Value: value}, nil
}

// InstanceCount returns the number of loaded instances for name,
// mainly for tests and diagnostics.
func (p *Pool[T]) InstanceCount(name string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.instances[name])
}
