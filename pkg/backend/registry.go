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

package backend

import (
	"fmt"
	"strings"
	"sync"
)

// Matcher reports whether a Backend claims a given model name. Each
// registered backend owns its own prefix rule (or, for the local
// engine, the absence of any recognized prefix) rather than the
// registry hard-coding a prefix table — a new backend is added by
// registering it, not by editing a dispatch switch.
type Matcher func(model string) bool

// PrefixMatcher returns a Matcher that claims every model name
// beginning with prefix (e.g. "ollama/", "openai/", "gemini/", "spnl/").
func PrefixMatcher(prefix string) Matcher {
	return func(model string) bool { return strings.HasPrefix(model, prefix) }
}

// registration pairs a backend with the rule that routes models to it.
type registration struct {
	backend Backend
	match   Matcher
}

// Registry resolves a model name to the Backend responsible for it.
// Backends register in priority order; the first match wins, so a
// catch-all (the local engine, matching any name without a
// recognized prefix) must register last.
type Registry struct {
	mu   sync.RWMutex
	regs []registration
}

// NewRegistry creates an empty backend registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds b to the registry, claiming any model name for which
// match returns true. Later registrations are only consulted after
// earlier ones fail to match.
func (r *Registry) Register(b Backend, match Matcher) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.regs = append(r.regs, registration{backend: b, match: match})
}

// Resolve returns the Backend claiming model, or an error if no
// registered backend matches it.
func (r *Registry) Resolve(model string) (Backend, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, reg := range r.regs {
		if reg.match(model) {
			return reg.backend, nil
		}
	}
	return nil, fmt.Errorf("backend: no backend registered for model %q", model)
}

// Backends returns every registered backend, in registration order.
func (r *Registry) Backends() []Backend {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Backend, len(r.regs))
	for i, reg := range r.regs {
		out[i] = reg.backend
	}
	return out
}
