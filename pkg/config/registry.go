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

package config

import (
	"fmt"

	"github.com/spnl-dev/spnl/pkg/backend"
)

// BuildRegistry constructs a backend.Registry from cfg.Backends. The
// "local" type is not constructible from config alone (it needs an
// in-process backend.EngineLoader supplied by the caller); register it
// separately with registry.Register after calling BuildRegistry.
func BuildRegistry(cfg *Config) (*backend.Registry, error) {
	reg := backend.NewRegistry()

	for name, b := range cfg.Backends {
		prefix := b.Prefix
		if prefix == "" && b.Type != "local" {
			prefix = b.Type + "/"
		}

		built, err := buildOne(b)
		if err != nil {
			return nil, fmt.Errorf("backend %q: %w", name, err)
		}
		if built == nil {
			continue
		}
		reg.Register(built, backend.PrefixMatcher(prefix))
	}

	return reg, nil
}

func buildOne(b *BackendConfig) (backend.Backend, error) {
	switch b.Type {
	case "openai":
		return backend.NewOpenAIBackend(backend.OpenAIConfig{BaseURL: b.BaseURL, APIKey: b.APIKey}), nil
	case "anthropic":
		return backend.NewAnthropicBackend(backend.AnthropicConfig{BaseURL: b.BaseURL, APIKey: b.APIKey}), nil
	case "gemini":
		return backend.NewGeminiBackend(backend.GeminiConfig{BaseURL: b.BaseURL, APIKey: b.APIKey}), nil
	case "ollama":
		return backend.NewOllamaBackend(backend.OllamaConfig{BaseURL: b.BaseURL}), nil
	case "spnl":
		return backend.NewSpnlBackend(backend.SpnlConfig{BaseURL: b.BaseURL}), nil
	case "local":
		// Caller registers this one; config alone can't supply an
		// EngineLoader.
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown backend type %q", b.Type)
	}
}
