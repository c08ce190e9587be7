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

// Package config loads the process-wide configuration: which backends
// are available and how to reach them, retrieval defaults, execution
// tuning, and logging. Config is YAML with "${VAR}"/"${VAR:-default}"
// environment variable expansion, decoded with
// github.com/mitchellh/mapstructure.
//
// Example:
//
//	backends:
//	  openai:
//	    type: openai
//	    api_key: ${OPENAI_API_KEY}
//	  ollama:
//	    type: ollama
//	    base_url: ${OLLAMA_BASE_URL:-http://localhost:11434}
//
//	retrieval:
//	  provider: chromem
//	  embedder: ollama
//
//	execute:
//	  concurrency: 4
package config

import "fmt"

// Config is the root configuration structure.
type Config struct {
	// Backends defines the named backend instances a Registry is built
	// from. Keys are arbitrary labels; BackendConfig.Prefix (default
	// Type+"/") is what model names are matched against.
	Backends map[string]*BackendConfig `yaml:"backends,omitempty"`

	Retrieval RetrievalConfig `yaml:"retrieval,omitempty"`
	Execute   ExecuteConfig   `yaml:"execute,omitempty"`
	Logger    LoggerConfig    `yaml:"logger,omitempty"`
}

// SetDefaults fills in unset fields with their defaults.
func (c *Config) SetDefaults() {
	c.Retrieval.setDefaults()
	c.Execute.setDefaults()
	c.Logger.setDefaults()
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	for name, b := range c.Backends {
		if b == nil {
			return fmt.Errorf("backend %q: configuration is nil", name)
		}
		if err := b.validate(name); err != nil {
			return err
		}
	}
	if err := c.Retrieval.validate(); err != nil {
		return err
	}
	if err := c.Execute.validate(); err != nil {
		return err
	}
	return c.Logger.validate()
}
