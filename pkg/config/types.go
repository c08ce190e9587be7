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

	"github.com/spnl-dev/spnl/pkg/retrieval/vectorstore"
)

// BackendConfig configures one named backend instance. Type selects
// which concrete backend.Backend it builds: "openai", "anthropic",
// "gemini", "ollama", "spnl", or "local".
type BackendConfig struct {
	Type    string `yaml:"type"`
	BaseURL string `yaml:"base_url,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"`
	// Prefix overrides the model-name prefix this backend is registered
	// under. Empty means Type + "/". BuildRegistry never registers a
	// "local" backend; the caller registers that one itself.
	Prefix string `yaml:"prefix,omitempty"`
}

func (c *BackendConfig) validate(name string) error {
	switch c.Type {
	case "openai", "anthropic", "gemini", "ollama", "spnl", "local":
	case "":
		return fmt.Errorf("backend %q: type is required", name)
	default:
		return fmt.Errorf("backend %q: unknown type %q", name, c.Type)
	}
	return nil
}

// RetrievalConfig configures the default retrieval pipeline used to
// resolve Augment nodes.
type RetrievalConfig struct {
	// Provider selects the vector store: "chromem" (default,
	// zero-config, embedded), "qdrant", "pinecone", or "weaviate".
	Provider string `yaml:"provider,omitempty"`

	Chromem  *vectorstore.ChromemConfig  `yaml:"chromem,omitempty"`
	Qdrant   *vectorstore.QdrantConfig   `yaml:"qdrant,omitempty"`
	Pinecone *vectorstore.PineconeConfig `yaml:"pinecone,omitempty"`
	Weaviate *vectorstore.WeaviateConfig `yaml:"weaviate,omitempty"`

	// Embedder names the backend (or embedder-only provider) used to
	// embed fragments and queries.
	Embedder string `yaml:"embedder,omitempty"`
	// MaxDistance filters retrieved fragments below this similarity
	// score. 0 disables filtering.
	MaxDistance float64 `yaml:"max_distance,omitempty"`
	// WindowSize and WindowStep control document windowing before
	// embedding (words per window, stride between windows in words).
	WindowSize int `yaml:"window_size,omitempty"`
	WindowStep int `yaml:"window_step,omitempty"`
}

func (c *RetrievalConfig) setDefaults() {
	if c.Provider == "" {
		c.Provider = "chromem"
	}
	if c.Provider == "chromem" && c.Chromem == nil {
		c.Chromem = &vectorstore.ChromemConfig{}
	}
	if c.WindowSize == 0 {
		c.WindowSize = 8
	}
	if c.WindowStep == 0 {
		c.WindowStep = 2
	}
}

func (c *RetrievalConfig) validate() error {
	switch c.Provider {
	case "chromem", "":
	case "qdrant":
		if c.Qdrant == nil || c.Qdrant.Host == "" {
			return fmt.Errorf("retrieval: qdrant.host is required")
		}
	case "pinecone":
		if c.Pinecone == nil || c.Pinecone.APIKey == "" {
			return fmt.Errorf("retrieval: pinecone.api_key is required")
		}
	case "weaviate":
		if c.Weaviate == nil || c.Weaviate.Host == "" {
			return fmt.Errorf("retrieval: weaviate.host is required")
		}
	default:
		return fmt.Errorf("retrieval: unknown provider %q", c.Provider)
	}
	if c.WindowSize > 0 && c.WindowStep > c.WindowSize {
		return fmt.Errorf("retrieval: window_step (%d) cannot exceed window_size (%d)", c.WindowStep, c.WindowSize)
	}
	return nil
}

// providerConfig builds the vectorstore.ProviderConfig this retrieval
// config describes.
func (c *RetrievalConfig) providerConfig() *vectorstore.ProviderConfig {
	return &vectorstore.ProviderConfig{
		Type:     vectorstore.ProviderType(c.Provider),
		Chromem:  c.Chromem,
		Qdrant:   c.Qdrant,
		Pinecone: c.Pinecone,
		Weaviate: c.Weaviate,
	}
}

// ExecuteConfig tunes a default executor.Executor built from this
// config.
type ExecuteConfig struct {
	// Concurrency bounds in-flight backend calls; <= 0 uses the
	// executor package's default.
	Concurrency int `yaml:"concurrency,omitempty"`
	// Time selects default timing instrumentation ("none", "gen1",
	// "gen", "all").
	Time string `yaml:"time,omitempty"`
}

func (c *ExecuteConfig) setDefaults() {
	if c.Time == "" {
		c.Time = "none"
	}
}

func (c *ExecuteConfig) validate() error {
	switch c.Time {
	case "none", "gen1", "gen", "all", "":
	default:
		return fmt.Errorf("execute: unknown time mode %q", c.Time)
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("execute: concurrency cannot be negative")
	}
	return nil
}

// LoggerConfig configures the process-wide structured logger.
type LoggerConfig struct {
	Level  string `yaml:"level,omitempty"`
	File   string `yaml:"file,omitempty"`
	Format string `yaml:"format,omitempty"`
}

func (c *LoggerConfig) setDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "simple"
	}
}

func (c *LoggerConfig) validate() error {
	switch c.Level {
	case "debug", "info", "warn", "warning", "error", "":
	default:
		return fmt.Errorf("logger: invalid level %q", c.Level)
	}
	return nil
}
