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
	"context"

	"github.com/spnl-dev/spnl/pkg/httpclient"
	"github.com/spnl-dev/spnl/pkg/spnlerr"
)

const defaultGeminiBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"

// GeminiConfig configures a GeminiBackend.
type GeminiConfig struct {
	// BaseURL defaults to Gemini's OpenAI-compatibility endpoint.
	BaseURL string
	APIKey  string
	Client  *httpclient.Client
}

// GeminiBackend dispatches through Gemini's OpenAI-compatibility
// endpoint rather than the native genai SDK: the IR's Backend
// contract only ever needs chat-completions-shaped requests (no tool
// calling, no multimodal parts), so the full SDK surface would add
// weight without adding capability.
type GeminiBackend struct {
	*OpenAIBackend
}

// NewGeminiBackend creates a backend bound to cfg.
func NewGeminiBackend(cfg GeminiConfig) *GeminiBackend {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGeminiBaseURL
	}
	return &GeminiBackend{OpenAIBackend: NewOpenAIBackend(OpenAIConfig{
		BaseURL: baseURL,
		APIKey:  cfg.APIKey,
		Client:  cfg.Client,
	})}
}

func (b *GeminiBackend) Name() string { return "gemini" }

// Capabilities is the OpenAI set minus CapEmbed, since Embed below
// always fails.
func (b *GeminiBackend) Capabilities() Capability {
	return b.OpenAIBackend.Capabilities() &^ CapEmbed
}

// Embed is unsupported: Gemini's OpenAI-compatible surface does not
// expose an /embeddings route; embedding calls must go to the native
// Gemini embedding API, out of scope for this backend.
func (b *GeminiBackend) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return nil, spnlerr.NewCapabilityUnsupported(b.Name(), "embed", nil)
}

var _ Backend = (*GeminiBackend)(nil)
