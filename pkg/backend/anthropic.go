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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/spnl-dev/spnl/pkg/httpclient"
	"github.com/spnl-dev/spnl/pkg/ir"
	"github.com/spnl-dev/spnl/pkg/spnlerr"
)

const defaultAnthropicBaseURL = "https://api.anthropic.com"

// AnthropicConfig configures an AnthropicBackend.
type AnthropicConfig struct {
	// BaseURL defaults to "https://api.anthropic.com".
	BaseURL string
	APIKey  string
	Client  *httpclient.Client
}

// AnthropicBackend speaks the native Claude Messages API
// (/v1/messages), distinct from the OpenAI-compatible wire shape: its
// system prompt is a top-level field rather than a "system" message,
// and max_tokens is mandatory rather than optional.
type AnthropicBackend struct {
	cfg AnthropicConfig
}

// NewAnthropicBackend creates a backend bound to cfg.
func NewAnthropicBackend(cfg AnthropicConfig) *AnthropicBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultAnthropicBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.New()
	}
	return &AnthropicBackend{cfg: cfg}
}

func (b *AnthropicBackend) Name() string { return "anthropic" }

func (b *AnthropicBackend) Capabilities() Capability {
	return CapCompletion | CapChat
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicRequest struct {
	Model       string             `json:"model"`
	Messages    []anthropicMessage `json:"messages"`
	System      string             `json:"system,omitempty"`
	MaxTokens   int                `json:"max_tokens"`
	Temperature *float32           `json:"temperature,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type anthropicError struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type anthropicResponse struct {
	Content []anthropicContentBlock `json:"content"`
	Error   *anthropicError         `json:"error,omitempty"`
}

const defaultAnthropicMaxTokens = 4096

func flattenToAnthropicMessages(q ir.Query) (system string, messages []anthropicMessage) {
	var walk func(ir.Query)
	walk = func(q ir.Query) {
		if m, ok := q.(*ir.Message); ok {
			if m.Role == ir.RoleSystem {
				if system != "" {
					system += "\n"
				}
				system += m.Text
				return
			}
			messages = append(messages, anthropicMessage{Role: string(m.Role), Content: m.Text})
			return
		}
		for _, c := range q.Children() {
			walk(c)
		}
	}
	walk(q)
	return system, messages
}

func (b *AnthropicBackend) call(ctx context.Context, model string, input ir.Query, meta ir.GenerateMetadata) (string, error) {
	system, messages := flattenToAnthropicMessages(input)

	maxTokens := defaultAnthropicMaxTokens
	if meta.MaxTokens != nil {
		maxTokens = *meta.MaxTokens
	}

	reqBody := anthropicRequest{
		Model:       model,
		Messages:    messages,
		System:      system,
		MaxTokens:   maxTokens,
		Temperature: meta.Temperature,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", b.cfg.APIKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := b.cfg.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("backend %s: request failed: %w", b.Name(), err)
	}
	defer resp.Body.Close()

	var decoded anthropicResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("backend %s: failed to decode response: %w", b.Name(), err)
	}
	if decoded.Error != nil {
		return "", fmt.Errorf("backend %s: %s: %s", b.Name(), decoded.Error.Type, decoded.Error.Message)
	}

	var out string
	for _, block := range decoded.Content {
		if block.Type == "text" {
			out += block.Text
		}
	}
	return out, nil
}

// GenerateCompletion issues one request per input, in positional order.
func (b *AnthropicBackend) GenerateCompletion(ctx context.Context, m *ir.Map, opts CallOptions) (*ir.Par, error) {
	out := &ir.Par{Items: make([]ir.Query, len(m.Inputs))}
	for i, input := range m.Inputs {
		text, err := b.call(ctx, m.Metadata.Model, input, m.Metadata)
		if err != nil {
			return nil, fmt.Errorf("completion %d failed: %w", i, err)
		}
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: text}
	}
	return out, nil
}

// GenerateChat issues r.N independent requests against identical input.
func (b *AnthropicBackend) GenerateChat(ctx context.Context, r *ir.Repeat, opts CallOptions) (*ir.Par, error) {
	out := &ir.Par{Items: make([]ir.Query, r.N)}
	for i := 0; i < r.N; i++ {
		text, err := b.call(ctx, r.Generate.Metadata.Model, r.Generate.Input, r.Generate.Metadata)
		if err != nil {
			return nil, fmt.Errorf("chat repeat %d failed: %w", i, err)
		}
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: text}
	}
	return out, nil
}

// Embed is unsupported: Anthropic does not expose an embeddings API.
func (b *AnthropicBackend) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return nil, spnlerr.NewCapabilityUnsupported(b.Name(), "embed", nil)
}

// PullIfNeeded is a no-op: Anthropic is a hosted API with no local
// weights to fetch.
func (b *AnthropicBackend) PullIfNeeded(ctx context.Context, model string, progress ProgressFunc) error {
	return nil
}

var _ Backend = (*AnthropicBackend)(nil)
