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
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/spnl-dev/spnl/pkg/httpclient"
	"github.com/spnl-dev/spnl/pkg/ir"
)

// OpenAIConfig configures an OpenAIBackend.
type OpenAIConfig struct {
	// BaseURL defaults to "https://api.openai.com/v1"; an
	// OpenAI-compatible endpoint (vLLM, together.ai, etc.) may be
	// substituted here.
	BaseURL string
	APIKey  string
	Client  *httpclient.Client
}

// OpenAIBackend talks the OpenAI chat-completions wire protocol: it
// does not use the Responses API or any tool-calling surface, since
// the query-tree IR has no notion of tool calls — only messages and
// generation metadata.
type OpenAIBackend struct {
	cfg OpenAIConfig
}

// NewOpenAIBackend creates a backend bound to cfg. A zero-value Client
// is replaced with httpclient.New()'s defaults.
func NewOpenAIBackend(cfg OpenAIConfig) *OpenAIBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.New()
	}
	return &OpenAIBackend{cfg: cfg}
}

func (b *OpenAIBackend) Name() string { return "openai" }

func (b *OpenAIBackend) Capabilities() Capability {
	return CapCompletion | CapChat | CapEmbed
}

type openAIChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIChatRequest struct {
	Model               string              `json:"model"`
	Messages            []openAIChatMessage `json:"messages"`
	Temperature         *float32            `json:"temperature,omitempty"`
	MaxCompletionTokens *int                `json:"max_completion_tokens,omitempty"`
	N                   int                 `json:"n,omitempty"`
	Stream              bool                `json:"stream"`
}

type openAIChatStreamChunk struct {
	Choices []struct {
		Index int `json:"index"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason *string `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// flattenToMessages collapses a Query subtree into the OpenAI chat
// message list: every Message leaf becomes one role/content entry, in
// tree order.
func flattenToMessages(q ir.Query) []openAIChatMessage {
	var out []openAIChatMessage
	var walk func(ir.Query)
	walk = func(q ir.Query) {
		if m, ok := q.(*ir.Message); ok {
			out = append(out, openAIChatMessage{Role: string(m.Role), Content: m.Text})
			return
		}
		for _, c := range q.Children() {
			walk(c)
		}
	}
	walk(q)
	return out
}

// streamChat issues one chat-completions request with n choices and
// demultiplexes the SSE stream by choice index into n ordered string
// builders, invoking progress per-task as deltas arrive.
func (b *OpenAIBackend) streamChat(ctx context.Context, model string, messages []openAIChatMessage, meta ir.GenerateMetadata, n int, opts CallOptions) ([]string, error) {
	if opts.Prepare {
		return nil, fmt.Errorf("backend %s: prepare is not supported", b.Name())
	}

	reqBody := openAIChatRequest{
		Model:               model,
		Messages:            messages,
		Temperature:         meta.Temperature,
		MaxCompletionTokens: meta.MaxTokens,
		N:                   n,
		Stream:              true,
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.cfg.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend %s: request failed: %w", b.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("backend %s: HTTP %d", b.Name(), resp.StatusCode)
	}

	results := make([]strings.Builder, n)
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk openAIChatStreamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			continue
		}
		if chunk.Error != nil {
			return nil, fmt.Errorf("backend %s: %s", b.Name(), chunk.Error.Message)
		}
		for _, choice := range chunk.Choices {
			if choice.Index < 0 || choice.Index >= n {
				continue
			}
			if choice.Delta.Content != "" {
				results[choice.Index].WriteString(choice.Delta.Content)
				if opts.Progress != nil {
					opts.Progress(choice.Index, choice.Delta.Content, false)
				}
			}
			if choice.FinishReason != nil && opts.Progress != nil {
				opts.Progress(choice.Index, "", true)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("backend %s: stream read failed: %w", b.Name(), err)
	}

	out := make([]string, n)
	for i := range results {
		out[i] = results[i].String()
	}
	return out, nil
}

// GenerateCompletion issues one single-choice chat request per input,
// concurrency left to the caller's semaphore (spec's per-invocation
// cap), and assembles a Par of Assistant messages in positional order.
func (b *OpenAIBackend) GenerateCompletion(ctx context.Context, m *ir.Map, opts CallOptions) (*ir.Par, error) {
	out := &ir.Par{Items: make([]ir.Query, len(m.Inputs))}
	for i, input := range m.Inputs {
		messages := flattenToMessages(input)
		texts, err := b.streamChat(ctx, m.Metadata.Model, messages, m.Metadata, 1, opts)
		if err != nil {
			return nil, fmt.Errorf("completion %d failed: %w", i, err)
		}
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: texts[0]}
	}
	return out, nil
}

// GenerateChat issues one request with n choices against r.Generate's
// input, demultiplexing by choice index.
func (b *OpenAIBackend) GenerateChat(ctx context.Context, r *ir.Repeat, opts CallOptions) (*ir.Par, error) {
	messages := flattenToMessages(r.Generate.Input)
	texts, err := b.streamChat(ctx, r.Generate.Metadata.Model, messages, r.Generate.Metadata, r.N, opts)
	if err != nil {
		return nil, fmt.Errorf("chat repeat failed: %w", err)
	}
	out := &ir.Par{Items: make([]ir.Query, r.N)}
	for i, text := range texts {
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: text}
	}
	return out, nil
}

type openAIEmbedRequestBody struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type openAIEmbedResponseBody struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Embed delegates to the /embeddings endpoint, matching the teacher's
// OpenAI embedder wire format (see pkg/retrieval.OpenAIEmbedder).
func (b *OpenAIBackend) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(openAIEmbedRequestBody{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/embeddings", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if b.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+b.cfg.APIKey)
	}

	resp, err := b.cfg.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend %s: embed request failed: %w", b.Name(), err)
	}
	defer resp.Body.Close()

	var body openAIEmbedResponseBody
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("backend %s: failed to decode embed response: %w", b.Name(), err)
	}
	if body.Error != nil {
		return nil, fmt.Errorf("backend %s: %s", b.Name(), body.Error.Message)
	}

	out := make([][]float32, len(texts))
	for _, d := range body.Data {
		if d.Index < 0 || d.Index >= len(out) {
			continue
		}
		out[d.Index] = d.Embedding
	}
	return out, nil
}

// PullIfNeeded is a no-op: hosted OpenAI-compatible models are always
// "present" from the caller's point of view.
func (b *OpenAIBackend) PullIfNeeded(ctx context.Context, model string, progress ProgressFunc) error {
	return nil
}

var _ Backend = (*OpenAIBackend)(nil)
