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
	"time"

	"github.com/schollz/progressbar/v3"

	"github.com/spnl-dev/spnl/pkg/httpclient"
	"github.com/spnl-dev/spnl/pkg/ir"
)

const (
	defaultOllamaBaseURL = "http://localhost:11434"
	pullMaxAttempts      = 5
	pullRetryDelay       = 2 * time.Second
)

// OllamaConfig configures an OllamaBackend.
type OllamaConfig struct {
	// BaseURL defaults to "http://localhost:11434".
	BaseURL string
	Client  *httpclient.Client
}

// OllamaBackend talks Ollama's native /api/chat and /api/pull
// endpoints (NDJSON streaming, not SSE).
type OllamaBackend struct {
	cfg OllamaConfig
}

// NewOllamaBackend creates a backend bound to cfg.
func NewOllamaBackend(cfg OllamaConfig) *OllamaBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaBaseURL
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: 300 * time.Second}),
			httpclient.WithMaxRetries(3),
			httpclient.WithBaseDelay(2*time.Second),
		)
	}
	return &OllamaBackend{cfg: cfg}
}

func (b *OllamaBackend) Name() string { return "ollama" }

func (b *OllamaBackend) Capabilities() Capability {
	return CapCompletion | CapChat | CapEmbed | CapPull
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
	Done    bool              `json:"done"`
}

// chatOnce issues a single, non-fanned-out chat request against model
// and returns the fully streamed assistant text. Ollama has no
// concept of n>1 choices per call, so GenerateChat's Repeat fan-out is
// implemented by calling this method r.N times in turn.
func (b *OllamaBackend) chatOnce(ctx context.Context, taskIndex int, model string, messages []ollamaChatMessage, opts CallOptions) (string, error) {
	if opts.Prepare {
		return "", fmt.Errorf("backend %s: prepare is not supported", b.Name())
	}

	reqBody := ollamaChatRequest{Model: model, Messages: messages, Stream: true}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode chat request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/api/chat", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to build chat request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.cfg.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("backend %s: request failed: %w", b.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("backend %s: HTTP %d", b.Name(), resp.StatusCode)
	}

	var out strings.Builder
	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var chunk ollamaChatResponse
		if err := json.Unmarshal([]byte(line), &chunk); err != nil {
			continue
		}
		if chunk.Message.Content != "" {
			out.WriteString(chunk.Message.Content)
			if opts.Progress != nil {
				opts.Progress(taskIndex, chunk.Message.Content, false)
			}
		}
		if chunk.Done {
			if opts.Progress != nil {
				opts.Progress(taskIndex, "", true)
			}
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("backend %s: stream read failed: %w", b.Name(), err)
	}
	return out.String(), nil
}

// GenerateCompletion issues one chat request per input, in positional
// order, returning a Par of Assistant messages.
func (b *OllamaBackend) GenerateCompletion(ctx context.Context, m *ir.Map, opts CallOptions) (*ir.Par, error) {
	out := &ir.Par{Items: make([]ir.Query, len(m.Inputs))}
	for i, input := range m.Inputs {
		messages := flattenToOllamaMessages(input)
		text, err := b.chatOnce(ctx, i, m.Metadata.Model, messages, opts)
		if err != nil {
			return nil, fmt.Errorf("completion %d failed: %w", i, err)
		}
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: text}
	}
	return out, nil
}

// GenerateChat issues r.N sequential chat requests against identical
// input. Ollama serializes one generation per model instance anyway
// (see pkg/retrieval's Ollama embedder note on the llama runner), so
// fanning these out concurrently here would only contend on the same
// server-side queue; the executor's own concurrency cap governs
// cross-call parallelism.
func (b *OllamaBackend) GenerateChat(ctx context.Context, r *ir.Repeat, opts CallOptions) (*ir.Par, error) {
	messages := flattenToOllamaMessages(r.Generate.Input)
	out := &ir.Par{Items: make([]ir.Query, r.N)}
	for i := 0; i < r.N; i++ {
		text, err := b.chatOnce(ctx, i, r.Generate.Metadata.Model, messages, opts)
		if err != nil {
			return nil, fmt.Errorf("chat repeat %d failed: %w", i, err)
		}
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: text}
	}
	return out, nil
}

func flattenToOllamaMessages(q ir.Query) []ollamaChatMessage {
	var out []ollamaChatMessage
	var walk func(ir.Query)
	walk = func(q ir.Query) {
		if m, ok := q.(*ir.Message); ok {
			out = append(out, ollamaChatMessage{Role: string(m.Role), Content: m.Text})
			return
		}
		for _, c := range q.Children() {
			walk(c)
		}
	}
	walk(q)
	return out
}

type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type ollamaEmbedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed calls /api/embed, Ollama's batch embedding endpoint.
func (b *OllamaBackend) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	payload, err := json.Marshal(ollamaEmbedRequest{Model: model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to encode embed request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/api/embed", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build embed request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.cfg.Client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("backend %s: embed request failed: %w", b.Name(), err)
	}
	defer resp.Body.Close()

	var body ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("backend %s: failed to decode embed response: %w", b.Name(), err)
	}
	return body.Embeddings, nil
}

type ollamaTagsResponse struct {
	Models []struct {
		Model string `json:"model"`
	} `json:"models"`
}

func (b *OllamaBackend) exists(ctx context.Context, model string) (bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, b.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return false, err
	}
	resp, err := b.cfg.Client.Do(httpReq)
	if err != nil {
		return false, err
	}
	defer resp.Body.Close()

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return false, err
	}
	for _, m := range tags.Models {
		if m.Model == model {
			return true, nil
		}
	}
	return false, nil
}

type ollamaPullRequest struct {
	Model    string `json:"model"`
	Insecure bool   `json:"insecure"`
	Stream   bool   `json:"stream"`
}

type ollamaPullStatus struct {
	Status    string `json:"status"`
	Digest    string `json:"digest"`
	Total     int64  `json:"total"`
	Completed int64  `json:"completed"`
	Error     string `json:"error"`
}

type ollamaDeleteRequest struct {
	Model string `json:"model"`
	Name  string `json:"name"`
}

// PullIfNeeded ensures model is present locally, retrying up to
// pullMaxAttempts times on a transient "error" status (deleting the
// partial model and backing off pullRetryDelay between attempts), and
// failing immediately if the manifest does not exist. Progress is
// rendered as one bar per content digest, matching Ollama's own
// multi-layer download reporting.
func (b *OllamaBackend) PullIfNeeded(ctx context.Context, model string, progress ProgressFunc) error {
	var lastErr error

	for attempt := 0; attempt < pullMaxAttempts; attempt++ {
		present, err := b.exists(ctx, model)
		if err != nil {
			return fmt.Errorf("backend %s: failed to check model presence: %w", b.Name(), err)
		}
		if present {
			return nil
		}

		lastErr = b.pullOnce(ctx, model, progress)
		if lastErr == nil {
			return nil
		}
		if strings.Contains(lastErr.Error(), "manifest") {
			return lastErr
		}

		b.deleteModel(ctx, model)
		time.Sleep(pullRetryDelay)
	}

	return fmt.Errorf("backend %s: failed to pull %s after %d attempts: %w", b.Name(), model, pullMaxAttempts, lastErr)
}

func (b *OllamaBackend) deleteModel(ctx context.Context, model string) {
	payload, _ := json.Marshal(ollamaDeleteRequest{Model: model, Name: model})
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodDelete, b.cfg.BaseURL+"/api/delete", bytes.NewReader(payload))
	if err != nil {
		return
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := b.cfg.Client.Do(httpReq)
	if err == nil {
		resp.Body.Close()
	}
}

func (b *OllamaBackend) pullOnce(ctx context.Context, model string, progress ProgressFunc) error {
	payload, err := json.Marshal(ollamaPullRequest{Model: model, Insecure: false, Stream: true})
	if err != nil {
		return fmt.Errorf("failed to encode pull request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+"/api/pull", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to build pull request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := b.cfg.Client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("pull request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("pull request returned HTTP %d", resp.StatusCode)
	}

	bars := make(map[string]*progressbar.ProgressBar)

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		var status ollamaPullStatus
		if err := json.Unmarshal([]byte(line), &status); err != nil {
			continue
		}

		if status.Error != "" {
			if strings.Contains(status.Error, "manifest") {
				return fmt.Errorf("%s", status.Error)
			}
			return fmt.Errorf("%s", status.Error)
		}

		lower := strings.ToLower(status.Status)

		if status.Digest != "" {
			bar, ok := bars[status.Digest]
			if !ok {
				bar = progressbar.NewOptions64(status.Total,
					progressbar.OptionSetDescription(lower),
					progressbar.OptionShowBytes(true))
				bars[status.Digest] = bar
			}
			if status.Total > 0 {
				bar.ChangeMax64(status.Total)
			}
			bar.Set64(status.Completed)
		} else if progress != nil {
			progress(0, lower, false)
		}

		if lower == "error" {
			return fmt.Errorf("ollama streaming error: %s", line)
		}
		if lower == "success" {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("pull stream read failed: %w", err)
	}

	for _, bar := range bars {
		_ = bar.Close()
	}
	if progress != nil {
		progress(0, "", true)
	}
	return nil
}

var _ Backend = (*OllamaBackend)(nil)
