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

// SpnlConfig configures an SpnlBackend.
type SpnlConfig struct {
	// BaseURL defaults to "http://localhost:8000".
	BaseURL string
	Client  *httpclient.Client
}

// SpnlBackend speaks the in-house spnl HTTP protocol: the whole
// Generate node is serialized as the IR's own JSON wire format and
// POSTed to /v1/query/execute (or /v1/query/prepare for planning-only
// calls) as a text/plain body; the server is itself another spnl
// instance recursing into the same query language one level down.
type SpnlBackend struct {
	cfg SpnlConfig
}

// NewSpnlBackend creates a backend bound to cfg.
func NewSpnlBackend(cfg SpnlConfig) *SpnlBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:8000"
	}
	if cfg.Client == nil {
		cfg.Client = httpclient.New()
	}
	return &SpnlBackend{cfg: cfg}
}

func (b *SpnlBackend) Name() string { return "spnl" }

func (b *SpnlBackend) Capabilities() Capability {
	return CapCompletion | CapChat | CapSpan
}

type spnlChoiceMessage struct {
	Content string `json:"content"`
}

type spnlChoice struct {
	Message spnlChoiceMessage `json:"message"`
}

type spnlResponse struct {
	Choices []spnlChoice `json:"choices"`
}

// query issues one Generate over input/meta to the remote spnl
// endpoint, returning the assistant text ("prepared" for a prepare
// call, which never decodes tokens).
func (b *SpnlBackend) query(ctx context.Context, model string, input ir.Query, meta ir.GenerateMetadata, prepare bool) (string, error) {
	generate := &ir.Generate{Metadata: ir.GenerateMetadata{Model: model, MaxTokens: meta.MaxTokens, Temperature: meta.Temperature}, Input: input}
	body, err := ir.Marshal(generate)
	if err != nil {
		return "", fmt.Errorf("failed to encode spnl query: %w", err)
	}

	endpoint := "/v1/query/execute"
	if prepare {
		endpoint = "/v1/query/prepare"
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, b.cfg.BaseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to build spnl request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "text/plain")

	resp, err := b.cfg.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("backend %s: request failed: %w", b.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("backend %s: HTTP %d", b.Name(), resp.StatusCode)
	}

	if prepare {
		return "prepared", nil
	}

	var decoded spnlResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return "", fmt.Errorf("backend %s: failed to decode response: %w", b.Name(), err)
	}
	if len(decoded.Choices) == 0 {
		return "", fmt.Errorf("backend %s: empty choices in response", b.Name())
	}
	return decoded.Choices[0].Message.Content, nil
}

// GenerateCompletion issues one query per input, in positional order.
func (b *SpnlBackend) GenerateCompletion(ctx context.Context, m *ir.Map, opts CallOptions) (*ir.Par, error) {
	out := &ir.Par{Items: make([]ir.Query, len(m.Inputs))}
	for i, input := range m.Inputs {
		text, err := b.query(ctx, m.Metadata.Model, input, m.Metadata, opts.Prepare)
		if err != nil {
			return nil, fmt.Errorf("completion %d failed: %w", i, err)
		}
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: text}
	}
	return out, nil
}

// GenerateChat issues r.N independent queries against identical input.
func (b *SpnlBackend) GenerateChat(ctx context.Context, r *ir.Repeat, opts CallOptions) (*ir.Par, error) {
	out := &ir.Par{Items: make([]ir.Query, r.N)}
	for i := 0; i < r.N; i++ {
		text, err := b.query(ctx, r.Generate.Metadata.Model, r.Generate.Input, r.Generate.Metadata, opts.Prepare)
		if err != nil {
			return nil, fmt.Errorf("chat repeat %d failed: %w", i, err)
		}
		out.Items[i] = &ir.Message{Role: ir.RoleAssistant, Text: text}
	}
	return out, nil
}

// Embed is unsupported: the spnl protocol only exposes generation.
func (b *SpnlBackend) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return nil, spnlerr.NewCapabilityUnsupported(b.Name(), "embed", nil)
}

// PullIfNeeded is a no-op: the remote spnl server manages its own
// model availability.
func (b *SpnlBackend) PullIfNeeded(ctx context.Context, model string, progress ProgressFunc) error {
	return nil
}

var _ Backend = (*SpnlBackend)(nil)
