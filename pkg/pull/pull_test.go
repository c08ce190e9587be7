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

package pull

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spnl-dev/spnl/pkg/backend"
	"github.com/spnl-dev/spnl/pkg/ir"
)

func TestExtractModelsDedupsAndSorts(t *testing.T) {
	q := &ir.Plus{Items: []ir.Query{
		&ir.Generate{Metadata: ir.GenerateMetadata{Model: "b"}, Input: ir.User("x")},
		&ir.Augment{EmbeddingModel: "a", Body: ir.User("q"), DocName: "d", Doc: ir.TextDocument{Content: "c"}},
		&ir.Repeat{N: 2, Generate: &ir.Generate{Metadata: ir.GenerateMetadata{Model: "b"}, Input: ir.User("y")}},
	}}

	models := ExtractModels(q)
	require.Equal(t, []string{"a", "b"}, models)
}

func TestExtractModelsFromMap(t *testing.T) {
	q := &ir.Map{Metadata: ir.GenerateMetadata{Model: "m"}, Inputs: []ir.Query{ir.User("x"), ir.User("y")}}
	require.Equal(t, []string{"m"}, ExtractModels(q))
}

func TestIfNeededSkipsBackendsWithoutPullCapability(t *testing.T) {
	noPull := &pullCapabilityStub{caps: backend.CapChat}
	reg := backend.NewRegistry()
	reg.Register(noPull, func(string) bool { return true })

	q := &ir.Generate{Metadata: ir.GenerateMetadata{Model: "m"}, Input: ir.User("hi")}
	err := IfNeeded(context.Background(), reg, q, Options{})
	require.NoError(t, err)
	require.Equal(t, 0, noPull.pullCalls)
}

func TestIfNeededPullsEachModelOnce(t *testing.T) {
	puller := &pullCapabilityStub{caps: backend.CapChat | backend.CapPull}
	reg := backend.NewRegistry()
	reg.Register(puller, func(string) bool { return true })

	q := &ir.Par{Items: []ir.Query{
		&ir.Generate{Metadata: ir.GenerateMetadata{Model: "m"}, Input: ir.User("hi")},
		&ir.Generate{Metadata: ir.GenerateMetadata{Model: "m"}, Input: ir.User("there")},
	}}
	require.NoError(t, IfNeeded(context.Background(), reg, q, Options{}))
	require.Equal(t, 1, puller.pullCalls)
}

func TestIfNeededSurfacesPullFailure(t *testing.T) {
	failing := &pullCapabilityStub{caps: backend.CapChat | backend.CapPull, pullErr: errPullFailed}
	reg := backend.NewRegistry()
	reg.Register(failing, func(string) bool { return true })

	q := &ir.Generate{Metadata: ir.GenerateMetadata{Model: "m"}, Input: ir.User("hi")}
	err := IfNeeded(context.Background(), reg, q, Options{})
	require.Error(t, err)
}

var errPullFailed = errNew("pull failed")

func errNew(s string) error { return &stubError{s} }

type stubError struct{ s string }

func (e *stubError) Error() string { return e.s }

// pullCapabilityStub is a minimal Backend for exercising capability
// gating and failure propagation independent of MockBackend.
type pullCapabilityStub struct {
	caps      backend.Capability
	pullErr   error
	pullCalls int
}

func (b *pullCapabilityStub) Name() string                   { return "stub" }
func (b *pullCapabilityStub) Capabilities() backend.Capability { return b.caps }
func (b *pullCapabilityStub) GenerateCompletion(ctx context.Context, m *ir.Map, opts backend.CallOptions) (*ir.Par, error) {
	return &ir.Par{}, nil
}
func (b *pullCapabilityStub) GenerateChat(ctx context.Context, r *ir.Repeat, opts backend.CallOptions) (*ir.Par, error) {
	return &ir.Par{Items: []ir.Query{ir.Assistant("ok")}}, nil
}
func (b *pullCapabilityStub) Embed(ctx context.Context, model string, texts []string) ([][]float32, error) {
	return nil, nil
}
func (b *pullCapabilityStub) PullIfNeeded(ctx context.Context, model string, progress backend.ProgressFunc) error {
	b.pullCalls++
	return b.pullErr
}
