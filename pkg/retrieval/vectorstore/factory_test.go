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

package vectorstore

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewNilConfigReturnsNilProvider(t *testing.T) {
	p, err := New(nil)
	require.NoError(t, err)
	require.Equal(t, "nil", p.Name())
}

func TestNewDefaultsToChromem(t *testing.T) {
	cfg := &ProviderConfig{}
	cfg.SetDefaults()
	require.Equal(t, ProviderChromem, cfg.Type)

	p, err := New(cfg)
	require.NoError(t, err)
	require.Equal(t, "chromem", p.Name())
	require.NoError(t, p.Close())
}

func TestValidateRejectsQdrantWithoutHost(t *testing.T) {
	cfg := &ProviderConfig{Type: ProviderQdrant}
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsUnknownProvider(t *testing.T) {
	cfg := &ProviderConfig{Type: "made-up"}
	require.Error(t, cfg.Validate())
}

func TestNewRejectsMissingPineconeConfig(t *testing.T) {
	_, err := New(&ProviderConfig{Type: ProviderPinecone})
	require.Error(t, err)
}

func TestRegistryRejectsDuplicateName(t *testing.T) {
	reg := NewRegistry()
	p, err := NewChromemProvider(ChromemConfig{})
	require.NoError(t, err)

	require.NoError(t, reg.Register("default", p))
	require.Error(t, reg.Register("default", p))

	got, ok := reg.Get("default")
	require.True(t, ok)
	require.Equal(t, p, got)
	require.ElementsMatch(t, []string{"default"}, reg.List())
	require.NoError(t, reg.Close())
}
