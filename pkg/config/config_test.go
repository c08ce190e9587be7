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
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseExpandsEnvVarsAndAppliesDefaults(t *testing.T) {
	t.Setenv("SPNL_TEST_API_KEY", "sk-test-123")

	yaml := []byte(`
backends:
  openai:
    type: openai
    api_key: ${SPNL_TEST_API_KEY}
  ollama:
    type: ollama
    base_url: ${SPNL_TEST_OLLAMA_URL:-http://localhost:11434}

execute:
  concurrency: 4
`)

	cfg, err := parse(yaml)
	require.NoError(t, err)
	require.Equal(t, "sk-test-123", cfg.Backends["openai"].APIKey)
	require.Equal(t, "http://localhost:11434", cfg.Backends["ollama"].BaseURL)
	require.Equal(t, 4, cfg.Execute.Concurrency)
	require.Equal(t, "chromem", cfg.Retrieval.Provider)
	require.Equal(t, "none", cfg.Execute.Time)
}

func TestParseRejectsUnknownBackendType(t *testing.T) {
	_, err := parse([]byte("backends:\n  foo:\n    type: not-a-backend\n"))
	require.Error(t, err)
}

func TestParseRejectsInvalidWindowStep(t *testing.T) {
	_, err := parse([]byte("retrieval:\n  window_size: 2\n  window_step: 8\n"))
	require.Error(t, err)
}

func TestParseRejectsQdrantWithoutHost(t *testing.T) {
	_, err := parse([]byte("retrieval:\n  provider: qdrant\n"))
	require.Error(t, err)
}

func TestParseAcceptsQdrantProvider(t *testing.T) {
	cfg, err := parse([]byte("retrieval:\n  provider: qdrant\n  qdrant:\n    host: localhost\n    port: 6334\n"))
	require.NoError(t, err)
	require.Equal(t, "qdrant", cfg.Retrieval.Provider)
	require.Equal(t, "localhost", cfg.Retrieval.Qdrant.Host)
}

func TestLoadReadsFile(t *testing.T) {
	f, err := os.CreateTemp(t.TempDir(), "spnl-config-*.yaml")
	require.NoError(t, err)
	_, err = f.WriteString("execute:\n  concurrency: 2\n")
	require.NoError(t, err)
	require.NoError(t, f.Close())

	cfg, err := Load(f.Name())
	require.NoError(t, err)
	require.Equal(t, 2, cfg.Execute.Concurrency)
}
