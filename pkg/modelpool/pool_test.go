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

package modelpool

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetOrLoadReusesIdleInstance(t *testing.T) {
	var loads int32
	pool := New(func(ctx context.Context, name string) (string, error) {
		atomic.AddInt32(&loads, 1)
		return "instance-for-" + name, nil
	})

	h1, err := pool.GetOrLoad(context.Background(), "m")
	require.NoError(t, err)
	h1.Release()

	h2, err := pool.GetOrLoad(context.Background(), "m")
	require.NoError(t, err)
	h2.Release()

	require.Equal(t, int32(1), atomic.LoadInt32(&loads))
	require.Equal(t, 1, pool.InstanceCount("m"))
}

func TestGetOrLoadGrowsWhenAllBusy(t *testing.T) {
	pool := New(func(ctx context.Context, name string) (int, error) { return 0, nil })

	h1, err := pool.GetOrLoad(context.Background(), "m")
	require.NoError(t, err)

	h2, err := pool.GetOrLoad(context.Background(), "m")
	require.NoError(t, err)

	require.Equal(t, 2, pool.InstanceCount("m"))
	h1.Release()
	h2.Release()
}

func TestGetOrLoadRequiresName(t *testing.T) {
	pool := New(func(ctx context.Context, name string) (int, error) { return 0, nil })
	_, err := pool.GetOrLoad(context.Background(), "")
	require.Error(t, err)
}
