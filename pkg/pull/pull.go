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
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/spnl-dev/spnl/pkg/backend"
	"github.com/spnl-dev/spnl/pkg/ir"
	"github.com/spnl-dev/spnl/pkg/spnlerr"
)

// Options tunes a single IfNeeded call.
type Options struct {
	// Progress receives per-model pull status; a backend without
	// CapPull never calls it. Nil discards progress.
	Progress backend.ProgressFunc
}

// IfNeeded extracts every model query references, resolves each
// through backends, and pulls the ones whose backend advertises
// CapPull, in parallel. A backend lacking CapPull is assumed always
// available (e.g. a hosted API with no local weights to fetch) and is
// silently skipped. The first pull failure cancels the others.
func IfNeeded(ctx context.Context, backends *backend.Registry, query ir.Query, opts Options) error {
	models := ExtractModels(query)

	group, groupCtx := errgroup.WithContext(ctx)
	for _, model := range models {
		model := model
		group.Go(func() error {
			return pullOne(groupCtx, backends, model, opts.Progress)
		})
	}
	return group.Wait()
}

func pullOne(ctx context.Context, backends *backend.Registry, model string, progress backend.ProgressFunc) error {
	if backends == nil {
		return spnlerr.NewModelNotFound(model, fmt.Errorf("no backend registry configured"))
	}
	b, err := backends.Resolve(model)
	if err != nil {
		return spnlerr.NewModelNotFound(model, err)
	}
	if !b.Capabilities().Has(backend.CapPull) {
		return nil
	}
	if err := b.PullIfNeeded(ctx, model, progress); err != nil {
		return spnlerr.NewBackendUnavailable(b.Name(), fmt.Sprintf("failed to pull model %q", model), err)
	}
	return nil
}
