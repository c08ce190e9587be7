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

package optimizer

import (
	"context"
	"fmt"

	"github.com/spnl-dev/spnl/pkg/backend"
	"github.com/spnl-dev/spnl/pkg/ir"
)

// inlineAugments replaces every Augment node with a Seq of: an
// optional Monad(Plus(prepares)) for span-capable parents, followed by
// a Plus of the retrieved fragments as User messages. parent is the
// inherited Generate node enclosing the walk, nil at the root or under
// a node with no Generate ancestor — Augment only appears as (a
// descendant of) a Generate's input in well-formed trees, so parent is
// non-nil whenever an Augment is actually encountered.
func (o *Optimizer) inlineAugments(ctx context.Context, q ir.Query, parent *ir.Generate) (ir.Query, error) {
	switch v := q.(type) {
	case *ir.Augment:
		return o.inlineOne(ctx, v, parent)

	case *ir.Generate:
		input, err := o.inlineAugments(ctx, v.Input, v)
		if err != nil {
			return nil, err
		}
		return &ir.Generate{Metadata: v.Metadata, Input: input}, nil

	case *ir.Repeat:
		gen, err := o.inlineAugments(ctx, v.Generate, parent)
		if err != nil {
			return nil, err
		}
		return &ir.Repeat{N: v.N, Generate: gen.(*ir.Generate)}, nil

	case *ir.Map:
		inputs := make([]ir.Query, len(v.Inputs))
		for i, input := range v.Inputs {
			rewritten, err := o.inlineAugments(ctx, input, parent)
			if err != nil {
				return nil, err
			}
			inputs[i] = rewritten
		}
		return &ir.Map{Inputs: inputs, Metadata: v.Metadata}, nil

	case *ir.Monad:
		inner, err := o.inlineAugments(ctx, v.Query, parent)
		if err != nil {
			return nil, err
		}
		return &ir.Monad{Query: inner}, nil

	case *ir.Message, *ir.Print, *ir.Ask:
		return q, nil

	default:
		return o.inlineChildren(ctx, q, parent)
	}
}

// inlineChildren rewrites Seq/Par/Cross/Plus containers by recursing
// into their children while preserving the container's own kind.
func (o *Optimizer) inlineChildren(ctx context.Context, q ir.Query, parent *ir.Generate) (ir.Query, error) {
	children := q.Children()
	rewritten := make([]ir.Query, len(children))
	for i, c := range children {
		r, err := o.inlineAugments(ctx, c, parent)
		if err != nil {
			return nil, err
		}
		rewritten[i] = r
	}

	switch q.(type) {
	case *ir.Seq:
		return &ir.Seq{Items: rewritten}, nil
	case *ir.Par:
		return &ir.Par{Items: rewritten}, nil
	case *ir.Cross:
		return &ir.Cross{Items: rewritten}, nil
	case *ir.Plus:
		return &ir.Plus{Items: rewritten}, nil
	default:
		return nil, fmt.Errorf("optimizer: unexpected query node %T", q)
	}
}

// inlineOne retrieves aug's fragments and rewrites it into
// Seq(optional Monad(Plus(prepares)), Plus(fragments)).
func (o *Optimizer) inlineOne(ctx context.Context, aug *ir.Augment, parent *ir.Generate) (ir.Query, error) {
	embedder, err := o.Embedders(aug.EmbeddingModel)
	if err != nil {
		return nil, fmt.Errorf("no embedder for model %q: %w", aug.EmbeddingModel, err)
	}

	table, err := o.Indexer.Build(ctx, o.TablePrefix, aug, embedder)
	if err != nil {
		return nil, fmt.Errorf("index build failed for augment %q: %w", aug.DocName, err)
	}

	fragments, err := o.Retriever.Retrieve(ctx, table, aug.Body, embedder, o.RetrieveOpts)
	if err != nil {
		return nil, fmt.Errorf("retrieval failed for table %s: %w", table, err)
	}

	fragmentMessages := make([]ir.Query, len(fragments))
	for i, frag := range fragments {
		fragmentMessages[i] = &ir.Message{Role: ir.RoleUser, Text: "Relevant Document " + frag}
	}
	plusFragments := &ir.Plus{Items: fragmentMessages}

	spanCapable := parent != nil && o.modelSupportsSpans(parent.Metadata.Model)
	if !spanCapable || len(fragments) == 0 {
		return &ir.Seq{Items: []ir.Query{plusFragments}}, nil
	}

	prepares := make([]ir.Query, len(fragments))
	zero := float32(0.0)
	one := 1
	for i, frag := range fragments {
		prepares[i] = &ir.Generate{
			Metadata: ir.GenerateMetadata{Model: parent.Metadata.Model, MaxTokens: &one, Temperature: &zero},
			Input:    &ir.Message{Role: ir.RoleUser, Text: frag},
		}
	}

	return &ir.Seq{Items: []ir.Query{
		&ir.Monad{Query: &ir.Plus{Items: prepares}},
		plusFragments,
	}}, nil
}

func (o *Optimizer) modelSupportsSpans(model string) bool {
	if o.Backends == nil {
		return false
	}
	b, err := o.Backends.Resolve(model)
	if err != nil {
		return false
	}
	return b.Capabilities().Has(backend.CapSpan)
}
