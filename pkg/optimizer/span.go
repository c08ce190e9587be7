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

import "github.com/spnl-dev/spnl/pkg/ir"

// materializeSpans walks q bottom-up, rewriting any Generate whose
// input (after child rewriting) has the shape
// Seq(Message, Plus(Generate, ..., Generate)) into
// Seq(Message, Par(for each child: Plus(child.input, Generate(child
// wrapped in Plus)))) when the target model supports spans — exposing
// the shared-prefix structure so a span-capable backend can cache the
// prefix KV once and reuse it across the parallel children.
func (o *Optimizer) materializeSpans(q ir.Query) ir.Query {
	children := q.Children()
	rewrittenChildren := make([]ir.Query, len(children))
	for i, c := range children {
		rewrittenChildren[i] = o.materializeSpans(c)
	}
	q = rebuildWithChildren(q, rewrittenChildren)

	gen, ok := q.(*ir.Generate)
	if !ok || !o.modelSupportsSpans(gen.Metadata.Model) {
		return q
	}

	seq, ok := gen.Input.(*ir.Seq)
	if !ok || len(seq.Items) != 2 {
		return q
	}
	prefix, ok := seq.Items[0].(*ir.Message)
	if !ok {
		return q
	}
	fanout, ok := seq.Items[1].(*ir.Plus)
	if !ok || len(fanout.Items) == 0 {
		return q
	}
	for _, item := range fanout.Items {
		if _, ok := item.(*ir.Generate); !ok {
			return q
		}
	}

	spans := make([]ir.Query, len(fanout.Items))
	for i, item := range fanout.Items {
		child := item.(*ir.Generate)
		spans[i] = &ir.Plus{Items: []ir.Query{
			child.Input,
			&ir.Generate{Metadata: child.Metadata, Input: &ir.Plus{Items: []ir.Query{child.Input}}},
		}}
	}

	return &ir.Generate{
		Metadata: gen.Metadata,
		Input: &ir.Seq{Items: []ir.Query{
			prefix,
			&ir.Par{Items: spans},
		}},
	}
}

// rebuildWithChildren reconstructs q with its children replaced by
// rewritten, preserving q's concrete type. Leaves and single-child
// wrapper nodes that materializeSpans never needs to rewrite
// internally (Message, Print, Ask, Augment) pass through unchanged.
func rebuildWithChildren(q ir.Query, rewritten []ir.Query) ir.Query {
	switch v := q.(type) {
	case *ir.Seq:
		return &ir.Seq{Items: rewritten}
	case *ir.Par:
		return &ir.Par{Items: rewritten}
	case *ir.Cross:
		return &ir.Cross{Items: rewritten}
	case *ir.Plus:
		return &ir.Plus{Items: rewritten}
	case *ir.Generate:
		return &ir.Generate{Metadata: v.Metadata, Input: rewritten[0]}
	case *ir.Repeat:
		return &ir.Repeat{N: v.N, Generate: rewritten[0].(*ir.Generate)}
	case *ir.Map:
		return &ir.Map{Inputs: rewritten, Metadata: v.Metadata}
	case *ir.Monad:
		return &ir.Monad{Query: rewritten[0]}
	default:
		return q
	}
}
