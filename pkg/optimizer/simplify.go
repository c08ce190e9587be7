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

// Simplify removes unnecessary syntactic complexity bottom-up:
// singleton Seq/Par collapse to their only child, a singleton Plus
// that sits among the children of a multi-item Par/Seq is replaced by
// its only child (a singleton Plus anywhere else is kept as it is),
// nested Seq-in-Seq flattens one level, a Plus whose first child is a
// Plus or Seq splices that child's elements into the head, a Cross
// whose last child is a Cross splices that child's elements into the
// tail. Repeat is left intact — the executor dispatches it directly as
// a single fan-out of n identical generations (see generateRepeat), so
// unrolling it here would turn that fan-out into n sequential calls
// before execution ever sees it. UnrollRepeat below expands it
// separately, for tests and inspection only.
func Simplify(q ir.Query) ir.Query {
	items := simplifyIter(q)
	if len(items) == 1 {
		return items[0]
	}
	return &ir.Seq{Items: items}
}

// UnrollRepeat expands every Repeat{n, g} node in q into n copies of g
// (a Seq at the top level, or spliced inline under a surrounding
// Par/Plus/Seq/Cross), simplifying the rest of the tree the same way
// Simplify does. This view is for testing/inspection — it is never
// part of the Optimize pipeline, since the executor handles Repeat
// without unrolling it.
func UnrollRepeat(q ir.Query) ir.Query {
	items := unrollIter(q)
	if len(items) == 1 {
		return items[0]
	}
	return &ir.Seq{Items: items}
}

func unrollIter(q ir.Query) []ir.Query {
	switch v := q.(type) {
	case *ir.Repeat:
		expanded := unrollIter(v.Generate)
		out := make([]ir.Query, 0, len(expanded)*v.N)
		for i := 0; i < v.N; i++ {
			out = append(out, expanded...)
		}
		return out

	case *ir.Seq:
		if len(v.Items) == 1 {
			return unrollIter(v.Items[0])
		}
		var flattened []ir.Query
		for _, item := range v.Items {
			for _, s := range unrollIter(item) {
				if inner, ok := s.(*ir.Seq); ok {
					flattened = append(flattened, inner.Items...)
				} else {
					flattened = append(flattened, s)
				}
			}
		}
		return []ir.Query{&ir.Seq{Items: flattened}}

	case *ir.Par:
		if len(v.Items) == 1 {
			return unrollIter(v.Items[0])
		}
		var flattened []ir.Query
		for _, item := range v.Items {
			flattened = append(flattened, unrollIter(item)...)
		}
		return []ir.Query{&ir.Par{Items: flattened}}

	case *ir.Plus:
		var flattened []ir.Query
		for _, item := range v.Items {
			flattened = append(flattened, unrollIter(item)...)
		}
		return []ir.Query{&ir.Plus{Items: flattened}}

	case *ir.Cross:
		var flattened []ir.Query
		for _, item := range v.Items {
			flattened = append(flattened, unrollIter(item)...)
		}
		return []ir.Query{&ir.Cross{Items: flattened}}

	case *ir.Generate:
		return []ir.Query{&ir.Generate{Metadata: v.Metadata, Input: UnrollRepeat(v.Input)}}

	case *ir.Map:
		inputs := make([]ir.Query, len(v.Inputs))
		for i, input := range v.Inputs {
			inputs[i] = UnrollRepeat(input)
		}
		return []ir.Query{&ir.Map{Inputs: inputs, Metadata: v.Metadata}}

	case *ir.Monad:
		return []ir.Query{&ir.Monad{Query: UnrollRepeat(v.Query)}}

	default:
		return []ir.Query{q}
	}
}

// simplifyIter returns the list of queries q simplifies to: almost
// always a single element, except where flattening a nested
// Seq/Par/Plus/Cross legitimately produces several.
func simplifyIter(q ir.Query) []ir.Query {
	switch v := q.(type) {
	case *ir.Repeat:
		return []ir.Query{&ir.Repeat{N: v.N, Generate: simplifyIter(v.Generate)[0].(*ir.Generate)}}

	case *ir.Seq:
		if len(v.Items) == 1 {
			return simplifyIter(v.Items[0])
		}
		var flattened []ir.Query
		for _, item := range v.Items {
			for _, s := range simplifyIter(item) {
				if inner, ok := s.(*ir.Seq); ok {
					flattened = append(flattened, inner.Items...)
				} else if p, ok := s.(*ir.Plus); ok && len(p.Items) == 1 {
					flattened = append(flattened, p.Items[0])
				} else {
					flattened = append(flattened, s)
				}
			}
		}
		return []ir.Query{&ir.Seq{Items: flattened}}

	case *ir.Par:
		if len(v.Items) == 1 {
			return simplifyIter(v.Items[0])
		}
		var flattened []ir.Query
		for _, item := range v.Items {
			for _, s := range simplifyIter(item) {
				if p, ok := s.(*ir.Plus); ok && len(p.Items) == 1 {
					s = p.Items[0]
				}
				flattened = append(flattened, s)
			}
		}
		return []ir.Query{&ir.Par{Items: flattened}}

	case *ir.Plus:
		items := v.Items
		var head []ir.Query
		var tail []ir.Query
		if len(items) > 0 {
			switch first := items[0].(type) {
			case *ir.Seq:
				head = first.Items
				tail = items[1:]
			case *ir.Plus:
				head = first.Items
				tail = items[1:]
			default:
				tail = items
			}
		}
		var flattened []ir.Query
		for _, item := range append(append([]ir.Query{}, head...), tail...) {
			flattened = append(flattened, simplifyIter(item)...)
		}
		return []ir.Query{&ir.Plus{Items: flattened}}

	case *ir.Cross:
		items := v.Items
		var body []ir.Query
		var tail []ir.Query
		if n := len(items); n > 0 {
			if last, ok := items[n-1].(*ir.Cross); ok {
				body = items[:n-1]
				tail = last.Items
			} else {
				body = items
			}
		}
		var flattened []ir.Query
		for _, item := range append(append([]ir.Query{}, body...), tail...) {
			flattened = append(flattened, simplifyIter(item)...)
		}
		return []ir.Query{&ir.Cross{Items: flattened}}

	case *ir.Generate:
		return []ir.Query{&ir.Generate{Metadata: v.Metadata, Input: Simplify(v.Input)}}

	case *ir.Map:
		inputs := make([]ir.Query, len(v.Inputs))
		for i, input := range v.Inputs {
			inputs[i] = Simplify(input)
		}
		return []ir.Query{&ir.Map{Inputs: inputs, Metadata: v.Metadata}}

	case *ir.Monad:
		return []ir.Query{&ir.Monad{Query: Simplify(v.Query)}}

	default:
		return []ir.Query{q}
	}
}
