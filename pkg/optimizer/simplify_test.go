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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spnl-dev/spnl/pkg/ir"
)

func TestSimplifyNoop(t *testing.T) {
	q := &ir.Message{Role: ir.RoleUser, Text: "hello"}
	require.True(t, Simplify(q).Equal(q))
}

func TestSimplifySingletonSeq(t *testing.T) {
	a := &ir.Message{Role: ir.RoleUser, Text: "a"}
	q := &ir.Seq{Items: []ir.Query{a}}
	require.True(t, Simplify(q).Equal(a))
}

func TestSimplifySeqOfSeq(t *testing.T) {
	a := &ir.Message{Role: ir.RoleUser, Text: "a"}
	inner := &ir.Seq{Items: []ir.Query{a}}
	outer := &ir.Seq{Items: []ir.Query{inner}}
	require.True(t, Simplify(outer).Equal(a))
}

func TestSimplifyPlusOfSeqSplices(t *testing.T) {
	a := &ir.Message{Role: ir.RoleUser, Text: "a"}
	b := &ir.Message{Role: ir.RoleUser, Text: "b"}
	c := &ir.Message{Role: ir.RoleUser, Text: "c"}
	d := &ir.Message{Role: ir.RoleUser, Text: "d"}

	seq := &ir.Seq{Items: []ir.Query{a, b}}
	plus := &ir.Plus{Items: []ir.Query{seq, c, d}}

	want := &ir.Plus{Items: []ir.Query{a, b, c, d}}
	require.True(t, Simplify(plus).Equal(want))
}

func TestSimplifyCrossOfTailCrossSplices(t *testing.T) {
	a := &ir.Message{Role: ir.RoleUser, Text: "a"}
	b := &ir.Message{Role: ir.RoleUser, Text: "b"}
	c := &ir.Message{Role: ir.RoleUser, Text: "c"}

	tail := &ir.Cross{Items: []ir.Query{b, c}}
	cross := &ir.Cross{Items: []ir.Query{a, tail}}

	want := &ir.Cross{Items: []ir.Query{a, b, c}}
	require.True(t, Simplify(cross).Equal(want))
}

func TestSimplifyPreservesRepeat(t *testing.T) {
	m := &ir.Message{Role: ir.RoleUser, Text: "hello"}
	gen := &ir.Generate{Metadata: ir.GenerateMetadata{Model: "m"}, Input: &ir.Seq{Items: []ir.Query{m}}}
	repeat := &ir.Repeat{N: 2, Generate: gen}

	want := &ir.Repeat{N: 2, Generate: &ir.Generate{Metadata: ir.GenerateMetadata{Model: "m"}, Input: m}}
	require.True(t, Simplify(repeat).Equal(want))
}

func TestSimplifyPlusSingletonInsidePar(t *testing.T) {
	a := &ir.Message{Role: ir.RoleUser, Text: "a"}
	b := &ir.Message{Role: ir.RoleUser, Text: "b"}
	par := &ir.Par{Items: []ir.Query{&ir.Plus{Items: []ir.Query{a}}, b}}

	want := &ir.Par{Items: []ir.Query{a, b}}
	require.True(t, Simplify(par).Equal(want))
}

func TestUnrollRepeatExpandsToSeq(t *testing.T) {
	m := &ir.Message{Role: ir.RoleUser, Text: "hello"}
	gen := &ir.Generate{Metadata: ir.GenerateMetadata{Model: "m"}, Input: m}
	repeat := &ir.Repeat{N: 2, Generate: gen}

	want := &ir.Seq{Items: []ir.Query{gen, gen}}
	require.True(t, UnrollRepeat(repeat).Equal(want))
}

func TestSimplifyIdempotent(t *testing.T) {
	a := &ir.Message{Role: ir.RoleUser, Text: "a"}
	b := &ir.Message{Role: ir.RoleUser, Text: "b"}
	seq := &ir.Seq{Items: []ir.Query{&ir.Seq{Items: []ir.Query{a}}, b}}

	once := Simplify(seq)
	twice := Simplify(once)
	require.True(t, once.Equal(twice))
}
