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

// Package ir defines the query tree intermediate representation: a
// recursive, acyclic algebra of message leaves and composition
// operators over language-model interactions.
package ir

import "fmt"

// Role identifies the speaker of a Message leaf.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Query is any node in the query tree. Every concrete type in this
// package implements it; external packages must not implement it
// (the set of variants is closed).
type Query interface {
	// Children returns the direct sub-queries owned by this node, in
	// left-to-right order. Leaves return nil.
	Children() []Query

	// Equal reports structural equality with other.
	Equal(other Query) bool

	isQuery()
}

// Message is a leaf carrying a role and text. Role never changes
// during rewrites; only containers are restructured.
type Message struct {
	Role Role
	Text string
}

func (m *Message) Children() []Query { return nil }

func (m *Message) Equal(other Query) bool {
	o, ok := other.(*Message)
	return ok && o.Role == m.Role && o.Text == m.Text
}

func (m *Message) isQuery() {}

// User constructs a Message with RoleUser.
func User(text string) *Message { return &Message{Role: RoleUser, Text: text} }

// Assistant constructs a Message with RoleAssistant.
func Assistant(text string) *Message { return &Message{Role: RoleAssistant, Text: text} }

// System constructs a Message with RoleSystem.
func System(text string) *Message { return &Message{Role: RoleSystem, Text: text} }

// Seq is ordered sequential composition: children are evaluated
// left-to-right, each awaiting the prior's result.
type Seq struct {
	Items []Query
}

func (s *Seq) Children() []Query { return s.Items }

func (s *Seq) Equal(other Query) bool {
	o, ok := other.(*Seq)
	return ok && equalSlice(s.Items, o.Items)
}

func (s *Seq) isQuery() {}

// Par is unordered parallel composition: children are evaluated
// concurrently, results reassembled in original positional order.
type Par struct {
	Items []Query
}

func (p *Par) Children() []Query { return p.Items }

func (p *Par) Equal(other Query) bool {
	o, ok := other.(*Par)
	return ok && equalSlice(p.Items, o.Items)
}

func (p *Par) isQuery() {}

// Cross marks a sequence of children that together form joint context
// for a following generation. Execution order matches Seq, but Cross
// carries the distinct intent that these children are context, not an
// independent pipeline.
type Cross struct {
	Items []Query
}

func (c *Cross) Children() []Query { return c.Items }

func (c *Cross) Equal(other Query) bool {
	o, ok := other.(*Cross)
	return ok && equalSlice(c.Items, o.Items)
}

func (c *Cross) isQuery() {}

// Plus marks peer siblings without cross-attention dependence on one
// another. Like Par, children may run concurrently and carry no
// ordering constraint among themselves, but Plus additionally signals
// "independent", which the span-materialization rewrite relies on.
type Plus struct {
	Items []Query
}

func (p *Plus) Children() []Query { return p.Items }

func (p *Plus) Equal(other Query) bool {
	o, ok := other.(*Plus)
	return ok && equalSlice(p.Items, o.Items)
}

func (p *Plus) isQuery() {}

// GenerateMetadata configures a single generation call.
type GenerateMetadata struct {
	Model string
	// MaxTokens is nil when the caller did not specify a limit, meaning
	// "provider default". A decoded wire value of 0 is normalized to nil.
	MaxTokens *int
	// Temperature is nil when unspecified.
	Temperature *float32
}

// Generate is a single generation call over an evaluated input.
type Generate struct {
	Metadata GenerateMetadata
	Input    Query
}

func (g *Generate) Children() []Query { return []Query{g.Input} }

func (g *Generate) Equal(other Query) bool {
	o, ok := other.(*Generate)
	if !ok || !metadataEqual(o.Metadata, g.Metadata) {
		return false
	}
	return queryEqual(g.Input, o.Input)
}

func (g *Generate) isQuery() {}

// Repeat issues the same Generate n times concurrently (a Bulk
// variant). N must be >= 1 in a well-formed tree.
type Repeat struct {
	N        int
	Generate *Generate
}

func (r *Repeat) Children() []Query { return []Query{r.Generate} }

func (r *Repeat) Equal(other Query) bool {
	o, ok := other.(*Repeat)
	return ok && o.N == r.N && queryEqual(r.Generate, o.Generate)
}

func (r *Repeat) isQuery() {}

// Map issues one generation per input under shared metadata (the
// other Bulk variant).
type Map struct {
	Inputs   []Query
	Metadata GenerateMetadata
}

func (m *Map) Children() []Query { return m.Inputs }

func (m *Map) Equal(other Query) bool {
	o, ok := other.(*Map)
	return ok && metadataEqual(o.Metadata, m.Metadata) && equalSlice(m.Inputs, o.Inputs)
}

func (m *Map) isQuery() {}

// Monad evaluates q for its side effects; the node's own result is
// always an empty User message, regardless of what q produces.
type Monad struct {
	Query Query
}

func (m *Monad) Children() []Query { return []Query{m.Query} }

func (m *Monad) Equal(other Query) bool {
	o, ok := other.(*Monad)
	return ok && queryEqual(m.Query, o.Query)
}

func (m *Monad) isQuery() {}

// Document is either inline text or a binary blob awaiting extraction.
type Document interface {
	isDocument()
}

// TextDocument wraps already-extracted text (e.g. from a .txt/.jsonl file).
type TextDocument struct {
	Content string
}

func (TextDocument) isDocument() {}

// BinaryDocument wraps raw bytes requiring format-specific extraction
// (e.g. PDF, DOCX, XLSX) before windowing.
type BinaryDocument struct {
	Content []byte
}

func (BinaryDocument) isDocument() {}

// Augment is a retrieval request: find fragments of doc relevant to
// body, to be inlined ahead of the parent Generate. Every Augment must
// be erased by the optimizer before the tree is executable.
type Augment struct {
	EmbeddingModel string
	Body           Query
	DocName        string
	Doc            Document
}

func (a *Augment) Children() []Query {
	return []Query{a.Body, User(fmt.Sprintf("<augmentation document: %s>", a.DocName))}
}

func (a *Augment) Equal(other Query) bool {
	o, ok := other.(*Augment)
	if !ok || o.EmbeddingModel != a.EmbeddingModel || o.DocName != a.DocName {
		return false
	}
	if !queryEqual(a.Body, o.Body) {
		return false
	}
	return documentEqual(a.Doc, o.Doc)
}

func (a *Augment) isQuery() {}

func documentEqual(a, b Document) bool {
	switch av := a.(type) {
	case TextDocument:
		bv, ok := b.(TextDocument)
		return ok && av.Content == bv.Content
	case BinaryDocument:
		bv, ok := b.(BinaryDocument)
		return ok && string(av.Content) == string(bv.Content)
	default:
		return false
	}
}

// Print writes text to stdout as a side effect; its result is an
// empty User message.
type Print struct {
	Text string
}

func (p *Print) Children() []Query { return nil }

func (p *Print) Equal(other Query) bool {
	o, ok := other.(*Print)
	return ok && o.Text == p.Text
}

func (p *Print) isQuery() {}

// Ask reads a line from stdin, using Text as the prompt message; its
// result is User(line).
type Ask struct {
	Text string
}

func (a *Ask) Children() []Query { return nil }

func (a *Ask) Equal(other Query) bool {
	o, ok := other.(*Ask)
	return ok && o.Text == a.Text
}

func (a *Ask) isQuery() {}

func queryEqual(a, b Query) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(b)
}

func equalSlice(a, b []Query) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !queryEqual(a[i], b[i]) {
			return false
		}
	}
	return true
}

// metadataEqual compares two GenerateMetadata by value, dereferencing
// MaxTokens/Temperature rather than comparing their pointers: two
// decodes of the same wire data never share a pointer, so a plain ==
// would report structurally-identical metadata as unequal.
func metadataEqual(a, b GenerateMetadata) bool {
	if a.Model != b.Model {
		return false
	}
	if (a.MaxTokens == nil) != (b.MaxTokens == nil) {
		return false
	}
	if a.MaxTokens != nil && *a.MaxTokens != *b.MaxTokens {
		return false
	}
	if (a.Temperature == nil) != (b.Temperature == nil) {
		return false
	}
	if a.Temperature != nil && *a.Temperature != *b.Temperature {
		return false
	}
	return true
}

// Empty returns the canonical empty result used by Monad and Print:
// an empty User message.
func Empty() *Message { return User("") }
