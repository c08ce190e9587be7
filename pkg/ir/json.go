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

package ir

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/spnl-dev/spnl/pkg/spnlerr"
)

// wireGenerate is the JSON payload shape for the "g" key.
type wireGenerate struct {
	Model       string          `json:"model"`
	MaxTokens   *int            `json:"max_tokens,omitempty"`
	Temperature *float32        `json:"temperature,omitempty"`
	Input       json.RawMessage `json:"input"`
}

type wireRepeat struct {
	N        int          `json:"n"`
	Generate wireGenerate `json:"generate"`
}

type wireMap struct {
	Inputs      []json.RawMessage `json:"inputs"`
	Model       string            `json:"model"`
	MaxTokens   *int              `json:"max_tokens,omitempty"`
	Temperature *float32          `json:"temperature,omitempty"`
}

type wireAugment struct {
	EmbeddingModel string          `json:"embedding_model"`
	Body           json.RawMessage `json:"body"`
	DocName        string          `json:"doc_name"`
	Doc            json.RawMessage `json:"doc"`
}

type wireDocument struct {
	Text   *string `json:"text,omitempty"`
	Binary *string `json:"binary,omitempty"` // base64
}

// MarshalJSON implements the canonical single-key-object wire form.
func (m *Message) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{string(m.Role): m.Text})
}

func (s *Seq) MarshalJSON() ([]byte, error) { return marshalSlice("seq", s.Items) }
func (p *Par) MarshalJSON() ([]byte, error) { return marshalSlice("par", p.Items) }
func (c *Cross) MarshalJSON() ([]byte, error) { return marshalSlice("cross", c.Items) }
func (p *Plus) MarshalJSON() ([]byte, error) { return marshalSlice("plus", p.Items) }

func marshalSlice(key string, items []Query) ([]byte, error) {
	raws := make([]json.RawMessage, len(items))
	for i, it := range items {
		b, err := Marshal(it)
		if err != nil {
			return nil, err
		}
		raws[i] = b
	}
	return json.Marshal(map[string][]json.RawMessage{key: raws})
}

func (g *Generate) MarshalJSON() ([]byte, error) {
	input, err := Marshal(g.Input)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]wireGenerate{
		"g": {
			Model:       g.Metadata.Model,
			MaxTokens:   g.Metadata.MaxTokens,
			Temperature: g.Metadata.Temperature,
			Input:       input,
		},
	})
}

func (r *Repeat) MarshalJSON() ([]byte, error) {
	input, err := Marshal(r.Generate.Input)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]wireRepeat{
		"repeat": {
			N: r.N,
			Generate: wireGenerate{
				Model:       r.Generate.Metadata.Model,
				MaxTokens:   r.Generate.Metadata.MaxTokens,
				Temperature: r.Generate.Metadata.Temperature,
				Input:       input,
			},
		},
	})
}

func (m *Map) MarshalJSON() ([]byte, error) {
	raws := make([]json.RawMessage, len(m.Inputs))
	for i, it := range m.Inputs {
		b, err := Marshal(it)
		if err != nil {
			return nil, err
		}
		raws[i] = b
	}
	return json.Marshal(map[string]wireMap{
		"map": {
			Inputs:      raws,
			Model:       m.Metadata.Model,
			MaxTokens:   m.Metadata.MaxTokens,
			Temperature: m.Metadata.Temperature,
		},
	})
}

func (m *Monad) MarshalJSON() ([]byte, error) {
	inner, err := Marshal(m.Query)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{"monad": inner})
}

func (a *Augment) MarshalJSON() ([]byte, error) {
	body, err := Marshal(a.Body)
	if err != nil {
		return nil, err
	}
	doc, err := marshalDocument(a.Doc)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]wireAugment{
		"augment": {
			EmbeddingModel: a.EmbeddingModel,
			Body:           body,
			DocName:        a.DocName,
			Doc:            doc,
		},
	})
}

func marshalDocument(d Document) (json.RawMessage, error) {
	switch v := d.(type) {
	case TextDocument:
		return json.Marshal(wireDocument{Text: &v.Content})
	case BinaryDocument:
		enc := base64.StdEncoding.EncodeToString(v.Content)
		return json.Marshal(wireDocument{Binary: &enc})
	default:
		return nil, fmt.Errorf("ir: unknown document type %T", d)
	}
}

func (p *Print) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"print": p.Text})
}

func (a *Ask) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]string{"ask": a.Text})
}

// Marshal encodes a Query to its canonical JSON form.
func Marshal(q Query) ([]byte, error) {
	if q == nil {
		return nil, fmt.Errorf("ir: cannot marshal nil query")
	}
	return json.Marshal(q)
}

// Unmarshal decodes a Query from its canonical JSON form. Decoding is
// strict: an object with zero keys, more than one key, or an
// unrecognized key is a *spnlerr.ParseError.
func Unmarshal(data []byte) (Query, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(data, &obj); err != nil {
		return nil, spnlerr.NewParseError("", "not a JSON object", err)
	}
	if len(obj) != 1 {
		return nil, spnlerr.NewParseError("", fmt.Sprintf("expected exactly one key, got %d", len(obj)), nil)
	}

	for key, raw := range obj {
		switch key {
		case "user", "assistant", "system":
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return nil, spnlerr.NewParseError(key, "expected string", err)
			}
			return &Message{Role: Role(key), Text: text}, nil

		case "print":
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return nil, spnlerr.NewParseError(key, "expected string", err)
			}
			return &Print{Text: text}, nil

		case "ask":
			var text string
			if err := json.Unmarshal(raw, &text); err != nil {
				return nil, spnlerr.NewParseError(key, "expected string", err)
			}
			return &Ask{Text: text}, nil

		case "seq", "par", "cross", "plus":
			var raws []json.RawMessage
			if err := json.Unmarshal(raw, &raws); err != nil {
				return nil, spnlerr.NewParseError(key, "expected array", err)
			}
			items := make([]Query, len(raws))
			for i, r := range raws {
				q, err := Unmarshal(r)
				if err != nil {
					return nil, err
				}
				items[i] = q
			}
			switch key {
			case "seq":
				return &Seq{Items: items}, nil
			case "par":
				return &Par{Items: items}, nil
			case "cross":
				return &Cross{Items: items}, nil
			default:
				return &Plus{Items: items}, nil
			}

		case "g":
			var w wireGenerate
			if err := json.Unmarshal(raw, &w); err != nil {
				return nil, spnlerr.NewParseError(key, "malformed generate", err)
			}
			if w.Model == "" {
				return nil, spnlerr.NewParseError(key, "model must be non-empty", nil)
			}
			input, err := Unmarshal(w.Input)
			if err != nil {
				return nil, err
			}
			return &Generate{
				Metadata: GenerateMetadata{Model: w.Model, MaxTokens: normalizeMaxTokens(w.MaxTokens), Temperature: w.Temperature},
				Input:    input,
			}, nil

		case "repeat":
			var w wireRepeat
			if err := json.Unmarshal(raw, &w); err != nil {
				return nil, spnlerr.NewParseError(key, "malformed repeat", err)
			}
			if w.N < 1 {
				return nil, spnlerr.NewParseError(key, "n must be >= 1", nil)
			}
			input, err := Unmarshal(w.Generate.Input)
			if err != nil {
				return nil, err
			}
			return &Repeat{
				N: w.N,
				Generate: &Generate{
					Metadata: GenerateMetadata{Model: w.Generate.Model, MaxTokens: normalizeMaxTokens(w.Generate.MaxTokens), Temperature: w.Generate.Temperature},
					Input:    input,
				},
			}, nil

		case "map":
			var w wireMap
			if err := json.Unmarshal(raw, &w); err != nil {
				return nil, spnlerr.NewParseError(key, "malformed map", err)
			}
			inputs := make([]Query, len(w.Inputs))
			for i, r := range w.Inputs {
				q, err := Unmarshal(r)
				if err != nil {
					return nil, err
				}
				inputs[i] = q
			}
			return &Map{
				Inputs:   inputs,
				Metadata: GenerateMetadata{Model: w.Model, MaxTokens: normalizeMaxTokens(w.MaxTokens), Temperature: w.Temperature},
			}, nil

		case "monad":
			inner, err := Unmarshal(raw)
			if err != nil {
				return nil, err
			}
			return &Monad{Query: inner}, nil

		case "augment":
			var w wireAugment
			if err := json.Unmarshal(raw, &w); err != nil {
				return nil, spnlerr.NewParseError(key, "malformed augment", err)
			}
			body, err := Unmarshal(w.Body)
			if err != nil {
				return nil, err
			}
			doc, err := unmarshalDocument(w.Doc)
			if err != nil {
				return nil, err
			}
			return &Augment{EmbeddingModel: w.EmbeddingModel, Body: body, DocName: w.DocName, Doc: doc}, nil

		default:
			return nil, spnlerr.NewParseError(key, "unrecognized query variant", nil)
		}
	}
	panic("unreachable")
}

func unmarshalDocument(raw json.RawMessage) (Document, error) {
	var w wireDocument
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, spnlerr.NewParseError("doc", "malformed document", err)
	}
	switch {
	case w.Text != nil:
		return TextDocument{Content: *w.Text}, nil
	case w.Binary != nil:
		data, err := base64.StdEncoding.DecodeString(*w.Binary)
		if err != nil {
			return nil, spnlerr.NewParseError("doc", "invalid base64 in binary document", err)
		}
		return BinaryDocument{Content: data}, nil
	default:
		return nil, spnlerr.NewParseError("doc", "document must have text or binary", nil)
	}
}

// normalizeMaxTokens maps a wire 0 to nil ("provider default"), per
// the data model's MaxTokens convention.
func normalizeMaxTokens(v *int) *int {
	if v != nil && *v == 0 {
		return nil
	}
	return v
}
