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
	"fmt"
	"strings"
)

const truncateAt = 700

func truncate(s string) string {
	r := []rune(s)
	if len(r) <= truncateAt {
		return s
	}
	return string(r[:truncateAt]) + "…"
}

// Pretty renders q as an indented plain-text tree, truncating long
// leaf strings. It is distinct from String(), which renders only
// message-bearing subtrees inline.
func Pretty(q Query) string {
	var b strings.Builder
	prettyNode(&b, q, 0)
	return b.String()
}

func prettyNode(b *strings.Builder, q Query, depth int) {
	indent := strings.Repeat("  ", depth)
	switch v := q.(type) {
	case *Message:
		fmt.Fprintf(b, "%s%s %s\n", indent, strings.ToUpper(string(v.Role)), truncate(v.Text))
	case *Seq:
		fmt.Fprintf(b, "%sSeq\n", indent)
		for _, c := range v.Items {
			prettyNode(b, c, depth+1)
		}
	case *Par:
		fmt.Fprintf(b, "%sPar\n", indent)
		for _, c := range v.Items {
			prettyNode(b, c, depth+1)
		}
	case *Cross:
		fmt.Fprintf(b, "%sCross\n", indent)
		for _, c := range v.Items {
			prettyNode(b, c, depth+1)
		}
	case *Plus:
		fmt.Fprintf(b, "%sPlus\n", indent)
		for _, c := range v.Items {
			prettyNode(b, c, depth+1)
		}
	case *Generate:
		fmt.Fprintf(b, "%sGenerate %s\n", indent, v.Metadata.Model)
		prettyNode(b, v.Input, depth+1)
	case *Repeat:
		fmt.Fprintf(b, "%sRepeat %d\n", indent, v.N)
		prettyNode(b, v.Generate, depth+1)
	case *Map:
		fmt.Fprintf(b, "%sMap %s (%d inputs)\n", indent, v.Metadata.Model, len(v.Inputs))
		for _, c := range v.Inputs {
			prettyNode(b, c, depth+1)
		}
	case *Monad:
		fmt.Fprintf(b, "%sMonad\n", indent)
		prettyNode(b, v.Query, depth+1)
	case *Augment:
		fmt.Fprintf(b, "%sAugment %s <- %s\n", indent, v.EmbeddingModel, v.DocName)
		prettyNode(b, v.Body, depth+1)
	case *Print:
		fmt.Fprintf(b, "%sPrint %s\n", indent, truncate(v.Text))
	case *Ask:
		fmt.Fprintf(b, "%sAsk %s\n", indent, truncate(v.Text))
	default:
		fmt.Fprintf(b, "%s<unknown %T>\n", indent, q)
	}
}

// String renders the inline textual content of q, matching the
// upstream convention that only message-shaped nodes produce text:
// Cross/Plus join their children's String() with newlines; System and
// User render their text; everything else is empty.
func String(q Query) string {
	switch v := q.(type) {
	case *Cross:
		return joinStrings(v.Items)
	case *Plus:
		return joinStrings(v.Items)
	case *Message:
		if v.Role == RoleUser || v.Role == RoleSystem {
			return v.Text
		}
		return ""
	default:
		return ""
	}
}

func joinStrings(items []Query) string {
	parts := make([]string, len(items))
	for i, it := range items {
		parts[i] = String(it)
	}
	return strings.Join(parts, "\n")
}
