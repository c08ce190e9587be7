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

// Package pull scans a query tree for the models it references and
// ensures each is available on its resolved backend before execution.
package pull

import (
	"sort"

	"github.com/spnl-dev/spnl/pkg/ir"
)

// ExtractModels walks query and returns the sorted, de-duplicated set
// of model names it references. A query may be pre-optimization
// (Generate, Augment) or post-optimization (Repeat, Map); both shapes
// are recognized so the same scan works whether pull runs before or
// after the optimizer.
func ExtractModels(query ir.Query) []string {
	var models []string
	extractModelsInto(query, &models)

	sort.Strings(models)
	return dedupSorted(models)
}

func extractModelsInto(query ir.Query, models *[]string) {
	if query == nil {
		return
	}

	switch v := query.(type) {
	case *ir.Generate:
		*models = append(*models, v.Metadata.Model)
	case *ir.Repeat:
		*models = append(*models, v.Generate.Metadata.Model)
	case *ir.Map:
		*models = append(*models, v.Metadata.Model)
	case *ir.Augment:
		*models = append(*models, v.EmbeddingModel)
	}

	for _, child := range query.Children() {
		extractModelsInto(child, models)
	}
}

func dedupSorted(models []string) []string {
	out := models[:0]
	var last string
	for i, m := range models {
		if i > 0 && m == last {
			continue
		}
		out = append(out, m)
		last = m
	}
	return out
}
