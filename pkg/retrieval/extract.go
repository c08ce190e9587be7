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

package retrieval

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"
)

// ExtractText pulls plain text out of a binary document's raw bytes so
// it can be windowed like any other fragment source. name supplies the
// format hint via its extension (.pdf/.docx/.xlsx); anything else is
// an error, since the IR never carries a binary document the indexer
// doesn't know how to read.
func ExtractText(name string, content []byte) (string, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".pdf":
		return extractPDF(content)
	case ".docx":
		return extractOfficeFile(name, content, extractDOCX)
	case ".xlsx":
		return extractOfficeFile(name, content, extractXLSX)
	default:
		return "", fmt.Errorf("retrieval: no extractor for %q", name)
	}
}

func extractPDF(content []byte) (string, error) {
	reader, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("failed to parse PDF: %w", err)
	}

	var parts []string
	totalPages := reader.NumPage()
	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		if strings.TrimSpace(text) != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}

// extractOfficeFile spills content to a temp file: nguyenthenguyen/docx
// and excelize's simplest entry points are path-based, and a retrieval
// index build is not latency-sensitive enough to justify reimplementing
// OOXML zip parsing against an in-memory reader.
func extractOfficeFile(name string, content []byte, parse func(string) (string, error)) (string, error) {
	tmp, err := os.CreateTemp("", "spnl-extract-*"+filepath.Ext(name))
	if err != nil {
		return "", fmt.Errorf("failed to create temp file for %s: %w", name, err)
	}
	defer os.Remove(tmp.Name())
	defer tmp.Close()

	if _, err := tmp.Write(content); err != nil {
		return "", fmt.Errorf("failed to write temp file for %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("failed to flush temp file for %s: %w", name, err)
	}

	return parse(tmp.Name())
}

func extractDOCX(path string) (string, error) {
	doc, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open DOCX: %w", err)
	}
	defer doc.Close()
	return doc.Editable().GetContent(), nil
}

func extractXLSX(path string) (string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", fmt.Errorf("failed to open XLSX: %w", err)
	}
	defer f.Close()

	var parts []string
	for _, sheetName := range f.GetSheetList() {
		rows, err := f.GetRows(sheetName)
		if err != nil {
			continue
		}
		var sheetText strings.Builder
		for _, row := range rows {
			for _, cell := range row {
				if text := strings.TrimSpace(cell); text != "" {
					sheetText.WriteString(text)
					sheetText.WriteString(" ")
				}
			}
			sheetText.WriteString("\n")
		}
		if text := strings.TrimSpace(sheetText.String()); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, "\n"), nil
}
