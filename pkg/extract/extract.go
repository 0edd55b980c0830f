// Copyright 2026 The Alice Authors
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

// Package extract turns files on disk into plain text for ingestion.
package extract

import (
	"context"
	"fmt"
	"html"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/nguyenthenguyen/docx"
	"github.com/xuri/excelize/v2"

	"github.com/wojcikm/alice/pkg/errs"
)

// maxSheetCells bounds the cells read from one spreadsheet sheet.
const maxSheetCells = 5000

// Result is the text of one file plus what is known about it.
type Result struct {
	Name     string
	Path     string
	Format   string
	Text     string
	Metadata map[string]any
}

type parser func(ctx context.Context, path string, size int64) (string, map[string]any, error)

var parsers = map[string]parser{
	".pdf":  parsePDF,
	".docx": parseDOCX,
	".xlsx": parseXLSX,
}

var textExtensions = []string{".txt", ".md", ".markdown", ".csv", ".json", ".yaml", ".yml", ".html", ".xml", ".log"}

// Supported lists the extensions Extract understands.
func Supported() []string {
	out := slices.Clone(textExtensions)
	for ext := range parsers {
		out = append(out, ext)
	}
	slices.Sort(out)
	return out
}

// Extract reads the file at path and returns its text.
func Extract(ctx context.Context, path string) (*Result, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.NewNotFoundError("file", path)
		}
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.IsDir() {
		return nil, errs.NewValidationError("path", path+" is a directory", nil)
	}

	ext := strings.ToLower(filepath.Ext(path))
	res := &Result{
		Name:     filepath.Base(path),
		Path:     path,
		Format:   strings.TrimPrefix(ext, "."),
		Metadata: map[string]any{"file_size": info.Size()},
	}

	if p, ok := parsers[ext]; ok {
		text, meta, err := p(ctx, path, info.Size())
		if err != nil {
			return nil, fmt.Errorf("failed to extract %s: %w", res.Name, err)
		}
		res.Text = text
		for k, v := range meta {
			res.Metadata[k] = v
		}
		return res, nil
	}

	if !slices.Contains(textExtensions, ext) {
		return nil, errs.NewValidationError("path", fmt.Sprintf("unsupported file type %q", ext), nil)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", res.Name, err)
	}
	if !utf8.Valid(raw) {
		return nil, errs.NewValidationError("path", res.Name+" is not valid UTF-8 text", nil)
	}
	res.Text = string(raw)
	return res, nil
}

func parsePDF(ctx context.Context, path string, size int64) (string, map[string]any, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	reader, err := pdf.NewReader(f, size)
	if err != nil {
		return "", nil, err
	}

	var pages []string
	total := reader.NumPage()
	for n := 1; n <= total; n++ {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		page := reader.Page(n)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return "", nil, fmt.Errorf("page %d: %w", n, err)
		}
		if strings.TrimSpace(text) != "" {
			pages = append(pages, fmt.Sprintf("## Page %d\n%s", n, strings.TrimSpace(text)))
		}
	}
	return strings.Join(pages, "\n\n"), map[string]any{"pages": total}, nil
}

func parseDOCX(_ context.Context, path string, _ int64) (string, map[string]any, error) {
	r, err := docx.ReadDocxFile(path)
	if err != nil {
		return "", nil, err
	}
	defer r.Close()

	text := stripXML(r.Editable().GetContent())
	return text, map[string]any{"paragraphs": strings.Count(text, "\n") + 1}, nil
}

// stripXML turns WordprocessingML into text with one line per paragraph.
func stripXML(content string) string {
	content = strings.ReplaceAll(content, "</w:p>", "\n")
	var b strings.Builder
	inTag := false
	for _, r := range content {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
		case !inTag:
			b.WriteRune(r)
		}
	}
	lines := strings.Split(b.String(), "\n")
	out := lines[:0]
	for _, l := range lines {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return html.UnescapeString(strings.Join(out, "\n"))
}

func parseXLSX(ctx context.Context, path string, _ int64) (string, map[string]any, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return "", nil, err
	}
	defer f.Close()

	sheets := f.GetSheetList()
	parts := make([]string, 0, len(sheets))
	for _, name := range sheets {
		if err := ctx.Err(); err != nil {
			return "", nil, err
		}
		rows, err := f.GetRows(name)
		if err != nil {
			return "", nil, fmt.Errorf("sheet %s: %w", name, err)
		}

		var b strings.Builder
		fmt.Fprintf(&b, "## Sheet: %s\n", name)
		cells := 0
		for _, row := range rows {
			if cells >= maxSheetCells {
				b.WriteString("...\n")
				break
			}
			cells += len(row)
			if strings.TrimSpace(strings.Join(row, "")) == "" {
				continue
			}
			b.WriteString(strings.Join(row, " | "))
			b.WriteByte('\n')
		}
		parts = append(parts, strings.TrimSpace(b.String()))
	}
	return strings.Join(parts, "\n\n"), map[string]any{"sheets": len(sheets)}, nil
}
