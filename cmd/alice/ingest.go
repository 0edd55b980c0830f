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

package main

import (
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/wojcikm/alice/pkg/extract"
)

// IngestCmd loads files into the document index. Directories are walked
// and unsupported files skipped.
type IngestCmd struct {
	Paths []string `arg:"" type:"path" help:"Files or directories to load."`
}

func (c *IngestCmd) Run(cli *CLI) error {
	ctx, cancel := signalContext()
	defer cancel()
	rt, err := cli.openRuntime(ctx)
	if err != nil {
		return err
	}
	defer rt.Close()

	files, err := collectFiles(c.Paths)
	if err != nil {
		return err
	}

	var loaded, failed int
	for _, path := range files {
		docs, err := rt.Ingester().Ingest(ctx, path, "")
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Warn("Failed to ingest file", "path", path, "error", err)
			failed++
			continue
		}
		fmt.Printf("%s: %d chunks\n", path, len(docs))
		loaded++
	}

	fmt.Printf("Loaded %d files", loaded)
	if failed > 0 {
		fmt.Printf(", %d failed", failed)
	}
	fmt.Println()
	return nil
}

// collectFiles expands directories into the supported files they contain.
func collectFiles(paths []string) ([]string, error) {
	supported := extract.Supported()
	var files []string
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if !info.IsDir() {
			files = append(files, p)
			continue
		}
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && d.Name()[0] == '.' {
					return filepath.SkipDir
				}
				return nil
			}
			if slices.Contains(supported, strings.ToLower(filepath.Ext(path))) {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("failed to walk %s: %w", p, err)
		}
	}
	return files, nil
}
