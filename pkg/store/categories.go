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

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/wojcikm/alice/pkg/errs"
)

// ListCategories returns the taxonomy ordered by name and subcategory.
func (s *Store) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := s.query(ctx,
		`SELECT uuid, name, subcategory, description FROM categories ORDER BY name, subcategory`)
	if err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	defer rows.Close()

	var out []Category
	for rows.Next() {
		var c Category
		if err := rows.Scan(&c.UUID, &c.Name, &c.Subcategory, &c.Description); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// FindCategory looks up a category by name and subcategory.
func (s *Store) FindCategory(ctx context.Context, name, subcategory string) (*Category, error) {
	var c Category
	err := s.queryRow(ctx,
		`SELECT uuid, name, subcategory, description FROM categories WHERE name = ? AND subcategory = ?`,
		name, subcategory).Scan(&c.UUID, &c.Name, &c.Subcategory, &c.Description)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errs.NewNotFoundError("category", name+"/"+subcategory)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find category: %w", err)
	}
	return &c, nil
}
