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
	"fmt"

	"github.com/google/uuid"
)

var schema = []string{
	`CREATE TABLE IF NOT EXISTS conversations (
    uuid VARCHAR(64) PRIMARY KEY,
    user_uuid VARCHAR(64) NOT NULL,
    name VARCHAR(255) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS messages (
    uuid VARCHAR(64) PRIMARY KEY,
    conversation_uuid VARCHAR(64) NOT NULL,
    role VARCHAR(32) NOT NULL,
    content TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    FOREIGN KEY (conversation_uuid) REFERENCES conversations(uuid) ON DELETE CASCADE
)`,
	`CREATE TABLE IF NOT EXISTS documents (
    uuid VARCHAR(64) PRIMARY KEY,
    source_uuid VARCHAR(64) NOT NULL,
    conversation_uuid VARCHAR(64) NOT NULL,
    name VARCHAR(255) NOT NULL,
    source VARCHAR(255) NOT NULL,
    role VARCHAR(32) NOT NULL,
    content_type VARCHAR(32) NOT NULL,
    category VARCHAR(64) NOT NULL,
    subcategory VARCHAR(64) NOT NULL,
    text TEXT NOT NULL,
    metadata TEXT NOT NULL,
    indexed INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS categories (
    uuid VARCHAR(64) PRIMARY KEY,
    name VARCHAR(64) NOT NULL,
    subcategory VARCHAR(64) NOT NULL,
    description VARCHAR(255) NOT NULL,
    UNIQUE (name, subcategory)
)`,
	`CREATE TABLE IF NOT EXISTS memories (
    uuid VARCHAR(64) PRIMARY KEY,
    name VARCHAR(255) NOT NULL,
    category_uuid VARCHAR(64) NOT NULL,
    document_uuid VARCHAR(64) NOT NULL UNIQUE,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    FOREIGN KEY (category_uuid) REFERENCES categories(uuid),
    FOREIGN KEY (document_uuid) REFERENCES documents(uuid)
)`,
	`CREATE TABLE IF NOT EXISTS conversation_memories (
    conversation_uuid VARCHAR(64) NOT NULL,
    memory_uuid VARCHAR(64) NOT NULL,
    created_at TIMESTAMP NOT NULL,
    PRIMARY KEY (conversation_uuid, memory_uuid),
    FOREIGN KEY (memory_uuid) REFERENCES memories(uuid) ON DELETE CASCADE
)`,
	`CREATE TABLE IF NOT EXISTS tasks (
    uuid VARCHAR(64) PRIMARY KEY,
    conversation_uuid VARCHAR(64) NOT NULL,
    name VARCHAR(255) NOT NULL,
    kind VARCHAR(16) NOT NULL,
    status VARCHAR(16) NOT NULL,
    description TEXT NOT NULL,
    result TEXT NOT NULL,
    position INTEGER NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL
)`,
	`CREATE TABLE IF NOT EXISTS actions (
    uuid VARCHAR(64) PRIMARY KEY,
    task_uuid VARCHAR(64) NOT NULL,
    tool VARCHAR(128) NOT NULL,
    name VARCHAR(255) NOT NULL,
    sequence INTEGER NOT NULL,
    status VARCHAR(16) NOT NULL,
    payload TEXT NOT NULL,
    result TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL,
    updated_at TIMESTAMP NOT NULL,
    FOREIGN KEY (task_uuid) REFERENCES tasks(uuid) ON DELETE CASCADE
)`,
	`CREATE TABLE IF NOT EXISTS action_documents (
    action_uuid VARCHAR(64) NOT NULL,
    document_uuid VARCHAR(64) NOT NULL,
    PRIMARY KEY (action_uuid, document_uuid),
    FOREIGN KEY (action_uuid) REFERENCES actions(uuid) ON DELETE CASCADE
)`,
}

// MySQL has no CREATE INDEX IF NOT EXISTS; it relies on primary keys there.
var indexes = []string{
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_uuid, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source_uuid)`,
	`CREATE INDEX IF NOT EXISTS idx_tasks_conversation ON tasks(conversation_uuid, position)`,
	`CREATE INDEX IF NOT EXISTS idx_actions_task ON actions(task_uuid, sequence)`,
}

func (s *Store) migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.exec(ctx, stmt); err != nil {
			return err
		}
	}
	if s.dialect == "mysql" {
		return nil
	}
	for _, stmt := range indexes {
		if _, err := s.exec(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

type seedCategory struct {
	name, subcategory, description string
}

var taxonomy = []seedCategory{
	{"profiles", "basic", "Basic facts about the user or the assistant: name, age, location"},
	{"profiles", "work", "Job, employer, role and professional background"},
	{"profiles", "development", "Learning goals, skills and personal growth"},
	{"profiles", "preferences", "Likes, dislikes, habits and preferred ways of working"},
	{"profiles", "relationships", "People the user knows and how they relate"},
	{"events", "general", "Things that happened or are scheduled to happen"},
	{"locations", "places", "Places the user visits, lives in or cares about"},
	{"resources", "apps", "Applications and online services"},
	{"resources", "devices", "Hardware the user owns or uses"},
	{"resources", "books", "Books read, being read or to read"},
	{"resources", "courses", "Courses and trainings"},
	{"resources", "movies", "Movies and series"},
	{"resources", "videos", "Online videos"},
	{"resources", "images", "Images and photos"},
	{"resources", "communities", "Communities, groups and forums"},
	{"resources", "music", "Music, artists and playlists"},
	{"resources", "articles", "Articles and blog posts"},
	{"resources", "channels", "Channels, newsletters and podcasts"},
	{"resources", "documents", "Files and documents"},
	{"resources", "notepad", "Free-form notes"},
	{"resources", "travel", "Trips, bookings and travel plans"},
	{"environment", "general", "Facts about the surroundings and current situation"},
}

// CategoryUUID is the stable identifier of a seeded category.
func CategoryUUID(name, subcategory string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("category:"+name+"/"+subcategory)).String()
}

func (s *Store) seedCategories(ctx context.Context) error {
	return s.WithTx(ctx, func(tx *Store) error {
		for _, c := range taxonomy {
			var count int
			if err := tx.queryRow(ctx,
				`SELECT COUNT(*) FROM categories WHERE name = ? AND subcategory = ?`,
				c.name, c.subcategory).Scan(&count); err != nil {
				return err
			}
			if count > 0 {
				continue
			}
			if _, err := tx.exec(ctx,
				`INSERT INTO categories (uuid, name, subcategory, description) VALUES (?, ?, ?, ?)`,
				CategoryUUID(c.name, c.subcategory), c.name, c.subcategory, c.description); err != nil {
				return fmt.Errorf("insert category %s/%s: %w", c.name, c.subcategory, err)
			}
		}
		return nil
	})
}
