package store

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wojcikm/alice/pkg/config"
	"github.com/wojcikm/alice/pkg/document"
	"github.com/wojcikm/alice/pkg/errs"
	"github.com/wojcikm/alice/pkg/search"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	pool := config.NewDBPool()
	t.Cleanup(func() { _ = pool.Close() })

	db, err := pool.Get(ctx, &config.DatabaseConfig{
		Driver:   "sqlite",
		Database: filepath.Join(t.TempDir(), "alice.db"),
	})
	require.NoError(t, err)

	s, err := New(ctx, db, "sqlite")
	require.NoError(t, err)
	return s
}

func memoryDoc(t *testing.T, text, category, subcategory string) *document.Document {
	t.Helper()
	meta, err := document.NewMemoryMetadata(category, subcategory)
	require.NoError(t, err)
	return document.New(text, document.Metadata{
		Type:        document.ContentText,
		Variant:     meta,
		Name:        text,
		Source:      document.SourceMemory,
		ShouldIndex: true,
	})
}

func TestNewSeedsTaxonomyOnce(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	cats, err := s.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, len(taxonomy))

	// Running migrations again must not duplicate categories.
	again, err := New(ctx, s.db, "sqlite")
	require.NoError(t, err)
	cats, err = again.ListCategories(ctx)
	require.NoError(t, err)
	assert.Len(t, cats, len(taxonomy))

	travel, err := s.FindCategory(ctx, "resources", "travel")
	require.NoError(t, err)
	assert.Equal(t, CategoryUUID("resources", "travel"), travel.UUID)

	_, err = s.FindCategory(ctx, "resources", "spaceships")
	assert.True(t, errs.IsNotFound(err))
}

func TestNewRejectsUnknownDialect(t *testing.T) {
	s := newTestStore(t)
	_, err := New(context.Background(), s.db, "oracle")
	require.Error(t, err)
}

func TestRebind(t *testing.T) {
	s := &Store{dialect: "postgres"}
	assert.Equal(t, "SELECT * FROM t WHERE a = $1 AND b IN ($2, $3)",
		s.rebind("SELECT * FROM t WHERE a = ? AND b IN ("+placeholders(2)+")"))

	s.dialect = "mysql"
	assert.Equal(t, "a = ?", s.rebind("a = ?"))
}

func TestConversationMessages(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	c, err := s.GetOrCreateConversation(ctx, "", "user-1", "first")
	require.NoError(t, err)
	assert.NotEmpty(t, c.UUID)

	same, err := s.GetOrCreateConversation(ctx, c.UUID, "user-1", "ignored")
	require.NoError(t, err)
	assert.Equal(t, "first", same.Name)

	for _, content := range []string{"hi", "hello", "bye"} {
		_, err := s.AddMessage(ctx, c.UUID, "user", content)
		require.NoError(t, err)
	}

	msgs, err := s.ListMessages(ctx, c.UUID, 2)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.Equal(t, "bye", msgs[1].Content)
}

func TestDocumentRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := memoryDoc(t, "Trip to Krakow in June", "resources", "travel")
	doc.Metadata.Headers = document.Headers{"h1": {"Plans"}}
	require.NoError(t, s.InsertDocument(ctx, doc))

	got, err := s.GetDocument(ctx, doc.UUID)
	require.NoError(t, err)
	assert.Equal(t, doc.Text, got.Text)
	assert.Equal(t, doc.Metadata.Variant, got.Metadata.Variant)
	assert.Equal(t, []string{"Plans"}, got.Metadata.Headers["h1"])

	got.Text = "Trip to Gdansk in July"
	require.NoError(t, s.UpdateDocument(ctx, got))

	docs, err := s.GetDocuments(ctx, []string{"missing", doc.UUID})
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, "Trip to Gdansk in July", docs[0].Text)

	require.NoError(t, s.DeleteDocument(ctx, doc.UUID))
	_, err = s.GetDocument(ctx, doc.UUID)
	assert.True(t, errs.IsNotFound(err))
}

func TestMemoryLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := memoryDoc(t, "Dentist appointment on Friday", "events", "general")
	require.NoError(t, s.InsertDocument(ctx, doc))

	ts := now()
	m := &Memory{
		UUID:         uuid.NewString(),
		Name:         "dentist",
		CategoryUUID: CategoryUUID("events", "general"),
		DocumentUUID: doc.UUID,
		CreatedAt:    ts,
		UpdatedAt:    ts,
	}
	require.NoError(t, s.InsertMemory(ctx, m))

	rec, err := s.GetMemory(ctx, m.UUID)
	require.NoError(t, err)
	assert.Equal(t, "events", rec.Category.Name)
	require.NotNil(t, rec.Document)
	assert.Equal(t, doc.Text, rec.Document.Text)

	conv, err := s.GetOrCreateConversation(ctx, "", "user-1", "chat")
	require.NoError(t, err)
	require.NoError(t, s.LinkConversationMemory(ctx, conv.UUID, m.UUID))
	require.NoError(t, s.LinkConversationMemory(ctx, conv.UUID, m.UUID))

	linked, err := s.ListConversationMemories(ctx, conv.UUID)
	require.NoError(t, err)
	assert.Len(t, linked, 1)

	byDoc, err := s.MemoriesByDocuments(ctx, []string{doc.UUID})
	require.NoError(t, err)
	require.Len(t, byDoc, 1)
	assert.Equal(t, m.UUID, byDoc[0].UUID)

	listed, err := s.ListMemories(ctx, "events", "", 0)
	require.NoError(t, err)
	assert.Len(t, listed, 1)
	listed, err = s.ListMemories(ctx, "profiles", "", 0)
	require.NoError(t, err)
	assert.Empty(t, listed)

	require.NoError(t, s.DeleteMemory(ctx, m.UUID))
	_, err = s.GetMemory(ctx, m.UUID)
	assert.True(t, errs.IsNotFound(err))
	_, err = s.GetDocument(ctx, doc.UUID)
	assert.True(t, errs.IsNotFound(err))
}

func TestTasksAndActions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ts := now()
	task := &Task{
		UUID: uuid.NewString(), ConversationUUID: "conv-1", Name: "look up",
		Kind: TaskRegular, Status: TaskPending, Description: "find it", CreatedAt: ts, UpdatedAt: ts,
	}
	require.NoError(t, s.InsertTask(ctx, task))

	pos, err := s.MaxTaskPosition(ctx, "conv-1")
	require.NoError(t, err)
	assert.Equal(t, 0, pos)
	pos, err = s.MaxTaskPosition(ctx, "conv-2")
	require.NoError(t, err)
	assert.Equal(t, -1, pos)

	action := &Action{
		UUID: uuid.NewString(), TaskUUID: task.UUID, Tool: "memory", Name: "recall",
		Status: ActionPending, Payload: json.RawMessage(`{"query":"june"}`), CreatedAt: ts, UpdatedAt: ts,
	}
	require.NoError(t, s.InsertAction(ctx, action))

	total, done, err := s.CountActions(ctx, task.UUID)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, 0, done)

	doc := document.New("result", document.Metadata{})
	require.NoError(t, s.InsertDocument(ctx, doc))
	require.NoError(t, s.LinkActionDocument(ctx, action.UUID, doc.UUID))

	changed, err := s.CompleteAction(ctx, action.UUID, ActionCompleted, "ok")
	require.NoError(t, err)
	assert.True(t, changed)
	changed, err = s.CompleteAction(ctx, action.UUID, ActionCompleted, "again")
	require.NoError(t, err)
	assert.False(t, changed)

	got, err := s.GetActionWithDocuments(ctx, action.UUID)
	require.NoError(t, err)
	assert.Equal(t, "ok", got.Result)
	assert.JSONEq(t, `{"query":"june"}`, string(got.Payload))
	require.Len(t, got.Documents, 1)

	require.NoError(t, s.CompleteTask(ctx, task.UUID, "done"))
	updated, err := s.UpdatePendingTask(ctx, task.UUID, "renamed", "x")
	require.NoError(t, err)
	assert.False(t, updated)

	tasks, err := s.ListTasks(ctx, "conv-1")
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	assert.Equal(t, "look up", tasks[0].Name)
	assert.Equal(t, TaskCompleted, tasks[0].Status)
	require.Len(t, tasks[0].Actions, 1)
}

func TestWithTxRollsBack(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	doc := document.New("kept out", document.Metadata{})
	err := s.WithTx(ctx, func(tx *Store) error {
		if err := tx.InsertDocument(ctx, doc); err != nil {
			return err
		}
		return errs.NewValidationError("test", "abort", nil)
	})
	require.Error(t, err)

	_, err = s.GetDocument(ctx, doc.UUID)
	assert.True(t, errs.IsNotFound(err))
}

func TestKeywordIndex(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	k := NewKeywordIndex(s)

	trip := memoryDoc(t, "Trip to Krakow in June", "resources", "travel")
	book := memoryDoc(t, "Reading a book about June bugs", "resources", "books")
	hidden := memoryDoc(t, "June notes not indexed", "resources", "notepad")
	for _, d := range []*document.Document{trip, book, hidden} {
		require.NoError(t, s.InsertDocument(ctx, d))
	}
	require.NoError(t, k.Index(ctx, trip))
	require.NoError(t, k.Index(ctx, book))

	hits, err := k.Search(ctx, "June trip", search.Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, trip.UUID, hits[0].DocumentUUID)

	hits, err = k.Search(ctx, "June", search.Filters{Subcategory: "books"}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, book.UUID, hits[0].DocumentUUID)

	hits, err = k.Search(ctx, "June", search.Filters{Role: "memory", ContentType: "text"}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = k.Search(ctx, "June", search.Filters{ContentType: "image"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = k.Search(ctx, "June", search.Filters{Role: "chunk"}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, k.Delete(ctx, book.UUID))
	hits, err = k.Search(ctx, "June", search.Filters{}, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, trip.UUID, hits[0].DocumentUUID)

	hits, err = k.Search(ctx, "100%", search.Filters{}, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)
}
