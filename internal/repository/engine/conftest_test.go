package engine

import (
	"context"
	"testing"

	"github.com/kailas-cloud/postdex/internal/db"
	"github.com/kailas-cloud/postdex/internal/domain/document"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
)

// mockStore implements the consumer interface for tests.
type mockStore struct {
	pingFn        func(ctx context.Context) error
	getFn         func(ctx context.Context, key string) ([]byte, error)
	setFn         func(ctx context.Context, key string, value []byte) error
	jsonSetFn     func(ctx context.Context, key, path string, data []byte) error
	delFn         func(ctx context.Context, key string) error
	createIndexFn func(ctx context.Context, def *db.IndexDefinition) error
	dropIndexFn   func(ctx context.Context, name string) error
	indexExistsFn func(ctx context.Context, name string) (bool, error)
}

func (m *mockStore) Ping(ctx context.Context) error {
	if m.pingFn != nil {
		return m.pingFn(ctx)
	}
	return nil
}

func (m *mockStore) Get(ctx context.Context, key string) ([]byte, error) {
	if m.getFn != nil {
		return m.getFn(ctx, key)
	}
	return nil, db.ErrKeyNotFound
}

func (m *mockStore) Set(ctx context.Context, key string, value []byte) error {
	if m.setFn != nil {
		return m.setFn(ctx, key, value)
	}
	return nil
}

func (m *mockStore) JSONSet(ctx context.Context, key, path string, data []byte) error {
	if m.jsonSetFn != nil {
		return m.jsonSetFn(ctx, key, path, data)
	}
	return nil
}

func (m *mockStore) Del(ctx context.Context, key string) error {
	if m.delFn != nil {
		return m.delFn(ctx, key)
	}
	return nil
}

func (m *mockStore) CreateIndex(ctx context.Context, def *db.IndexDefinition) error {
	if m.createIndexFn != nil {
		return m.createIndexFn(ctx, def)
	}
	return nil
}

func (m *mockStore) DropIndex(ctx context.Context, name string) error {
	if m.dropIndexFn != nil {
		return m.dropIndexFn(ctx, name)
	}
	return nil
}

func (m *mockStore) IndexExists(ctx context.Context, name string) (bool, error) {
	if m.indexExistsFn != nil {
		return m.indexExistsFn(ctx, name)
	}
	return false, nil
}

func testSchema(t *testing.T) schema.Index {
	t.Helper()
	idx, err := schema.Build(schema.DefaultOptions())
	if err != nil {
		t.Fatalf("build schema: %v", err)
	}
	return idx
}

func testDocument(t *testing.T, id int64, fields map[string]any) *document.Document {
	t.Helper()
	doc, err := document.New(schema.DocTypePost, 1, id, fields)
	if err != nil {
		t.Fatalf("new document: %v", err)
	}
	return &doc
}

func samplePostFields() map[string]any {
	return map[string]any{
		"post_id":   int64(2),
		"blog_id":   int64(1),
		"title":     "Hello gophers",
		"content":   "Channels and goroutines",
		"post_type": "post",
		"public":    true,
		"date":      "2024-03-05T10:20:30",
		"tag": []map[string]any{
			{"name": "Go", "slug": "go", "term_id": int64(9)},
		},
		"location": map[string]any{"lat": 52.52, "lon": 13.405},
		"meta": map[string]any{
			"color": map[string]any{"value": []any{"red"}},
		},
	}
}
