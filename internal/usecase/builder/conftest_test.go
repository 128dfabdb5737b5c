package builder

import (
	"context"
	"time"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/entity"
	"github.com/kailas-cloud/postdex/internal/extract"
)

// mockContent is an in-memory ContentStore with optional overrides.
type mockContent struct {
	tenants  map[int64]entity.Tenant
	entities map[int64]*entity.Entity

	fetchEntityFn   func(ctx context.Context, tenantID, id int64) (*entity.Entity, error)
	fetchMetadataFn func(ctx context.Context, tenantID, id int64) ([]entity.MetaEntry, error)
	fetchChildrenFn func(ctx context.Context, tenantID, parentID int64, entityType string) ([]int64, error)
}

func newMockContent() *mockContent {
	return &mockContent{
		tenants: map[int64]entity.Tenant{
			1: {ID: 1, SiteID: 1, Lang: "en", Public: true, IndexingEnabled: true},
			2: {ID: 2, SiteID: 1, Lang: "en", IndexingEnabled: false},
		},
		entities: map[int64]*entity.Entity{},
	}
}

func (m *mockContent) put(e *entity.Entity) { m.entities[e.ID] = e }

func (m *mockContent) FetchTenant(_ context.Context, tenantID int64) (entity.Tenant, error) {
	t, ok := m.tenants[tenantID]
	if !ok {
		return entity.Tenant{}, domain.ErrNotFound
	}
	return t, nil
}

func (m *mockContent) FetchEntity(ctx context.Context, tenantID, id int64) (*entity.Entity, error) {
	if m.fetchEntityFn != nil {
		return m.fetchEntityFn(ctx, tenantID, id)
	}
	e, ok := m.entities[id]
	if !ok || e.TenantID != tenantID {
		return nil, domain.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (m *mockContent) FetchChildren(ctx context.Context, tenantID, parentID int64, entityType string) ([]int64, error) {
	if m.fetchChildrenFn != nil {
		return m.fetchChildrenFn(ctx, tenantID, parentID, entityType)
	}
	var ids []int64
	for _, e := range m.entities {
		if e.TenantID == tenantID && e.ParentID == parentID && e.Type == entityType {
			ids = append(ids, e.ID)
		}
	}
	return ids, nil
}

func (m *mockContent) FetchStatus(_ context.Context, tenantID, id int64) (entity.Status, error) {
	e, ok := m.entities[id]
	if !ok || e.TenantID != tenantID {
		return "", domain.ErrNotFound
	}
	return e.Status, nil
}

func (m *mockContent) FetchMetadata(ctx context.Context, tenantID, id int64) ([]entity.MetaEntry, error) {
	if m.fetchMetadataFn != nil {
		return m.fetchMetadataFn(ctx, tenantID, id)
	}
	e, ok := m.entities[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return e.Meta, nil
}

func samplePost(id int64) *entity.Entity {
	return &entity.Entity{
		TenantID: 1,
		ID:       id,
		Type:     entity.TypePost,
		Status:   entity.StatusPublish,
		Author:   entity.Author{ID: 5, Login: "ann", Name: "Ann"},
		Title:    "A <b>title</b>",
		Content:  `<p>Body with <a href="https://example.com">a link</a></p>`,
		Date:     time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		DateGMT:  time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC),
		Terms: map[string][]entity.Term{
			entity.TaxonomyTag: {{TermID: 10, Name: "Go", Slug: "go"}},
		},
		Meta: []entity.MetaEntry{{Key: "price", Value: "12345"}},
	}
}

func newTestBuilder(store ContentStore) *PostBuilder {
	b, err := NewPostBuilder(store,
		extract.Defaults(extract.NewMetaFilter(nil, nil), nil),
		[]extract.Deriver{extract.SimilarContent{}},
	)
	if err != nil {
		panic(err)
	}
	return b
}

// failingExtractor always errors.
type failingExtractor struct {
	name string
	owns []string
	err  error
}

func (f failingExtractor) Name() string   { return f.name }
func (f failingExtractor) Owns() []string { return f.owns }
func (f failingExtractor) Extract(context.Context, extract.Input) (extract.Fields, error) {
	return nil, f.err
}

// rogueExtractor writes a field it does not own.
type rogueExtractor struct{}

func (rogueExtractor) Name() string   { return "rogue" }
func (rogueExtractor) Owns() []string { return []string{"rogue"} }
func (rogueExtractor) Extract(context.Context, extract.Input) (extract.Fields, error) {
	return extract.Fields{"title": "stolen"}, nil
}
