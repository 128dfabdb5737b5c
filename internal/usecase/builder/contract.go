package builder

import (
	"context"

	"github.com/kailas-cloud/postdex/internal/domain/document"
	"github.com/kailas-cloud/postdex/internal/domain/document/patch"
	"github.com/kailas-cloud/postdex/internal/domain/entity"
)

// ContentStore reads source entities. Every call names its tenant; absent
// tenants and entities return domain.ErrNotFound.
type ContentStore interface {
	FetchTenant(ctx context.Context, tenantID int64) (entity.Tenant, error)
	FetchEntity(ctx context.Context, tenantID, id int64) (*entity.Entity, error)
	FetchChildren(ctx context.Context, tenantID, parentID int64, entityType string) ([]int64, error)
	FetchStatus(ctx context.Context, tenantID, id int64) (entity.Status, error)
	FetchMetadata(ctx context.Context, tenantID, id int64) ([]entity.MetaEntry, error)
}

// DocBuilder is implemented once per document type.
type DocBuilder interface {
	Type() string
	ID(ref Ref) string
	IsIndexable(ctx context.Context, ref Ref) (bool, *Rejection, error)
	Build(ctx context.Context, ref Ref) (Result, error)
	CoupledDocuments(ctx context.Context, ref Ref) ([]document.Coupled, error)
	Update(ref Ref, ev Event) (patch.Patch, error)
}
