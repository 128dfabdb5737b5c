package reindex

import (
	"context"

	"github.com/kailas-cloud/postdex/internal/domain/document"
	"github.com/kailas-cloud/postdex/internal/domain/document/patch"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
	"github.com/kailas-cloud/postdex/internal/usecase/builder"
	"github.com/kailas-cloud/postdex/internal/usecase/iterator"
)

// Engine receives schemas and documents. Deleting an absent document is
// not an error. ApplyPartialUpdate may return domain.ErrNotImplemented.
type Engine interface {
	PutIndexSettings(ctx context.Context, idx schema.Index) error
	PutDocument(ctx context.Context, doc *document.Document) error
	ApplyPartialUpdate(ctx context.Context, docType, id string, p patch.Patch) error
	DeleteDocument(ctx context.Context, docType, id string) error
}

// Builders selects the builder for a document type.
type Builders interface {
	Get(docType string) (builder.DocBuilder, error)
}

// CursorStore persists bulk-run positions per tenant.
type CursorStore interface {
	Load(tenantID int64) (iterator.Cursor, error)
	Save(c iterator.Cursor) error
}
