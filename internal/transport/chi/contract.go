package chi

import (
	"context"

	dombatch "github.com/kailas-cloud/postdex/internal/domain/batch"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
	"github.com/kailas-cloud/postdex/internal/usecase/builder"
	healthuc "github.com/kailas-cloud/postdex/internal/usecase/health"
)

// Indexer is the slice of the reindex service exposed over HTTP.
type Indexer interface {
	Sync(ctx context.Context, tenantID, entityID int64) ([]dombatch.Result, error)
	Apply(ctx context.Context, tenantID, entityID int64, ev builder.Event) (dombatch.Result, error)
	PutSchema(ctx context.Context, opts schema.Options) (schema.Index, error)
}

// HealthChecker aggregates dependency checks.
type HealthChecker interface {
	Check(ctx context.Context) healthuc.Report
}
