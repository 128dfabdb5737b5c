package content

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/postdex/internal/domain/entity"
)

// FetchTenant returns the tenant or domain.ErrNotFound.
func (s *Store) FetchTenant(ctx context.Context, tenantID int64) (entity.Tenant, error) {
	var t entity.Tenant
	err := s.db.QueryRowContext(ctx, `
		SELECT id, site_id, lang, url, public, indexing_enabled
		FROM tenants WHERE id = ?`, tenantID,
	).Scan(&t.ID, &t.SiteID, &t.Lang, &t.URL, &t.Public, &t.IndexingEnabled)
	if err != nil {
		return entity.Tenant{}, notFound("tenant", tenantID, 0, err)
	}
	return t, nil
}

// SaveTenant inserts or replaces a tenant.
func (s *Store) SaveTenant(ctx context.Context, t entity.Tenant) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tenants (id, site_id, lang, url, public, indexing_enabled)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			site_id = excluded.site_id,
			lang = excluded.lang,
			url = excluded.url,
			public = excluded.public,
			indexing_enabled = excluded.indexing_enabled`,
		t.ID, t.SiteID, t.Lang, t.URL, boolInt(t.Public), boolInt(t.IndexingEnabled),
	)
	if err != nil {
		return fmt.Errorf("save tenant %d: %w", t.ID, err)
	}
	return nil
}
