package content

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/kailas-cloud/postdex/internal/domain/entity"
	"github.com/kailas-cloud/postdex/internal/usecase/iterator"
)

// Engagement kinds stored in entity_engagement.
const (
	engagementComment = "comment"
	engagementLike    = "like"
	engagementReblog  = "reblog"
)

// maxAncestorDepth bounds the parent walk so a cyclic parent chain terminates.
const maxAncestorDepth = 64

// entityColumns must match the scan order in scanEntity.
const entityColumns = `tenant_id, id, type, status, parent_id,
	author_id, author_login, author_name,
	title, content, excerpt, slug, url, format, mime_type, lang,
	menu_order, sticky, has_password,
	date, date_gmt, modified, modified_gmt, added_on,
	comment_count, is_reblog, lat, lon, featured_image_id, featured_image_url`

func scanEntity(scanner interface{ Scan(dest ...any) error }) (*entity.Entity, error) {
	var (
		e                                    entity.Entity
		date, dateGMT, modified, modifiedGMT sql.NullString
		addedOn, imageURL                    sql.NullString
		lat, lon                             sql.NullFloat64
		imageID                              sql.NullInt64
	)
	err := scanner.Scan(
		&e.TenantID, &e.ID, &e.Type, &e.Status, &e.ParentID,
		&e.Author.ID, &e.Author.Login, &e.Author.Name,
		&e.Title, &e.Content, &e.Excerpt, &e.Slug, &e.URL, &e.Format, &e.MimeType, &e.Lang,
		&e.MenuOrder, &e.Sticky, &e.HasPassword,
		&date, &dateGMT, &modified, &modifiedGMT, &addedOn,
		&e.CommentCount, &e.IsReblog, &lat, &lon, &imageID, &imageURL,
	)
	if err != nil {
		return nil, err
	}

	for _, d := range []struct {
		src sql.NullString
		dst *time.Time
	}{
		{date, &e.Date},
		{dateGMT, &e.DateGMT},
		{modified, &e.Modified},
		{modifiedGMT, &e.ModifiedGMT},
	} {
		t, err := parseTime(d.src)
		if err != nil {
			return nil, fmt.Errorf("parse date: %w", err)
		}
		*d.dst = t
	}
	if addedOn.Valid {
		t, err := parseTime(addedOn)
		if err != nil {
			return nil, fmt.Errorf("parse added_on: %w", err)
		}
		e.AddedOn = &t
	}
	if lat.Valid && lon.Valid {
		e.Location = &entity.GeoPoint{Lat: lat.Float64, Lon: lon.Float64}
	}
	if imageID.Valid {
		e.FeaturedImage = &entity.Image{ID: imageID.Int64, URL: imageURL.String}
	}
	return &e, nil
}

// FetchEntity loads an entity with its metadata, terms, engagement and
// ancestor chain. Absent entities return domain.ErrNotFound.
func (s *Store) FetchEntity(ctx context.Context, tenantID, id int64) (*entity.Entity, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+entityColumns+` FROM entities WHERE tenant_id = ? AND id = ?`, tenantID, id)
	e, err := scanEntity(row)
	if err != nil {
		return nil, notFound("entity", tenantID, id, err)
	}

	if e.Meta, err = s.FetchMetadata(ctx, tenantID, id); err != nil {
		return nil, err
	}
	if e.Terms, err = s.fetchTerms(ctx, tenantID, id); err != nil {
		return nil, err
	}
	if err := s.fetchEngagement(ctx, e); err != nil {
		return nil, err
	}
	if e.Ancestors, err = s.fetchAncestors(ctx, tenantID, id); err != nil {
		return nil, err
	}
	return e, nil
}

// FetchStatus returns the status of one entity without loading it.
func (s *Store) FetchStatus(ctx context.Context, tenantID, id int64) (entity.Status, error) {
	var st entity.Status
	err := s.db.QueryRowContext(ctx,
		`SELECT status FROM entities WHERE tenant_id = ? AND id = ?`, tenantID, id).Scan(&st)
	if err != nil {
		return "", notFound("entity status", tenantID, id, err)
	}
	return st, nil
}

// FetchChildren returns the ids of direct children of parentID, ascending.
// An empty entityType matches every type. Status is not filtered.
func (s *Store) FetchChildren(ctx context.Context, tenantID, parentID int64, entityType string) ([]int64, error) {
	q := `SELECT id FROM entities WHERE tenant_id = ? AND parent_id = ?`
	args := []any{tenantID, parentID}
	if entityType != "" {
		q += ` AND type = ?`
		args = append(args, entityType)
	}
	q += ` ORDER BY id`
	ids, err := s.queryIDs(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("children of %d/%d: %w", tenantID, parentID, err)
	}
	return ids, nil
}

// FetchMetadata returns raw metadata in insertion order. Keys may repeat.
func (s *Store) FetchMetadata(ctx context.Context, tenantID, id int64) ([]entity.MetaEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT key, value FROM entity_meta
		WHERE tenant_id = ? AND entity_id = ?
		ORDER BY seq`, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("metadata of %d/%d: %w", tenantID, id, err)
	}
	defer func() { _ = rows.Close() }()

	var out []entity.MetaEntry
	for rows.Next() {
		var m entity.MetaEntry
		if err := rows.Scan(&m.Key, &m.Value); err != nil {
			return nil, fmt.Errorf("scan metadata: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// EnumerateIDs implements iterator.Source with keyset pagination.
func (s *Store) EnumerateIDs(
	ctx context.Context, tenantID int64, filter iterator.Filter, after int64, offset, limit int,
) ([]int64, error) {
	q := `SELECT id FROM entities WHERE tenant_id = ? AND id > ?`
	args := []any{tenantID, after}
	if n := len(filter.ExcludeStatuses); n > 0 {
		q += ` AND status NOT IN (` + strings.TrimSuffix(strings.Repeat("?,", n), ",") + `)`
		for _, st := range filter.ExcludeStatuses {
			args = append(args, string(st))
		}
	}
	q += ` ORDER BY id LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	ids, err := s.queryIDs(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("enumerate tenant %d: %w", tenantID, err)
	}
	return ids, nil
}

func (s *Store) fetchTerms(ctx context.Context, tenantID, id int64) (map[string][]entity.Term, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT taxonomy, term_id, name, slug FROM entity_terms
		WHERE tenant_id = ? AND entity_id = ?
		ORDER BY taxonomy, position`, tenantID, id)
	if err != nil {
		return nil, fmt.Errorf("terms of %d/%d: %w", tenantID, id, err)
	}
	defer func() { _ = rows.Close() }()

	terms := make(map[string][]entity.Term)
	for rows.Next() {
		var tax string
		var t entity.Term
		if err := rows.Scan(&tax, &t.TermID, &t.Name, &t.Slug); err != nil {
			return nil, fmt.Errorf("scan term: %w", err)
		}
		terms[tax] = append(terms[tax], t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(terms) == 0 {
		return nil, nil
	}
	return terms, nil
}

func (s *Store) fetchEngagement(ctx context.Context, e *entity.Entity) error {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, user_id FROM entity_engagement
		WHERE tenant_id = ? AND entity_id = ?
		ORDER BY kind, user_id`, e.TenantID, e.ID)
	if err != nil {
		return fmt.Errorf("engagement of %d/%d: %w", e.TenantID, e.ID, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var kind string
		var user int64
		if err := rows.Scan(&kind, &user); err != nil {
			return fmt.Errorf("scan engagement: %w", err)
		}
		switch kind {
		case engagementComment:
			e.Commenters = append(e.Commenters, user)
		case engagementLike:
			e.Likers = append(e.Likers, user)
		case engagementReblog:
			e.Rebloggers = append(e.Rebloggers, user)
		}
	}
	return rows.Err()
}

// fetchAncestors walks the parent chain, nearest first. A parent id is
// reported even when the parent row itself is missing.
func (s *Store) fetchAncestors(ctx context.Context, tenantID, id int64) ([]int64, error) {
	ids, err := s.queryIDs(ctx, `
		WITH RECURSIVE chain(id, parent_id, depth) AS (
			SELECT id, parent_id, 0 FROM entities WHERE tenant_id = ? AND id = ?
			UNION ALL
			SELECT e.id, e.parent_id, c.depth + 1
			FROM entities e JOIN chain c ON e.tenant_id = ? AND e.id = c.parent_id
			WHERE c.parent_id <> 0 AND c.depth < ?
		)
		SELECT parent_id FROM chain WHERE parent_id <> 0 ORDER BY depth`,
		tenantID, id, tenantID, maxAncestorDepth)
	if err != nil {
		return nil, fmt.Errorf("ancestors of %d/%d: %w", tenantID, id, err)
	}
	return ids, nil
}

func (s *Store) queryIDs(ctx context.Context, q string, args ...any) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SaveEntity replaces an entity together with its metadata, terms and
// engagement. Ancestors are derived from parent ids and are not stored.
func (s *Store) SaveEntity(ctx context.Context, e *entity.Entity) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	for _, table := range []string{"entity_meta", "entity_terms", "entity_engagement"} {
		if _, err = tx.ExecContext(ctx,
			`DELETE FROM `+table+` WHERE tenant_id = ? AND entity_id = ?`, e.TenantID, e.ID); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if _, err = tx.ExecContext(ctx,
		`DELETE FROM entities WHERE tenant_id = ? AND id = ?`, e.TenantID, e.ID); err != nil {
		return fmt.Errorf("clear entity: %w", err)
	}

	var lat, lon sql.NullFloat64
	if e.Location != nil {
		lat = sql.NullFloat64{Float64: e.Location.Lat, Valid: true}
		lon = sql.NullFloat64{Float64: e.Location.Lon, Valid: true}
	}
	var imageID sql.NullInt64
	var imageURL sql.NullString
	if e.FeaturedImage != nil {
		imageID = sql.NullInt64{Int64: e.FeaturedImage.ID, Valid: true}
		imageURL = sql.NullString{String: e.FeaturedImage.URL, Valid: true}
	}
	var addedOn sql.NullString
	if e.AddedOn != nil {
		addedOn = formatTime(*e.AddedOn)
	}

	_, err = tx.ExecContext(ctx, `INSERT INTO entities (`+entityColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.TenantID, e.ID, e.Type, string(e.Status), e.ParentID,
		e.Author.ID, e.Author.Login, e.Author.Name,
		e.Title, e.Content, e.Excerpt, e.Slug, e.URL, e.Format, e.MimeType, e.Lang,
		e.MenuOrder, boolInt(e.Sticky), boolInt(e.HasPassword),
		formatTime(e.Date), formatTime(e.DateGMT), formatTime(e.Modified), formatTime(e.ModifiedGMT), addedOn,
		e.CommentCount, boolInt(e.IsReblog), lat, lon, imageID, imageURL,
	)
	if err != nil {
		return fmt.Errorf("insert entity %d/%d: %w", e.TenantID, e.ID, err)
	}

	for _, m := range e.Meta {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO entity_meta (tenant_id, entity_id, key, value) VALUES (?, ?, ?, ?)`,
			e.TenantID, e.ID, m.Key, m.Value); err != nil {
			return fmt.Errorf("insert meta %q: %w", m.Key, err)
		}
	}

	taxonomies := make([]string, 0, len(e.Terms))
	for tax := range e.Terms {
		taxonomies = append(taxonomies, tax)
	}
	sort.Strings(taxonomies)
	for _, tax := range taxonomies {
		for pos, t := range e.Terms[tax] {
			if _, err = tx.ExecContext(ctx, `
				INSERT INTO entity_terms (tenant_id, entity_id, taxonomy, position, term_id, name, slug)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				e.TenantID, e.ID, tax, pos, t.TermID, t.Name, t.Slug); err != nil {
				return fmt.Errorf("insert term %s/%d: %w", tax, t.TermID, err)
			}
		}
	}

	for kind, users := range map[string][]int64{
		engagementComment: e.Commenters,
		engagementLike:    e.Likers,
		engagementReblog:  e.Rebloggers,
	} {
		for _, u := range users {
			if _, err = tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO entity_engagement (tenant_id, entity_id, kind, user_id)
				VALUES (?, ?, ?, ?)`, e.TenantID, e.ID, kind, u); err != nil {
				return fmt.Errorf("insert %s by %d: %w", kind, u, err)
			}
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit entity %d/%d: %w", e.TenantID, e.ID, err)
	}
	return nil
}
