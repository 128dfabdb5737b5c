package extract

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/entity"
	"github.com/kailas-cloud/postdex/internal/domain/mapping"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
)

// Core emits identity, classification, timestamps and the text fields.
// It is the one group a document cannot be built without.
type Core struct{}

var coreFields = []string{
	"post_id", "blog_id", "site_id", "post_type", "post_format", "post_mime_type",
	"post_status", "public", "has_password", "parent_post_id", "ancestor_post_ids",
	"menu_order", "url", "slug", "sticky",
	"author", "author_login", "author_id", "title", "content", "excerpt",
	"date", "date_token", "date_gmt", "date_gmt_token",
	"modified", "modified_token", "modified_gmt", "modified_gmt_token",
}

func (Core) Name() string   { return NameCore }
func (Core) Owns() []string { return coreFields }

func (Core) Extract(_ context.Context, in Input) (Fields, error) {
	e := in.Entity
	if e == nil || e.ID <= 0 || in.Tenant.ID <= 0 {
		return nil, fmt.Errorf("entity identity missing: %w", domain.ErrExtractionFailed)
	}

	format := e.Format
	if format == "" {
		format = "standard"
	}
	f := Fields{
		"post_id":      e.ID,
		"blog_id":      schema.ClampToWidth(mapping.KindInteger, in.Tenant.ID),
		"site_id":      schema.ClampToWidth(mapping.KindShort, in.Tenant.SiteID),
		"post_type":    e.Type,
		"post_format":  format,
		"post_status":  string(e.Status),
		"public":       in.Tenant.Public && entity.IsPublicStatus(e.Status),
		"has_password": e.HasPassword,
		"menu_order":   schema.ClampToWidth(mapping.KindInteger, int64(e.MenuOrder)),
		"sticky":       e.Sticky,
		"author_id":    schema.ClampToWidth(mapping.KindInteger, e.Author.ID),
		"title":        StripHTML(e.Title),
		"content":      StripHTML(e.Content),
		"excerpt":      StripHTML(e.Excerpt),
	}
	setString(f, "post_mime_type", e.MimeType)
	setString(f, "url", e.URL)
	setString(f, "slug", e.Slug)
	setString(f, "author", e.Author.Name)
	setString(f, "author_login", e.Author.Login)
	if e.ParentID > 0 {
		f["parent_post_id"] = e.ParentID
	}
	if ids := uniqueSorted(e.Ancestors); len(ids) > 0 {
		f["ancestor_post_ids"] = ids
	}
	setDate(f, "date", e.Date)
	setDate(f, "date_gmt", e.DateGMT.UTC())
	setDate(f, "modified", e.Modified)
	setDate(f, "modified_gmt", e.ModifiedGMT.UTC())
	return f, nil
}

func setString(f Fields, key, v string) {
	if v = strings.TrimSpace(v); v != "" {
		f[key] = v
	}
}

// setDate writes key and key_token, or neither for a zero time.
func setDate(f Fields, key string, t time.Time) {
	if t.IsZero() {
		return
	}
	f[key] = t.Format(schema.TimeLayout)
	f[key+"_token"] = DateToken(t)
}

// DateToken buckets t into its calendar components. Weekdays count from
// Sunday = 0; weeks are ISO weeks.
func DateToken(t time.Time) map[string]any {
	_, week := t.ISOWeek()
	return map[string]any{
		"year":             int64(t.Year()),
		"month":            int64(t.Month()),
		"day":              int64(t.Day()),
		"day_of_week":      int64(t.Weekday()),
		"week_of_year":     int64(week),
		"day_of_year":      int64(t.YearDay()),
		"hour":             int64(t.Hour()),
		"minute":           int64(t.Minute()),
		"second":           int64(t.Second()),
		"seconds_from_day": int64(t.Hour()*3600 + t.Minute()*60 + t.Second()),
	}
}
