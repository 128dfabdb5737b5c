// Package entity models the content records read from the upstream store.
// Values here are read-only input to the document pipeline.
package entity

import "time"

// Status is the publication status of an entity.
type Status string

// Known statuses. Any other value is accepted and treated as indexable
// unless a builder's blacklist names it.
const (
	StatusPublish   Status = "publish"
	StatusDraft     Status = "draft"
	StatusPending   Status = "pending"
	StatusPrivate   Status = "private"
	StatusFuture    Status = "future"
	StatusTrash     Status = "trash"
	StatusInherit   Status = "inherit"
	StatusAutoDraft Status = "auto-draft"
)

// Entity types with special handling.
const (
	TypePost       = "post"
	TypePage       = "page"
	TypeAttachment = "attachment"
	TypeRevision   = "revision"
)

// Taxonomy names folded into the fixed tag/category fields.
const (
	TaxonomyTag      = "post_tag"
	TaxonomyCategory = "category"
)

// Tenant is the isolation boundary entity ids are scoped to.
type Tenant struct {
	ID              int64
	SiteID          int64
	Lang            string
	URL             string
	Public          bool
	IndexingEnabled bool
}

// Author identifies the entity author.
type Author struct {
	ID    int64
	Login string
	Name  string
}

// Term is one taxonomy assignment.
type Term struct {
	TermID int64
	Name   string
	Slug   string
}

// MetaEntry is one raw metadata key/value pair. A key may repeat.
type MetaEntry struct {
	Key   string
	Value string
}

// GeoPoint is a latitude/longitude pair.
type GeoPoint struct {
	Lat float64
	Lon float64
}

// Image references a media entity.
type Image struct {
	ID  int64
	URL string
}

// Entity is a single content item within a tenant.
type Entity struct {
	TenantID  int64
	ID        int64
	Type      string
	Status    Status
	ParentID  int64
	Ancestors []int64

	Author   Author
	Title    string
	Content  string
	Excerpt  string
	Slug     string
	URL      string
	Format   string
	MimeType string
	Lang     string

	MenuOrder   int
	Sticky      bool
	HasPassword bool

	Date        time.Time
	DateGMT     time.Time
	Modified    time.Time
	ModifiedGMT time.Time
	AddedOn     *time.Time

	Meta  []MetaEntry
	Terms map[string][]Term

	CommentCount int
	Commenters   []int64
	Likers       []int64
	Rebloggers   []int64
	IsReblog     bool

	Location      *GeoPoint
	FeaturedImage *Image
}

// IsPublicStatus reports whether s is visible to anonymous readers.
func IsPublicStatus(s Status) bool {
	return s == StatusPublish || s == StatusInherit
}

// MetaValues returns all values stored under key, in store order.
func (e *Entity) MetaValues(key string) []string {
	var out []string
	for _, m := range e.Meta {
		if m.Key == key {
			out = append(out, m.Value)
		}
	}
	return out
}
