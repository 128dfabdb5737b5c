// Package extract turns one facet of a source entity into a disjoint group
// of document fields.
package extract

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"golang.org/x/text/language"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/entity"
)

// Fields is one extractor's output, keyed by top-level document field.
type Fields map[string]any

// Input is everything an extractor may read. It is never mutated.
type Input struct {
	Tenant     entity.Tenant
	Entity     *entity.Entity
	Lang       string
	IndexMedia bool
}

// Extractor produces the fields of one facet. Output keys must be a subset
// of Owns().
type Extractor interface {
	Name() string
	Owns() []string
	Extract(ctx context.Context, in Input) (Fields, error)
}

// Deriver computes fields from the groups already produced by extractors.
type Deriver interface {
	Name() string
	Owns() []string
	Derive(ctx context.Context, in Input, groups map[string]Fields) (Fields, error)
}

// Group names of the extractors shipped here.
const (
	NameLang          = "lang"
	NameCore          = "core"
	NameTaxonomy      = "taxonomy"
	NameAddedOn       = "added_on"
	NameCommenters    = "commenters"
	NameReblogs       = "reblogs"
	NameLikers        = "likers"
	NameGeo           = "geo"
	NameFeaturedImage = "featured_image"
	NameMedia         = "media"
	NameMeta          = "meta"
	NameFiles         = "files"
	NameSimilar       = "similar_content"
)

// Namespace is the owner of each top-level field across a set of producers.
type Namespace map[string]string

// NewNamespace checks that no field is claimed by two producers.
func NewNamespace(owners map[string][]string) (Namespace, error) {
	names := make([]string, 0, len(owners))
	for n := range owners {
		names = append(names, n)
	}
	sort.Strings(names)

	ns := make(Namespace)
	for _, name := range names {
		for _, field := range owners[name] {
			if prev, taken := ns[field]; taken {
				return nil, fmt.Errorf("field %q claimed by %s and %s: %w", field, prev, name, domain.ErrInvalidSchema)
			}
			ns[field] = name
		}
	}
	return ns, nil
}

// Check verifies that every key in f belongs to producer.
func (ns Namespace) Check(producer string, f Fields) error {
	for key := range f {
		if owner := ns[key]; owner != producer {
			return fmt.Errorf("%s wrote %q owned by %q: %w", producer, key, owner, domain.ErrInvalidSchema)
		}
	}
	return nil
}

// ResolveLang picks the entity language, then the tenant's, then en. Only
// the base language of a BCP 47 tag is kept.
func ResolveLang(t entity.Tenant, e *entity.Entity) string {
	for _, l := range []string{e.Lang, t.Lang} {
		if l = strings.TrimSpace(l); l != "" {
			return baseLang(l)
		}
	}
	return "en"
}

func baseLang(l string) string {
	if tag, err := language.Parse(l); err == nil {
		if base, conf := tag.Base(); conf == language.Exact {
			return base.String()
		}
	}
	// Well-formed but unregistered subtags are kept as written.
	l = strings.ToLower(l)
	if i := strings.IndexAny(l, "-_"); i > 0 {
		l = l[:i]
	}
	return l
}

// Defaults returns the standard extractor set for post-like entities.
func Defaults(meta MetaFilter, files AttachmentExtractor) []Extractor {
	return []Extractor{
		Lang{},
		Core{},
		Taxonomy{},
		AddedOn{},
		Commenters{},
		Reblogs{},
		Likers{},
		Geo{},
		FeaturedImage{},
		Media{},
		Meta{Filter: meta},
		Files{Attachments: files},
	}
}

func fieldKey(s string) string {
	return strings.ReplaceAll(strings.TrimSpace(s), ".", "_")
}

func uniqueSorted(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup || id <= 0 {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Lang emits the resolved document language.
type Lang struct{}

func (Lang) Name() string   { return NameLang }
func (Lang) Owns() []string { return []string{"lang"} }

func (Lang) Extract(_ context.Context, in Input) (Fields, error) {
	return Fields{"lang": in.Lang}, nil
}
