package extract

import (
	"context"
	"sort"

	"github.com/kailas-cloud/postdex/internal/domain/entity"
	"github.com/kailas-cloud/postdex/internal/domain/mapping"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
)

// Taxonomy folds tags and categories into their fixed fields and every other
// taxonomy into taxonomy.<name>.
type Taxonomy struct{}

func (Taxonomy) Name() string { return NameTaxonomy }
func (Taxonomy) Owns() []string {
	return []string{"tag", "category", "taxonomy", "tag_cat_count"}
}

func (Taxonomy) Extract(_ context.Context, in Input) (Fields, error) {
	names := make([]string, 0, len(in.Entity.Terms))
	for n := range in.Entity.Terms {
		names = append(names, n)
	}
	sort.Strings(names)

	f := Fields{}
	other := map[string]any{}
	count := 0
	for _, name := range names {
		terms := termObjects(in.Entity.Terms[name])
		if len(terms) == 0 {
			continue
		}
		switch name {
		case entity.TaxonomyTag:
			f["tag"] = terms
			count += len(terms)
		case entity.TaxonomyCategory:
			f["category"] = terms
			count += len(terms)
		default:
			other[fieldKey(name)] = terms
		}
	}
	if len(other) > 0 {
		f["taxonomy"] = other
	}
	f["tag_cat_count"] = schema.ClampToWidth(mapping.KindShort, int64(count))
	return f, nil
}

func termObjects(terms []entity.Term) []map[string]any {
	sorted := make([]entity.Term, 0, len(terms))
	seen := make(map[int64]struct{}, len(terms))
	for _, t := range terms {
		if _, dup := seen[t.TermID]; dup || t.Name == "" {
			continue
		}
		seen[t.TermID] = struct{}{}
		sorted = append(sorted, t)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].TermID < sorted[j].TermID })

	out := make([]map[string]any, 0, len(sorted))
	for _, t := range sorted {
		out = append(out, map[string]any{
			"name":    t.Name,
			"slug":    t.Slug,
			"term_id": t.TermID,
		})
	}
	return out
}

// TermNames returns the name of every term object in v.
func TermNames(v any) []string {
	terms, _ := v.([]map[string]any)
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		if n, ok := t["name"].(string); ok {
			out = append(out, n)
		}
	}
	return out
}
