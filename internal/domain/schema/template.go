package schema

import (
	"encoding/json"
	"strings"

	"github.com/kailas-cloud/postdex/internal/domain/mapping"
)

// Dynamic template names, in evaluation order.
const (
	TplTaxonomyName   = "tax_template_name"
	TplTaxonomySlug   = "tax_template_slug"
	TplTaxonomyTermID = "tax_template_term_id"
	TplHas            = "has_template"
	TplShortcodeID    = "shortcode_args_template"
	TplShortcodeCount = "shortcode_count_template"
	TplMetaString     = "meta_str_template"
	TplMetaLong       = "meta_long_template"
	TplMetaBoolean    = "meta_bool_template"
	TplMetaDouble     = "meta_float_template"
)

// DynamicTemplate applies Mapping to every field whose full dotted path
// matches PathMatch. '*' matches any run of characters, dots included.
type DynamicTemplate struct {
	Name      string
	PathMatch string
	Mapping   mapping.Field
}

// MarshalJSON emits {"<name>": {"path_match": ..., "mapping": ...}}.
func (t DynamicTemplate) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		t.Name: map[string]any{
			"path_match": t.PathMatch,
			"mapping":    t.Mapping,
		},
	})
}

// Matches reports whether path matches the template pattern.
func (t DynamicTemplate) Matches(path string) bool {
	return matchPath(t.PathMatch, path)
}

// DynamicTemplates returns the open-namespace rules: taxonomy, feature
// presence, embedded features, then typed metadata.
func DynamicTemplates() []DynamicTemplate {
	return []DynamicTemplate{
		{Name: TplTaxonomyName, PathMatch: "taxonomy.*.name", Mapping: mapping.TextLowercaseRaw("name")},
		{Name: TplTaxonomySlug, PathMatch: "taxonomy.*.slug", Mapping: mapping.Keyword()},
		{Name: TplTaxonomyTermID, PathMatch: "taxonomy.*.term_id", Mapping: mapping.Primitive(mapping.Long)},
		{Name: TplHas, PathMatch: "has.*", Mapping: mapping.Primitive(mapping.Short)},
		{Name: TplShortcodeID, PathMatch: "shortcode.*.id", Mapping: mapping.Keyword()},
		{Name: TplShortcodeCount, PathMatch: "shortcode.*.count", Mapping: mapping.Primitive(mapping.Short)},
		{Name: TplMetaString, PathMatch: "meta.*.value", Mapping: mapping.TextLowercaseRaw("value")},
		{Name: TplMetaLong, PathMatch: "meta.*.long", Mapping: mapping.Primitive(mapping.Long)},
		{Name: TplMetaBoolean, PathMatch: "meta.*.boolean", Mapping: mapping.Primitive(mapping.Boolean)},
		{Name: TplMetaDouble, PathMatch: "meta.*.double", Mapping: mapping.Primitive(mapping.Double)},
	}
}

// matchPath is the engine's simple-match: literal segments separated by '*'.
func matchPath(pattern, path string) bool {
	parts := strings.Split(pattern, "*")
	if len(parts) == 1 {
		return pattern == path
	}
	if !strings.HasPrefix(path, parts[0]) {
		return false
	}
	path = path[len(parts[0]):]
	last := parts[len(parts)-1]
	for _, part := range parts[1 : len(parts)-1] {
		i := strings.Index(path, part)
		if i < 0 {
			return false
		}
		path = path[i+len(part):]
	}
	return strings.HasSuffix(path, last)
}
