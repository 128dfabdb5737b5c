// Package schema composes index settings and document mappings for the
// post index.
package schema

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/mapping"
)

// DocTypePost is the document type of every post-like entity.
const DocTypePost = "post"

// Topology defaults.
const (
	DefaultShards   = 1
	DefaultReplicas = 2
	DefaultLang     = "en"
	DefaultName     = "posts"
)

// Options are caller overrides. Zero values fall back to defaults.
type Options struct {
	Lang     string
	Name     string
	Shards   int
	Replicas int
}

// DefaultOptions returns the baseline options.
func DefaultOptions() Options {
	return Options{Lang: DefaultLang, Name: DefaultName, Shards: DefaultShards, Replicas: DefaultReplicas}
}

func (o Options) merge(def Options) Options {
	if o.Lang == "" {
		o.Lang = def.Lang
	}
	if o.Name == "" {
		o.Name = def.Name
	}
	if o.Shards <= 0 {
		o.Shards = def.Shards
	}
	if o.Replicas <= 0 {
		o.Replicas = def.Replicas
	}
	return o
}

// Config is the index-level structural configuration.
type Config struct {
	Name string
	Lang string
}

// Settings is the index topology plus its analysis table.
type Settings struct {
	Shards   int      `json:"number_of_shards"`
	Replicas int      `json:"number_of_replicas"`
	Analysis Analysis `json:"analysis"`
}

// DocumentMapping is the fixed fields of one document type plus its ordered
// dynamic templates.
type DocumentMapping struct {
	AllEnabled       bool
	Properties       map[string]mapping.Field
	DynamicTemplates []DynamicTemplate
}

// MarshalJSON emits {"_all": ..., "dynamic_templates": [...], "properties": {...}}.
func (m DocumentMapping) MarshalJSON() ([]byte, error) {
	templates := m.DynamicTemplates
	if templates == nil {
		templates = []DynamicTemplate{}
	}
	return json.Marshal(map[string]any{
		"_all":              map[string]bool{"enabled": m.AllEnabled},
		"dynamic_templates": templates,
		"properties":        m.Properties,
	})
}

// Resolve returns the first template matching path, in declared order.
func (m DocumentMapping) Resolve(path string) (DynamicTemplate, bool) {
	for _, t := range m.DynamicTemplates {
		if t.Matches(path) {
			return t, true
		}
	}
	return DynamicTemplate{}, false
}

// FieldAt looks up a fixed field by dotted path, descending through object
// properties.
func (m DocumentMapping) FieldAt(path string) (mapping.Field, bool) {
	props := m.Properties
	parts := strings.Split(path, ".")
	for i, p := range parts {
		f, ok := props[p]
		if !ok {
			return mapping.Field{}, false
		}
		if i == len(parts)-1 {
			return f, true
		}
		if f.Type != mapping.KindObject {
			return mapping.Field{}, false
		}
		props = f.Properties
	}
	return mapping.Field{}, false
}

// Index is the complete schema submitted to the engine at index creation.
type Index struct {
	Config   Config
	Settings Settings
	Mappings map[string]DocumentMapping
}

// MarshalJSON emits {"settings": ..., "mappings": ...}.
func (i Index) MarshalJSON() ([]byte, error) {
	return json.Marshal(map[string]any{
		"settings": i.Settings,
		"mappings": i.Mappings,
	})
}

// Validate checks the structural invariants of the schema.
func (i Index) Validate() error {
	if i.Settings.Shards < 1 || i.Settings.Replicas < 0 {
		return fmt.Errorf("topology %d/%d: %w", i.Settings.Shards, i.Settings.Replicas, domain.ErrInvalidSchema)
	}
	def := i.Settings.Analysis.Default
	if def == "" {
		return fmt.Errorf("no default analyzer: %w", domain.ErrInvalidSchema)
	}
	if _, ok := i.Settings.Analysis.Analyzers[def]; !ok {
		return fmt.Errorf("default analyzer %q not in table: %w", def, domain.ErrInvalidSchema)
	}
	if len(i.Mappings) == 0 {
		return fmt.Errorf("no document mappings: %w", domain.ErrInvalidSchema)
	}
	for docType, m := range i.Mappings {
		seen := make(map[string]struct{}, len(m.DynamicTemplates))
		for _, t := range m.DynamicTemplates {
			if _, dup := seen[t.Name]; dup {
				return fmt.Errorf("%s: duplicate template %q: %w", docType, t.Name, domain.ErrInvalidSchema)
			}
			seen[t.Name] = struct{}{}
		}
	}
	return nil
}

// DocTypes returns the mapped document types in sorted order.
func (i Index) DocTypes() []string {
	types := make([]string, 0, len(i.Mappings))
	for t := range i.Mappings {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}

// GetConfig merges opts over defaults.
func GetConfig(opts Options) Config {
	o := opts.merge(DefaultOptions())
	return Config{Name: o.Name, Lang: o.Lang}
}

// GetSettings returns the topology and an analyzer table for the requested
// language plus the lowercase analyzer. The language analyzer is the default.
func GetSettings(opts Options) Settings {
	o := opts.merge(DefaultOptions())
	return Settings{
		Shards:   o.Shards,
		Replicas: o.Replicas,
		Analysis: AnalyzerBuilder{}.Build([]string{o.Lang, LangLowercase}),
	}
}

// GetMappings returns one mapping per supported document type.
func GetMappings(Options) map[string]DocumentMapping {
	return map[string]DocumentMapping{
		DocTypePost: {
			AllEnabled:       false,
			Properties:       postProperties(),
			DynamicTemplates: DynamicTemplates(),
		},
	}
}

// Build assembles and validates the complete index schema.
func Build(opts Options) (Index, error) {
	idx := Index{
		Config:   GetConfig(opts),
		Settings: GetSettings(opts),
		Mappings: GetMappings(opts),
	}
	if err := idx.Validate(); err != nil {
		return Index{}, err
	}
	return idx, nil
}

func postProperties() map[string]mapping.Field {
	p := map[string]mapping.Field{
		"post_id":           mapping.PrimitiveStored(mapping.Long),
		"blog_id":           mapping.PrimitiveStored(mapping.Integer),
		"site_id":           mapping.Primitive(mapping.Short),
		"post_type":         mapping.Keyword(),
		"post_format":       mapping.Keyword(),
		"post_mime_type":    mapping.TextRaw(),
		"post_status":       mapping.Keyword(),
		"public":            mapping.Primitive(mapping.Boolean),
		"has_password":      mapping.Primitive(mapping.Boolean),
		"parent_post_id":    mapping.Primitive(mapping.Long),
		"ancestor_post_ids": mapping.Primitive(mapping.Long),
		"menu_order":        mapping.Primitive(mapping.Integer),
		"lang":              mapping.Keyword(),
		"url":               mapping.TextRaw("url"),
		"slug":              mapping.Keyword(),
		"sticky":            mapping.Primitive(mapping.Boolean),

		"author":       mapping.TextRaw("author"),
		"author_login": mapping.Keyword(),
		"author_id":    mapping.Primitive(mapping.Integer),
		"title":        mapping.TextCounted("title"),
		"content":      mapping.TextCounted("content"),
		"excerpt":      mapping.TextCounted("excerpt"),

		"tag_cat_count": mapping.Primitive(mapping.Short),
		"tag":           mapping.TagOrCategory(),
		"category":      mapping.TagOrCategory(),
		"mlt_content":   mapping.Text(),
		"file":          mapping.FileAttachment(),

		"link":               mapping.URLAnalyzed(),
		"image":              mapping.URL(),
		"embed":              mapping.URL(),
		"shortcode_types":    mapping.Keyword(),
		"featured_image":     mapping.Keyword(),
		"featured_image_url": mapping.URL(),
		"hashtag":            mapping.Object(map[string]mapping.Field{"name": mapping.Keyword()}),
		"mention": mapping.Object(map[string]mapping.Field{
			"name": mapping.MultiField(map[string]mapping.Field{
				"name": mapping.Keyword(),
				"lc":   mapping.KeywordLowercase(),
			}),
		}),

		"commenter_ids": mapping.Primitive(mapping.Integer),
		"comment_count": mapping.Primitive(mapping.Integer),
		"date_added":    mapping.Datetime(),
		"liker_ids":     mapping.Primitive(mapping.Integer),
		"like_count":    mapping.Primitive(mapping.Short),
		"is_reblogged":  mapping.Primitive(mapping.Boolean),
		"reblogger_ids": mapping.Primitive(mapping.Integer),
		"reblog_count":  mapping.Primitive(mapping.Short),

		"location": mapping.GeoPoint(),
	}
	for _, d := range []string{"date", "date_gmt", "modified", "modified_gmt"} {
		p[d] = mapping.Datetime()
		p[d+"_token"] = mapping.DatetimeToken()
	}
	p["date_gmt"] = mapping.DatetimeStored()
	return p
}
