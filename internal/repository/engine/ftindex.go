package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/kailas-cloud/postdex/internal/db"
	"github.com/kailas-cloud/postdex/internal/domain/mapping"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
)

// RediSearch stemming languages by index language.
var redisLanguages = map[string]string{
	"ar": "arabic",
	"de": "german",
	"en": "english",
	"es": "spanish",
	"fr": "french",
	"it": "italian",
	"nl": "dutch",
	"pt": "portuguese",
	"ru": "russian",
	"sv": "swedish",
	"zh": "chinese",
}

// buildFTIndex translates the fixed fields of every mapping into one JSON
// index. Leaves under objects are addressed with recursive descent so that
// arrays of objects index every element.
func buildFTIndex(idx schema.Index, prefix string) (*db.IndexDefinition, error) {
	b := db.NewIndex(prefix + idx.Config.Name).OnJSON().Language(redisLanguages[idx.Config.Lang])

	w := &ftWalker{b: b, seen: make(map[string]bool)}
	for _, docType := range idx.DocTypes() {
		b.Prefix(prefix + docType + ":")
		w.walk(idx.Mappings[docType].Properties, "$", "")
	}

	def, err := b.Build()
	if err != nil {
		return nil, fmt.Errorf("index definition: %w", err)
	}
	return def, nil
}

type ftWalker struct {
	b    *db.IndexBuilder
	seen map[string]bool
}

func (w *ftWalker) walk(props map[string]mapping.Field, path, alias string) {
	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Strings(names)

	sep := "."
	if path != "$" {
		sep = ".."
	}
	for _, name := range names {
		f := props[name]
		p, a := path+sep+name, joinAlias(alias, name)
		switch f.Type {
		case mapping.KindObject:
			w.walk(f.Properties, p, a)
		case mapping.KindMultiField:
			w.multi(f, name, p, a)
		case mapping.KindGeoPoint:
			if path == "$" {
				w.add(db.IndexField{Name: "$." + geoField, Alias: a, Type: db.IndexFieldGeo})
			}
		default:
			if t, ok := ftType(f); ok {
				w.add(ftField(f, t, p, a))
			}
		}
	}
}

// multi indexes a multi_field value at most once as TEXT and once as TAG.
// The sub-field named like the field keeps the plain alias.
func (w *ftWalker) multi(f mapping.Field, name, path, alias string) {
	subs := make([]string, 0, len(f.Fields))
	for s := range f.Fields {
		subs = append(subs, s)
	}
	sort.Slice(subs, func(i, j int) bool {
		if subs[i] == name || subs[j] == name {
			return subs[i] == name
		}
		return subs[i] < subs[j]
	})

	done := make(map[db.IndexFieldType]bool)
	for _, s := range subs {
		sub := f.Fields[s]
		t, ok := ftType(sub)
		if !ok || done[t] {
			continue
		}
		done[t] = true
		a := alias
		if s != name {
			a = joinAlias(alias, s)
		}
		w.add(ftField(sub, t, path, a))
	}
}

func (w *ftWalker) add(f db.IndexField) {
	if w.seen[f.Alias] {
		return
	}
	w.seen[f.Alias] = true
	w.b.Field(f)
}

func ftType(f mapping.Field) (db.IndexFieldType, bool) {
	switch {
	case f.Index == mapping.IndexNo:
		return 0, false
	case f.Type == mapping.KindTokenCount:
		return 0, false
	case f.Type.IsNumeric():
		return db.IndexFieldNumeric, true
	case f.Type == mapping.KindBoolean, f.Type == mapping.KindDate:
		return db.IndexFieldTag, true
	case f.Type == mapping.KindString:
		if f.Index == mapping.IndexNotAnalyzed || f.Analyzer == mapping.AnalyzerLowercase {
			return db.IndexFieldTag, true
		}
		return db.IndexFieldText, true
	}
	return 0, false
}

func ftField(f mapping.Field, t db.IndexFieldType, path, alias string) db.IndexField {
	out := db.IndexField{Name: path, Alias: alias, Type: t}
	switch {
	case t == db.IndexFieldText && f.Analyzer == mapping.AnalyzerStandard:
		out.NoStem = true
	case f.Type == mapping.KindDate:
		out.Sortable = true
	case f.Store && t == db.IndexFieldNumeric:
		out.Sortable = true
	}
	return out
}

func joinAlias(parent, name string) string {
	if parent == "" {
		return name
	}
	return parent + "_" + strings.ReplaceAll(name, ".", "_")
}
