package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/analysis/lang/ar"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/analysis/lang/de"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/lang/es"
	"github.com/blevesearch/bleve/v2/analysis/lang/fr"
	"github.com/blevesearch/bleve/v2/analysis/lang/it"
	"github.com/blevesearch/bleve/v2/analysis/lang/pt"
	"github.com/blevesearch/bleve/v2/analysis/lang/ru"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/single"
	bmapping "github.com/blevesearch/bleve/v2/mapping"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/document"
	"github.com/kailas-cloud/postdex/internal/domain/document/patch"
	"github.com/kailas-cloud/postdex/internal/domain/mapping"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
)

// ErrNoIndex is returned by document writes before PutIndexSettings.
var ErrNoIndex = errors.New("engine: index not created")

// typeField carries the document type inside bleve documents.
const typeField = "_type"

// schemaKey is the internal key holding the submitted schema JSON.
func schemaKey(index string) []byte { return []byte("schema:" + index) }

var bleveAnalyzers = map[string]string{
	"ar": ar.AnalyzerName,
	"de": de.AnalyzerName,
	"en": en.AnalyzerName,
	"es": es.AnalyzerName,
	"fr": fr.AnalyzerName,
	"it": it.AnalyzerName,
	"pt": pt.AnalyzerName,
	"ru": ru.AnalyzerName,
	"ja": cjk.AnalyzerName,
	"ko": cjk.AnalyzerName,
	"zh": cjk.AnalyzerName,
}

// Bleve is an embedded engine. With an empty path the index lives in memory.
//
// Thread safety: all methods are safe for concurrent use. PutIndexSettings
// takes the write lock while the index is recreated.
type Bleve struct {
	mu    sync.RWMutex
	path  string
	index bleve.Index
}

// NewBleve opens the index at path if one exists. Otherwise documents are
// rejected with ErrNoIndex until PutIndexSettings creates it.
func NewBleve(path string) (*Bleve, error) {
	b := &Bleve{path: path}
	if path == "" {
		return b, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return b, nil
		}
		return nil, fmt.Errorf("stat index %s: %w", path, err)
	}
	idx, err := bleve.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	b.index = idx
	return b, nil
}

// Ping reports whether the index is open.
func (b *Bleve) Ping(context.Context) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return ErrNoIndex
	}
	return nil
}

// PutIndexSettings recreates the index with the translated mapping. Bleve
// cannot change mappings in place, so existing documents are discarded.
func (b *Bleve) PutIndexSettings(_ context.Context, idx schema.Index) error {
	im, err := BleveMapping(idx)
	if err != nil {
		return err
	}
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index != nil {
		if err := b.index.Close(); err != nil {
			return fmt.Errorf("close index: %w", err)
		}
		b.index = nil
	}

	var created bleve.Index
	if b.path == "" {
		created, err = bleve.NewMemOnly(im)
	} else {
		if err := os.RemoveAll(b.path); err != nil {
			return fmt.Errorf("remove old index: %w", err)
		}
		created, err = bleve.New(b.path, im)
	}
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	b.index = created
	if err := created.SetInternal(schemaKey(idx.Config.Name), data); err != nil {
		return fmt.Errorf("save schema: %w", err)
	}
	return nil
}

// StoredSchema returns the schema JSON the index was created from, or
// domain.ErrNotFound.
func (b *Bleve) StoredSchema(_ context.Context, index string) ([]byte, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return nil, fmt.Errorf("schema %s: %w", index, domain.ErrNotFound)
	}
	data, err := b.index.GetInternal(schemaKey(index))
	if err != nil {
		return nil, fmt.Errorf("read schema %s: %w", index, err)
	}
	if data == nil {
		return nil, fmt.Errorf("schema %s: %w", index, domain.ErrNotFound)
	}
	return data, nil
}

// PutDocument indexes doc, replacing any previous version.
func (b *Bleve) PutDocument(_ context.Context, doc *document.Document) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return ErrNoIndex
	}
	fields := doc.Fields()
	fields[typeField] = doc.Type()
	if err := b.index.Index(doc.ID(), fields); err != nil {
		return fmt.Errorf("index %s: %w", doc.ID(), err)
	}
	return nil
}

// ApplyPartialUpdate is not supported: bleve documents are replaced whole.
func (b *Bleve) ApplyPartialUpdate(context.Context, string, string, patch.Patch) error {
	return fmt.Errorf("bleve partial update: %w", domain.ErrNotImplemented)
}

// DeleteDocument removes a document; absent documents are not an error.
func (b *Bleve) DeleteDocument(_ context.Context, _, id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return ErrNoIndex
	}
	if err := b.index.Delete(id); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

// DocCount returns the number of indexed documents.
func (b *Bleve) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.index == nil {
		return 0, ErrNoIndex
	}
	return b.index.DocCount()
}

// Close releases the index.
func (b *Bleve) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.index == nil {
		return nil
	}
	err := b.index.Close()
	b.index = nil
	return err
}

// BleveMapping translates idx into a bleve index mapping. Fixed fields get
// explicit field mappings; dynamic subtrees fall back to bleve's dynamic
// mapping. Multi-field siblings are indexed as "<field>.<sub>".
func BleveMapping(idx schema.Index) (*bmapping.IndexMappingImpl, error) {
	if err := idx.Validate(); err != nil {
		return nil, err
	}

	im := bleve.NewIndexMapping()
	im.TypeField = typeField
	im.DefaultAnalyzer = bleveAnalyzer(idx.Config.Lang)
	im.StoreDynamic = false
	im.DocValuesDynamic = false

	err := im.AddCustomAnalyzer(mapping.AnalyzerLowercase, map[string]any{
		"type":          custom.Name,
		"tokenizer":     single.Name,
		"token_filters": []string{lowercase.Name},
	})
	if err != nil {
		return nil, fmt.Errorf("lowercase analyzer: %w", err)
	}

	types := idx.DocTypes()
	for _, docType := range types {
		dm := idx.Mappings[docType]
		im.AddDocumentMapping(docType, bleveDocument(dm.Properties, dm.AllEnabled))
	}
	if len(types) > 0 {
		im.DefaultType = types[0]
	}
	return im, nil
}

func bleveAnalyzer(lang string) string {
	if a, ok := bleveAnalyzers[lang]; ok {
		return a
	}
	return standard.Name
}

func bleveDocument(props map[string]mapping.Field, inAll bool) *bmapping.DocumentMapping {
	dm := bleve.NewDocumentMapping()
	names := make([]string, 0, len(props))
	for n := range props {
		names = append(names, n)
	}
	sort.Strings(names)

	for _, name := range names {
		f := props[name]
		switch f.Type {
		case mapping.KindObject:
			dm.AddSubDocumentMapping(name, bleveDocument(f.Properties, inAll))
		case mapping.KindMultiField:
			subs := make([]string, 0, len(f.Fields))
			for s := range f.Fields {
				subs = append(subs, s)
			}
			sort.Strings(subs)
			var fms []*bmapping.FieldMapping
			for _, s := range subs {
				fm := bleveField(f.Fields[s], inAll)
				if fm == nil {
					continue
				}
				if s != name {
					fm.Name = name + "." + s
				}
				fms = append(fms, fm)
			}
			if len(fms) > 0 {
				dm.AddFieldMappingsAt(name, fms...)
			}
		default:
			if fm := bleveField(f, inAll); fm != nil {
				dm.AddFieldMappingsAt(name, fm)
			}
		}
	}
	return dm
}

func bleveField(f mapping.Field, inAll bool) *bmapping.FieldMapping {
	var fm *bmapping.FieldMapping
	switch {
	case f.Index == mapping.IndexNo, f.Type == mapping.KindTokenCount:
		return nil
	case f.Type.IsNumeric():
		fm = bleve.NewNumericFieldMapping()
	case f.Type == mapping.KindBoolean:
		fm = bleve.NewBooleanFieldMapping()
	case f.Type == mapping.KindDate:
		fm = bleve.NewDateTimeFieldMapping()
	case f.Type == mapping.KindGeoPoint:
		fm = bleve.NewGeoPointFieldMapping()
	case f.Type == mapping.KindString && f.Index == mapping.IndexNotAnalyzed:
		fm = bleve.NewKeywordFieldMapping()
	case f.Type == mapping.KindString:
		fm = bleve.NewTextFieldMapping()
		switch f.Analyzer {
		case "", mapping.AnalyzerDefault:
		case mapping.AnalyzerStandard:
			fm.Analyzer = standard.Name
		default:
			fm.Analyzer = f.Analyzer
		}
	default:
		return nil
	}
	fm.Store = f.Store
	fm.IncludeInAll = inAll
	return fm
}
