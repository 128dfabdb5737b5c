// Package mapping is the reusable library of index field definitions.
// Every constructor is pure: the same arguments always yield an equal Field.
package mapping

import (
	"encoding/json"
	"fmt"
)

// Kind is the engine-level type of a field.
type Kind string

// Field kinds.
const (
	KindString     Kind = "string"
	KindShort      Kind = "short"
	KindInteger    Kind = "integer"
	KindLong       Kind = "long"
	KindDouble     Kind = "double"
	KindBoolean    Kind = "boolean"
	KindDate       Kind = "date"
	KindGeoPoint   Kind = "geo_point"
	KindObject     Kind = "object"
	KindMultiField Kind = "multi_field"
	KindTokenCount Kind = "token_count"
)

// Width selects a primitive numeric or boolean kind.
type Width = Kind

// Primitive widths.
const (
	Short   Width = KindShort
	Integer Width = KindInteger
	Long    Width = KindLong
	Double  Width = KindDouble
	Boolean Width = KindBoolean
)

// Index options.
const (
	IndexAnalyzed    = "analyzed"
	IndexNotAnalyzed = "not_analyzed"
	IndexNo          = "no"
)

// Analyzer names referenced by field definitions.
const (
	AnalyzerLowercase = "lowercase_analyzer"
	AnalyzerStandard  = "standard"
	AnalyzerDefault   = "default"
)

// DateFormat is the wire format of every datetime field.
const DateFormat = "date_hour_minute_second"

// Field is one field definition. Sub-fields of a multi_field live in Fields,
// children of an object live in Properties.
type Field struct {
	Type       Kind             `json:"type"`
	Index      string           `json:"index,omitempty"`
	Analyzer   string           `json:"analyzer,omitempty"`
	Store      bool             `json:"store,omitempty"`
	Format     string           `json:"format,omitempty"`
	LatLon     bool             `json:"lat_lon,omitempty"`
	Fields     map[string]Field `json:"fields,omitempty"`
	Properties map[string]Field `json:"properties,omitempty"`
}

// ParseWidth validates a caller-supplied primitive width.
func ParseWidth(s string) (Width, error) {
	switch w := Width(s); w {
	case Short, Integer, Long, Double, Boolean:
		return w, nil
	default:
		return "", fmt.Errorf("unsupported primitive width %q", s)
	}
}

// IsNumeric reports whether k holds numbers.
func (k Kind) IsNumeric() bool {
	switch k {
	case KindShort, KindInteger, KindLong, KindDouble, KindTokenCount:
		return true
	}
	return false
}

// Keyword is an exact-match string, not analyzed.
func Keyword() Field {
	return Field{Type: KindString, Index: IndexNotAnalyzed}
}

// KeywordLowercase is an exact-match string folded to lowercase.
func KeywordLowercase() Field {
	return Field{Type: KindString, Index: IndexAnalyzed, Analyzer: AnalyzerLowercase}
}

// Text is a full-text field using the index default analyzer.
func Text() Field {
	return Field{Type: KindString, Index: IndexAnalyzed}
}

// TextLowercaseRaw is full text named name, plus raw (unanalyzed) and lc
// (lowercase exact) siblings for sorting, faceting and exact match.
func TextLowercaseRaw(name string) Field {
	return Field{
		Type: KindMultiField,
		Fields: map[string]Field{
			name:  Text(),
			"raw": Keyword(),
			"lc":  KeywordLowercase(),
		},
	}
}

// TextRaw is an unanalyzed string. With a name it becomes a multi_field whose
// primary sub-field is that name.
func TextRaw(name ...string) Field {
	if len(name) == 0 || name[0] == "" {
		return Keyword()
	}
	return Field{
		Type: KindMultiField,
		Fields: map[string]Field{
			name[0]: Keyword(),
		},
	}
}

// TextCounted is full text named name plus a stored word counter.
func TextCounted(name string) Field {
	return Field{
		Type: KindMultiField,
		Fields: map[string]Field{
			name: Text(),
			"word_count": {
				Type:     KindTokenCount,
				Analyzer: AnalyzerStandard,
				Store:    true,
			},
		},
	}
}

// Primitive is a numeric or boolean field of the given width.
func Primitive(w Width) Field {
	return Field{Type: w}
}

// PrimitiveStored is Primitive marked for retrieval.
func PrimitiveStored(w Width) Field {
	return Field{Type: w, Store: true}
}

// Datetime is an ISO-8601 instant.
func Datetime() Field {
	return Field{Type: KindDate, Format: DateFormat}
}

// DatetimeStored is Datetime marked for retrieval.
func DatetimeStored() Field {
	return Field{Type: KindDate, Format: DateFormat, Store: true}
}

// DatetimeToken is the bucketed form of a datetime: each calendar component
// is a separate small integer usable in range queries.
func DatetimeToken() Field {
	return Field{
		Type: KindObject,
		Properties: map[string]Field{
			"year":             Primitive(Short),
			"month":            Primitive(Short),
			"day":              Primitive(Short),
			"day_of_week":      Primitive(Short),
			"week_of_year":     Primitive(Short),
			"day_of_year":      Primitive(Short),
			"hour":             Primitive(Short),
			"minute":           Primitive(Short),
			"second":           Primitive(Short),
			"seconds_from_day": Primitive(Integer),
		},
	}
}

// GeoPoint is a latitude/longitude pair.
func GeoPoint() Field {
	return Field{Type: KindGeoPoint, LatLon: true}
}

// URL is an unanalyzed url.
func URL() Field {
	return Field{Type: KindString, Index: IndexNotAnalyzed}
}

// URLAnalyzed is a url searchable by its words, with a raw sibling.
func URLAnalyzed() Field {
	return Field{
		Type: KindMultiField,
		Fields: map[string]Field{
			"url": {Type: KindString, Index: IndexAnalyzed, Analyzer: AnalyzerStandard},
			"raw": Keyword(),
		},
	}
}

// TagOrCategory is the nested {name, slug, term_id} object shared by every
// term kind.
func TagOrCategory() Field {
	return Object(map[string]Field{
		"name":    TextLowercaseRaw("name"),
		"slug":    Keyword(),
		"term_id": Primitive(Long),
	})
}

// Object is a plain object with the given children.
func Object(props map[string]Field) Field {
	return Field{Type: KindObject, Properties: props}
}

// MultiField groups several definitions of one value under sub-field names.
func MultiField(fields map[string]Field) Field {
	return Field{Type: KindMultiField, Fields: fields}
}

// FileAttachment is the text extracted from an attached file.
func FileAttachment() Field {
	return Object(map[string]Field{
		"name":           TextRaw("name"),
		"content":        Text(),
		"content_type":   Keyword(),
		"content_length": Primitive(Integer),
	})
}

// String renders the field as compact JSON.
func (f Field) String() string {
	b, err := json.Marshal(f)
	if err != nil {
		return fmt.Sprintf("<invalid field: %v>", err)
	}
	return string(b)
}
