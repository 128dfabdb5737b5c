package db

import (
	"strings"
	"testing"
)

func TestIndexBuilder_Simple(t *testing.T) {
	idx, err := NewIndex("test-idx").
		Prefix("doc:").
		Field(IndexField{Name: "category", Type: IndexFieldTag}).
		Field(IndexField{Name: "price", Type: IndexFieldNumeric}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.Name != "test-idx" {
		t.Errorf("name = %q, want test-idx", idx.Name)
	}
	if idx.StorageType != StorageHash {
		t.Errorf("storage = %q, want HASH", idx.StorageType)
	}
	if len(idx.Fields) != 2 {
		t.Fatalf("fields count = %d, want 2", len(idx.Fields))
	}
	if idx.Fields[0].Name != "category" || idx.Fields[0].Type != IndexFieldTag {
		t.Errorf("field[0] = %+v, want category TAG", idx.Fields[0])
	}
	if idx.Fields[1].Name != "price" || idx.Fields[1].Type != IndexFieldNumeric {
		t.Errorf("field[1] = %+v, want price NUMERIC", idx.Fields[1])
	}
}

func TestIndexBuilder_JSONWithAliases(t *testing.T) {
	idx, err := NewIndex("posts").
		OnJSON().
		Prefix("pd:post:").
		Language("german").
		Field(IndexField{Name: "$.title", Alias: "title", Type: IndexFieldText}).
		Field(IndexField{Name: "$.tag..slug", Alias: "tag_slug", Type: IndexFieldTag}).
		Field(IndexField{Name: "$._geo", Alias: "location", Type: IndexFieldGeo}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if idx.StorageType != StorageJSON {
		t.Errorf("storage = %q, want JSON", idx.StorageType)
	}
	if idx.Fields[1].Alias != "tag_slug" || idx.Fields[2].Type != IndexFieldGeo {
		t.Errorf("fields = %+v", idx.Fields)
	}
	if idx.Language != "german" {
		t.Errorf("language = %q", idx.Language)
	}
}

func TestIndexBuilder_MultiplePrefixes(t *testing.T) {
	idx, err := NewIndex("multi-idx").
		Prefix("a:", "b:").
		Prefix("c:").
		Field(IndexField{Name: "x", Type: IndexFieldTag}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(idx.Prefixes) != 3 {
		t.Errorf("prefix count = %d, want 3", len(idx.Prefixes))
	}
}

func TestIndexBuilder_ValidationErrors(t *testing.T) {
	tag := func(name, alias string) IndexField {
		return IndexField{Name: name, Alias: alias, Type: IndexFieldTag}
	}
	tests := []struct {
		name    string
		builder *IndexBuilder
		wantErr string
	}{
		{"empty name", NewIndex("").Field(tag("x", "")), "index name is required"},
		{"no fields", NewIndex("idx"), "at least one field"},
		{"invalid characters", NewIndex("idx with spaces").Field(tag("x", "")), "invalid characters"},
		{"invalid alias", NewIndex("idx").Field(tag("$.a.b", "a.b")), "alias contains invalid characters"},
		{
			"duplicate alias",
			NewIndex("idx").
				Field(IndexField{Name: "$.url", Alias: "url", Type: IndexFieldText}).
				Field(tag("$.url", "url")),
			"duplicate field name",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.builder.Build()
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("got error %q, want containing %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestIndexDefinition_String(t *testing.T) {
	idx, err := NewIndex("my-idx").
		OnJSON().
		Prefix("doc:").
		Field(IndexField{Name: "$.cat", Alias: "cat", Type: IndexFieldTag}).
		Field(IndexField{Name: "$._geo", Alias: "location", Type: IndexFieldGeo}).
		Build()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	s := idx.String()
	if !strings.HasPrefix(s, "FT.CREATE ") {
		t.Errorf("expected FT.CREATE prefix, got %q", s)
	}
	if !strings.Contains(s, "my-idx ON JSON") {
		t.Errorf("missing index name or storage in %q", s)
	}
	if !strings.Contains(s, "$._geo AS location GEO") {
		t.Errorf("missing geo field in %q", s)
	}
}

func TestIndexBuilder_SameFieldTwoAliases(t *testing.T) {
	idx := &IndexDefinition{
		Name: "alias-idx",
		Fields: []IndexField{
			{Name: "$.url", Alias: "url", Type: IndexFieldText},
			{Name: "$.url", Alias: "url_raw", Type: IndexFieldTag},
		},
	}
	if err := idx.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestIndexBuilder_DuplicateFields(t *testing.T) {
	idx := &IndexDefinition{
		Name: "dup-idx",
		Fields: []IndexField{
			{Name: "field1", Type: IndexFieldTag},
			{Name: "field1", Type: IndexFieldNumeric},
		},
	}

	if err := idx.Validate(); err == nil {
		t.Fatal("expected error for duplicate fields")
	}
}
