package document

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// discriminators shortens well-known document types inside ids.
var discriminators = map[string]string{"post": "p"}

// ID returns the index slot for one entity: "<tenant>-<discriminator>-<entity>".
// Distinct (tenant, entity) pairs never share an id.
func ID(docType string, tenantID, entityID int64) string {
	return strconv.FormatInt(tenantID, 10) + "-" + Discriminator(docType) + "-" + strconv.FormatInt(entityID, 10)
}

// Discriminator returns the id segment for docType.
func Discriminator(docType string) string {
	if d, ok := discriminators[docType]; ok {
		return d
	}
	return docType
}

// ValidType reports whether docType can be used in ids. A type may not
// contain separators or take the discriminator of another type.
func ValidType(docType string) error {
	if docType == "" {
		return fmt.Errorf("document type is required")
	}
	if strings.ContainsAny(docType, "-:") {
		return fmt.Errorf("document type %q must not contain '-' or ':'", docType)
	}
	for t, d := range discriminators {
		if docType == d && docType != t {
			return fmt.Errorf("document type %q collides with the ids of %q", docType, t)
		}
	}
	return nil
}

// Document is the flattened, typed record for one entity (immutable value object).
type Document struct {
	id       string
	docType  string
	tenantID int64
	entityID int64
	fields   map[string]any
}

// New validates and creates a Document. The id is derived, never supplied.
func New(docType string, tenantID, entityID int64, fields map[string]any) (Document, error) {
	if err := ValidType(docType); err != nil {
		return Document{}, err
	}
	if tenantID <= 0 || entityID <= 0 {
		return Document{}, fmt.Errorf("tenant and entity ids must be positive, got %d/%d", tenantID, entityID)
	}
	return Document{
		id:       ID(docType, tenantID, entityID),
		docType:  docType,
		tenantID: tenantID,
		entityID: entityID,
		fields:   cloneFields(fields),
	}, nil
}

// ID returns the document identifier.
func (d *Document) ID() string { return d.id }

// Type returns the document type.
func (d *Document) Type() string { return d.docType }

// TenantID returns the owning tenant.
func (d *Document) TenantID() int64 { return d.tenantID }

// EntityID returns the source entity id.
func (d *Document) EntityID() int64 { return d.entityID }

// Fields returns a copy of the top-level fields.
func (d *Document) Fields() map[string]any { return cloneFields(d.fields) }

// Len returns the number of top-level fields.
func (d *Document) Len() int { return len(d.fields) }

// Get looks up a value by dotted path through nested objects.
func (d *Document) Get(path string) (any, bool) {
	var cur any = d.fields
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		if cur, ok = m[p]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Paths returns the dotted path of every leaf, sorted.
func (d *Document) Paths() []string {
	var out []string
	collectPaths("", d.fields, &out)
	sort.Strings(out)
	return out
}

// MarshalJSON encodes the fields with sorted keys, so equal documents are
// byte-identical.
func (d Document) MarshalJSON() ([]byte, error) {
	if d.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(d.fields)
}

func collectPaths(prefix string, m map[string]any, out *[]string) {
	for k, v := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			collectPaths(path, child, out)
			continue
		}
		*out = append(*out, path)
	}
}

func cloneFields(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		if child, ok := v.(map[string]any); ok {
			v = cloneFields(child)
		}
		c[k] = v
	}
	return c
}
