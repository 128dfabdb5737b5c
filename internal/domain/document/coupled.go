package document

import "slices"

// Coupled names entities whose documents must be rebuilt after the entity
// that produced this reference.
type Coupled struct {
	Type string
	IDs  []int64
}

// NewCoupled returns a reference with ids sorted and deduplicated, or false
// when no ids remain.
func NewCoupled(docType string, ids []int64) (Coupled, bool) {
	if len(ids) == 0 {
		return Coupled{}, false
	}
	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return Coupled{Type: docType, IDs: slices.Compact(sorted)}, true
}
