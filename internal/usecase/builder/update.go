package builder

import (
	"fmt"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/document/patch"
	"github.com/kailas-cloud/postdex/internal/domain/mapping"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
	"github.com/kailas-cloud/postdex/internal/extract"
)

// Event is a narrow change to one field of an already indexed entity.
type Event struct {
	Field string
	Value any
}

var updateKinds = map[string]mapping.Kind{
	extract.FieldLikeCount:    mapping.KindShort,
	extract.FieldCommentCount: mapping.KindInteger,
	extract.FieldReblogCount:  mapping.KindShort,
	extract.FieldSticky:       mapping.KindBoolean,
	extract.FieldIsReblogged:  mapping.KindBoolean,
}

// Update turns ev into a partial-update instruction. Values are normalized
// exactly as a full build would write them. Fields without a narrow path
// return domain.ErrNotImplemented and need a rebuild.
func (b *PostBuilder) Update(ref Ref, ev Event) (patch.Patch, error) {
	kind, ok := updateKinds[ev.Field]
	if !ok {
		return patch.Patch{}, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageUpdate,
			fmt.Errorf("field %q: %w", ev.Field, domain.ErrNotImplemented))
	}
	var v any
	var err error
	if kind.IsNumeric() {
		// Counters saturate rather than fail, matching extract.Counter.
		if v, err = schema.Coerce(mapping.KindLong, ev.Value); err == nil {
			v = extract.Counter(ev.Field, v.(int64))
		}
	} else {
		v, err = schema.Coerce(kind, ev.Value)
	}
	if err != nil {
		return patch.Patch{}, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageUpdate, err)
	}
	p, err := patch.New(ev.Field, v)
	if err != nil {
		return patch.Patch{}, domain.NewBuildError(ref.TenantID, ref.EntityID, domain.StageUpdate, err)
	}
	return p, nil
}
