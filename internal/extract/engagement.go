package extract

import (
	"context"

	"github.com/kailas-cloud/postdex/internal/domain/mapping"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
)

// Counter fields shared by full builds and partial updates.
const (
	FieldCommentCount = "comment_count"
	FieldLikeCount    = "like_count"
	FieldReblogCount  = "reblog_count"
	FieldIsReblogged  = "is_reblogged"
	FieldSticky       = "sticky"
)

// CounterKind is the mapped width of each counter field.
var CounterKind = map[string]mapping.Kind{
	FieldCommentCount: mapping.KindInteger,
	FieldLikeCount:    mapping.KindShort,
	FieldReblogCount:  mapping.KindShort,
}

// Counter clamps n to the width of field. Negative counts become zero.
func Counter(field string, n int64) int64 {
	return schema.ClampToWidth(CounterKind[field], max(n, 0))
}

// AddedOn emits the time the entity joined the tenant, falling back to its
// UTC publish date.
type AddedOn struct{}

func (AddedOn) Name() string   { return NameAddedOn }
func (AddedOn) Owns() []string { return []string{"date_added"} }

func (AddedOn) Extract(_ context.Context, in Input) (Fields, error) {
	t := in.Entity.DateGMT
	if in.Entity.AddedOn != nil {
		t = *in.Entity.AddedOn
	}
	if t.IsZero() {
		return Fields{}, nil
	}
	return Fields{"date_added": t.UTC().Format(schema.TimeLayout)}, nil
}

// Commenters emits distinct commenter ids and the comment count.
type Commenters struct{}

func (Commenters) Name() string   { return NameCommenters }
func (Commenters) Owns() []string { return []string{"commenter_ids", FieldCommentCount} }

func (Commenters) Extract(_ context.Context, in Input) (Fields, error) {
	f := Fields{FieldCommentCount: Counter(FieldCommentCount, int64(in.Entity.CommentCount))}
	if ids := uniqueSorted(in.Entity.Commenters); len(ids) > 0 {
		f["commenter_ids"] = ids
	}
	return f, nil
}

// Reblogs emits reblog state and rebloggers.
type Reblogs struct{}

func (Reblogs) Name() string { return NameReblogs }
func (Reblogs) Owns() []string {
	return []string{FieldIsReblogged, "reblogger_ids", FieldReblogCount}
}

func (Reblogs) Extract(_ context.Context, in Input) (Fields, error) {
	ids := uniqueSorted(in.Entity.Rebloggers)
	f := Fields{
		FieldIsReblogged: in.Entity.IsReblog,
		FieldReblogCount: Counter(FieldReblogCount, int64(len(ids))),
	}
	if len(ids) > 0 {
		f["reblogger_ids"] = ids
	}
	return f, nil
}

// Likers emits distinct liker ids and the like count.
type Likers struct{}

func (Likers) Name() string   { return NameLikers }
func (Likers) Owns() []string { return []string{"liker_ids", FieldLikeCount} }

func (Likers) Extract(_ context.Context, in Input) (Fields, error) {
	ids := uniqueSorted(in.Entity.Likers)
	f := Fields{FieldLikeCount: Counter(FieldLikeCount, int64(len(ids)))}
	if len(ids) > 0 {
		f["liker_ids"] = ids
	}
	return f, nil
}
