// Package iterator enumerates the entity ids of one tenant for bulk
// reindexing, in ascending id order, resumable from a saved cursor.
package iterator

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/kailas-cloud/postdex/internal/domain/entity"
)

// DefaultPageSize is used when no page size is given.
const DefaultPageSize = 500

// Filter selects which entities are enumerated.
type Filter struct {
	ExcludeStatuses []entity.Status
}

// Excludes reports whether s is filtered out.
func (f Filter) Excludes(s entity.Status) bool {
	return slices.Contains(f.ExcludeStatuses, s)
}

// Source lists ids greater than after, ascending, skipping the first offset
// matches. Offset is only non-zero on the first page of a run.
type Source interface {
	EnumerateIDs(ctx context.Context, tenantID int64, filter Filter, after int64, offset, limit int) ([]int64, error)
}

// Cursor is the position of an iteration. After is the last id handed out;
// Offset is a one-time count of matching ids to skip before After applies.
type Cursor struct {
	TenantID  int64     `json:"tenant_id"`
	After     int64     `json:"after"`
	Offset    int       `json:"offset,omitempty"`
	Consumed  int       `json:"consumed"`
	Done      bool      `json:"done"`
	UpdatedAt time.Time `json:"updated_at,omitzero"`
}

// Iterator pages through ids lazily. It is not safe for concurrent use.
// The underlying set may change between pages; ids inserted below the
// cursor are not revisited.
type Iterator struct {
	src      Source
	filter   Filter
	pageSize int
	cur      Cursor
}

// New creates an iterator for start.TenantID resuming at start.
func New(src Source, filter Filter, start Cursor, pageSize int) *Iterator {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &Iterator{src: src, filter: filter, pageSize: pageSize, cur: start}
}

// Next returns the next page of ids, or nil once exhausted.
func (it *Iterator) Next(ctx context.Context) ([]int64, error) {
	if it.cur.Done {
		return nil, nil
	}
	ids, err := it.src.EnumerateIDs(ctx, it.cur.TenantID, it.filter, it.cur.After, it.cur.Offset, it.pageSize)
	if err != nil {
		return nil, fmt.Errorf("enumerate tenant %d after %d: %w", it.cur.TenantID, it.cur.After, err)
	}
	it.cur.Offset = 0
	it.cur.UpdatedAt = time.Now()
	if len(ids) == 0 {
		it.cur.Done = true
		return nil, nil
	}
	it.cur.After = ids[len(ids)-1]
	it.cur.Consumed += len(ids)
	if len(ids) < it.pageSize {
		it.cur.Done = true
	}
	return ids, nil
}

// Cursor returns the position after the last page returned by Next.
func (it *Iterator) Cursor() Cursor { return it.cur }

// Each calls fn for every remaining id, stopping at the first error.
func (it *Iterator) Each(ctx context.Context, fn func(id int64) error) error {
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		ids, err := it.Next(ctx)
		if err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}
		for _, id := range ids {
			if err := fn(id); err != nil {
				return err
			}
		}
	}
}
