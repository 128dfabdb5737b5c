package builder

import (
	"errors"
	"fmt"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/document"
)

// Ref addresses one entity.
type Ref struct {
	TenantID int64
	EntityID int64
}

func (r Ref) String() string { return fmt.Sprintf("%d/%d", r.TenantID, r.EntityID) }

// Rejection explains why an entity produces no document. Reason is one of
// domain.ErrNotFound, domain.ErrNotIndexable or domain.ErrIndexingDisabled.
type Rejection struct {
	Reason error
	Detail string
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return r.Reason.Error()
	}
	return r.Reason.Error() + ": " + r.Detail
}

func (r *Rejection) Unwrap() error { return r.Reason }

// NotFound reports an absent entity.
func (r *Rejection) NotFound() bool { return errors.Is(r.Reason, domain.ErrNotFound) }

func reject(reason error, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

// Result is the outcome of one build: a document or a rejection, never both.
type Result struct {
	Ref       Ref
	Document  *document.Document
	Rejection *Rejection
	Coupled   []document.Coupled
	// Dropped lists dynamic paths removed because their values did not fit.
	Dropped []string
}

// Rejected reports whether the entity should be skipped or removed from the index.
func (r Result) Rejected() bool { return r.Rejection != nil }
