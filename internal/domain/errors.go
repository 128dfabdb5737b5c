package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound signals an entity that is absent or already deleted.
	ErrNotFound = errors.New("not found")
	// ErrNotIndexable signals an entity that exists but fails an indexing policy check.
	ErrNotIndexable = errors.New("not indexable")
	// ErrIndexingDisabled signals a tenant with indexing switched off.
	ErrIndexingDisabled = errors.New("indexing disabled")
	// ErrExtractionFailed signals a field extractor fault.
	ErrExtractionFailed = errors.New("extraction failed")
	// ErrSchemaMismatch signals a value whose runtime type conflicts with its mapped type.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInvalidSchema signals an invalid schema or builder configuration.
	ErrInvalidSchema = errors.New("invalid schema")
	// ErrUnknownDocType signals a document type with no registered builder.
	ErrUnknownDocType = errors.New("unknown document type")
	// ErrNotImplemented signals an operation the backend does not support.
	ErrNotImplemented = errors.New("not implemented")
)

// Build stages reported in BuildError.
const (
	StageIndexable = "indexable"
	StageLoad      = "load"
	StageExtract   = "extract"
	StageMerge     = "merge"
	StageCoupled   = "coupled"
	StageUpdate    = "update"
	StageWrite     = "write"
)

// BuildError carries enough context to retry a single entity.
type BuildError struct {
	TenantID int64
	EntityID int64
	Stage    string
	Err      error
}

func (e *BuildError) Error() string {
	return fmt.Sprintf("tenant %d entity %d: %s: %v", e.TenantID, e.EntityID, e.Stage, e.Err)
}

func (e *BuildError) Unwrap() error { return e.Err }

// NewBuildError wraps err with tenant, entity and stage.
func NewBuildError(tenantID, entityID int64, stage string, err error) error {
	return &BuildError{TenantID: tenantID, EntityID: entityID, Stage: stage, Err: err}
}
