package builder

import (
	"fmt"
	"sort"
	"sync"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/document"
)

// Registry selects a DocBuilder by document type.
type Registry struct {
	mu       sync.RWMutex
	builders map[string]DocBuilder
}

// NewRegistry creates a registry holding the given builders.
func NewRegistry(builders ...DocBuilder) (*Registry, error) {
	r := &Registry{builders: make(map[string]DocBuilder, len(builders))}
	for _, b := range builders {
		if err := r.Register(b); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds b under its type. A type can only be registered once.
func (r *Registry) Register(b DocBuilder) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t := b.Type()
	if err := document.ValidType(t); err != nil {
		return fmt.Errorf("%w: %w", domain.ErrInvalidSchema, err)
	}
	if _, dup := r.builders[t]; dup {
		return fmt.Errorf("builder for %q already registered: %w", t, domain.ErrInvalidSchema)
	}
	for other := range r.builders {
		if document.Discriminator(other) == document.Discriminator(t) {
			return fmt.Errorf("builder %q shares ids with %q: %w", t, other, domain.ErrInvalidSchema)
		}
	}
	r.builders[t] = b
	return nil
}

// Get returns the builder for docType.
func (r *Registry) Get(docType string) (DocBuilder, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b, ok := r.builders[docType]
	if !ok {
		return nil, fmt.Errorf("%q: %w", docType, domain.ErrUnknownDocType)
	}
	return b, nil
}

// Types returns the registered document types in sorted order.
func (r *Registry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]string, 0, len(r.builders))
	for t := range r.builders {
		types = append(types, t)
	}
	sort.Strings(types)
	return types
}
