package patch

import (
	"fmt"
	"strings"
)

// Patch is a partial-update instruction: set the value at one field path
// of an existing document.
type Patch struct {
	path  string
	value any
}

// New validates and creates a Patch.
func New(path string, value any) (Patch, error) {
	if path == "" {
		return Patch{}, fmt.Errorf("field path is required")
	}
	for _, seg := range strings.Split(path, ".") {
		if seg == "" {
			return Patch{}, fmt.Errorf("field path %q has an empty segment", path)
		}
	}
	if value == nil {
		return Patch{}, fmt.Errorf("value is required for %q", path)
	}
	return Patch{path: path, value: value}, nil
}

// Path returns the dotted field path.
func (p Patch) Path() string { return p.path }

// Value returns the new value.
func (p Patch) Value() any { return p.value }

// Segments returns the path split on dots.
func (p Patch) Segments() []string { return strings.Split(p.path, ".") }
