package extract

import (
	"context"
	"strings"
)

// SimilarContent assembles mlt_content from the extracted title, content,
// excerpt and tag and category names.
type SimilarContent struct{}

func (SimilarContent) Name() string   { return NameSimilar }
func (SimilarContent) Owns() []string { return []string{"mlt_content"} }

func (SimilarContent) Derive(_ context.Context, _ Input, groups map[string]Fields) (Fields, error) {
	var parts []string
	core := groups[NameCore]
	for _, k := range []string{"title", "content", "excerpt"} {
		if s, _ := core[k].(string); s != "" {
			parts = append(parts, s)
		}
	}
	tax := groups[NameTaxonomy]
	parts = append(parts, TermNames(tax["tag"])...)
	parts = append(parts, TermNames(tax["category"])...)
	if len(parts) == 0 {
		return Fields{}, nil
	}
	return Fields{"mlt_content": strings.Join(parts, " ")}, nil
}
