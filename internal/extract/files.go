package extract

import (
	"context"
	"fmt"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/entity"
	"github.com/kailas-cloud/postdex/internal/domain/mapping"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
)

// Attachment is the text pulled out of an attached file.
type Attachment struct {
	Name        string
	Content     string
	ContentType string
	Length      int64
}

// AttachmentExtractor reads the text of an attachment entity. It is opaque
// to this package.
type AttachmentExtractor interface {
	ExtractAttachment(ctx context.Context, tenant entity.Tenant, e *entity.Entity) (*Attachment, error)
}

// Files emits file for attachment entities.
type Files struct {
	Attachments AttachmentExtractor
}

func (Files) Name() string   { return NameFiles }
func (Files) Owns() []string { return []string{"file"} }

func (f Files) Extract(ctx context.Context, in Input) (Fields, error) {
	if f.Attachments == nil || in.Entity.Type != entity.TypeAttachment {
		return Fields{}, nil
	}
	a, err := f.Attachments.ExtractAttachment(ctx, in.Tenant, in.Entity)
	if err != nil {
		return nil, fmt.Errorf("attachment %d: %w: %w", in.Entity.ID, domain.ErrExtractionFailed, err)
	}
	if a == nil || (a.Content == "" && a.Name == "") {
		return Fields{}, nil
	}
	file := map[string]any{
		"content_length": schema.ClampToWidth(mapping.KindInteger, a.Length),
	}
	setMap(file, "name", a.Name)
	setMap(file, "content", a.Content)
	setMap(file, "content_type", a.ContentType)
	return Fields{"file": file}, nil
}

func setMap(m map[string]any, key, v string) {
	if v != "" {
		m[key] = v
	}
}
