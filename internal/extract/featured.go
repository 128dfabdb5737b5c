package extract

import (
	"context"
	"strconv"
	"strings"
)

// MetaThumbnailID carries the featured media id when the store does not
// resolve it.
const MetaThumbnailID = "_thumbnail_id"

// FeaturedImage emits the featured media id and url.
type FeaturedImage struct{}

func (FeaturedImage) Name() string   { return NameFeaturedImage }
func (FeaturedImage) Owns() []string { return []string{"featured_image", "featured_image_url"} }

func (FeaturedImage) Extract(_ context.Context, in Input) (Fields, error) {
	f := Fields{}
	if img := in.Entity.FeaturedImage; img != nil {
		if img.ID > 0 {
			f["featured_image"] = strconv.FormatInt(img.ID, 10)
		}
		setString(f, "featured_image_url", img.URL)
		return f, nil
	}
	if ids := in.Entity.MetaValues(MetaThumbnailID); len(ids) > 0 {
		if id, err := strconv.ParseInt(strings.TrimSpace(ids[0]), 10, 64); err == nil && id > 0 {
			f["featured_image"] = strconv.FormatInt(id, 10)
		}
	}
	return f, nil
}
