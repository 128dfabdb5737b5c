package extract

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/entity"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
)

// Metadata keys read when an entity has no explicit location.
const (
	MetaGeoLatitude  = "geo_latitude"
	MetaGeoLongitude = "geo_longitude"
	MetaGeoPublic    = "geo_public"
)

// Geo emits the entity location as {lat, lon}.
type Geo struct{}

func (Geo) Name() string   { return NameGeo }
func (Geo) Owns() []string { return []string{"location"} }

func (Geo) Extract(_ context.Context, in Input) (Fields, error) {
	p := in.Entity.Location
	if p == nil {
		var ok bool
		if p, ok = geoFromMeta(in.Entity); !ok {
			return Fields{}, nil
		}
	}
	if p.Lat < -90 || p.Lat > 90 || p.Lon < -180 || p.Lon > 180 {
		return nil, fmt.Errorf("location %v,%v out of range: %w", p.Lat, p.Lon, domain.ErrExtractionFailed)
	}
	return Fields{"location": map[string]any{"lat": p.Lat, "lon": p.Lon}}, nil
}

func geoFromMeta(e *entity.Entity) (*entity.GeoPoint, bool) {
	if pub := e.MetaValues(MetaGeoPublic); len(pub) > 0 {
		if b, ok := schema.ParseBool(pub[0]); ok && !b {
			return nil, false
		}
	}
	lat, lon := e.MetaValues(MetaGeoLatitude), e.MetaValues(MetaGeoLongitude)
	if len(lat) == 0 || len(lon) == 0 {
		return nil, false
	}
	la, err1 := strconv.ParseFloat(strings.TrimSpace(lat[0]), 64)
	lo, err2 := strconv.ParseFloat(strings.TrimSpace(lon[0]), 64)
	if err1 != nil || err2 != nil {
		return nil, false
	}
	return &entity.GeoPoint{Lat: la, Lon: lo}, true
}
