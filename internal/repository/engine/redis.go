// Package engine writes schemas and documents to the search backends.
package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/postdex/internal/db"
	"github.com/kailas-cloud/postdex/internal/domain"
	"github.com/kailas-cloud/postdex/internal/domain/document"
	"github.com/kailas-cloud/postdex/internal/domain/document/patch"
	"github.com/kailas-cloud/postdex/internal/domain/schema"
)

// DefaultKeyPrefix namespaces every key written by the Redis engine.
const DefaultKeyPrefix = "postdex:"

// geoField holds the "lon,lat" form of location, which is what GEO fields read.
const geoField = "_geo"

// store is the consumer interface for the Redis engine (ISP).
type store interface {
	Ping(ctx context.Context) error
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	JSONSet(ctx context.Context, key, path string, data []byte) error
	Del(ctx context.Context, key string) error
	CreateIndex(ctx context.Context, def *db.IndexDefinition) error
	DropIndex(ctx context.Context, name string) error
	IndexExists(ctx context.Context, name string) (bool, error)
}

// Redis stores documents as RedisJSON values under an FT index built from
// the fixed fields of the schema. Dynamic fields are stored but not indexed.
type Redis struct {
	store  store
	prefix string
}

// NewRedis creates a Redis engine. An empty prefix uses DefaultKeyPrefix.
func NewRedis(s store, keyPrefix string) *Redis {
	if keyPrefix == "" {
		keyPrefix = DefaultKeyPrefix
	}
	return &Redis{store: s, prefix: keyPrefix}
}

// Ping checks the backing store.
func (r *Redis) Ping(ctx context.Context) error { return r.store.Ping(ctx) }

// PutIndexSettings saves the schema JSON and recreates the FT index. Existing
// documents are kept and re-indexed by Redis under the new definition.
func (r *Redis) PutIndexSettings(ctx context.Context, idx schema.Index) error {
	data, err := json.Marshal(idx)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if err := r.store.Set(ctx, r.SchemaKey(idx.Config.Name), data); err != nil {
		return fmt.Errorf("save schema: %w", err)
	}

	def, err := buildFTIndex(idx, r.prefix)
	if err != nil {
		return err
	}
	exists, err := r.store.IndexExists(ctx, def.Name)
	if err != nil {
		return fmt.Errorf("check index %s: %w", def.Name, err)
	}
	if exists {
		if err := r.store.DropIndex(ctx, def.Name); err != nil && !errors.Is(err, db.ErrIndexNotFound) {
			return fmt.Errorf("drop index %s: %w", def.Name, err)
		}
	}
	if err := r.store.CreateIndex(ctx, def); err != nil {
		return fmt.Errorf("create index %s: %w", def.Name, err)
	}
	return nil
}

// StoredSchema returns the schema JSON last submitted for index, or
// domain.ErrNotFound.
func (r *Redis) StoredSchema(ctx context.Context, index string) ([]byte, error) {
	key := r.SchemaKey(index)
	data, err := r.store.Get(ctx, key)
	if errors.Is(err, db.ErrKeyNotFound) {
		return nil, fmt.Errorf("%s: %w", key, domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

// PutDocument replaces the stored document.
func (r *Redis) PutDocument(ctx context.Context, doc *document.Document) error {
	data, err := json.Marshal(redisFields(doc))
	if err != nil {
		return fmt.Errorf("marshal document %s: %w", doc.ID(), err)
	}
	key := r.DocKey(doc.Type(), doc.ID())
	if err := r.store.JSONSet(ctx, key, "$", data); err != nil {
		return fmt.Errorf("json.set %s: %w", key, err)
	}
	return nil
}

// ApplyPartialUpdate sets one path of a stored document. A missing document
// or parent object returns domain.ErrNotFound.
func (r *Redis) ApplyPartialUpdate(ctx context.Context, docType, id string, p patch.Patch) error {
	data, err := json.Marshal(p.Value())
	if err != nil {
		return fmt.Errorf("marshal %s: %w", p.Path(), err)
	}
	key := r.DocKey(docType, id)
	if err := r.store.JSONSet(ctx, key, "$."+p.Path(), data); err != nil {
		if errors.Is(err, db.ErrKeyNotFound) {
			return fmt.Errorf("%s: %w", key, domain.ErrNotFound)
		}
		return fmt.Errorf("json.set %s $.%s: %w", key, p.Path(), err)
	}
	return nil
}

// DeleteDocument removes a document; absent documents are not an error.
func (r *Redis) DeleteDocument(ctx context.Context, docType, id string) error {
	key := r.DocKey(docType, id)
	if err := r.store.Del(ctx, key); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}

// DocKey is the key holding one document.
func (r *Redis) DocKey(docType, id string) string {
	return r.prefix + docType + ":" + id
}

// SchemaKey is the key holding the submitted schema JSON.
func (r *Redis) SchemaKey(index string) string {
	return r.prefix + "schema:" + index
}

func redisFields(doc *document.Document) map[string]any {
	fields := doc.Fields()
	if loc, ok := fields["location"].(map[string]any); ok {
		lat, okLat := loc["lat"].(float64)
		lon, okLon := loc["lon"].(float64)
		if okLat && okLon {
			fields[geoField] = strconv.FormatFloat(lon, 'f', -1, 64) + "," + strconv.FormatFloat(lat, 'f', -1, 64)
		}
	}
	return fields
}
