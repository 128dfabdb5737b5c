package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/postdex/internal/db"
)

// JSONSet stores a JSON value at the given key and path. Setting below the
// root of a missing key, or under a missing parent, returns db.ErrKeyNotFound.
func (s *Store) JSONSet(ctx context.Context, key, path string, data []byte) error {
	cmd := s.b().JsonSet().Key(key).Path(path).Value(string(data)).Build()
	if err := s.do(ctx, cmd).Error(); err != nil {
		if rueidis.IsRedisNil(err) || isRedisErr(err, "new objects must be created at the root") {
			return db.ErrKeyNotFound
		}
		return &db.Error{Op: db.OpJSONSet, Err: err}
	}
	return nil
}
