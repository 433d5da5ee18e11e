package redis

import (
	"context"

	"github.com/redis/rueidis"

	"github.com/cedrus-db/cedrus/internal/db"
)

// Get retrieves a raw value. A missing key maps to db.ErrKeyNotFound so
// callers can treat it as a cache miss.
func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := s.do(ctx, s.b().Get().Key(key).Build()).AsBytes()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return nil, db.ErrKeyNotFound
		}
		return nil, &db.Error{Op: db.OpGet, Err: err}
	}
	return data, nil
}

// Set stores a raw value at the given key.
func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.do(ctx, s.b().Set().Key(key).Value(string(value)).Build()).Error(); err != nil {
		return &db.Error{Op: db.OpSet, Err: err}
	}
	return nil
}
