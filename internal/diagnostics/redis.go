package diagnostics

import (
	"context"
	"encoding/json"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

// RedisSink keeps entries in a Redis list trimmed to the newest Capacity items.
type RedisSink struct {
	Client   redis.Cmdable
	Key      string
	Capacity int
}

func NewRedisSink(client redis.Cmdable, capacity int) *RedisSink {
	return &RedisSink{Client: client, Key: Key, Capacity: capacity}
}

func (s *RedisSink) key() string {
	if s.Key == "" {
		return Key
	}
	return s.Key
}

func (s *RedisSink) Append(ctx context.Context, e Entry) error {
	data, err := json.Marshal(e)
	if err != nil {
		return errors.Wrap(err, "marshal failed webhook")
	}
	limit := int64(capacity(s.Capacity))
	pipe := s.Client.TxPipeline()
	pipe.RPush(ctx, s.key(), data)
	pipe.LTrim(ctx, s.key(), -limit, -1)
	if _, err := pipe.Exec(ctx); err != nil {
		return errors.Wrap(err, "redis append failed webhook")
	}
	return nil
}

func (s *RedisSink) List(ctx context.Context) ([]Entry, error) {
	items, err := s.Client.LRange(ctx, s.key(), 0, -1).Result()
	if err != nil {
		return nil, errors.Wrap(err, "redis list failed webhooks")
	}
	entries := make([]Entry, 0, len(items))
	for _, item := range items {
		var e Entry
		if err := json.Unmarshal([]byte(item), &e); err != nil {
			return nil, errors.Wrap(err, "parse failed webhook")
		}
		entries = append(entries, e)
	}
	return entries, nil
}
