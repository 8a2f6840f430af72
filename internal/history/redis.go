package history

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/redis/go-redis/v9"

	"github.com/SARVESHVARADKAR123/RealChat/shoutbox/internal/domain"
)

const (
	redisIndexKey = "shoutbox:messages"
)

func redisMessageKey(id string) string {
	return "shoutbox:message:" + id
}

// RedisStore keeps a bounded history in Redis: a sorted set scored by
// created_at indexes per-message JSON values.
type RedisStore struct {
	client    *redis.Client
	retention int64
}

func NewRedisStore(client *redis.Client, retention int) *RedisStore {
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &RedisStore{client: client, retention: int64(retention)}
}

// Append writes the value and its index entry in one transaction. Both
// writes are no-ops when already present, so a retried append after a partial
// failure still completes the index.
func (s *RedisStore) Append(ctx context.Context, msg domain.ChatMessage) error {
	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	queueAppend(ctx, pipe, msg, payload)
	if _, err := pipe.Exec(ctx); err != nil {
		return err
	}
	return s.trim(ctx)
}

func queueAppend(ctx context.Context, pipe redis.Pipeliner, msg domain.ChatMessage, payload []byte) {
	pipe.SetNX(ctx, redisMessageKey(msg.ID), payload, 0)
	pipe.ZAddNX(ctx, redisIndexKey, redis.Z{
		Score:  float64(msg.CreatedAt.UnixMilli()),
		Member: msg.ID,
	})
}

// trim drops the oldest entries beyond retention along with their values.
func (s *RedisStore) trim(ctx context.Context) error {
	overflow, err := s.client.ZRange(ctx, redisIndexKey, 0, -s.retention-1).Result()
	if err != nil || len(overflow) == 0 {
		return err
	}

	pipe := s.client.TxPipeline()
	keys := make([]string, len(overflow))
	members := make([]any, len(overflow))
	for i, id := range overflow {
		keys[i] = redisMessageKey(id)
		members[i] = id
	}
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, redisIndexKey, members...)
	_, err = pipe.Exec(ctx)
	return err
}

func (s *RedisStore) Update(ctx context.Context, msg domain.ChatMessage) error {
	raw, err := s.client.Get(ctx, redisMessageKey(msg.ID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	var stored domain.ChatMessage
	if err := json.Unmarshal(raw, &stored); err != nil {
		return err
	}
	stored.Body = msg.Body
	stored.EditedAt = msg.EditedAt

	payload, err := json.Marshal(stored)
	if err != nil {
		return err
	}
	return s.client.SetXX(ctx, redisMessageKey(msg.ID), payload, redis.KeepTTL).Err()
}

func (s *RedisStore) Recent(ctx context.Context, limit int) ([]domain.ChatMessage, error) {
	stop := int64(limit) - 1
	if limit <= 0 {
		stop = -1
	}
	ids, err := s.client.ZRevRange(ctx, redisIndexKey, 0, stop).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return nil, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = redisMessageKey(id)
	}
	values, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	messages := make([]domain.ChatMessage, 0, len(values))
	for _, v := range values {
		str, ok := v.(string)
		if !ok {
			// Trimmed between ZREVRANGE and MGET.
			continue
		}
		var msg domain.ChatMessage
		if err := json.Unmarshal([]byte(str), &msg); err != nil {
			return nil, err
		}
		messages = append(messages, msg)
	}
	return messages, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op: the client is shared with the relay and closed by its owner.
func (s *RedisStore) Close() error {
	return nil
}
