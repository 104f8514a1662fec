package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"example.com/mastermind/internal/game"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each board as a JSON document under board:{id}. Put is a
// WATCH/MULTI transaction, so a concurrent writer makes it fail with
// ErrVersionConflict instead of overwriting.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration // 0 => keep forever
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) key(id game.ID) string {
	return fmt.Sprintf("board:%s", id)
}

func (s *RedisStore) Get(ctx context.Context, id game.ID) (DecodingBoard, error) {
	return s.get(ctx, s.rdb, id)
}

type stringGetter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) get(ctx context.Context, c stringGetter, id game.ID) (DecodingBoard, error) {
	val, err := c.Get(ctx, s.key(id)).Bytes()
	if err == redis.Nil {
		return DecodingBoard{}, ErrNotFound
	}
	if err != nil {
		return DecodingBoard{}, err
	}

	var b DecodingBoard
	if err := json.Unmarshal(val, &b); err != nil {
		return DecodingBoard{}, fmt.Errorf("decode board %s: %w", id, err)
	}
	return b, nil
}

func (s *RedisStore) Put(ctx context.Context, b DecodingBoard, expectedVersion uint64) error {
	payload, err := json.Marshal(b)
	if err != nil {
		return err
	}
	key := s.key(b.GameID)

	err = s.rdb.Watch(ctx, func(tx *redis.Tx) error {
		var current uint64
		prev, err := s.get(ctx, tx, b.GameID)
		switch {
		case err == nil:
			current = prev.Version
		case errors.Is(err, ErrNotFound):
		default:
			return err
		}
		if current != expectedVersion {
			return ErrVersionConflict
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, payload, s.ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		return ErrVersionConflict
	}
	return err
}
