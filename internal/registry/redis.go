package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"

	apperrors "github.com/copyleftdev/unitroute/internal/errors"
)

const redisMaxRetries = 5

// RedisStore keeps each record as one JSON document under "<prefix>map:<id>".
type RedisStore struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// OpenRedis connects to Redis and verifies the connection.
func OpenRedis(ctx context.Context, addr, password string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, storeErr(err, "open", "failed to reach redis at "+addr)
	}
	return NewRedisStore(client, prefix), nil
}

// NewRedisStore wraps an existing client.
func NewRedisStore(client *redis.Client, prefix string) *RedisStore {
	return &RedisStore{client: client, prefix: prefix, now: time.Now}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + "map:" + id
}

func (s *RedisStore) CreateMap(ctx context.Context, rec *MapRecord) error {
	if err := ValidateUnits(rec.Units); err != nil {
		return err
	}

	now := s.now().UTC()
	stored := cloneRecord(rec)
	stored.CreatedAt, stored.UpdatedAt = now, now
	data, err := json.Marshal(stored)
	if err != nil {
		return storeErr(err, "create_map", "failed to encode map")
	}

	ok, err := s.client.SetNX(ctx, s.key(rec.ID), data, 0).Result()
	if err != nil {
		return storeErr(err, "create_map", "failed to store map")
	}
	if !ok {
		return errMapExists(rec.ID)
	}
	rec.CreatedAt, rec.UpdatedAt = now, now
	return nil
}

func (s *RedisStore) GetMap(ctx context.Context, id string) (*MapRecord, error) {
	return s.load(ctx, s.client, id)
}

type getter interface {
	Get(ctx context.Context, key string) *redis.StringCmd
}

func (s *RedisStore) load(ctx context.Context, c getter, id string) (*MapRecord, error) {
	data, err := c.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrMapNotFound
	}
	if err != nil {
		return nil, storeErr(err, "get_map", "failed to load map")
	}
	var rec MapRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, storeErr(err, "get_map", fmt.Sprintf("failed to decode map %q", id))
	}
	return &rec, nil
}

// ReplaceUnits uses optimistic locking on the record key and retries when a
// concurrent writer wins.
func (s *RedisStore) ReplaceUnits(ctx context.Context, id string, units []Unit) (*MapRecord, error) {
	if err := ValidateUnits(units); err != nil {
		return nil, err
	}

	var updated *MapRecord
	txf := func(tx *redis.Tx) error {
		rec, err := s.load(ctx, tx, id)
		if err != nil {
			return err
		}
		rec.Units = append([]Unit{}, units...)
		rec.UpdatedAt = s.now().UTC()
		data, err := json.Marshal(rec)
		if err != nil {
			return storeErr(err, "replace_units", "failed to encode map")
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, s.key(id), data, 0)
			return nil
		})
		if err != nil {
			return storeErr(err, "replace_units", "failed to update map")
		}
		updated = rec
		return nil
	}

	for i := 0; i < redisMaxRetries; i++ {
		err := s.client.Watch(ctx, txf, s.key(id))
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		if err != nil {
			return nil, err
		}
		return updated, nil
	}
	return nil, apperrors.Errorf("map %q kept changing, gave up after %d attempts", id, redisMaxRetries).
		WithOperation("replace_units").
		WithComponent("registry").
		WithStatus(http.StatusConflict)
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
