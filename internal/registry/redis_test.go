package registry

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/copyleftdev/unitroute/internal/errors"
)

func newRedisStore(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	return NewRedisStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), "test:"), mr
}

func TestRedisStore(t *testing.T) {
	store, _ := newRedisStore(t)
	storeSuite(t, store)
}

func TestOpenRedis(t *testing.T) {
	mr := miniredis.RunT(t)

	store, err := Open(context.Background(), Options{Backend: "redis", RedisAddr: mr.Addr(), RedisPrefix: "svc:"})
	require.NoError(t, err)
	require.NoError(t, store.CreateMap(context.Background(), sampleRecord("m1")))
	assert.True(t, mr.Exists("svc:map:m1"))
	require.NoError(t, store.Close())

	addr := mr.Addr()
	mr.Close()
	_, err = OpenRedis(context.Background(), addr, "", 0, "svc:")
	assert.Error(t, err)
}

func TestRedisStoreCorruptRecord(t *testing.T) {
	store, mr := newRedisStore(t)
	defer store.Close()
	require.NoError(t, mr.Set("test:map:bad", "{"))

	_, err := store.GetMap(context.Background(), "bad")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrMapNotFound)
	assert.Contains(t, err.Error(), "component=registry")
}

func TestRedisStoreReplaceRetries(t *testing.T) {
	store, mr := newRedisStore(t)
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.CreateMap(ctx, sampleRecord("m1")))

	rival, err := json.Marshal(&MapRecord{ID: "m1", ImageURL: "/files/m1.png", Units: []Unit{{Label: "rival"}}})
	require.NoError(t, err)

	// A concurrent writer lands between WATCH and EXEC on the first attempt.
	attempts := 0
	store.now = func() time.Time {
		attempts++
		if attempts == 1 {
			require.NoError(t, mr.Set("test:map:m1", string(rival)))
		}
		return time.Unix(1700000000, 0)
	}

	units := []Unit{{Label: "A", X: 0.5, Y: 0.5}}
	got, err := store.ReplaceUnits(ctx, "m1", units)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts)
	assert.Equal(t, units, got.Units)

	stored, err := store.GetMap(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, units, stored.Units)
	assert.Equal(t, "/files/m1.png", stored.ImageURL)
}

func TestRedisStoreReplaceGivesUp(t *testing.T) {
	store, mr := newRedisStore(t)
	defer store.Close()
	ctx := context.Background()
	require.NoError(t, store.CreateMap(ctx, sampleRecord("m1")))

	rival, err := json.Marshal(&MapRecord{ID: "m1", ImageURL: "/files/m1.png", Units: []Unit{}})
	require.NoError(t, err)

	attempts := 0
	store.now = func() time.Time {
		attempts++
		require.NoError(t, mr.Set("test:map:m1", string(rival)))
		return time.Unix(1700000000, 0)
	}

	_, err = store.ReplaceUnits(ctx, "m1", []Unit{{Label: "A"}})
	require.Error(t, err)
	assert.Equal(t, redisMaxRetries, attempts)
	assert.Equal(t, http.StatusConflict, apperrors.HTTPStatus(err))
	assert.Contains(t, err.Error(), "gave up after 5 attempts")
}
