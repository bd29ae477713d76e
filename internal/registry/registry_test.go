package registry

import (
	"context"
	"math"
	"net/http"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/copyleftdev/unitroute/internal/errors"
	"github.com/copyleftdev/unitroute/internal/optimization"
)

func sampleRecord(id string) *MapRecord {
	w, h := 1600, 900
	return &MapRecord{
		ID:       id,
		ImageURL: "/files/" + id + ".png",
		Width:    &w,
		Height:   &h,
		Units: []Unit{
			{Label: "101", X: 0.1, Y: 0.2, Floor: 1},
			{Label: "102", X: 0.4, Y: 0.2, Floor: 1},
			{Label: "201", X: 0.1, Y: 0.2, Floor: 2},
		},
	}
}

// storeSuite runs the behaviour every backend must share.
func storeSuite(t *testing.T, store Store) {
	ctx := context.Background()

	t.Run("get missing", func(t *testing.T) {
		_, err := store.GetMap(ctx, "nope")
		assert.ErrorIs(t, err, ErrMapNotFound)
	})

	t.Run("create and get", func(t *testing.T) {
		rec := sampleRecord("m1")
		require.NoError(t, store.CreateMap(ctx, rec))
		assert.False(t, rec.CreatedAt.IsZero())

		got, err := store.GetMap(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, rec.ID, got.ID)
		assert.Equal(t, rec.ImageURL, got.ImageURL)
		require.NotNil(t, got.Width)
		assert.Equal(t, 1600, *got.Width)
		assert.Equal(t, rec.Units, got.Units)
		assert.WithinDuration(t, rec.CreatedAt, got.CreatedAt, time.Millisecond)
	})

	t.Run("duplicate id", func(t *testing.T) {
		err := store.CreateMap(ctx, sampleRecord("m1"))
		assert.ErrorIs(t, err, ErrMapExists)
		assert.Equal(t, http.StatusConflict, apperrors.HTTPStatus(err))

		got, err := store.GetMap(ctx, "m1")
		require.NoError(t, err)
		assert.Len(t, got.Units, 3)
	})

	t.Run("nil dimensions", func(t *testing.T) {
		rec := &MapRecord{ID: "m2", ImageURL: "/files/m2.png"}
		require.NoError(t, store.CreateMap(ctx, rec))
		got, err := store.GetMap(ctx, "m2")
		require.NoError(t, err)
		assert.Nil(t, got.Width)
		assert.Nil(t, got.Height)
		assert.NotNil(t, got.Units)
		assert.Empty(t, got.Units)
	})

	t.Run("replace units", func(t *testing.T) {
		units := []Unit{{Label: "A", X: 0.5, Y: 0.5}, {Label: "B", X: 0.9, Y: 0.1, Floor: 3}}
		got, err := store.ReplaceUnits(ctx, "m1", units)
		require.NoError(t, err)
		assert.Equal(t, units, got.Units)

		again, err := store.GetMap(ctx, "m1")
		require.NoError(t, err)
		assert.Equal(t, units, again.Units)
		assert.False(t, again.UpdatedAt.Before(again.CreatedAt))
	})

	t.Run("replace units on missing map", func(t *testing.T) {
		_, err := store.ReplaceUnits(ctx, "nope", []Unit{{Label: "A"}})
		assert.ErrorIs(t, err, ErrMapNotFound)
	})

	t.Run("invalid units rejected", func(t *testing.T) {
		_, err := store.ReplaceUnits(ctx, "m1", []Unit{{Label: "A", X: math.NaN()}})
		assert.True(t, optimization.IsKind(err, optimization.KindInvalidInput))

		_, err = store.ReplaceUnits(ctx, "m1", []Unit{{Label: "  "}})
		assert.True(t, optimization.IsKind(err, optimization.KindInvalidInput))
	})

	require.NoError(t, store.Close())
}

func TestMemoryStore(t *testing.T) {
	storeSuite(t, NewMemoryStore())
}

func TestMemoryStoreCopies(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryStore()
	rec := sampleRecord("m1")
	require.NoError(t, store.CreateMap(ctx, rec))

	rec.Units[0].Label = "mutated"
	got, err := store.GetMap(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "101", got.Units[0].Label)

	got.Units[1].Label = "mutated"
	again, err := store.GetMap(ctx, "m1")
	require.NoError(t, err)
	assert.Equal(t, "102", again.Units[1].Label)
}

func TestSQLiteStore(t *testing.T) {
	store, err := OpenSQLite(":memory:")
	require.NoError(t, err)
	storeSuite(t, store)
}

func TestSQLiteStoreOnDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "maps.db")
	store, err := OpenSQLite(path)
	require.NoError(t, err)
	require.NoError(t, store.CreateMap(context.Background(), sampleRecord("disk")))
	require.NoError(t, store.Close())

	reopened, err := OpenSQLite(path)
	require.NoError(t, err)
	defer reopened.Close()
	got, err := reopened.GetMap(context.Background(), "disk")
	require.NoError(t, err)
	assert.Len(t, got.Units, 3)
}

func TestRebind(t *testing.T) {
	pg := &SQLStore{dialect: dialectPostgres}
	assert.Equal(t, "SELECT a FROM t WHERE x = $1 AND y = $2", pg.rebind("SELECT a FROM t WHERE x = ? AND y = ?"))

	lite := &SQLStore{dialect: dialectSQLite}
	assert.Equal(t, "x = ?", lite.rebind("x = ?"))
}

func TestOpenUnknownBackend(t *testing.T) {
	_, err := Open(context.Background(), Options{Backend: "etcd"})
	assert.Error(t, err)

	store, err := Open(context.Background(), Options{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)
}

func TestLookup(t *testing.T) {
	rec := &MapRecord{Units: []Unit{
		{Label: "101", X: 1},
		{Label: "102", X: 2},
		{Label: "101", X: 99},
	}}

	idx := rec.Index()
	assert.Len(t, idx, 2)
	assert.Equal(t, 1.0, idx["101"].X)

	found, missing := rec.Lookup([]string{"102", "999", "101", "998"})
	require.Len(t, found, 2)
	assert.Equal(t, "102", found[0].Label)
	assert.Equal(t, 1.0, found[1].X)
	assert.Equal(t, []string{"999", "998"}, missing)

	_, missing = rec.Lookup([]string{"101"})
	assert.Nil(t, missing)
}

func TestNewMapID(t *testing.T) {
	now := time.UnixMilli(1700000000123)
	id := NewMapID(now)
	assert.Regexp(t, `^1700000000123-[0-9a-f]{8}$`, id)
	assert.NotEqual(t, id, NewMapID(now))
}

func TestUnitPoint(t *testing.T) {
	p := Unit{Label: "7", X: 0.3, Y: 0.4, Floor: 2}.Point()
	assert.Equal(t, optimization.Point{ID: "7", X: 0.3, Y: 0.4, Floor: 2}, p)
}
