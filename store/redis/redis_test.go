package redis

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/smallnest/runstream/store"
)

func newTestStore(t *testing.T) *RedisRecordStore {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewRedisRecordStore(RedisOptions{Addr: mr.Addr()})
	t.Cleanup(func() { s.Close() })
	return s
}

func TestRedisRecordStore(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rootID := uuid.New()

	rec := &store.Record{
		ID:        uuid.New(),
		RootID:    rootID,
		Kind:      "llm",
		Name:      "gpt",
		Tags:      []string{"prod"},
		Metadata:  map[string]any{"env": "test"},
		Output:    "Hello",
		StartedAt: time.Now().UTC(),
		EndedAt:   time.Now().UTC().Add(time.Second),
	}

	require.NoError(t, s.Save(ctx, rec))

	loaded, err := s.Load(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, rec.ID, loaded.ID)
	assert.Equal(t, rootID, loaded.RootID)
	assert.Equal(t, "gpt", loaded.Name)
	assert.Equal(t, "Hello", loaded.Output)

	list, err := s.List(ctx, rootID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, rec.ID, list[0].ID)

	require.NoError(t, s.Delete(ctx, rec.ID))
	_, err = s.Load(ctx, rec.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)

	list, err = s.List(ctx, rootID)
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestRedisRecordStore_ListOrdersByStartTime(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rootID := uuid.New()
	base := time.Now().UTC()

	for i, name := range []string{"first", "second", "third"} {
		rec := &store.Record{
			ID:        uuid.New(),
			RootID:    rootID,
			Kind:      "chain",
			Name:      name,
			StartedAt: base.Add(time.Duration(i) * time.Second),
			EndedAt:   base.Add(time.Duration(i+1) * time.Second),
		}
		require.NoError(t, s.Save(ctx, rec))
	}

	list, err := s.List(ctx, rootID)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "first", list[0].Name)
	assert.Equal(t, "third", list[2].Name)
}

func TestRedisRecordStore_DeleteMissingIsNoop(t *testing.T) {
	s := newTestStore(t)
	assert.NoError(t, s.Delete(context.Background(), uuid.New()))
}

func TestRedisRecordStore_Clear(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	rootID := uuid.New()

	for i := 0; i < 3; i++ {
		rec := &store.Record{
			ID:        uuid.New(),
			RootID:    rootID,
			Kind:      "tool",
			Name:      "calc",
			StartedAt: time.Now().UTC(),
			EndedAt:   time.Now().UTC(),
		}
		require.NoError(t, s.Save(ctx, rec))
	}

	require.NoError(t, s.Clear(ctx, rootID))
	list, err := s.List(ctx, rootID)
	require.NoError(t, err)
	assert.Empty(t, list)

	// Clearing an unknown root is fine.
	assert.NoError(t, s.Clear(ctx, uuid.New()))
}

func TestRedisRecordStore_TTLExpiresRecords(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	s := NewRedisRecordStore(RedisOptions{Addr: mr.Addr(), TTL: time.Minute})
	t.Cleanup(func() { s.Close() })
	ctx := context.Background()

	rec := &store.Record{
		ID:        uuid.New(),
		RootID:    uuid.New(),
		Kind:      "llm",
		Name:      "gpt",
		StartedAt: time.Now().UTC(),
		EndedAt:   time.Now().UTC(),
	}
	require.NoError(t, s.Save(ctx, rec))

	mr.FastForward(2 * time.Minute)

	_, err = s.Load(ctx, rec.ID)
	assert.ErrorIs(t, err, store.ErrNotFound)
}
