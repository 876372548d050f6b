package redis_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/generic/store"
	"github.com/warp/hallops/store/redis"
)

const cachedKey = "hallops:setting:pricing"

func newCache(t *testing.T) (*redis.SettingsCache, *store.Memory, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mem := store.NewMemory()
	return redis.NewSettingsCache(mem, client, time.Minute, zerolog.New(io.Discard)), mem, mr
}

func TestSettingsCache_ReadThrough(t *testing.T) {
	cache, mem, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, mem.SetSetting(ctx, "pricing", json.RawMessage(`{"v":1}`)))

	// WHEN: read once
	got, err := cache.GetSetting(ctx, "pricing")

	// THEN: the value is cached with the ttl
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got))
	assert.True(t, mr.Exists(cachedKey))
	assert.Equal(t, time.Minute, mr.TTL(cachedKey))

	// WHEN: the backing store changes behind the cache's back
	require.NoError(t, mem.SetSetting(ctx, "pricing", json.RawMessage(`{"v":2}`)))
	got, err = cache.GetSetting(ctx, "pricing")

	// THEN: the cached value is served
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got))
}

func TestSettingsCache_AbsentKeysAreNotCached(t *testing.T) {
	cache, _, mr := newCache(t)

	got, err := cache.GetSetting(context.Background(), "pricing")

	require.NoError(t, err)
	assert.Nil(t, got)
	assert.False(t, mr.Exists(cachedKey))
}

func TestSettingsCache_SetEvicts(t *testing.T) {
	cache, _, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, cache.SetSetting(ctx, "pricing", json.RawMessage(`{"v":1}`)))
	_, err := cache.GetSetting(ctx, "pricing")
	require.NoError(t, err)
	require.True(t, mr.Exists(cachedKey))

	require.NoError(t, cache.SetSetting(ctx, "pricing", json.RawMessage(`{"v":2}`)))

	assert.False(t, mr.Exists(cachedKey))
	got, err := cache.GetSetting(ctx, "pricing")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))
}

func TestSettingsCache_TransactionEvictsOnCommitOnly(t *testing.T) {
	cache, mem, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, mem.SetSetting(ctx, "pricing", json.RawMessage(`{"v":1}`)))
	_, err := cache.GetSetting(ctx, "pricing")
	require.NoError(t, err)

	// WHEN: a transaction fails after writing
	err = cache.WithSettingsTx(ctx, func(tx generic.SettingsStore) error {
		if err := tx.SetSetting(ctx, "pricing", json.RawMessage(`{"v":2}`)); err != nil {
			return err
		}
		return errors.New("compile failed")
	})

	// THEN: the cache still holds the old value
	require.Error(t, err)
	assert.True(t, mr.Exists(cachedKey))

	// WHEN: the transaction commits
	err = cache.WithSettingsTx(ctx, func(tx generic.SettingsStore) error {
		return tx.SetSetting(ctx, "pricing", json.RawMessage(`{"v":3}`))
	})

	// THEN: the key is evicted and the next read sees the new value
	require.NoError(t, err)
	assert.False(t, mr.Exists(cachedKey))
	got, err := cache.GetSetting(ctx, "pricing")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":3}`, string(got))
}

func TestSettingsCache_RedisDownFallsThrough(t *testing.T) {
	cache, mem, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, mem.SetSetting(ctx, "pricing", json.RawMessage(`{"v":1}`)))
	mr.Close()

	got, err := cache.GetSetting(ctx, "pricing")

	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got))
	require.NoError(t, cache.SetSetting(ctx, "pricing", json.RawMessage(`{"v":2}`)))
}

// racingStore runs onGet once, after a backing-store read and before the
// cache fills, to interleave a writer with a slow reader.
type racingStore struct {
	generic.TxSettingsStore
	onGet func()
}

func (r *racingStore) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	v, err := r.TxSettingsStore.GetSetting(ctx, key)
	if hook := r.onGet; hook != nil {
		r.onGet = nil
		hook()
	}
	return v, err
}

func TestSettingsCache_StaleFillAfterEvictIsSkipped(t *testing.T) {
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	mem := store.NewMemory()
	ctx := context.Background()
	require.NoError(t, mem.SetSetting(ctx, "pricing", json.RawMessage(`{"v":1}`)))

	backing := &racingStore{TxSettingsStore: mem}
	cache := redis.NewSettingsCache(backing, client, time.Minute, zerolog.New(io.Discard))

	// GIVEN: a publish lands while a reader holds the old value
	backing.onGet = func() {
		require.NoError(t, cache.SetSetting(ctx, "pricing", json.RawMessage(`{"v":2}`)))
	}

	// WHEN: the slow reader finishes
	got, err := cache.GetSetting(ctx, "pricing")

	// THEN: it returns what it read but does not cache it
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":1}`, string(got))
	assert.False(t, mr.Exists(cachedKey))

	// AND: the next reader caches the published value
	got, err = cache.GetSetting(ctx, "pricing")
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, string(got))
	cached, err := mr.Get(cachedKey)
	require.NoError(t, err)
	assert.JSONEq(t, `{"v":2}`, cached)
}

func TestSettingsCache_FillDoesNotOverwrite(t *testing.T) {
	_, mem, mr := newCache(t)
	ctx := context.Background()
	require.NoError(t, mem.SetSetting(ctx, "pricing", json.RawMessage(`{"v":1}`)))

	// GIVEN: another reader cached a value between this reader's miss and fill
	backing := &racingStore{TxSettingsStore: mem, onGet: func() {
		require.NoError(t, mr.Set(cachedKey, `{"v":"other"}`))
	}}
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	racing := redis.NewSettingsCache(backing, client, time.Minute, zerolog.New(io.Discard))

	_, err := racing.GetSetting(ctx, "pricing")
	require.NoError(t, err)

	// THEN: the existing entry is kept
	cached, err := mr.Get(cachedKey)
	require.NoError(t, err)
	assert.Equal(t, `{"v":"other"}`, cached)
}
