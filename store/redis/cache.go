/*
cache.go - Read-through Redis cache for settings

PURPOSE:
  Public pages read the live ops schema, compiled pricing and schedule on
  every request. SettingsCache keeps those blobs in Redis so the database
  sees writes and cache misses only.

CONSISTENCY:
  Reads inside WithSettingsTx bypass the cache. Keys written by a
  transaction are evicted after it commits, never before, so a failed
  publish leaves the cached values as they were.

  Every eviction bumps a per-key generation counter. A reader that misses
  notes the generation before loading from the backing store and fills
  only if it is unchanged (WATCH/MULTI), so a slow reader cannot write a
  value older than the eviction it raced with. SETNX keeps a fill from
  replacing a value another reader has already cached.

FAILURES:
  Redis is best-effort. Any Redis error is logged and the call falls
  through to the backing store.

SEE ALSO:
  - generic/store.go: TxSettingsStore
  - workflow/opsschema.go: Main writer of cached keys
*/
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/warp/hallops/generic"
	"github.com/warp/hallops/metrics"
)

// DefaultTTL is used when NewSettingsCache gets a non-positive ttl.
const DefaultTTL = 5 * time.Minute

const (
	keyPrefix = "hallops:setting:"
	genPrefix = "hallops:setting-gen:"
)

var errStaleFill = errors.New("settings cache: generation changed")

// SettingsCache implements generic.TxSettingsStore over another
// TxSettingsStore.
type SettingsCache struct {
	next   generic.TxSettingsStore
	client *goredis.Client
	ttl    time.Duration
	log    zerolog.Logger
}

// NewSettingsCache wraps next with a Redis cache.
func NewSettingsCache(next generic.TxSettingsStore, client *goredis.Client, ttl time.Duration, log zerolog.Logger) *SettingsCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &SettingsCache{
		next:   next,
		client: client,
		ttl:    ttl,
		log:    log.With().Str("component", "settings_cache").Logger(),
	}
}

// GetSetting serves key from Redis, loading it from the backing store on
// a miss. Absent keys are not cached.
func (c *SettingsCache) GetSetting(ctx context.Context, key string) (json.RawMessage, error) {
	val, err := c.client.Get(ctx, keyPrefix+key).Bytes()
	switch {
	case err == nil:
		metrics.IncCacheLookup(true)
		return json.RawMessage(val), nil
	case !errors.Is(err, goredis.Nil):
		c.log.Warn().Err(err).Str("key", key).Msg("redis get failed")
	}
	metrics.IncCacheLookup(false)

	gen, genErr := c.generation(ctx, c.client, key)
	value, err := c.next.GetSetting(ctx, key)
	if err != nil || value == nil {
		return value, err
	}
	if genErr != nil {
		c.log.Warn().Err(genErr).Str("key", key).Msg("redis generation read failed; not caching")
		return value, nil
	}
	c.fill(ctx, key, gen, value)
	return value, nil
}

type getter interface {
	Get(ctx context.Context, key string) *goredis.StringCmd
}

func (c *SettingsCache) generation(ctx context.Context, r getter, key string) (int64, error) {
	gen, err := r.Get(ctx, genPrefix+key).Int64()
	if errors.Is(err, goredis.Nil) {
		return 0, nil
	}
	return gen, err
}

// fill caches value unless key was evicted since generation gen was read.
func (c *SettingsCache) fill(ctx context.Context, key string, gen int64, value json.RawMessage) {
	err := c.client.Watch(ctx, func(tx *goredis.Tx) error {
		cur, err := c.generation(ctx, tx, key)
		if err != nil {
			return err
		}
		if cur != gen {
			return errStaleFill
		}
		_, err = tx.TxPipelined(ctx, func(p goredis.Pipeliner) error {
			p.SetNX(ctx, keyPrefix+key, []byte(value), c.ttl)
			return nil
		})
		return err
	}, genPrefix+key)
	switch {
	case err == nil:
	case errors.Is(err, errStaleFill), errors.Is(err, goredis.TxFailedErr):
		c.log.Debug().Str("key", key).Msg("stale cache fill skipped")
	default:
		c.log.Warn().Err(err).Str("key", key).Msg("redis set failed")
	}
}

// SetSetting writes through and evicts the cached value.
func (c *SettingsCache) SetSetting(ctx context.Context, key string, value json.RawMessage) error {
	if err := c.next.SetSetting(ctx, key, value); err != nil {
		return err
	}
	c.evict(ctx, []string{key})
	return nil
}

// DeleteSetting deletes through and evicts the cached value.
func (c *SettingsCache) DeleteSetting(ctx context.Context, key string) error {
	if err := c.next.DeleteSetting(ctx, key); err != nil {
		return err
	}
	c.evict(ctx, []string{key})
	return nil
}

// ListSettings is not cached.
func (c *SettingsCache) ListSettings(ctx context.Context, prefix string) ([]generic.Setting, error) {
	return c.next.ListSettings(ctx, prefix)
}

// WithSettingsTx runs fn in a backing-store transaction and evicts every
// key it wrote once the transaction has committed.
func (c *SettingsCache) WithSettingsTx(ctx context.Context, fn func(generic.SettingsStore) error) error {
	var written []string
	err := c.next.WithSettingsTx(ctx, func(tx generic.SettingsStore) error {
		return fn(&recordingTx{SettingsStore: tx, written: &written})
	})
	if err != nil {
		return err
	}
	c.evict(ctx, written)
	return nil
}

func (c *SettingsCache) evict(ctx context.Context, keys []string) {
	if len(keys) == 0 {
		return
	}
	_, err := c.client.TxPipelined(ctx, func(p goredis.Pipeliner) error {
		for _, k := range keys {
			p.Del(ctx, keyPrefix+k)
			p.Incr(ctx, genPrefix+k)
		}
		return nil
	})
	if err != nil {
		c.log.Warn().Err(err).Strs("keys", keys).Msg("redis evict failed")
	}
}

// recordingTx remembers the keys written inside a transaction.
type recordingTx struct {
	generic.SettingsStore
	written *[]string
}

func (r *recordingTx) SetSetting(ctx context.Context, key string, value json.RawMessage) error {
	if err := r.SettingsStore.SetSetting(ctx, key, value); err != nil {
		return err
	}
	*r.written = append(*r.written, key)
	return nil
}

func (r *recordingTx) DeleteSetting(ctx context.Context, key string) error {
	if err := r.SettingsStore.DeleteSetting(ctx, key); err != nil {
		return err
	}
	*r.written = append(*r.written, key)
	return nil
}
