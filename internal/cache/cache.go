// ParaWave PTT - Real-time Push-to-Talk for Paragliding Pilots
// Copyright 2026 HighCanFly Club
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/highcanfly-club/parawave-ptt

// Package cache is the short-TTL channel cache backed by BadgerDB.
//
// Keys: `channel:{uuid}` for single channels and `channels:list` for the
// list snapshot. Entries carry Badger-native TTLs; the cache is
// non-authoritative and every mutating store operation invalidates both
// keys before returning, so a read after an acknowledged write always
// reaches the store.
package cache

import (
	"context"
	"time"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/highcanfly-club/parawave-ptt-sub001/internal/config"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/logging"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/metrics"
	"github.com/highcanfly-club/parawave-ptt-sub001/internal/models"
)

const (
	channelKeyPrefix = "channel:"
	listKey          = "channels:list"
)

// ChannelCache is the Badger-backed channel cache.
type ChannelCache struct {
	db      *badger.DB
	ttl     time.Duration
	listTTL time.Duration
}

// New opens the cache at cfg.Path. An empty path selects an in-memory
// instance (used by tests).
func New(cfg *config.CacheConfig) (*ChannelCache, error) {
	var opts badger.Options
	if cfg.Path == "" {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		opts = badger.DefaultOptions(cfg.Path)
	}
	// Badger's own logger is chatty at INFO; route it through nothing and
	// rely on our own hit/miss metrics instead.
	opts = opts.WithLogger(nil)

	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 300 * time.Second
	}
	listTTL := cfg.ListTTL
	if listTTL <= 0 {
		listTTL = 30 * time.Second
	}

	return &ChannelCache{db: db, ttl: ttl, listTTL: listTTL}, nil
}

// Close closes the underlying Badger instance.
func (c *ChannelCache) Close() error {
	return c.db.Close()
}

// Ping verifies cache liveness for the health endpoint.
func (c *ChannelCache) Ping(ctx context.Context) error {
	return c.db.View(func(txn *badger.Txn) error { return nil })
}

// GetChannel returns the cached channel, or (nil, false) on miss or decode
// failure.
func (c *ChannelCache) GetChannel(ctx context.Context, uuid string) (*models.Channel, bool) {
	var ch models.Channel
	if !c.get(channelKeyPrefix+models.NormalizeUUID(uuid), &ch) {
		return nil, false
	}
	return &ch, true
}

// SetChannel stores a channel under its TTL-bounded key.
func (c *ChannelCache) SetChannel(ctx context.Context, ch *models.Channel) {
	if ch == nil {
		return
	}
	c.set(channelKeyPrefix+ch.UUID, ch, c.ttl)
}

// GetList returns the cached list snapshot, or (nil, false) on miss.
func (c *ChannelCache) GetList(ctx context.Context) ([]models.ChannelSummary, bool) {
	var list []models.ChannelSummary
	if !c.get(listKey, &list) {
		return nil, false
	}
	return list, true
}

// SetList stores the list snapshot under the short list TTL.
func (c *ChannelCache) SetList(ctx context.Context, list []models.ChannelSummary) {
	c.set(listKey, list, c.listTTL)
}

// InvalidateChannel drops the single-channel key. Implements
// store.Invalidator.
func (c *ChannelCache) InvalidateChannel(ctx context.Context, uuid string) {
	c.delete(channelKeyPrefix + models.NormalizeUUID(uuid))
}

// InvalidateList drops the list snapshot. Implements store.Invalidator.
func (c *ChannelCache) InvalidateList(ctx context.Context) {
	c.delete(listKey)
}

// get reads and decodes one entry. Any error counts as a miss; the store is
// authoritative on the subsequent read-through.
func (c *ChannelCache) get(key string, out interface{}) bool {
	err := c.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, out)
		})
	})
	if err != nil {
		metrics.CacheMisses.Inc()
		return false
	}
	metrics.CacheHits.Inc()
	return true
}

// set encodes and stores one entry with a TTL. Best-effort: a failed write
// degrades to store reads.
func (c *ChannelCache) set(key string, value interface{}, ttl time.Duration) {
	data, err := json.Marshal(value)
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("cache encode failed")
		return
	}
	err = c.db.Update(func(txn *badger.Txn) error {
		entry := badger.NewEntry([]byte(key), data).WithTTL(ttl)
		return txn.SetEntry(entry)
	})
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

// delete drops one entry. Best-effort.
func (c *ChannelCache) delete(key string) {
	err := c.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		logging.Warn().Err(err).Str("key", key).Msg("cache delete failed")
	}
}
