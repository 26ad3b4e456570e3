// Package redis puts a read-through cache in front of a schedule catalog.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/kirillkom/tariff-engine/internal/core/domain"
	"github.com/kirillkom/tariff-engine/internal/core/ports"
)

const (
	keyPrefix  = "tariff:schedule:"
	missMarker = "~"
	scanBatch  = 200
)

// Observer is told whether each lookup was served from cache.
type Observer interface {
	CacheLookup(jurisdiction string, hit bool)
}

type Options struct {
	TTL      time.Duration
	MissTTL  time.Duration
	Observer Observer
}

// Catalog caches FindByCode results per jurisdiction and code, including
// misses. Search passes straight through to the inner catalog.
type Catalog struct {
	inner  ports.ScheduleCatalog
	client goredis.UniversalClient
	opts   Options
}

func NewCatalog(inner ports.ScheduleCatalog, client goredis.UniversalClient, opts Options) *Catalog {
	if opts.TTL <= 0 {
		opts.TTL = 10 * time.Minute
	}
	if opts.MissTTL <= 0 || opts.MissTTL > opts.TTL {
		opts.MissTTL = opts.TTL / 10
	}
	return &Catalog{inner: inner, client: client, opts: opts}
}

// NewClient parses a redis:// URL into a client.
func NewClient(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return goredis.NewClient(opts), nil
}

func (c *Catalog) Table(jurisdiction string) ports.ScheduleTable {
	return &table{cache: c, inner: c.inner.Table(jurisdiction), jurisdiction: jurisdiction}
}

// Invalidate drops every cached code of jurisdiction.
func (c *Catalog) Invalidate(ctx context.Context, jurisdiction string) error {
	iter := c.client.Scan(ctx, 0, keyPrefix+jurisdiction+":*", scanBatch).Iterator()
	batch := make([]string, 0, scanBatch)
	deleted := 0
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == scanBatch {
			if err := c.client.Del(ctx, batch...).Err(); err != nil {
				return fmt.Errorf("redis del: %w", err)
			}
			deleted += len(batch)
			batch = batch[:0]
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan: %w", err)
	}
	if len(batch) > 0 {
		if err := c.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del: %w", err)
		}
		deleted += len(batch)
	}
	slog.Info("schedule_cache_invalidated", "jurisdiction", jurisdiction, "keys", deleted)
	return nil
}

type table struct {
	cache        *Catalog
	inner        ports.ScheduleTable
	jurisdiction string
}

func (t *table) FindByCode(ctx context.Context, hts8 string) (*domain.DutyScheduleRow, error) {
	key := keyPrefix + t.jurisdiction + ":" + hts8

	raw, err := t.cache.client.Get(ctx, key).Result()
	switch {
	case err == nil:
		t.observe(true)
		if raw == missMarker {
			return nil, domain.WrapError(domain.ErrTariffNotFound, "find tariff", fmt.Errorf("%s/%s (cached)", t.jurisdiction, hts8))
		}
		var row domain.DutyScheduleRow
		if jsonErr := json.Unmarshal([]byte(raw), &row); jsonErr == nil {
			return &row, nil
		}
		slog.Warn("schedule_cache_decode_failed", "key", key)
	case errors.Is(err, goredis.Nil):
		t.observe(false)
	default:
		// Cache outages degrade to direct store reads.
		t.observe(false)
		slog.Warn("schedule_cache_get_failed", "key", key, "error", err)
	}

	row, err := t.inner.FindByCode(ctx, hts8)
	if err != nil {
		if domain.IsKind(err, domain.ErrTariffNotFound) {
			t.store(ctx, key, missMarker, t.cache.opts.MissTTL)
		}
		return nil, err
	}

	if payload, jsonErr := json.Marshal(row); jsonErr == nil {
		t.store(ctx, key, string(payload), t.cache.opts.TTL)
	}
	return row, nil
}

func (t *table) Search(ctx context.Context, term string) ([]domain.DutyScheduleRow, error) {
	return t.inner.Search(ctx, term)
}

func (t *table) store(ctx context.Context, key, value string, ttl time.Duration) {
	if err := t.cache.client.Set(ctx, key, value, ttl).Err(); err != nil {
		slog.Warn("schedule_cache_set_failed", "key", key, "error", err)
	}
}

func (t *table) observe(hit bool) {
	if t.cache.opts.Observer != nil {
		t.cache.opts.Observer.CacheLookup(t.jurisdiction, hit)
	}
}
