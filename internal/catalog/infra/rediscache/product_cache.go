// Package rediscache wraps a ProductRepo with a TTL read cache.
// Cache failures degrade to direct repo reads; a stale price in the
// cache window is harmless because carts snapshot prices at add time.
package rediscache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/francium/storefront/internal/catalog/app"
	"github.com/francium/storefront/internal/catalog/domain"
)

type ProductCache struct {
	next app.ProductRepo
	rdb  *redis.Client
	ttl  time.Duration
	log  *slog.Logger
}

func New(next app.ProductRepo, rdb *redis.Client, ttl time.Duration, log *slog.Logger) *ProductCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &ProductCache{next: next, rdb: rdb, ttl: ttl, log: log}
}

func key(id string) string { return "catalog:product:" + id }

func (c *ProductCache) Get(ctx context.Context, id string) (domain.Product, error) {
	data, err := c.rdb.Get(ctx, key(id)).Bytes()
	if err == nil {
		var p domain.Product
		if jerr := json.Unmarshal(data, &p); jerr == nil {
			return p, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		c.log.Warn("product cache read failed", slog.Any("err", err))
	}

	p, err := c.next.Get(ctx, id)
	if err != nil {
		return domain.Product{}, err
	}

	if data, jerr := json.Marshal(p); jerr == nil {
		if serr := c.rdb.Set(ctx, key(id), data, c.ttl).Err(); serr != nil {
			c.log.Warn("product cache write failed", slog.Any("err", serr))
		}
	}
	return p, nil
}

func (c *ProductCache) Create(ctx context.Context, p domain.Product) (domain.Product, error) {
	created, err := c.next.Create(ctx, p)
	if err != nil {
		return domain.Product{}, err
	}
	// drop any entry left by a previous incarnation of this id
	if derr := c.rdb.Del(ctx, key(created.ID)).Err(); derr != nil {
		c.log.Warn("product cache invalidation failed", slog.Any("err", derr))
	}
	return created, nil
}

func (c *ProductCache) List(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	return c.next.List(ctx, query, limit)
}
