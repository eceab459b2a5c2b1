package utils

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"

	"eventapi/middlewares"
)

// CacheInvalidator drops cached responses after writes. A nil
// *CacheInvalidator is valid and does nothing.
type CacheInvalidator struct{ rdb *redis.Client }

func NewCacheInvalidator(rdb *redis.Client) *CacheInvalidator { return &CacheInvalidator{rdb} }

// PurgeEventsList drops every cached list and today response.
func (ci *CacheInvalidator) PurgeEventsList(ctx context.Context) {
	if ci == nil {
		return
	}
	for _, prefix := range []string{middlewares.CacheListPrefix, middlewares.CacheTodayPrefix} {
		iter := ci.rdb.Scan(ctx, 0, prefix+"*", 0).Iterator()
		for iter.Next(ctx) {
			_ = ci.rdb.Del(ctx, iter.Val()).Err()
		}
	}
}

func (ci *CacheInvalidator) PurgeEventItem(ctx context.Context, id int64) {
	if ci == nil {
		return
	}
	_ = ci.rdb.Del(ctx, middlewares.CacheItemPrefix+strconv.FormatInt(id, 10)).Err()
}
