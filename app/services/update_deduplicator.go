package services

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/amirphl/leadbridge/utils"
	"github.com/redis/go-redis/v9"
)

// UpdateDeduplicator remembers Telegram update ids so redelivered webhooks are
// processed once
type UpdateDeduplicator interface {
	// FirstSeen marks updateID as seen and reports whether it was new
	FirstSeen(ctx context.Context, updateID int64) (bool, error)
}

type redisUpdateDeduplicator struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// NewUpdateDeduplicator returns a Redis backed deduplicator, or one that lets
// every update through when client is nil
func NewUpdateDeduplicator(client *redis.Client, prefix string, ttl time.Duration) UpdateDeduplicator {
	if client == nil {
		return noopUpdateDeduplicator{}
	}
	if ttl <= 0 {
		ttl = utils.UpdateDedupTTL
	}
	return &redisUpdateDeduplicator{client: client, prefix: prefix, ttl: ttl}
}

func (d *redisUpdateDeduplicator) key(updateID int64) string {
	return d.prefix + "tg:update:" + strconv.FormatInt(updateID, 10)
}

func (d *redisUpdateDeduplicator) FirstSeen(ctx context.Context, updateID int64) (bool, error) {
	ok, err := d.client.SetNX(ctx, d.key(updateID), utils.UTCNowUnix(), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to mark update %d as seen: %w", updateID, err)
	}
	return ok, nil
}

type noopUpdateDeduplicator struct{}

func (noopUpdateDeduplicator) FirstSeen(ctx context.Context, updateID int64) (bool, error) {
	return true, nil
}
