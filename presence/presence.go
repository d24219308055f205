// Package presence tracks which agents currently have a document open,
// backed by Redis so multiple collaboration server instances share one
// view of who's online. Membership is a sorted set keyed by document,
// scored by expiry time, the same TTL-via-ZSET trick the retrieved
// pack's own presence cache uses instead of relying on Redis key
// expiry (which can't easily answer "who is online right now" in bulk).
package presence

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

type Registry struct {
	rdb *redis.Client
	ttl time.Duration
}

func New(rdb *redis.Client, ttl time.Duration) *Registry {
	return &Registry{rdb: rdb, ttl: ttl}
}

func roomKey(docID string) string {
	return "egwalker:presence:" + docID
}

// Join records agent as active in docID, refreshing its TTL. Safe to
// call repeatedly as a heartbeat.
func (r *Registry) Join(ctx context.Context, docID, agent string) error {
	expireAt := time.Now().Add(r.ttl).Unix()
	err := r.rdb.ZAdd(ctx, roomKey(docID), redis.Z{
		Score:  float64(expireAt),
		Member: agent,
	}).Err()
	if err != nil {
		return fmt.Errorf("presence: join: %w", err)
	}
	return nil
}

// Leave removes agent from docID immediately, without waiting for its
// TTL to lapse.
func (r *Registry) Leave(ctx context.Context, docID, agent string) error {
	if err := r.rdb.ZRem(ctx, roomKey(docID), agent).Err(); err != nil {
		return fmt.Errorf("presence: leave: %w", err)
	}
	return nil
}

// List returns the agents currently active in docID, first evicting
// any whose TTL has lapsed.
func (r *Registry) List(ctx context.Context, docID string) ([]string, error) {
	now := strconv.FormatInt(time.Now().Unix(), 10)

	if err := r.rdb.ZRemRangeByScore(ctx, roomKey(docID), "-inf", "("+now).Err(); err != nil {
		return nil, fmt.Errorf("presence: evict expired: %w", err)
	}

	agents, err := r.rdb.ZRangeByScore(ctx, roomKey(docID), &redis.ZRangeBy{
		Min: now,
		Max: "+inf",
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("presence: list: %w", err)
	}
	return agents, nil
}
