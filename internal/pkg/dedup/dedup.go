// Package dedup suppresses re-imports of inputs that were submitted
// recently, backed by redis so the window survives restarts.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "propwatch:dedup:input:"

type Deduplicator struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewDeduplicator(rdb *redis.Client, ttl time.Duration) *Deduplicator {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Deduplicator{
		rdb: rdb,
		ttl: ttl,
	}
}

// IsDuplicate reports whether the input was seen inside the window and
// marks it seen. A nil receiver or client disables dedup entirely.
func (d *Deduplicator) IsDuplicate(ctx context.Context, input string) (bool, error) {
	if d == nil || d.rdb == nil || input == "" {
		return false, nil
	}
	key := keyPrefix + hashInput(input)
	ok, err := d.rdb.SetNX(ctx, key, "1", d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("dedup setnx: %w", err)
	}
	return !ok, nil
}

// Delete clears the mark for an input, used when its listing is removed
// so it can be re-imported immediately.
func (d *Deduplicator) Delete(ctx context.Context, input string) error {
	if d == nil || d.rdb == nil || input == "" {
		return nil
	}
	key := keyPrefix + hashInput(input)
	if err := d.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("dedup del: %w", err)
	}
	return nil
}

// hashInput normalizes before hashing so "MLS2053078" and " mls2053078 "
// collapse to one key.
func hashInput(input string) string {
	normalized := strings.ToLower(strings.TrimSpace(input))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
