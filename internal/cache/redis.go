// Package cache keeps rendered export artifacts in Redis so repeated
// downloads of an unchanged document skip PDF generation.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"canvas-backend/internal/model"
)

const keyPrefix = "canvas:export:"

// NewRedisClient creates a Redis client and checks the connection.
func NewRedisClient(addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return client, nil
}

// ExportCache stores export bytes by Key. A nil *ExportCache is a valid
// disabled cache.
type ExportCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewExportCache wraps client. ttl <= 0 keeps entries until flushed.
func NewExportCache(client *redis.Client, ttl time.Duration, log *zap.Logger) *ExportCache {
	if log == nil {
		log = zap.NewNop()
	}
	return &ExportCache{client: client, ttl: ttl, log: log.Named("cache")}
}

// Key identifies an export of a document version. Any stroke or page change
// moves updatedAt, and a different field list changes the fingerprint.
func Key(documentID, format string, updatedAt time.Time, fields []model.TemplateField) string {
	return keyPrefix + documentID + ":" + format + ":" +
		strconv.FormatInt(updatedAt.UnixNano(), 36) + ":" + Fingerprint(fields)
}

// Fingerprint hashes a template field list.
func Fingerprint(fields []model.TemplateField) string {
	d := xxhash.New()
	for _, f := range fields {
		d.WriteString(f.FieldLabel)
		d.WriteString("\x00")
		d.WriteString(string(f.FieldType))
		if f.IsRequired {
			d.WriteString("\x00*")
		}
		d.WriteString("\x1e")
	}
	return strconv.FormatUint(d.Sum64(), 16)
}

// Get returns the cached bytes and whether they were found.
func (c *ExportCache) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	data, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return data, true, nil
}

// Put stores data under key.
func (c *ExportCache) Put(ctx context.Context, key string, data []byte) error {
	if c == nil {
		return nil
	}
	return c.client.Set(ctx, key, data, c.ttl).Err()
}

// Flush deletes every cached export and returns how many were removed.
func (c *ExportCache) Flush(ctx context.Context) (int, error) {
	if c == nil {
		return 0, nil
	}

	var (
		cursor  uint64
		removed int
	)
	for {
		keys, next, err := c.client.Scan(ctx, cursor, keyPrefix+"*", 100).Result()
		if err != nil {
			return removed, err
		}
		if len(keys) > 0 {
			n, err := c.client.Del(ctx, keys...).Result()
			if err != nil {
				return removed, err
			}
			removed += int(n)
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	c.log.Info("export cache flushed", zap.Int("keys", removed))
	return removed, nil
}

// Health checks if Redis is reachable.
func (c *ExportCache) Health(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.client.Ping(ctx).Err()
}

// Enabled reports whether exports are cached.
func (c *ExportCache) Enabled() bool { return c != nil }

// Close closes the Redis connection.
func (c *ExportCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
