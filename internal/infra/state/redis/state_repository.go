// Package redisstate implements StateRepository on Redis.
package redisstate

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/YusufStar/code-craft/internal/domain"
)

// Editor hash field names.
const (
	fieldCode     = "code"
	fieldLanguage = "language"
	fieldVersion  = "version"
	fieldOutput   = "output"
)

// RedisStateRepository is the Redis implementation of StateRepository.
type RedisStateRepository struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisStateRepository creates a RedisStateRepository.
func NewRedisStateRepository(client *redis.Client, keyPrefix string) *RedisStateRepository {
	if client == nil {
		panic("redis client cannot be nil for RedisStateRepository")
	}
	if keyPrefix == "" {
		keyPrefix = "cc:"
	}
	return &RedisStateRepository{client: client, keyPrefix: keyPrefix}
}

// --- Key helpers ---

func (r *RedisStateRepository) editorKey(roomID uint) string {
	return fmt.Sprintf("%sroom:%d:editor", r.keyPrefix, roomID)
}

func (r *RedisStateRepository) opCountKey(roomID uint) string {
	return fmt.Sprintf("%sroom:%d:op_count", r.keyPrefix, roomID)
}

// EventChannel is the pub/sub channel name for a room. Exported so the hub
// can subscribe with the same key scheme it publishes under.
func EventChannel(keyPrefix string, roomID uint) string {
	if keyPrefix == "" {
		keyPrefix = "cc:"
	}
	return fmt.Sprintf("%sroom:%d:events", keyPrefix, roomID)
}

// --- StateRepository implementation ---

func (r *RedisStateRepository) InitEditor(ctx context.Context, roomID uint, state domain.EditorState) error {
	key := r.editorKey(roomID)
	err := r.client.HSet(ctx, key,
		fieldCode, state.Code,
		fieldLanguage, state.Language,
		fieldVersion, state.Version,
		fieldOutput, state.Output,
	).Err()
	if err != nil {
		return fmt.Errorf("redis: init editor for room %d on %s: %w", roomID, key, err)
	}
	return nil
}

func (r *RedisStateRepository) GetEditor(ctx context.Context, roomID uint) (domain.EditorState, error) {
	key := r.editorKey(roomID)
	fields, err := r.client.HGetAll(ctx, key).Result()
	if err != nil {
		return domain.EditorState{}, fmt.Errorf("redis: get editor for room %d from %s: %w", roomID, key, err)
	}
	return domain.EditorState{
		Code:     fields[fieldCode],
		Language: fields[fieldLanguage],
		Version:  fields[fieldVersion],
		Output:   fields[fieldOutput],
	}, nil
}

func (r *RedisStateRepository) SetCode(ctx context.Context, roomID uint, code string) error {
	if err := r.client.HSet(ctx, r.editorKey(roomID), fieldCode, code).Err(); err != nil {
		return fmt.Errorf("redis: set code for room %d: %w", roomID, err)
	}
	return nil
}

func (r *RedisStateRepository) SetLanguage(ctx context.Context, roomID uint, language, version string) error {
	err := r.client.HSet(ctx, r.editorKey(roomID), fieldLanguage, language, fieldVersion, version).Err()
	if err != nil {
		return fmt.Errorf("redis: set language for room %d: %w", roomID, err)
	}
	return nil
}

func (r *RedisStateRepository) SetOutput(ctx context.Context, roomID uint, output string) error {
	if err := r.client.HSet(ctx, r.editorKey(roomID), fieldOutput, output).Err(); err != nil {
		return fmt.Errorf("redis: set output for room %d: %w", roomID, err)
	}
	return nil
}

func (r *RedisStateRepository) CleanupRoomState(ctx context.Context, roomID uint) error {
	keys := []string{r.editorKey(roomID), r.opCountKey(roomID)}
	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("redis: cleanup state for room %d: %w", roomID, err)
	}
	return nil
}

func (r *RedisStateRepository) IncrementOpCount(ctx context.Context, roomID uint) (int64, error) {
	key := r.opCountKey(roomID)
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, key)
	pipe.Expire(ctx, key, 1*time.Hour)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("redis: increment op count for room %d: %w", roomID, err)
	}
	return incr.Val(), nil
}

func (r *RedisStateRepository) ResetOpCount(ctx context.Context, roomID uint) error {
	if err := r.client.Set(ctx, r.opCountKey(roomID), "0", 1*time.Hour).Err(); err != nil {
		return fmt.Errorf("redis: reset op count for room %d: %w", roomID, err)
	}
	return nil
}

func (r *RedisStateRepository) PublishEvent(ctx context.Context, roomID uint, payload []byte) error {
	channel := EventChannel(r.keyPrefix, roomID)
	if err := r.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis: publish event for room %d on %s: %w", roomID, channel, err)
	}
	return nil
}

func (r *RedisStateRepository) CheckRateLimit(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	fullKey := r.keyPrefix + "ratelimit:" + key
	pipe := r.client.Pipeline()
	incr := pipe.Incr(ctx, fullKey)
	pipe.Expire(ctx, fullKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, fmt.Errorf("redis: rate limit check for %s: %w", fullKey, err)
	}
	return incr.Val() > int64(limit), nil
}
