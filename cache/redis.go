package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-redis/redis/v8"

	"focus-pipeline/models"
)

const (
	snapshotKeyPrefix = "snapshot:"
	offlineQueueKey   = "offline:health-metrics"
)

type RedisClient struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisClient(ctx context.Context, addr string, ttl time.Duration) (*RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}

	return &RedisClient{client: rdb, ttl: ttl}, nil
}

func (rc *RedisClient) Close() error {
	return rc.client.Close()
}

func (rc *RedisClient) SaveSnapshot(ctx context.Context, snap models.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return rc.client.Set(ctx, snapshotKeyPrefix+snap.UserID, data, rc.ttl).Err()
}

// GetSnapshot returns nil, nil when no snapshot is stored.
func (rc *RedisClient) GetSnapshot(ctx context.Context, userID string) (*models.Snapshot, error) {
	val, err := rc.client.Get(ctx, snapshotKeyPrefix+userID).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var snap models.Snapshot
	if err := json.Unmarshal(val, &snap); err != nil {
		return nil, err
	}
	return &snap, nil
}

// Push appends a record to the tail of the offline queue.
func (rc *RedisClient) Push(ctx context.Context, rec models.HealthRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	return rc.client.RPush(ctx, offlineQueueKey, data).Err()
}

// Peek returns the head of the offline queue without removing it, or nil
// when the queue is empty.
func (rc *RedisClient) Peek(ctx context.Context) (*models.HealthRecord, error) {
	val, err := rc.client.LIndex(ctx, offlineQueueKey, 0).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var rec models.HealthRecord
	if err := json.Unmarshal(val, &rec); err != nil {
		// A record that cannot be decoded would block the queue forever.
		if popErr := rc.client.LPop(ctx, offlineQueueKey).Err(); popErr != nil && popErr != redis.Nil {
			return nil, popErr
		}
		return nil, err
	}
	return &rec, nil
}

// Pop drops the head of the offline queue.
func (rc *RedisClient) Pop(ctx context.Context) error {
	err := rc.client.LPop(ctx, offlineQueueKey).Err()
	if err == redis.Nil {
		return nil
	}
	return err
}

func (rc *RedisClient) Len(ctx context.Context) (int64, error) {
	return rc.client.LLen(ctx, offlineQueueKey).Result()
}
