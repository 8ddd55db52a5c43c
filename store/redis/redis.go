// Package redis provides a Redis-backed RecordStore.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/smallnest/runstream/store"
)

// RedisRecordStore implements store.RecordStore using Redis. Each record is
// one JSON value; a per-root set indexes the record ids of a run tree.
type RedisRecordStore struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

var _ store.RecordStore = (*RedisRecordStore)(nil)

// RedisOptions configuration for Redis connection
type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	Prefix   string        // Key prefix, default "runstream:"
	TTL      time.Duration // Expiration for records, default 0 (no expiration)
}

// NewRedisRecordStore creates a new Redis record store
func NewRedisRecordStore(opts RedisOptions) *RedisRecordStore {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})

	prefix := opts.Prefix
	if prefix == "" {
		prefix = "runstream:"
	}

	return &RedisRecordStore{
		client: client,
		prefix: prefix,
		ttl:    opts.TTL,
	}
}

// Close closes the underlying client.
func (s *RedisRecordStore) Close() error {
	return s.client.Close()
}

func (s *RedisRecordStore) recordKey(id uuid.UUID) string {
	return fmt.Sprintf("%srecord:%s", s.prefix, id)
}

func (s *RedisRecordStore) rootKey(id uuid.UUID) string {
	return fmt.Sprintf("%sroot:%s:records", s.prefix, id)
}

// Save stores a record
func (s *RedisRecordStore) Save(ctx context.Context, record *store.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal record: %w", err)
	}

	pipe := s.client.Pipeline()
	pipe.Set(ctx, s.recordKey(record.ID), data, s.ttl)

	rootKey := s.rootKey(record.RootID)
	pipe.SAdd(ctx, rootKey, record.ID.String())
	if s.ttl > 0 {
		pipe.Expire(ctx, rootKey, s.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save record to redis: %w", err)
	}
	return nil
}

// Load retrieves a record by run id
func (s *RedisRecordStore) Load(ctx context.Context, id uuid.UUID) (*store.Record, error) {
	data, err := s.client.Get(ctx, s.recordKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, fmt.Errorf("%w: %s", store.ErrNotFound, id)
		}
		return nil, fmt.Errorf("failed to load record from redis: %w", err)
	}

	var record store.Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal record: %w", err)
	}
	return &record, nil
}

// List returns all records for a root run, ordered by start time
func (s *RedisRecordStore) List(ctx context.Context, rootID uuid.UUID) ([]*store.Record, error) {
	ids, err := s.client.SMembers(ctx, s.rootKey(rootID)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list records for root %s: %w", rootID, err)
	}
	if len(ids) == 0 {
		return []*store.Record{}, nil
	}

	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		keys = append(keys, fmt.Sprintf("%srecord:%s", s.prefix, id))
	}

	// MGET returns nil for keys that expired out from under the index.
	results, err := s.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch records: %w", err)
	}

	var records []*store.Record
	for _, result := range results {
		data, ok := result.(string)
		if !ok {
			continue
		}
		var record store.Record
		if err := json.Unmarshal([]byte(data), &record); err != nil {
			continue
		}
		records = append(records, &record)
	}
	sort.Slice(records, func(i, j int) bool {
		return records[i].StartedAt.Before(records[j].StartedAt)
	})
	return records, nil
}

// Delete removes a record
func (s *RedisRecordStore) Delete(ctx context.Context, id uuid.UUID) error {
	record, err := s.Load(ctx, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		return err
	}

	pipe := s.client.Pipeline()
	pipe.Del(ctx, s.recordKey(id))
	pipe.SRem(ctx, s.rootKey(record.RootID), id.String())

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return nil
}

// Clear removes all records for a root run
func (s *RedisRecordStore) Clear(ctx context.Context, rootID uuid.UUID) error {
	rootKey := s.rootKey(rootID)
	ids, err := s.client.SMembers(ctx, rootKey).Result()
	if err != nil {
		return fmt.Errorf("failed to get records for clearing: %w", err)
	}
	if len(ids) == 0 {
		return nil
	}

	pipe := s.client.Pipeline()
	for _, id := range ids {
		pipe.Del(ctx, fmt.Sprintf("%srecord:%s", s.prefix, id))
	}
	pipe.Del(ctx, rootKey)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to clear records: %w", err)
	}
	return nil
}
