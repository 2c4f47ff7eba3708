package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/florence-gateway/backend/internal/models"
	"github.com/redis/go-redis/v9"
)

const (
	userKeyPrefix    = "user:"
	requestKeyPrefix = "payreq:"
	historyKeyPrefix = "history:"
)

type RedisUserStore struct {
	rdb *redis.Client
}

func NewRedisUserStore(rdb *redis.Client) *RedisUserStore {
	return &RedisUserStore{rdb: rdb}
}

func (s *RedisUserStore) Get(ctx context.Context, key string) (*models.UserRecord, error) {
	data, err := s.rdb.Get(ctx, userKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get user: %w", err)
	}
	var u models.UserRecord
	if err := json.Unmarshal(data, &u); err != nil {
		return nil, fmt.Errorf("decode user %s: %w", key, err)
	}
	return &u, nil
}

func (s *RedisUserStore) Put(ctx context.Context, user *models.UserRecord) error {
	data, err := json.Marshal(user)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, userKeyPrefix+user.Key(), data, 0).Err()
}

func (s *RedisUserStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, userKeyPrefix+key).Err()
}

// RedisRequestStore keeps markers without TTL: a marker lives until it is
// replaced by a new /payments or consumed by an accepted proof.
type RedisRequestStore struct {
	rdb *redis.Client
}

func NewRedisRequestStore(rdb *redis.Client) *RedisRequestStore {
	return &RedisRequestStore{rdb: rdb}
}

func (s *RedisRequestStore) Get(ctx context.Context, userKey string) (*models.PaymentRequest, error) {
	data, err := s.rdb.Get(ctx, requestKeyPrefix+userKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get payment request: %w", err)
	}
	var r models.PaymentRequest
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *RedisRequestStore) Put(ctx context.Context, req *models.PaymentRequest) error {
	data, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return s.rdb.Set(ctx, requestKeyPrefix+req.UserKey, data, 0).Err()
}

func (s *RedisRequestStore) Delete(ctx context.Context, userKey string) error {
	return s.rdb.Del(ctx, requestKeyPrefix+userKey).Err()
}

// RedisConversationStore keeps each history as a capped list, oldest first.
type RedisConversationStore struct {
	rdb      *redis.Client
	maxTurns int
}

func NewRedisConversationStore(rdb *redis.Client, maxTurns int) *RedisConversationStore {
	return &RedisConversationStore{rdb: rdb, maxTurns: maxTurns}
}

func (s *RedisConversationStore) Append(ctx context.Context, userKey string, turns ...models.Turn) error {
	if len(turns) == 0 {
		return nil
	}
	values := make([]any, 0, len(turns))
	for _, t := range turns {
		data, err := json.Marshal(t)
		if err != nil {
			return err
		}
		values = append(values, string(data))
	}

	key := historyKeyPrefix + userKey
	pipe := s.rdb.TxPipeline()
	pipe.RPush(ctx, key, values...)
	if s.maxTurns > 0 {
		pipe.LTrim(ctx, key, int64(-s.maxTurns), -1)
	}
	_, err := pipe.Exec(ctx)
	return err
}

func (s *RedisConversationStore) Recent(ctx context.Context, userKey string, limit int) ([]models.Turn, error) {
	start := int64(0)
	if limit > 0 {
		start = int64(-limit)
	}
	raw, err := s.rdb.LRange(ctx, historyKeyPrefix+userKey, start, -1).Result()
	if err != nil {
		return nil, err
	}
	turns := make([]models.Turn, 0, len(raw))
	for _, r := range raw {
		var t models.Turn
		if err := json.Unmarshal([]byte(r), &t); err != nil {
			continue
		}
		turns = append(turns, t)
	}
	return turns, nil
}
