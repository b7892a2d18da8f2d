package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ErnestDikoum/basedocumentaire/internal/config"
	"github.com/ErnestDikoum/basedocumentaire/internal/domain"
)

const (
	redisKeyPrefix     = "basedoc:session:"
	redisUserKeyPrefix = "basedoc:user_sessions:"
)

// RedisStore keeps sessions in Redis as JSON values with a TTL.
type RedisStore struct {
	client redis.Cmdable
	ttl    time.Duration
}

// NewRedisClient connects to Redis and checks the connection.
func NewRedisClient(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr(),
		Password:    cfg.Password,
		DB:          cfg.DB,
		PoolSize:    cfg.PoolSize,
		DialTimeout: cfg.DialTimeout,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return client, nil
}

// NewRedisStore creates a RedisStore whose sessions last ttl.
func NewRedisStore(client redis.Cmdable, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

// Create opens a session for user.
func (s *RedisStore) Create(ctx context.Context, user *domain.User) (*Session, error) {
	sess := newSession(user, s.ttl, time.Now())

	data, err := json.Marshal(sess)
	if err != nil {
		return nil, fmt.Errorf("failed to encode session: %w", err)
	}

	if err := s.client.Set(ctx, redisKeyPrefix+sess.Token, data, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	// The per-user index lives as long as the newest session.
	userKey := userSessionsKey(user.ID)
	if err := s.client.SAdd(ctx, userKey, sess.Token).Err(); err != nil {
		return nil, fmt.Errorf("failed to index session: %w", err)
	}
	if err := s.client.Expire(ctx, userKey, s.ttl).Err(); err != nil {
		return nil, fmt.Errorf("failed to index session: %w", err)
	}

	return sess, nil
}

// Get returns a live session.
func (s *RedisStore) Get(ctx context.Context, token string) (*Session, error) {
	data, err := s.client.Get(ctx, redisKeyPrefix+token).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("failed to decode session: %w", err)
	}
	if sess.Expired(time.Now()) {
		return nil, domain.ErrSessionNotFound
	}

	return &sess, nil
}

// Delete removes a session.
func (s *RedisStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, redisKeyPrefix+token).Err(); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// DeleteUser removes every session of userID.
func (s *RedisStore) DeleteUser(ctx context.Context, userID int64) error {
	userKey := userSessionsKey(userID)

	tokens, err := s.client.SMembers(ctx, userKey).Result()
	if err != nil {
		return fmt.Errorf("failed to list user sessions: %w", err)
	}

	keys := make([]string, 0, len(tokens)+1)
	for _, token := range tokens {
		keys = append(keys, redisKeyPrefix+token)
	}
	keys = append(keys, userKey)

	if err := s.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete user sessions: %w", err)
	}
	return nil
}

func userSessionsKey(userID int64) string {
	return redisUserKeyPrefix + strconv.FormatInt(userID, 10)
}

// Ensure RedisStore implements Store.
var _ Store = (*RedisStore)(nil)
