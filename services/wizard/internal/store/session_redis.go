package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"marinehub/internal/util"
)

const sessionKeyPrefix = "marinehub:wizard:session:"

// RedisSessionStore keeps sessions in Redis as JSON with a TTL.
type RedisSessionStore struct {
	client *redis.Client
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisSessionStore builds a store on an existing client.
func NewRedisSessionStore(client *redis.Client, ttl time.Duration) *RedisSessionStore {
	if ttl <= 0 {
		ttl = 2 * time.Hour
	}
	return &RedisSessionStore{client: client, ttl: ttl, now: time.Now}
}

func (s *RedisSessionStore) Create(ctx context.Context, sess *Session) error {
	sess.ID = util.NewID()
	sess.CreatedAt = s.now().UTC()
	sess.UpdatedAt = sess.CreatedAt
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetNX(ctx, sessionKeyPrefix+sess.ID, data, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.New("session id collision")
	}
	return nil
}

func (s *RedisSessionStore) Get(ctx context.Context, id string) (*Session, error) {
	data, err := s.client.Get(ctx, sessionKeyPrefix+id).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}
	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", id, err)
	}
	return &sess, nil
}

func (s *RedisSessionStore) Save(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = s.now().UTC()
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	ok, err := s.client.SetXX(ctx, sessionKeyPrefix+sess.ID, data, s.ttl).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrSessionNotFound
	}
	return nil
}

func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, sessionKeyPrefix+id).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return err
	}
	return nil
}
