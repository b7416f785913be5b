package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/synaptica-ai/diseaseform/pkg/common/logger"
)

const (
	fieldPrefix    = "field:"
	selectedField  = "shell:selected"
	fieldSeparator = "|"
)

// RedisBackend stores each session as one hash so that several server
// replicas can serve the same user. The hash expires ttl after the last write.
type RedisBackend struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisBackend(client *redis.Client, prefix string, ttl time.Duration) *RedisBackend {
	return &RedisBackend{client: client, prefix: prefix, ttl: ttl}
}

func (b *RedisBackend) key(id string) string {
	return fmt.Sprintf("%ssession:%s", b.prefix, id)
}

func (b *RedisBackend) Open(ctx context.Context, id string) (Session, error) {
	if id == "" {
		return nil, errors.New("session id is required")
	}
	return &redisSession{backend: b, id: id, key: b.key(id)}, nil
}

func (b *RedisBackend) End(ctx context.Context, id string) error {
	if err := b.client.Del(ctx, b.key(id)).Err(); err != nil {
		return fmt.Errorf("end session: %w", err)
	}
	logger.Log.WithField("session_id", id).Debug("Session state removed")
	return nil
}

func (b *RedisBackend) Ping(ctx context.Context) error {
	return b.client.Ping(ctx).Err()
}

type redisSession struct {
	backend *RedisBackend
	id      string
	key     string
}

func hashField(k FieldKey) string {
	return fieldPrefix + k.PanelID + fieldSeparator + k.Feature
}

func (s *redisSession) ID() string { return s.id }

func (s *redisSession) Get(ctx context.Context, key FieldKey) (string, error) {
	v, err := s.backend.client.HGet(ctx, s.key, hashField(key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get field %s: %w", key, err)
	}
	return v, nil
}

func (s *redisSession) Set(ctx context.Context, key FieldKey, value string) error {
	_, err := s.backend.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, hashField(key), value)
		s.touch(ctx, pipe)
		return nil
	})
	if err != nil {
		return fmt.Errorf("set field %s: %w", key, err)
	}
	return nil
}

func (s *redisSession) EnsureInitialized(ctx context.Context, keys []FieldKey) error {
	if len(keys) == 0 {
		return nil
	}
	_, err := s.backend.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, k := range keys {
			pipe.HSetNX(ctx, s.key, hashField(k), "")
		}
		s.touch(ctx, pipe)
		return nil
	})
	if err != nil {
		return fmt.Errorf("initialize fields: %w", err)
	}
	return nil
}

func (s *redisSession) Selected(ctx context.Context) (string, error) {
	v, err := s.backend.client.HGet(ctx, s.key, selectedField).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get selection: %w", err)
	}
	return v, nil
}

func (s *redisSession) Select(ctx context.Context, panelID string) error {
	_, err := s.backend.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, s.key, selectedField, panelID)
		s.touch(ctx, pipe)
		return nil
	})
	if err != nil {
		return fmt.Errorf("select panel: %w", err)
	}
	return nil
}

func (s *redisSession) touch(ctx context.Context, pipe redis.Pipeliner) {
	if s.backend.ttl > 0 {
		pipe.Expire(ctx, s.key, s.backend.ttl)
	}
}
