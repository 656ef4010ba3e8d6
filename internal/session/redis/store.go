// Package redis is a Redis-backed session store. Each session is stored as
// one JSON blob under session:<app>/<user>/<session>, with a TTL refreshed
// on every write.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tjfontaine/agent-pipeline/internal/core/domain"
	"github.com/tjfontaine/agent-pipeline/internal/core/ports"
)

// Store keeps sessions in Redis.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

var _ ports.SessionStore = (*Store)(nil)

// New connects to Redis at url (redis:// form) and verifies the
// connection. ttl of zero keeps sessions forever.
func New(ctx context.Context, url string, ttl time.Duration) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Store{client: client, ttl: ttl}, nil
}

func storageKey(key domain.SessionKey) string {
	return "session:" + key.String()
}

func (s *Store) GetOrCreate(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	sess, err := s.Get(ctx, key)
	if err == nil {
		return sess, nil
	}
	if err != ports.ErrSessionNotFound {
		return nil, err
	}

	sess = domain.NewSession(key)
	if err := s.save(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) Get(ctx context.Context, key domain.SessionKey) (*domain.Session, error) {
	data, err := s.client.Get(ctx, storageKey(key)).Result()
	if err == redis.Nil {
		return nil, ports.ErrSessionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	sess := &domain.Session{State: domain.NewStateBag()}
	if err := json.Unmarshal([]byte(data), sess); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return sess, nil
}

func (s *Store) AppendTurn(ctx context.Context, key domain.SessionKey, turn domain.Turn) error {
	sess, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	sess.Append(turn)
	return s.save(ctx, sess)
}

func (s *Store) SaveState(ctx context.Context, key domain.SessionKey, bag *domain.StateBag) error {
	sess, err := s.Get(ctx, key)
	if err != nil {
		return err
	}
	sess.State.Merge(bag)
	return s.save(ctx, sess)
}

func (s *Store) save(ctx context.Context, sess *domain.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	return s.client.Set(ctx, storageKey(sess.Key), data, s.ttl).Err()
}

func (s *Store) Close() error {
	return s.client.Close()
}
