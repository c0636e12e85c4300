package progress

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisConfig addresses a redis deployment. Addrs with more than one entry
// selects a cluster client.
type RedisConfig struct {
	Addrs     []string
	Password  string
	DB        int
	Namespace string
}

// NewRedisClient builds the universal client shared by RedisStore and
// RedisStash.
func NewRedisClient(conf RedisConfig) redis.UniversalClient {
	return redis.NewUniversalClient(&redis.UniversalOptions{
		Addrs:    conf.Addrs,
		Password: conf.Password,
		DB:       conf.DB,
	})
}

type redisBase struct {
	client    redis.UniversalClient
	namespace string
}

func (b redisBase) key(kind, id string) string {
	ns := strings.TrimSpace(b.namespace)
	if ns == "" {
		ns = "formwizard"
	}
	return fmt.Sprintf("%s:%s:%s", ns, kind, id)
}

// RedisStore persists snapshots as plain redis strings.
type RedisStore struct {
	redisBase
	codec Codec[Snapshot]
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore wraps client. A nil codec selects JSON.
func NewRedisStore(client redis.UniversalClient, namespace string, codec Codec[Snapshot]) *RedisStore {
	if codec == nil {
		codec = JSONCodec[Snapshot]{}
	}
	return &RedisStore{
		redisBase: redisBase{client: client, namespace: namespace},
		codec:     codec,
	}
}

func (s *RedisStore) Save(ctx context.Context, appID string, snapshot Snapshot) error {
	if appID == "" {
		return ErrEmptyKey
	}
	data, err := s.codec.Encode(snapshot)
	if err != nil {
		return fmt.Errorf("progress: encode snapshot: %w", err)
	}
	if err := s.client.Set(ctx, s.key("progress", appID), data, 0).Err(); err != nil {
		return fmt.Errorf("progress: redis save %s: %w", appID, err)
	}
	return nil
}

func (s *RedisStore) Load(ctx context.Context, appID string) (*Snapshot, error) {
	if appID == "" {
		return nil, ErrEmptyKey
	}
	data, err := s.client.Get(ctx, s.key("progress", appID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("progress: redis load %s: %w", appID, err)
	}
	return s.codec.Decode(data)
}

func (s *RedisStore) Clear(ctx context.Context, appID string) error {
	if appID == "" {
		return ErrEmptyKey
	}
	if err := s.client.Del(ctx, s.key("progress", appID)).Err(); err != nil {
		return fmt.Errorf("progress: redis clear %s: %w", appID, err)
	}
	return nil
}

// RedisStash keeps payment stashes with an expiry so abandoned checkouts do
// not accumulate.
type RedisStash struct {
	redisBase
	codec Codec[Stash]
	ttl   time.Duration
}

var _ StashStore = (*RedisStash)(nil)

// NewRedisStash wraps client. ttl <= 0 selects DefaultStashTTL.
func NewRedisStash(client redis.UniversalClient, namespace string, codec Codec[Stash], ttl time.Duration) *RedisStash {
	if codec == nil {
		codec = JSONCodec[Stash]{}
	}
	if ttl <= 0 {
		ttl = DefaultStashTTL
	}
	return &RedisStash{
		redisBase: redisBase{client: client, namespace: namespace},
		codec:     codec,
		ttl:       ttl,
	}
}

func (s *RedisStash) Put(ctx context.Context, key string, stash Stash) error {
	if key == "" {
		return ErrEmptyKey
	}
	data, err := s.codec.Encode(stash)
	if err != nil {
		return fmt.Errorf("progress: encode stash: %w", err)
	}
	if err := s.client.Set(ctx, s.key("stash", key), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("progress: redis stash %s: %w", key, err)
	}
	return nil
}

func (s *RedisStash) Take(ctx context.Context, key string) (*Stash, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	data, err := s.client.GetDel(ctx, s.key("stash", key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("progress: redis take stash %s: %w", key, err)
	}
	return s.codec.Decode(data)
}
