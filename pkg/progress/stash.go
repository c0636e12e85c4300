package progress

import (
	"context"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// DefaultStashTTL bounds how long a payment stash survives an abandoned
// checkout.
const DefaultStashTTL = 2 * time.Hour

// StashStore holds payment stashes. Take returns the stash and removes it;
// (nil, nil) means nothing was stashed.
type StashStore interface {
	Put(ctx context.Context, key string, stash Stash) error
	Take(ctx context.Context, key string) (*Stash, error)
}

// MemoryStash is the in-process StashStore.
type MemoryStash struct {
	cache *cache.Cache
	codec Codec[Stash]
}

var _ StashStore = (*MemoryStash)(nil)

// NewMemoryStash constructs an in-process stash. ttl <= 0 selects
// DefaultStashTTL.
func NewMemoryStash(ttl time.Duration) *MemoryStash {
	if ttl <= 0 {
		ttl = DefaultStashTTL
	}
	return &MemoryStash{
		cache: cache.New(ttl, 10*time.Minute),
		codec: JSONCodec[Stash]{},
	}
}

func (s *MemoryStash) Put(_ context.Context, key string, stash Stash) error {
	if key == "" {
		return ErrEmptyKey
	}
	data, err := s.codec.Encode(stash)
	if err != nil {
		return fmt.Errorf("progress: encode stash: %w", err)
	}
	s.cache.SetDefault(key, data)
	return nil
}

func (s *MemoryStash) Take(_ context.Context, key string) (*Stash, error) {
	if key == "" {
		return nil, ErrEmptyKey
	}
	raw, found := s.cache.Get(key)
	if !found {
		return nil, nil
	}
	s.cache.Delete(key)
	data, ok := raw.([]byte)
	if !ok {
		return nil, fmt.Errorf("progress: unexpected stash entry %T", raw)
	}
	return s.codec.Decode(data)
}
