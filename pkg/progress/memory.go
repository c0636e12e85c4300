package progress

import (
	"context"
	"fmt"
	"time"

	cache "github.com/patrickmn/go-cache"
)

// MemoryStore keeps encoded snapshots in process. Entries never expire;
// staleness is the caller's concern.
type MemoryStore struct {
	cache *cache.Cache
	codec Codec[Snapshot]
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an in-process store. A nil codec selects JSON.
func NewMemoryStore(codec Codec[Snapshot]) *MemoryStore {
	if codec == nil {
		codec = JSONCodec[Snapshot]{}
	}
	return &MemoryStore{
		cache: cache.New(cache.NoExpiration, 10*time.Minute),
		codec: codec,
	}
}

func (s *MemoryStore) Save(_ context.Context, appID string, snapshot Snapshot) error {
	if appID == "" {
		return ErrEmptyKey
	}
	data, err := s.codec.Encode(snapshot)
	if err != nil {
		return fmt.Errorf("progress: encode snapshot: %w", err)
	}
	s.cache.Set(appID, data, cache.NoExpiration)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, appID string) (*Snapshot, error) {
	if appID == "" {
		return nil, ErrEmptyKey
	}
	raw, found := s.cache.Get(appID)
	if !found {
		return nil, nil
	}
	data, ok := raw.([]byte)
	if !ok {
		return nil, fmt.Errorf("progress: unexpected cache entry %T", raw)
	}
	return s.codec.Decode(data)
}

func (s *MemoryStore) Clear(_ context.Context, appID string) error {
	if appID == "" {
		return ErrEmptyKey
	}
	s.cache.Delete(appID)
	return nil
}
