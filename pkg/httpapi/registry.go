package httpapi

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
	"golang.org/x/time/rate"

	"github.com/goliatone/go-formwizard/pkg/wizard"
)

// DefaultSessionTTL is how long an idle session stays in the registry.
const DefaultSessionTTL = 30 * time.Minute

type entry struct {
	session *wizard.Session
	limiter *rate.Limiter
}

// Registry keeps live sessions in memory, each with its own event limiter.
// Idle sessions expire; their progress survives in the progress store.
type Registry struct {
	mu     sync.Mutex
	cache  *cache.Cache
	ttl    time.Duration
	perSec rate.Limit
	burst  int
}

// NewRegistry builds a registry. A non-positive ttl uses DefaultSessionTTL.
func NewRegistry(ttl time.Duration, perSecond float64, burst int) *Registry {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	limit := rate.Limit(perSecond)
	if perSecond <= 0 {
		limit = rate.Inf
	}
	if burst <= 0 {
		burst = 1
	}
	return &Registry{
		cache:  cache.New(ttl, 2*ttl),
		ttl:    ttl,
		perSec: limit,
		burst:  burst,
	}
}

// Put registers s under its id.
func (r *Registry) Put(s *wizard.Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cache.Set(s.ID(), &entry{session: s, limiter: rate.NewLimiter(r.perSec, r.burst)}, r.ttl)
}

// Get returns the session registered under id and refreshes its expiry.
func (r *Registry) Get(id string) (*wizard.Session, bool) {
	e, ok := r.lookup(id)
	if !ok {
		return nil, false
	}
	return e.session, true
}

// Allow reports whether the session may process another event now.
func (r *Registry) Allow(id string) bool {
	e, ok := r.lookup(id)
	if !ok {
		return true
	}
	return e.limiter.Allow()
}

// Delete drops the session.
func (r *Registry) Delete(id string) {
	r.cache.Delete(id)
}

// Len reports the number of live sessions.
func (r *Registry) Len() int {
	return r.cache.ItemCount()
}

func (r *Registry) lookup(id string) (*entry, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, ok := r.cache.Get(id)
	if !ok {
		return nil, false
	}
	e := raw.(*entry)
	r.cache.Set(id, e, r.ttl)
	return e, true
}
