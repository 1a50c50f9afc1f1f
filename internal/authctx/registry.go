package authctx

import (
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"ekaai-backend/internal/metrics"
)

// Builder creates a started Context for a visitor.
type Builder func(visitorID string) *Context

// Registry keeps one Context per visitor and closes it after the visitor has
// been idle for the configured TTL.
type Registry struct {
	build Builder
	items *cache.Cache
	rec   metrics.Recorder
	mu    sync.Mutex
}

func NewRegistry(build Builder, idleTTL time.Duration, rec metrics.Recorder) *Registry {
	return newRegistry(build, idleTTL, idleTTL/2, rec)
}

// newRegistry takes the janitor interval separately; zero disables it.
func newRegistry(build Builder, idleTTL, cleanup time.Duration, rec metrics.Recorder) *Registry {
	if rec == nil {
		rec = metrics.Noop{}
	}
	r := &Registry{
		build: build,
		items: cache.New(idleTTL, cleanup),
		rec:   rec,
	}
	r.items.OnEvicted(func(_ string, v interface{}) {
		v.(*Context).Close()
		r.rec.SetActiveVisitors(r.items.ItemCount())
	})
	return r
}

// Get returns the visitor's Context, creating and starting it on first use.
// Every call pushes the idle deadline out.
func (r *Registry) Get(visitorID string) *Context {
	r.mu.Lock()
	defer r.mu.Unlock()

	if v, ok := r.items.Get(visitorID); ok {
		c := v.(*Context)
		r.items.SetDefault(visitorID, c)
		return c
	}
	// An expired entry the janitor has not reached yet still holds a running
	// Context. Delete fires OnEvicted, which closes it.
	r.items.Delete(visitorID)

	c := r.build(visitorID)
	c.Start()
	r.items.SetDefault(visitorID, c)
	r.rec.SetActiveVisitors(r.items.ItemCount())
	return c
}

// Peek returns the Context without creating one.
func (r *Registry) Peek(visitorID string) (*Context, bool) {
	v, ok := r.items.Get(visitorID)
	if !ok {
		return nil, false
	}
	return v.(*Context), true
}

// Drop closes and forgets the visitor's Context.
func (r *Registry) Drop(visitorID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items.Delete(visitorID)
}

func (r *Registry) Len() int {
	return r.items.ItemCount()
}

// Close closes every Context. The registry must not be used afterwards.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items.DeleteExpired()
	for id := range r.items.Items() {
		r.items.Delete(id)
	}
}
