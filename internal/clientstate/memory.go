package clientstate

import (
	"context"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
)

// MemoryProvider keeps entries in process. Used in development and tests.
type MemoryProvider struct {
	c *gocache.Cache
}

func NewMemoryProvider(ttl time.Duration) *MemoryProvider {
	return &MemoryProvider{c: gocache.New(ttl, time.Minute)}
}

func (p *MemoryProvider) For(visitorID string) Storage {
	return &memoryStorage{c: p.c, prefix: visitorID + "\x00"}
}

type memoryStorage struct {
	c      *gocache.Cache
	prefix string
}

func (m *memoryStorage) Get(_ context.Context, key string) (string, error) {
	v, ok := m.c.Get(m.prefix + key)
	if !ok {
		return "", ErrNotFound
	}
	s, _ := v.(string)
	return s, nil
}

func (m *memoryStorage) Set(_ context.Context, key, value string) error {
	m.c.SetDefault(m.prefix+key, value)
	return nil
}

func (m *memoryStorage) Remove(_ context.Context, key string) error {
	m.c.Delete(m.prefix + key)
	return nil
}

func (m *memoryStorage) Clear(_ context.Context) error {
	for k := range m.c.Items() {
		if strings.HasPrefix(k, m.prefix) {
			m.c.Delete(k)
		}
	}
	return nil
}
