package cache

import (
	"errors"
	"time"

	"github.com/bradfitz/gomemcache/memcache"

	scrapeerr "sjsage522/tenderscraper/pkg/errors"
)

// MemcacheService implements CacheService using memcache
type MemcacheService struct {
	client *memcache.Client
}

// NewMemcacheService creates a new memcache service
func NewMemcacheService(serverAddr string) *MemcacheService {
	client := memcache.New(serverAddr)
	client.Timeout = 500 * time.Millisecond
	return &MemcacheService{
		client: client,
	}
}

// Ping checks that the memcache server is reachable
func (m *MemcacheService) Ping() error {
	if err := m.client.Ping(); err != nil {
		return scrapeerr.NewCache("memcache", "ping failed", err)
	}
	return nil
}

func (m *MemcacheService) Get(key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrMiss
	}
	if err != nil {
		return nil, scrapeerr.NewCache(key, "get failed", err)
	}
	return item.Value, nil
}

// Set stores value with a whole-second expiration of at least one second
func (m *MemcacheService) Set(key string, value []byte, ttl time.Duration) error {
	seconds := int32(ttl / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	err := m.client.Set(&memcache.Item{
		Key:        key,
		Value:      value,
		Expiration: seconds,
	})
	if err != nil {
		return scrapeerr.NewCache(key, "set failed", err)
	}
	return nil
}

func (m *MemcacheService) Delete(key string) error {
	err := m.client.Delete(key)
	if err == nil || errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return scrapeerr.NewCache(key, "delete failed", err)
}
