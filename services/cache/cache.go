package cache

import (
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent or expired
var ErrMiss = errors.New("cache miss")

// CacheService stores short-lived markers shared between scraper processes
type CacheService interface {
	// Get returns the stored value, or ErrMiss
	Get(key string) ([]byte, error)

	// Set stores value under key until ttl elapses
	Set(key string, value []byte, ttl time.Duration) error

	// Delete removes key; deleting a missing key is not an error
	Delete(key string) error
}

// IsMiss reports whether err means the key is absent
func IsMiss(err error) bool {
	return errors.Is(err, ErrMiss)
}
