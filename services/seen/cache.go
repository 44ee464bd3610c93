package seen

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"sync/atomic"

	"cafenotice/noticebot/services/cache"
)

// CacheStore keeps seen keys in a CacheService such as memcache.
// Keys are hashed because memcache rejects spaces and long keys.
type CacheStore struct {
	cache  cache.CacheService
	prefix string
	added  atomic.Int64
}

// NewCacheStore creates a store backed by cacheSvc
func NewCacheStore(cacheSvc cache.CacheService, prefix string) *CacheStore {
	return &CacheStore{cache: cacheSvc, prefix: prefix}
}

func (s *CacheStore) cacheKey(key string) string {
	sum := sha1.Sum([]byte(key))
	return s.prefix + hex.EncodeToString(sum[:])
}

// Add records key with no expiration and reports whether it was new
func (s *CacheStore) Add(_ context.Context, key string) (bool, error) {
	err := s.cache.Add(s.cacheKey(key), []byte("1"), 0)
	if errors.Is(err, cache.ErrNotStored) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	s.added.Add(1)
	return true, nil
}

// Contains reports whether key was recorded
func (s *CacheStore) Contains(_ context.Context, key string) (bool, error) {
	_, err := s.cache.Get(s.cacheKey(key))
	if errors.Is(err, cache.ErrCacheMiss) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Len returns the number of keys added by this process
func (s *CacheStore) Len() int {
	return int(s.added.Load())
}
