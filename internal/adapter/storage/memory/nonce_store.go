package memory

import (
	"context"
	"sync"
	"time"
)

// NonceStore implements ports.NonceStore for single-process deployments
// running without Redis.
type NonceStore struct {
	mu   sync.Mutex
	seen map[string]time.Time // key -> expiry
	now  func() time.Time
}

// NewNonceStore creates an empty nonce store.
func NewNonceStore() *NonceStore {
	return &NonceStore{seen: make(map[string]time.Time), now: time.Now}
}

// CheckAndSet records a nonce for an access key. It returns false if the
// nonce was already used within ttl. Expired entries are swept on write.
func (s *NonceStore) CheckAndSet(_ context.Context, accessKey string, nonce string, ttl time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	for k, exp := range s.seen {
		if !now.Before(exp) {
			delete(s.seen, k)
		}
	}

	key := accessKey + ":" + nonce
	if _, used := s.seen[key]; used {
		return false, nil
	}
	s.seen[key] = now.Add(ttl)
	return true, nil
}
