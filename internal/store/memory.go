package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"
)

const defaultMemoryMaxEntries = 65536

type memoryEntry struct {
	state     string
	owner     string
	expiresAt time.Time
}

// MemoryStore is a single-process ReplayStore. It is safe for concurrent
// use; multi-instance deployments need RedisStore, PostgresStore or
// SQLiteStore.
type MemoryStore struct {
	mu         sync.Mutex
	opts       ReplayOptions
	maxEntries int
	entries    map[string]memoryEntry
	Now        func() time.Time
}

func NewMemory(opts ReplayOptions) *MemoryStore {
	return &MemoryStore{
		opts:       opts,
		maxEntries: defaultMemoryMaxEntries,
		entries:    map[string]memoryEntry{},
		Now:        time.Now,
	}
}

// WithMaxEntries caps the number of tracked keys; the entry closest to
// expiry is evicted first.
func (s *MemoryStore) WithMaxEntries(n int) *MemoryStore {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n > 0 {
		s.maxEntries = n
	}
	return s
}

func (s *MemoryStore) Reserve(_ context.Context, key, owner string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, errors.New("replay key is required")
	}
	now := s.now()

	s.mu.Lock()
	defer s.mu.Unlock()

	if entry, ok := s.entries[key]; ok && now.Before(entry.expiresAt) {
		return false, nil
	}
	s.pruneLocked(now)
	s.evictLocked()
	s.entries[key] = memoryEntry{state: statePending, owner: owner, expiresAt: now.Add(s.opts.lease())}
	return true, nil
}

// Commit succeeds while the key is free, expired or still owned by owner.
func (s *MemoryStore) Commit(_ context.Context, key, owner string) error {
	now := s.now()
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok && entry.owner != owner && now.Before(entry.expiresAt) {
		return ErrReservationLost
	}
	s.entries[key] = memoryEntry{state: stateCommitted, owner: owner, expiresAt: now.Add(s.opts.retention())}
	return nil
}

func (s *MemoryStore) Release(_ context.Context, key, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry, ok := s.entries[key]; ok && entry.state == statePending && entry.owner == owner {
		delete(s.entries, key)
	}
	return nil
}

// Len reports how many keys are tracked, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *MemoryStore) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *MemoryStore) pruneLocked(now time.Time) {
	for key, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, key)
		}
	}
}

func (s *MemoryStore) evictLocked() {
	for s.maxEntries > 0 && len(s.entries) >= s.maxEntries {
		var (
			oldestKey    string
			oldestExpiry time.Time
		)
		for key, entry := range s.entries {
			if oldestKey == "" || entry.expiresAt.Before(oldestExpiry) {
				oldestKey = key
				oldestExpiry = entry.expiresAt
			}
		}
		delete(s.entries, oldestKey)
	}
}
