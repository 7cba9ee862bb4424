package repository

import (
	"context"
	"sync"
)

// MemoryStorage keeps entries in a map. Nothing survives the process.
type MemoryStorage struct {
	mu      sync.RWMutex
	entries map[string]string
	closed  bool
}

// NewMemoryStorage constructs an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{entries: make(map[string]string)}
}

func (s *MemoryStorage) Get(_ context.Context, key string) (string, bool, error) {
	if err := checkKeys(key); err != nil {
		return "", false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return "", false, ErrClosed
	}
	v, ok := s.entries[key]
	return v, ok, nil
}

func (s *MemoryStorage) Set(ctx context.Context, key, value string) error {
	return s.SetAll(ctx, map[string]string{key: value})
}

func (s *MemoryStorage) SetAll(_ context.Context, entries map[string]string) error {
	if err := checkKeys(entryKeys(entries)...); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for k, v := range entries {
		s.entries[k] = v
	}
	return nil
}

func (s *MemoryStorage) Delete(_ context.Context, keys ...string) error {
	if err := checkKeys(keys...); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	for _, k := range keys {
		delete(s.entries, k)
	}
	return nil
}

func (s *MemoryStorage) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Len returns the number of stored entries.
func (s *MemoryStorage) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.entries)
}
