// Package memorykv is an in-process kvstore.Store used in tests and for
// local development without external services.
package memorykv

import (
	"context"
	"sync"

	"imgshare-backend/internal/kvstore"
)

type Store struct {
	mu     sync.RWMutex
	hashes map[string]map[string]string
}

var _ kvstore.Store = (*Store)(nil)

func New() *Store {
	return &Store{hashes: make(map[string]map[string]string)}
}

func (s *Store) Get(_ context.Context, hkey, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.hashes[hkey][key]
	if !ok {
		return "", kvstore.ErrNotFound
	}
	return value, nil
}

func (s *Store) Set(_ context.Context, hkey, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	h, ok := s.hashes[hkey]
	if !ok {
		h = make(map[string]string)
		s.hashes[hkey] = h
	}
	h[key] = value
	return nil
}

func (s *Store) GetAll(_ context.Context, hkey string) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]string, len(s.hashes[hkey]))
	for k, v := range s.hashes[hkey] {
		out[k] = v
	}
	return out, nil
}

func (s *Store) Close() error { return nil }
