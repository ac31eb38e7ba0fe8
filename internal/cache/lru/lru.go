package lru

import (
	"context"
	"errors"

	golru "github.com/hashicorp/golang-lru/v2"

	"github.com/vbonduro/showroom/internal/cache"
	"github.com/vbonduro/showroom/internal/domain"
)

const defaultSize = 1024

// Store is a read-through cache.Store decorator that keeps recently read
// values in process. Writes go to the backing store first and only update the
// LRU once they succeed, so the LRU never holds a value the backing store
// rejected.
type Store struct {
	next    cache.Store
	entries *golru.Cache[string, []byte]
}

func New(next cache.Store, size int) (*Store, error) {
	if size <= 0 {
		size = defaultSize
	}
	entries, err := golru.New[string, []byte](size)
	if err != nil {
		return nil, err
	}
	return &Store{next: next, entries: entries}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := s.entries.Get(key); ok {
		return clone(v), nil
	}
	v, err := s.next.Get(ctx, key)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			s.entries.Remove(key)
		}
		return nil, err
	}
	s.entries.Add(key, clone(v))
	return v, nil
}

func (s *Store) Set(ctx context.Context, key string, value []byte) error {
	if err := s.next.Set(ctx, key, value); err != nil {
		// The write may or may not have landed; drop our copy so the next read
		// goes to the backing store.
		s.entries.Remove(key)
		return err
	}
	s.entries.Add(key, clone(value))
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	s.entries.Remove(key)
	return s.next.Delete(ctx, key)
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}
