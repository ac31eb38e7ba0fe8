package cache

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is a key-value store holding whole serialized entities. Get returns
// domain.ErrNotFound for a missing key and a domain.ErrStoreUnavailable wrap
// when the backend fails. Set replaces the full value or fails; there are no
// cross-key transactions.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// GetJSON reads key and decodes it into a T.
func GetJSON[T any](ctx context.Context, s Store, key string) (T, error) {
	var v T
	data, err := s.Get(ctx, key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(data, &v); err != nil {
		return v, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return v, nil
}

// SetJSON encodes v and writes it under key with a single Set.
func SetJSON(ctx context.Context, s Store, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, key, data)
}
