package lru

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/showroom/internal/cache/memory"
	"github.com/vbonduro/showroom/internal/domain"
)

// countingStore counts Get calls that reach the backing store and can be made
// to fail.
type countingStore struct {
	*memory.MemoryStore
	mu     sync.Mutex
	gets   int
	setErr error
}

func (c *countingStore) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	c.gets++
	c.mu.Unlock()
	return c.MemoryStore.Get(ctx, key)
}

func (c *countingStore) Set(ctx context.Context, key string, value []byte) error {
	if c.setErr != nil {
		return c.setErr
	}
	return c.MemoryStore.Set(ctx, key, value)
}

func newCounting() *countingStore {
	return &countingStore{MemoryStore: memory.NewMemoryStore()}
}

func TestLRUServesRepeatReadsInProcess(t *testing.T) {
	backing := newCounting()
	ctx := context.Background()
	require.NoError(t, backing.MemoryStore.Set(ctx, "k", []byte("v")))

	s, err := New(backing, 8)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		got, err := s.Get(ctx, "k")
		require.NoError(t, err)
		assert.Equal(t, []byte("v"), got)
	}
	assert.Equal(t, 1, backing.gets)
}

func TestLRUWriteThrough(t *testing.T) {
	backing := newCounting()
	ctx := context.Background()
	s, err := New(backing, 8)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))

	got, err := backing.MemoryStore.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)

	got, err = s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), got)
	assert.Zero(t, backing.gets)
}

func TestLRUFailedSetEvicts(t *testing.T) {
	backing := newCounting()
	ctx := context.Background()
	s, err := New(backing, 8)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "k", []byte("old")))
	backing.setErr = errors.New("boom")

	require.Error(t, s.Set(ctx, "k", []byte("new")))

	got, err := s.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("old"), got)
	assert.Equal(t, 1, backing.gets)
}

func TestLRUDelete(t *testing.T) {
	backing := newCounting()
	ctx := context.Background()
	s, err := New(backing, 8)
	require.NoError(t, err)

	require.NoError(t, s.Set(ctx, "k", []byte("v")))
	require.NoError(t, s.Delete(ctx, "k"))

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
