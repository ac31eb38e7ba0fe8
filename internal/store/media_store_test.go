package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/showroom/internal/db"
	"github.com/vbonduro/showroom/internal/domain"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	d, err := db.OpenForTesting()
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return d
}

// newTestMediaStore returns a store whose clock advances one second per call
// so created_at ordering is deterministic.
func newTestMediaStore(t *testing.T) *MediaStore {
	s := NewMediaStore(openTestDB(t))
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	calls := 0
	s.now = func() time.Time {
		calls++
		return base.Add(time.Duration(calls) * time.Second)
	}
	return s
}

func strPtr(s string) *string { return &s }

func TestMediaStoreCreate(t *testing.T) {
	s := newTestMediaStore(t)
	ctx := context.Background()

	m, err := s.Create(ctx, "https://cdn/a.jpg", domain.MediaImage, nil, "media/a.jpg")
	require.NoError(t, err)
	assert.NotEmpty(t, m.ID)
	assert.Equal(t, "https://cdn/a.jpg", m.URL)
	assert.Equal(t, domain.MediaImage, m.Type)
	assert.Nil(t, m.VehicleID)
	assert.Equal(t, "media/a.jpg", m.StorageKey)
	assert.Equal(t, domain.SourceManual, m.Source)
	assert.Equal(t, 0, m.Order)
	assert.False(t, m.CreatedAt.IsZero())
}

func TestMediaStoreCreate_AssignsOrderPerGroup(t *testing.T) {
	s := newTestMediaStore(t)
	ctx := context.Background()

	a, err := s.Create(ctx, "https://cdn/a.jpg", domain.MediaImage, nil, "")
	require.NoError(t, err)
	b, err := s.Create(ctx, "https://cdn/b.jpg", domain.MediaImage, nil, "")
	require.NoError(t, err)
	c, err := s.Create(ctx, "https://cdn/c.jpg", domain.MediaImage, strPtr("v1"), "")
	require.NoError(t, err)

	assert.Equal(t, 0, a.Order)
	assert.Equal(t, 1, b.Order)
	assert.Equal(t, 0, c.Order)
}

func TestMediaStoreGetByID_NotFound(t *testing.T) {
	s := newTestMediaStore(t)

	m, err := s.GetByID(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, m)
}

func TestMediaStoreList_NewestFirst(t *testing.T) {
	s := newTestMediaStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "https://cdn/old.jpg", domain.MediaImage, nil, "")
	require.NoError(t, err)
	_, err = s.Create(ctx, "https://cdn/new.mp4", domain.MediaVideo, strPtr("v1"), "")
	require.NoError(t, err)

	list, err := s.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "https://cdn/new.mp4", list[0].URL)
	assert.Equal(t, domain.MediaVideo, list[0].Type)
	assert.Equal(t, "https://cdn/old.jpg", list[1].URL)
}

func TestMediaStoreListUnattached(t *testing.T) {
	s := newTestMediaStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "https://cdn/one.jpg", domain.MediaImage, nil, "")
	require.NoError(t, err)
	_, err = s.Create(ctx, "https://cdn/paired.jpg", domain.MediaImage, strPtr("v1"), "")
	require.NoError(t, err)
	_, err = s.Create(ctx, "https://cdn/two.jpg", domain.MediaImage, nil, "")
	require.NoError(t, err)

	list, err := s.ListUnattached(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "https://cdn/one.jpg", list[0].URL)
	assert.Equal(t, "https://cdn/two.jpg", list[1].URL)
}

func TestMediaStoreSetVehicle(t *testing.T) {
	s := newTestMediaStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "https://cdn/first.jpg", domain.MediaImage, strPtr("v1"), "")
	require.NoError(t, err)
	m, err := s.Create(ctx, "https://cdn/loose.jpg", domain.MediaImage, nil, "")
	require.NoError(t, err)

	require.NoError(t, s.SetVehicle(ctx, m.ID, strPtr("v1")))

	list, err := s.ListByVehicle(ctx, "v1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "https://cdn/first.jpg", list[0].URL)
	assert.Equal(t, "https://cdn/loose.jpg", list[1].URL)
	assert.Equal(t, 1, list[1].Order)

	unattached, err := s.ListUnattached(ctx)
	require.NoError(t, err)
	assert.Empty(t, unattached)
}

func TestMediaStoreSetVehicle_NotFound(t *testing.T) {
	s := newTestMediaStore(t)

	err := s.SetVehicle(context.Background(), "missing", strPtr("v1"))
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestMediaStoreDetachVehicles(t *testing.T) {
	s := newTestMediaStore(t)
	ctx := context.Background()

	_, err := s.Create(ctx, "https://cdn/a.jpg", domain.MediaImage, strPtr("v1"), "")
	require.NoError(t, err)
	_, err = s.Create(ctx, "https://cdn/b.jpg", domain.MediaImage, strPtr("v2"), "")
	require.NoError(t, err)
	_, err = s.Create(ctx, "https://cdn/c.jpg", domain.MediaImage, strPtr("v3"), "")
	require.NoError(t, err)

	n, err := s.DetachVehicles(ctx, []string{"v1", "v2"})
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	unattached, err := s.ListUnattached(ctx)
	require.NoError(t, err)
	assert.Len(t, unattached, 2)

	n, err = s.DetachVehicles(ctx, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMediaStoreDelete(t *testing.T) {
	s := newTestMediaStore(t)
	ctx := context.Background()

	m, err := s.Create(ctx, "https://cdn/a.jpg", domain.MediaImage, nil, "")
	require.NoError(t, err)

	require.NoError(t, s.Delete(ctx, m.ID))

	got, err := s.GetByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMediaStoreDelete_NotFound(t *testing.T) {
	s := newTestMediaStore(t)

	err := s.Delete(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
