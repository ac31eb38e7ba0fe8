package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/showroom/internal/domain"
)

const mediaColumns = `id, url, type, vehicle_id, display_order, storage_key, created_at`

// MediaStore persists manually added media. Rows with a NULL vehicle_id are
// unattached.
type MediaStore struct {
	db  *sql.DB
	now func() time.Time
}

func NewMediaStore(db *sql.DB) *MediaStore {
	return &MediaStore{db: db, now: time.Now}
}

func (s *MediaStore) Create(ctx context.Context, url string, mediaType domain.MediaType, vehicleID *string, storageKey string) (*domain.Media, error) {
	order, err := s.nextOrder(ctx, vehicleID)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO media (id, url, type, vehicle_id, display_order, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, id, url, string(mediaType), vehicleID, order, storageKey, s.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to create media: %w", err)
	}

	return s.GetByID(ctx, id)
}

func (s *MediaStore) GetByID(ctx context.Context, id string) (*domain.Media, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+mediaColumns+` FROM media WHERE id = ?`, id)
	m, err := scanMedia(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	return m, nil
}

// List returns every media record, newest first.
func (s *MediaStore) List(ctx context.Context) ([]*domain.Media, error) {
	return s.query(ctx, `SELECT `+mediaColumns+` FROM media ORDER BY created_at DESC, id ASC`)
}

// ListUnattached returns media without a vehicle in display order.
func (s *MediaStore) ListUnattached(ctx context.Context) ([]*domain.Media, error) {
	return s.query(ctx, `
		SELECT `+mediaColumns+` FROM media
		WHERE vehicle_id IS NULL ORDER BY display_order ASC, created_at ASC
	`)
}

func (s *MediaStore) ListByVehicle(ctx context.Context, vehicleID string) ([]*domain.Media, error) {
	return s.query(ctx, `
		SELECT `+mediaColumns+` FROM media
		WHERE vehicle_id = ? ORDER BY display_order ASC, created_at ASC
	`, vehicleID)
}

// SetVehicle pairs media with a vehicle, or unpairs it when vehicleID is nil.
// The media moves to the end of its new group.
func (s *MediaStore) SetVehicle(ctx context.Context, id string, vehicleID *string) error {
	order, err := s.nextOrder(ctx, vehicleID)
	if err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE media SET vehicle_id = ?, display_order = ? WHERE id = ?
	`, vehicleID, order, id)
	if err != nil {
		return fmt.Errorf("failed to update media: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("media %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

// DetachVehicles returns every media paired with one of vehicleIDs to the
// unattached pool and reports how many rows moved.
func (s *MediaStore) DetachVehicles(ctx context.Context, vehicleIDs []string) (int64, error) {
	if len(vehicleIDs) == 0 {
		return 0, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(vehicleIDs)), ",")
	args := make([]any, len(vehicleIDs))
	for i, id := range vehicleIDs {
		args[i] = id
	}

	result, err := s.db.ExecContext(ctx, `
		UPDATE media SET vehicle_id = NULL WHERE vehicle_id IN (`+placeholders+`)
	`, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to detach media: %w", err)
	}
	return result.RowsAffected()
}

func (s *MediaStore) Delete(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM media WHERE id = ?
	`, id)
	if err != nil {
		return fmt.Errorf("failed to delete media: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return fmt.Errorf("media %s: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (s *MediaStore) nextOrder(ctx context.Context, vehicleID *string) (int, error) {
	var next int
	var err error
	if vehicleID == nil {
		err = s.db.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(display_order) + 1, 0) FROM media WHERE vehicle_id IS NULL
		`).Scan(&next)
	} else {
		err = s.db.QueryRowContext(ctx, `
			SELECT COALESCE(MAX(display_order) + 1, 0) FROM media WHERE vehicle_id = ?
		`, *vehicleID).Scan(&next)
	}
	if err != nil {
		return 0, fmt.Errorf("failed to compute display order: %w", err)
	}
	return next, nil
}

func (s *MediaStore) query(ctx context.Context, query string, args ...any) ([]*domain.Media, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	defer func() {
		if err := rows.Close(); err != nil {
			slog.Error("failed to close rows", "error", err)
		}
	}()

	var media []*domain.Media
	for rows.Next() {
		m, err := scanMedia(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan media: %w", err)
		}
		media = append(media, m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating media: %w", err)
	}

	return media, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanMedia(row scanner) (*domain.Media, error) {
	m := &domain.Media{Source: domain.SourceManual}
	var mediaType string
	var vehicleID sql.NullString
	if err := row.Scan(&m.ID, &m.URL, &mediaType, &vehicleID, &m.Order, &m.StorageKey, &m.CreatedAt); err != nil {
		return nil, err
	}
	m.Type = domain.MediaType(mediaType)
	if vehicleID.Valid {
		v := vehicleID.String
		m.VehicleID = &v
	}
	return m, nil
}
