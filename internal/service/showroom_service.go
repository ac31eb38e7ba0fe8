package service

import (
	"bytes"
	"cmp"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vbonduro/showroom/internal/blobstore"
	"github.com/vbonduro/showroom/internal/domain"
	"github.com/vbonduro/showroom/internal/inventory"
	"github.com/vbonduro/showroom/internal/media"
	"github.com/vbonduro/showroom/internal/metrics"
)

// mediaRepository is the subset of store.MediaStore that ShowroomService requires.
type mediaRepository interface {
	Create(ctx context.Context, url string, mediaType domain.MediaType, vehicleID *string, storageKey string) (*domain.Media, error)
	GetByID(ctx context.Context, id string) (*domain.Media, error)
	List(ctx context.Context) ([]*domain.Media, error)
	ListUnattached(ctx context.Context) ([]*domain.Media, error)
	ListByVehicle(ctx context.Context, vehicleID string) ([]*domain.Media, error)
	SetVehicle(ctx context.Context, id string, vehicleID *string) error
	Delete(ctx context.Context, id string) error
}

// inventorySource is the subset of inventory.Syncer that ShowroomService requires.
type inventorySource interface {
	Load(ctx context.Context) inventory.Result
	Vehicle(ctx context.Context, id string) (*domain.Vehicle, error)
	Refresh(ctx context.Context) (inventory.Snapshot, error)
	RefreshMedia(ctx context.Context) error
	Remove(ctx context.Context, id string) error
}

type ShowroomService struct {
	inventory  inventorySource
	mediaStore mediaRepository
	blobs      blobstore.BlobStore
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

func NewShowroomService(
	inv inventorySource,
	mediaStore mediaRepository,
	blobs blobstore.BlobStore,
	m *metrics.Metrics,
	logger *slog.Logger,
) *ShowroomService {
	return &ShowroomService{
		inventory:  inv,
		mediaStore: mediaStore,
		blobs:      blobs,
		metrics:    m,
		logger:     logger,
	}
}

// ShowroomData is the combined inventory view. Error is set when the data
// could not be refreshed and an older snapshot (or nothing) is served.
type ShowroomData struct {
	Vehicles    []domain.Vehicle `json:"vehicles"`
	CustomMedia []domain.Media   `json:"customMedia"`
	FromCache   bool             `json:"fromCache"`
	Error       *string          `json:"error"`
}

// GetShowroomData never fails; failures are reported in ShowroomData.Error.
func (s *ShowroomService) GetShowroomData(ctx context.Context) ShowroomData {
	res := s.inventory.Load(ctx)

	data := ShowroomData{
		Vehicles:    resolveAll(res.Vehicles, res.CustomMedia),
		CustomMedia: res.CustomMedia,
		FromCache:   res.FromCache(),
	}
	if data.CustomMedia == nil {
		data.CustomMedia = []domain.Media{}
	}
	if res.Err != nil {
		s.logger.Warn("serving stale showroom data", "freshness", res.Freshness.String(), "error", res.Err)
		msg := "inventory is temporarily unavailable"
		data.Error = &msg
	}
	return data
}

// GetVehicles returns the resolved vehicle list, stale when necessary.
func (s *ShowroomService) GetVehicles(ctx context.Context) []domain.Vehicle {
	res := s.inventory.Load(ctx)
	return resolveAll(res.Vehicles, res.CustomMedia)
}

// GetVehicle returns the vehicle with stock imagery removed and its paired
// manual media appended.
func (s *ShowroomService) GetVehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	v, err := s.inventory.Vehicle(ctx, id)
	if err != nil {
		return nil, err
	}

	paired, err := s.mediaStore.ListByVehicle(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to list media for vehicle %s: %w", id, err)
	}

	resolved := resolve(*v, deref(paired))
	return &resolved, nil
}

func (s *ShowroomService) DeleteVehicle(ctx context.Context, id string) error {
	if err := s.inventory.Remove(ctx, id); err != nil {
		return fmt.Errorf("failed to remove vehicle: %w", err)
	}
	return nil
}

type RefreshSummary struct {
	Vehicles int       `json:"vehicles"`
	SyncedAt time.Time `json:"syncedAt"`
}

// Refresh forces an upstream fetch regardless of the cache TTL.
func (s *ShowroomService) Refresh(ctx context.Context) (*RefreshSummary, error) {
	snap, err := s.inventory.Refresh(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh inventory: %w", err)
	}
	return &RefreshSummary{Vehicles: len(snap.Vehicles), SyncedAt: snap.SyncedAt}, nil
}

// ListMedia returns every manual media record, newest first.
func (s *ShowroomService) ListMedia(ctx context.Context) ([]*domain.Media, error) {
	list, err := s.mediaStore.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list media: %w", err)
	}
	return nonNil(list), nil
}

// GetUnattachedMedia returns the manual media not paired with any vehicle.
func (s *ShowroomService) GetUnattachedMedia(ctx context.Context) ([]*domain.Media, error) {
	list, err := s.mediaStore.ListUnattached(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unattached media: %w", err)
	}
	return nonNil(list), nil
}

// CreateMediaRequest describes new manual media. When Data is set the bytes
// are stored in the blob store and URL and Type are derived from MimeType.
type CreateMediaRequest struct {
	URL       string
	Type      domain.MediaType
	VehicleID *string
	Data      []byte
	MimeType  string
}

func (s *ShowroomService) CreateMedia(ctx context.Context, req CreateMediaRequest) (*domain.Media, error) {
	if len(req.Data) > 0 {
		req.Type = mediaTypeFor(req.MimeType)
		if req.Type == "" {
			return nil, fmt.Errorf("unsupported media type %q: %w", req.MimeType, domain.ErrInvalidInput)
		}
	}
	if req.Type != domain.MediaImage && req.Type != domain.MediaVideo {
		return nil, fmt.Errorf("media type %q: %w", req.Type, domain.ErrInvalidInput)
	}
	if len(req.Data) == 0 && strings.TrimSpace(req.URL) == "" {
		return nil, fmt.Errorf("media url required: %w", domain.ErrInvalidInput)
	}
	if err := s.checkVehicle(ctx, req.VehicleID); err != nil {
		return nil, err
	}

	var storageKey string
	if len(req.Data) > 0 {
		storageKey = blobstore.Key(req.MimeType, "media", uuid.NewString())
		url, err := s.blobs.Put(ctx, storageKey, req.MimeType, bytes.NewReader(req.Data))
		if err != nil {
			return nil, fmt.Errorf("failed to store media: %w", err)
		}
		s.logger.Debug("media saved", "storage_key", storageKey, "bytes", len(req.Data))
		req.URL = url
	}

	m, err := s.mediaStore.Create(ctx, req.URL, req.Type, req.VehicleID, storageKey)
	if err != nil {
		if storageKey != "" {
			if derr := s.blobs.Delete(ctx, storageKey); derr != nil {
				s.logger.Error("failed to roll back media blob", "storage_key", storageKey, "error", derr)
			}
		}
		return nil, fmt.Errorf("failed to create media record: %w", err)
	}

	s.refreshMedia(ctx)
	s.logger.Info("media created", "media_id", m.ID, "type", m.Type, "attached", m.VehicleID != nil)
	return m, nil
}

// AttachMedia pairs media with a vehicle, or returns it to the unattached
// pool when vehicleID is nil.
func (s *ShowroomService) AttachMedia(ctx context.Context, mediaID string, vehicleID *string) (*domain.Media, error) {
	if _, err := s.getMedia(ctx, mediaID); err != nil {
		return nil, err
	}
	if err := s.checkVehicle(ctx, vehicleID); err != nil {
		return nil, err
	}

	if err := s.mediaStore.SetVehicle(ctx, mediaID, vehicleID); err != nil {
		return nil, fmt.Errorf("failed to attach media: %w", err)
	}
	s.refreshMedia(ctx)
	return s.getMedia(ctx, mediaID)
}

// DeleteMedia removes the media record. Failing to delete the stored bytes is
// logged and does not fail the call.
func (s *ShowroomService) DeleteMedia(ctx context.Context, mediaID string) error {
	m, err := s.getMedia(ctx, mediaID)
	if err != nil {
		return err
	}

	if err := s.mediaStore.Delete(ctx, mediaID); err != nil {
		return fmt.Errorf("failed to delete media record: %w", err)
	}

	if m.StorageKey != "" {
		if err := s.blobs.Delete(ctx, m.StorageKey); err != nil {
			s.metrics.BlobDeleteFailed()
			s.logger.Error("failed to delete media file", "media_id", mediaID, "storage_key", m.StorageKey, "error", err)
		}
	}

	s.refreshMedia(ctx)
	s.logger.Info("media deleted", "media_id", mediaID)
	return nil
}

// ReorderMedia is not supported and touches no state.
func (s *ShowroomService) ReorderMedia(_ context.Context, _ []string) error {
	return fmt.Errorf("media reorder: %w", domain.ErrNotImplemented)
}

func (s *ShowroomService) getMedia(ctx context.Context, id string) (*domain.Media, error) {
	m, err := s.mediaStore.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get media: %w", err)
	}
	if m == nil {
		return nil, fmt.Errorf("media %s: %w", id, domain.ErrNotFound)
	}
	return m, nil
}

func (s *ShowroomService) checkVehicle(ctx context.Context, vehicleID *string) error {
	if vehicleID == nil {
		return nil
	}
	if *vehicleID == "" {
		return fmt.Errorf("vehicle id empty: %w", domain.ErrInvalidInput)
	}
	if _, err := s.inventory.Vehicle(ctx, *vehicleID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return err
		}
		return fmt.Errorf("failed to check vehicle: %w", err)
	}
	return nil
}

// refreshMedia keeps the cached manual media snapshot current. The relational
// store already holds the change, so a failure here is only logged.
func (s *ShowroomService) refreshMedia(ctx context.Context) {
	if err := s.inventory.RefreshMedia(ctx); err != nil {
		s.logger.Error("failed to refresh cached media", "error", err)
	}
}

func resolveAll(vehicles []domain.Vehicle, custom []domain.Media) []domain.Vehicle {
	byVehicle := make(map[string][]domain.Media)
	for _, m := range custom {
		if m.VehicleID != nil {
			byVehicle[*m.VehicleID] = append(byVehicle[*m.VehicleID], m)
		}
	}

	for _, group := range byVehicle {
		slices.SortStableFunc(group, func(a, b domain.Media) int { return cmp.Compare(a.Order, b.Order) })
	}

	out := make([]domain.Vehicle, 0, len(vehicles))
	for _, v := range vehicles {
		out = append(out, resolve(v, byVehicle[v.ID]))
	}
	return out
}

func resolve(v domain.Vehicle, paired []domain.Media) domain.Vehicle {
	v.Media = media.Resolve(v.Media, paired)
	v.Images = media.Images(v.Media)
	return v
}

func mediaTypeFor(mimeType string) domain.MediaType {
	switch {
	case strings.HasPrefix(mimeType, "image/"):
		return domain.MediaImage
	case strings.HasPrefix(mimeType, "video/"):
		return domain.MediaVideo
	default:
		return ""
	}
}

func deref(list []*domain.Media) []domain.Media {
	out := make([]domain.Media, 0, len(list))
	for _, m := range list {
		out = append(out, *m)
	}
	return out
}

func nonNil(list []*domain.Media) []*domain.Media {
	if list == nil {
		return []*domain.Media{}
	}
	return list
}
