package companion

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/vbonduro/showroom/internal/blobstore"
	"github.com/vbonduro/showroom/internal/cache"
	"github.com/vbonduro/showroom/internal/domain"
	"github.com/vbonduro/showroom/internal/metrics"
	"github.com/vbonduro/showroom/internal/tracing"
)

// identifiers become part of blob keys, so only a conservative charset is
// accepted.
var identPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]{0,127}$`)

type RegisterRequest struct {
	UploadID         string // optional; generated when empty
	StockNumber      string
	OriginalFilename string
	MimeType         string
	ImageIndex       *int
	Data             []byte
}

type Service struct {
	store   cache.Store
	blobs   blobstore.BlobStore
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(store cache.Store, blobs blobstore.BlobStore, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		store:   store,
		blobs:   blobs,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Register stores the original image and records the upload as pending.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (*domain.WebCompanionUpload, error) {
	if !identPattern.MatchString(req.StockNumber) {
		return nil, fmt.Errorf("stock number %q: %w", req.StockNumber, domain.ErrInvalidInput)
	}
	if len(req.Data) == 0 {
		return nil, fmt.Errorf("empty upload: %w", domain.ErrInvalidInput)
	}

	id := req.UploadID
	if id == "" {
		id = uuid.NewString()
	} else if !identPattern.MatchString(id) {
		return nil, fmt.Errorf("upload id %q: %w", id, domain.ErrInvalidInput)
	}

	_, err := s.store.Get(ctx, cache.UploadKey(id))
	switch {
	case err == nil:
		return nil, fmt.Errorf("upload %s already registered: %w", id, domain.ErrConflict)
	case !errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("failed to check upload %s: %w", id, err)
	}

	storageKey := blobstore.Key(req.MimeType, "web-companion", req.StockNumber, id)
	url, err := s.blobs.Put(ctx, storageKey, req.MimeType, bytes.NewReader(req.Data))
	if err != nil {
		return nil, fmt.Errorf("failed to store upload %s: %w", id, err)
	}
	s.logger.Debug("companion upload stored", "upload_id", id, "storage_key", storageKey)

	upload := domain.WebCompanionUpload{
		ID:               id,
		StockNumber:      req.StockNumber,
		OriginalURL:      url,
		StorageKey:       storageKey,
		Status:           domain.UploadPending,
		CreatedAt:        s.now().UTC(),
		OriginalFilename: req.OriginalFilename,
		Size:             int64(len(req.Data)),
		ImageIndex:       req.ImageIndex,
	}
	if err := cache.SetJSON(ctx, s.store, cache.UploadKey(id), upload); err != nil {
		if derr := s.blobs.Delete(ctx, storageKey); derr != nil {
			s.logger.Error("failed to roll back upload blob", "upload_id", id, "storage_key", storageKey, "error", derr)
		}
		return nil, fmt.Errorf("failed to record upload %s: %w", id, err)
	}
	s.metrics.UploadTransition(string(domain.UploadPending))

	// The upload record is the source of truth; a lost index entry only hides
	// the upload from ListByStock.
	if err := s.indexUpload(ctx, req.StockNumber, id); err != nil {
		s.logger.Error("failed to index upload", "upload_id", id, "stock_number", req.StockNumber, "error", err)
	}

	s.logger.Info("companion upload registered", "upload_id", id, "stock_number", req.StockNumber, "bytes", len(req.Data))
	return &upload, nil
}

// Complete records the processor's outcome for an upload. It reads the current
// record, merges p with Apply and writes the result back with a single set.
// Concurrent completions for the same id are last-write-wins.
func (s *Service) Complete(ctx context.Context, uploadID string, p Patch) (*domain.WebCompanionUpload, error) {
	ctx, span := tracing.Tracer().Start(ctx, "companion.Complete")
	defer span.End()
	span.SetAttributes(attribute.String("upload.id", uploadID))

	upload, err := s.complete(ctx, uploadID, p)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "complete upload")
		return nil, err
	}
	span.SetAttributes(attribute.String("upload.status", string(upload.Status)))
	return upload, nil
}

func (s *Service) complete(ctx context.Context, uploadID string, p Patch) (*domain.WebCompanionUpload, error) {
	if uploadID == "" {
		return nil, fmt.Errorf("upload id required: %w", domain.ErrInvalidInput)
	}

	prev, err := cache.GetJSON[domain.WebCompanionUpload](ctx, s.store, cache.UploadKey(uploadID))
	if err != nil {
		return nil, fmt.Errorf("failed to load upload %s: %w", uploadID, err)
	}

	next, err := Apply(prev, p, s.now())
	if err != nil {
		return nil, err
	}

	if err := cache.SetJSON(ctx, s.store, cache.UploadKey(uploadID), next); err != nil {
		return nil, fmt.Errorf("failed to save upload %s: %w", uploadID, err)
	}
	s.metrics.UploadTransition(string(next.Status))

	s.logger.Info("companion upload completed",
		"upload_id", uploadID,
		"previous_status", prev.Status,
		"status", next.Status,
		"error_message", next.Error,
	)
	return &next, nil
}

func (s *Service) Get(ctx context.Context, uploadID string) (*domain.WebCompanionUpload, error) {
	if uploadID == "" {
		return nil, fmt.Errorf("upload id required: %w", domain.ErrInvalidInput)
	}
	upload, err := cache.GetJSON[domain.WebCompanionUpload](ctx, s.store, cache.UploadKey(uploadID))
	if err != nil {
		return nil, fmt.Errorf("failed to load upload %s: %w", uploadID, err)
	}
	return &upload, nil
}

// ListByStock returns the uploads registered for a stock number in
// registration order. Index entries whose record is missing are skipped.
func (s *Service) ListByStock(ctx context.Context, stockNumber string) ([]*domain.WebCompanionUpload, error) {
	if stockNumber == "" {
		return nil, fmt.Errorf("stock number required: %w", domain.ErrInvalidInput)
	}

	ids, err := s.stockIndex(ctx, stockNumber)
	if err != nil {
		return nil, err
	}

	uploads := make([]*domain.WebCompanionUpload, 0, len(ids))
	for _, id := range ids {
		upload, err := cache.GetJSON[domain.WebCompanionUpload](ctx, s.store, cache.UploadKey(id))
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("indexed upload missing", "upload_id", id, "stock_number", stockNumber)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to load upload %s: %w", id, err)
		}
		uploads = append(uploads, &upload)
	}
	return uploads, nil
}

func (s *Service) stockIndex(ctx context.Context, stockNumber string) ([]string, error) {
	ids, err := cache.GetJSON[[]string](ctx, s.store, cache.UploadStockKey(stockNumber))
	if errors.Is(err, domain.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load upload index for %s: %w", stockNumber, err)
	}
	return ids, nil
}

func (s *Service) indexUpload(ctx context.Context, stockNumber, id string) error {
	ids, err := s.stockIndex(ctx, stockNumber)
	if err != nil {
		return err
	}
	if slices.Contains(ids, id) {
		return nil
	}
	return cache.SetJSON(ctx, s.store, cache.UploadStockKey(stockNumber), append(ids, id))
}
