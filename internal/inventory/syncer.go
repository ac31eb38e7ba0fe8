package inventory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/vbonduro/showroom/internal/cache"
	"github.com/vbonduro/showroom/internal/domain"
	"github.com/vbonduro/showroom/internal/media"
	"github.com/vbonduro/showroom/internal/metrics"
	"github.com/vbonduro/showroom/internal/tracing"
)

const (
	DefaultTTL            = 5 * time.Minute
	DefaultRefreshTimeout = 30 * time.Second
)

type Options struct {
	TTL            time.Duration
	RefreshTimeout time.Duration
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// Syncer reconciles the upstream feed and the manual media store into the
// cache store.
type Syncer struct {
	feed           Feed
	manual         ManualMedia
	store          cache.Store
	ttl            time.Duration
	refreshTimeout time.Duration
	metrics        *metrics.Metrics
	logger         *slog.Logger
	now            func() time.Time

	group singleflight.Group

	mu          sync.RWMutex
	lastGood    *Snapshot
	lastRefresh time.Time
}

func NewSyncer(feed Feed, manual ManualMedia, store cache.Store, opts Options) *Syncer {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.RefreshTimeout <= 0 {
		opts.RefreshTimeout = DefaultRefreshTimeout
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Syncer{
		feed:           feed,
		manual:         manual,
		store:          store,
		ttl:            opts.TTL,
		refreshTimeout: opts.RefreshTimeout,
		metrics:        opts.Metrics,
		logger:         opts.Logger,
		now:            time.Now,
	}
}

// Load returns the current snapshot. Within the TTL it is read from the cache
// store; otherwise the feed is fetched. Any failure yields a Stale result
// carrying the last known-good snapshot, so Load never fails outright.
func (s *Syncer) Load(ctx context.Context) Result {
	if s.fresh() {
		snap, err := s.readCache(ctx)
		if err == nil {
			s.remember(snap, false)
			return Result{Snapshot: snap, Freshness: Cached}
		}
		s.logger.Warn("failed to read cached inventory", "error", err)
		return s.staleResult(Snapshot{}, false, err)
	}

	snap, err := s.Refresh(ctx)
	if err == nil {
		return Result{Snapshot: snap, Freshness: Fresh}
	}
	s.logger.Warn("inventory refresh failed, serving last known snapshot", "error", err)

	cached, cerr := s.readCache(ctx)
	if cerr != nil && !errors.Is(cerr, domain.ErrNotFound) {
		s.logger.Warn("failed to read cached inventory", "error", cerr)
	}
	return s.staleResult(cached, cerr == nil, err)
}

// Vehicle returns a single vehicle as last written by a sync.
func (s *Syncer) Vehicle(ctx context.Context, id string) (*domain.Vehicle, error) {
	if !s.fresh() {
		res := s.Load(ctx)
		if res.Freshness == Stale && !res.recovered {
			return nil, fmt.Errorf("failed to load vehicle %s: %w", id, res.Err)
		}
		return findVehicle(res.Vehicles, id)
	}

	v, err := cache.GetJSON[domain.Vehicle](ctx, s.store, cache.VehicleKey(id))
	switch {
	case err == nil:
		return &v, nil
	case errors.Is(err, domain.ErrNotFound):
		return nil, fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}

	s.logger.Warn("failed to read cached vehicle", "vehicle_id", id, "error", err)
	if last, ok := s.lastGoodSnapshot(); ok {
		s.metrics.StaleServed()
		return findVehicle(last.Vehicles, id)
	}
	return nil, fmt.Errorf("failed to load vehicle %s: %w", id, err)
}

// Refresh fetches the feed and writes whatever changed. Concurrent callers
// share one fetch. The fetch is not cancelled when the caller goes away; it
// is bounded by the refresh timeout instead.
func (s *Syncer) Refresh(ctx context.Context) (Snapshot, error) {
	ch := s.group.DoChan("refresh", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.refreshTimeout)
		defer cancel()
		return s.refresh(rctx)
	})

	select {
	case <-ctx.Done():
		return Snapshot{}, fmt.Errorf("inventory refresh abandoned: %w", ctx.Err())
	case r := <-ch:
		if r.Err != nil {
			return Snapshot{}, r.Err
		}
		return r.Val.(Snapshot), nil
	}
}

// RefreshMedia rewrites the cached manual media snapshot.
func (s *Syncer) RefreshMedia(ctx context.Context) error {
	custom, err := s.listManual(ctx)
	if err != nil {
		return err
	}
	if err := s.writeCustomMedia(ctx, custom); err != nil {
		return err
	}

	s.mu.Lock()
	if s.lastGood != nil {
		next := *s.lastGood
		next.CustomMedia = custom
		s.lastGood = &next
	}
	s.mu.Unlock()
	return nil
}

// Remove evicts a vehicle from the cached inventory and returns its manual
// media to the unattached pool. The next refresh writes the vehicle back if
// the feed still lists it.
func (s *Syncer) Remove(ctx context.Context, id string) error {
	idx, err := cache.GetJSON[index](ctx, s.store, cache.InventoryIndexKey)
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("failed to load inventory index: %w", err)
	}
	if !slices.Contains(idx.IDs, id) {
		return fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
	}

	idx.IDs = slices.DeleteFunc(idx.IDs, func(v string) bool { return v == id })
	idx.Fingerprint = 0
	if err := cache.SetJSON(ctx, s.store, cache.InventoryIndexKey, idx); err != nil {
		return fmt.Errorf("failed to save inventory index: %w", err)
	}
	if err := s.store.Delete(ctx, cache.VehicleKey(id)); err != nil {
		s.logger.Error("failed to delete cached vehicle", "vehicle_id", id, "error", err)
	}
	if err := s.detach(ctx, []string{id}); err != nil {
		return err
	}

	s.mu.Lock()
	if s.lastGood != nil {
		next := *s.lastGood
		next.Vehicles = slices.DeleteFunc(slices.Clone(next.Vehicles), func(v domain.Vehicle) bool { return v.ID == id })
		s.lastGood = &next
	}
	s.mu.Unlock()

	s.logger.Info("vehicle removed from inventory", "vehicle_id", id)
	return s.RefreshMedia(ctx)
}

func (s *Syncer) refresh(ctx context.Context) (Snapshot, error) {
	ctx, span := tracing.Tracer().Start(ctx, "inventory.Refresh")
	defer span.End()

	start := time.Now()
	snap, outcome, err := s.sync(ctx)
	s.metrics.ObserveRefresh(outcome, time.Since(start))
	span.SetAttributes(attribute.String("inventory.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh inventory")
		return Snapshot{}, err
	}
	span.SetAttributes(attribute.Int("inventory.vehicles", len(snap.Vehicles)))
	return snap, nil
}

func (s *Syncer) sync(ctx context.Context) (Snapshot, string, error) {
	fetched, err := s.feed.Fetch(ctx)
	if err != nil {
		if !errors.Is(err, domain.ErrUpstreamUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrUpstreamUnavailable, err)
		}
		return Snapshot{}, metrics.RefreshError, fmt.Errorf("failed to fetch inventory: %w", err)
	}

	vehicles := s.normalize(fetched)
	fp, err := fingerprint(vehicles)
	if err != nil {
		return Snapshot{}, metrics.RefreshError, err
	}

	prev, err := cache.GetJSON[index](ctx, s.store, cache.InventoryIndexKey)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Snapshot{}, metrics.RefreshError, fmt.Errorf("failed to load inventory index: %w", err)
	}
	hasPrev := err == nil

	outcome := metrics.RefreshUnchanged
	syncedAt := prev.SyncedAt
	if !hasPrev || prev.Fingerprint != fp {
		outcome = metrics.RefreshFresh
		syncedAt = s.now().UTC()
		if err := s.writeVehicles(ctx, prev, vehicles, fp, syncedAt); err != nil {
			return Snapshot{}, metrics.RefreshError, err
		}
	}

	custom, err := s.listManual(ctx)
	if err != nil {
		return Snapshot{}, metrics.RefreshError, err
	}
	if err := s.writeCustomMedia(ctx, custom); err != nil {
		return Snapshot{}, metrics.RefreshError, err
	}

	snap := Snapshot{Vehicles: vehicles, CustomMedia: custom, SyncedAt: syncedAt}
	s.remember(snap, true)

	s.logger.Info("inventory synced", "vehicles", len(vehicles), "outcome", outcome)
	return snap, outcome, nil
}

// writeVehicles writes every vehicle before the index that lists them, then
// drops the vehicles the new snapshot no longer contains.
func (s *Syncer) writeVehicles(ctx context.Context, prev index, vehicles []domain.Vehicle, fp uint64, syncedAt time.Time) error {
	ids := make([]string, 0, len(vehicles))
	for _, v := range vehicles {
		if err := cache.SetJSON(ctx, s.store, cache.VehicleKey(v.ID), v); err != nil {
			return fmt.Errorf("failed to save vehicle %s: %w", v.ID, err)
		}
		ids = append(ids, v.ID)
	}

	next := index{IDs: ids, Fingerprint: fp, SyncedAt: syncedAt}
	if err := cache.SetJSON(ctx, s.store, cache.InventoryIndexKey, next); err != nil {
		return fmt.Errorf("failed to save inventory index: %w", err)
	}

	var removed []string
	for _, id := range prev.IDs {
		if !slices.Contains(ids, id) {
			removed = append(removed, id)
		}
	}
	for _, id := range removed {
		if err := s.store.Delete(ctx, cache.VehicleKey(id)); err != nil {
			s.logger.Error("failed to delete removed vehicle", "vehicle_id", id, "error", err)
		}
	}
	if len(removed) > 0 {
		s.logger.Info("vehicles removed from feed", "count", len(removed))
		return s.detach(ctx, removed)
	}
	return nil
}

func (s *Syncer) detach(ctx context.Context, vehicleIDs []string) error {
	n, err := s.manual.DetachVehicles(ctx, vehicleIDs)
	if err != nil {
		return fmt.Errorf("failed to detach media: %w", err)
	}
	if n > 0 {
		s.logger.Info("media detached from removed vehicles", "media", n, "vehicles", len(vehicleIDs))
	}
	return nil
}

// writeCustomMedia skips the write when the cached bytes already match.
func (s *Syncer) writeCustomMedia(ctx context.Context, custom []domain.Media) error {
	data, err := json.Marshal(custom)
	if err != nil {
		return fmt.Errorf("failed to encode custom media: %w", err)
	}
	current, err := s.store.Get(ctx, cache.CustomMediaKey)
	if err == nil && bytes.Equal(current, data) {
		return nil
	}
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("failed to load custom media: %w", err)
	}
	if err := s.store.Set(ctx, cache.CustomMediaKey, data); err != nil {
		return fmt.Errorf("failed to save custom media: %w", err)
	}
	return nil
}

func (s *Syncer) listManual(ctx context.Context) ([]domain.Media, error) {
	records, err := s.manual.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list manual media: %w", err)
	}
	custom := make([]domain.Media, 0, len(records))
	for _, m := range records {
		custom = append(custom, *m)
	}
	return custom, nil
}

// readCache assembles a snapshot from the cache store. Vehicles listed in the
// index whose key is missing are skipped.
func (s *Syncer) readCache(ctx context.Context) (Snapshot, error) {
	idx, err := cache.GetJSON[index](ctx, s.store, cache.InventoryIndexKey)
	if err != nil {
		return Snapshot{}, fmt.Errorf("failed to load inventory index: %w", err)
	}

	vehicles := make([]domain.Vehicle, 0, len(idx.IDs))
	for _, id := range idx.IDs {
		v, err := cache.GetJSON[domain.Vehicle](ctx, s.store, cache.VehicleKey(id))
		if errors.Is(err, domain.ErrNotFound) {
			s.logger.Warn("indexed vehicle missing from cache", "vehicle_id", id)
			continue
		}
		if err != nil {
			return Snapshot{}, fmt.Errorf("failed to load vehicle %s: %w", id, err)
		}
		vehicles = append(vehicles, v)
	}

	custom, err := cache.GetJSON[[]domain.Media](ctx, s.store, cache.CustomMediaKey)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		return Snapshot{}, fmt.Errorf("failed to load custom media: %w", err)
	}
	if custom == nil {
		custom = []domain.Media{}
	}

	return Snapshot{Vehicles: vehicles, CustomMedia: custom, SyncedAt: idx.SyncedAt}, nil
}

// staleResult prefers the snapshot recovered from the cache store, then the
// in-process copy, then an empty snapshot.
func (s *Syncer) staleResult(cached Snapshot, haveCached bool, cause error) Result {
	s.metrics.StaleServed()
	snap, recovered := cached, haveCached
	if !haveCached {
		if last, ok := s.lastGoodSnapshot(); ok {
			snap, recovered = last, true
		} else {
			snap = Snapshot{Vehicles: []domain.Vehicle{}, CustomMedia: []domain.Media{}}
		}
	}
	return Result{Snapshot: snap, Freshness: Stale, Err: cause, recovered: recovered}
}

func (s *Syncer) normalize(fetched []domain.Vehicle) []domain.Vehicle {
	seen := make(map[string]struct{}, len(fetched))
	vehicles := make([]domain.Vehicle, 0, len(fetched))
	for _, v := range fetched {
		if v.ID == "" {
			s.logger.Warn("skipping vehicle without id", "stock_number", v.StockNumber)
			continue
		}
		if _, dup := seen[v.ID]; dup {
			s.logger.Warn("skipping duplicate vehicle", "vehicle_id", v.ID)
			continue
		}
		seen[v.ID] = struct{}{}

		if len(v.Media) == 0 {
			v.Media = media.FromURLs(v.ID, v.Images)
		} else {
			v.Media = slices.Clone(v.Media)
			for i := range v.Media {
				if v.Media[i].Source == "" {
					v.Media[i].Source = domain.SourceFeed
				}
				if v.Media[i].VehicleID == nil {
					id := v.ID
					v.Media[i].VehicleID = &id
				}
			}
		}
		if v.Images == nil {
			v.Images = []string{}
		}
		vehicles = append(vehicles, v)
	}
	return vehicles
}

func (s *Syncer) fresh() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !s.lastRefresh.IsZero() && s.now().Sub(s.lastRefresh) < s.ttl
}

func (s *Syncer) remember(snap Snapshot, refreshed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastGood = &snap
	if refreshed {
		s.lastRefresh = s.now()
	}
}

func (s *Syncer) lastGoodSnapshot() (Snapshot, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastGood == nil {
		return Snapshot{}, false
	}
	return *s.lastGood, true
}

func fingerprint(vehicles []domain.Vehicle) (uint64, error) {
	data, err := json.Marshal(vehicles)
	if err != nil {
		return 0, fmt.Errorf("failed to encode inventory: %w", err)
	}
	return xxhash.Sum64(data), nil
}

func findVehicle(vehicles []domain.Vehicle, id string) (*domain.Vehicle, error) {
	for _, v := range vehicles {
		if v.ID == id {
			return &v, nil
		}
	}
	return nil, fmt.Errorf("vehicle %s: %w", id, domain.ErrNotFound)
}
