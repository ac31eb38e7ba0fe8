// Package inventory keeps the cached vehicle inventory in step with the
// upstream feed and serves the last known-good snapshot when the feed or the
// cache is unavailable.
package inventory

import (
	"context"
	"time"

	"github.com/vbonduro/showroom/internal/domain"
)

// Feed returns the complete upstream inventory on every call. Failures should
// wrap domain.ErrUpstreamUnavailable.
type Feed interface {
	Fetch(ctx context.Context) ([]domain.Vehicle, error)
}

// ManualMedia is the relational store of operator-managed media.
type ManualMedia interface {
	List(ctx context.Context) ([]*domain.Media, error)
	DetachVehicles(ctx context.Context, vehicleIDs []string) (int64, error)
}

// Freshness tags where a Result's snapshot came from.
type Freshness int

const (
	// Fresh snapshots were fetched from the feed during the call.
	Fresh Freshness = iota
	// Cached snapshots were read from the cache store within the TTL.
	Cached
	// Stale snapshots are the last known-good data served after a failure.
	Stale
)

func (f Freshness) String() string {
	switch f {
	case Fresh:
		return "fresh"
	case Cached:
		return "cached"
	case Stale:
		return "stale"
	default:
		return "unknown"
	}
}

type Snapshot struct {
	Vehicles    []domain.Vehicle
	CustomMedia []domain.Media
	// SyncedAt is when the vehicle content last changed. Zero when nothing
	// has been synced yet.
	SyncedAt time.Time
}

// Result is the outcome of Load. Err is set only for Stale results, which
// still carry whatever snapshot could be recovered (possibly empty).
type Result struct {
	Snapshot
	Freshness Freshness
	Err       error

	// recovered is false when a Stale result found no snapshot at all.
	recovered bool
}

// FromCache reports whether the snapshot was not fetched during this call.
func (r Result) FromCache() bool {
	return r.Freshness != Fresh
}

// index is the cached list of vehicle ids for the current snapshot.
type index struct {
	IDs         []string  `json:"ids"`
	Fingerprint uint64    `json:"fingerprint"`
	SyncedAt    time.Time `json:"syncedAt"`
}
