// Package companion tracks images pushed by the web companion capture app
// through pending → processed | failed. Registration writes the pending record;
// the out-of-band processor reports the outcome through Complete.
package companion

import (
	"fmt"
	"time"

	"github.com/vbonduro/showroom/internal/domain"
)

// Patch is the completion payload. Nil fields were not supplied by the caller.
type Patch struct {
	ProcessedURL *string              `json:"processedUrl,omitempty"`
	Status       *domain.UploadStatus `json:"status,omitempty"`
	Error        *string              `json:"error,omitempty"`
	ImageIndex   *int                 `json:"imageIndex,omitempty"`
}

// Apply merges p into prev and returns the next record. It never touches
// storage. Status defaults to processed; processedUrl and imageIndex keep
// their previous values when omitted; error is cleared when omitted;
// processedAt is always restamped with now because it records the last
// completion observed.
//
// A record may not go back to pending, and a terminal record may not switch to
// the other terminal status. Re-applying the same terminal status is allowed
// so retried callbacks succeed.
func Apply(prev domain.WebCompanionUpload, p Patch, now time.Time) (domain.WebCompanionUpload, error) {
	next := domain.UploadProcessed
	if p.Status != nil {
		next = *p.Status
	}

	switch {
	case !next.Valid():
		return prev, fmt.Errorf("unknown upload status %q: %w", next, domain.ErrInvalidInput)
	case !next.Terminal():
		return prev, fmt.Errorf("upload cannot be completed as %q: %w", next, domain.ErrInvalidInput)
	case prev.Status.Terminal() && prev.Status != next:
		return prev, fmt.Errorf("upload %s already %s: %w", prev.ID, prev.Status, domain.ErrConflict)
	}

	out := prev
	out.Status = next
	if p.ProcessedURL != nil {
		out.ProcessedURL = *p.ProcessedURL
	}
	processedAt := now.UTC()
	out.ProcessedAt = &processedAt
	out.Error = ""
	if p.Error != nil {
		out.Error = *p.Error
	}
	if p.ImageIndex != nil {
		idx := *p.ImageIndex
		out.ImageIndex = &idx
	}
	return out, nil
}
