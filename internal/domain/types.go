package domain

import "time"

type VehicleStatus string

const (
	VehicleAvailable VehicleStatus = "available"
	VehicleSold      VehicleStatus = "sold"
)

type MediaType string

const (
	MediaImage MediaType = "IMAGE"
	MediaVideo MediaType = "VIDEO"
)

// MediaSource records where a media record came from. Feed media is subject to
// the stock-photo filter; manual media is operator curated and never filtered.
type MediaSource string

const (
	SourceFeed   MediaSource = "feed"
	SourceManual MediaSource = "manual"
)

type Vehicle struct {
	ID          string        `json:"id"`
	StockNumber string        `json:"stockNumber"`
	Make        string        `json:"make"`
	Model       string        `json:"model"`
	Year        int           `json:"year"`
	Price       float64       `json:"price"`
	Mileage     int           `json:"mileage"`
	Status      VehicleStatus `json:"status"`
	Images      []string      `json:"images"`
	Media       []Media       `json:"media"`
}

// Media is a single image or video. A nil VehicleID marks it as unattached.
type Media struct {
	ID         string      `json:"id"`
	URL        string      `json:"url"`
	Type       MediaType   `json:"type"`
	VehicleID  *string     `json:"vehicleId"`
	Order      int         `json:"order"`
	Source     MediaSource `json:"source,omitempty"`
	StorageKey string      `json:"storageKey,omitempty"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func (m Media) Unattached() bool {
	return m.VehicleID == nil
}

type UploadStatus string

const (
	UploadPending   UploadStatus = "pending"
	UploadProcessed UploadStatus = "processed"
	UploadFailed    UploadStatus = "failed"
)

// Terminal reports whether no further status transition is allowed.
func (s UploadStatus) Terminal() bool {
	return s == UploadProcessed || s == UploadFailed
}

func (s UploadStatus) Valid() bool {
	return s == UploadPending || s.Terminal()
}

// WebCompanionUpload tracks one image pushed by the companion capture app.
type WebCompanionUpload struct {
	ID               string       `json:"id"`
	StockNumber      string       `json:"stockNumber"`
	OriginalURL      string       `json:"originalUrl"`
	StorageKey       string       `json:"storageKey"`
	Status           UploadStatus `json:"status"`
	CreatedAt        time.Time    `json:"createdAt"`
	ProcessedAt      *time.Time   `json:"processedAt,omitempty"`
	ProcessedURL     string       `json:"processedUrl,omitempty"`
	OriginalFilename string       `json:"originalFilename,omitempty"`
	Size             int64        `json:"size,omitempty"`
	ImageIndex       *int         `json:"imageIndex,omitempty"`
	Error            string       `json:"error,omitempty"`
}
