// Package media builds the image list shown for a vehicle from its feed media
// and the media operators attached by hand.
package media

import (
	"strconv"
	"strings"

	"github.com/vbonduro/showroom/internal/domain"
)

// stockMarkers identify manufacturer stock renders and placeholder images in
// feed URLs.
var stockMarkers = []string{"rtt", "chrome", "default"}

// IsStockImage reports whether url looks like a stock or placeholder image.
func IsStockImage(url string) bool {
	lower := strings.ToLower(url)
	for _, m := range stockMarkers {
		if strings.Contains(lower, m) {
			return true
		}
	}
	return false
}

// Resolve returns the vehicle's own media with stock imagery removed, in the
// order given, followed by manual media in the order given. Manual media is
// never filtered. Neither input is modified.
func Resolve(vehicleMedia, manual []domain.Media) []domain.Media {
	own := make([]domain.Media, 0, len(vehicleMedia))
	for _, m := range vehicleMedia {
		if m.Source != domain.SourceManual && IsStockImage(m.URL) {
			continue
		}
		own = append(own, m)
	}

	return append(own, manual...)
}

// Images projects the URLs of the image entries in media, preserving order.
func Images(media []domain.Media) []string {
	urls := make([]string, 0, len(media))
	for _, m := range media {
		if m.Type == domain.MediaImage {
			urls = append(urls, m.URL)
		}
	}
	return urls
}

// FromURLs builds feed media for a vehicle that only carries an image list.
func FromURLs(vehicleID string, urls []string) []domain.Media {
	media := make([]domain.Media, 0, len(urls))
	for i, u := range urls {
		id := vehicleID
		media = append(media, domain.Media{
			ID:        vehicleID + "-img-" + strconv.Itoa(i),
			URL:       u,
			Type:      domain.MediaImage,
			VehicleID: &id,
			Order:     i,
			Source:    domain.SourceFeed,
		})
	}
	return media
}
