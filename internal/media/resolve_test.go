package media

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/vbonduro/showroom/internal/domain"
)

func TestIsStockImage(t *testing.T) {
	tests := []struct {
		url  string
		want bool
	}{
		{"https://x/rtt1.jpg", true},
		{"https://x/chrome.png", true},
		{"https://x/DEFAULT_photo.jpg", true},
		{"https://cdn.example.com/RTT/front.jpg", true},
		{"https://x/real.jpg", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			assert.Equal(t, tt.want, IsStockImage(tt.url))
		})
	}
}

func feed(urls ...string) []domain.Media {
	return FromURLs("v1", urls)
}

func TestResolve_FiltersStockFeedMedia(t *testing.T) {
	got := Resolve(feed("https://x/rtt1.jpg", "https://x/chrome.png", "https://x/real.jpg"), nil)

	assert.Equal(t, []string{"https://x/real.jpg"}, Images(got))
}

func TestResolve_ManualMediaIsNeverFiltered(t *testing.T) {
	manual := []domain.Media{
		{ID: "m1", URL: "https://x/default-angle.jpg", Type: domain.MediaImage, Source: domain.SourceManual},
	}

	got := Resolve(feed("https://x/real.jpg"), manual)

	assert.Equal(t, []string{"https://x/real.jpg", "https://x/default-angle.jpg"}, Images(got))
}

func TestResolve_KeepsGivenOrder(t *testing.T) {
	vehicleMedia := []domain.Media{
		{ID: "b", URL: "https://x/b.jpg", Type: domain.MediaImage, Order: 1},
		{ID: "a", URL: "https://x/a.jpg", Type: domain.MediaImage, Order: 0},
		{ID: "c", URL: "https://x/c.jpg", Type: domain.MediaImage, Order: 2},
	}
	manual := []domain.Media{
		{ID: "m2", URL: "https://x/m2.jpg", Type: domain.MediaImage, Source: domain.SourceManual, Order: 5},
		{ID: "m1", URL: "https://x/m1.jpg", Type: domain.MediaImage, Source: domain.SourceManual, Order: 0},
	}

	got := Resolve(vehicleMedia, manual)

	assert.Equal(t, []string{
		"https://x/b.jpg", "https://x/a.jpg", "https://x/c.jpg",
		"https://x/m2.jpg", "https://x/m1.jpg",
	}, Images(got))
}

func TestResolve_DoesNotMutateInput(t *testing.T) {
	vehicleMedia := []domain.Media{
		{ID: "b", URL: "https://x/b.jpg", Type: domain.MediaImage, Order: 1},
		{ID: "a", URL: "https://x/a.jpg", Type: domain.MediaImage, Order: 0},
	}

	_ = Resolve(vehicleMedia, nil)

	assert.Equal(t, "b", vehicleMedia[0].ID)
}

func TestImages_SkipsVideo(t *testing.T) {
	got := Images([]domain.Media{
		{URL: "https://x/a.jpg", Type: domain.MediaImage},
		{URL: "https://x/walkaround.mp4", Type: domain.MediaVideo},
	})
	assert.Equal(t, []string{"https://x/a.jpg"}, got)
}

func TestFromURLs(t *testing.T) {
	got := FromURLs("v9", []string{"https://x/1.jpg", "https://x/2.jpg"})

	assert.Len(t, got, 2)
	assert.Equal(t, "v9-img-1", got[1].ID)
	assert.Equal(t, 1, got[1].Order)
	assert.Equal(t, domain.SourceFeed, got[1].Source)
	if assert.NotNil(t, got[1].VehicleID) {
		assert.Equal(t, "v9", *got[1].VehicleID)
	}
}
