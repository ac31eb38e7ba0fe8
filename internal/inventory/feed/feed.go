// Package feed provides inventory.Feed implementations reading a JSON vehicle
// list over HTTP or from a local file.
package feed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/vbonduro/showroom/internal/domain"
)

// maxFeedBytes bounds how much of a feed response is read.
const maxFeedBytes = 64 << 20

type HTTPFeed struct {
	url    string
	client *http.Client
}

func NewHTTPFeed(url string, client *http.Client) *HTTPFeed {
	if client == nil {
		client = &http.Client{}
	}
	return &HTTPFeed{url: url, client: client}
}

func (f *HTTPFeed) Fetch(ctx context.Context) ([]domain.Vehicle, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create feed request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to call feed: %w", domain.ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: feed returned status %d", domain.ErrUpstreamUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read feed: %w", domain.ErrUpstreamUnavailable, err)
	}
	return decode(data)
}

// FileFeed reads the inventory from a JSON file on every fetch, for local
// development and demos.
type FileFeed struct {
	path string
}

func NewFileFeed(path string) *FileFeed {
	return &FileFeed{path: path}
}

func (f *FileFeed) Fetch(ctx context.Context) ([]domain.Vehicle, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read feed file: %w", domain.ErrUpstreamUnavailable, err)
	}
	return decode(data)
}

// decode accepts either a bare vehicle array or an object wrapping it under
// "vehicles".
func decode(data []byte) ([]domain.Vehicle, error) {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '{' {
		var wrapped struct {
			Vehicles []domain.Vehicle `json:"vehicles"`
		}
		if err := json.Unmarshal(data, &wrapped); err != nil {
			return nil, fmt.Errorf("%w: failed to decode feed: %w", domain.ErrUpstreamUnavailable, err)
		}
		return wrapped.Vehicles, nil
	}

	var vehicles []domain.Vehicle
	if err := json.Unmarshal(data, &vehicles); err != nil {
		return nil, fmt.Errorf("%w: failed to decode feed: %w", domain.ErrUpstreamUnavailable, err)
	}
	return vehicles, nil
}
