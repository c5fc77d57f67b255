package mapbox

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
)

const defaultBaseURL = "https://api.mapbox.com/geocoding/v5/mapbox.places"

// Client implements domain.Geocoder for US postal codes using the Mapbox
// Geocoding API.
type Client struct {
	token      string
	httpClient *http.Client
	baseURL    string
	logger     *slog.Logger
}

// NewClient creates a Mapbox geocoding client. An empty token is accepted;
// every lookup then fails with domain.ErrUpstreamConfig.
func NewClient(token string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		token: token,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: defaultBaseURL,
		logger:  logger,
	}
}

// Geocode resolves a postal code to the centroid of its postcode feature.
// Postcode features are 5-digit, so a ZIP+4 is looked up by its first five.
func (c *Client) Geocode(ctx context.Context, postalCode string) (domain.Coordinates, error) {
	if c.token == "" {
		return domain.Coordinates{}, fmt.Errorf("mapbox: %w", domain.ErrUpstreamConfig)
	}
	postalCode = domain.BaseZIP(postalCode)

	u := fmt.Sprintf("%s/%s.json", c.baseURL, url.PathEscape(postalCode))
	params := url.Values{
		"access_token": {c.token},
		"country":      {"us"},
		"limit":        {"1"},
		"types":        {"postcode"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u+"?"+params.Encode(), nil)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("create request: %w", err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: request: %w", domain.ErrGeocode, err)
	}
	defer resp.Body.Close()

	c.logger.Debug("mapbox geocode",
		"postal_code", postalCode,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.Coordinates{}, fmt.Errorf("%w: mapbox status %d: %s", domain.ErrGeocode, resp.StatusCode, body)
	}

	var mapboxResp response
	if err := json.NewDecoder(resp.Body).Decode(&mapboxResp); err != nil {
		return domain.Coordinates{}, fmt.Errorf("%w: decode response: %w", domain.ErrGeocode, err)
	}

	if len(mapboxResp.Features) == 0 || len(mapboxResp.Features[0].Center) != 2 {
		return domain.Coordinates{}, fmt.Errorf("%w: no postcode feature for %s", domain.ErrGeocode, postalCode)
	}

	// Mapbox uses lon,lat order.
	center := mapboxResp.Features[0].Center
	coords := domain.Coordinates{Lat: center[1], Lng: center[0]}
	if !domain.ValidCoordinates(coords.Lat, coords.Lng) {
		return domain.Coordinates{}, fmt.Errorf("%w: out of range center %v", domain.ErrGeocode, center)
	}
	return coords, nil
}

// Mapbox API response types.

type response struct {
	Features []feature `json:"features"`
}

type feature struct {
	Center    []float64 `json:"center"` // [lon, lat]
	PlaceName string    `json:"place_name"`
}
