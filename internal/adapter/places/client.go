// Package places finds nearby emergency-relevant places (shelters, hospitals,
// pharmacies and the like) through the Google Places nearby-search API.
package places

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"golang.org/x/time/rate"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
)

const (
	defaultBaseURL = "https://places.googleapis.com/v1"

	// maxTypesPerCall is the upstream limit on includedTypes per request.
	maxTypesPerCall = 50
	maxResultCount  = 20
	maxRadiusMeters = 50000.0
	metersPerMile   = 1609.344

	fieldMask = "places.id,places.displayName,places.formattedAddress,places.location," +
		"places.nationalPhoneNumber,places.websiteUri,places.primaryTypeDisplayName," +
		"places.regularOpeningHours.weekdayDescriptions,places.editorialSummary"
)

// Category groups place types under the category name stamped on results.
type Category struct {
	Name  string
	Types []string
}

// DefaultCategories is the place-type table searched for every postal code.
var DefaultCategories = []Category{
	{Name: "Shelters & Emergency Services", Types: []string{"community_center", "local_government_office", "city_hall", "church"}},
	{Name: "Hospitals & Urgent Care", Types: []string{"hospital", "medical_clinic", "doctor"}},
	{Name: "Pharmacies", Types: []string{"pharmacy", "drugstore"}},
	{Name: "Fire & Police", Types: []string{"fire_station", "police"}},
	{Name: "Food & Supplies", Types: []string{"grocery_store", "supermarket", "hardware_store", "home_improvement_store"}},
	{Name: "Fuel", Types: []string{"gas_station"}},
}

// Config is the places adapter's slice of the service configuration.
type Config struct {
	APIKey      string
	BaseURL     string
	RadiusMiles float64
	RateLimit   float64 // requests per second
	Categories  []Category
}

// Adapter implements domain.Adapter over nearby search around the postal
// code's centroid.
type Adapter struct {
	cfg        Config
	geocoder   domain.Geocoder
	limiter    *rate.Limiter
	httpClient *http.Client
	logger     *slog.Logger
}

var _ domain.Adapter = (*Adapter)(nil)

// New creates a places adapter. Empty BaseURL and Categories fall back to the
// public endpoint and DefaultCategories.
func New(cfg Config, geocoder domain.Geocoder, httpClient *http.Client, logger *slog.Logger) *Adapter {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if len(cfg.Categories) == 0 {
		cfg.Categories = DefaultCategories
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	limit := rate.Inf
	if cfg.RateLimit > 0 {
		limit = rate.Limit(cfg.RateLimit)
	}
	return &Adapter{
		cfg:        cfg,
		geocoder:   geocoder,
		limiter:    rate.NewLimiter(limit, 1),
		httpClient: httpClient,
		logger:     logger,
	}
}

func (a *Adapter) Source() domain.Source { return domain.SourceMaps }

// Search geocodes postalCode, runs one nearby search per category batch and
// keeps places within the configured radius. A failing batch does not stop
// the others; its error is joined into the returned error.
func (a *Adapter) Search(ctx context.Context, postalCode string) ([]domain.RawResult, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("places: %w", domain.ErrUpstreamConfig)
	}

	center, err := a.geocoder.Geocode(ctx, postalCode)
	if err != nil {
		return nil, fmt.Errorf("locate %s: %w", postalCode, err)
	}

	var (
		out  []domain.RawResult
		errs []error
		seen = make(map[string]struct{})
	)
	for _, cat := range a.cfg.Categories {
		for _, types := range batchTypes(cat.Types, maxTypesPerCall) {
			if err := a.limiter.Wait(ctx); err != nil {
				return out, errors.Join(append(errs, err)...)
			}
			found, err := a.searchNearby(ctx, center, types)
			if err != nil {
				errs = append(errs, fmt.Errorf("%s: %w", cat.Name, err))
				continue
			}
			for _, p := range found {
				if _, dup := seen[p.ID]; dup {
					continue
				}
				r, ok := a.toRaw(p, cat.Name, postalCode, center)
				if !ok {
					continue
				}
				seen[p.ID] = struct{}{}
				out = append(out, r)
			}
		}
	}

	a.logger.Debug("places searched", "postal_code", postalCode, "count", len(out), "failed_batches", len(errs))
	return out, errors.Join(errs...)
}

func (a *Adapter) searchNearby(ctx context.Context, center domain.Coordinates, types []string) ([]place, error) {
	body, err := json.Marshal(nearbyRequest{
		IncludedTypes:  types,
		MaxResultCount: maxResultCount,
		LocationRestriction: locationRestriction{Circle: circle{
			Center: latLng{Latitude: center.Lat, Longitude: center.Lng},
			Radius: min(a.cfg.RadiusMiles*metersPerMile, maxRadiusMeters),
		}},
	})
	if err != nil {
		return nil, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.cfg.BaseURL+"/places:searchNearby", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Goog-Api-Key", a.cfg.APIKey)
	req.Header.Set("X-Goog-FieldMask", fieldMask)

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, msg)
	}

	var payload nearbyResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return payload.Places, nil
}

// toRaw converts a place and applies the radius cutoff. Places without a
// usable location cannot be checked against the radius and are skipped.
func (a *Adapter) toRaw(p place, category, postalCode string, center domain.Coordinates) (domain.RawResult, bool) {
	if p.ID == "" || p.Location == nil || !domain.ValidCoordinates(p.Location.Latitude, p.Location.Longitude) {
		return domain.RawResult{}, false
	}
	pos := domain.Coordinates{Lat: p.Location.Latitude, Lng: p.Location.Longitude}
	dist := domain.HaversineMiles(center, pos)
	if dist > a.cfg.RadiusMiles {
		return domain.RawResult{}, false
	}

	r := domain.RawResult{
		Source:     domain.SourceMaps,
		SourceID:   p.ID,
		Name:       p.DisplayName.Text,
		Category:   category,
		Phone:      p.NationalPhoneNumber,
		Website:    p.WebsiteURI,
		Address:    p.FormattedAddress,
		PostalCode: postalCode,
		Lat:        &pos.Lat,
		Lng:        &pos.Lng,
		DistanceMi: &dist,
	}
	if p.EditorialSummary != nil {
		r.Description = p.EditorialSummary.Text
	}
	if p.PrimaryTypeDisplayName != nil && p.PrimaryTypeDisplayName.Text != "" {
		r.Description = strings.TrimSpace(p.PrimaryTypeDisplayName.Text + ". " + r.Description)
	}
	if p.RegularOpeningHours != nil {
		r.Hours = strings.Join(p.RegularOpeningHours.WeekdayDescriptions, "; ")
	}
	return r, true
}

// batchTypes splits types into chunks of at most size entries.
func batchTypes(types []string, size int) [][]string {
	var batches [][]string
	for len(types) > size {
		batches = append(batches, types[:size])
		types = types[size:]
	}
	if len(types) > 0 {
		batches = append(batches, types)
	}
	return batches
}

// Places API request and response types.

type nearbyRequest struct {
	IncludedTypes       []string            `json:"includedTypes"`
	MaxResultCount      int                 `json:"maxResultCount"`
	LocationRestriction locationRestriction `json:"locationRestriction"`
}

type locationRestriction struct {
	Circle circle `json:"circle"`
}

type circle struct {
	Center latLng  `json:"center"`
	Radius float64 `json:"radius"`
}

type latLng struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

type nearbyResponse struct {
	Places []place `json:"places"`
}

type localizedText struct {
	Text string `json:"text"`
}

type place struct {
	ID                     string         `json:"id"`
	DisplayName            localizedText  `json:"displayName"`
	FormattedAddress       string         `json:"formattedAddress"`
	Location               *latLng        `json:"location"`
	NationalPhoneNumber    string         `json:"nationalPhoneNumber"`
	WebsiteURI             string         `json:"websiteUri"`
	PrimaryTypeDisplayName *localizedText `json:"primaryTypeDisplayName"`
	EditorialSummary       *localizedText `json:"editorialSummary"`
	RegularOpeningHours    *openingHours  `json:"regularOpeningHours"`
}

type openingHours struct {
	WeekdayDescriptions []string `json:"weekdayDescriptions"`
}
