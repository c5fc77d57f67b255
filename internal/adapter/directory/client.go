// Package directory searches a community-services directory (211-style API)
// by taxonomy code, postal code and radius.
package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
)

// Config is the directory adapter's slice of the service configuration.
type Config struct {
	APIKey        string
	BaseURL       string
	TaxonomyCodes []string
	ResultLimit   int
	RadiusMiles   float64
}

// Adapter implements domain.Adapter against the directory search endpoint.
type Adapter struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger
}

var _ domain.Adapter = (*Adapter)(nil)

// New creates a directory adapter. A nil httpClient uses http.DefaultClient;
// per-call deadlines come from the request context.
func New(cfg Config, httpClient *http.Client, logger *slog.Logger) *Adapter {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Adapter{cfg: cfg, httpClient: httpClient, logger: logger}
}

func (a *Adapter) Source() domain.Source { return domain.SourceDirectory }

// Search queries each configured taxonomy code in turn and concatenates the
// results. The first failing call stops the sweep; results gathered before it
// are returned with the error.
func (a *Adapter) Search(ctx context.Context, postalCode string) ([]domain.RawResult, error) {
	if a.cfg.APIKey == "" {
		return nil, fmt.Errorf("directory: %w", domain.ErrUpstreamConfig)
	}

	var out []domain.RawResult
	for _, code := range a.cfg.TaxonomyCodes {
		results, err := a.searchTaxonomy(ctx, code, postalCode)
		if err != nil {
			return out, fmt.Errorf("taxonomy %s: %w", code, err)
		}
		a.logger.Debug("directory taxonomy searched", "taxonomy_code", code, "postal_code", postalCode, "count", len(results))
		out = append(out, results...)
	}
	return out, nil
}

func (a *Adapter) searchTaxonomy(ctx context.Context, code, postalCode string) ([]domain.RawResult, error) {
	params := url.Values{
		"taxonomyCode": {code},
		"location":     {postalCode},
		"distance":     {strconv.FormatFloat(a.cfg.RadiusMiles, 'f', -1, 64)},
		"top":          {strconv.Itoa(a.cfg.ResultLimit)},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.cfg.BaseURL+"/search?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Api-Key", a.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, body)
	}

	var payload searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	if payload.Results == nil {
		return nil, errors.New("malformed response: missing results")
	}

	limit := min(len(payload.Results), a.cfg.ResultLimit)
	out := make([]domain.RawResult, 0, limit)
	for _, r := range payload.Results[:limit] {
		out = append(out, r.toRaw(postalCode))
	}
	return out, nil
}

// Directory API response types.

type searchResponse struct {
	Results []service `json:"results"`
}

type service struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	OrganizationName string   `json:"organizationName"`
	Description      string   `json:"description"`
	Phone            string   `json:"phone"`
	Website          string   `json:"website"`
	Email            string   `json:"email"`
	Address          address  `json:"address"`
	Latitude         *float64 `json:"latitude"`
	Longitude        *float64 `json:"longitude"`
	Hours            string   `json:"hours"`
	TaxonomyTerm     string   `json:"taxonomyTerm"`
	Distance         *float64 `json:"distance"`
}

type address struct {
	Street     string `json:"street"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postalCode"`
}

func (s service) toRaw(postalCode string) domain.RawResult {
	name := s.Name
	if name == "" {
		name = s.OrganizationName
	}
	zip := s.Address.PostalCode
	if zip == "" {
		zip = postalCode
	}
	return domain.RawResult{
		Source:      domain.SourceDirectory,
		SourceID:    s.ID,
		Name:        name,
		Category:    s.TaxonomyTerm,
		Description: s.Description,
		Phone:       s.Phone,
		Website:     s.Website,
		Email:       s.Email,
		Address:     s.Address.Street,
		City:        s.Address.City,
		State:       s.Address.State,
		PostalCode:  zip,
		Lat:         s.Latitude,
		Lng:         s.Longitude,
		Hours:       s.Hours,
		DistanceMi:  s.Distance,
	}
}
