package domain

import "time"

// Source identifies the upstream provider a record came from.
type Source string

const (
	SourceDirectory  Source = "directory"
	SourceMaps       Source = "maps"
	SourceLLMSearchA Source = "llm-search-a"
	SourceLLMSearchB Source = "llm-search-b"
)

// Valid reports whether s is one of the known sources.
func (s Source) Valid() bool {
	switch s {
	case SourceDirectory, SourceMaps, SourceLLMSearchA, SourceLLMSearchB:
		return true
	default:
		return false
	}
}

// Coordinates is a WGS-84 latitude/longitude pair.
type Coordinates struct {
	Lat float64 `json:"lat" validate:"latitude"`
	Lng float64 `json:"lng" validate:"longitude"`
}

// RawResult is the minimal shape every adapter emits before normalization.
// Optional fields are left empty or nil when the source does not provide them.
type RawResult struct {
	Source      Source
	SourceID    string
	Name        string
	Category    string
	Description string
	Phone       string
	Website     string
	Email       string
	Address     string
	City        string
	State       string
	PostalCode  string
	Lat         *float64
	Lng         *float64
	Hours       string

	// DistanceMi is set by adapters that already know the distance from the
	// search center (places computes it to apply its radius cutoff).
	DistanceMi *float64
}

// ResourceRecord is the canonical disaster-relief resource returned to clients
// and stored in the cache.
type ResourceRecord struct {
	Name           string    `json:"name"`
	Category       string    `json:"category"`
	Categories     []string  `json:"categories,omitempty"`
	Description    string    `json:"description"`
	Phone          *string   `json:"phone,omitempty"`
	Website        *string   `json:"website,omitempty"`
	Email          *string   `json:"email,omitempty"`
	Address        *string   `json:"address,omitempty"`
	City           *string   `json:"city,omitempty"`
	State          *string   `json:"state,omitempty"`
	PostalCode     string    `json:"postal_code"`
	Latitude       *float64  `json:"latitude,omitempty"`
	Longitude      *float64  `json:"longitude,omitempty"`
	DistanceMi     *float64  `json:"distance_mi,omitempty"`
	Source         Source    `json:"source"`
	SourceID       string    `json:"source_id"`
	Hours          *string   `json:"hours,omitempty"`
	LastSeenAt     time.Time `json:"last_seen_at"`
	LastVerifiedAt time.Time `json:"last_verified_at"`
	IsArchived     bool      `json:"-"`
}

// Key returns the (source, source_id) upsert key as a single string.
func (r ResourceRecord) Key() string {
	return string(r.Source) + ":" + r.SourceID
}

// Coordinates returns the record's position, or nil when it has none.
func (r ResourceRecord) Coordinates() *Coordinates {
	if r.Latitude == nil || r.Longitude == nil {
		return nil
	}
	return &Coordinates{Lat: *r.Latitude, Lng: *r.Longitude}
}
