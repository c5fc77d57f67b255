// Package memory is an in-process ResourceStore used when no database is
// configured. Contents are lost on restart.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
)

// Store keeps the latest version of each record keyed by (source, source_id).
type Store struct {
	mu      sync.RWMutex
	records map[string]domain.ResourceRecord
}

// New creates an empty Store.
func New() *Store {
	return &Store{records: make(map[string]domain.ResourceRecord)}
}

func (s *Store) FreshResources(_ context.Context, postalCode string, since time.Time) ([]domain.ResourceRecord, time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		out    []domain.ResourceRecord
		newest time.Time
	)
	for _, r := range s.records {
		if r.PostalCode != postalCode || r.IsArchived || r.LastSeenAt.Before(since) {
			continue
		}
		out = append(out, clone(r))
		if r.LastSeenAt.After(newest) {
			newest = r.LastSeenAt
		}
	}

	sort.SliceStable(out, func(i, j int) bool {
		di, dj := out[i].DistanceMi, out[j].DistanceMi
		switch {
		case di == nil && dj == nil:
			return out[i].Name < out[j].Name
		case di == nil:
			return false
		case dj == nil:
			return true
		case *di != *dj:
			return *di < *dj
		default:
			return out[i].Name < out[j].Name
		}
	})
	return out, newest, nil
}

// UpsertResources replaces existing records with the same key; the last
// write wins. Re-upserting a record clears its archived flag.
func (s *Store) UpsertResources(_ context.Context, records []domain.ResourceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range records {
		r.IsArchived = false
		s.records[r.Key()] = clone(r)
	}
	return nil
}

// Archive hides a record from FreshResources without deleting it.
func (s *Store) Archive(source domain.Source, sourceID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := domain.ResourceRecord{Source: source, SourceID: sourceID}.Key()
	r, ok := s.records[key]
	if !ok {
		return false
	}
	r.IsArchived = true
	s.records[key] = r
	return true
}

// Len returns the number of stored records, archived ones included.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

func (s *Store) Ping(context.Context) error { return nil }

// clone copies the categories slice so callers cannot mutate stored state.
func clone(r domain.ResourceRecord) domain.ResourceRecord {
	if r.Categories != nil {
		r.Categories = append([]string(nil), r.Categories...)
	}
	return r
}
