package places

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "places-key"

var kerrville = domain.Coordinates{Lat: 30.05, Lng: -99.14}

type geocoderFunc func(ctx context.Context, postalCode string) (domain.Coordinates, error)

func (f geocoderFunc) Geocode(ctx context.Context, postalCode string) (domain.Coordinates, error) {
	return f(ctx, postalCode)
}

func fixedGeocoder(c domain.Coordinates) domain.Geocoder {
	return geocoderFunc(func(context.Context, string) (domain.Coordinates, error) { return c, nil })
}

func testAdapter(baseURL string, cats []Category, geo domain.Geocoder) *Adapter {
	return New(Config{
		APIKey:      testKey,
		BaseURL:     baseURL,
		RadiusMiles: 30,
		Categories:  cats,
	}, geo, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func placeJSON(id, name string, lat, lng float64) string {
	return fmt.Sprintf(`{"id":%q,"displayName":{"text":%q},"formattedAddress":"1 Main St, Kerrville, TX",
		"location":{"latitude":%f,"longitude":%f},"nationalPhoneNumber":"(830) 555-0100",
		"websiteUri":"https://example.org","primaryTypeDisplayName":{"text":"Hospital"},
		"regularOpeningHours":{"weekdayDescriptions":["Monday: Open 24 hours","Tuesday: Open 24 hours"]}}`, id, name, lat, lng)
}

func TestSearch_MapsPlacesAndAppliesRadius(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/places:searchNearby", r.URL.Path)
		assert.Equal(t, testKey, r.Header.Get("X-Goog-Api-Key"))
		assert.Contains(t, r.Header.Get("X-Goog-FieldMask"), "places.displayName")

		var req nearbyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, []string{"hospital"}, req.IncludedTypes)
		assert.InDelta(t, 30.05, req.LocationRestriction.Circle.Center.Latitude, 1e-9)
		assert.InDelta(t, 30*metersPerMile, req.LocationRestriction.Circle.Radius, 1e-6)

		_, _ = fmt.Fprintf(w, `{"places":[%s,%s,{"id":"no-location","displayName":{"text":"Nowhere"}}]}`,
			placeJSON("near", "Peterson Regional Medical Center", 30.06, -99.14),
			placeJSON("far", "San Antonio Hospital", 29.42, -98.49))
	}))
	defer srv.Close()

	a := testAdapter(srv.URL, []Category{{Name: "Hospitals", Types: []string{"hospital"}}}, fixedGeocoder(kerrville))
	results, err := a.Search(context.Background(), "78028")
	require.NoError(t, err)
	require.Len(t, results, 1)

	r := results[0]
	assert.Equal(t, domain.SourceMaps, r.Source)
	assert.Equal(t, "near", r.SourceID)
	assert.Equal(t, "Peterson Regional Medical Center", r.Name)
	assert.Equal(t, "Hospitals", r.Category)
	assert.Equal(t, "Hospital.", r.Description)
	assert.Equal(t, "Monday: Open 24 hours; Tuesday: Open 24 hours", r.Hours)
	require.NotNil(t, r.DistanceMi)
	assert.InDelta(t, 0.69, *r.DistanceMi, 0.01)
}

func TestSearch_SkipsDuplicatePlacesAcrossCategories(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = fmt.Fprintf(w, `{"places":[%s]}`, placeJSON("same", "County Courthouse", 30.05, -99.14))
	}))
	defer srv.Close()

	a := testAdapter(srv.URL, []Category{
		{Name: "Government", Types: []string{"city_hall"}},
		{Name: "Shelters", Types: []string{"community_center"}},
	}, fixedGeocoder(kerrville))

	results, err := a.Search(context.Background(), "78028")
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Government", results[0].Category)
}

func TestSearch_BatchesLargeTypeLists(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req nearbyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.LessOrEqual(t, len(req.IncludedTypes), maxTypesPerCall)
		calls.Add(1)
		_, _ = w.Write([]byte(`{"places":[]}`))
	}))
	defer srv.Close()

	types := make([]string, 120)
	for i := range types {
		types[i] = fmt.Sprintf("type_%d", i)
	}
	a := testAdapter(srv.URL, []Category{{Name: "Everything", Types: types}}, fixedGeocoder(kerrville))

	results, err := a.Search(context.Background(), "78028")
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, int32(3), calls.Load())
}

func TestSearch_FailedCategoryDoesNotStopOthers(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req nearbyRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		if req.IncludedTypes[0] == "pharmacy" {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = fmt.Fprintf(w, `{"places":[%s]}`, placeJSON("fs-1", "Fire Station 1", 30.05, -99.14))
	}))
	defer srv.Close()

	a := testAdapter(srv.URL, []Category{
		{Name: "Pharmacies", Types: []string{"pharmacy"}},
		{Name: "Fire & Police", Types: []string{"fire_station"}},
	}, fixedGeocoder(kerrville))

	results, err := a.Search(context.Background(), "78028")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Pharmacies")
	assert.Contains(t, err.Error(), "429")
	require.Len(t, results, 1)
	assert.Equal(t, "fs-1", results[0].SourceID)
}

func TestSearch_GeocodeFailure(t *testing.T) {
	geo := geocoderFunc(func(context.Context, string) (domain.Coordinates, error) {
		return domain.Coordinates{}, domain.ErrGeocode
	})
	a := testAdapter("http://unused", nil, geo)

	results, err := a.Search(context.Background(), "00000")
	require.ErrorIs(t, err, domain.ErrGeocode)
	assert.Nil(t, results)
}

func TestSearch_MissingAPIKey(t *testing.T) {
	a := New(Config{}, fixedGeocoder(kerrville), nil, slog.Default())
	_, err := a.Search(context.Background(), "78028")
	require.ErrorIs(t, err, domain.ErrUpstreamConfig)
	assert.Equal(t, domain.SourceMaps, a.Source())
	assert.Equal(t, DefaultCategories, a.cfg.Categories)
}

func TestBatchTypes(t *testing.T) {
	assert.Nil(t, batchTypes(nil, 50))
	assert.Equal(t, [][]string{{"a", "b"}, {"c"}}, batchTypes([]string{"a", "b", "c"}, 2))
	assert.Equal(t, [][]string{{"a", "b"}}, batchTypes([]string{"a", "b"}, 2))
}
