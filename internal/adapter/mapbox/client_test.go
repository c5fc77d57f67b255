package mapbox

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testToken         = "test-token"
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL, token string) *Client {
	return &Client{
		token:      token,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		baseURL:    baseURL,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func TestClient_Geocode_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/78028.json", r.URL.Path)
		q := r.URL.Query()
		assert.Equal(t, "postcode", q.Get("types"))
		assert.Equal(t, "us", q.Get("country"))
		assert.Equal(t, "1", q.Get("limit"))
		assert.Equal(t, testToken, q.Get("access_token"))

		resp := response{Features: []feature{{
			Center:    []float64{-99.1403, 30.0474},
			PlaceName: "Kerrville, Texas 78028, United States",
		}}}
		w.Header().Set(headerContentType, contentTypeJSON)
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer srv.Close()

	coords, err := testClient(srv.URL, testToken).Geocode(context.Background(), "78028")
	require.NoError(t, err)
	assert.InDelta(t, 30.0474, coords.Lat, 1e-9)
	assert.InDelta(t, -99.1403, coords.Lng, 1e-9)
}

func TestClient_Geocode_ZipPlusFourUsesBaseZip(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/78028.json", r.URL.Path)
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"features":[{"center":[-99.1403,30.0474],"place_name":"Kerrville, Texas 78028"}]}`))
	}))
	defer srv.Close()

	coords, err := testClient(srv.URL, testToken).Geocode(context.Background(), "78028-1234")
	require.NoError(t, err)
	assert.InDelta(t, 30.0474, coords.Lat, 1e-9)
}

func TestClient_Geocode_EmptyFeatures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, testToken).Geocode(context.Background(), "00000")
	require.ErrorIs(t, err, domain.ErrGeocode)
}

func TestClient_Geocode_HTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"Not Authorized - Invalid Token"}`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, testToken).Geocode(context.Background(), "78028")
	require.ErrorIs(t, err, domain.ErrGeocode)
	assert.Contains(t, err.Error(), "401")
}

func TestClient_Geocode_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, testToken).Geocode(context.Background(), "78028")
	require.ErrorIs(t, err, domain.ErrGeocode)
}

func TestClient_Geocode_MissingToken(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(_ http.ResponseWriter, _ *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := testClient(srv.URL, "").Geocode(context.Background(), "78028")
	require.ErrorIs(t, err, domain.ErrUpstreamConfig)
	assert.False(t, called)
}

func TestClient_Geocode_ContextCanceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`{"features":[]}`))
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := testClient(srv.URL, testToken).Geocode(ctx, "78028")
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewClient_Defaults(t *testing.T) {
	c := NewClient(testToken, 3*time.Second, slog.Default())
	assert.Equal(t, defaultBaseURL, c.baseURL)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
}
