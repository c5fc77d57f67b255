// Package httpadapter serves the resource search endpoints alongside the
// health, readiness and metrics routes.
package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/couchcryptid/disaster-resource-aggregator/internal/domain"
	"github.com/couchcryptid/disaster-resource-aggregator/internal/pipeline"
)

const (
	requestIDHeader = "X-Request-ID"
	maxBodyBytes    = 64 << 10

	// boundedStages counts the sequential aggregation steps that each run under
	// the adapter timeout: fan-out, persist and publish.
	boundedStages = 3
	writeMargin   = 10 * time.Second
)

// Aggregator is the part of the pipeline the HTTP layer depends on.
type Aggregator interface {
	Aggregate(ctx context.Context, postalCode string) (pipeline.Response, error)
	CheckReadiness(ctx context.Context) error
}

// Server exposes the resource endpoints plus /healthz, /readyz and /metrics.
type Server struct {
	httpServer *http.Server
	aggregator Aggregator
	logger     *slog.Logger
}

// NewServer creates an HTTP server. Every response carries CORS headers and
// an X-Request-ID. adapterTimeout sizes the write deadline so a slow
// aggregation can still deliver its response.
func NewServer(addr string, adapterTimeout time.Duration, aggregator Aggregator, logger *slog.Logger) *Server {
	mux := http.NewServeMux()

	s := &Server{
		httpServer: &http.Server{
			Addr:         addr,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: writeTimeout(adapterTimeout),
			IdleTimeout:  60 * time.Second,
		},
		aggregator: aggregator,
		logger:     logger,
	}

	mux.HandleFunc("GET /healthz", sharedobs.LivenessHandler())
	mux.HandleFunc("GET /readyz", sharedobs.ReadinessHandler(aggregator))
	mux.Handle("GET /metrics", promhttp.Handler())

	mux.HandleFunc("POST /api/resources", s.handleSearch)
	mux.HandleFunc("POST /functions/v1/disaster-resources", s.handleSearch)
	mux.HandleFunc("POST /functions/v1/search-resources", s.handleSearch)
	mux.HandleFunc("GET /api/resources", s.handleLookup)

	s.httpServer.Handler = s.withRequestID(withCORS(mux))
	return s
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// searchRequest accepts the ZIP under any of the names existing clients send.
type searchRequest struct {
	ZipCode          zipValue `json:"zipCode"`
	RequestedZipcode zipValue `json:"requested_zipcode"`
	ZipCodeSnake     zipValue `json:"zip_code"`
}

func (r searchRequest) postalCode() string {
	for _, v := range []zipValue{r.ZipCode, r.RequestedZipcode, r.ZipCodeSnake} {
		if v != "" {
			return string(v)
		}
	}
	return ""
}

// zipValue decodes from a JSON string or number. Numbers lose leading zeros,
// so they only validate when already five digits.
type zipValue string

func (z *zipValue) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*z = zipValue(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*z = zipValue(n.String())
	return nil
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	s.respond(w, r, req.postalCode())
}

func (s *Server) handleLookup(w http.ResponseWriter, r *http.Request) {
	s.respond(w, r, r.URL.Query().Get("zip"))
}

func (s *Server) respond(w http.ResponseWriter, r *http.Request, postalCode string) {
	log := s.logger.With("request_id", pipeline.RequestID(r.Context()))

	resp, err := s.aggregator.Aggregate(r.Context(), postalCode)
	switch {
	case err == nil:
		writeJSON(w, http.StatusOK, resp)
	case domain.IsInvalidInput(err):
		log.Debug("rejected search", "postal_code", postalCode, "error", err)
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, context.Canceled):
		log.Info("client went away", "postal_code", postalCode)
	default:
		log.Error("aggregation failed", "postal_code", postalCode, "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *Server) withRequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(pipeline.WithRequestID(r.Context(), id)))
	})
}

func withCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("Access-Control-Allow-Origin", "*")
		h.Set("Access-Control-Allow-Headers", "authorization, x-client-info, apikey, content-type")
		h.Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// writeTimeout covers every bounded stage back to back plus a margin for the
// cache read and encoding.
func writeTimeout(adapterTimeout time.Duration) time.Duration {
	return boundedStages*adapterTimeout + writeMargin
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v) //nolint:errcheck // client may have disconnected
}
