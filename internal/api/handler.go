package api

import (
	"compress/gzip"
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lmcdonald6/reic-gateway/internal/auth"
	"github.com/lmcdonald6/reic-gateway/internal/domain"
	"github.com/lmcdonald6/reic-gateway/internal/gateway"
	"github.com/lmcdonald6/reic-gateway/internal/protocol"
	"github.com/lmcdonald6/reic-gateway/internal/schema"
)

const requestsPrefix = "/v1/requests/"

// Gateway is the subset of *gateway.Gateway the HTTP layer drives.
type Gateway interface {
	HandleRequest(ctx context.Context, rt domain.RequestType, payload map[string]any, token string) (*domain.Response, int, error)
	Metrics(requestID string) (domain.RequestMetrics, bool)
	Usage() gateway.UsageReport
	IssueToken(apiKey string) (auth.Issued, error)
}

// HealthChecker provides dependency health status for the /health endpoint.
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// PingFunc adapts a ping function to HealthChecker.
type PingFunc func(ctx context.Context) error

func (f PingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type Handler struct {
	gw       Gateway
	checkers map[string]HealthChecker
}

func NewHandler(gw Gateway) *Handler {
	return &Handler{gw: gw, checkers: make(map[string]HealthChecker)}
}

// WithHealthChecker registers a named dependency for verbose /health responses.
func (h *Handler) WithHealthChecker(name string, c HealthChecker) *Handler {
	h.checkers[name] = c
	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Path

	switch {
	case path == "/health" && r.Method == http.MethodGet:
		h.health(w, r)

	case path == "/auth/token" && r.Method == http.MethodPost:
		h.issueToken(w, r)

	case path == "/v1/usage" && r.Method == http.MethodGet:
		writeJSON(w, http.StatusOK, h.gw.Usage())

	case strings.HasPrefix(path, requestsPrefix) && r.Method == http.MethodPost:
		h.submit(w, r)

	case strings.HasPrefix(path, requestsPrefix) && r.Method == http.MethodGet:
		h.getMetrics(w, r)

	default:
		writeError(w, http.StatusNotFound, "not found")
	}
}

// HealthResponse represents the /health endpoint response.
type HealthResponse struct {
	Status     string            `json:"status"`
	Components map[string]string `json:"components,omitempty"`
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	verbose := r.URL.Query().Get("verbose") == "true"

	if !verbose || len(h.checkers) == 0 {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	resp := HealthResponse{
		Status:     "ok",
		Components: make(map[string]string),
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(h.checkers))
	for name := range h.checkers {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := h.checkers[name].PingContext(ctx); err != nil {
			resp.Status = "degraded"
			resp.Components[name] = "unhealthy: " + err.Error()
		} else {
			resp.Components[name] = "healthy"
		}
	}

	statusCode := http.StatusOK
	if resp.Status == "degraded" {
		statusCode = http.StatusServiceUnavailable
	}
	writeJSON(w, statusCode, resp)
}

// maxRequestBodySize is the maximum allowed request body size (1MB).
const maxRequestBodySize = 1 << 20

func (h *Handler) submit(w http.ResponseWriter, r *http.Request) {
	segment, ok := requestSegment(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	rt, ok := domain.ParseRequestType(segment)
	if !ok {
		writeError(w, http.StatusNotFound, schema.ErrUnsupportedType.Error())
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var payload map[string]any
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if payload == nil {
		payload = map[string]any{}
	}

	resp, code, err := h.gw.HandleRequest(r.Context(), rt, payload, r.Header.Get("Authorization"))
	switch {
	case errors.Is(err, schema.ErrUnsupportedType):
		writeError(w, http.StatusNotFound, schema.ErrUnsupportedType.Error())
		return
	case errors.Is(err, gateway.ErrClosed):
		writeError(w, http.StatusServiceUnavailable, "shutting down")
		return
	case err != nil:
		log.Printf("api: handle request error: %v", err)
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}

	if resp.RetryAfterSeconds > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfterSeconds))
	}
	w.Header().Set("X-Correlation-ID", resp.CorrelationID)

	if resp.Compression == protocol.CompressionGzip && acceptsGzip(r.Header.Get("Accept-Encoding")) {
		writeGzipJSON(w, code, resp)
		return
	}
	writeJSON(w, code, resp)
}

func (h *Handler) getMetrics(w http.ResponseWriter, r *http.Request) {
	id, ok := requestSegment(r.URL.Path)
	if !ok {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	m, ok := h.gw.Metrics(id)
	if !ok {
		writeError(w, http.StatusNotFound, "request not found")
		return
	}
	writeJSON(w, http.StatusOK, toMetricsResponse(m))
}

func (h *Handler) issueToken(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	var req TokenRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	if err := validateTokenRequest(req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	issued, err := h.gw.IssueToken(req.APIKey)
	switch {
	case errors.Is(err, auth.ErrInvalidAPIKey):
		writeError(w, http.StatusUnauthorized, "invalid api key")
		return
	case errors.Is(err, auth.ErrNoSecret):
		writeError(w, http.StatusServiceUnavailable, "token issuing disabled")
		return
	case err != nil:
		log.Printf("api: issue token error: %v", err)
		writeError(w, http.StatusInternalServerError, "failed to issue token")
		return
	}
	writeJSON(w, http.StatusOK, issued)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
}

func writeGzipJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Encoding", "gzip")
	w.Header().Add("Vary", "Accept-Encoding")
	w.WriteHeader(status)

	gz := gzip.NewWriter(w)
	if err := json.NewEncoder(gz).Encode(v); err != nil {
		log.Printf("api: json encode error: %v", err)
	}
	if err := gz.Close(); err != nil {
		log.Printf("api: gzip close error: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
