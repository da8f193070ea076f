package api

import (
	"context"
	"log"
	"net/http"
	"runtime/debug"
	"time"

	"github.com/google/uuid"
	"github.com/rs/cors"
)

type ctxKey string

const requestIDKey ctxKey = "http_request_id"

// HTTPRequestID returns the transport-level id assigned by the middleware.
// It is distinct from the gateway's request_id.
func HTTPRequestID(ctx context.Context) string {
	if s, ok := ctx.Value(requestIDKey).(string); ok {
		return s
	}
	return ""
}

// MiddlewareConfig controls the wrappers applied by Wrap.
type MiddlewareConfig struct {
	AllowedOrigins []string
	Throttle       *Throttle // nil disables ingress throttling
}

// Wrap applies, outermost first: CORS, request id, logging, recovery and the
// optional ingress throttle.
func Wrap(h http.Handler, cfg MiddlewareConfig) http.Handler {
	if cfg.Throttle != nil {
		h = cfg.Throttle.Middleware(h)
	}
	h = recoverMiddleware(h)
	h = loggingMiddleware(h)
	h = requestIDMiddleware(h)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type", "Accept-Encoding", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID", "X-Correlation-ID", "Retry-After"},
	})
	return c.Handler(h)
}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rid := r.Header.Get("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey, rid))
		w.Header().Set("X-Request-ID", rid)
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (sr *statusRecorder) WriteHeader(code int) {
	sr.status = code
	sr.ResponseWriter.WriteHeader(code)
}

func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sr, r)

		log.Printf("api: http_request_id=%s method=%s path=%s status=%d duration=%s",
			HTTPRequestID(r.Context()), r.Method, r.URL.Path, sr.status, time.Since(start))
	})
}

func recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				log.Printf("api: panic recovered http_request_id=%s panic=%v\n%s",
					HTTPRequestID(r.Context()), rec, debug.Stack())
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}
