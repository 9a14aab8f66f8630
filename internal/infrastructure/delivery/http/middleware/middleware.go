// Package middleware provides HTTP middlewares shared by all routes.
package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"vidbatch/internal/consts"
	"vidbatch/internal/infrastructure/delivery/http/response"
	"vidbatch/internal/observability"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

type contextKey string

// RequestIDKey is the context key of the request ID.
const RequestIDKey contextKey = "requestID"

const (
	// HeaderXRequestID carries the request ID.
	HeaderXRequestID = "X-Request-ID"
)

// RequestLog is the logged shape of an incoming request.
type RequestLog struct {
	Method        string `json:"method"`
	URI           string `json:"uri"`
	RemoteAddr    string `json:"remote_addr"`
	Proto         string `json:"proto"`
	ContentLength int64  `json:"content_length"`
	RequestID     string `json:"request_id,omitempty"`
}

// Recoverer turns a handler panic into a 500 response. http.ErrAbortHandler is re-raised.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler {
					panic(rvr)
				}

				slog.ErrorContext(r.Context(), "http handler panic",
					slog.String("uri", r.RequestURI),
					slog.Any("panic", rvr))

				w.WriteHeader(http.StatusInternalServerError)
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// RequestID propagates the X-Request-ID header or generates a new one.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := r.Header.Get(HeaderXRequestID)
		if reqID == "" {
			reqID = uuid.NewString()
		}

		ctx := context.WithValue(r.Context(), RequestIDKey, reqID)
		w.Header().Set(HeaderXRequestID, reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// Logger logs every request at debug level.
func Logger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID, _ := r.Context().Value(RequestIDKey).(string)

		slog.DebugContext(r.Context(), "http request",
			slog.Any("request", RequestLog{
				Method:        r.Method,
				URI:           r.RequestURI,
				RemoteAddr:    r.RemoteAddr,
				Proto:         r.Proto,
				ContentLength: r.ContentLength,
				RequestID:     reqID,
			}))
		next.ServeHTTP(w, r)
	})
}

type statusRecorder struct {
	http.ResponseWriter

	status int
}

func (rec *statusRecorder) WriteHeader(status int) {
	if rec.status == 0 {
		rec.status = status
	}

	rec.ResponseWriter.WriteHeader(status)
}

func (rec *statusRecorder) Write(b []byte) (int, error) {
	if rec.status == 0 {
		rec.status = http.StatusOK
	}

	return rec.ResponseWriter.Write(b)
}

func (rec *statusRecorder) Unwrap() http.ResponseWriter {
	return rec.ResponseWriter
}

// Metrics records the count and duration of requests labeled by route pattern.
// It must run inside the mux so that the matched pattern is known.
func Metrics(metrics *observability.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w}

			defer func() {
				status := rec.status
				if status == 0 {
					status = http.StatusOK
				}

				path := r.Pattern
				if path == "" {
					path = "unmatched"
				}

				metrics.RecordHTTPRequest(r.Method, path, status, time.Since(start))
			}()

			next.ServeHTTP(rec, r)
		})
	}
}

// RateLimit rejects requests with 429 once limiter runs out of tokens.
// A nil limiter lets every request through.
func RateLimit(limiter *rate.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if limiter == nil {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				w.Header().Set("Retry-After", "1")
				response.WriteJSON(w, http.StatusTooManyRequests, consts.RespTooManyRequests, nil, nil)

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
