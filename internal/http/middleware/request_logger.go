package middleware

import (
	"net/http"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/wolfman30/clinic-intake/pkg/logging"
)

// RequestLogger emits one structured log line per request with its status and latency.
// The request id comes from chi's RequestID middleware when present, else X-Request-ID,
// else a fresh uuid, and is echoed back in the X-Request-ID response header.
func RequestLogger(logger *logging.Logger) func(http.Handler) http.Handler {
	if logger == nil {
		logger = logging.Default()
	}
	log := logger.Component("http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			reqID := chimw.GetReqID(r.Context())
			if reqID == "" {
				reqID = r.Header.Get("X-Request-ID")
			}
			if reqID == "" {
				reqID = uuid.NewString()
			}
			w.Header().Set("X-Request-ID", reqID)

			ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}
			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes", ww.BytesWritten(),
				"request_id", reqID,
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if status >= http.StatusInternalServerError {
				log.Error("request failed", attrs...)
				return
			}
			log.Info("request completed", attrs...)
		})
	}
}
