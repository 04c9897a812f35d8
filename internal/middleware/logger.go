package middleware

import (
	"net/http"
	"time"

	"schemagen/internal/infra"
	"schemagen/internal/infra/geoip"
)

type responseWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	rw.bytes += n
	return n, err
}

// Logger writes one access log line per request. countries may be nil; when
// set, the client's ISO country code is attached.
func Logger(l *infra.Logger, countries geoip.CountryResolver) func(http.Handler) http.Handler {
	l = infra.LoggerOrDiscard(l)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rw, r)

			ip := ClientIP(r)
			event := l.Info()
			if rw.status >= http.StatusInternalServerError {
				event = l.Warn()
			}
			event = event.
				Str("request_id", RequestIDFromContext(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", rw.status).
				Int("bytes", rw.bytes).
				Dur("duration", time.Since(start)).
				Str("ip", ip)
			if countries != nil {
				if code, err := countries.CountryCode(ip); err == nil && code != "" {
					event = event.Str("country", code)
				}
			}
			event.Msg("http request")
		})
	}
}
