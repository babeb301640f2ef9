package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/livingsilver94/serpentos-libmoss/internal/reqid"
)

// rwLogger records the status and byte count a handler produced so the
// access log can report them.
type rwLogger struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *rwLogger) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *rwLogger) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}

func accessLog(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			startTime := time.Now()
			rw := &rwLogger{ResponseWriter: w}
			next.ServeHTTP(rw, r)
			if rw.status == 0 {
				rw.status = http.StatusOK
			}
			id, _ := reqid.From(r.Context())
			logger.Info("request",
				"method", r.Method,
				"url", r.URL.Path,
				"status", rw.status,
				"remote", r.RemoteAddr,
				"request_id", id,
				"dur_ms", time.Since(startTime).Milliseconds(),
				"bytes", rw.bytes)
		})
	}
}
