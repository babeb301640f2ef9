package router

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/livingsilver94/serpentos-libmoss/fetcher"
	"github.com/livingsilver94/serpentos-libmoss/internal/auth"
	"github.com/livingsilver94/serpentos-libmoss/internal/reqid"
)

// StatsSource exposes the engine snapshot served by /status.
type StatsSource interface {
	Stats() fetcher.Stats
}

// New sets up the debug listener routes and required middleware.
// events, when non-nil, is mounted on /events for the live progress
// stream. A non-empty token locks everything except /healthz behind
// bearer auth.
func New(logger *slog.Logger, stats StatsSource, events http.Handler, token string) *mux.Router {

	r := mux.NewRouter()
	r.Use(reqid.Middleware)
	r.Use(accessLog(logger))
	if token != "" {
		r.Use(auth.Middleware(token))
	}

	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logger.Error("write healthz response", "err", err)
		}
	}).Methods("GET")

	r.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(logger, w, stats.Stats())
	}).Methods("GET")

	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	if events != nil {
		r.Handle("/events", events).Methods("GET")
	}

	return r
}

func writeJSON(logger *slog.Logger, w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("encode json response", "err", err)
	}
}
