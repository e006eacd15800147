package main

import (
	"database/sql"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/erazemk/nycklar/internal/api"
	"github.com/erazemk/nycklar/internal/blob"
)

// newHandler mounts the API next to the Prometheus scrape endpoint.
func newHandler(database *sql.DB, jwtSecret string, files blob.Store) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/api/", api.LoggingMiddleware(api.NewRouter(database, jwtSecret, files)))
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}
