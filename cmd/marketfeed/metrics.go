package main

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/sawpanic/marketfeed/internal/telemetry"
)

// prometheusDefaultRegisterer exposes the process-wide registry telemetry
// registers against, mirroring sawpanic-cryptorun's
// internal/interfaces/http.InitializeMetrics which registers its
// MetricsRegistry globally rather than per-server-instance.
func prometheusDefaultRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

// serveMetrics runs a small read-only HTTP server exposing /metrics and
// /healthz. Grounded on sawpanic-cryptorun's internal/interfaces/http.Server
// (mux.Router, a 404 handler, read/write timeouts), trimmed to the two
// routes marketfeed needs.
func serveMetrics(addr string) {
	router := mux.NewRouter()
	router.Handle("/metrics", telemetry.Handler()).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	}).Methods(http.MethodGet)

	srv := &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	log.Info().Str("addr", addr).Msg("serving /metrics and /healthz")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Error().Err(err).Msg("metrics server stopped")
	}
}
