package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/blobprobe/blobprobe/internal/core"
	"github.com/blobprobe/blobprobe/internal/metrics"
	"github.com/blobprobe/blobprobe/internal/utils"
)

// newStatusMux serves health, running downloads and Prometheus metrics.
func newStatusMux(svc core.BlobService) *http.ServeMux {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"status":  "ok",
			"version": Version,
		})
	})

	mux.HandleFunc("/active", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(svc.Active())
	})

	mux.Handle("/metrics", metrics.Handler())
	return mux
}

// startMetricsServer serves newStatusMux on addr until ctx ends.
func startMetricsServer(ctx context.Context, addr string, svc core.BlobService) *http.Server {
	srv := &http.Server{
		Addr:              addr,
		Handler:           newStatusMux(svc),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		utils.Debug("Status server listening on %s", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			utils.Debug("Status server error: %v", err)
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	return srv
}
