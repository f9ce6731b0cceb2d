package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// FetchBytesTotal counts body bytes pulled by the progressive fetcher
	FetchBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "blobprobe_fetch_bytes_total",
			Help: "Total response body bytes consumed by fetches",
		},
	)

	// FetchTotal counts finished fetches by outcome
	FetchTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobprobe_fetch_total",
			Help: "Total number of fetches by outcome",
		},
		[]string{"outcome"},
	)

	// ActiveDownloads tracks downloads between start and store
	ActiveDownloads = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "blobprobe_active_downloads",
			Help: "Number of downloads currently fetching or storing",
		},
	)

	// RegistryOperations counts registry calls by backend, operation and outcome
	RegistryOperations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "blobprobe_registry_operations_total",
			Help: "Total registry operations",
		},
		[]string{"backend", "op", "outcome"},
	)

	// RegistryLatency observes registry call duration
	RegistryLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "blobprobe_registry_operation_seconds",
			Help:    "Registry operation latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend", "op"},
	)

	// RegistryStoredBytes tracks the bytes held by a backend as of the last listing
	RegistryStoredBytes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "blobprobe_registry_stored_bytes",
			Help: "Bytes stored in the registry as of the last listing",
		},
		[]string{"backend"},
	)
)

func init() {
	// Register metrics with the default registry
	prometheus.MustRegister(FetchBytesTotal)
	prometheus.MustRegister(FetchTotal)
	prometheus.MustRegister(ActiveDownloads)
	prometheus.MustRegister(RegistryOperations)
	prometheus.MustRegister(RegistryLatency)
	prometheus.MustRegister(RegistryStoredBytes)
}

// Handler serves the default registry in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Outcome maps an error to the outcome label value.
func Outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
