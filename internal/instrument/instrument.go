// Package instrument holds the Prometheus metrics of the Crypter server.
package instrument

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	admissions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypter_transfer_admissions_total",
			Help: "Number of upload attempts by kind and result code",
		},
		[]string{"kind", "result"},
	)
	admittedBytes = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crypter_transfer_admitted_bytes_total",
			Help: "Ciphertext bytes accepted for storage",
		},
	)
	retrievals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "crypter_transfer_retrievals_total",
			Help: "Number of retrieval requests by operation and result code",
		},
		[]string{"operation", "result"},
	)
	integrityViolations = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crypter_storage_integrity_violations_total",
			Help: "Number of stored transfers that failed digest verification",
		},
	)
	swept = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "crypter_sweep_deleted_total",
			Help: "Number of expired transfers deleted by the sweep",
		},
	)
	storageUsed = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "crypter_storage_used_bytes",
			Help: "Bytes of ciphertext currently charged against the allocation",
		},
	)
)

func init() {
	prometheus.MustRegister(admissions)
	prometheus.MustRegister(admittedBytes)
	prometheus.MustRegister(retrievals)
	prometheus.MustRegister(integrityViolations)
	prometheus.MustRegister(swept)
	prometheus.MustRegister(storageUsed)
}

// Handler returns the /metrics exposition handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Admission counts an upload attempt.
func Admission(kind, result string) {
	admissions.WithLabelValues(kind, result).Inc()
}

// AdmittedBytes adds n to the accepted ciphertext byte counter.
func AdmittedBytes(n int64) {
	admittedBytes.Add(float64(n))
}

// Retrieval counts a retrieval request.
func Retrieval(operation, result string) {
	retrievals.WithLabelValues(operation, result).Inc()
}

// IntegrityViolation counts a digest mismatch on retrieval.
func IntegrityViolation() {
	integrityViolations.Inc()
}

// Swept adds n to the number of transfers deleted by the sweep.
func Swept(n int) {
	swept.Add(float64(n))
}

// StorageUsed records the current storage usage.
func StorageUsed(n int64) {
	storageUsed.Set(float64(n))
}
