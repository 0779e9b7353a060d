// Package metrics provides counters, Prometheus collectors, and HTTP
// handlers for exporting searchbox runtime metrics.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// 1. Internal State (Source of Truth)
var (
	documentsIndexed int64
	documentsDeleted int64
	searches         int64
	storageErrors    int64
	pingFailures     int64
	ready            int64
	lastPing         int64
)

const counterInc int64 = 1

// 2. Prometheus Collectors
var (
	promIndexed = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "searchbox_documents_indexed_total",
			Help: "Total documents indexed",
		},
	)
	promDeleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "searchbox_documents_deleted_total",
			Help: "Total documents deleted",
		},
	)
	promSearches = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "searchbox_searches_total",
			Help: "Total search requests served",
		},
	)
	promStorageErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "searchbox_storage_errors_total",
			Help: "Total failed Elasticsearch operations",
		},
	)
	promPingFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "searchbox_ping_failures_total",
			Help: "Total failed Elasticsearch health probes",
		},
	)
	promStorageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "searchbox_storage_op_duration_seconds",
			Help: "Duration of Elasticsearch operations",
			Buckets: []float64{
				0.005,
				0.01,
				0.025,
				0.05,
				0.1,
				0.25,
				0.5,
				1,
				2.5,
				5,
				10,
			},
		},
		[]string{"op"},
	)
	promReady = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "searchbox_ready",
			Help: "1 when the search engine dependency is reachable",
		},
	)
	promLastPing = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "searchbox_last_successful_ping_timestamp_seconds",
			Help: "Unix timestamp of the last successful Elasticsearch probe",
		},
	)
)

func init() {
	prometheus.MustRegister(
		promIndexed,
		promDeleted,
		promSearches,
		promStorageErrors,
		promPingFailures,
		promStorageDuration,
		promReady,
		promLastPing,
	)
}

// 3. Public API (Updates both Atomic and Prometheus)

// IncDocumentIndexed increments the number of documents indexed.
func IncDocumentIndexed() {
	atomic.AddInt64(&documentsIndexed, counterInc)
	promIndexed.Inc()
}

// IncDocumentDeleted increments the number of documents deleted.
func IncDocumentDeleted() {
	atomic.AddInt64(&documentsDeleted, counterInc)
	promDeleted.Inc()
}

// IncSearch increments the counter for served search requests.
func IncSearch() {
	atomic.AddInt64(&searches, counterInc)
	promSearches.Inc()
}

// IncStorageError increments the counter for failed Elasticsearch operations.
func IncStorageError() {
	atomic.AddInt64(&storageErrors, counterInc)
	promStorageErrors.Inc()
}

// IncPingFailure increments the counter for failed health probes.
func IncPingFailure() {
	atomic.AddInt64(&pingFailures, counterInc)
	promPingFailures.Inc()
}

// ObserveStorageOp records the duration (in seconds) of an Elasticsearch
// operation in the Prometheus histogram.
func ObserveStorageOp(op string, seconds float64) {
	promStorageDuration.WithLabelValues(op).Observe(seconds)
}

// SetReady records whether the search engine dependency is reachable.
func SetReady(ok bool) {
	v := int64(0)
	if ok {
		v = 1
	}
	atomic.StoreInt64(&ready, v)
	promReady.Set(float64(v))
}

// SetLastPing stores the provided time as the last successful probe and
// updates the corresponding Prometheus gauge.
func SetLastPing(t time.Time) {
	atomic.StoreInt64(&lastPing, t.Unix())
	promLastPing.Set(float64(t.Unix()))
}

// 4. JSON Snapshot Struct (For /status)

// StatsSnapshot is a snapshot of metrics for JSON encoding.
type StatsSnapshot struct {
	DocumentsIndexed int64  `json:"documents_indexed"`
	DocumentsDeleted int64  `json:"documents_deleted"`
	Searches         int64  `json:"searches"`
	StorageErrors    int64  `json:"storage_errors"`
	PingFailures     int64  `json:"ping_failures"`
	Ready            bool   `json:"ready"`
	LastPing         int64  `json:"last_ping_timestamp"`
	LastPingHuman    string `json:"last_ping_human"`
}

// GetSnapshot returns a StatsSnapshot with the current values of all
// internal counters and timestamps.
func GetSnapshot() StatsSnapshot {
	ts := atomic.LoadInt64(&lastPing)
	lastPingHuman := time.Unix(ts, 0).Format(time.RFC3339)
	return StatsSnapshot{
		DocumentsIndexed: atomic.LoadInt64(&documentsIndexed),
		DocumentsDeleted: atomic.LoadInt64(&documentsDeleted),
		Searches:         atomic.LoadInt64(&searches),
		StorageErrors:    atomic.LoadInt64(&storageErrors),
		PingFailures:     atomic.LoadInt64(&pingFailures),
		Ready:            atomic.LoadInt64(&ready) == 1,
		LastPing:         ts,
		LastPingHuman:    lastPingHuman,
	}
}

// 5. Handlers

// PromHandler returns an HTTP handler that exposes Prometheus metrics.
func PromHandler() http.Handler { return promhttp.Handler() }

// JSONHandler returns an HTTP handler that serves the current metrics as
// a JSON-encoded StatsSnapshot.
func JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(GetSnapshot())
	})
}
