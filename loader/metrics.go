package loader

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("loader")

// Cache phases.
const (
	phasePrimary  = "primary"
	phaseFallback = "fallback"
)

// Lookup results.
const (
	resultHit   = "hit"
	resultMiss  = "miss"
	resultError = "error"
)

var cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "record_loader_cache_lookups_total",
	Help: "Record cache lookups by phase and result, counted per id",
}, []string{"phase", "result"})

var liveRetrievals = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "record_loader_live_retrievals_total",
	Help: "Live retrieval outcomes by source and result, counted per id",
}, []string{"source", "result"})

var placeholders = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "record_loader_placeholders_total",
	Help: "Missing placeholders emitted by source",
}, []string{"source"})

var batchDuration = promauto.NewHistogram(prometheus.HistogramOpts{
	Name:    "record_loader_batch_duration_seconds",
	Help:    "A histogram of LoadBatch durations",
	Buckets: prometheus.ExponentialBuckets(0.001, 2, 15),
})

// observe records hits and misses of one lookup step.
func observe(vec *prometheus.CounterVec, label string, requested, found int) {
	if found > 0 {
		vec.WithLabelValues(label, resultHit).Add(float64(found))
	}
	if missed := requested - found; missed > 0 {
		vec.WithLabelValues(label, resultMiss).Add(float64(missed))
	}
}
