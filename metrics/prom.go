package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	PasteCommitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purrbin_paste_committed_total",
		Help: "no. of pastes written to storage",
	})
	PasteBytes = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purrbin_paste_bytes_total",
		Help: "bytes written to storage across all pastes",
	})
	PasteTruncated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purrbin_paste_truncated_total",
		Help: "no. of pastes cut down to the size limit",
	})
	PasteRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purrbin_paste_rejected_total",
			Help: "no. of pastes refused before commit",
		},
		[]string{"reason"},
	)
	IngestAborted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purrbin_ingest_aborted_total",
		Help: "no. of request bodies abandoned by the client",
	})
	CommitFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purrbin_commit_failures_total",
		Help: "no. of storage write failures",
	})
	SlugCollisions = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purrbin_slug_collisions_total",
		Help: "no. of generated slugs that named an existing paste",
	})
	PasteRetrieved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purrbin_paste_retrieved_total",
		Help: "no. of pastes served",
	})
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purrbin_cache_hits_total",
		Help: "no. of cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purrbin_cache_misses_total",
		Help: "no. of cache misses",
	})
	InFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "purrbin_ingest_in_flight",
		Help: "request bodies currently being buffered",
	})
	PasteSize = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purrbin_paste_size_bytes",
		Help:    "size of committed pastes",
		Buckets: prometheus.ExponentialBuckets(64, 4, 10),
	})
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "purrbin_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)
)
