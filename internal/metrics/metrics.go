package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlite_viewer_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	HTTPRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlite_viewer_http_requests_in_flight",
			Help: "Number of HTTP requests currently being served",
		},
	)
)

// Page decode metrics
var (
	PagesDecodedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_pages_decoded_total",
			Help: "Total number of pages decoded",
		},
		[]string{"type", "status"}, // status: "ok", "warning", "corrupt"
	)

	PageDecodeDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlite_viewer_page_decode_duration_seconds",
			Help:    "Single page decode duration in seconds",
			Buckets: []float64{0.00001, 0.00005, 0.0001, 0.0005, 0.001, 0.005, 0.01},
		},
	)
)

// Parse pipeline metrics
var (
	ParseRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_parse_runs_total",
			Help: "Total number of full parse runs",
		},
		[]string{"status"}, // "done", "cancelled", "failed"
	)

	ParseRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlite_viewer_parse_run_duration_seconds",
			Help:    "Full parse run duration in seconds",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
	)

	ParseBatchesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_parse_batches_total",
			Help: "Total number of parse batches completed",
		},
	)

	ParseIsRunning = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlite_viewer_parse_running",
			Help: "Whether a full parse is currently running (1 = running, 0 = idle)",
		},
	)

	ParseWarningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_parse_warnings_total",
			Help: "Total number of page-level parse warnings",
		},
	)
)

// Page cache metrics
var (
	CacheHitsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_cache_hits_total",
			Help: "Total number of page cache hits",
		},
	)

	CacheMissesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_cache_misses_total",
			Help: "Total number of page cache misses",
		},
	)

	CacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_cache_evictions_total",
			Help: "Total number of page cache evictions",
		},
	)

	CacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlite_viewer_cache_entries",
			Help: "Current number of cached page summaries",
		},
	)

	CacheGeneration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlite_viewer_cache_generation",
			Help: "Current cache generation, incremented on every invalidation",
		},
	)
)

// File watcher metrics
var (
	WatcherEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_watcher_events_total",
			Help: "Total number of file watcher events received",
		},
		[]string{"type"}, // "write", "create", "remove", "rename", "chmod", "unknown"
	)

	WatcherReloadsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_watcher_reloads_total",
			Help: "Total number of watcher-triggered reloads",
		},
	)

	WatcherRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_watcher_retries_total",
			Help: "Total number of watch registration retries",
		},
	)

	WatcherErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_watcher_errors_total",
			Help: "Total number of file watcher errors",
		},
	)

	WatcherState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlite_viewer_watcher_state",
			Help: "Current watcher state (0=idle 1=watching 2=debouncing 3=reloading 4=deleted 5=retrying 6=disabled)",
		},
	)
)

// Byte reader metrics
var (
	ReaderReadsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_reader_reads_total",
			Help: "Total number of byte reader read operations",
		},
		[]string{"status"}, // "ok", "out_of_range", "io_error", "file_gone"
	)

	ReaderReopensTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_reader_reopens_total",
			Help: "Total number of transparent file handle re-opens",
		},
	)

	ReaderRetriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlite_viewer_reader_retries_total",
			Help: "Total number of read retries after stale handle errors",
		},
	)
)
