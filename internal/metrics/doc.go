// Package metrics defines the Prometheus collectors exported by the SQLite
// viewer. All metrics are registered with the default registry via promauto
// and exposed on the metrics server's /metrics endpoint.
//
// Metric families cover HTTP traffic, page decoding, parse pipeline runs,
// the page cache, the file watcher, and the byte reader.
package metrics
