// Package main provides the entry point for the SQLite Viewer service.
//
// SQLite Viewer is a read-only page browser for SQLite database files.
// It opens a database file directly at the byte level, decodes every
// page's b-tree or freelist structure, and serves the results over a
// JSON API without ever going through the SQL layer.
//
// # Application Lifecycle
//
// The application follows a structured initialization sequence:
//
//  1. Configuration Loading: Reads environment variables and validates
//     the database file path
//  2. Session Initialization: Opens the file and validates the 100-byte
//     database header
//  3. Background Parse: Decodes all pages in batches, populating the
//     page cache while the API is already serving
//  4. File Watch: Subscribes to filesystem notifications so external
//     writes trigger a debounced reload
//  5. HTTP Server Setup: Configures routes, middleware, and starts the
//     API and metrics servers
//  6. Graceful Shutdown: Handles SIGINT/SIGTERM, stops all components
//     cleanly
//
// # Background Services
//
// Several goroutines run throughout the application lifecycle:
//
//   - Parse pipeline: decodes pages batch by batch on open and reload
//   - File watcher: debounces modification events into reloads
//   - Session event consumer: logs reloads, watch transitions and
//     failures
//
// # Related Packages
//
//   - [sqlite-viewer/internal/session]: per-file façade tying the engine together
//   - [sqlite-viewer/internal/sqlite]: header and page decoding
//   - [sqlite-viewer/internal/parse]: batched background parse pipeline
//   - [sqlite-viewer/internal/cache]: LRU page result cache
//   - [sqlite-viewer/internal/watcher]: debounced file watch state machine
//   - [sqlite-viewer/internal/handlers]: HTTP request handlers
//   - [sqlite-viewer/internal/middleware]: HTTP middleware (logging, metrics)
//   - [sqlite-viewer/internal/startup]: Configuration and initialization
package main
