// Package logging provides a simple leveled logging interface for the
// SQLite viewer engine and its serving surface.
//
// It supports the following log levels:
//   - DEBUG: Verbose debugging information (page decode detail, watcher events)
//   - INFO: General operational messages
//   - WARN: Warning conditions (recoverable parse anomalies, watch retries)
//   - ERROR: Error conditions
//   - FATAL: Fatal errors that terminate the application
//
// The log level is configured via the LOG_LEVEL environment variable.
package logging
