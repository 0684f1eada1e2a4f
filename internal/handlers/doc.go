// Package handlers implements the HTTP API for browsing an open
// database file: header and page inspection, manual refresh, file watch
// control and the usual health and version endpoints.
package handlers
