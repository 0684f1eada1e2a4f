// Package middleware provides HTTP middleware for the viewer's API.
//
// It includes:
//   - Request logging in W3C Extended Log Format
//   - Prometheus request metrics
//   - Configurable filtering for health check endpoints
package middleware
