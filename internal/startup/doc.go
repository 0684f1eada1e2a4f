// Package startup handles application initialization: configuration
// loading from the environment, the startup banner and section logging,
// route listing and shutdown logging. It keeps main small and makes the
// boot sequence readable in the logs.
package startup
