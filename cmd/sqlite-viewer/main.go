package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"sqlite-viewer/internal/handlers"
	"sqlite-viewer/internal/logging"
	"sqlite-viewer/internal/memory"
	"sqlite-viewer/internal/middleware"
	"sqlite-viewer/internal/parse"
	"sqlite-viewer/internal/session"
	"sqlite-viewer/internal/startup"
	"sqlite-viewer/internal/watcher"
)

func main() {
	startTime := time.Now()

	// Configure the runtime memory limit before anything allocates
	memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}

	// Open the database session
	sessStart := time.Now()
	watchCfg := watcher.DefaultConfig()
	watchCfg.Debounce = config.WatchDebounce
	sess, err := session.Open(config.DatabasePath, session.Options{
		CacheSize: config.CacheSize,
		BatchSize: config.ParseBatchSize,
		Watch:     watchCfg,
	})
	if err != nil {
		startup.LogFatal("Failed to open database: %v", err)
	}
	defer sess.Close()
	startup.LogSessionOpened(sess.Header().PageSize, sess.PageCount(), time.Since(sessStart))

	// Initialize handlers
	h := handlers.New(sess)

	// Consume session events (reloads, watch transitions, failures)
	go consumeSessionEvents(sess)

	// Start the initial full parse in the background (non-blocking)
	startup.LogParseStarted(sess.PageCount())
	go runInitialParse(sess, h)

	// Start the file watcher
	if config.WatchEnabled {
		if err := sess.StartWatch(); err != nil {
			logging.Error("Failed to start file watch: %v", err)
		}
	}

	// Setup router
	router := setupRouter(h)

	// Log routes dynamically
	startup.LogHTTPRoutes(router, config.LogHealthChecks)

	// Apply metrics middleware
	meteredHandler := middleware.Metrics(middleware.DefaultMetricsConfig())(router)

	// Apply logging middleware
	loggingConfig := middleware.DefaultLoggingConfig()
	loggingConfig.LogHealthChecks = config.LogHealthChecks
	handler := middleware.Logger(loggingConfig)(meteredHandler)

	// Create server
	srv := &http.Server{
		Addr:         ":" + config.Port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Metrics server on its own port
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metricsMux := http.NewServeMux()
		metricsMux.Handle("/metrics", promhttp.Handler())
		metricsSrv = &http.Server{
			Addr:         ":" + config.MetricsPort,
			Handler:      metricsMux,
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != http.ErrServerClosed {
				logging.Error("Metrics server error: %v", err)
			}
		}()
	}

	// Start graceful shutdown handler
	go handleShutdown(srv, metricsSrv, sess)

	// Start server
	startup.LogServerStarted(startup.ServerConfig{
		Port:            config.Port,
		MetricsPort:     config.MetricsPort,
		MetricsEnabled:  config.MetricsEnabled,
		StartupDuration: time.Since(startTime),
	})
	if err := srv.ListenAndServe(); err != http.ErrServerClosed {
		startup.LogFatal("Server error: %v", err)
	}
}

func setupRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()

	// Health check and version routes
	r.HandleFunc("/health", h.HealthCheck).Methods("GET")
	r.HandleFunc("/healthz", h.HealthCheck).Methods("GET")
	r.HandleFunc("/livez", h.LivenessCheck).Methods("GET", "HEAD")
	r.HandleFunc("/readyz", h.ReadinessCheck).Methods("GET")
	r.HandleFunc("/version", h.GetVersion).Methods("GET")

	// API routes
	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/database", h.GetDatabaseInfo).Methods("GET")
	api.HandleFunc("/pages", h.ListPages).Methods("GET")
	api.HandleFunc("/page/{number}", h.GetPage).Methods("GET")
	api.HandleFunc("/refresh", h.PostRefresh).Methods("POST")
	api.HandleFunc("/watch", h.GetWatchStatus).Methods("GET")
	api.HandleFunc("/watch/start", h.PostWatchStart).Methods("POST")
	api.HandleFunc("/watch/stop", h.PostWatchStop).Methods("POST")

	return r
}

// runInitialParse drains the first full parse and flips the readiness
// gate when it completes.
func runInitialParse(sess *session.Session, h *handlers.Handlers) {
	events, err := sess.StartFullParse(context.Background())
	if err != nil {
		logging.Error("Failed to start initial parse: %v", err)
		return
	}
	var warnings int
	for ev := range events {
		switch ev.Kind {
		case parse.EventProgress:
			logging.Debug("Parse progress: %d/%d pages (%v elapsed)",
				ev.Progress.Done, ev.Progress.Total, ev.Progress.Elapsed)
		case parse.EventWarning:
			warnings++
			logging.Warn("Page %d: %s", ev.PageNumber, ev.Text)
		case parse.EventFailed:
			logging.Error("Initial parse failed: %v", ev.Err)
			return
		case parse.EventDone:
			logging.Info("Initial parse complete (%d warnings)", warnings)
		}
	}
	h.SetParseComplete()
}

// consumeSessionEvents logs the session notification stream.
func consumeSessionEvents(sess *session.Session) {
	for ev := range sess.Events() {
		switch ev.Kind {
		case session.EventReloadStarted:
			logging.Info("File changed, reloading...")
		case session.EventReloadFinished:
			logging.Info("Reload complete")
		case session.EventWatchState:
			logging.Info("Watch state: %s", ev.WatchState)
		case session.EventFailed:
			if ev.Recoverable {
				logging.Warn("Session error (%s): %s", ev.ErrorKind, ev.Message)
			} else {
				logging.Error("Session error (%s): %s", ev.ErrorKind, ev.Message)
			}
		case session.EventParse:
			if ev.Parse.Kind == parse.EventWarning {
				logging.Warn("Page %d: %s", ev.Parse.PageNumber, ev.Parse.Text)
			}
		}
	}
}

func handleShutdown(srv, metricsSrv *http.Server, sess *session.Session) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	startup.LogShutdownInitiated(sig.String())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	startup.LogShutdownStep("Closing database session")
	if err := sess.Close(); err != nil {
		logging.Warn("Session close error: %v", err)
	} else {
		startup.LogShutdownStepComplete("Database session closed")
	}

	if metricsSrv != nil {
		startup.LogShutdownStep("Shutting down metrics server")
		if err := metricsSrv.Shutdown(ctx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Shutting down HTTP server")
	if err := srv.Shutdown(ctx); err != nil {
		logging.Warn("Server shutdown error: %v", err)
	} else {
		startup.LogShutdownStepComplete("HTTP server stopped")
	}

	startup.LogShutdownComplete()
}
