package relay

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/Jack4Code/relay/config"
)

// App is an application hosted by Run.
type App interface {
	OnStart(ctx context.Context) error
	OnStop(ctx context.Context) error
	// Pipeline returns the dispatcher every HTTP request is sent through.
	// A nil or empty dispatcher runs the app without an HTTP server.
	Pipeline() (*Dispatcher, error)
}

// Run hosts app with a logger built from cfg. It blocks until SIGINT or
// SIGTERM and then shuts down gracefully.
func Run(app App, cfg config.BaseConfig) error {
	return RunWithLogger(app, cfg, NewLogger(cfg))
}

// RunWithLogger is Run with a caller-supplied logger.
func RunWithLogger(app App, cfg config.BaseConfig, logger zerolog.Logger) error {
	ctx := logger.WithContext(context.Background())

	// Start health server BEFORE calling OnStart
	// This way Nomad/K8s can see the container is alive
	health := NewHealthStatus()
	servers := []*http.Server{startServer(logger, "health", cfg.GetHealthPort(), HealthRouter(health))}

	if err := app.OnStart(ctx); err != nil {
		shutdownServers(logger, servers, 5*time.Second)
		return fmt.Errorf("failed to start app: %w", err)
	}
	health.SetHealthy(true)

	pipeline, err := app.Pipeline()
	if err != nil {
		shutdownServers(logger, servers, 5*time.Second)
		return fmt.Errorf("failed to build pipeline: %w", err)
	}

	if pipeline == nil || pipeline.Len() == 0 {
		logger.Info().Msg("no middleware configured, running in background mode")
	} else {
		httpServer := startServer(logger, "http", cfg.GetHTTPPort(), NewRouter(pipeline, logger))
		servers = append([]*http.Server{httpServer}, servers...)
	}

	if port := cfg.GetMetricsPort(); port > 0 {
		metrics := mux.NewRouter()
		metrics.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
		servers = append([]*http.Server{startServer(logger, "metrics", port, metrics)}, servers...)
	}

	health.SetReady(true)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down servers")

	// Mark as not ready (stop accepting new traffic)
	health.SetReady(false)
	shutdownServers(logger, servers, 30*time.Second)

	if err := app.OnStop(ctx); err != nil {
		logger.Error().Err(err).Msg("error during OnStop")
	}

	logger.Info().Msg("servers stopped")
	return nil
}

// NewRouter mounts h on every path. The dispatcher chain, not the router,
// decides what each request gets; the router exists so hosts can add their
// own operational endpoints beside it.
func NewRouter(h RequestHandler, logger zerolog.Logger) *mux.Router {
	router := mux.NewRouter()
	serve := Serve(h)
	router.PathPrefix("/").Handler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		serve.ServeHTTP(w, r.WithContext(logger.WithContext(r.Context())))
	}))
	return router
}

func startServer(logger zerolog.Logger, name string, port int, handler http.Handler) *http.Server {
	server := &http.Server{
		Addr:              ":" + strconv.Itoa(port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("server", name).Str("addr", server.Addr).Msg("starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Str("server", name).Msg("server error")
		}
	}()

	return server
}

// shutdownServers stops servers in order within one shared deadline.
func shutdownServers(logger zerolog.Logger, servers []*http.Server, timeout time.Duration) {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	for _, server := range servers {
		if err := server.Shutdown(ctx); err != nil {
			logger.Error().Err(err).Str("addr", server.Addr).Msg("server forced to shutdown")
		}
	}
}
