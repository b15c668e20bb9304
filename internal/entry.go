// Package internal provides the main application initialization and runtime logic.
package internal

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/starford/folio/internal/api"
	"github.com/starford/folio/internal/events"
	"github.com/starford/folio/internal/everything"
	"github.com/starford/folio/internal/fileops"
	"github.com/starford/folio/internal/kvstore"
	"github.com/starford/folio/internal/library"
	"github.com/starford/folio/internal/mcpserver"
	"github.com/starford/folio/internal/metrics"
)

// runtime is everything Run and RunMCP share.
type runtime struct {
	svc     *library.Service
	broker  *events.Broker
	watched []kvstore.Watched
	closers []func() error
}

func (rt *runtime) close(logger *slog.Logger) {
	rt.svc.Close()
	rt.broker.Close()
	for _, c := range rt.closers {
		if err := c(); err != nil {
			logger.Warn("close failed", slog.String("error", err.Error()))
		}
	}
}

func newApplication(opts []Option) (*application, error) {
	app := &application{}
	for _, opt := range opts {
		opt(app)
	}
	if app.config == nil {
		return nil, fmt.Errorf("config is required")
	}
	return app, nil
}

func newLogger(w io.Writer, level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
	return logger
}

// build opens the stores, composes the library and loads its state.
func build(ctx context.Context, app *application, logger *slog.Logger) (*runtime, error) {
	cfg := app.config
	rt := &runtime{}

	var settingsStore, listsStore kvstore.Store
	switch cfg.Storage.Driver {
	case DriverSQLite:
		db, err := kvstore.OpenSQLite(cfg.Storage.SQLitePath)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		rt.closers = append(rt.closers, db.Close)
		settingsStore = db.Store(kvstore.SettingsStore)
		listsStore = db.Store(kvstore.ListsStore)
	default:
		sf, err := kvstore.OpenFile(cfg.Storage.Dir, kvstore.SettingsStore)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		lf, err := kvstore.OpenFile(cfg.Storage.Dir, kvstore.ListsStore)
		if err != nil {
			return nil, fmt.Errorf("init storage: %w", err)
		}
		settingsStore, listsStore = sf, lf
		if cfg.Storage.Watch {
			rt.watched = []kvstore.Watched{
				{Name: kvstore.SettingsStore, Store: sf},
				{Name: kvstore.ListsStore, Store: lf},
			}
		}
	}

	backend := app.backend
	if backend == nil {
		var opts []everything.Option
		if token := cfg.Backend.Token; token != "" {
			opts = append(opts, everything.WithTokenProvider(func(context.Context) (string, error) {
				return token, nil
			}))
		}
		backend = everything.New(cfg.Backend.URL, cfg.Backend.Timeout, logger, opts...)
	}
	ops := app.ops
	if ops == nil {
		ops = fileops.NewLocal(logger)
	}

	rt.broker = events.NewBroker(250 * time.Millisecond)
	rt.svc = library.New(settingsStore, listsStore, backend, ops, rt.broker, logger, library.Config{
		WriteTimeout:   cfg.Storage.WriteTimeout,
		Debounce:       cfg.Search.Debounce,
		FetchCount:     cfg.Search.FetchCount,
		HighlightsPage: cfg.Search.HighlightsPage,
		ScanLimit:      cfg.Search.ScanLimit,
		Reader:         cfg.Reader.Program,
	})
	if err := rt.svc.Start(ctx); err != nil {
		rt.close(logger)
		return nil, fmt.Errorf("start library: %w", err)
	}
	return rt, nil
}

// newHandler builds the root chi router: probes, metrics and the API.
func newHandler(cfg *Config, rt *runtime) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(metrics.Middleware())

	// Health check endpoints (unauthenticated).
	r.Get("/health/live", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Get("/health/ready", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if !rt.svc.Lists().Loaded() || !rt.svc.Settings().Loaded() {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"status":"loading"}`))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	r.Handle("/metrics", promhttp.Handler())

	// Mount API routes under /api.
	r.Mount("/api", api.NewRouter(rt.svc, cfg.Auth.AuthEnabled(), cfg.Auth.Token, rt.broker))
	return r
}

// Run starts the application with the given options.
func Run(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	cfg := app.config

	// Initialize structured JSON logger.
	logger := newLogger(os.Stdout, cfg.App.LogLevel)

	logger.Info("Configuration loaded",
		slog.String("http_address", cfg.App.HTTP.Address()),
		slog.String("storage_driver", cfg.Storage.Driver),
		slog.String("backend_url", cfg.Backend.URL),
		slog.String("log_level", cfg.App.LogLevel.String()))

	rt, err := build(ctx, app, logger)
	if err != nil {
		return err
	}
	defer rt.close(logger)

	httpServer := &http.Server{
		Addr:    cfg.App.HTTP.Address(),
		Handler: newHandler(cfg, rt),
	}

	logger.Info("Server starting...", slog.String("http_address", cfg.App.HTTP.Address()))

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	g, gCtx := errgroup.WithContext(ctx)

	// Reload lists and settings edited by other processes.
	if len(rt.watched) > 0 {
		g.Go(func() error {
			err := kvstore.Watch(gCtx, logger, func(name string) {
				if err := rt.svc.Reload(gCtx, name); err != nil {
					logger.Warn("store reload failed", slog.String("store", name), slog.String("error", err.Error()))
				}
			}, rt.watched...)
			if err != nil {
				return fmt.Errorf("store watcher: %w", err)
			}
			return nil
		})
	}

	// Start HTTP server.
	g.Go(func() error {
		logger.Info("Starting HTTP server", slog.String("address", cfg.App.HTTP.Address()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server error: %w", err)
		}
		return nil
	})

	// Handle shutdown signals.
	g.Go(func() error {
		quit := make(chan os.Signal, 1)
		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(quit)

		select {
		case sig := <-quit:
			logger.Info("Received shutdown signal", slog.String("signal", sig.String()))
		case <-gCtx.Done():
			logger.Info("Context cancelled, initiating shutdown")
		}

		logger.Info("Shutting down server...")

		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", slog.String("error", err.Error()))
		}
		if err := rt.svc.Flush(shutdownCtx); err != nil {
			logger.Error("pending writes not flushed", slog.String("error", err.Error()))
		}
		cancel()
		return nil
	})

	if err := g.Wait(); err != nil {
		logger.Error("Application error", slog.String("error", err.Error()))
		return err
	}

	logger.Info("Server stopped successfully")
	return nil
}

// RunMCP serves the MCP tools on stdin/stdout. Logs go to stderr because
// stdout carries the protocol.
func RunMCP(ctx context.Context, opts ...Option) error {
	app, err := newApplication(opts)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, app.config.App.LogLevel)

	rt, err := build(ctx, app, logger)
	if err != nil {
		return err
	}
	defer rt.close(logger)

	logger.Info("MCP server starting on stdio")
	return mcpserver.New(rt.svc).ServeStdio()
}
