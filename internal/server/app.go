// Package server wires the index service together: it opens the configured
// index backend, builds the provider and serves the gRPC API and the
// Prometheus metrics until a shutdown signal arrives.
package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/dmitrijs2005/aasindex/internal/buildinfo"
	"github.com/dmitrijs2005/aasindex/internal/config"
	"github.com/dmitrijs2005/aasindex/internal/filex"
	"github.com/dmitrijs2005/aasindex/internal/index"
	"github.com/dmitrijs2005/aasindex/internal/index/pebbleindex"
	"github.com/dmitrijs2005/aasindex/internal/index/sqlindex"
	"github.com/dmitrijs2005/aasindex/internal/keywords"
	"github.com/dmitrijs2005/aasindex/internal/logging"
	"github.com/dmitrijs2005/aasindex/internal/metrics"
	"github.com/dmitrijs2005/aasindex/internal/netx"
	"github.com/dmitrijs2005/aasindex/internal/provider"
	"github.com/dmitrijs2005/aasindex/internal/scan"

	gs "github.com/dmitrijs2005/aasindex/internal/server/grpc"
)

const shutdownTimeout = 5 * time.Second

type App struct {
	config   *config.Config
	logger   logging.Logger
	index    index.Index
	provider *provider.Provider
	registry *prometheus.Registry
	grpc     *gs.GRPCServer
}

// NewApp opens the index and builds every component. Logs go to out.
func NewApp(ctx context.Context, c *config.Config, out io.Writer) (*App, error) {
	logger := logging.New(c.LogLevel, c.LogFormat, out)

	dir, err := LoadKeywords(c)
	if err != nil {
		return nil, err
	}

	idx, err := OpenIndex(ctx, c, dir, logger)
	if err != nil {
		return nil, fmt.Errorf("index init error: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	sources := &scan.Factory{
		PageSize:   c.ScanPageSize,
		HTTPClient: netx.NewHTTPClient(c.HTTPTimeout, buildinfo.UserAgent()),
		S3: scan.S3Config{
			Region:       c.S3Region,
			AccessKey:    c.S3AccessKey,
			SecretKey:    c.S3SecretKey,
			BaseEndpoint: c.S3BaseEndpoint,
		},
		Logger: logger,
	}

	p := provider.New(idx, sources, provider.Options{
		Seeds:              c.Endpoints,
		DefaultInterval:    c.DefaultScanInterval,
		MaxConcurrentScans: c.MaxConcurrentScans,
		PageSize:           c.ScanPageSize,
		CacheSize:          c.CacheSize,
		CacheTTL:           c.CacheTTL,
		Logger:             logger,
		Metrics:            m,
	})

	return &App{
		config:   c,
		logger:   logger,
		index:    idx,
		provider: p,
		registry: reg,
		grpc:     gs.NewGRPCServer(c.GRPCAddr, logger, p),
	}, nil
}

// LoadKeywords reads the keyword directory file, or returns an empty
// directory when none is configured.
func LoadKeywords(c *config.Config) (*keywords.Directory, error) {
	if c.KeywordsFile == "" {
		return keywords.New(nil, c.KeywordMaxLength), nil
	}
	dir, err := keywords.LoadFile(c.KeywordsFile, c.KeywordMaxLength)
	if err != nil {
		return nil, fmt.Errorf("keywords: %w", err)
	}
	return dir, nil
}

// OpenIndex opens the backend selected by c.IndexBackend, creating local
// directories as needed.
func OpenIndex(ctx context.Context, c *config.Config, dir *keywords.Directory, logger logging.Logger) (index.Index, error) {
	switch c.IndexBackend {
	case config.BackendPebble:
		if err := filex.EnsureDir(c.PebbleDir); err != nil {
			return nil, err
		}
		idx, err := pebbleindex.Open(c.PebbleDir, dir)
		if err != nil {
			return nil, err
		}
		return idx, nil
	case config.BackendSQLite, config.BackendPostgres:
		dialect, err := c.Dialect()
		if err != nil {
			return nil, err
		}
		if c.IndexBackend == config.BackendSQLite {
			if path := sqlitePath(c.DatabaseDSN); path != "" {
				if err := filex.EnsureParentDir(path); err != nil {
					return nil, err
				}
			}
		}
		idx, err := sqlindex.Open(ctx, dialect, c.DatabaseDSN, dir, logger)
		if err != nil {
			return nil, err
		}
		return idx, nil
	}
	return nil, fmt.Errorf("unknown index backend %q", c.IndexBackend)
}

// sqlitePath extracts the database file from a SQLite DSN. In-memory
// databases have no file.
func sqlitePath(dsn string) string {
	path := strings.TrimPrefix(dsn, "file:")
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	if path == "" || path == ":memory:" || strings.HasPrefix(path, ":memory:") {
		return ""
	}
	return path
}

func (app *App) initSignalHandler(cancelFunc context.CancelFunc) {
	// Channel to catch OS signals.
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	go func() {
		<-sigs
		cancelFunc()
	}()
}

// Provider returns the provider served by the app.
func (app *App) Provider() *provider.Provider {
	return app.provider
}

// MetricsHandler serves the app's Prometheus registry.
func (app *App) MetricsHandler() http.Handler {
	return promhttp.HandlerFor(app.registry, promhttp.HandlerOpts{})
}

func (app *App) startMetricsServer(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", app.MetricsHandler())
	srv := &http.Server{
		Addr:              app.config.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		app.logger.Info(ctx, "Stopping metrics server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	app.logger.Info(ctx, "Starting metrics server", "address", app.config.MetricsAddr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server: %w", err)
	}
	return nil
}

// Run starts the provider and the servers and blocks until ctx is
// canceled, a shutdown signal arrives or a server fails.
func (app *App) Run(ctx context.Context) error {
	ctx, cancelFunc := context.WithCancel(ctx)
	defer cancelFunc()

	app.logger.Info(ctx, "Starting app...", "backend", app.config.IndexBackend)

	app.initSignalHandler(cancelFunc)

	if err := app.provider.Start(ctx); err != nil {
		_ = app.index.Close()
		return fmt.Errorf("provider start: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return app.grpc.Run(gctx)
	})
	if app.config.MetricsAddr != "" {
		g.Go(func() error {
			return app.startMetricsServer(gctx)
		})
	}
	g.Go(func() error {
		// closes Watch subscriptions so that graceful stop can finish
		<-gctx.Done()
		app.provider.Stop()
		return nil
	})

	err := g.Wait()
	app.provider.Stop()
	if cerr := app.index.Close(); cerr != nil && err == nil {
		err = cerr
	}
	app.logger.Info(context.Background(), "App stopped")
	return err
}
