// Package app wires the stockroom components together.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/stockroom/internal/catalog"
	"github.com/abgdnv/stockroom/internal/config"
	"github.com/abgdnv/stockroom/internal/images"
	"github.com/abgdnv/stockroom/internal/inventory"
	"github.com/abgdnv/stockroom/internal/sales"
	"github.com/abgdnv/stockroom/internal/store"
	grpcImpl "github.com/abgdnv/stockroom/internal/transport/grpc"
	"github.com/abgdnv/stockroom/internal/transport/rest"
	"github.com/abgdnv/stockroom/pkg/bootstrap"
	pkgconfig "github.com/abgdnv/stockroom/pkg/config"
	"github.com/abgdnv/stockroom/pkg/messaging"
	natsclient "github.com/abgdnv/stockroom/pkg/nats"
	"github.com/abgdnv/stockroom/pkg/server"
	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"google.golang.org/grpc"
)

type Dependencies struct {
	Store          store.Store
	Images         *images.LocalStorage
	Catalog        catalog.CatalogService
	Sales          sales.SalesService
	Inventory      inventory.InventoryReporter
	Health         *grpcImpl.HealthMonitor
	MaxUploadBytes int64
	AllowedOrigins []string
	// MetricsHandler serves the Prometheus scrape endpoint at MetricsPath when set.
	MetricsHandler http.Handler
	MetricsPath    string
	Logger         *slog.Logger
}

// NewStore builds the store selected by store.driver. The returned func releases its resources.
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.Store, func(), error) {
	switch cfg.Store.Driver {
	case pkgconfig.StoreDriverFile:
		logger.Info("Using file store", slog.String("path", cfg.Store.File.Path), slog.Bool("strict", cfg.Store.Strict))
		return store.NewFileStore(cfg.Store.File.Path, cfg.Store.Strict, logger), func() {}, nil
	case pkgconfig.StoreDriverMemory:
		logger.Warn("Using in-memory store, data will not survive a restart")
		return store.NewMemoryStore(), func() {}, nil
	case pkgconfig.StoreDriverPostgres:
		if err := store.Migrate(cfg.Database.URL); err != nil {
			return nil, nil, err
		}
		dbPool, err := bootstrap.NewDbPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Successfully connected to the database!")
		return store.NewPgStore(dbPool, cfg.Store.Strict, logger), dbPool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown store driver: %q", cfg.Store.Driver)
	}
}

// NewPublisher connects to NATS JetStream when enabled and guards it with a circuit breaker.
// With NATS disabled events are discarded.
func NewPublisher(ctx context.Context, cfg *config.Config, logger *slog.Logger) (messaging.Publisher, func(), error) {
	if !cfg.NATS.Enabled {
		logger.Info("NATS disabled, sale events will not be published")
		return messaging.NoopPublisher{}, func() {}, nil
	}
	nc, err := natsclient.NewClient(cfg.NATS.Url, cfg.NATS.Timeout)
	if err != nil {
		return nil, nil, err
	}
	js, err := natsclient.NewJetStreamContext(nc)
	if err != nil {
		return nil, nil, err
	}
	if err := natsclient.EnsureStream(ctx, js, cfg.NATS.Stream, messaging.SalesRecordedSubject); err != nil {
		nc.Close()
		return nil, nil, err
	}
	logger.Info("Connected to NATS", slog.String("url", cfg.NATS.Url), slog.String("stream", cfg.NATS.Stream))

	closeFn := func() {
		if err := nc.Drain(); err != nil {
			logger.Error("Failed to drain NATS connection", slog.Any("error", err))
		}
	}
	return messaging.NewBreakerPublisher(natsclient.NewNatsPublisher(js), cfg.Resilience.CircuitBreaker), closeFn, nil
}

func SetupDependencies(st store.Store, img *images.LocalStorage, publisher messaging.Publisher,
	cfg *config.Config, logger *slog.Logger) *Dependencies {
	return &Dependencies{
		Store:          st,
		Images:         img,
		Catalog:        catalog.NewService(st, img, logger),
		Sales:          sales.NewService(st, publisher, logger),
		Inventory:      inventory.NewReporter(st),
		Health:         grpcImpl.NewHealthMonitor(st, cfg.GRPC.HealthInterval, logger),
		MaxUploadBytes: cfg.Images.MaxBytes,
		AllowedOrigins: cfg.HTTPServer.AllowedOrigins,
		MetricsPath:    cfg.Telemetry.Metrics.Path,
		Logger:         logger,
	}
}

// SetupHttpHandler builds the router with middleware and tracing.
// Used by E2E tests to run the API without a listening server.
func SetupHttpHandler(deps *Dependencies) http.Handler {
	mux := server.NewChiRouter(deps.Logger, deps.AllowedOrigins)
	wireRoutes(mux, deps)
	return otelhttp.NewHandler(mux, "stockroom-http")
}

// wireRoutes sets up the API routes and the uploaded image files.
func wireRoutes(mux *chi.Mux, deps *Dependencies) {
	handler := rest.NewHandler(deps.Catalog, deps.Sales, deps.Inventory, deps.Store, deps.MaxUploadBytes, deps.Logger)
	handler.RegisterRoutes(mux)
	mux.Handle(deps.Images.URLPrefix()+"*", deps.Images.Handler())
	if deps.MetricsHandler != nil {
		mux.Handle(deps.MetricsPath, deps.MetricsHandler)
	}
}

// SetupHttpServer creates and configures the HTTP server.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}

// SetupGrpcServer creates the gRPC server exposing the health service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(reflectionEnabled, deps.Health.Register)
}
