// Package app wires configuration, storage, pricing and the HTTP server.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/xenking/dynamic-discounts/internal/domain/cart"
	"github.com/xenking/dynamic-discounts/internal/domain/catalog"
	"github.com/xenking/dynamic-discounts/internal/domain/discount"
	"github.com/xenking/dynamic-discounts/internal/handler"
	"github.com/xenking/dynamic-discounts/internal/storage/postgres"
	"github.com/xenking/dynamic-discounts/internal/storage/wordpress"
	"github.com/xenking/dynamic-discounts/pkg/health"
	"github.com/xenking/dynamic-discounts/pkg/httpmiddleware"
)

// CatalogStore is the catalog as seen by pricing.
type CatalogStore interface {
	catalog.Repository
	discount.Taxonomy
}

// Stores is an opened storage backend.
type Stores struct {
	Rules   discount.Repository
	Catalog CatalogStore
	// Ping backs the readiness probe.
	Ping  health.CheckFunc
	Close func()
}

// wordpressTaxonomies are the WooCommerce taxonomies registered even before
// they hold terms.
var wordpressTaxonomies = map[string]string{
	discount.CategoryNamespace: "Product categories",
	discount.TagNamespace:      "Product tags",
}

// OpenStores connects to the configured backend and brings its schema up to
// date.
func OpenStores(ctx context.Context, cfg *Config) (*Stores, error) {
	switch cfg.Backend {
	case BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, errors.Wrap(err, "create db pool")
		}
		if err := postgres.RunMigrations(ctx, pool); err != nil {
			pool.Close()
			return nil, errors.Wrap(err, "run migrations")
		}
		return &Stores{
			Rules:   postgres.NewRuleRepository(pool),
			Catalog: postgres.NewCatalogRepository(pool),
			Ping:    pool.Ping,
			Close:   pool.Close,
		}, nil

	case BackendWordPress:
		db, err := wordpress.Open(cfg.WordPress.DSN)
		if err != nil {
			return nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, errors.Wrap(err, "get wordpress sql db")
		}
		tables := wordpress.NewTables(cfg.WordPress.TablePrefix)
		if err := wordpress.Migrate(ctx, db, tables); err != nil {
			_ = sqlDB.Close()
			return nil, errors.Wrap(err, "migrate wordpress")
		}
		return &Stores{
			Rules:   wordpress.NewRuleRepository(db, tables),
			Catalog: wordpress.NewCatalogRepository(db, tables, wordpressTaxonomies),
			Ping:    sqlDB.PingContext,
			Close:   func() { _ = sqlDB.Close() },
		}, nil

	default:
		return nil, errors.Errorf("unknown backend %q", cfg.Backend)
	}
}

// NewHTTPHandler assembles the pricing services over stores and returns the
// instrumented HTTP surface, probes included.
func NewHTTPHandler(
	lg *zap.Logger,
	cfg *Config,
	stores *Stores,
	healthSvc *health.Health,
	tp trace.TracerProvider,
	mp metric.MeterProvider,
) (http.Handler, error) {
	resolver, err := discount.NewResolver(stores.Rules, stores.Catalog,
		discount.WithBrandNamespaces(cfg.BrandNamespaces...),
		discount.WithTracerProvider(tp),
		discount.WithMeterProvider(mp),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create resolver")
	}
	rules := discount.NewService(stores.Rules, stores.Catalog, resolver)

	h := handler.NewHandler(stores.Catalog, resolver, rules, discount.CurrencyFormatter(cfg.Currency))

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	h.Register(mux)

	return otelhttp.NewHandler(
		httpmiddleware.Wrap(mux,
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(lg),
			httpmiddleware.Recovery(),
			httpmiddleware.LogRequests(),
			httpmiddleware.Scope(cart.NewPass),
		),
		"discounts",
		otelhttp.WithTracerProvider(tp),
		otelhttp.WithMeterProvider(mp),
	), nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("backend", cfg.Backend),
	)

	stores, err := OpenStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer stores.Close()

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck(cfg.Backend, 5*time.Second, stores.Ping)
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(cfg.Health.MaxGoroutines))
	healthSvc.AddLivenessCheck("gc_pause", time.Second, health.GCMaxPauseCheck(cfg.Health.MaxGCPause))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	routes, err := NewHTTPHandler(zctx.From(ctx), cfg, stores, healthSvc, m.TracerProvider(), m.MeterProvider())
	if err != nil {
		healthSvc.Stop()
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           routes,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}
