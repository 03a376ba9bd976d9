package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xenking/kart-store/internal/domain/address"
	"github.com/xenking/kart-store/internal/domain/auth"
	"github.com/xenking/kart-store/internal/domain/cart"
	"github.com/xenking/kart-store/internal/domain/coupon"
	"github.com/xenking/kart-store/internal/domain/order"
	"github.com/xenking/kart-store/internal/events"
	"github.com/xenking/kart-store/internal/handler"
	"github.com/xenking/kart-store/internal/seed"
	"github.com/xenking/kart-store/internal/storage/memory"
	"github.com/xenking/kart-store/internal/storage/postgres"
	"github.com/xenking/kart-store/pkg/health"
	"github.com/xenking/kart-store/pkg/httpmiddleware"
)

// storage is the backend selected by the configuration.
type storage struct {
	uow   order.UnitOfWork
	store order.Store
	// ping is nil for backends without a remote dependency.
	ping  health.Pinger
	close func()
}

func openStorage(ctx context.Context, lg *zap.Logger, cfg *Config) (*storage, error) {
	if cfg.InMemory {
		lg.Warn("Using in-memory storage, data is lost on exit")
		db := memory.New()
		if err := seed.Memory(ctx, db, time.Now()); err != nil {
			return nil, errors.Wrap(err, "seed memory storage")
		}
		return &storage{uow: db, store: db.Store(), close: func() {}}, nil
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}
	db := postgres.NewDB(pool)
	return &storage{uow: db, store: db.Store(), ping: db, close: pool.Close}, nil
}

func openPublisher(lg *zap.Logger, cfg EventsConfig) (order.Publisher, func(), error) {
	if cfg.AMQPURL == "" {
		lg.Info("Order events disabled")
		return events.Nop{}, func() {}, nil
	}
	pub, err := events.Dial(cfg.AMQPURL, cfg.Exchange)
	if err != nil {
		return nil, nil, errors.Wrap(err, "connect to broker")
	}
	lg.Info("Publishing order events", zap.String("exchange", cfg.Exchange))
	return pub, func() {
		if err := pub.Close(); err != nil {
			lg.Warn("Close broker connection", zap.Error(err))
		}
	}, nil
}

// server is the assembled HTTP stack.
type server struct {
	handler http.Handler
	health  *health.Health
	limiter *httpmiddleware.RateLimiter
}

func newServer(
	lg *zap.Logger,
	cfg *Config,
	st *storage,
	publisher order.Publisher,
	meterProvider metric.MeterProvider,
	tracerProvider trace.TracerProvider,
) (*server, error) {
	// Health check service.
	healthSvc := health.New()
	if st.ping != nil {
		healthSvc.AddReadinessCheck("postgres", 5*time.Second, health.PingCheck(st.ping))
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Domain services.
	orderService, err := order.NewService(st.uow, st.store.Orders(), publisher, meterProvider, tracerProvider)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}
	h := handler.New(handler.Deps{
		Products:  st.store.Products(),
		Carts:     cart.NewService(st.store.Carts(), st.store.Products()),
		Addresses: address.NewService(st.store.Addresses()),
		Coupons:   coupon.NewService(st.store.Coupons()),
		Orders:    orderService,
		Tokens:    auth.NewTokenManager([]byte(cfg.Auth.Secret), cfg.Auth.Issuer, cfg.Auth.TTL),
	})

	limiter := httpmiddleware.NewRateLimiter(httpmiddleware.RateLimitConfig{
		RPS:   cfg.RateLimit.RPS,
		Burst: cfg.RateLimit.Burst,
	})
	propagator := propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{})

	api := h.Routes(
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", httpmiddleware.HeaderRequestID},
			ExposeHeaders:    []string{httpmiddleware.HeaderRequestID},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		limiter.Middleware(),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(lg),
		httpmiddleware.Instrument("store-api", meterProvider, tracerProvider, propagator),
		httpmiddleware.LogRequests(),
	)

	// Probes bypass the API middleware so rate limiting never fails them.
	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", api)

	return &server{handler: mux, health: healthSvc, limiter: limiter}, nil
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr), zap.Bool("in_memory", cfg.InMemory))

	st, err := openStorage(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	publisher, closePublisher, err := openPublisher(lg, cfg.Events)
	if err != nil {
		return err
	}
	defer closePublisher()

	srv, err := newServer(zctx.From(ctx), cfg, st, publisher, m.MeterProvider(), m.TracerProvider())
	if err != nil {
		return err
	}
	srv.health.Start(ctx, 10*time.Second)
	srv.health.SetReady(true)

	httpServer := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           srv.handler,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.limiter.Run(gctx)
	})
	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})
	g.Go(func() error {
		// Graceful shutdown: wait for cancellation, drain, then stop.
		<-gctx.Done()
		srv.health.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		srv.health.Stop()
		return nil
	})
	return g.Wait()
}
