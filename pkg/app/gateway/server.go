// Package gateway implements app.Runner for the asset gateway process.
package gateway

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/uptrace/bun"
	"go.uber.org/zap"

	apphttp "github.com/nexchain-labs/asset-gateway/pkg/app/http"
	"github.com/nexchain-labs/asset-gateway/pkg/auth"
	"github.com/nexchain-labs/asset-gateway/pkg/bridge"
	"github.com/nexchain-labs/asset-gateway/pkg/config"
	"github.com/nexchain-labs/asset-gateway/pkg/dex"
	"github.com/nexchain-labs/asset-gateway/pkg/feerouter"
	"github.com/nexchain-labs/asset-gateway/pkg/ledger"
	"github.com/nexchain-labs/asset-gateway/pkg/pgutil"
	"github.com/nexchain-labs/asset-gateway/pkg/store"
	"github.com/nexchain-labs/asset-gateway/pkg/swap"
)

const (
	defaultRequestTimeout = 60 * time.Second
	readyProbeTimeout     = 5 * time.Second
)

// Server holds cfg to init the gateway server.
type Server struct {
	cfg *config.Config
}

// NewServer initializes a new gateway server.
func NewServer(cfg *config.Config) *Server {
	return &Server{cfg: cfg}
}

// Run wires the clients, store and engines together, starts the background
// workers and serves the HTTP API. It blocks until an OS shutdown signal is
// received or the server fails.
func (s *Server) Run() error {
	if s.cfg == nil {
		return fmt.Errorf("gateway config is nil")
	}
	cfg := s.cfg

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger, err := config.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("setup logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("Starting asset gateway",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
	)

	db, err := pgutil.ConnectDB(&cfg.Database)
	if err != nil {
		return fmt.Errorf("connect db: %w", err)
	}
	defer func() { _ = db.Close() }()
	logger.Info("Connected to database",
		zap.String("host", cfg.Database.Host),
		zap.String("database", cfg.Database.Database),
	)

	gatewayStore := store.NewStore(db)
	ledgerClient := ledger.NewClient(&cfg.Ledger, logger)
	dexClient := dex.NewClient(&cfg.DEX, logger)

	verifiers := bridge.BuildVerifiers(cfg.Bridge.VerifierRPCs, logger)
	defer closeVerifiers(verifiers)

	feeRouter := feerouter.NewRouter(&cfg.Fees, ledgerClient, gatewayStore, gatewayStore, logger)
	swapEngine := swap.NewEngine(&cfg.Swap, ledgerClient, dexClient, feeRouter, gatewayStore, logger)
	bridgeEngine := bridge.NewEngine(&cfg.Bridge, ledgerClient, feeRouter, gatewayStore, verifiers, logger)

	stopWorkers := s.startWorkers(feeRouter, swapEngine, gatewayStore, logger)
	// Called again explicitly after ServeAndWait for deterministic shutdown
	// order; the defer is a safety net for early error returns.
	defer stopWorkers()

	router := s.setupRouter(db, ledgerClient, feeRouter, swapEngine, bridgeEngine, logger)

	err = apphttp.ServeAndWait(ctx, router, logger, &cfg.Server)

	// Stop background work before the deferred DB close kicks in.
	stopWorkers()

	return err
}

// startWorkers starts the fee outbox worker plus the optional rate refresher
// and retention archiver, returning an idempotent stopper.
func (s *Server) startWorkers(
	feeRouter *feerouter.Router,
	swapEngine *swap.Engine,
	gatewayStore store.Store,
	logger *zap.Logger,
) func() {
	cfg := s.cfg

	outbox := feerouter.NewOutboxWorker(feeRouter, &cfg.Fees, logger)
	outbox.Start()

	var refresher *swap.Refresher
	if cfg.Swap.RefreshInterval > 0 {
		refresher = swap.NewRefresher(swapEngine, cfg.Swap.RefreshInterval, logger)
		refresher.Start()
	}

	var archiver *store.Archiver
	if cfg.Retention.Enabled {
		archiver = store.NewArchiver(gatewayStore, &cfg.Retention, logger)
		archiver.Start()
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			if refresher != nil {
				refresher.Stop()
			}
			if archiver != nil {
				archiver.Stop()
			}
			outbox.Stop()
		})
	}
}

func (s *Server) setupRouter(
	db *bun.DB,
	ledgerClient *ledger.Client,
	feeRouter *feerouter.Router,
	swapEngine *swap.Engine,
	bridgeEngine *bridge.Engine,
	logger *zap.Logger,
) http.Handler {
	cfg := s.cfg

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(defaultRequestTimeout))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	r.Get("/ready", func(w http.ResponseWriter, req *http.Request) {
		probeCtx, cancel := context.WithTimeout(req.Context(), readyProbeTimeout)
		defer cancel()

		if err := db.PingContext(probeCtx); err != nil {
			logger.Warn("Readiness probe failed on database", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		if err := ledgerClient.Health(probeCtx); err != nil {
			logger.Warn("Readiness probe failed on ledger", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("NOT_READY"))
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("READY"))
	})

	if cfg.Monitoring.Enabled {
		r.Handle("/metrics", promhttp.Handler())
		logger.Info("Metrics enabled", zap.Int("port", cfg.Monitoring.MetricsPort))
	}

	authMW := auth.Middleware(auth.NewJWTValidator(cfg.JWKS.URL, cfg.JWKS.Issuer), logger)

	r.Route("/api/v1", func(r chi.Router) {
		feerouter.RegisterRoutes(r, feeRouter, authMW, logger)
		swap.RegisterRoutes(r, swapEngine, logger)
		bridge.RegisterRoutes(r, bridgeEngine, logger)
	})

	return r
}

func closeVerifiers(verifiers map[string]bridge.Verifier) {
	for _, v := range verifiers {
		if closer, ok := v.(interface{ Close() }); ok {
			closer.Close()
		}
	}
}
