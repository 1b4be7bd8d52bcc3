package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/joseph-ayodele/tms-reconciler/internal/cache"
	"github.com/joseph-ayodele/tms-reconciler/internal/candidates"
	"github.com/joseph-ayodele/tms-reconciler/internal/common"
	"github.com/joseph-ayodele/tms-reconciler/internal/reconcile"
	repo "github.com/joseph-ayodele/tms-reconciler/internal/repository"
	"github.com/joseph-ayodele/tms-reconciler/internal/server"
	"github.com/joseph-ayodele/tms-reconciler/internal/telemetry"
)

func main() {
	_ = godotenv.Load()

	cfg, err := common.LoadConfig()
	if err != nil {
		zap.NewExample().Fatal("failed to load configuration", zap.Error(err))
	}
	logger := common.NewLogger(cfg.Log).With(zap.String("service", cfg.App.Name))
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("reconcilerd stopped with error", zap.Error(err))
		os.Exit(1)
	}
}

func run(cfg *common.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tp, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
	}, logger)
	if err != nil {
		return err
	}
	defer func() { _ = tp.Shutdown(context.Background()) }()

	db, err := server.ConnectDB(ctx, cfg.Database, logger)
	if err != nil {
		return err
	}
	defer server.CloseDB(db, logger)
	if err := server.PingDB(ctx, db, cfg.Database, logger); err != nil {
		return err
	}

	var store candidates.ShipmentStore = repo.NewShipmentRepository(db.Driver, logger)
	if cfg.Redis.Enabled {
		shipmentCache, err := cache.New(ctx, cache.Config{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
			TTL:      cfg.Redis.TTL,
		}, store, cache.WithLogger(logger))
		if err != nil {
			return err
		}
		defer func() { _ = shipmentCache.Close() }()
		store = shipmentCache
	}

	policy := reconcile.PolicyFromConfig(cfg.Reconcile)
	if err := policy.Validate(); err != nil {
		return err
	}
	finder := candidates.NewFinder(store, logger, candidates.WithScanLimit(cfg.Reconcile.ScanLimit))
	svc := reconcile.NewService(reconcile.NewEngine(finder, logger), logger,
		reconcile.WithPolicy(policy),
		reconcile.WithInvoiceRepository(repo.NewInvoiceRepository(db.Driver, logger)),
	)

	errCh := make(chan error, 2)

	grpcServer := server.NewGRPCServer(logger)
	server.RegisterReconcileServiceServer(grpcServer, server.NewReconcileService(svc, logger))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(server.ServiceName, healthpb.HealthCheckResponse_SERVING)
	reflection.Register(grpcServer)

	if cfg.Server.GRPCAddr != "" {
		lis, err := net.Listen("tcp", cfg.Server.GRPCAddr)
		if err != nil {
			return err
		}
		logger.Info("gRPC listening", zap.String("addr", cfg.Server.GRPCAddr))
		go func() { errCh <- grpcServer.Serve(lis) }()
	}

	var httpServer *http.Server
	if cfg.Server.HTTPAddr != "" {
		if cfg.App.Env == "production" {
			gin.SetMode(gin.ReleaseMode)
		}
		ping := func(ctx context.Context) error { return server.PingDB(ctx, db, cfg.Database, logger) }
		router := server.NewRouter(server.NewHTTPHandler(svc, ping, logger), cfg.Telemetry.ServiceName)
		httpServer = &http.Server{Addr: cfg.Server.HTTPAddr, Handler: router}
		logger.Info("HTTP listening", zap.String("addr", cfg.Server.HTTPAddr))
		go func() {
			if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- err
			}
		}()
	}

	select {
	case <-ctx.Done():
	case err = <-errCh:
		logger.Error("server failed", zap.Error(err))
	}

	logger.Info("shutting down...")
	hs.Shutdown()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if httpServer != nil {
		if serr := httpServer.Shutdown(shutdownCtx); serr != nil {
			logger.Warn("http shutdown", zap.Error(serr))
		}
	}
	grpcServer.GracefulStop()
	return err
}
