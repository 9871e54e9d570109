package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DanielPopoola/ficmart-checkout/internal/application"
	"github.com/DanielPopoola/ficmart-checkout/internal/application/services"
	"github.com/DanielPopoola/ficmart-checkout/internal/config"
	"github.com/DanielPopoola/ficmart-checkout/internal/infrastructure/gateway"
	"github.com/DanielPopoola/ficmart-checkout/internal/infrastructure/persistence"
	"github.com/DanielPopoola/ficmart-checkout/internal/infrastructure/persistence/memory"
	"github.com/DanielPopoola/ficmart-checkout/internal/infrastructure/persistence/postgres"
	"github.com/DanielPopoola/ficmart-checkout/internal/interfaces/rest/handlers"
	"github.com/DanielPopoola/ficmart-checkout/internal/interfaces/rest/middleware"
	"github.com/DanielPopoola/ficmart-checkout/internal/observe"
	"github.com/DanielPopoola/ficmart-checkout/internal/worker"
	"github.com/gorilla/mux"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	logger := cfg.Logger.NewLogger()
	slog.SetDefault(logger)

	logger.Info("starting checkout service",
		"env", cfg.Primary.Env,
		"port", cfg.Server.Port,
		"log_level", cfg.Logger.Level,
	)

	ctx := context.Background()

	var orderRepo application.OrderRepository
	var paymentRepo application.PaymentRepository

	// sandbox runs keep everything in process; chaos experiments restart
	// the binary freely without dragging a database along
	if cfg.Primary.Env == "sandbox" {
		logger.Warn("using in-memory stores; state is lost on restart")
		orderRepo = memory.NewOrderStore()
		paymentRepo = memory.NewPaymentStore()
	} else {
		db, err := persistence.Connect(ctx, &cfg.Database, logger)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer db.Close()

		orderRepo = postgres.NewOrderRepository(db.Pool)
		paymentRepo = postgres.NewPaymentRepository(db.Pool)
	}

	gatewayClient := gateway.NewHTTPClient(cfg.Gateway)
	retryClient := gateway.NewRetryClient(gatewayClient, cfg.Retry)
	verifier := gateway.NewHMACVerifier(cfg.Gateway.Secret)
	observer := observe.NewPrometheusObserver()

	orderService := services.NewOrderService(orderRepo, observer, logger)
	paymentService := services.NewPaymentService(
		paymentRepo, orderService, retryClient, verifier, observer, nil, cfg.Gateway.Currency, logger,
	)
	coordinator := services.NewCoordinator(
		orderService, paymentService, retryClient, observer, nil, cfg.Worker.PendingTimeout, logger,
	)

	router := mux.NewRouter()
	router.Handle("/metrics", observe.MetricsHandler())
	handlers.NewHandlers(coordinator, orderService, paymentService, logger).Register(router)

	handler := middleware.Identity()(router)
	handler = middleware.Recovery(logger)(handler)
	handler = middleware.Logging(logger)(handler)
	handler = middleware.Timeout(cfg.Server.ReadTimeout)(handler)

	server := &http.Server{
		Addr:         "0.0.0.0:" + cfg.Server.Port,
		Handler:      handler,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	reconciler := worker.NewReconciler(
		orderRepo,
		paymentRepo,
		coordinator,
		cfg.Worker.Interval,
		cfg.Worker.BatchSize,
		cfg.Worker.PendingTimeout,
		logger,
	)

	workerCtx, cancelWorkers := context.WithCancel(context.Background())
	defer cancelWorkers()

	go reconciler.Start(workerCtx)

	go func() {
		logger.Info("server starting", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")

	cancelWorkers()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server exited")
}
