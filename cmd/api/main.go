package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	authapp "github.com/francium/storefront/internal/auth/app"
	authpg "github.com/francium/storefront/internal/auth/infra/postgres"
	cartapp "github.com/francium/storefront/internal/cart/app"
	"github.com/francium/storefront/internal/cart/infra/adapter"
	cartpg "github.com/francium/storefront/internal/cart/infra/postgres"
	catalogapp "github.com/francium/storefront/internal/catalog/app"
	catalogpg "github.com/francium/storefront/internal/catalog/infra/postgres"
	"github.com/francium/storefront/internal/catalog/infra/rediscache"
	checkoutapp "github.com/francium/storefront/internal/checkout/app"
	"github.com/francium/storefront/internal/httpapi"
	orderapp "github.com/francium/storefront/internal/order/app"
	orderpg "github.com/francium/storefront/internal/order/infra/postgres"
	"github.com/francium/storefront/internal/payment"
	"github.com/francium/storefront/pkg/config"
	"github.com/francium/storefront/pkg/logger"
	"github.com/francium/storefront/pkg/metrics"
	"github.com/francium/storefront/pkg/postgres"
	"github.com/francium/storefront/pkg/shutdown"
)

func main() {
	cfg := config.Load()
	log := logger.New(logger.Options{
		Service:   "storefront-api",
		Env:       cfg.AppEnv,
		Level:     cfg.LogLevel,
		AddSource: true,
	})

	ctx, cancel := shutdown.WithSignals(context.Background())
	defer cancel()

	if cfg.DatabaseURL == "" || cfg.JWTSecret == "" || cfg.GatewayKeySecret == "" {
		log.Error("DATABASE_URL, JWT_SECRET and GATEWAY_KEY_SECRET are required")
		os.Exit(1)
	}

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Error("database connect failed", slog.Any("err", err))
		os.Exit(1)
	}
	defer pool.Close()

	// Catalog, with an optional redis read cache in front
	var productRepo catalogapp.ProductRepo = catalogpg.NewProductRepo(pool)
	if cfg.RedisAddr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		productRepo = rediscache.New(productRepo, rdb, 5*time.Minute, log)
	}
	catalogSvc := catalogapp.NewService(productRepo)
	catalogReader := adapter.NewCatalogServiceReader(catalogSvc)

	// Identity
	authSvc := authapp.NewService(authpg.NewUserRepo(pool), cfg.JWTSecret)

	// Cart
	cartSvc := cartapp.NewService(cartpg.NewCartRepo(pool), catalogReader)

	// Order ledger
	orderSvc := orderapp.NewService(orderpg.NewOrderRepo(pool))

	// Payment gateway
	gateway := payment.NewClient(payment.ClientOptions{
		BaseURL:   cfg.GatewayBaseURL,
		KeyID:     cfg.GatewayKeyID,
		KeySecret: cfg.GatewayKeySecret,
		Timeout:   cfg.GatewayTimeout,
	})

	// Checkout orchestration
	checkoutSvc := checkoutapp.NewService(cartSvc, catalogReader, gateway, orderSvc, log)

	api := httpapi.NewServer(httpapi.Options{
		Log:      log,
		Auth:     authSvc,
		Catalog:  catalogSvc,
		Cart:     cartSvc,
		Checkout: checkoutSvc,
		Orders:   orderSvc,
		Metrics:  metrics.NewServerMetrics("api"),
	})

	addr := fmt.Sprintf(":%d", cfg.HTTPPort)
	server := &http.Server{
		Addr:              addr,
		Handler:           api.Routes(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		log.Info("http server starting", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("http server error", slog.Any("err", err))
			cancel()
		}
	}()

	<-ctx.Done()
	log.Info("shutdown requested")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown error", slog.Any("err", err))
	}

	wg.Wait()
	log.Info("bye")
}
