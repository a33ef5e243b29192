package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"

	"github.com/flicky/go-checkout-engine/internal/config"
	"github.com/flicky/go-checkout-engine/internal/handler"
	"github.com/flicky/go-checkout-engine/internal/middleware"
	"github.com/flicky/go-checkout-engine/internal/payment"
	"github.com/flicky/go-checkout-engine/internal/repository"
	"github.com/flicky/go-checkout-engine/internal/service"
	"github.com/flicky/go-checkout-engine/internal/worker"
)

func main() {
	log := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	cfg, err := config.Load()
	if err != nil {
		log.Error("load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// PostgreSQL
	if cfg.DB.Migrate {
		if err := repository.Migrate(cfg.DB.DSN()); err != nil {
			log.Error("migrate database", "error", err)
			os.Exit(1)
		}
	}

	poolCfg, err := pgxpool.ParseConfig(cfg.DB.DSN())
	if err != nil {
		log.Error("parse db config", "error", err)
		os.Exit(1)
	}
	poolCfg.MaxConns = cfg.DB.MaxConns

	dbPool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		log.Error("connect to database", "error", err)
		os.Exit(1)
	}
	defer dbPool.Close()

	if err := dbPool.Ping(ctx); err != nil {
		log.Error("ping database", "error", err)
		os.Exit(1)
	}
	log.Info("connected to PostgreSQL")

	// Redis
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		log.Error("connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("connected to Redis")

	// RabbitMQ
	amqpConn, err := amqp.Dial(cfg.RabbitMQ.URL)
	if err != nil {
		log.Error("connect to RabbitMQ", "error", err)
		os.Exit(1)
	}
	defer amqpConn.Close()

	amqpCh, err := amqpConn.Channel()
	if err != nil {
		log.Error("open RabbitMQ channel", "error", err)
		os.Exit(1)
	}
	defer amqpCh.Close()

	if err := worker.SetupRabbitMQ(amqpCh); err != nil {
		log.Error("setup RabbitMQ", "error", err)
		os.Exit(1)
	}
	log.Info("connected to RabbitMQ")

	// Repositories
	productRepo := repository.NewProductRepository(dbPool)
	orderRepo := repository.NewOrderRepository(dbPool)
	idempotency := repository.NewRedisIdempotencyStore(redisClient, cfg.Checkout.IdempotencyTTL)
	coupons, err := repository.NewStaticCouponRegistry(cfg.Checkout.Coupons)
	if err != nil {
		log.Error("load coupon registry", "error", err)
		os.Exit(1)
	}

	// Services
	timeout := cfg.Checkout.ExternalTimeout
	resolver := service.NewDiscountResolver(coupons, timeout)
	gateway := payment.NewGateway(payment.TestCardDecider{}, cfg.Checkout.PaymentLatency)
	factory := service.NewOrderFactory(gateway, orderRepo, idempotency, worker.NewPublisher(amqpCh), timeout, log)
	engine := service.NewCheckoutEngine(resolver, factory, log)
	shoppers := service.NewShoppers(productRepo, engine, timeout)
	productSvc := service.NewProductService(productRepo, timeout)
	orderSvc := service.NewOrderService(orderRepo)

	// Handlers
	productH := handler.NewProductHandler(productSvc, log)
	cartH := handler.NewCartHandler(shoppers, resolver, log)
	checkoutH := handler.NewCheckoutHandler(shoppers, log)
	orderH := handler.NewOrderHandler(orderSvc, log)
	healthH := handler.NewHealthHandler(2*time.Second,
		handler.PostgresDependency(dbPool),
		handler.RedisDependency(redisClient),
		handler.RabbitMQDependency(amqpConn),
	)

	// Worker
	orderWorker := worker.NewOrderWorker(amqpCh, orderRepo, redisClient, log)

	// Router
	router := gin.Default()
	router.GET("/healthz", healthH.Healthz)
	router.GET("/readyz", healthH.Readyz)
	handler.RegisterRoutes(router.Group("/api/v1"), middleware.AuthMiddleware(cfg.JWT.Secret), handler.Routes{
		Product:  productH,
		Cart:     cartH,
		Checkout: checkoutH,
		Order:    orderH,
	})

	if err := orderWorker.Start(ctx); err != nil {
		log.Error("start order worker", "error", err)
		os.Exit(1)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("starting HTTP server", "port", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server shutdown", "error", err)
	}

	orderWorker.Stop()
	time.Sleep(500 * time.Millisecond)
	cancel()
	log.Info("server stopped")
}
