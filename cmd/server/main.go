package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shop-service/config"
	"shop-service/internal/api"
	"shop-service/internal/broker"
	"shop-service/internal/cart"
	"shop-service/internal/catalog"
	"shop-service/internal/checkout"
	"shop-service/internal/orders"
	"shop-service/internal/payment"
	"shop-service/internal/pricing"
	"shop-service/internal/profile"
	"shop-service/internal/redisclient"
	"shop-service/internal/store"
	"shop-service/internal/util"
	"shop-service/internal/worker"

	"github.com/gin-gonic/gin"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting shop service")

	tp, err := util.InitTracer("shop-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	// The cart mirror and checkout lock are best-effort features; the
	// service runs without them when Redis is unreachable.
	var mirror cart.Mirror
	var locker checkout.Locker
	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Printf("Redis unavailable, continuing without cart mirror: %v", err)
	} else {
		defer redisClient.Close()
		mirror = redisClient
		locker = redisClient
		log.Println("Redis connected")
	}

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	eventPublisher := broker.NewEventPublisher(producer)
	log.Println("Kafka producer initialized")

	orderRepo := orders.NewMemory()
	addressBook := profile.NewAddressBook()
	calc := pricing.New(cfg.Business.TaxRateBps, cfg.Business.ShippingFlatCents)
	gateway := payment.NewSimulated(cfg.Business.GatewayFailureRate, 250*time.Millisecond)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	var cat catalog.Catalog
	var orderWorker *worker.OrderEventsWorker
	if cfg.Business.CatalogSource == "postgres" {
		db, err := store.NewStore(cfg.Database.URL)
		if err != nil {
			log.Fatalf("Failed to connect to database: %v", err)
		}
		defer db.Close()
		log.Println("Database connected")
		cat = db

		consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
		orderWorker = worker.NewOrderEventsWorker(consumer, db)
		go func() {
			if err := orderWorker.Start(workerCtx); err != nil {
				log.Printf("Order events worker error: %v", err)
			}
		}()
	} else {
		cat = catalog.NewMemoryWith(catalog.Seed()...)
		log.Println("Using seeded in-memory catalog")
	}

	orchestrator := checkout.New(
		gateway,
		orderRepo,
		calc,
		eventPublisher,
		locker,
		cfg.Business.Currency,
		time.Duration(cfg.Business.PaymentTimeoutSeconds)*time.Second,
	)

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(cat, orderRepo, gateway, orchestrator, calc, addressBook, mirror)
	handler.SetStatusPublisher(eventPublisher.PublishOrderStatusChanged)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	if orderWorker != nil {
		orderWorker.Stop()
	}

	log.Println("Server exited")
}
