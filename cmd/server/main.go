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

	"fulfillment-service/config"
	"fulfillment-service/internal/api"
	"fulfillment-service/internal/broker"
	"fulfillment-service/internal/checkout"
	"fulfillment-service/internal/clients"
	"fulfillment-service/internal/gateway"
	"fulfillment-service/internal/inventory"
	"fulfillment-service/internal/payment"
	"fulfillment-service/internal/redisclient"
	"fulfillment-service/internal/store"
	"fulfillment-service/internal/util"
	"fulfillment-service/internal/worker"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting fulfillment service")

	tp, err := util.InitTracer("fulfillment-service", cfg.Observ.JaegerEndpoint)
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

	db, err := store.NewStore(cfg.Database.URL)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("Database connected")

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	metrics := util.NewMetrics(prometheus.DefaultRegisterer)

	gatewaySim := gateway.NewSimulator(cfg.Gateway.BaseDelay, cfg.Gateway.Jitter, cfg.Gateway.FailureRate)
	cartClient := clients.NewCartClient(cfg.Upstream.CartServiceURL, cfg.Upstream.Timeout)

	inventoryEngine := inventory.NewEngine(db, redisClient, metrics, cfg.Reservation.RetryBudget)
	paymentService := payment.NewService(db, gatewaySim, eventPublisher, metrics)
	checkoutService := checkout.NewService(db, cartClient, paymentService, eventPublisher, metrics)

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	reservationConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup)
	reservationWorker := worker.NewReservationWorker(reservationConsumer, inventoryEngine, eventPublisher)
	go func() {
		if err := reservationWorker.Start(workerCtx); err != nil {
			log.Printf("Reservation worker error: %v", err)
		}
	}()

	statusConsumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrder, cfg.Kafka.ConsumerGroup+"-status")
	statusWorker := worker.NewOrderStatusWorker(statusConsumer, db)
	go func() {
		if err := statusWorker.Start(workerCtx); err != nil {
			log.Printf("Order status worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	handler := api.NewHandler(inventoryEngine, paymentService, checkoutService, db, redisClient, metrics, cfg.Auth.JWTSecret)
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
	reservationWorker.Stop()
	statusWorker.Stop()

	log.Println("Server exited")
}
