// Package main is the entry point for the application.
// It initializes all dependencies, sets up the HTTP server,
// the event workers and the metrics endpoint.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"rede/internal/broker"
	"rede/internal/config"
	"rede/internal/metrics"
	"rede/internal/repositories"
	"rede/internal/routes"
	"rede/internal/worker"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

// main initializes and starts the HTTP server.
// It performs the following setup:
// - Loads configuration
// - Initializes database connections (PostgreSQL + Redis)
// - Wires repositories, services and routes
// - Starts the Kafka order worker and the release sweep
// - Starts the HTTP server and the metrics endpoint
func main() {
	config.LoadEnv()

	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize databases: %v", err)
	}

	sqlDB, err := repositories.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}

	sqlDB.SetMaxIdleConns(config.GetIntEnv("DB_MAX_IDLE_CONNS", 10))
	sqlDB.SetMaxOpenConns(config.GetIntEnv("DB_MAX_OPEN_CONNS", 100))
	sqlDB.SetConnMaxLifetime(config.GetDurationEnv("DB_CONN_MAX_LIFETIME", time.Hour))
	sqlDB.SetConnMaxIdleTime(config.GetDurationEnv("DB_CONN_MAX_IDLE_TIME", 30*time.Minute))

	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}
	log.Println("✅ Successfully connected to database with connection pooling")

	// Periodic connection pool stats
	go func() {
		ticker := time.NewTicker(1 * time.Minute)
		defer ticker.Stop()
		for range ticker.C {
			stats := sqlDB.Stats()
			log.Printf("DB Stats: Open=%d, Idle=%d, InUse=%d, WaitCount=%d, WaitDuration=%s",
				stats.OpenConnections, stats.Idle, stats.InUse, stats.WaitCount, stats.WaitDuration)
		}
	}()

	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("⚠️ Failed to close database connection: %v", err)
		}
		if repositories.CacheService != nil {
			if err := repositories.CacheService.Close(); err != nil {
				log.Printf("⚠️ Failed to close Redis connection: %v", err)
			}
		}
	}()

	app := fiber.New()

	app.Use(cors.New(cors.Config{
		AllowOrigins:     config.GetEnv("CORS_ORIGINS", "http://localhost:5173"),
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET,POST,HEAD,PUT,DELETE,PATCH",
		AllowCredentials: true,
	}))

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	for _, path := range []string{"/api/register", "/api/login"} {
		app.Use(path, limiter.New(limiter.Config{
			Max:        5,
			Expiration: 1 * time.Minute,
			KeyGenerator: func(c *fiber.Ctx) string {
				return c.IP()
			},
			LimitReached: func(c *fiber.Ctx) error {
				return c.Status(429).JSON(fiber.Map{
					"error": "Too many requests. Please try again later.",
				})
			},
		}))
	}

	// Settlement event producer
	kafkaBrokers := strings.Split(config.GetEnv("KAFKA_BROKERS", "localhost:9092"), ",")
	producer := broker.NewProducer(
		kafkaBrokers,
		config.GetEnv("KAFKA_SETTLEMENT_TOPIC", "commission.events"),
	)
	defer producer.Close()

	collector := metrics.NewCollector()
	services := routes.SetupRoutes(app, collector, producer)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Order event consumer
	consumer := broker.NewConsumer(
		kafkaBrokers,
		config.GetEnv("KAFKA_ORDER_TOPIC", "order.events"),
		config.GetEnv("KAFKA_GROUP_ID", "rede-commission-engine"),
	)
	orderWorker := worker.NewOrderWorker(consumer, services.Order)
	go func() {
		if err := orderWorker.Start(ctx); err != nil && ctx.Err() == nil {
			log.Printf("Order worker stopped: %v", err)
		}
	}()
	defer orderWorker.Stop()

	// Scheduled release of matured commissions
	releaseWorker := worker.NewReleaseWorker(
		services.Balance,
		config.GetDurationEnv("RELEASE_SWEEP_INTERVAL", time.Minute),
		config.GetIntEnv("RELEASE_SWEEP_BATCH", 500),
	)
	go releaseWorker.Start(ctx)

	go metrics.Serve(config.GetEnv("METRICS_ADDR", ":9100"))

	go func() {
		<-ctx.Done()
		log.Println("Shutting down...")
		if err := app.ShutdownWithTimeout(10 * time.Second); err != nil {
			log.Printf("⚠️ Shutdown error: %v", err)
		}
	}()

	if err := app.Listen(":" + config.GetEnv("PORT", "3000")); err != nil {
		log.Fatalf("Server stopped: %v", err)
	}
}
