// Package main is the entry point for the application.
// It initializes all dependencies, sets up the HTTP server,
// and starts the application.
package main

import (
	"context"
	"log"
	"time"

	"bankapi/internal/config"
	"bankapi/internal/repositories"
	"bankapi/internal/routes"
	"bankapi/internal/services/ledger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
)

func main() {
	// Load environment variables
	config.LoadEnv()

	// Initialize databases (PostgreSQL + Redis)
	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	sqlDB, err := repositories.DB.DB()
	if err != nil {
		log.Fatalf("Failed to get database instance: %v", err)
	}
	if err := sqlDB.Ping(); err != nil {
		log.Fatalf("Failed to ping database: %v", err)
	}

	if repositories.BalanceCache != nil {
		if err := repositories.BalanceCache.HealthCheck(context.Background()); err != nil {
			log.Printf("Redis unavailable, balance reads will skip the cache: %v", err)
		}
	}

	defer func() {
		if err := sqlDB.Close(); err != nil {
			log.Printf("Failed to close database connection: %v", err)
		}
		if repositories.BalanceCache != nil {
			if err := repositories.BalanceCache.Close(); err != nil {
				log.Printf("Failed to close Redis connection: %v", err)
			}
		}
	}()

	// Wire the ledger core
	lockTimeout := config.GetDurationEnv("LOCK_TIMEOUT", 3*time.Second)
	ledgerRepo := repositories.NewLedgerRepository(repositories.DB, lockTimeout)

	// Assign into the interface only when the concrete pointer is non-nil:
	// a typed nil would not compare equal to nil inside NewService.
	var balanceCache ledger.BalanceCache
	if repositories.BalanceCache != nil {
		balanceCache = repositories.BalanceCache
	}
	ledgerService := ledger.NewService(ledgerRepo, balanceCache)

	// Create Fiber app
	app := fiber.New()

	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))

	// Routes
	routes.SetupRoutes(app, ledgerService)

	// Start server
	log.Fatal(app.Listen(":" + config.GetEnv("PORT", "3000")))
}
