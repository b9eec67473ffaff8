// Package routes defines the API routing configuration.
// It sets up all HTTP routes and their corresponding handlers.
package routes

import (
	"bankapi/internal/handlers"
	"bankapi/internal/services/ledger"

	"github.com/gofiber/fiber/v2"
)

// SetupRoutes configures all application routes.
func SetupRoutes(app *fiber.App, ledgerService ledger.Service) {
	bankHandler := handlers.NewBankHandler(ledgerService)

	app.Get("/health", handlers.HealthCheck)

	bank := app.Group("/api/v1/bank")
	bank.Get("/getBalance", bankHandler.GetBalance)
	bank.Post("/putMoney", bankHandler.PutMoney)
	bank.Post("/takeMoney", bankHandler.TakeMoney)
	bank.Post("/transferMoney", bankHandler.TransferMoney)
	bank.Get("/getOperationList", bankHandler.GetOperationList)
}
