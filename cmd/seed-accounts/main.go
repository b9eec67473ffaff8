// Command seed-accounts provisions demo accounts with an opening balance.
// Account creation is outside the ledger core, so the seeder writes rows
// directly, skipping ids that already exist.
package main

import (
	"flag"
	"log"

	"bankapi/internal/config"
	"bankapi/internal/models"
	"bankapi/internal/repositories"

	"github.com/shopspring/decimal"
	"gorm.io/gorm/clause"
)

func main() {
	count := flag.Uint64("count", 5, "number of accounts to create")
	opening := flag.String("balance", "1000.00", "opening balance per account")
	flag.Parse()

	config.LoadEnv()
	if err := repositories.InitDB(); err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}

	balance, err := decimal.NewFromString(*opening)
	if err != nil || balance.IsNegative() {
		log.Fatalf("Invalid opening balance %q", *opening)
	}

	for userID := uint64(1); userID <= *count; userID++ {
		account := models.Account{UserID: userID, Balance: balance}
		result := repositories.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&account)
		if result.Error != nil {
			log.Fatalf("Failed to seed account %d: %v", userID, result.Error)
		}
		if result.RowsAffected == 0 {
			log.Printf("Account %d already exists, skipped", userID)
			continue
		}
		log.Printf("Created account %d with balance %s", userID, balance)
	}
}
