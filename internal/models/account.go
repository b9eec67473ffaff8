package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a user's current balance record. The user id doubles as the
// primary key; accounts are provisioned out of band and never deleted here.
// The balance may only change while the row's exclusive lock is held.
type Account struct {
	UserID    uint64          `gorm:"primarykey" json:"userId"`
	Balance   decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"balance"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}
