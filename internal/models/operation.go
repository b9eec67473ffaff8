package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Operation types
const (
	OperationDeposit     = "DEPOSIT"
	OperationWithdraw    = "WITHDRAW"
	OperationTransferOut = "TRANSFER_OUT"
	OperationTransferIn  = "TRANSFER_IN"
)

// Operation is one immutable ledger entry. Rows are append-only: nothing in
// the codebase updates or deletes them once written.
//
// RelatedUserID is set only for transfer entries and names the counterparty.
// Reference links the two entries written by a single transfer; both carry
// the same generated id and the same timestamp.
type Operation struct {
	ID            uint64          `gorm:"primarykey" json:"id"`
	UserID        uint64          `gorm:"not null;index:idx_operations_user_created,priority:1" json:"userId"`
	Type          string          `gorm:"not null" json:"type"`
	Amount        decimal.Decimal `gorm:"type:decimal(19,2);not null" json:"amount"`
	RelatedUserID *uint64         `json:"relatedUserId,omitempty"`
	Reference     string          `json:"reference,omitempty"`
	CreatedAt     time.Time       `gorm:"not null;index:idx_operations_user_created,priority:2" json:"date"`
}
