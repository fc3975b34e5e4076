package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal statuses. The ledger only ever creates pending rows; settling
// them is an operator action outside this service.
const (
	WithdrawalStatusPending = "pending"
	WithdrawalStatusPaid    = "paid"
	WithdrawalStatusDenied  = "denied"
)

// Withdrawal is the request row created when an account's balance is zeroed.
// Amount is the balance that was actually zeroed, not the balance at the
// time the request came in.
type Withdrawal struct {
	ID            string          `gorm:"primaryKey;size:36" json:"id"`
	AccountID     string          `gorm:"size:64;index;not null" json:"account_id"`
	Amount        decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"amount"`
	WalletAddress string          `gorm:"size:128" json:"wallet_address,omitempty"`
	Status        string          `gorm:"size:16;not null;default:pending;index" json:"status"`
	RequestedAt   time.Time       `gorm:"not null" json:"requested_at"`
	CreatedAt     time.Time       `json:"created_at"`
}
