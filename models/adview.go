package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AdView is the audit row written for every granted claim. It is append-only
// and best-effort: losing one never loses balance, the Account row is the
// source of truth.
type AdView struct {
	ID        uint            `gorm:"primaryKey" json:"id"`
	AccountID string          `gorm:"size:64;index;not null" json:"account_id"`
	Amount    decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"amount"`
	ViewedAt  time.Time       `gorm:"index;not null" json:"viewed_at"`
	CreatedAt time.Time       `json:"created_at"`
}
