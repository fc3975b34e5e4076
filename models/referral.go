package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Referral records one attributed referral edge. ReferredID is unique: an
// account can be referred at most once, which is also enforced at the ledger
// level by the immutable Account.ReferrerID.
type Referral struct {
	ID            uint            `gorm:"primaryKey" json:"id"`
	ReferrerID    string          `gorm:"size:64;index;not null" json:"referrer_id"`
	ReferredID    string          `gorm:"size:64;uniqueIndex;not null" json:"referred_id"`
	ReferrerBonus decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"referrer_bonus"`
	ReferredBonus decimal.Decimal `gorm:"type:decimal(18,6);not null" json:"referred_bonus"`
	AttributedAt  time.Time       `gorm:"not null" json:"attributed_at"`
	CreatedAt     time.Time       `json:"created_at"`
}
