package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// Account is the per-identity reward ledger row. The ID is the opaque token
// supplied by the client; it is never interpreted. Balance uses exact decimal
// arithmetic end to end, repeated micro-rewards must never drift.
type Account struct {
	ID            string          `gorm:"primaryKey;size:64" json:"id"`
	Balance       decimal.Decimal `gorm:"type:decimal(18,6);not null;default:0" json:"balance"`
	LifetimeViews int64           `gorm:"not null;default:0" json:"lifetime_views"`
	DailyViews    int64           `gorm:"not null;default:0" json:"daily_views"`
	// DailyWindow is the UTC day (2006-01-02) DailyViews belongs to. A claim
	// landing on a different day logically resets the counter first.
	DailyWindow string     `gorm:"size:10" json:"daily_window"`
	LastClaimAt *time.Time `json:"last_claim_at,omitempty"`
	// ReferrerID is set at most once, on the first granted claim that carried
	// a referrer, and never changes afterwards.
	ReferrerID string `gorm:"size:64;index" json:"referrer_id,omitempty"`
	// Version is the optimistic-lock counter; every successful update
	// increments it. Stale writers lose and must re-read.
	Version   int64     `gorm:"not null;default:0" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate hook ensures timestamps are set even when not provided.
func (a *Account) BeforeCreate(tx *gorm.DB) error {
	now := time.Now()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now
	return nil
}

// Clone returns a deep copy so policy evaluation can work on a snapshot
// without aliasing stored state.
func (a *Account) Clone() *Account {
	cp := *a
	if a.LastClaimAt != nil {
		t := *a.LastClaimAt
		cp.LastClaimAt = &t
	}
	return &cp
}
