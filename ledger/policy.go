package ledger

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/torreads/adledger/models"
)

// Policy decides whether a claim is granted. It is pure: it inspects an
// account snapshot and a timestamp and never mutates anything, the engine
// applies the consequences. A zero value disables the corresponding rule.
type Policy struct {
	// Cooldown is the minimum gap between two granted claims.
	Cooldown time.Duration
	// DailyCap limits granted claims per UTC calendar day.
	DailyCap int64
	// LifetimeCap limits granted claims ever.
	LifetimeCap int64
	// Reward is the amount credited per granted claim.
	Reward decimal.Decimal
}

// Decision is the policy verdict for one claim.
type Decision struct {
	Allowed    bool
	Reason     string
	RetryAfter time.Duration
	Reward     decimal.Decimal
}

// Evaluate applies cooldown, lifetime and daily rules in that order against
// the snapshot. The daily counter is compared as of now: a stored window from
// a previous day counts as zero.
func (p Policy) Evaluate(acc *models.Account, now time.Time) Decision {
	if p.Cooldown > 0 && acc.LastClaimAt != nil {
		elapsed := now.Sub(*acc.LastClaimAt)
		if elapsed < p.Cooldown {
			return Decision{Reason: ReasonCooldown, RetryAfter: p.Cooldown - elapsed}
		}
	}
	if p.LifetimeCap > 0 && acc.LifetimeViews >= p.LifetimeCap {
		return Decision{Reason: ReasonLifetimeCap}
	}
	if p.DailyCap > 0 {
		views := acc.DailyViews
		if acc.DailyWindow != DayKey(now) {
			views = 0
		}
		if views >= p.DailyCap {
			return Decision{Reason: ReasonDailyLimit}
		}
	}
	return Decision{Allowed: true, Reward: p.Reward}
}
