package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/torreads/adledger/ledger"
	"github.com/torreads/adledger/utils"
)

// BalanceController serves read-only balance and progress lookups.
type BalanceController struct {
	store ledger.Store
	clock ledger.Clock
}

// NewBalanceController creates a new BalanceController instance.
func NewBalanceController(store ledger.Store, clock ledger.Clock) *BalanceController {
	return &BalanceController{store: store, clock: clock}
}

// GetBalance returns the balance and counters for a user. An identity that
// has never claimed reads as zero; no row is created by the lookup.
func (b *BalanceController) GetBalance(ctx *gin.Context) {
	userID := ctx.Param("user_id")

	acc, err := b.store.Get(ctx.Request.Context(), userID)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			utils.Success(ctx, gin.H{
				"user_id":        userID,
				"balance":        decimal.Zero,
				"lifetime_views": 0,
				"daily_views":    0,
			})
			return
		}
		utils.Error(ctx, http.StatusInternalServerError, 50011, "failed to load balance")
		return
	}

	daily := acc.DailyViews
	if acc.DailyWindow != ledger.DayKey(b.clock.Now()) {
		daily = 0
	}

	payload := gin.H{
		"user_id":        acc.ID,
		"balance":        acc.Balance,
		"lifetime_views": acc.LifetimeViews,
		"daily_views":    daily,
	}
	if acc.ReferrerID != "" {
		payload["referrer_id"] = acc.ReferrerID
	}
	utils.Success(ctx, payload)
}
