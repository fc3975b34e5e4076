package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/torreads/adledger/ledger"
	"github.com/torreads/adledger/utils"
)

// ReferralController serves referral attribution stats.
type ReferralController struct {
	store ledger.Store
}

// NewReferralController creates a new ReferralController instance.
func NewReferralController(store ledger.Store) *ReferralController {
	return &ReferralController{store: store}
}

// GetReferrals returns how many users this identity has referred and the
// bonuses earned from them.
func (r *ReferralController) GetReferrals(ctx *gin.Context) {
	userID := ctx.Param("user_id")

	count, earned, err := r.store.ReferralStats(ctx.Request.Context(), userID)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50040, "failed to load referral stats")
		return
	}

	utils.Success(ctx, gin.H{
		"user_id":        userID,
		"referred_count": count,
		"bonus_earned":   earned,
	})
}
