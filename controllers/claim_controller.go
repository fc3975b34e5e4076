package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"

	"github.com/torreads/adledger/config"
	"github.com/torreads/adledger/ledger"
	"github.com/torreads/adledger/utils"
)

// ClaimController handles ad view reward claims.
type ClaimController struct {
	engine *ledger.Engine
}

// NewClaimController creates a new ClaimController instance.
func NewClaimController(engine *ledger.Engine) *ClaimController {
	return &ClaimController{engine: engine}
}

// Claim credits one ad view reward to the caller's balance, subject to the
// cooldown, daily and lifetime rules. Denials come back as structured
// responses, not opaque errors, so clients can show a countdown.
func (cc *ClaimController) Claim(ctx *gin.Context) {
	ip := ctx.ClientIP()
	if utils.ClaimIsBanned(ip) {
		utils.Error(ctx, http.StatusTooManyRequests, 42910, "too many claims, try again later")
		return
	}
	if utils.ClaimFloodExceeded(utils.ClaimFloodRecord(ip)) {
		utils.ClaimBan(ip)
		utils.Error(ctx, http.StatusTooManyRequests, 42911, "too many claims, try again later")
		return
	}

	var req struct {
		UserID     string   `json:"user_id" binding:"required"`
		ReferrerID string   `json:"referrer_id"`
		Amount     *float64 `json:"amount"`
		AdToken    string   `json:"ad_token"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40010, "invalid request payload")
		return
	}

	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		utils.Error(ctx, http.StatusBadRequest, 40011, "user_id cannot be empty")
		return
	}

	if config.Get().AdTokenEnabled {
		if req.AdToken == "" {
			utils.Error(ctx, http.StatusBadRequest, 40012, "ad_token required")
			return
		}
		if _, err := utils.ParseAdToken(req.AdToken, userID); err != nil {
			switch {
			case errors.Is(err, utils.ErrAdTokenEarly):
				utils.Error(ctx, http.StatusForbidden, 40310, "ad has not finished playing")
			case errors.Is(err, utils.ErrAdTokenMismatch):
				utils.Error(ctx, http.StatusUnauthorized, 40110, "ad_token does not match user")
			default:
				utils.Error(ctx, http.StatusUnauthorized, 40111, "invalid ad_token")
			}
			return
		}
	}

	claim := ledger.ClaimRequest{
		UserID:     userID,
		ReferrerID: strings.TrimSpace(req.ReferrerID),
	}
	if req.Amount != nil {
		amt := decimal.NewFromFloat(*req.Amount)
		claim.Amount = &amt
	}

	res, err := cc.engine.Claim(ctx.Request.Context(), claim)
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidInput):
			utils.Error(ctx, http.StatusBadRequest, 40013, "invalid claim request")
		case errors.Is(err, ledger.ErrRetryExhausted):
			utils.Error(ctx, http.StatusServiceUnavailable, 50310, "claim contention, retry")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50010, "failed to process claim")
		}
		return
	}

	if !res.Granted {
		body := gin.H{
			"granted": false,
			"reason":  res.Reason,
			"balance": res.Balance,
		}
		status := http.StatusForbidden
		code := 40311
		if res.Reason == ledger.ReasonCooldown {
			status = http.StatusTooManyRequests
			code = 42912
			body["retry_after"] = res.RetryAfterSec
		}
		utils.Respond(ctx, status, code, res.Reason, body)
		return
	}

	utils.Success(ctx, gin.H{
		"granted":          true,
		"amount":           res.Amount,
		"balance":          res.Balance,
		"first_claim":      res.FirstClaim,
		"referral_applied": res.ReferralApplied,
	})
}
