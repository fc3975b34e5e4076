package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/torreads/adledger/ledger"
	"github.com/torreads/adledger/utils"
)

// WithdrawController handles payout requests.
type WithdrawController struct {
	processor *ledger.WithdrawalProcessor
}

// NewWithdrawController creates a new WithdrawController instance.
func NewWithdrawController(processor *ledger.WithdrawalProcessor) *WithdrawController {
	return &WithdrawController{processor: processor}
}

// Withdraw drains the caller's balance into a pending payout request when the
// balance meets the configured minimum.
func (w *WithdrawController) Withdraw(ctx *gin.Context) {
	var req struct {
		UserID        string `json:"user_id" binding:"required"`
		WalletAddress string `json:"wallet_address"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40030, "invalid request payload")
		return
	}

	res, err := w.processor.Request(ctx.Request.Context(), strings.TrimSpace(req.UserID), strings.TrimSpace(req.WalletAddress))
	if err != nil {
		switch {
		case errors.Is(err, ledger.ErrInvalidInput):
			utils.Error(ctx, http.StatusBadRequest, 40031, "invalid withdrawal request")
		case errors.Is(err, ledger.ErrNotFound):
			utils.Error(ctx, http.StatusNotFound, 40430, "unknown user")
		case errors.Is(err, ledger.ErrRetryExhausted):
			utils.Error(ctx, http.StatusServiceUnavailable, 50330, "withdrawal contention, retry")
		default:
			utils.Error(ctx, http.StatusInternalServerError, 50030, "failed to process withdrawal")
		}
		return
	}

	if !res.Accepted {
		utils.Respond(ctx, http.StatusBadRequest, 40032, res.Reason, gin.H{
			"accepted": false,
			"reason":   res.Reason,
			"balance":  res.Amount,
			"minimum":  res.Minimum,
		})
		return
	}

	utils.InvalidateByPrefix("cache:stats")

	body := gin.H{
		"accepted":   true,
		"request_id": res.RequestID,
		"amount":     res.Amount,
	}
	if res.Warning != "" {
		body["warning"] = res.Warning
	}
	utils.Success(ctx, body)
}
