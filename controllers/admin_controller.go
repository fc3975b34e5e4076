package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/torreads/adledger/ledger"
	"github.com/torreads/adledger/utils"
)

// AdminController serves the operator-facing views behind the API key.
type AdminController struct {
	store ledger.Store
}

// NewAdminController creates a new AdminController instance.
func NewAdminController(store ledger.Store) *AdminController {
	return &AdminController{store: store}
}

// ListWithdrawals returns pending payout requests, oldest first, so the
// operator can work through the queue.
func (a *AdminController) ListWithdrawals(ctx *gin.Context) {
	limit := 50
	if v := ctx.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 500 {
			limit = n
		}
	}

	rows, err := a.store.PendingWithdrawals(ctx.Request.Context(), limit)
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50060, "failed to list withdrawals")
		return
	}

	utils.Success(ctx, gin.H{
		"withdrawals": rows,
		"count":       len(rows),
	})
}
