package controllers

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/torreads/adledger/ledger"
	"github.com/torreads/adledger/utils"
)

const statsCacheKey = "cache:stats"

// StatsController exposes aggregate service counters.
type StatsController struct {
	store ledger.Store
}

// NewStatsController creates a new StatsController instance.
func NewStatsController(store ledger.Store) *StatsController {
	return &StatsController{store: store}
}

// GetStats returns account, view and withdrawal aggregates. The response is
// cached briefly since every landing page hit reads it.
func (s *StatsController) GetStats(ctx *gin.Context) {
	if b, ok := utils.CacheGetBytes(statsCacheKey); ok {
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}

	st, err := s.store.Stats(ctx.Request.Context())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50050, "failed to load stats")
		return
	}

	resp := utils.JSONResponse{Code: 0, Message: "success", Data: st}
	if b, err := json.Marshal(resp); err == nil {
		utils.CacheSetBytes(statsCacheKey, b, 30*time.Second)
		ctx.Data(http.StatusOK, "application/json", b)
		return
	}
	utils.Success(ctx, st)
}
