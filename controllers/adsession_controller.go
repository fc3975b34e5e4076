package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/torreads/adledger/config"
	"github.com/torreads/adledger/utils"
)

// AdSessionController issues ad session tickets. A ticket is minted when the
// ad starts and only becomes valid after the ad duration has elapsed, so a
// claim sent immediately is rejected.
type AdSessionController struct{}

// NewAdSessionController creates a new AdSessionController instance.
func NewAdSessionController() *AdSessionController {
	return &AdSessionController{}
}

// StartSession mints a ticket for one ad view.
func (a *AdSessionController) StartSession(ctx *gin.Context) {
	cfg := config.Get()
	if !cfg.AdTokenEnabled {
		utils.Error(ctx, http.StatusNotFound, 40450, "ad sessions disabled")
		return
	}

	var req struct {
		UserID string `json:"user_id" binding:"required"`
	}
	if err := ctx.ShouldBindJSON(&req); err != nil {
		utils.Error(ctx, http.StatusBadRequest, 40050, "invalid request payload")
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		utils.Error(ctx, http.StatusBadRequest, 40051, "user_id cannot be empty")
		return
	}

	token, expiresIn, err := utils.GenerateAdToken(userID, time.Now())
	if err != nil {
		utils.Error(ctx, http.StatusInternalServerError, 50051, "failed to create ad session")
		return
	}

	utils.Success(ctx, gin.H{
		"ad_token":            token,
		"expires_in":          expiresIn,
		"ad_duration_seconds": cfg.AdDurationSec,
	})
}
