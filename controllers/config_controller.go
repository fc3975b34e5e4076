package controllers

import (
	"github.com/gin-gonic/gin"

	"github.com/torreads/adledger/config"
	"github.com/torreads/adledger/utils"
)

// ConfigController serves the public reward parameters so clients can render
// countdowns and progress bars without hardcoding values.
type ConfigController struct{}

func NewConfigController() *ConfigController { return &ConfigController{} }

// GetRewardConfig returns the reward policy values currently in effect.
func (c *ConfigController) GetRewardConfig(ctx *gin.Context) {
	cfg := config.Get()
	utils.Success(ctx, gin.H{
		"reward_amount":       cfg.RewardAmount,
		"cooldown_seconds":    cfg.CooldownSeconds,
		"daily_cap":           cfg.DailyCap,
		"lifetime_cap":        cfg.LifetimeCap,
		"min_withdrawal":      cfg.MinWithdrawal,
		"referrer_bonus":      cfg.ReferrerBonus,
		"referred_bonus":      cfg.ReferredBonus,
		"ad_duration_seconds": cfg.AdDurationSec,
	})
}
