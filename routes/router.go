package routes

import (
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/torreads/adledger/config"
	"github.com/torreads/adledger/controllers"
	"github.com/torreads/adledger/ledger"
	"github.com/torreads/adledger/middleware"
	"github.com/torreads/adledger/utils"
)

// SetupRouter wires routes, middlewares, and controllers. db is nil when the
// memory store driver is selected.
func SetupRouter(db *gorm.DB) *gin.Engine {
	cfg := config.Get()
	switch strings.ToLower(cfg.GinMode) {
	case "debug":
		gin.SetMode(gin.DebugMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	// Replace default console logger with file-based zap logger
	gl, err := utils.NewRollingFileLogger(cfg.GinPath, cfg.LogLevel, cfg.LogMaxSizeMB, cfg.LogMaxBackups, cfg.LogMaxAgeDays, cfg.LogCompress)
	if err == nil {
		r.Use(utils.Ginzap(gl, time.RFC3339, true))
		r.Use(utils.RecoveryWithZap(gl, false))
	} else {
		// fallback to default recovery if logger failed to init
		r.Use(gin.Recovery())
	}

	corsCfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "X-API-Key"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(cfg.AllowedOrigins) == 1 && cfg.AllowedOrigins[0] == "*" {
		corsCfg.AllowAllOrigins = true
	} else {
		corsCfg.AllowOrigins = cfg.AllowedOrigins
	}
	r.Use(cors.New(corsCfg))

	store := buildStore(db, cfg)
	clock := ledger.SystemClock{}
	policy := ledger.Policy{
		Cooldown:    time.Duration(cfg.CooldownSeconds) * time.Second,
		DailyCap:    int64(cfg.DailyCap),
		LifetimeCap: int64(cfg.LifetimeCap),
		Reward:      mustDecimal("policy.RewardAmount", cfg.RewardAmount),
	}
	resolver := ledger.NewReferralResolver(store, clock,
		mustDecimal("referral.ReferrerBonus", cfg.ReferrerBonus),
		mustDecimal("referral.ReferredBonus", cfg.ReferredBonus),
		cfg.StoreMaxRetries)
	engine := ledger.NewEngine(store, clock, policy, resolver, cfg.StoreMaxRetries)
	processor := ledger.NewWithdrawalProcessor(store, clock, buildNotifier(cfg),
		mustDecimal("withdrawal.Minimum", cfg.MinWithdrawal),
		time.Duration(cfg.NotifyTimeoutSec)*time.Second,
		cfg.StoreMaxRetries)

	claimController := controllers.NewClaimController(engine)
	balanceController := controllers.NewBalanceController(store, clock)
	withdrawController := controllers.NewWithdrawController(processor)
	referralController := controllers.NewReferralController(store)
	statsController := controllers.NewStatsController(store)
	configController := controllers.NewConfigController()
	adSessionController := controllers.NewAdSessionController()
	adminController := controllers.NewAdminController(store)

	r.GET("/health", func(ctx *gin.Context) {
		utils.Success(ctx, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")

	// Public reads
	api.GET("/balance/:user_id", balanceController.GetBalance)
	api.GET("/referrals/:user_id", referralController.GetReferrals)
	api.GET("/stats", statsController.GetStats)
	api.GET("/config/reward", configController.GetRewardConfig)

	// Money-moving writes sit behind the IP rate limiter; claims also pass
	// the country gate.
	writes := api.Group("")
	writes.Use(middleware.RateLimitMiddleware())
	writes.POST("/claim", middleware.CountryFilter(), claimController.Claim)
	writes.POST("/withdraw", withdrawController.Withdraw)
	writes.POST("/ads/session", adSessionController.StartSession)

	admin := api.Group("/admin")
	admin.Use(middleware.AdminKeyRequired())
	admin.GET("/withdrawals", adminController.ListWithdrawals)

	r.NoRoute(func(ctx *gin.Context) {
		utils.Error(ctx, http.StatusNotFound, 40400, "api route not found")
	})

	return r
}

func buildStore(db *gorm.DB, cfg config.AppConfig) ledger.Store {
	if strings.ToLower(cfg.DBDriver) == "memory" || db == nil {
		return ledger.NewMemStore()
	}
	return ledger.NewGormStore(db)
}

func buildNotifier(cfg config.AppConfig) ledger.Notifier {
	var multi ledger.MultiNotifier
	if cfg.TelegramBotToken != "" && cfg.TelegramChatID != 0 {
		tg, err := ledger.NewTelegramNotifier(cfg.TelegramBotToken, cfg.TelegramChatID)
		if err != nil {
			if utils.Sugar != nil {
				utils.Sugar.Warnf("telegram notifier disabled: %v", err)
			}
		} else {
			multi = append(multi, tg)
		}
	}
	if cfg.WebhookURL != "" {
		multi = append(multi, ledger.NewWebhookNotifier(cfg.WebhookURL))
	}
	if len(multi) == 0 {
		return nil
	}
	return multi
}

func mustDecimal(name, raw string) decimal.Decimal {
	d, err := decimal.NewFromString(raw)
	if err != nil {
		log.Fatalf("invalid decimal for %s: %q", name, raw)
	}
	return d
}
