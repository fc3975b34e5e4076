package main

import (
	"strings"
	"time"

	"gorm.io/gorm"

	"github.com/torreads/adledger/config"
	"github.com/torreads/adledger/models"
	"github.com/torreads/adledger/routes"
	"github.com/torreads/adledger/utils"
)

func main() {
	cfg := config.Load()

	// Initialize logger early
	if err := utils.InitLogger(cfg); err != nil {
		panic(err)
	}

	var db *gorm.DB
	if strings.ToLower(cfg.DBDriver) != "memory" {
		db = config.InitDatabase(&models.Account{}, &models.AdView{}, &models.Referral{}, &models.Withdrawal{})
		// Prune old ad-view audit rows in the background (best-effort)
		utils.StartViewTrimmer(db, time.Hour)
	}

	r := routes.SetupRouter(db)

	utils.Sugar.Infof("Starting server on port %s (graceful)", cfg.AppPort)
	if err := utils.GraceServer(":"+cfg.AppPort, r); err != nil {
		utils.Sugar.Fatalf("server stopped with error: %v", err)
	}
}
