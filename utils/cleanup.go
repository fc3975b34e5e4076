package utils

import (
	"time"

	"gorm.io/gorm"

	"github.com/torreads/adledger/config"
	"github.com/torreads/adledger/models"
)

// StartViewTrimmer launches a background goroutine that periodically prunes
// ad-view audit rows older than the configured retention window. Account
// balances and counters are never touched; this is purely about keeping the
// append-only audit table bounded. Best-effort, failures are logged.
func StartViewTrimmer(db *gorm.DB, interval time.Duration) {
	if interval <= 0 {
		interval = time.Hour
	}
	go func() {
		for {
			// Sleep first to avoid racing immediately at startup
			time.Sleep(interval)
			days := config.Get().ViewRetentionDays
			if days <= 0 || db == nil {
				continue
			}
			cutoff := time.Now().UTC().AddDate(0, 0, -days)
			res := db.Where("viewed_at < ?", cutoff).Delete(&models.AdView{})
			if res.Error != nil {
				if Sugar != nil {
					Sugar.Warnf("view trimmer: %v", res.Error)
				}
				continue
			}
			if res.RowsAffected > 0 && Sugar != nil {
				Sugar.Infof("view trimmer pruned %d rows older than %s", res.RowsAffected, cutoff.Format("2006-01-02"))
			}
		}
	}()
}
