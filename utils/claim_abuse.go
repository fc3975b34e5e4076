package utils

import (
	"context"
	"fmt"
	"time"

	"github.com/torreads/adledger/config"
)

// Per-IP claim flood guard. The real anti-abuse decision lives in the ledger
// policy; this is a cheap redis screen in front of it so a scripted client
// hammering /claim gets dropped before touching the database. Every check
// fails open: losing redis must never take claims down with it.

func claimKey(parts ...string) string {
	key := "claim"
	for _, p := range parts {
		key += ":" + p
	}
	return key
}

// ClaimFloodRecord increments the per-IP hourly claim counter and returns the
// current count.
func ClaimFloodRecord(ip string) int {
	cli := GetRedis()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	key := claimKey("flood", ip, time.Now().UTC().Format("2006010215"))
	n, err := cli.Incr(ctx, key).Result()
	if err != nil {
		return 0
	}
	_ = cli.Expire(ctx, key, time.Hour).Err()
	return int(n)
}

// ClaimFloodExceeded reports whether the count is over the configured hourly
// budget.
func ClaimFloodExceeded(count int) bool {
	limit := config.Get().ClaimMaxPerIPPerHour
	return limit > 0 && count > limit
}

// ClaimIsBanned checks the temporary ban flag for an IP.
func ClaimIsBanned(ip string) bool {
	cli := GetRedis()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	exists, err := cli.Exists(ctx, claimKey("ban", ip)).Result()
	if err != nil {
		return false
	}
	return exists > 0
}

// ClaimBan sets a temporary ban for an IP.
func ClaimBan(ip string) {
	minutes := config.Get().ClaimTempBanMinutes
	if minutes <= 0 {
		minutes = 60
	}
	cli := GetRedis()
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = cli.Set(ctx, claimKey("ban", ip), fmt.Sprintf("ban-%s", ip), time.Duration(minutes)*time.Minute).Err()
}
