package ledger

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/torreads/adledger/models"
)

func testPolicy() Policy {
	return Policy{
		Cooldown:    30 * time.Second,
		DailyCap:    50,
		LifetimeCap: 1000,
		Reward:      decimal.RequireFromString("0.0005"),
	}
}

func TestEvaluate_FreshAccountAllowed(t *testing.T) {
	p := testPolicy()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	d := p.Evaluate(&models.Account{ID: "u1"}, now)
	if !d.Allowed {
		t.Fatalf("fresh account should be allowed, got reason %q", d.Reason)
	}
	if !d.Reward.Equal(p.Reward) {
		t.Errorf("reward = %s, want %s", d.Reward, p.Reward)
	}
}

func TestEvaluate_Cooldown(t *testing.T) {
	p := testPolicy()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-10 * time.Second)

	d := p.Evaluate(&models.Account{ID: "u1", LastClaimAt: &last}, now)
	if d.Allowed {
		t.Fatal("claim inside cooldown should be denied")
	}
	if d.Reason != ReasonCooldown {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonCooldown)
	}
	if d.RetryAfter != 20*time.Second {
		t.Errorf("retry after = %s, want 20s", d.RetryAfter)
	}
}

func TestEvaluate_CooldownExactBoundary(t *testing.T) {
	p := testPolicy()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-30 * time.Second)

	d := p.Evaluate(&models.Account{ID: "u1", LastClaimAt: &last}, now)
	if !d.Allowed {
		t.Fatalf("claim exactly at cooldown boundary should be allowed, got %q", d.Reason)
	}
}

func TestEvaluate_DailyCap(t *testing.T) {
	p := testPolicy()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Minute)

	acc := &models.Account{
		ID:          "u1",
		DailyViews:  50,
		DailyWindow: DayKey(now),
		LastClaimAt: &last,
	}
	d := p.Evaluate(acc, now)
	if d.Allowed {
		t.Fatal("claim at daily cap should be denied")
	}
	if d.Reason != ReasonDailyLimit {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonDailyLimit)
	}
}

func TestEvaluate_DailyCounterResetsAcrossMidnight(t *testing.T) {
	p := testPolicy()
	now := time.Date(2026, 3, 2, 0, 0, 5, 0, time.UTC)
	last := now.Add(-time.Hour)

	acc := &models.Account{
		ID:          "u1",
		DailyViews:  50,
		DailyWindow: "2026-03-01",
		LastClaimAt: &last,
	}
	d := p.Evaluate(acc, now)
	if !d.Allowed {
		t.Fatalf("stale daily window should count as zero, got %q", d.Reason)
	}
}

func TestEvaluate_LifetimeCap(t *testing.T) {
	p := testPolicy()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Hour)

	acc := &models.Account{
		ID:            "u1",
		LifetimeViews: 1000,
		LastClaimAt:   &last,
	}
	d := p.Evaluate(acc, now)
	if d.Allowed {
		t.Fatal("claim at lifetime cap should be denied")
	}
	if d.Reason != ReasonLifetimeCap {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonLifetimeCap)
	}
}

func TestEvaluate_LifetimeWinsOverDaily(t *testing.T) {
	p := testPolicy()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Hour)

	acc := &models.Account{
		ID:            "u1",
		LifetimeViews: 1000,
		DailyViews:    50,
		DailyWindow:   DayKey(now),
		LastClaimAt:   &last,
	}
	d := p.Evaluate(acc, now)
	if d.Reason != ReasonLifetimeCap {
		t.Errorf("reason = %q, want %q", d.Reason, ReasonLifetimeCap)
	}
}

func TestEvaluate_ZeroValuesDisableRules(t *testing.T) {
	p := Policy{Reward: decimal.RequireFromString("0.0005")}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	last := now.Add(-time.Millisecond)

	acc := &models.Account{
		ID:            "u1",
		LifetimeViews: 1 << 40,
		DailyViews:    1 << 40,
		DailyWindow:   DayKey(now),
		LastClaimAt:   &last,
	}
	if d := p.Evaluate(acc, now); !d.Allowed {
		t.Fatalf("all-zero policy should allow everything, got %q", d.Reason)
	}
}
