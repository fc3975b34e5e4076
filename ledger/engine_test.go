package ledger

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/torreads/adledger/models"
)

// fakeClock is a settable clock shared by the engine tests.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock(t time.Time) *fakeClock { return &fakeClock{t: t} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

// conflictStore wraps a Store and fails the first n Update calls with
// ErrConflict to exercise the retry loop.
type conflictStore struct {
	Store
	mu        sync.Mutex
	remaining int
}

func (s *conflictStore) Update(ctx context.Context, acc *models.Account) error {
	s.mu.Lock()
	if s.remaining > 0 {
		s.remaining--
		s.mu.Unlock()
		return ErrConflict
	}
	s.mu.Unlock()
	return s.Store.Update(ctx, acc)
}

func newTestEngine(store Store, clock Clock) *Engine {
	resolver := NewReferralResolver(store, clock,
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.005"), 0)
	return NewEngine(store, clock, testPolicy(), resolver, 0)
}

func TestClaim_FirstClaimCreatesAccount(t *testing.T) {
	store := NewMemStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := newTestEngine(store, clock)

	res, err := engine.Claim(context.Background(), ClaimRequest{UserID: "alice"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !res.Granted {
		t.Fatalf("first claim denied: %s", res.Reason)
	}
	if !res.FirstClaim {
		t.Error("first claim should be flagged")
	}
	want := decimal.RequireFromString("0.0005")
	if !res.Amount.Equal(want) {
		t.Errorf("amount = %s, want %s", res.Amount, want)
	}
	if !res.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", res.Balance, want)
	}

	acc, err := store.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if acc.LifetimeViews != 1 || acc.DailyViews != 1 {
		t.Errorf("views = %d/%d, want 1/1", acc.LifetimeViews, acc.DailyViews)
	}
}

func TestClaim_CooldownDenialCarriesRetryAfter(t *testing.T) {
	store := NewMemStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := newTestEngine(store, clock)
	ctx := context.Background()

	if _, err := engine.Claim(ctx, ClaimRequest{UserID: "alice"}); err != nil {
		t.Fatalf("first claim: %v", err)
	}

	clock.Advance(10 * time.Second)
	res, err := engine.Claim(ctx, ClaimRequest{UserID: "alice"})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if res.Granted {
		t.Fatal("claim inside cooldown should be denied")
	}
	if res.Reason != ReasonCooldown {
		t.Errorf("reason = %q, want %q", res.Reason, ReasonCooldown)
	}
	if res.RetryAfterSec != 20 {
		t.Errorf("retry_after = %d, want 20", res.RetryAfterSec)
	}

	// Denial must not touch the ledger.
	acc, _ := store.Get(ctx, "alice")
	if acc.LifetimeViews != 1 {
		t.Errorf("lifetime views = %d after denial, want 1", acc.LifetimeViews)
	}
}

func TestClaim_BalanceExactAfterManyClaims(t *testing.T) {
	store := NewMemStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	engine := newTestEngine(store, clock)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		res, err := engine.Claim(ctx, ClaimRequest{UserID: "alice"})
		if err != nil {
			t.Fatalf("claim %d: %v", i, err)
		}
		if !res.Granted {
			t.Fatalf("claim %d denied: %s", i, res.Reason)
		}
		clock.Advance(31 * time.Second)
	}

	acc, _ := store.Get(ctx, "alice")
	want := decimal.RequireFromString("0.0250")
	if !acc.Balance.Equal(want) {
		t.Errorf("balance after 50 claims = %s, want %s", acc.Balance, want)
	}
}

func TestClaim_DailyCapThenNextDay(t *testing.T) {
	store := NewMemStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC))
	engine := newTestEngine(store, clock)
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		if res, err := engine.Claim(ctx, ClaimRequest{UserID: "alice"}); err != nil || !res.Granted {
			t.Fatalf("claim %d: err=%v res=%+v", i, err, res)
		}
		clock.Advance(31 * time.Second)
	}

	res, err := engine.Claim(ctx, ClaimRequest{UserID: "alice"})
	if err != nil {
		t.Fatalf("capped claim: %v", err)
	}
	if res.Granted || res.Reason != ReasonDailyLimit {
		t.Fatalf("claim 51 should deny with %q, got %+v", ReasonDailyLimit, res)
	}

	// Cross UTC midnight; the counter rolls over.
	clock.Advance(24 * time.Hour)
	res, err = engine.Claim(ctx, ClaimRequest{UserID: "alice"})
	if err != nil {
		t.Fatalf("next-day claim: %v", err)
	}
	if !res.Granted {
		t.Fatalf("next-day claim denied: %s", res.Reason)
	}
	acc, _ := store.Get(ctx, "alice")
	if acc.DailyViews != 1 {
		t.Errorf("daily views after rollover = %d, want 1", acc.DailyViews)
	}
	if acc.LifetimeViews != 51 {
		t.Errorf("lifetime views = %d, want 51", acc.LifetimeViews)
	}
}

func TestClaim_LifetimeCapPermanent(t *testing.T) {
	store := NewMemStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := NewEngine(store, clock, Policy{
		LifetimeCap: 2,
		Reward:      decimal.RequireFromString("0.0005"),
	}, nil, 0)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		if res, err := engine.Claim(ctx, ClaimRequest{UserID: "alice"}); err != nil || !res.Granted {
			t.Fatalf("claim %d: err=%v res=%+v", i, err, res)
		}
	}

	clock.Advance(48 * time.Hour)
	res, err := engine.Claim(ctx, ClaimRequest{UserID: "alice"})
	if err != nil {
		t.Fatalf("capped claim: %v", err)
	}
	if res.Granted || res.Reason != ReasonLifetimeCap {
		t.Fatalf("lifetime-capped claim should deny with %q, got %+v", ReasonLifetimeCap, res)
	}
}

func TestClaim_AmountClampedAtPolicyReward(t *testing.T) {
	store := NewMemStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := newTestEngine(store, clock)
	ctx := context.Background()

	big := decimal.RequireFromString("5")
	res, err := engine.Claim(ctx, ClaimRequest{UserID: "alice", Amount: &big})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !res.Amount.Equal(decimal.RequireFromString("0.0005")) {
		t.Errorf("oversized amount should clamp to policy reward, got %s", res.Amount)
	}

	clock.Advance(time.Minute)
	small := decimal.RequireFromString("0.0001")
	res, err = engine.Claim(ctx, ClaimRequest{UserID: "alice", Amount: &small})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !res.Amount.Equal(small) {
		t.Errorf("smaller amount should pass through, got %s", res.Amount)
	}
}

func TestClaim_RejectsNonPositiveAmount(t *testing.T) {
	store := NewMemStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := newTestEngine(store, clock)

	zero := decimal.Zero
	if _, err := engine.Claim(context.Background(), ClaimRequest{UserID: "alice", Amount: &zero}); err == nil {
		t.Fatal("zero amount should be rejected")
	}
	if _, err := engine.Claim(context.Background(), ClaimRequest{UserID: "  "}); err == nil {
		t.Fatal("blank user id should be rejected")
	}
}

func TestClaim_ReferralAppliedOnce(t *testing.T) {
	store := NewMemStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := newTestEngine(store, clock)
	ctx := context.Background()

	res, err := engine.Claim(ctx, ClaimRequest{UserID: "bob", ReferrerID: "alice"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !res.ReferralApplied {
		t.Fatal("first claim with referrer should attribute")
	}
	// reward + welcome bonus
	want := decimal.RequireFromString("0.0055")
	if !res.Balance.Equal(want) {
		t.Errorf("referred balance = %s, want %s", res.Balance, want)
	}

	referrer, err := store.Get(ctx, "alice")
	if err != nil {
		t.Fatalf("referrer account missing: %v", err)
	}
	if !referrer.Balance.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("referrer balance = %s, want 0.01", referrer.Balance)
	}

	// Later claims must not attribute again, even with a different referrer.
	clock.Advance(time.Minute)
	res, err = engine.Claim(ctx, ClaimRequest{UserID: "bob", ReferrerID: "carol"})
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if res.ReferralApplied {
		t.Error("referral attributed twice")
	}
	if _, err := store.Get(ctx, "carol"); err == nil {
		t.Error("second referrer should not have been credited")
	}

	count, earned, err := store.ReferralStats(ctx, "alice")
	if err != nil {
		t.Fatalf("referral stats: %v", err)
	}
	if count != 1 {
		t.Errorf("referred count = %d, want 1", count)
	}
	if !earned.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("earned = %s, want 0.01", earned)
	}
}

func TestClaim_SelfReferralIgnored(t *testing.T) {
	store := NewMemStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := newTestEngine(store, clock)

	res, err := engine.Claim(context.Background(), ClaimRequest{UserID: "alice", ReferrerID: "alice"})
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !res.Granted {
		t.Fatalf("self-referral claim should still grant: %s", res.Reason)
	}
	if res.ReferralApplied {
		t.Error("self-referral must not attribute")
	}
	if !res.Balance.Equal(decimal.RequireFromString("0.0005")) {
		t.Errorf("balance = %s, want plain reward only", res.Balance)
	}
}

func TestClaim_ConflictRetries(t *testing.T) {
	inner := NewMemStore()
	store := &conflictStore{Store: inner, remaining: 3}
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := NewEngine(store, clock, testPolicy(), nil, 5)

	res, err := engine.Claim(context.Background(), ClaimRequest{UserID: "alice"})
	if err != nil {
		t.Fatalf("claim should survive 3 conflicts: %v", err)
	}
	if !res.Granted {
		t.Fatalf("claim denied: %s", res.Reason)
	}

	acc, _ := inner.Get(context.Background(), "alice")
	if acc.LifetimeViews != 1 {
		t.Errorf("lifetime views = %d, want exactly 1", acc.LifetimeViews)
	}
}

func TestClaim_RetryBudgetExhausted(t *testing.T) {
	inner := NewMemStore()
	store := &conflictStore{Store: inner, remaining: 100}
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	engine := NewEngine(store, clock, testPolicy(), nil, 3)

	_, err := engine.Claim(context.Background(), ClaimRequest{UserID: "alice"})
	if err != ErrRetryExhausted {
		t.Fatalf("err = %v, want ErrRetryExhausted", err)
	}
}

func TestClaim_ConcurrentSameUser(t *testing.T) {
	store := NewMemStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	// No cooldown so every goroutine is eligible; the cap is what limits.
	engine := NewEngine(store, clock, Policy{
		DailyCap: 50,
		Reward:   decimal.RequireFromString("0.0005"),
	}, nil, 200)

	const workers = 100
	var wg sync.WaitGroup
	granted := make(chan bool, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := engine.Claim(context.Background(), ClaimRequest{UserID: "alice"})
			if err != nil {
				t.Errorf("claim: %v", err)
				return
			}
			granted <- res.Granted
		}()
	}
	wg.Wait()
	close(granted)

	var grants int
	for g := range granted {
		if g {
			grants++
		}
	}
	if grants != 50 {
		t.Errorf("grants = %d, want exactly the daily cap of 50", grants)
	}

	acc, _ := store.Get(context.Background(), "alice")
	if acc.LifetimeViews != 50 {
		t.Errorf("lifetime views = %d, want 50", acc.LifetimeViews)
	}
	want := decimal.RequireFromString("0.0005").Mul(decimal.NewFromInt(50))
	if !acc.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", acc.Balance, want)
	}
}

func TestClaim_ConcurrentFirstClaimAttributesOnce(t *testing.T) {
	store := NewMemStore()
	clock := newFakeClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	resolver := NewReferralResolver(store, clock,
		decimal.RequireFromString("0.01"),
		decimal.RequireFromString("0.005"), 200)
	engine := NewEngine(store, clock, Policy{
		Reward: decimal.RequireFromString("0.0005"),
	}, resolver, 200)

	const workers = 20
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := engine.Claim(context.Background(), ClaimRequest{UserID: "bob", ReferrerID: "alice"}); err != nil {
				t.Errorf("claim: %v", err)
			}
		}()
	}
	wg.Wait()

	referrer, err := store.Get(context.Background(), "alice")
	if err != nil {
		t.Fatalf("referrer account missing: %v", err)
	}
	if !referrer.Balance.Equal(decimal.RequireFromString("0.01")) {
		t.Errorf("referrer bonus paid more than once, balance = %s", referrer.Balance)
	}

	count, _, _ := store.ReferralStats(context.Background(), "alice")
	if count != 1 {
		t.Errorf("referral edges = %d, want 1", count)
	}
}
