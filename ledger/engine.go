package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/torreads/adledger/models"
	"github.com/torreads/adledger/utils"
)

// defaultMaxRetries bounds the compare-and-swap retry loops. Exhausting it
// surfaces ErrRetryExhausted instead of silently dropping a claim.
const defaultMaxRetries = 5

// Engine processes reward claims end to end: snapshot, policy, mutation,
// persistence, referral cascade. One Claim call mutates exactly one account
// on grant, plus the referrer's account on a first-time attribution.
type Engine struct {
	store      Store
	clock      Clock
	policy     Policy
	resolver   *ReferralResolver
	maxRetries int
}

// NewEngine wires the engine. resolver may be nil to disable referral
// attribution entirely; retries <= 0 uses the default budget.
func NewEngine(store Store, clock Clock, policy Policy, resolver *ReferralResolver, retries int) *Engine {
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &Engine{store: store, clock: clock, policy: policy, resolver: resolver, maxRetries: retries}
}

// ClaimRequest is one inbound reward claim. Amount nil means the policy's
// fixed reward; a supplied amount must be strictly positive and is capped at
// the policy reward, an ad network can pay less but never more.
type ClaimRequest struct {
	UserID     string
	ReferrerID string
	Amount     *decimal.Decimal
}

// ClaimResult reports the outcome of a claim. When Granted is false, Reason
// carries the stable denial code and RetryAfter is set for cooldown denials.
type ClaimResult struct {
	Granted         bool
	Reason          string
	RetryAfterSec   int64
	Balance         decimal.Decimal
	Amount          decimal.Decimal
	FirstClaim      bool
	ReferralApplied bool
}

// Claim runs one claim. Denials are results, not errors; errors are reserved
// for invalid input and store failures.
func (e *Engine) Claim(ctx context.Context, req ClaimRequest) (*ClaimResult, error) {
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}
	referrerID := strings.TrimSpace(req.ReferrerID)
	if referrerID == userID {
		// Self-referral is ignored rather than rejected, matching what the
		// client flow produces when a user opens their own invite link.
		referrerID = ""
	}
	if req.Amount != nil && !req.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}

	for attempt := 0; attempt < e.maxRetries; attempt++ {
		acc, err := e.fetchOrCreate(ctx, userID)
		if err != nil {
			return nil, err
		}

		now := e.clock.Now().UTC()
		decision := e.policy.Evaluate(acc, now)
		if !decision.Allowed {
			res := &ClaimResult{Reason: decision.Reason, Balance: acc.Balance}
			if decision.RetryAfter > 0 {
				res.RetryAfterSec = int64(decision.RetryAfter.Seconds() + 0.999)
			}
			return res, nil
		}

		amount := decision.Reward
		if req.Amount != nil && req.Amount.LessThan(amount) {
			amount = *req.Amount
		}

		if acc.DailyWindow != DayKey(now) {
			acc.DailyWindow = DayKey(now)
			acc.DailyViews = 0
		}
		acc.DailyViews++
		acc.LifetimeViews++
		acc.Balance = acc.Balance.Add(amount)
		claimedAt := now
		acc.LastClaimAt = &claimedAt

		if err := e.store.Update(ctx, acc); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return nil, fmt.Errorf("persist claim: %w", err)
		}

		res := &ClaimResult{
			Granted:    true,
			Balance:    acc.Balance,
			Amount:     amount,
			FirstClaim: acc.LifetimeViews == 1,
		}
		e.afterGrant(ctx, acc, referrerID, amount, res)
		return res, nil
	}
	return nil, ErrRetryExhausted
}

// fetchOrCreate returns the account for id, lazily creating a zeroed row the
// first time an identity is seen. A create losing the race falls back to the
// winner's row.
func (e *Engine) fetchOrCreate(ctx context.Context, id string) (*models.Account, error) {
	acc, err := e.store.Get(ctx, id)
	if err == nil {
		return acc, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, fmt.Errorf("load account: %w", err)
	}
	acc = &models.Account{ID: id, Balance: decimal.Zero}
	if err := e.store.Create(ctx, acc); err != nil {
		if errors.Is(err, ErrConflict) {
			return e.store.Get(ctx, id)
		}
		return nil, fmt.Errorf("create account: %w", err)
	}
	return acc, nil
}

// afterGrant handles the post-commit side work: referral attribution on the
// first-ever claim and the audit row. Neither can take back the grant, so
// failures are logged and folded into the result instead of erroring.
func (e *Engine) afterGrant(ctx context.Context, acc *models.Account, referrerID string, amount decimal.Decimal, res *ClaimResult) {
	if res.FirstClaim && referrerID != "" && acc.ReferrerID == "" && e.resolver != nil {
		applied, err := e.resolver.Attribute(ctx, acc.ID, referrerID)
		if err != nil && utils.Sugar != nil {
			utils.Sugar.Warnf("referral attribution user=%s referrer=%s: %v", acc.ID, referrerID, err)
		}
		if applied {
			res.ReferralApplied = true
			// The attributing write may have added the welcome bonus; report
			// the fresh balance so the client does not show a stale figure.
			if fresh, err := e.store.Get(ctx, acc.ID); err == nil {
				res.Balance = fresh.Balance
			}
		}
	}

	view := &models.AdView{AccountID: acc.ID, Amount: amount, ViewedAt: *acc.LastClaimAt}
	if err := e.store.RecordView(ctx, view); err != nil && utils.Sugar != nil {
		utils.Sugar.Warnf("claim audit row user=%s: %v", acc.ID, err)
	}
}
