package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/torreads/adledger/models"
	"github.com/torreads/adledger/utils"
)

// ReferralResolver attributes a referred account to its referrer at most
// once. The guard is the referred account's ReferrerID field: it is set in
// the same compare-and-swap write that credits the referred-side welcome
// bonus, so two racing first claims cannot both attribute.
type ReferralResolver struct {
	store Store
	clock Clock
	// ReferrerBonus is credited to the referrer on attribution.
	ReferrerBonus decimal.Decimal
	// ReferredBonus is the welcome bonus credited to the referred account in
	// the attributing write.
	ReferredBonus decimal.Decimal
	maxRetries    int
}

// NewReferralResolver builds a resolver; retries <= 0 falls back to the
// default conflict budget.
func NewReferralResolver(store Store, clock Clock, referrerBonus, referredBonus decimal.Decimal, retries int) *ReferralResolver {
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	return &ReferralResolver{
		store:         store,
		clock:         clock,
		ReferrerBonus: referrerBonus,
		ReferredBonus: referredBonus,
		maxRetries:    retries,
	}
}

// Attribute records the referral edge referrerID -> referredID and pays both
// bonuses. It returns whether attribution occurred; false with a nil error
// means the edge was invalid (self-referral, empty referrer) or already
// recorded. A second call for the same referred account is a no-op.
func (r *ReferralResolver) Attribute(ctx context.Context, referredID, referrerID string) (bool, error) {
	if referrerID == "" || referrerID == referredID {
		return false, nil
	}

	attributed := false
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		acc, err := r.store.Get(ctx, referredID)
		if err != nil {
			return false, fmt.Errorf("load referred account: %w", err)
		}
		if acc.ReferrerID != "" {
			// Already attributed, possibly by a racing claim.
			return false, nil
		}
		acc.ReferrerID = referrerID
		if r.ReferredBonus.IsPositive() {
			acc.Balance = acc.Balance.Add(r.ReferredBonus)
		}
		if err := r.store.Update(ctx, acc); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return false, fmt.Errorf("attribute referral: %w", err)
		}
		attributed = true
		break
	}
	if !attributed {
		return false, ErrRetryExhausted
	}

	if r.ReferrerBonus.IsPositive() {
		if err := r.creditReferrer(ctx, referrerID); err != nil {
			// The edge is recorded; the referrer credit failing is surfaced
			// but must not undo the attribution.
			return true, fmt.Errorf("credit referrer: %w", err)
		}
	}

	now := r.clock.Now().UTC()
	edge := &models.Referral{
		ReferrerID:    referrerID,
		ReferredID:    referredID,
		ReferrerBonus: r.ReferrerBonus,
		ReferredBonus: r.ReferredBonus,
		AttributedAt:  now,
	}
	if err := r.store.CreateReferral(ctx, edge); err != nil && !errors.Is(err, ErrConflict) {
		if utils.Sugar != nil {
			utils.Sugar.Warnf("referral edge row not recorded referred=%s referrer=%s: %v", referredID, referrerID, err)
		}
	}
	return true, nil
}

// creditReferrer adds the bonus to the referrer's balance, creating the
// account on first contact, with the usual compare-and-swap retry loop.
func (r *ReferralResolver) creditReferrer(ctx context.Context, referrerID string) error {
	for attempt := 0; attempt < r.maxRetries; attempt++ {
		acc, err := r.store.Get(ctx, referrerID)
		if errors.Is(err, ErrNotFound) {
			acc = &models.Account{ID: referrerID, Balance: r.ReferrerBonus}
			if err := r.store.Create(ctx, acc); err != nil {
				if errors.Is(err, ErrConflict) {
					continue
				}
				return err
			}
			return nil
		}
		if err != nil {
			return err
		}
		acc.Balance = acc.Balance.Add(r.ReferrerBonus)
		if err := r.store.Update(ctx, acc); err != nil {
			if errors.Is(err, ErrConflict) {
				continue
			}
			return err
		}
		return nil
	}
	return ErrRetryExhausted
}
