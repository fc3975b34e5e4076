package ledger

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/torreads/adledger/models"
	"github.com/torreads/adledger/utils"
)

// WithdrawalProcessor validates the minimum-balance gate, alerts the
// operator, and zeroes the balance. Zeroing is one-way; no funds move here,
// settlement is entirely the operator's problem.
type WithdrawalProcessor struct {
	store    Store
	clock    Clock
	notifier Notifier
	// Minimum is the smallest balance eligible for withdrawal.
	Minimum       decimal.Decimal
	notifyTimeout time.Duration
	maxRetries    int
}

// NewWithdrawalProcessor wires the processor. notifier may be nil when no
// channel is configured; retries <= 0 uses the default budget.
func NewWithdrawalProcessor(store Store, clock Clock, notifier Notifier, minimum decimal.Decimal, notifyTimeout time.Duration, retries int) *WithdrawalProcessor {
	if retries <= 0 {
		retries = defaultMaxRetries
	}
	if notifyTimeout <= 0 {
		notifyTimeout = 5 * time.Second
	}
	return &WithdrawalProcessor{
		store:         store,
		clock:         clock,
		notifier:      notifier,
		Minimum:       minimum,
		notifyTimeout: notifyTimeout,
		maxRetries:    retries,
	}
}

// WithdrawalResult reports the outcome. Warning is set when the state change
// succeeded but the operator notification did not go out.
type WithdrawalResult struct {
	Accepted  bool
	Reason    string
	RequestID string
	Amount    decimal.Decimal
	Minimum   decimal.Decimal
	Warning   string
}

// Request processes a withdrawal for userID. ErrNotFound surfaces for unseen
// identities; a balance below the minimum is a denial result, not an error.
// View counters are never touched, only the balance goes to zero.
func (p *WithdrawalProcessor) Request(ctx context.Context, userID, walletAddress string) (*WithdrawalResult, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	var amount decimal.Decimal
	zeroed := false
	for attempt := 0; attempt < p.maxRetries; attempt++ {
		acc, err := p.store.Get(ctx, userID)
		if err != nil {
			return nil, err
		}
		if acc.Balance.LessThan(p.Minimum) {
			return &WithdrawalResult{Reason: ReasonBelowMinimum, Amount: acc.Balance, Minimum: p.Minimum}, nil
		}
		amount = acc.Balance
		acc.Balance = decimal.Zero
		if err := p.store.Update(ctx, acc); err != nil {
			if errors.Is(err, ErrConflict) {
				// A claim landed in between; re-read so the fresh balance is
				// the one that gets zeroed and reported.
				continue
			}
			return nil, fmt.Errorf("zero balance: %w", err)
		}
		zeroed = true
		break
	}
	if !zeroed {
		return nil, ErrRetryExhausted
	}

	now := p.clock.Now().UTC()
	w := &models.Withdrawal{
		ID:            uuid.NewString(),
		AccountID:     userID,
		Amount:        amount,
		WalletAddress: walletAddress,
		Status:        models.WithdrawalStatusPending,
		RequestedAt:   now,
	}
	if err := p.store.CreateWithdrawal(ctx, w); err != nil && utils.Sugar != nil {
		utils.Sugar.Errorf("withdrawal row user=%s request=%s: %v", userID, w.ID, err)
	}

	res := &WithdrawalResult{Accepted: true, RequestID: w.ID, Amount: amount, Minimum: p.Minimum}
	if p.notifier != nil {
		nctx, cancel := context.WithTimeout(ctx, p.notifyTimeout)
		defer cancel()
		notice := WithdrawalNotice{
			RequestID:     w.ID,
			AccountID:     userID,
			Amount:        amount,
			WalletAddress: walletAddress,
			RequestedAt:   now,
		}
		if err := p.notifier.NotifyWithdrawal(nctx, notice); err != nil {
			res.Warning = "operator notification failed"
			if utils.Sugar != nil {
				utils.Sugar.Warnf("withdrawal notify user=%s request=%s: %v", userID, w.ID, err)
			}
		}
	}
	return res, nil
}
