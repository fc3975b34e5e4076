package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/torreads/adledger/models"
)

// MemStore is the in-process Store. It backs the "memory" database driver for
// single-instance deployments and doubles as the test double for the engine.
// All methods are safe for concurrent use; the version check under the mutex
// gives the same at-most-one-winner guarantee as the SQL implementation.
type MemStore struct {
	mu          sync.Mutex
	accounts    map[string]*models.Account
	views       []models.AdView
	referrals   []models.Referral
	withdrawals []models.Withdrawal
}

// NewMemStore returns an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{accounts: make(map[string]*models.Account)}
}

func (s *MemStore) Get(ctx context.Context, id string) (*models.Account, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	acc, ok := s.accounts[id]
	if !ok {
		return nil, ErrNotFound
	}
	return acc.Clone(), nil
}

func (s *MemStore) Create(ctx context.Context, acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.accounts[acc.ID]; ok {
		return ErrConflict
	}
	acc.Version = 0
	s.accounts[acc.ID] = acc.Clone()
	return nil
}

func (s *MemStore) Update(ctx context.Context, acc *models.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.accounts[acc.ID]
	if !ok {
		return ErrNotFound
	}
	if stored.Version != acc.Version {
		return ErrConflict
	}
	acc.Version++
	s.accounts[acc.ID] = acc.Clone()
	return nil
}

func (s *MemStore) RecordView(ctx context.Context, view *models.AdView) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	view.ID = uint(len(s.views) + 1)
	s.views = append(s.views, *view)
	return nil
}

func (s *MemStore) CreateReferral(ctx context.Context, ref *models.Referral) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.referrals {
		if existing.ReferredID == ref.ReferredID {
			return ErrConflict
		}
	}
	ref.ID = uint(len(s.referrals) + 1)
	s.referrals = append(s.referrals, *ref)
	return nil
}

func (s *MemStore) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.withdrawals = append(s.withdrawals, *w)
	return nil
}

func (s *MemStore) ReferralStats(ctx context.Context, referrerID string) (int64, decimal.Decimal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var count int64
	earned := decimal.Zero
	for _, ref := range s.referrals {
		if ref.ReferrerID == referrerID {
			count++
			earned = earned.Add(ref.ReferrerBonus)
		}
	}
	return count, earned, nil
}

func (s *MemStore) PendingWithdrawals(ctx context.Context, limit int) ([]models.Withdrawal, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Withdrawal, 0, limit)
	for _, w := range s.withdrawals {
		if w.Status != models.WithdrawalStatusPending {
			continue
		}
		out = append(out, w)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (s *MemStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := &Stats{Accounts: int64(len(s.accounts)), TotalBalance: decimal.Zero}
	for _, acc := range s.accounts {
		st.TotalBalance = st.TotalBalance.Add(acc.Balance)
	}
	today := DayKey(time.Now())
	for _, v := range s.views {
		if DayKey(v.ViewedAt) == today {
			st.ViewsToday++
		}
	}
	for _, w := range s.withdrawals {
		if w.Status == models.WithdrawalStatusPending {
			st.PendingWithdrawals++
		}
	}
	return st, nil
}
