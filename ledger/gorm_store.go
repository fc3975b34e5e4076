package ledger

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/torreads/adledger/models"
)

// GormStore persists the ledger through GORM (MySQL in production, SQLite for
// small deployments and tests). Account updates are guarded by the version
// column: UPDATE ... WHERE id = ? AND version = ? either moves the row to
// version+1 or touches nothing, so concurrent claims for one identity
// serialize without any process-wide lock.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an initialized gorm DB.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.Account, error) {
	var acc models.Account
	err := s.db.WithContext(ctx).First(&acc, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &acc, nil
}

func (s *GormStore) Create(ctx context.Context, acc *models.Account) error {
	acc.Version = 0
	err := s.db.WithContext(ctx).Create(acc).Error
	if err != nil && isDuplicateKey(err) {
		return ErrConflict
	}
	return err
}

func (s *GormStore) Update(ctx context.Context, acc *models.Account) error {
	res := s.db.WithContext(ctx).Model(&models.Account{}).
		Where("id = ? AND version = ?", acc.ID, acc.Version).
		Updates(map[string]interface{}{
			"balance":        acc.Balance,
			"lifetime_views": acc.LifetimeViews,
			"daily_views":    acc.DailyViews,
			"daily_window":   acc.DailyWindow,
			"last_claim_at":  acc.LastClaimAt,
			"referrer_id":    acc.ReferrerID,
			"version":        acc.Version + 1,
			"updated_at":     time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		// Either a concurrent writer bumped the version or the row vanished;
		// both resolve the same way for the caller.
		return ErrConflict
	}
	acc.Version++
	return nil
}

func (s *GormStore) RecordView(ctx context.Context, view *models.AdView) error {
	return s.db.WithContext(ctx).Create(view).Error
}

func (s *GormStore) CreateReferral(ctx context.Context, ref *models.Referral) error {
	err := s.db.WithContext(ctx).Create(ref).Error
	if err != nil && isDuplicateKey(err) {
		return ErrConflict
	}
	return err
}

func (s *GormStore) CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error {
	return s.db.WithContext(ctx).Create(w).Error
}

func (s *GormStore) ReferralStats(ctx context.Context, referrerID string) (int64, decimal.Decimal, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_id = ?", referrerID).Count(&count).Error; err != nil {
		return 0, decimal.Zero, err
	}
	var earned decimal.NullDecimal
	if err := s.db.WithContext(ctx).Model(&models.Referral{}).
		Where("referrer_id = ?", referrerID).
		Select("SUM(referrer_bonus)").Scan(&earned).Error; err != nil {
		return 0, decimal.Zero, err
	}
	if !earned.Valid {
		return count, decimal.Zero, nil
	}
	return count, earned.Decimal, nil
}

func (s *GormStore) PendingWithdrawals(ctx context.Context, limit int) ([]models.Withdrawal, error) {
	var out []models.Withdrawal
	q := s.db.WithContext(ctx).
		Where("status = ?", models.WithdrawalStatusPending).
		Order("requested_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (s *GormStore) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{TotalBalance: decimal.Zero}
	if err := s.db.WithContext(ctx).Model(&models.Account{}).Count(&st.Accounts).Error; err != nil {
		return nil, err
	}
	var total decimal.NullDecimal
	if err := s.db.WithContext(ctx).Model(&models.Account{}).
		Select("SUM(balance)").Scan(&total).Error; err != nil {
		return nil, err
	}
	if total.Valid {
		st.TotalBalance = total.Decimal
	}
	dayStart := time.Now().UTC().Truncate(24 * time.Hour)
	if err := s.db.WithContext(ctx).Model(&models.AdView{}).
		Where("viewed_at >= ?", dayStart).Count(&st.ViewsToday).Error; err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Model(&models.Withdrawal{}).
		Where("status = ?", models.WithdrawalStatusPending).
		Count(&st.PendingWithdrawals).Error; err != nil {
		return nil, err
	}
	return st, nil
}

// isDuplicateKey detects unique-constraint violations across MySQL and SQLite
// without importing either driver's error types here.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate entry") || strings.Contains(msg, "unique constraint")
}
