package ledger

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/torreads/adledger/models"
)

// Store is the durable ledger the engine runs against. Get/Create/Update on
// accounts are the contract that makes concurrent claims for the same
// identity serialize: Update is a compare-and-swap on Account.Version, and
// two conflicting updates never both succeed.
//
// The remaining methods are plain persistence for audit rows and read-side
// queries; none of them participate in the atomicity contract.
type Store interface {
	// Get returns the account or ErrNotFound. The returned value is a
	// private copy the caller may mutate freely.
	Get(ctx context.Context, id string) (*models.Account, error)
	// Create inserts a zero-version account, ErrConflict if the id exists.
	Create(ctx context.Context, acc *models.Account) error
	// Update persists acc if and only if the stored version still equals
	// acc.Version; on success the stored and in-memory versions are
	// incremented. ErrConflict means a concurrent writer won, re-read and
	// retry.
	Update(ctx context.Context, acc *models.Account) error

	// RecordView appends a claim audit row.
	RecordView(ctx context.Context, view *models.AdView) error
	// CreateReferral appends a referral edge row.
	CreateReferral(ctx context.Context, ref *models.Referral) error
	// CreateWithdrawal appends a pending withdrawal request row.
	CreateWithdrawal(ctx context.Context, w *models.Withdrawal) error

	// ReferralStats returns how many accounts referrerID has referred and
	// the total bonus it earned from them.
	ReferralStats(ctx context.Context, referrerID string) (count int64, earned decimal.Decimal, err error)
	// PendingWithdrawals lists withdrawal requests awaiting the operator,
	// oldest first.
	PendingWithdrawals(ctx context.Context, limit int) ([]models.Withdrawal, error)
	// Stats returns service-level aggregate counters.
	Stats(ctx context.Context) (*Stats, error)
}

// Stats is the aggregate snapshot served by the public stats endpoint.
type Stats struct {
	Accounts           int64           `json:"accounts"`
	ViewsToday         int64           `json:"views_today"`
	TotalBalance       decimal.Decimal `json:"total_balance"`
	PendingWithdrawals int64           `json:"pending_withdrawals"`
}
