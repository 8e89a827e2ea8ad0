package service

import (
	"log/slog"

	"github.com/shopspring/decimal"

	"ledger-transfers/internal/domain"
)

// ReconciliationReport compares an account's stored balance against the
// balance implied by its settled transfer history.
type ReconciliationReport struct {
	AccountID       int64           `json:"account_id"`
	ExpectedBalance decimal.Decimal `json:"expected_balance"`
	ActualBalance   decimal.Decimal `json:"actual_balance"`
	Discrepancy     decimal.Decimal `json:"discrepancy"`
	SettledCount    int             `json:"settled_count"`
	IgnoredCount    int             `json:"ignored_count"`
}

// Balanced reports whether stored and recomputed balances agree.
func (r *ReconciliationReport) Balanced() bool {
	return r.Discrepancy.IsZero()
}

// Reconciler is a read-only audit. It recomputes the expected balance from
// the initial balance plus settled transfer history and reports drift; it
// never corrects anything.
type Reconciler struct {
	store  domain.LedgerStore
	logger *slog.Logger
}

func NewReconciler(store domain.LedgerStore, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:  store,
		logger: logger,
	}
}

// Reconcile folds the account's transfer history: settled (success) amounts
// are added for incoming transfers and subtracted for outgoing ones. Every
// other state never settled and is ignored. Discrepancy is actual minus
// expected, so an out-of-band credit shows up positive.
func (r *Reconciler) Reconcile(accountID int64) (*ReconciliationReport, error) {
	account, err := r.store.GetAccount(accountID)
	if err != nil {
		return nil, err
	}

	transfers, err := r.store.ListTransfersForAccount(accountID)
	if err != nil {
		return nil, err
	}

	expected := account.InitialBalance
	settled, ignored := 0, 0
	for _, transfer := range transfers {
		if transfer.State != domain.StateSuccess {
			ignored++
			continue
		}
		settled++
		if transfer.FromAccountID == accountID {
			expected = expected.Sub(transfer.Amount)
		}
		if transfer.ToAccountID == accountID {
			expected = expected.Add(transfer.Amount)
		}
	}

	report := &ReconciliationReport{
		AccountID:       accountID,
		ExpectedBalance: expected,
		ActualBalance:   account.Balance,
		Discrepancy:     account.Balance.Sub(expected),
		SettledCount:    settled,
		IgnoredCount:    ignored,
	}

	if report.Balanced() {
		r.logger.Info("Account reconciled",
			"account_id", accountID, "balance", account.Balance, "settled", settled)
	} else {
		r.logger.Warn("Reconciliation discrepancy",
			"account_id", accountID,
			"expected_balance", report.ExpectedBalance,
			"actual_balance", report.ActualBalance,
			"discrepancy", report.Discrepancy)
	}

	return report, nil
}
