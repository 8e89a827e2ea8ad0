package service

import (
	"log/slog"
	"strconv"

	"github.com/shopspring/decimal"

	"ledger-transfers/internal/domain"
	"ledger-transfers/internal/errors"
)

type AccountService struct {
	store  domain.LedgerStore
	logger *slog.Logger
}

func NewAccountService(store domain.LedgerStore, logger *slog.Logger) *AccountService {
	return &AccountService{
		store:  store,
		logger: logger,
	}
}

// CreateAccount opens an account with the given starting balance. The
// initial balance is immutable afterwards; only settled transfers move the
// current balance.
func (s *AccountService) CreateAccount(initialBalance decimal.Decimal) (*domain.Account, error) {
	s.logger.Info("Creating account", "initial_balance", initialBalance)

	if initialBalance.IsNegative() {
		return nil, errors.NewAppError(errors.InvalidAmount, "initial balance must not be negative")
	}

	maxInitialBalance := decimal.NewFromInt(10_000_000_000) // 10 billion
	if initialBalance.GreaterThan(maxInitialBalance) {
		return nil, errors.NewAppError(errors.InvalidAmount, "initial balance exceeds maximum limit")
	}

	account := &domain.Account{
		InitialBalance: initialBalance,
		Balance:        initialBalance,
	}

	if err := s.store.CreateAccount(account); err != nil {
		return nil, err
	}

	s.logger.Info("Account created successfully", "account_id", account.ID)
	return account, nil
}

func (s *AccountService) GetAccount(accountID string) (*domain.Account, error) {
	id, err := strconv.ParseInt(accountID, 10, 64)
	if err != nil || id <= 0 {
		return nil, errors.ErrInvalidAccountID
	}

	return s.store.GetAccount(id)
}
