package repository

import (
	"database/sql"
	"log/slog"
	"sort"

	"ledger-transfers/internal/domain"
	"ledger-transfers/internal/errors"
)

// Store is the Postgres-backed ledger store. It exposes the repository
// operations over a shared executor, so the same code path serves both plain
// calls and calls inside WithTransaction.
type Store struct {
	executor SQLExecutor
	logger   *slog.Logger
}

var _ domain.LedgerStore = (*Store)(nil)

func NewStore(db *sql.DB, logger *slog.Logger) *Store {
	return &Store{
		executor: db,
		logger:   logger,
	}
}

func (s *Store) accounts() *accountRepository {
	return NewAccountRepository(s.executor, s.logger)
}

func (s *Store) transfers() *transferRepository {
	return NewTransferRepository(s.executor, s.logger)
}

func (s *Store) CreateAccount(account *domain.Account) error {
	return s.accounts().CreateAccount(account)
}

func (s *Store) GetAccount(id int64) (*domain.Account, error) {
	return s.accounts().GetAccount(id)
}

func (s *Store) CreateTransfer(transfer *domain.Transfer) error {
	return s.transfers().CreateTransfer(transfer)
}

func (s *Store) GetTransfer(id int64) (*domain.Transfer, error) {
	return s.transfers().GetTransfer(id)
}

func (s *Store) ListInFlightOutgoingTransfers(accountID int64) ([]*domain.Transfer, error) {
	return s.transfers().ListInFlightOutgoingTransfers(accountID)
}

func (s *Store) ListTransfersForAccount(accountID int64) ([]*domain.Transfer, error) {
	return s.transfers().ListTransfersForAccount(accountID)
}

func (s *Store) ListTransfersNeedingReview() ([]*domain.Transfer, error) {
	return s.transfers().ListTransfersNeedingReview()
}

func (s *Store) UpdateTransferState(id int64, state domain.TransferState, statusMessage string) (int64, error) {
	return s.transfers().UpdateTransferState(id, state, statusMessage)
}

// WithTransaction runs fn against a Store bound to a database transaction,
// committing on nil and rolling back otherwise.
func (s *Store) WithTransaction(fn func(*Store) error) error {
	db, ok := s.executor.(*sql.DB)
	if !ok {
		return errors.ErrCannotBeginTransaction
	}

	tx, err := db.Begin()
	if err != nil {
		return errors.NewAppError(errors.PersistenceFailure, "failed to begin transaction").WithDetails(err.Error())
	}

	txStore := &Store{
		executor: &TxWrapper{Tx: tx},
		logger:   s.logger,
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(txStore); err != nil {
		tx.Rollback()
		return err
	}

	if err := tx.Commit(); err != nil {
		return errors.NewAppError(errors.PersistenceFailure, "failed to commit transaction").WithDetails(err.Error())
	}
	return nil
}

// ApplyAtomic persists a transfer-state write and balance deltas as one
// transaction. Account rows are locked in ascending id order so concurrent
// settlements touching the same accounts cannot deadlock.
func (s *Store) ApplyAtomic(update domain.TransferUpdate, balances []domain.BalanceUpdate) error {
	return s.WithTransaction(func(tx *Store) error {
		ordered := make([]domain.BalanceUpdate, len(balances))
		copy(ordered, balances)
		sort.Slice(ordered, func(i, j int) bool {
			return ordered[i].AccountID < ordered[j].AccountID
		})

		accountRepo := tx.accounts()
		for _, bu := range ordered {
			account, err := accountRepo.GetAccountForUpdate(bu.AccountID)
			if err != nil {
				return err
			}
			if err := accountRepo.UpdateAccountBalance(bu.AccountID, account.Balance.Add(bu.Delta)); err != nil {
				return err
			}
		}

		affected, err := tx.transfers().UpdateTransferState(update.TransferID, update.State, update.StatusMessage)
		if err != nil {
			return err
		}
		if affected == 0 {
			return errors.NewAppErrorf(errors.PersistenceFailure,
				"transfer %d missing during atomic settlement", update.TransferID)
		}

		return nil
	})
}
