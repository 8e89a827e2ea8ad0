// Package memstore provides an in-memory LedgerStore for tests and the demo
// driver. It honors the same semantics as the Postgres store: copies in and
// out, atomic settlement, and affected-row counts.
package memstore

import (
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"ledger-transfers/internal/domain"
	"ledger-transfers/internal/errors"
)

type Store struct {
	mu             sync.RWMutex
	accounts       map[int64]*domain.Account
	transfers      map[int64]*domain.Transfer
	nextAccountID  int64
	nextTransferID int64
}

var _ domain.LedgerStore = (*Store)(nil)

func New() *Store {
	return &Store{
		accounts:       make(map[int64]*domain.Account),
		transfers:      make(map[int64]*domain.Transfer),
		nextAccountID:  1,
		nextTransferID: 1,
	}
}

func (s *Store) CreateAccount(account *domain.Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	account.ID = s.nextAccountID
	s.nextAccountID++
	account.CreatedAt = now
	account.UpdatedAt = now

	stored := *account
	s.accounts[account.ID] = &stored
	return nil
}

func (s *Store) GetAccount(id int64) (*domain.Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[id]
	if !ok {
		return nil, errors.ErrAccountNotFound
	}
	out := *account
	return &out, nil
}

// SetBalance overwrites an account balance directly, bypassing the
// orchestrator. Exists so tests can inject ledger drift.
func (s *Store) SetBalance(id int64, balance decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	account, ok := s.accounts[id]
	if !ok {
		return errors.ErrAccountNotFound
	}
	account.Balance = balance
	account.UpdatedAt = time.Now()
	return nil
}

func (s *Store) CreateTransfer(transfer *domain.Transfer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now()
	transfer.ID = s.nextTransferID
	s.nextTransferID++
	transfer.CreatedAt = now
	transfer.UpdatedAt = now

	stored := *transfer
	s.transfers[transfer.ID] = &stored
	return nil
}

func (s *Store) GetTransfer(id int64) (*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	transfer, ok := s.transfers[id]
	if !ok {
		return nil, errors.ErrTransferNotFound
	}
	out := *transfer
	return &out, nil
}

func (s *Store) ListInFlightOutgoingTransfers(accountID int64) ([]*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(t *domain.Transfer) bool {
		return t.FromAccountID == accountID && t.State.InFlight()
	}), nil
}

func (s *Store) ListTransfersForAccount(accountID int64) ([]*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(t *domain.Transfer) bool {
		return t.FromAccountID == accountID || t.ToAccountID == accountID
	}), nil
}

func (s *Store) ListTransfersNeedingReview() ([]*domain.Transfer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.collect(func(t *domain.Transfer) bool {
		return t.State.RequiresManualReview()
	}), nil
}

func (s *Store) UpdateTransferState(id int64, state domain.TransferState, statusMessage string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	transfer, ok := s.transfers[id]
	if !ok {
		return 0, nil
	}
	transfer.State = state
	transfer.StatusMessage = statusMessage
	transfer.UpdatedAt = time.Now()
	return 1, nil
}

func (s *Store) ApplyAtomic(update domain.TransferUpdate, balances []domain.BalanceUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate everything before mutating anything, so a failure leaves the
	// store untouched.
	transfer, ok := s.transfers[update.TransferID]
	if !ok {
		return errors.NewAppErrorf(errors.PersistenceFailure,
			"transfer %d missing during atomic settlement", update.TransferID)
	}
	for _, bu := range balances {
		if _, ok := s.accounts[bu.AccountID]; !ok {
			return errors.ErrAccountNotFound
		}
	}

	now := time.Now()
	for _, bu := range balances {
		account := s.accounts[bu.AccountID]
		account.Balance = account.Balance.Add(bu.Delta)
		account.UpdatedAt = now
	}
	transfer.State = update.State
	transfer.StatusMessage = update.StatusMessage
	transfer.UpdatedAt = now
	return nil
}

// collect is called with the read lock held; transfers come back ordered by
// id, matching the Postgres queries.
func (s *Store) collect(keep func(*domain.Transfer) bool) []*domain.Transfer {
	var out []*domain.Transfer
	for id := int64(1); id < s.nextTransferID; id++ {
		transfer, ok := s.transfers[id]
		if !ok || !keep(transfer) {
			continue
		}
		copied := *transfer
		out = append(out, &copied)
	}
	return out
}
