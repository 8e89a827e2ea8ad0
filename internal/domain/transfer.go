package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transfer is a directed request to move funds between two accounts. Transfer
// records are append-only: they are created in StatePending and updated
// through the state machine, never deleted.
type Transfer struct {
	ID            int64           `json:"id"`
	FromAccountID int64           `json:"from_account_id"`
	ToAccountID   int64           `json:"to_account_id"`
	Amount        decimal.Decimal `json:"amount"`
	State         TransferState   `json:"state"`
	StatusMessage string          `json:"status_message,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
}

// TransferUpdate is the transfer-state part of an atomic settlement write.
type TransferUpdate struct {
	TransferID    int64
	State         TransferState
	StatusMessage string
}

// BalanceUpdate adds Delta (negative for debits) to an account's balance.
type BalanceUpdate struct {
	AccountID int64
	Delta     decimal.Decimal
}

// LedgerStore is the durable record of accounts and transfers.
type LedgerStore interface {
	CreateAccount(account *Account) error
	GetAccount(id int64) (*Account, error)

	CreateTransfer(transfer *Transfer) error
	GetTransfer(id int64) (*Transfer, error)

	// ListInFlightOutgoingTransfers returns transfers from the given account
	// that are pending or submitted.
	ListInFlightOutgoingTransfers(accountID int64) ([]*Transfer, error)

	// ListTransfersForAccount returns every transfer where the account is
	// the sender or the receiver.
	ListTransfersForAccount(accountID int64) ([]*Transfer, error)

	// ListTransfersNeedingReview returns transfers whose gateway retries
	// exhausted, awaiting operator action.
	ListTransfersNeedingReview() ([]*Transfer, error)

	// UpdateTransferState writes a new state and status message, returning
	// the number of rows affected.
	UpdateTransferState(id int64, state TransferState, statusMessage string) (int64, error)

	// ApplyAtomic persists a transfer-state write together with balance
	// deltas as a single transaction. Either all writes land or none do.
	ApplyAtomic(update TransferUpdate, balances []BalanceUpdate) error
}
