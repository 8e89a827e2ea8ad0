package service

import (
	"context"
	"log/slog"

	"github.com/shopspring/decimal"

	"ledger-transfers/internal/domain"
	"ledger-transfers/internal/errors"
	"ledger-transfers/internal/gateway"
)

// TransferService orchestrates transfer creation and processing: funds
// availability, the state machine, the retrying gateway call and the atomic
// settlement write.
type TransferService struct {
	store   domain.LedgerStore
	gateway *gateway.Client
	logger  *slog.Logger
	locks   *accountLocks
}

func NewTransferService(store domain.LedgerStore, gatewayClient *gateway.Client, logger *slog.Logger) *TransferService {
	return &TransferService{
		store:   store,
		gateway: gatewayClient,
		logger:  logger,
		locks:   newAccountLocks(),
	}
}

// AvailableFunds computes the account's spendable balance: current balance
// minus the sum of in-flight outgoing transfers, minus any excluded ids.
// A transfer being processed excludes its own id so its pending record does
// not count against itself.
func (s *TransferService) AvailableFunds(accountID int64, excludeTransferIDs ...int64) (decimal.Decimal, error) {
	account, err := s.store.GetAccount(accountID)
	if err != nil {
		return decimal.Zero, err
	}

	inFlight, err := s.store.ListInFlightOutgoingTransfers(accountID)
	if err != nil {
		return decimal.Zero, err
	}

	excluded := make(map[int64]bool, len(excludeTransferIDs))
	for _, id := range excludeTransferIDs {
		excluded[id] = true
	}

	reserved := decimal.Zero
	for _, transfer := range inFlight {
		if excluded[transfer.ID] {
			continue
		}
		reserved = reserved.Add(transfer.Amount)
	}

	return account.Balance.Sub(reserved), nil
}

// CreateTransfer validates the request and persists a pending transfer. With
// processImmediately set it also runs the transfer through the gateway before
// returning; the availability check then happens inside processing, which
// cancels the persisted record on a shortfall. Without it, a creation-time
// shortfall is rejected before any record exists.
func (s *TransferService) CreateTransfer(ctx context.Context, fromAccountID, toAccountID int64, amount decimal.Decimal, processImmediately bool) (*domain.Transfer, error) {
	s.logger.Info("Creating transfer",
		"from_account_id", fromAccountID,
		"to_account_id", toAccountID,
		"amount", amount,
		"process_immediately", processImmediately)

	if amount.IsNegative() || amount.IsZero() {
		return nil, errors.ErrInvalidAmount
	}
	if fromAccountID == toAccountID {
		return nil, errors.ErrSameAccount
	}
	if _, err := s.store.GetAccount(fromAccountID); err != nil {
		return nil, err
	}
	if _, err := s.store.GetAccount(toAccountID); err != nil {
		return nil, err
	}

	if !processImmediately {
		// No exclusions here: the transfer does not exist yet. On shortfall
		// no record is created at all. The immediate path defers to the
		// serialized re-check in reserveFunds instead, so a shortfall there
		// leaves a cancelled record behind.
		available, err := s.AvailableFunds(fromAccountID)
		if err != nil {
			return nil, err
		}
		if amount.GreaterThan(available) {
			return nil, s.insufficientFunds(fromAccountID, amount, available)
		}
	}

	transfer := &domain.Transfer{
		FromAccountID: fromAccountID,
		ToAccountID:   toAccountID,
		Amount:        amount,
		State:         domain.StatePending,
	}
	if err := s.store.CreateTransfer(transfer); err != nil {
		return nil, err
	}

	if processImmediately {
		return s.ProcessTransfer(ctx, transfer.ID)
	}

	return transfer, nil
}

// ProcessTransfer drives a pending transfer to a terminal state: availability
// re-check, submission to the gateway, and settlement. Balances move only on
// a success outcome, atomically with the terminal-state write.
func (s *TransferService) ProcessTransfer(ctx context.Context, transferID int64) (*domain.Transfer, error) {
	transfer, err := s.store.GetTransfer(transferID)
	if err != nil {
		return nil, err
	}

	submitted, err := s.reserveFunds(transfer)
	if err != nil {
		return nil, err
	}

	response := s.gateway.Submit(ctx, submitted.ID, submitted.FromAccountID, submitted.ToAccountID, submitted.Amount)

	if err := s.settle(submitted, response); err != nil {
		return nil, err
	}

	return s.store.GetTransfer(submitted.ID)
}

// reserveFunds holds the sender's lock across the availability re-check and
// the pending -> submitted write, so two concurrent transfers cannot both
// observe the same spendable balance. Returns the transfer in its submitted
// state.
func (s *TransferService) reserveFunds(transfer *domain.Transfer) (*domain.Transfer, error) {
	lock := s.locks.forAccount(transfer.FromAccountID)
	lock.Lock()
	defer lock.Unlock()

	// Re-read under the lock: another goroutine may have processed this
	// transfer between the caller's fetch and here.
	current, err := s.store.GetTransfer(transfer.ID)
	if err != nil {
		return nil, err
	}
	if err := domain.ValidateForProcessing(current); err != nil {
		s.logger.Warn("Transfer not processable",
			"transfer_id", current.ID, "state", current.State)
		return nil, err
	}

	// The transfer itself is pending and would otherwise count its own
	// amount against the sender.
	available, err := s.AvailableFunds(current.FromAccountID, current.ID)
	if err != nil {
		return nil, err
	}

	if current.Amount.GreaterThan(available) {
		// The cancellation is persisted even though the operation fails:
		// callers must be able to tell a cancelled transfer from one that
		// never existed.
		if err := s.writeState(current, domain.StateCancelled, "Insufficient funds"); err != nil {
			return nil, err
		}
		return nil, s.insufficientFunds(current.FromAccountID, current.Amount, available)
	}

	if err := s.writeState(current, domain.StateSubmitted, ""); err != nil {
		return nil, err
	}
	return current, nil
}

// settle records the gateway outcome. A success settles atomically with both
// balance mutations; any other outcome only writes the terminal state.
func (s *TransferService) settle(transfer *domain.Transfer, response *domain.GatewayResponse) error {
	if err := domain.StateSubmitted.ValidateTransition(response.State); err != nil {
		return errors.NewAppErrorf(errors.InternalError,
			"gateway returned unexpected state %q for transfer %d", response.State, transfer.ID)
	}

	if response.State != domain.StateSuccess {
		if response.State.RequiresManualReview() {
			s.logger.Warn("Transfer exhausted gateway retries, needs operator review",
				"transfer_id", transfer.ID, "status_message", response.StatusMessage)
		}
		return s.writeState(transfer, response.State, response.StatusMessage)
	}

	err := s.store.ApplyAtomic(
		domain.TransferUpdate{
			TransferID:    transfer.ID,
			State:         domain.StateSuccess,
			StatusMessage: response.StatusMessage,
		},
		[]domain.BalanceUpdate{
			{AccountID: transfer.FromAccountID, Delta: transfer.Amount.Neg()},
			{AccountID: transfer.ToAccountID, Delta: transfer.Amount},
		},
	)
	if err != nil {
		s.logger.Error("Settlement write failed, transfer needs reconciliation review",
			"transfer_id", transfer.ID, "error", err)
		if errors.Is(err, errors.PersistenceFailure) {
			return err
		}
		return errors.NewAppError(errors.PersistenceFailure, "failed to settle transfer").WithDetails(err.Error())
	}

	s.logger.Info("Transfer settled",
		"transfer_id", transfer.ID,
		"from_account_id", transfer.FromAccountID,
		"to_account_id", transfer.ToAccountID,
		"amount", transfer.Amount)
	return nil
}

// GetTransfer looks up a single transfer.
func (s *TransferService) GetTransfer(transferID int64) (*domain.Transfer, error) {
	return s.store.GetTransfer(transferID)
}

// ListTransfersNeedingReview returns transfers whose gateway retries
// exhausted without a conclusive outcome.
func (s *TransferService) ListTransfersNeedingReview() ([]*domain.Transfer, error) {
	return s.store.ListTransfersNeedingReview()
}

// writeState moves a transfer along the state machine and persists the
// result. A write that lands on zero rows means the ledger and the engine
// disagree, which is fatal to the operation.
func (s *TransferService) writeState(transfer *domain.Transfer, state domain.TransferState, statusMessage string) error {
	if err := transfer.State.ValidateTransition(state); err != nil {
		return err
	}

	affected, err := s.store.UpdateTransferState(transfer.ID, state, statusMessage)
	if err != nil {
		return err
	}
	if affected == 0 {
		s.logger.Error("Transfer state write affected no rows",
			"transfer_id", transfer.ID, "state", state)
		return errors.NewAppErrorf(errors.PersistenceFailure,
			"failed to set transfer %d state to %q", transfer.ID, state)
	}

	transfer.State = state
	transfer.StatusMessage = statusMessage
	return nil
}

func (s *TransferService) insufficientFunds(accountID int64, amount, available decimal.Decimal) error {
	s.logger.Warn("Insufficient funds",
		"account_id", accountID, "amount", amount, "available", available)
	return errors.NewAppErrorf(errors.InsufficientFunds,
		"insufficient funds for account %d: transfer amount %s, available funds %s",
		accountID, amount, available)
}
