package memstore

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledger-transfers/internal/domain"
	"ledger-transfers/internal/errors"
)

func amt(n int64) decimal.Decimal { return decimal.NewFromInt(n) }

func newAccount(t *testing.T, s *Store, balance int64) *domain.Account {
	t.Helper()
	account := &domain.Account{InitialBalance: amt(balance), Balance: amt(balance)}
	require.NoError(t, s.CreateAccount(account))
	return account
}

func TestAccountsRoundTrip(t *testing.T) {
	s := New()

	a := newAccount(t, s, 50)
	b := newAccount(t, s, 75)
	assert.NotEqual(t, a.ID, b.ID)

	got, err := s.GetAccount(a.ID)
	require.NoError(t, err)
	assert.True(t, got.Balance.Equal(amt(50)))

	_, err = s.GetAccount(404)
	assert.True(t, errors.Is(err, errors.AccountNotFound))
}

func TestGetAccountReturnsCopy(t *testing.T) {
	s := New()
	a := newAccount(t, s, 50)

	got, err := s.GetAccount(a.ID)
	require.NoError(t, err)
	got.Balance = amt(0)

	again, err := s.GetAccount(a.ID)
	require.NoError(t, err)
	assert.True(t, again.Balance.Equal(amt(50)), "callers must not reach stored state")
}

func TestUpdateTransferStateAffectedCount(t *testing.T) {
	s := New()
	a := newAccount(t, s, 50)
	b := newAccount(t, s, 50)

	transfer := &domain.Transfer{FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt(10), State: domain.StatePending}
	require.NoError(t, s.CreateTransfer(transfer))

	affected, err := s.UpdateTransferState(transfer.ID, domain.StateSubmitted, "")
	require.NoError(t, err)
	assert.Equal(t, int64(1), affected)

	affected, err = s.UpdateTransferState(404, domain.StateSubmitted, "")
	require.NoError(t, err)
	assert.Equal(t, int64(0), affected)
}

func TestListingsFilterByStateAndDirection(t *testing.T) {
	s := New()
	a := newAccount(t, s, 100)
	b := newAccount(t, s, 100)

	states := []domain.TransferState{
		domain.StatePending,
		domain.StateSubmitted,
		domain.StateSuccess,
		domain.StateAPIError,
	}
	for _, state := range states {
		require.NoError(t, s.CreateTransfer(&domain.Transfer{
			FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt(10), State: state,
		}))
	}

	inFlight, err := s.ListInFlightOutgoingTransfers(a.ID)
	require.NoError(t, err)
	require.Len(t, inFlight, 2)
	assert.Equal(t, domain.StatePending, inFlight[0].State)
	assert.Equal(t, domain.StateSubmitted, inFlight[1].State)

	// Incoming transfers are not "outgoing" for the receiver.
	inFlight, err = s.ListInFlightOutgoingTransfers(b.ID)
	require.NoError(t, err)
	assert.Empty(t, inFlight)

	all, err := s.ListTransfersForAccount(b.ID)
	require.NoError(t, err)
	assert.Len(t, all, len(states))

	review, err := s.ListTransfersNeedingReview()
	require.NoError(t, err)
	require.Len(t, review, 1)
	assert.Equal(t, domain.StateAPIError, review[0].State)
}

func TestApplyAtomicMovesEverythingTogether(t *testing.T) {
	s := New()
	a := newAccount(t, s, 50)
	b := newAccount(t, s, 50)

	transfer := &domain.Transfer{FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt(10), State: domain.StateSubmitted}
	require.NoError(t, s.CreateTransfer(transfer))

	err := s.ApplyAtomic(
		domain.TransferUpdate{TransferID: transfer.ID, State: domain.StateSuccess},
		[]domain.BalanceUpdate{
			{AccountID: a.ID, Delta: amt(10).Neg()},
			{AccountID: b.ID, Delta: amt(10)},
		},
	)
	require.NoError(t, err)

	got, err := s.GetTransfer(transfer.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.StateSuccess, got.State)

	accA, _ := s.GetAccount(a.ID)
	accB, _ := s.GetAccount(b.ID)
	assert.True(t, accA.Balance.Equal(amt(40)))
	assert.True(t, accB.Balance.Equal(amt(60)))
}

func TestApplyAtomicRollsBackOnUnknownAccount(t *testing.T) {
	s := New()
	a := newAccount(t, s, 50)
	b := newAccount(t, s, 50)

	transfer := &domain.Transfer{FromAccountID: a.ID, ToAccountID: b.ID, Amount: amt(10), State: domain.StateSubmitted}
	require.NoError(t, s.CreateTransfer(transfer))

	err := s.ApplyAtomic(
		domain.TransferUpdate{TransferID: transfer.ID, State: domain.StateSuccess},
		[]domain.BalanceUpdate{
			{AccountID: a.ID, Delta: amt(10).Neg()},
			{AccountID: 404, Delta: amt(10)},
		},
	)
	require.Error(t, err)

	// Nothing may change when any part of the unit fails.
	got, _ := s.GetTransfer(transfer.ID)
	assert.Equal(t, domain.StateSubmitted, got.State)
	accA, _ := s.GetAccount(a.ID)
	assert.True(t, accA.Balance.Equal(amt(50)))
}

func TestApplyAtomicUnknownTransfer(t *testing.T) {
	s := New()
	a := newAccount(t, s, 50)

	err := s.ApplyAtomic(
		domain.TransferUpdate{TransferID: 404, State: domain.StateSuccess},
		[]domain.BalanceUpdate{{AccountID: a.ID, Delta: amt(10)}},
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.PersistenceFailure))

	accA, _ := s.GetAccount(a.ID)
	assert.True(t, accA.Balance.Equal(amt(50)))
}
