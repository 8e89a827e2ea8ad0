package domain

import (
	"ledger-transfers/internal/errors"
)

// TransferState is the closed set of states a transfer moves through.
type TransferState string

const (
	// StatePending: created, funds were available at creation time, not yet
	// submitted to the gateway.
	StatePending TransferState = "pending"
	// StateSubmitted: funds re-validated, gateway call in flight.
	StateSubmitted TransferState = "submitted"
	// StateSuccess: gateway confirmed settlement. The only state that
	// mutates account balances.
	StateSuccess TransferState = "success"
	// StateFailed: gateway declined (business rejection).
	StateFailed TransferState = "failed"
	// StateAPIError: the gateway call never completed conclusively and
	// retries exhausted. Requires operator review.
	StateAPIError TransferState = "apiError"
	// StateCancelled: funds became insufficient between creation and
	// submission.
	StateCancelled TransferState = "cancelled"
)

// allowedTransitions maps each state to the states it may move to. States
// absent or mapped to an empty slice are terminal.
var allowedTransitions = map[TransferState][]TransferState{
	StatePending:   {StateSubmitted, StateCancelled},
	StateSubmitted: {StateSuccess, StateFailed, StateAPIError},
	StateSuccess:   {},
	StateFailed:    {},
	StateAPIError:  {},
	StateCancelled: {},
}

func (s TransferState) Valid() bool {
	_, ok := allowedTransitions[s]
	return ok
}

// CanTransition reports whether moving from s to the target state is allowed.
func (s TransferState) CanTransition(to TransferState) bool {
	for _, next := range allowedTransitions[s] {
		if next == to {
			return true
		}
	}
	return false
}

// ValidateTransition returns a typed error if the transition is not in the
// table.
func (s TransferState) ValidateTransition(to TransferState) error {
	if !s.CanTransition(to) {
		return errors.NewAppErrorf(errors.InvalidStateTransition,
			"transfer state cannot move from %q to %q", s, to)
	}
	return nil
}

// InFlight reports whether a transfer in this state counts against the
// sender's available funds.
func (s TransferState) InFlight() bool {
	return s == StatePending || s == StateSubmitted
}

// Terminal reports whether no further transitions are possible.
func (s TransferState) Terminal() bool {
	return len(allowedTransitions[s]) == 0 && s.Valid()
}

// RequiresManualReview reports whether the transfer ended without a
// conclusive gateway outcome and needs operator action.
func (s TransferState) RequiresManualReview() bool {
	return s == StateAPIError
}

// ValidateForProcessing rejects processing of any transfer that is not
// pending. Guards against double-submission of a transfer already in flight
// or already terminal.
func ValidateForProcessing(t *Transfer) error {
	if t.State != StatePending {
		return errors.NewAppErrorf(errors.InvalidStateForProcessing,
			"transfer %d is in invalid state for processing: %s", t.ID, t.State)
	}
	return nil
}
