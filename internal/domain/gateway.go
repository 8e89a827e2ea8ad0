package domain

import (
	"context"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// GatewayResponse is the outcome of a single gateway call. State is one of
// StateSuccess, StateFailed or StateAPIError.
type GatewayResponse struct {
	State         TransferState `json:"state"`
	StatusMessage string        `json:"status_message,omitempty"`
}

// GatewayAPI is a single, non-retrying call to the external payment gateway.
// Implementations must treat idempotencyKey as a deduplication token: a
// resubmission carrying the same key must not move money twice.
type GatewayAPI interface {
	SendMoney(ctx context.Context, idempotencyKey uuid.UUID, transferID, fromAccountID, toAccountID int64, amount decimal.Decimal) (*GatewayResponse, error)
}
