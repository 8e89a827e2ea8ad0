package gateway

import (
	"context"
	"log/slog"
	"math/rand/v2"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-transfers/internal/domain"
)

// Mode selects how the simulated bank decides outcomes.
type Mode string

const (
	// ModeRandom picks apiError, success or failed uniformly, mimicking an
	// unreliable gateway.
	ModeRandom Mode = "random"
	// ModeSucceed always settles. Used by the demo driver and tests that
	// need deterministic outcomes.
	ModeSucceed Mode = "succeed"
)

// SimulatedBank stands in for the real payment gateway. This obviously needs
// a real implementation behind it some day; the simulation only mimics the
// different outcome states.
type SimulatedBank struct {
	mode   Mode
	logger *slog.Logger
}

var _ domain.GatewayAPI = (*SimulatedBank)(nil)

func NewSimulatedBank(mode Mode, logger *slog.Logger) *SimulatedBank {
	if mode == "" {
		mode = ModeRandom
	}
	return &SimulatedBank{
		mode:   mode,
		logger: logger,
	}
}

func (b *SimulatedBank) SendMoney(ctx context.Context, idempotencyKey uuid.UUID, transferID, fromAccountID, toAccountID int64, amount decimal.Decimal) (*domain.GatewayResponse, error) {
	b.logger.Info("Submitting transfer to bank",
		"transfer_id", transferID,
		"idempotency_key", idempotencyKey,
		"from_account_id", fromAccountID,
		"to_account_id", toAccountID,
		"amount", amount)

	if b.mode == ModeSucceed {
		return &domain.GatewayResponse{State: domain.StateSuccess}, nil
	}

	switch rand.IntN(3) {
	case 0:
		b.logger.Error("Bank call blew up", "transfer_id", transferID)
		return &domain.GatewayResponse{
			State:         domain.StateAPIError,
			StatusMessage: "Kaboom!",
		}, nil
	case 1:
		return &domain.GatewayResponse{State: domain.StateSuccess}, nil
	default:
		return &domain.GatewayResponse{State: domain.StateFailed}, nil
	}
}
