// Package gateway wraps the external payment gateway with a bounded retry
// policy and an idempotency key so resubmissions are safe.
package gateway

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/LerianStudio/lib-uncommons/v2/uncommons/backoff"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"ledger-transfers/internal/domain"
)

const (
	// DefaultMaxAttempts caps submissions per transfer. Changing it
	// changes how many duplicate submissions a flaky gateway sees.
	DefaultMaxAttempts = 3

	// DefaultBackoffBase seeds the exponential backoff between attempts.
	DefaultBackoffBase = 100 * time.Millisecond
)

// transferIDNamespace scopes idempotency keys to this engine. UUIDv5 over
// the transfer id yields the same key on every retry of the same transfer.
var transferIDNamespace = uuid.MustParse("6f1c2f6e-9a1d-4a93-b1de-17f5a34c9f10")

// Client invokes the gateway up to MaxAttempts times. Only a transient
// apiError outcome is retried; success and failed are conclusive and stop
// the loop. If every attempt comes back apiError, the last response is the
// final result.
type Client struct {
	api         domain.GatewayAPI
	maxAttempts int
	backoffBase time.Duration
	logger      *slog.Logger
}

func NewClient(api domain.GatewayAPI, maxAttempts int, backoffBase time.Duration, logger *slog.Logger) *Client {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return &Client{
		api:         api,
		maxAttempts: maxAttempts,
		backoffBase: backoffBase,
		logger:      logger,
	}
}

// IdempotencyKey returns the deduplication token sent with every attempt for
// the given transfer.
func IdempotencyKey(transferID int64) uuid.UUID {
	return uuid.NewSHA1(transferIDNamespace, []byte(strconv.FormatInt(transferID, 10)))
}

// Submit runs the retry loop for one transfer. The returned response always
// carries one of StateSuccess, StateFailed or StateAPIError.
func (c *Client) Submit(ctx context.Context, transferID, fromAccountID, toAccountID int64, amount decimal.Decimal) *domain.GatewayResponse {
	key := IdempotencyKey(transferID)

	var response *domain.GatewayResponse
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		if attempt > 0 {
			delay := backoff.ExponentialWithJitter(c.backoffBase, attempt-1)
			if err := backoff.SleepWithContext(ctx, delay); err != nil {
				c.logger.Warn("Gateway retry interrupted",
					"transfer_id", transferID, "attempt", attempt, "error", err)
				return response
			}
		}

		resp, err := c.api.SendMoney(ctx, key, transferID, fromAccountID, toAccountID, amount)
		if err != nil {
			// A transport-level failure is indistinguishable from the
			// gateway's own apiError outcome: the call did not complete
			// conclusively, so it is retried the same way.
			c.logger.Error("Gateway call failed",
				"transfer_id", transferID, "attempt", attempt+1, "error", err)
			response = &domain.GatewayResponse{
				State:         domain.StateAPIError,
				StatusMessage: err.Error(),
			}
			continue
		}

		response = resp
		if resp.State != domain.StateAPIError {
			break
		}
		c.logger.Warn("Gateway returned transient error",
			"transfer_id", transferID, "attempt", attempt+1, "status_message", resp.StatusMessage)
	}

	c.logger.Info("Gateway submission finished",
		"transfer_id", transferID, "state", response.State)
	return response
}
