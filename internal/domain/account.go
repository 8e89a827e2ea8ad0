package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Account is a balance-bearing ledger entity. InitialBalance is set once at
// creation; Balance is mutated only by the transfer orchestrator after a
// gateway success.
type Account struct {
	ID             int64           `json:"account_id"`
	InitialBalance decimal.Decimal `json:"initial_balance"`
	Balance        decimal.Decimal `json:"balance"`
	CreatedAt      time.Time       `json:"created_at"`
	UpdatedAt      time.Time       `json:"updated_at"`
}
