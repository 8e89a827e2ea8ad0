// Command demo runs the engine end to end against an in-memory ledger and a
// deterministic gateway: two accounts, five transfers, then reconciliation
// of both accounts.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/shopspring/decimal"

	"ledger-transfers/internal/gateway"
	"ledger-transfers/internal/repository/memstore"
	"ledger-transfers/internal/service"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	ctx := context.Background()

	store := memstore.New()
	bank := gateway.NewSimulatedBank(gateway.ModeSucceed, logger)
	client := gateway.NewClient(bank, gateway.DefaultMaxAttempts, gateway.DefaultBackoffBase, logger)

	accounts := service.NewAccountService(store, logger)
	transfers := service.NewTransferService(store, client, logger)
	reconciler := service.NewReconciler(store, logger)

	account1, err := accounts.CreateAccount(decimal.NewFromInt(50))
	if err != nil {
		fail(logger, err)
	}
	account2, err := accounts.CreateAccount(decimal.NewFromInt(50))
	if err != nil {
		fail(logger, err)
	}

	steps := []struct {
		from, to           int64
		amount             int64
		processImmediately bool
	}{
		{account1.ID, account2.ID, 10, true},
		{account1.ID, account2.ID, 25, true},
		{account1.ID, account2.ID, 15, false},
		{account1.ID, account2.ID, 1, true},
		{account2.ID, account1.ID, 5, true},
	}

	for i, step := range steps {
		transfer, err := transfers.CreateTransfer(ctx, step.from, step.to, decimal.NewFromInt(step.amount), step.processImmediately)
		if err != nil {
			// The fourth transfer is expected to cancel: the pending third
			// transfer reserves the sender's remaining funds.
			logger.Warn("Transfer not settled", "step", i+1, "error", err)
			continue
		}
		logger.Info("Transfer done", "step", i+1, "transfer_id", transfer.ID, "state", transfer.State)
	}

	for _, id := range []int64{account1.ID, account2.ID} {
		report, err := reconciler.Reconcile(id)
		if err != nil {
			fail(logger, err)
		}
		logger.Info("Reconciliation result",
			"account_id", id,
			"expected_balance", report.ExpectedBalance,
			"actual_balance", report.ActualBalance,
			"balanced", report.Balanced())
	}
}

func fail(logger *slog.Logger, err error) {
	logger.Error("demo failed", "error", err)
	os.Exit(1)
}
