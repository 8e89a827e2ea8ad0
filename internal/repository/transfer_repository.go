package repository

import (
	"database/sql"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"ledger-transfers/internal/domain"
	"ledger-transfers/internal/errors"
)

type transferRepository struct {
	db     SQLExecutor
	logger *slog.Logger
}

func NewTransferRepository(db SQLExecutor, logger *slog.Logger) *transferRepository {
	return &transferRepository{
		db:     db,
		logger: logger,
	}
}

const transferColumns = `id, from_account_id, to_account_id, amount, state, status_message, created_at, updated_at`

func (r *transferRepository) CreateTransfer(transfer *domain.Transfer) error {
	query := `
		INSERT INTO transfers
		(from_account_id, to_account_id, amount, state, status_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id
	`

	now := time.Now()
	err := r.db.QueryRow(
		query,
		transfer.FromAccountID,
		transfer.ToAccountID,
		transfer.Amount.String(),
		string(transfer.State),
		nullable(transfer.StatusMessage),
		now,
		now,
	).Scan(&transfer.ID)

	if err != nil {
		r.logger.Error("Failed to create transfer",
			"from_account_id", transfer.FromAccountID,
			"to_account_id", transfer.ToAccountID,
			"amount", transfer.Amount,
			"error", err)
		return errors.NewAppError(errors.PersistenceFailure, "failed to create transfer").WithDetails(err.Error())
	}

	transfer.CreatedAt = now
	transfer.UpdatedAt = now
	r.logger.Info("Transfer created",
		"transfer_id", transfer.ID,
		"from_account_id", transfer.FromAccountID,
		"to_account_id", transfer.ToAccountID,
		"amount", transfer.Amount)
	return nil
}

func (r *transferRepository) GetTransfer(id int64) (*domain.Transfer, error) {
	query := `SELECT ` + transferColumns + ` FROM transfers WHERE id = $1`

	rows, err := r.db.Query(query, id)
	if err != nil {
		r.logger.Error("Failed to get transfer", "transfer_id", id, "error", err)
		return nil, errors.NewAppError(errors.PersistenceFailure, "failed to get transfer").WithDetails(err.Error())
	}
	defer rows.Close()

	transfers, err := r.collectTransfers(rows)
	if err != nil {
		return nil, err
	}
	if len(transfers) == 0 {
		return nil, errors.ErrTransferNotFound
	}
	return transfers[0], nil
}

func (r *transferRepository) ListInFlightOutgoingTransfers(accountID int64) ([]*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE from_account_id = $1 AND state IN ($2, $3)
		ORDER BY id
	`

	rows, err := r.db.Query(query, accountID, string(domain.StatePending), string(domain.StateSubmitted))
	if err != nil {
		r.logger.Error("Failed to list in-flight transfers", "account_id", accountID, "error", err)
		return nil, errors.NewAppError(errors.PersistenceFailure, "failed to list in-flight transfers").WithDetails(err.Error())
	}
	defer rows.Close()

	return r.collectTransfers(rows)
}

func (r *transferRepository) ListTransfersForAccount(accountID int64) ([]*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE from_account_id = $1 OR to_account_id = $1
		ORDER BY id
	`

	rows, err := r.db.Query(query, accountID)
	if err != nil {
		r.logger.Error("Failed to list transfers for account", "account_id", accountID, "error", err)
		return nil, errors.NewAppError(errors.PersistenceFailure, "failed to list transfers for account").WithDetails(err.Error())
	}
	defer rows.Close()

	return r.collectTransfers(rows)
}

func (r *transferRepository) ListTransfersNeedingReview() ([]*domain.Transfer, error) {
	query := `
		SELECT ` + transferColumns + `
		FROM transfers
		WHERE state = $1
		ORDER BY id
	`

	rows, err := r.db.Query(query, string(domain.StateAPIError))
	if err != nil {
		r.logger.Error("Failed to list transfers needing review", "error", err)
		return nil, errors.NewAppError(errors.PersistenceFailure, "failed to list transfers needing review").WithDetails(err.Error())
	}
	defer rows.Close()

	return r.collectTransfers(rows)
}

func (r *transferRepository) UpdateTransferState(id int64, state domain.TransferState, statusMessage string) (int64, error) {
	query := `UPDATE transfers SET state = $1, status_message = $2, updated_at = $3 WHERE id = $4`

	result, err := r.db.Exec(query, string(state), nullable(statusMessage), time.Now(), id)
	if err != nil {
		r.logger.Error("Failed to update transfer state",
			"transfer_id", id, "state", state, "error", err)
		return 0, errors.NewAppError(errors.PersistenceFailure, "failed to update transfer state").WithDetails(err.Error())
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return 0, errors.NewAppError(errors.PersistenceFailure, "failed to get rows affected").WithDetails(err.Error())
	}

	r.logger.Info("Transfer state updated", "transfer_id", id, "state", state, "affected", affected)
	return affected, nil
}

func (r *transferRepository) collectTransfers(rows *sql.Rows) ([]*domain.Transfer, error) {
	var transfers []*domain.Transfer

	for rows.Next() {
		var transfer domain.Transfer
		var amountStr, stateStr string
		var statusMessage sql.NullString

		err := rows.Scan(
			&transfer.ID,
			&transfer.FromAccountID,
			&transfer.ToAccountID,
			&amountStr,
			&stateStr,
			&statusMessage,
			&transfer.CreatedAt,
			&transfer.UpdatedAt,
		)
		if err != nil {
			r.logger.Error("Failed to scan transfer", "error", err)
			return nil, errors.NewAppError(errors.PersistenceFailure, "failed to scan transfer").WithDetails(err.Error())
		}

		amount, err := decimal.NewFromString(amountStr)
		if err != nil {
			return nil, errors.NewAppError(errors.InternalError, "failed to parse amount").WithDetails(err.Error())
		}
		transfer.Amount = amount
		transfer.State = domain.TransferState(stateStr)
		if statusMessage.Valid {
			transfer.StatusMessage = statusMessage.String
		}

		transfers = append(transfers, &transfer)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.NewAppError(errors.PersistenceFailure, "failed to iterate transfers").WithDetails(err.Error())
	}

	return transfers, nil
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
