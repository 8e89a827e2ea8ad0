package errors

import (
	"fmt"
	"net/http"
)

type ErrorCode string

const (
	AccountNotFound           ErrorCode = "account_not_found"
	TransferNotFound          ErrorCode = "transfer_not_found"
	DuplicateAccount          ErrorCode = "duplicate_account"
	InsufficientFunds         ErrorCode = "insufficient_funds"
	InvalidStateForProcessing ErrorCode = "invalid_state_for_processing"
	InvalidStateTransition    ErrorCode = "invalid_state_transition"
	InvalidAmount             ErrorCode = "invalid_amount"
	InvalidInput              ErrorCode = "invalid_input"
	PersistenceFailure        ErrorCode = "persistence_failure"
	InternalError             ErrorCode = "internal_error"
)

type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details string    `json:"details,omitempty"`
}

func (e *AppError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func NewAppError(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

func NewAppErrorf(code ErrorCode, format string, args ...interface{}) *AppError {
	return &AppError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

func (e *AppError) WithDetails(details string) *AppError {
	return &AppError{
		Code:    e.Code,
		Message: e.Message,
		Details: details,
	}
}

// HTTPStatus maps error codes to response status codes.
func (e *AppError) HTTPStatus() int {
	switch e.Code {
	case AccountNotFound, TransferNotFound:
		return http.StatusNotFound
	case DuplicateAccount:
		return http.StatusConflict
	case InsufficientFunds, InvalidStateForProcessing, InvalidStateTransition:
		return http.StatusUnprocessableEntity
	case InvalidAmount, InvalidInput:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Predefined errors for common cases
var (
	ErrAccountNotFound   = NewAppError(AccountNotFound, "account not found")
	ErrTransferNotFound  = NewAppError(TransferNotFound, "transfer not found")
	ErrDuplicateAccount  = NewAppError(DuplicateAccount, "account already exists")
	ErrInsufficientFunds = NewAppError(InsufficientFunds, "insufficient funds")
	ErrInvalidAmount     = NewAppError(InvalidAmount, "amount must be greater than zero")
	ErrInvalidAccountID  = NewAppError(InvalidInput, "invalid account id")
	ErrInvalidTransferID = NewAppError(InvalidInput, "invalid transfer id")
	ErrSameAccount       = NewAppError(InvalidInput, "source and destination accounts must differ")

	ErrCannotBeginTransaction = NewAppError(InternalError, "executor cannot begin a transaction")
)

// Code extracts an AppError code, or InternalError for foreign errors.
func Code(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return InternalError
}

// Is reports whether err is an AppError carrying the given code.
func Is(err error, code ErrorCode) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Code == code
}
