package handler

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"ledger-transfers/internal/domain"
	"ledger-transfers/internal/errors"
	"ledger-transfers/internal/service"
)

type AccountHandler struct {
	accountService *service.AccountService
	reconciler     *service.Reconciler
}

func NewAccountHandler(accountService *service.AccountService, reconciler *service.Reconciler) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
		reconciler:     reconciler,
	}
}

type CreateAccountRequest struct {
	InitialBalance string `json:"initial_balance"`
}

type AccountResponse struct {
	AccountID      int64  `json:"account_id"`
	InitialBalance string `json:"initial_balance"`
	Balance        string `json:"balance"`
}

func accountResponse(account *domain.Account) AccountResponse {
	return AccountResponse{
		AccountID:      account.ID,
		InitialBalance: account.InitialBalance.String(),
		Balance:        account.Balance.String(),
	}
}

func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req CreateAccountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body"))
		return
	}

	initialBalance, err := decimal.NewFromString(req.InitialBalance)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid initial_balance format"))
		return
	}

	account, err := h.accountService.CreateAccount(initialBalance)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, accountResponse(account))
}

func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.accountService.GetAccount(mux.Vars(r)["account_id"])
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, accountResponse(account))
}

func (h *AccountHandler) Reconcile(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["account_id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, errors.ErrInvalidAccountID)
		return
	}

	report, err := h.reconciler.Reconcile(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}
