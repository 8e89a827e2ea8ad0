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

type TransferHandler struct {
	transferService *service.TransferService
}

func NewTransferHandler(transferService *service.TransferService) *TransferHandler {
	return &TransferHandler{
		transferService: transferService,
	}
}

type CreateTransferRequest struct {
	FromAccountID      int64  `json:"from_account_id"`
	ToAccountID        int64  `json:"to_account_id"`
	Amount             string `json:"amount"`
	ProcessImmediately bool   `json:"process_immediately,omitempty"`
}

type TransferResponse struct {
	TransferID    int64  `json:"transfer_id"`
	FromAccountID int64  `json:"from_account_id"`
	ToAccountID   int64  `json:"to_account_id"`
	Amount        string `json:"amount"`
	State         string `json:"state"`
	StatusMessage string `json:"status_message,omitempty"`
}

func transferResponse(transfer *domain.Transfer) TransferResponse {
	return TransferResponse{
		TransferID:    transfer.ID,
		FromAccountID: transfer.FromAccountID,
		ToAccountID:   transfer.ToAccountID,
		Amount:        transfer.Amount.String(),
		State:         string(transfer.State),
		StatusMessage: transfer.StatusMessage,
	}
}

func (h *TransferHandler) CreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req CreateTransferRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, errors.NewAppError(errors.InvalidInput, "invalid request body").WithDetails(err.Error()))
		return
	}

	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, errors.NewAppError(errors.InvalidAmount, "invalid amount format").WithDetails(err.Error()))
		return
	}

	transfer, err := h.transferService.CreateTransfer(r.Context(), req.FromAccountID, req.ToAccountID, amount, req.ProcessImmediately)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, transferResponse(transfer))
}

func (h *TransferHandler) GetTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}

	transfer, err := h.transferService.GetTransfer(id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transferResponse(transfer))
}

func (h *TransferHandler) ProcessTransfer(w http.ResponseWriter, r *http.Request) {
	id, ok := h.transferID(w, r)
	if !ok {
		return
	}

	transfer, err := h.transferService.ProcessTransfer(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, transferResponse(transfer))
}

func (h *TransferHandler) ListNeedingReview(w http.ResponseWriter, r *http.Request) {
	transfers, err := h.transferService.ListTransfersNeedingReview()
	if err != nil {
		writeError(w, err)
		return
	}

	responses := make([]TransferResponse, 0, len(transfers))
	for _, transfer := range transfers {
		responses = append(responses, transferResponse(transfer))
	}

	writeJSON(w, http.StatusOK, responses)
}

func (h *TransferHandler) transferID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["transfer_id"], 10, 64)
	if err != nil || id <= 0 {
		writeError(w, errors.ErrInvalidTransferID)
		return 0, false
	}
	return id, true
}
