package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/skip2/go-qrcode"

	"github.com/tontips/backend/internal/services"
)

// InvoiceHandler serves the operator API: invoice reads, tip-link QR
// codes, ledger listings, and balance enquiries.
type InvoiceHandler struct {
	db          *sql.DB
	invoices    *services.InvoiceService
	reader      *services.LedgerReader
	withdrawals *services.WithdrawalService
}

func NewInvoiceHandler(db *sql.DB, invoices *services.InvoiceService, reader *services.LedgerReader, withdrawals *services.WithdrawalService) *InvoiceHandler {
	return &InvoiceHandler{
		db:          db,
		invoices:    invoices,
		reader:      reader,
		withdrawals: withdrawals,
	}
}

// GetInvoice returns one invoice with its funded total.
func (h *InvoiceHandler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoiceId")

	inv, err := h.invoices.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			services.SendErrorResponse(w, "Invoice not found", http.StatusNotFound, nil)
		} else {
			services.SendErrorResponse(w, "Failed to fetch invoice", http.StatusInternalServerError, nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(inv)
}

// GetInvoiceQR renders the invoice's tip deep link as a PNG QR code. An
// optional amount query parameter (nanotons) pre-fills the transfer.
func (h *InvoiceHandler) GetInvoiceQR(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "invoiceId")

	if _, err := h.invoices.GetInvoice(r.Context(), invoiceID); err != nil {
		if errors.Is(err, services.ErrInvoiceNotFound) {
			services.SendErrorResponse(w, "Invoice not found", http.StatusNotFound, nil)
		} else {
			services.SendErrorResponse(w, "Failed to fetch invoice", http.StatusInternalServerError, nil)
		}
		return
	}

	var amount int64
	if amountStr := r.URL.Query().Get("amount"); amountStr != "" {
		val, err := strconv.ParseInt(amountStr, 10, 64)
		if err != nil || val <= 0 {
			services.SendErrorResponse(w, "Invalid amount", http.StatusBadRequest, nil)
			return
		}
		amount = val
	}

	var address string
	err := h.db.QueryRowContext(r.Context(), `SELECT address FROM wallets LIMIT 1`).Scan(&address)
	if err != nil {
		services.SendErrorResponse(w, "No wallet provisioned", http.StatusInternalServerError, nil)
		return
	}

	png, err := qrcode.Encode(services.TipLink(address, amount, invoiceID), qrcode.Medium, 256)
	if err != nil {
		services.SendErrorResponse(w, "QR generation failed", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// ListTransactions returns recent ledger rows, optionally filtered by user.
func (h *InvoiceHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	var userID int64
	if uidStr := r.URL.Query().Get("userId"); uidStr != "" {
		val, err := strconv.ParseInt(uidStr, 10, 64)
		if err != nil {
			services.SendErrorResponse(w, "Invalid userId", http.StatusBadRequest, nil)
			return
		}
		userID = val
	}

	limit := 50
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if val, err := strconv.Atoi(limitStr); err == nil {
			limit = val
		}
	}

	transactions, err := h.reader.ListTransactions(r.Context(), userID, limit)
	if err != nil {
		services.SendErrorResponse(w, "Failed to fetch transactions", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"transactions": transactions,
		"count":        len(transactions),
	})
}

// GetBalance returns a user's balance in nanotons plus a formatted TON
// string.
func (h *InvoiceHandler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID, err := strconv.ParseInt(chi.URLParam(r, "userId"), 10, 64)
	if err != nil {
		services.SendErrorResponse(w, "Invalid userId", http.StatusBadRequest, nil)
		return
	}

	balance, err := h.withdrawals.Balance(r.Context(), userID)
	if err != nil {
		services.SendErrorResponse(w, "Failed to fetch balance", http.StatusInternalServerError, nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"userId":  userID,
		"balance": balance,
		"ton":     services.FormatTON(balance),
	})
}
