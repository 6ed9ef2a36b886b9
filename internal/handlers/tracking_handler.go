package handlers

import (
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/tontips/backend/internal/gateway"
	"github.com/tontips/backend/internal/models"
	"github.com/tontips/backend/internal/services"
)

// TrackingHandler receives payment-tracking callbacks from the gateway.
type TrackingHandler struct {
	db        *sql.DB
	credits   *services.CreditService
	validator *services.ValidationHelper
	token     string
}

// NewTrackingHandler wires the webhook. token, when non-empty, must match
// the callback's Authorization bearer.
func NewTrackingHandler(db *sql.DB, credits *services.CreditService, token string) *TrackingHandler {
	return &TrackingHandler{
		db:        db,
		credits:   credits,
		validator: services.NewValidationHelper(),
		token:     token,
	}
}

// HandleTracking processes one callback. The gateway redelivers on any
// non-200 response, so the response code is the retry policy: transient
// store failures return 500 to invite a retry, while malformed payloads and
// unresolvable payments return 200 — redelivering them can never succeed.
func (h *TrackingHandler) HandleTracking(w http.ResponseWriter, r *http.Request) {
	if h.token != "" && r.Header.Get("Authorization") != "Bearer "+h.token {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 1_048_576)

	var update models.TrackingUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		log.Printf("[TRACKING] Malformed callback payload: %v", err)
		respondOK(w)
		return
	}
	if err := h.validator.ValidateStruct(&update); err != nil {
		log.Printf("[TRACKING] Invalid callback payload: %v", err)
		respondOK(w)
		return
	}

	var lastLt string
	if update.NextTrackingState != nil {
		lastLt = update.NextTrackingState.LastProcessedLt
	}

	for idx, payment := range update.Payments {
		err := h.credits.ProcessPayment(r.Context(), services.PaymentNotice{
			InvoiceID:     payment.Message,
			WalletAddress: update.Address,
			Amount:        payment.Amount,
			EventKey:      paymentEventKey(update.Address, lastLt, idx, payment),
		})
		switch {
		case err == nil:
		case errors.Is(err, services.ErrUnknownInvoice), errors.Is(err, services.ErrUnknownWallet):
			// No resolvable user exists; redelivery cannot fix this.
			log.Printf("[TRACKING] Dropped payment of %d with memo %q: %v",
				payment.Amount, payment.Message, err)
		default:
			log.Printf("[TRACKING] Credit failed for memo %q: %v", payment.Message, err)
			http.Error(w, "payment not processed", http.StatusInternalServerError)
			return
		}
	}

	// The cursor advances only once every payment in the window committed.
	// A crash before this point redelivers the window from the old cursor;
	// the event keys absorb the replayed credits.
	if update.NextTrackingState != nil {
		state, err := json.Marshal(update.NextTrackingState)
		if err == nil {
			err = gateway.SaveTrackingState(r.Context(), h.db, update.Address, string(state))
		}
		if err != nil {
			log.Printf("[TRACKING] Failed to persist tracking state for %s: %v", update.Address, err)
			http.Error(w, "tracking state not persisted", http.StatusInternalServerError)
			return
		}
	}

	respondOK(w)
}

// paymentEventKey derives the idempotency key for one payment inside a
// callback: the scan cursor identifies the delivery window, the index the
// payment within it.
func paymentEventKey(address, lastLt string, idx int, p models.TrackingPayment) string {
	if lastLt == "" {
		return ""
	}
	sum := sha256.Sum256(fmt.Appendf(nil, "%s|%s|%d|%s|%d", address, lastLt, idx, p.Message, p.Amount))
	return hex.EncodeToString(sum[:])
}

func respondOK(w http.ResponseWriter) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}
