package models

import (
	"time"
)

// Transaction statuses. Credits are COMPLETED at commit time. Withdrawals
// start PENDING, become COMPLETED once the gateway returns a settlement
// reference, or REVERSED when the outbound transfer failed and the debit
// was compensated.
const (
	TxStatusPending   = "PENDING"
	TxStatusCompleted = "COMPLETED"
	TxStatusReversed  = "REVERSED"
)

// Transaction is an append-only ledger row. Amount is unsigned nanotons;
// direction is implied: rows with an InvoiceID are credits, rows without
// are withdrawals.
type Transaction struct {
	ID            int64     `json:"id" db:"id"`
	UserID        int64     `json:"user_id" db:"user_id"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	Amount        int64     `json:"amount" db:"amount"`
	WalletID      string    `json:"wallet_id" db:"wallet_id"`
	InvoiceID     string    `json:"invoice_id,omitempty" db:"invoice_id"`
	SettlementRef string    `json:"settlement_ref,omitempty" db:"settlement_ref"`
	Status        string    `json:"status" db:"status"`
}

// TrackingState is the gateway's scan cursor, delivered with payment
// callbacks and echoed back on tracking registration.
type TrackingState struct {
	LastProcessedLt string `json:"lastProcessedLt,omitempty"`
}

// TrackingPayment is one incoming on-chain payment inside a tracking
// callback. Message carries the invoice-id memo.
type TrackingPayment struct {
	Source  string `json:"source"`
	Amount  int64  `json:"amount" validate:"gt=0"`
	Message string `json:"message" validate:"required"`
}

// TrackingUpdate is the payment gateway's callback payload.
type TrackingUpdate struct {
	Address           string            `json:"address" validate:"required"`
	NextTrackingState *TrackingState    `json:"nextTrackingState,omitempty"`
	Payments          []TrackingPayment `json:"payments" validate:"dive"`
}
