package services

import (
	"context"
	"database/sql"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"fmt"
	"log"

	"github.com/tontips/backend/internal/models"
)

var (
	// ErrInvoiceNotFound indicates the requested invoice does not exist.
	ErrInvoiceNotFound = errors.New("invoice not found")
	// ErrBadInvoiceID indicates a memo that does not decode to an invoice id.
	ErrBadInvoiceID = errors.New("malformed invoice id")
)

// InvoiceService creates and reads invoices tied to channel posts.
type InvoiceService struct {
	db *sql.DB
}

func NewInvoiceService(db *sql.DB) *InvoiceService {
	return &InvoiceService{db: db}
}

// EncodeInvoiceID derives the invoice id from its chat and message ids:
// two little-endian int64 values, base64-url without padding. 22 ASCII
// characters, stable, reversible, and within the gateway's memo limit.
func EncodeInvoiceID(chatID, messageID int64) string {
	buf := make([]byte, 16)
	binary.LittleEndian.PutUint64(buf[0:8], uint64(chatID))
	binary.LittleEndian.PutUint64(buf[8:16], uint64(messageID))
	return base64.RawURLEncoding.EncodeToString(buf)
}

// DecodeInvoiceID reverses EncodeInvoiceID.
func DecodeInvoiceID(id string) (chatID, messageID int64, err error) {
	buf, err := base64.RawURLEncoding.DecodeString(id)
	if err != nil || len(buf) != 16 {
		return 0, 0, ErrBadInvoiceID
	}
	chatID = int64(binary.LittleEndian.Uint64(buf[0:8]))
	messageID = int64(binary.LittleEndian.Uint64(buf[8:16]))
	return chatID, messageID, nil
}

// TipLink builds the ton:// transfer deep link funding an invoice. A zero
// amount produces the custom-tip variant where the payer picks the amount.
func TipLink(address string, amount int64, invoiceID string) string {
	if amount <= 0 {
		return fmt.Sprintf("ton://transfer/%s?text=%s", address, invoiceID)
	}
	return fmt.Sprintf("ton://transfer/%s?amount=%d&text=%s", address, amount, invoiceID)
}

// CreateInvoice inserts an invoice row with funded = 0 for the given post.
// The id is deterministic, so a redelivered post-creation event maps to the
// same row; on conflict only the message metadata is overwritten, never the
// funded total.
func (s *InvoiceService) CreateInvoice(ctx context.Context, chatID, messageID int64, body, entities string) (string, error) {
	invoiceID := EncodeInvoiceID(chatID, messageID)

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (id, chat_id, message_id, funded, body, entities)
		VALUES ($1, $2, $3, 0, $4, $5)
		ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, entities = EXCLUDED.entities`,
		invoiceID, chatID, messageID, body, entities)
	if err != nil {
		return "", fmt.Errorf("create invoice: %w", err)
	}

	log.Printf("[INVOICE] Created invoice %s for chat %d message %d", invoiceID, chatID, messageID)
	return invoiceID, nil
}

// GetInvoice fetches one invoice by id.
func (s *InvoiceService) GetInvoice(ctx context.Context, invoiceID string) (*models.Invoice, error) {
	inv := &models.Invoice{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, chat_id, message_id, funded, body, entities
		FROM invoices
		WHERE id = $1`,
		invoiceID).Scan(&inv.ID, &inv.ChatID, &inv.MessageID, &inv.Funded, &inv.Body, &inv.Entities)

	if err == sql.ErrNoRows {
		return nil, ErrInvoiceNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}
	return inv, nil
}
