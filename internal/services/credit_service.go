package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lib/pq"

	"github.com/tontips/backend/internal/models"
)

var (
	// ErrUnknownInvoice indicates a payment memo that matches no invoice.
	// The notification cannot be associated with a user and is dropped.
	ErrUnknownInvoice = errors.New("unknown invoice")
	// ErrUnknownWallet indicates a payment to an address that is not one of
	// the service's tracked wallets.
	ErrUnknownWallet = errors.New("unknown wallet")
)

// ChatOwnerResolver resolves a chat to the user identity that owns it.
// Implemented by the bot transport.
type ChatOwnerResolver interface {
	ChatOwner(ctx context.Context, chatID int64) (int64, error)
}

// InvoiceNotifier is told after a committed credit so the rendered invoice
// message can be refreshed. Best-effort only.
type InvoiceNotifier interface {
	InvoiceFunded(ctx context.Context, invoiceID string) error
}

// PaymentNotice is one incoming on-chain payment resolved from a tracking
// callback. EventKey is the idempotency key derived from the callback; an
// empty key disables deduplication for this notice.
type PaymentNotice struct {
	InvoiceID     string
	WalletAddress string
	Amount        int64
	EventKey      string
}

// CreditService turns payment notices into consistent ledger updates.
type CreditService struct {
	db       *sql.DB
	owners   ChatOwnerResolver
	notifier InvoiceNotifier
	feeBps   int64
}

func NewCreditService(db *sql.DB, owners ChatOwnerResolver, notifier InvoiceNotifier, feeBps int64) *CreditService {
	return &CreditService{
		db:       db,
		owners:   owners,
		notifier: notifier,
		feeBps:   feeBps,
	}
}

// creditedAmount applies the static fee, in basis points.
func (s *CreditService) creditedAmount(amount int64) int64 {
	return amount - amount*s.feeBps/10_000
}

// ProcessPayment credits the invoice owner's balance for one payment.
// Resolution (invoice, chat owner, wallet) happens before the database
// transaction; no lock is held across the transport lookup. The ledger
// writes commit together or not at all. A notice whose event key was
// already recorded is a no-op.
func (s *CreditService) ProcessPayment(ctx context.Context, notice PaymentNotice) error {
	var chatID int64
	err := s.db.QueryRowContext(ctx, `
		SELECT chat_id FROM invoices WHERE id = $1`,
		notice.InvoiceID).Scan(&chatID)
	if err == sql.ErrNoRows {
		return ErrUnknownInvoice
	}
	if err != nil {
		return fmt.Errorf("resolve invoice: %w", err)
	}

	userID, err := s.owners.ChatOwner(ctx, chatID)
	if err != nil {
		return fmt.Errorf("resolve chat owner: %w", err)
	}

	var walletID string
	err = s.db.QueryRowContext(ctx, `
		SELECT id FROM wallets WHERE address = $1`,
		notice.WalletAddress).Scan(&walletID)
	if err == sql.ErrNoRows {
		return ErrUnknownWallet
	}
	if err != nil {
		return fmt.Errorf("resolve wallet: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin credit: %w", err)
	}
	defer tx.Rollback()

	if notice.EventKey != "" {
		_, err = tx.ExecContext(ctx, `
			INSERT INTO payment_events (id, wallet_id, created_at)
			VALUES ($1, $2, $3)`,
			notice.EventKey, walletID, time.Now().UTC())
		if isUniqueViolation(err) {
			log.Printf("[CREDIT] Duplicate payment event %s, skipping", notice.EventKey)
			return nil
		}
		if err != nil {
			return fmt.Errorf("record payment event: %w", err)
		}
	} else {
		log.Printf("[CREDIT] No event key for payment on invoice %s, dedup disabled", notice.InvoiceID)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (user_id, created_at, amount, wallet_id, invoice_id, status)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		userID, time.Now().UTC(), notice.Amount, walletID, notice.InvoiceID, models.TxStatusCompleted)
	if err != nil {
		return fmt.Errorf("record credit: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE invoices SET funded = funded + $1 WHERE id = $2`,
		notice.Amount, notice.InvoiceID)
	if err != nil {
		return fmt.Errorf("update funded total: %w", err)
	}

	credited := s.creditedAmount(notice.Amount)
	_, err = tx.ExecContext(ctx, `
		INSERT INTO users (id, balance) VALUES ($1, $2)
		ON CONFLICT (id) DO UPDATE SET balance = users.balance + EXCLUDED.balance`,
		userID, credited)
	if err != nil {
		return fmt.Errorf("credit balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit credit: %w", err)
	}

	log.Printf("[CREDIT] Credited %d to user %d for invoice %s (fee-adjusted %d)",
		notice.Amount, userID, notice.InvoiceID, credited)

	// The credit is committed; a failed refresh (deleted message etc.) must
	// not undo it.
	if s.notifier != nil {
		if err := s.notifier.InvoiceFunded(ctx, notice.InvoiceID); err != nil {
			log.Printf("[CREDIT] Invoice %s refresh failed: %v", notice.InvoiceID, err)
		}
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
