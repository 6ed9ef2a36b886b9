package services

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/tontips/backend/internal/models"
)

// LedgerReader serves point reads of the transaction log for the operator
// API.
type LedgerReader struct {
	db *sql.DB
}

func NewLedgerReader(db *sql.DB) *LedgerReader {
	return &LedgerReader{db: db}
}

// ListTransactions returns recent ledger rows, newest first, optionally
// filtered by user.
func (s *LedgerReader) ListTransactions(ctx context.Context, userID int64, limit int) ([]models.Transaction, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	query := `
		SELECT id, user_id, created_at, amount, wallet_id,
		       COALESCE(invoice_id, ''), COALESCE(settlement_ref, ''), status
		FROM transactions`
	args := []any{}
	if userID != 0 {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	query += fmt.Sprintf(` ORDER BY id DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var txn models.Transaction
		err := rows.Scan(&txn.ID, &txn.UserID, &txn.CreatedAt, &txn.Amount,
			&txn.WalletID, &txn.InvoiceID, &txn.SettlementRef, &txn.Status)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, txn)
	}
	return transactions, rows.Err()
}
