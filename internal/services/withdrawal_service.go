package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/tontips/backend/internal/models"
)

// ErrInsufficientBalance is returned when a withdrawal exceeds the user's
// committed balance.
var ErrInsufficientBalance = errors.New("insufficient balance")

// TransferRequest is the outbound payment call. SourceKey is the wallet's
// signing material and goes nowhere else.
type TransferRequest struct {
	SourceAddress      string
	SourceKey          string
	DestinationAddress string
	Amount             int64
	Message            string
}

// TransferResult carries the gateway's settlement reference.
type TransferResult struct {
	Seqno string
}

// TransferSender submits an outbound transfer to the payment gateway.
type TransferSender interface {
	Send(ctx context.Context, req TransferRequest) (*TransferResult, error)
}

// WithdrawalService converts withdrawal requests into a committed debit
// plus an outbound transfer.
type WithdrawalService struct {
	db          *sql.DB
	sender      TransferSender
	minWithdraw int64
}

func NewWithdrawalService(db *sql.DB, sender TransferSender, minWithdraw int64) *WithdrawalService {
	return &WithdrawalService{
		db:          db,
		sender:      sender,
		minWithdraw: minWithdraw,
	}
}

// Balance returns the user's currently visible balance in nanotons. Users
// never credited read as zero.
func (s *WithdrawalService) Balance(ctx context.Context, userID int64) (int64, error) {
	var balance int64
	err := s.db.QueryRowContext(ctx, `
		SELECT balance FROM users WHERE id = $1`,
		userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read balance: %w", err)
	}
	return balance, nil
}

// Withdraw debits the user and submits the transfer. The debit commits
// before the gateway call is issued; holding a database transaction open
// across a network round trip is unsafe. If the gateway call fails after
// the debit committed, the debit is compensated: balance restored, the
// withdrawal row marked REVERSED.
func (s *WithdrawalService) Withdraw(ctx context.Context, userID int64, destination string, amount int64) (*models.Transaction, error) {
	if amount <= 0 || amount < s.minWithdraw {
		return nil, ErrInvalidAmount
	}

	balance, err := s.Balance(ctx, userID)
	if err != nil {
		return nil, err
	}
	if amount > balance {
		return nil, ErrInsufficientBalance
	}

	wallet, err := s.activeWallet(ctx)
	if err != nil {
		return nil, err
	}

	txn, err := s.debit(ctx, userID, wallet.ID, amount)
	if err != nil {
		return nil, err
	}

	result, err := s.sender.Send(ctx, TransferRequest{
		SourceAddress:      wallet.Address,
		SourceKey:          wallet.PrivateKey,
		DestinationAddress: destination,
		Amount:             amount,
	})
	if err != nil {
		s.compensate(ctx, txn)
		return nil, fmt.Errorf("outbound transfer: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		UPDATE transactions SET settlement_ref = $1, status = $2 WHERE id = $3`,
		result.Seqno, models.TxStatusCompleted, txn.ID)
	if err != nil {
		// Transfer went out; only the reference write failed. The row stays
		// PENDING for reconciliation.
		log.Printf("[WITHDRAW] Settlement ref write failed for transaction %d (seqno %s): %v",
			txn.ID, result.Seqno, err)
		return txn, nil
	}

	txn.SettlementRef = result.Seqno
	txn.Status = models.TxStatusCompleted
	log.Printf("[WITHDRAW] User %d withdrew %d, seqno %s", userID, amount, result.Seqno)
	return txn, nil
}

func (s *WithdrawalService) activeWallet(ctx context.Context) (*models.Wallet, error) {
	w := &models.Wallet{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, address, private_key FROM wallets LIMIT 1`).
		Scan(&w.ID, &w.Address, &w.PrivateKey)
	if err == sql.ErrNoRows {
		return nil, errors.New("no wallet provisioned")
	}
	if err != nil {
		return nil, fmt.Errorf("select wallet: %w", err)
	}
	return w, nil
}

// debit applies the balance decrement and the withdrawal row in one atomic
// unit. The user row is locked and the balance re-checked under the lock so
// concurrent withdrawals from the same user cannot drive it negative.
func (s *WithdrawalService) debit(ctx context.Context, userID int64, walletID string, amount int64) (*models.Transaction, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin debit: %w", err)
	}
	defer tx.Rollback()

	var balance int64
	err = tx.QueryRowContext(ctx, `
		SELECT balance FROM users WHERE id = $1 FOR UPDATE`,
		userID).Scan(&balance)
	if err == sql.ErrNoRows {
		return nil, ErrInsufficientBalance
	}
	if err != nil {
		return nil, fmt.Errorf("lock user: %w", err)
	}
	if balance < amount {
		return nil, ErrInsufficientBalance
	}

	txn := &models.Transaction{
		UserID:    userID,
		CreatedAt: time.Now().UTC(),
		Amount:    amount,
		WalletID:  walletID,
		Status:    models.TxStatusPending,
	}
	err = tx.QueryRowContext(ctx, `
		INSERT INTO transactions (user_id, created_at, amount, wallet_id, status)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id`,
		txn.UserID, txn.CreatedAt, txn.Amount, txn.WalletID, txn.Status).Scan(&txn.ID)
	if err != nil {
		return nil, fmt.Errorf("record withdrawal: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET balance = balance - $1 WHERE id = $2`,
		amount, userID)
	if err != nil {
		return nil, fmt.Errorf("debit balance: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit debit: %w", err)
	}
	return txn, nil
}

// compensate reverses a committed debit whose outbound transfer failed.
// A failure here leaves the PENDING row and the missing balance for manual
// reconciliation; both are logged with the transaction id.
func (s *WithdrawalService) compensate(ctx context.Context, txn *models.Transaction) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		log.Printf("[WITHDRAW] Compensation begin failed for transaction %d: %v", txn.ID, err)
		return
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET balance = balance + $1 WHERE id = $2`,
		txn.Amount, txn.UserID)
	if err != nil {
		log.Printf("[WITHDRAW] Compensation credit failed for transaction %d: %v", txn.ID, err)
		return
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE transactions SET status = $1 WHERE id = $2`,
		models.TxStatusReversed, txn.ID)
	if err != nil {
		log.Printf("[WITHDRAW] Compensation status write failed for transaction %d: %v", txn.ID, err)
		return
	}

	if err := tx.Commit(); err != nil {
		log.Printf("[WITHDRAW] Compensation commit failed for transaction %d: %v", txn.ID, err)
		return
	}

	txn.Status = models.TxStatusReversed
	log.Printf("[WITHDRAW] Reversed transaction %d after failed transfer", txn.ID)
}
