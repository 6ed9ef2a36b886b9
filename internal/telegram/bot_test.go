package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"

	"github.com/tontips/backend/internal/config"
	"github.com/tontips/backend/internal/models"
	"github.com/tontips/backend/internal/services"
)

type apiCall struct {
	method string
	params map[string]any
}

// newBotAPIServer fakes the Bot API, recording every call and answering
// sendMessage with a fixed message id so edits can target it.
func newBotAPIServer(t *testing.T) (*httptest.Server, *[]apiCall) {
	calls := &[]apiCall{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params map[string]any
		json.NewDecoder(r.Body).Decode(&params)
		method := path.Base(r.URL.Path)
		*calls = append(*calls, apiCall{method: method, params: params})

		if method == "sendMessage" {
			chatID := int64(params["chat_id"].(float64))
			fmt.Fprintf(w, `{"ok": true, "result": {"message_id": 99, "chat": {"id": %d}}}`, chatID)
			return
		}
		w.Write([]byte(`{"ok": true, "result": {}}`))
	}))
	t.Cleanup(server.Close)
	return server, calls
}

func lastCall(calls *[]apiCall, method string) (map[string]any, bool) {
	for i := len(*calls) - 1; i >= 0; i-- {
		if (*calls)[i].method == method {
			return (*calls)[i].params, true
		}
	}
	return nil, false
}

type fixedSender struct {
	seqno string
	err   error
}

func (s *fixedSender) Send(ctx context.Context, req services.TransferRequest) (*services.TransferResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &services.TransferResult{Seqno: s.seqno}, nil
}

func testTipsConfig() *config.TipsConfig {
	return &config.TipsConfig{
		FeeBasisPoints: 100,
		MinWithdraw:    100_000_000,
		TipAmounts:     []int64{500_000_000, 1_000_000_000},
		CustomTip:      true,
	}
}

func newTestBot(t *testing.T, sender services.TransferSender) (*Bot, sqlmock.Sqlmock, *[]apiCall) {
	db, dbMock, err := sqlmock.New()
	assert.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	server, calls := newBotAPIServer(t)
	bot := NewBot(testBotClient(server.URL), db,
		services.NewInvoiceService(db),
		services.NewWithdrawalService(db, sender, 100_000_000),
		testTipsConfig())
	return bot, dbMock, calls
}

func TestBot_ChannelPostCreatesInvoice(t *testing.T) {
	bot, dbMock, calls := newTestBot(t, nil)

	invoiceID := services.EncodeInvoiceID(-100200, 7)
	dbMock.ExpectExec("INSERT INTO invoices").
		WithArgs(invoiceID, int64(-100200), int64(7), "new post", "").
		WillReturnResult(sqlmock.NewResult(0, 1))
	dbMock.ExpectQuery("SELECT id, chat_id, message_id, funded, body, entities").
		WithArgs(invoiceID).
		WillReturnRows(sqlmock.NewRows([]string{"id", "chat_id", "message_id", "funded", "body", "entities"}).
			AddRow(invoiceID, int64(-100200), int64(7), int64(0), "new post", ""))
	dbMock.ExpectQuery("SELECT address FROM wallets LIMIT 1").
		WillReturnRows(sqlmock.NewRows([]string{"address"}).AddRow("EQwallet"))

	bot.HandleUpdate(context.Background(), Update{
		UpdateID: 1,
		ChannelPost: &Message{
			MessageID: 7,
			Chat:      Chat{ID: -100200},
			Text:      "new post",
		},
	})

	edit, ok := lastCall(calls, "editMessageText")
	assert.True(t, ok)
	assert.Contains(t, edit["text"], "new post")
	assert.Contains(t, edit["text"], "Collected: 0 TON")

	markup := edit["reply_markup"].(map[string]any)
	rows := markup["inline_keyboard"].([]any)
	buttons := rows[0].([]any)
	// Two preset amounts plus the custom-tip button.
	assert.Len(t, buttons, 3)
	first := buttons[0].(map[string]any)
	assert.Equal(t, "0.5 TON", first["text"])
	assert.Equal(t, services.TipLink("EQwallet", 500_000_000, invoiceID), first["url"])

	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestBot_BalanceCommand(t *testing.T) {
	bot, dbMock, calls := newTestBot(t, nil)

	dbMock.ExpectQuery("SELECT balance FROM users WHERE id = \\$1").
		WithArgs(int64(777)).
		WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(1_500_000_000)))

	bot.HandleUpdate(context.Background(), Update{
		UpdateID: 2,
		Message: &Message{
			MessageID: 10,
			Chat:      Chat{ID: 777},
			From:      &User{ID: 777},
			Text:      "/balance",
		},
	})

	sent, ok := lastCall(calls, "sendMessage")
	assert.True(t, ok)
	assert.Equal(t, "Your balance: 1.5 TON", sent["text"])
	assert.Contains(t, sent, "reply_markup")
	assert.NoError(t, dbMock.ExpectationsWereMet())
}

func TestBot_WithdrawButtonPrompts(t *testing.T) {
	bot, _, calls := newTestBot(t, nil)

	bot.HandleUpdate(context.Background(), Update{
		UpdateID: 3,
		CallbackQuery: &CallbackQuery{
			ID:      "cb1",
			From:    User{ID: 777},
			Data:    EncodeButton(ButtonWithdraw, nil),
			Message: &Message{MessageID: 10, Chat: Chat{ID: 777}},
		},
	})

	sent, ok := lastCall(calls, "sendMessage")
	assert.True(t, ok)
	assert.Equal(t, msgWithdrawPrompt, sent["text"])
	_, acked := lastCall(calls, "answerCallbackQuery")
	assert.True(t, acked)
}

func TestBot_WithdrawReply(t *testing.T) {
	replyMessage := func(text string) *Message {
		return &Message{
			MessageID:      20,
			Chat:           Chat{ID: 777},
			From:           &User{ID: 777},
			Text:           text,
			ReplyToMessage: &Message{MessageID: 19, Chat: Chat{ID: 777}},
		}
	}

	expectWithdrawal := func(dbMock sqlmock.Sqlmock, amount int64) {
		dbMock.ExpectQuery("SELECT balance FROM users WHERE id = \\$1").
			WithArgs(int64(777)).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(2_000_000_000)))
		dbMock.ExpectQuery("SELECT id, address, private_key FROM wallets LIMIT 1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "address", "private_key"}).
				AddRow("w1", "EQwallet", "hexkey"))
		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT balance FROM users WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(777)).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(2_000_000_000)))
		dbMock.ExpectQuery("INSERT INTO transactions").
			WithArgs(int64(777), sqlmock.AnyArg(), amount, "w1", models.TxStatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(31)))
		dbMock.ExpectExec("UPDATE users SET balance = balance - \\$1 WHERE id = \\$2").
			WithArgs(amount, int64(777)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()
		dbMock.ExpectExec("UPDATE transactions SET settlement_ref = \\$1, status = \\$2 WHERE id = \\$3").
			WithArgs("12345", models.TxStatusCompleted, int64(31)).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	t.Run("address then amount", func(t *testing.T) {
		bot, dbMock, calls := newTestBot(t, &fixedSender{seqno: "12345"})
		expectWithdrawal(dbMock, 500_000_000)

		bot.HandleUpdate(context.Background(), Update{UpdateID: 4, Message: replyMessage("EQdest 0.5")})

		edit, ok := lastCall(calls, "editMessageText")
		assert.True(t, ok)
		assert.Equal(t, msgWithdrawDone, edit["text"])
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("amount then address", func(t *testing.T) {
		bot, dbMock, calls := newTestBot(t, &fixedSender{seqno: "12345"})
		expectWithdrawal(dbMock, 500_000_000)

		bot.HandleUpdate(context.Background(), Update{UpdateID: 5, Message: replyMessage("0.5 EQdest")})

		edit, ok := lastCall(calls, "editMessageText")
		assert.True(t, ok)
		assert.Equal(t, msgWithdrawDone, edit["text"])
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("missing separator", func(t *testing.T) {
		bot, _, calls := newTestBot(t, nil)

		bot.HandleUpdate(context.Background(), Update{UpdateID: 6, Message: replyMessage("EQdest")})

		sent, ok := lastCall(calls, "sendMessage")
		assert.True(t, ok)
		assert.Equal(t, msgWrongReply, sent["text"])
	})

	t.Run("unparseable amount", func(t *testing.T) {
		bot, _, calls := newTestBot(t, nil)

		bot.HandleUpdate(context.Background(), Update{UpdateID: 7, Message: replyMessage("EQdest lots")})

		sent, ok := lastCall(calls, "sendMessage")
		assert.True(t, ok)
		assert.Equal(t, fmt.Sprintf(msgIncorrectAmount, "0.1"), sent["text"])
	})

	t.Run("insufficient balance", func(t *testing.T) {
		bot, dbMock, calls := newTestBot(t, &fixedSender{seqno: "12345"})

		dbMock.ExpectQuery("SELECT balance FROM users WHERE id = \\$1").
			WithArgs(int64(777)).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(100)))

		bot.HandleUpdate(context.Background(), Update{UpdateID: 8, Message: replyMessage("EQdest 0.5")})

		edit, ok := lastCall(calls, "editMessageText")
		assert.True(t, ok)
		assert.Equal(t, msgNotEnoughFunds, edit["text"])
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})

	t.Run("gateway failure reports and reverses", func(t *testing.T) {
		bot, dbMock, calls := newTestBot(t, &fixedSender{err: assert.AnError})

		dbMock.ExpectQuery("SELECT balance FROM users WHERE id = \\$1").
			WithArgs(int64(777)).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(2_000_000_000)))
		dbMock.ExpectQuery("SELECT id, address, private_key FROM wallets LIMIT 1").
			WillReturnRows(sqlmock.NewRows([]string{"id", "address", "private_key"}).
				AddRow("w1", "EQwallet", "hexkey"))
		dbMock.ExpectBegin()
		dbMock.ExpectQuery("SELECT balance FROM users WHERE id = \\$1 FOR UPDATE").
			WithArgs(int64(777)).
			WillReturnRows(sqlmock.NewRows([]string{"balance"}).AddRow(int64(2_000_000_000)))
		dbMock.ExpectQuery("INSERT INTO transactions").
			WithArgs(int64(777), sqlmock.AnyArg(), int64(500_000_000), "w1", models.TxStatusPending).
			WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(32)))
		dbMock.ExpectExec("UPDATE users SET balance = balance - \\$1 WHERE id = \\$2").
			WithArgs(int64(500_000_000), int64(777)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()
		dbMock.ExpectBegin()
		dbMock.ExpectExec("UPDATE users SET balance = balance \\+ \\$1 WHERE id = \\$2").
			WithArgs(int64(500_000_000), int64(777)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectExec("UPDATE transactions SET status = \\$1 WHERE id = \\$2").
			WithArgs(models.TxStatusReversed, int64(32)).
			WillReturnResult(sqlmock.NewResult(0, 1))
		dbMock.ExpectCommit()

		bot.HandleUpdate(context.Background(), Update{UpdateID: 9, Message: replyMessage("EQdest 0.5")})

		edit, ok := lastCall(calls, "editMessageText")
		assert.True(t, ok)
		assert.Equal(t, msgWithdrawFailed, edit["text"])
		assert.NoError(t, dbMock.ExpectationsWereMet())
	})
}
