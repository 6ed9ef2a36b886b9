package telegram

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"

	"github.com/tontips/backend/internal/config"
	"github.com/tontips/backend/internal/services"
)

// Bot owns the chat-facing behavior: rendering invoice posts, the
// /balance command, and the withdrawal conversation. It is also the
// credit pipeline's notifier: after a committed credit it re-renders the
// funded total on the invoice message.
type Bot struct {
	client      *Client
	db          *sql.DB
	invoices    *services.InvoiceService
	withdrawals *services.WithdrawalService
	cfg         *config.TipsConfig
}

func NewBot(client *Client, db *sql.DB, invoices *services.InvoiceService, withdrawals *services.WithdrawalService, cfg *config.TipsConfig) *Bot {
	return &Bot{
		client:      client,
		db:          db,
		invoices:    invoices,
		withdrawals: withdrawals,
		cfg:         cfg,
	}
}

// HandleUpdate dispatches one long-poll update. Errors are logged, never
// propagated; one bad update must not disturb the loop.
func (b *Bot) HandleUpdate(ctx context.Context, update Update) {
	var err error
	switch {
	case update.ChannelPost != nil:
		err = b.handleChannelPost(ctx, update.ChannelPost)
	case update.Message != nil:
		err = b.handleMessage(ctx, update.Message)
	case update.CallbackQuery != nil:
		err = b.handleCallbackQuery(ctx, update.CallbackQuery)
		if ackErr := b.client.AnswerCallbackQuery(ctx, update.CallbackQuery.ID); ackErr != nil {
			log.Printf("[BOT] Callback ack failed: %v", ackErr)
		}
	}
	if err != nil {
		log.Printf("[BOT] Update %d failed: %v", update.UpdateID, err)
	}
}

// handleChannelPost turns a new channel post into an invoice and renders
// the tip buttons under it.
func (b *Bot) handleChannelPost(ctx context.Context, post *Message) error {
	invoiceID, err := b.invoices.CreateInvoice(ctx, post.Chat.ID, post.MessageID, post.Text, string(post.Entities))
	if err != nil {
		return err
	}
	return b.InvoiceFunded(ctx, invoiceID)
}

// InvoiceFunded re-renders the invoice message with its current funded
// total and the tip buttons. Implements services.InvoiceNotifier.
func (b *Bot) InvoiceFunded(ctx context.Context, invoiceID string) error {
	inv, err := b.invoices.GetInvoice(ctx, invoiceID)
	if err != nil {
		return err
	}

	address, err := b.walletAddress(ctx)
	if err != nil {
		return err
	}

	var buttons []InlineKeyboardButton
	for _, amount := range b.cfg.TipAmounts {
		buttons = append(buttons, InlineKeyboardButton{
			Text: services.FormatTON(amount) + " TON",
			URL:  services.TipLink(address, amount, inv.ID),
		})
	}
	if b.cfg.CustomTip {
		buttons = append(buttons, InlineKeyboardButton{
			Text: btnCustomTip,
			URL:  services.TipLink(address, 0, inv.ID),
		})
	}
	if b.cfg.HelpURL != "" {
		buttons = append(buttons, InlineKeyboardButton{Text: btnHelp, URL: b.cfg.HelpURL})
	}

	footer := fmt.Sprintf(msgFundedFooter, services.FormatTON(inv.Funded))
	return b.client.EditMessageText(ctx, EditMessageParams{
		ChatID:      inv.ChatID,
		MessageID:   inv.MessageID,
		Text:        inv.Body + "\n\n" + footer,
		Entities:    []byte(inv.Entities),
		ReplyMarkup: InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{buttons}},
	})
}

func (b *Bot) handleMessage(ctx context.Context, msg *Message) error {
	if msg.ReplyToMessage != nil {
		return b.handleWithdrawReply(ctx, msg)
	}

	switch {
	case strings.HasPrefix(msg.Text, "/start"):
		_, err := b.client.SendMessage(ctx, SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   msgStart,
		})
		return err

	case strings.HasPrefix(msg.Text, "/balance"):
		if msg.From == nil {
			return nil
		}
		balance, err := b.withdrawals.Balance(ctx, msg.From.ID)
		if err != nil {
			return err
		}
		_, err = b.client.SendMessage(ctx, SendMessageParams{
			ChatID: msg.Chat.ID,
			Text:   fmt.Sprintf(msgBalance, services.FormatTON(balance)),
			ReplyMarkup: InlineKeyboardMarkup{InlineKeyboard: [][]InlineKeyboardButton{{
				{Text: btnWithdraw, CallbackData: EncodeButton(ButtonWithdraw, nil)},
			}}},
		})
		return err
	}
	return nil
}

func (b *Bot) handleCallbackQuery(ctx context.Context, query *CallbackQuery) error {
	if query.Message == nil {
		return nil
	}

	button, err := DecodeButton(query.Data)
	if err != nil {
		_, sendErr := b.client.SendMessage(ctx, SendMessageParams{
			ChatID:           query.Message.Chat.ID,
			Text:             msgUnknownButton,
			ReplyToMessageID: query.Message.MessageID,
		})
		return sendErr
	}

	switch button.Kind {
	case ButtonWithdraw:
		_, err := b.client.SendMessage(ctx, SendMessageParams{
			ChatID:      query.Message.Chat.ID,
			Text:        msgWithdrawPrompt,
			ParseMode:   "Markdown",
			ReplyMarkup: ForceReply{ForceReply: true, InputFieldPlaceholder: msgWithdrawPlaceholder},
		})
		return err
	}
	return nil
}

var amountRe = regexp.MustCompile(`^\d+(\.\d+)?$`)

// handleWithdrawReply parses "address amount" (either order) and runs the
// withdrawal, narrating progress in the chat.
func (b *Bot) handleWithdrawReply(ctx context.Context, msg *Message) error {
	if msg.From == nil {
		return nil
	}

	reply := func(text string) error {
		_, err := b.client.SendMessage(ctx, SendMessageParams{
			ChatID:           msg.Chat.ID,
			Text:             text,
			ReplyToMessageID: msg.MessageID,
		})
		return err
	}

	address, rawAmount, ok := strings.Cut(strings.TrimSpace(msg.Text), " ")
	if !ok {
		return reply(msgWrongReply)
	}
	if amountRe.MatchString(address) {
		address, rawAmount = rawAmount, address
	}
	if !amountRe.MatchString(rawAmount) {
		return reply(fmt.Sprintf(msgIncorrectAmount, services.FormatTON(b.cfg.MinWithdraw)))
	}

	amount, err := services.ParseTON(rawAmount)
	if err != nil {
		return reply(fmt.Sprintf(msgIncorrectAmount, services.FormatTON(b.cfg.MinWithdraw)))
	}

	wait, err := b.client.SendMessage(ctx, SendMessageParams{
		ChatID:           msg.Chat.ID,
		Text:             msgSending,
		ReplyToMessageID: msg.MessageID,
	})
	if err != nil {
		return err
	}

	result := msgWithdrawDone
	if _, err := b.withdrawals.Withdraw(ctx, msg.From.ID, address, amount); err != nil {
		switch {
		case errors.Is(err, services.ErrInvalidAmount):
			result = fmt.Sprintf(msgIncorrectAmount, services.FormatTON(b.cfg.MinWithdraw))
		case errors.Is(err, services.ErrInsufficientBalance):
			result = msgNotEnoughFunds
		default:
			log.Printf("[BOT] Withdrawal for user %d failed: %v", msg.From.ID, err)
			result = msgWithdrawFailed
		}
	}

	return b.client.EditMessageText(ctx, EditMessageParams{
		ChatID:    wait.Chat.ID,
		MessageID: wait.MessageID,
		Text:      result,
	})
}

func (b *Bot) walletAddress(ctx context.Context) (string, error) {
	var address string
	err := b.db.QueryRowContext(ctx, `SELECT address FROM wallets LIMIT 1`).Scan(&address)
	if err != nil {
		return "", fmt.Errorf("wallet address: %w", err)
	}
	return address, nil
}
