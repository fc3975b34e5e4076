package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/shopspring/decimal"

	"github.com/torreads/adledger/utils"
)

// Notifier delivers the operator-facing withdrawal alert. Delivery is best
// effort and time-bounded by the caller's context; a failure never blocks or
// rolls back the ledger mutation.
type Notifier interface {
	NotifyWithdrawal(ctx context.Context, req WithdrawalNotice) error
}

// WithdrawalNotice is the payload handed to notifiers.
type WithdrawalNotice struct {
	RequestID     string          `json:"request_id"`
	AccountID     string          `json:"account_id"`
	Amount        decimal.Decimal `json:"amount"`
	WalletAddress string          `json:"wallet_address,omitempty"`
	RequestedAt   time.Time       `json:"requested_at"`
}

// TelegramNotifier posts the alert to an operator chat.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegramNotifier dials the bot API once at boot.
func NewTelegramNotifier(token string, chatID int64) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramNotifier{bot: bot, chatID: chatID}, nil
}

func (n *TelegramNotifier) NotifyWithdrawal(ctx context.Context, req WithdrawalNotice) error {
	// Wallet address is client-supplied text going into an HTML-mode
	// message; strip any markup before embedding it.
	wallet := utils.SanitizeText(req.WalletAddress)
	if wallet == "" {
		wallet = "-"
	}
	text := fmt.Sprintf(
		"💸 <b>Withdrawal request</b>\nUser: <code>%s</code>\nAmount: <b>%s TON</b>\nWallet: <code>%s</code>\nRequest: <code>%s</code>",
		utils.SanitizeText(req.AccountID), req.Amount.String(), wallet, req.RequestID,
	)
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML

	done := make(chan error, 1)
	go func() {
		_, err := n.bot.Send(msg)
		done <- err
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WebhookNotifier POSTs the notice as JSON to a configured endpoint
// (pipedream/zapier style hooks the operators already use).
type WebhookNotifier struct {
	url    string
	client *http.Client
}

// NewWebhookNotifier builds a webhook notifier; the client timeout is a
// backstop under the per-call context deadline.
func NewWebhookNotifier(url string) *WebhookNotifier {
	return &WebhookNotifier{url: url, client: &http.Client{Timeout: 10 * time.Second}}
}

func (n *WebhookNotifier) NotifyWithdrawal(ctx context.Context, req WithdrawalNotice) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, n.url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	resp, err := n.client.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned %d", resp.StatusCode)
	}
	return nil
}

// MultiNotifier fans out to every configured channel and reports the first
// failure; the other channels still run.
type MultiNotifier []Notifier

func (m MultiNotifier) NotifyWithdrawal(ctx context.Context, req WithdrawalNotice) error {
	var firstErr error
	for _, n := range m {
		if err := n.NotifyWithdrawal(ctx, req); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
