// Package notify delivers alerts to Telegram and serves the chat commands
// that manage saved queries and the country allowlist.
package notify

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"vinted-monitor/utils"
)

// Sender is the part of *tgbotapi.BotAPI used to post messages.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts alerts to a single chat.
type TelegramNotifier struct {
	bot      Sender
	chatID   int64
	logger   *utils.Logger
	maxDelay time.Duration
}

// NewTelegramNotifier creates a notifier for chatID.
func NewTelegramNotifier(bot Sender, chatID int64, logger *utils.Logger) *TelegramNotifier {
	if logger == nil {
		logger = utils.NewNopLogger()
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, logger: logger, maxDelay: 30 * time.Second}
}

// Send posts an HTML message with a single URL button. When Telegram asks
// to slow down the message is retried once after the requested delay.
func (n *TelegramNotifier) Send(ctx context.Context, text, actionURL, actionLabel string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	if actionURL != "" {
		msg.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
			tgbotapi.NewInlineKeyboardRow(tgbotapi.NewInlineKeyboardButtonURL(actionLabel, actionURL)),
		)
	}

	if err := ctx.Err(); err != nil {
		return fmt.Errorf("notify: send: %w", err)
	}
	_, err := n.bot.Send(msg)
	if err == nil {
		return nil
	}

	delay, limited := retryAfter(err)
	if !limited {
		return fmt.Errorf("notify: send: %w", err)
	}
	delay = min(delay, n.maxDelay)
	n.logger.Warn("[telegram] Rate limited, retrying in %v", delay)

	select {
	case <-ctx.Done():
		return fmt.Errorf("notify: send: %w", ctx.Err())
	case <-time.After(delay):
	}
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("notify: send after retry: %w", err)
	}
	return nil
}

// retryAfter reports the delay Telegram asked for on HTTP 429.
func retryAfter(err error) (time.Duration, bool) {
	var tgErr *tgbotapi.Error
	if !errors.As(err, &tgErr) || tgErr.Code != 429 {
		return 0, false
	}
	if tgErr.RetryAfter > 0 {
		return time.Duration(tgErr.RetryAfter) * time.Second, true
	}
	return 3 * time.Second, true
}

// LogNotifier writes alerts to the log instead of a chat. It is used when no
// bot token is configured.
type LogNotifier struct {
	logger *utils.Logger
}

func NewLogNotifier(logger *utils.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Send(_ context.Context, text, actionURL, actionLabel string) error {
	n.logger.Info("[notify] %s\n[%s] %s", text, actionLabel, actionURL)
	return nil
}
