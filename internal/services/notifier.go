package services

import (
	"context"
	"fmt"
	"html"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"alfredoptarigan/job-orchestrator/internal/config"
)

// Notifier tells the operator about items that wait on a human. Delivery is
// best-effort and never fails the caller.
type Notifier interface {
	Notify(ctx context.Context, title, detail string)
}

type telegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

// NewNotifier returns a Telegram notifier when a bot token and chat are
// configured, and a log-only notifier otherwise.
func NewNotifier(cfg config.TelegramConfig) Notifier {
	if cfg.Token == "" || cfg.ChatID == 0 {
		return logNotifier{}
	}

	bot, err := tgbotapi.NewBotAPI(cfg.Token)
	if err != nil {
		log.Printf("⚠️ Failed to init telegram bot, notifications go to the log: %v", err)
		return logNotifier{}
	}

	return &telegramNotifier{bot: bot, chatID: cfg.ChatID}
}

// Notify implements Notifier.
func (t *telegramNotifier) Notify(ctx context.Context, title, detail string) {
	text := fmt.Sprintf("🔔 <b>%s</b>\n%s", html.EscapeString(title), html.EscapeString(detail))
	msg := tgbotapi.NewMessage(t.chatID, text)
	msg.ParseMode = "HTML"
	if _, err := t.bot.Send(msg); err != nil {
		log.Printf("⚠️ Failed to send telegram notification: %v", err)
	}
}

type logNotifier struct{}

// Notify implements Notifier.
func (logNotifier) Notify(ctx context.Context, title, detail string) {
	log.Printf("🔔 %s: %s", title, detail)
}
