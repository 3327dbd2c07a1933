package notify

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/pasindubuddhika1999/findmyphone/internal/config"
)

// IAdminNotifier delivers a short text message to the administrators.
type IAdminNotifier interface {
	NotifyAdmins(ctx context.Context, text string) error
}

// botSender is the subset of *tgbotapi.BotAPI used here.
type botSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramNotifier posts admin messages to a single Telegram chat.
type TelegramNotifier struct {
	bot    botSender
	chatID int64
}

// NewAdminNotifier returns a Telegram notifier when a bot token and admin chat
// are configured, otherwise a notifier that only logs.
func NewAdminNotifier(cfg *config.Config) IAdminNotifier {
	if cfg.TelegramBotToken == "" || cfg.TelegramAdminChatID == 0 {
		log.Println("Telegram not configured, admin notifications will be logged only.")
		return &LoggingNotifier{}
	}
	bot, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		log.Printf("WARN: Telegram bot init failed, falling back to logging notifier: %v", err)
		return &LoggingNotifier{}
	}
	log.Printf("Telegram admin notifier authorised as @%s", bot.Self.UserName)
	return NewTelegramNotifier(bot, cfg.TelegramAdminChatID)
}

func NewTelegramNotifier(bot botSender, chatID int64) *TelegramNotifier {
	return &TelegramNotifier{bot: bot, chatID: chatID}
}

func (n *TelegramNotifier) NotifyAdmins(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(n.chatID, text)
	msg.DisableWebPagePreview = true
	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send to chat %d: %w", n.chatID, err)
	}
	return nil
}

// LoggingNotifier writes admin messages to the log.
type LoggingNotifier struct{}

func (n *LoggingNotifier) NotifyAdmins(ctx context.Context, text string) error {
	log.Printf("--- Admin Notification (Logged) ---\n%s\n--- End Notification ---", text)
	return nil
}
